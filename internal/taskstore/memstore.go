package taskstore

import (
	"context"
	"slices"
	"sync"
)

var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory [Store] that lists tasks in insertion
// order. The zero value is ready to use.
type MemStore struct {
	mu    sync.RWMutex
	tasks []Task
}

// NewMemStore returns a MemStore seeded with tasks, in the given order.
func NewMemStore(tasks ...Task) *MemStore {
	return &MemStore{tasks: slices.Clone(tasks)}
}

// Create implements [Store.Create]. Replacing an existing ID moves the task to
// the end of the listing.
func (s *MemStore) Create(_ context.Context, t Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = slices.DeleteFunc(s.tasks, func(x Task) bool { return x.ID == t.ID })
	s.tasks = append(s.tasks, t)
	return nil
}

// Get implements [Store.Get].
func (s *MemStore) Get(_ context.Context, id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return Task{}, ErrNotFound
	}
	return s.tasks[i], nil
}

// Update implements [Store.Update]. The task keeps its listing position.
func (s *MemStore) Update(_ context.Context, t Task) (bool, error) {
	if err := t.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(t.ID)
	if i < 0 {
		return false, nil
	}
	s.tasks[i] = t
	return true, nil
}

// Delete implements [Store.Delete].
func (s *MemStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}
	s.tasks = slices.Delete(s.tasks, i, i+1)
	return true, nil
}

// List implements [Store.List].
func (s *MemStore) List(_ context.Context) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tasks), nil
}

// indexOf must be called with s.mu held.
func (s *MemStore) indexOf(id string) int {
	return slices.IndexFunc(s.tasks, func(t Task) bool { return t.ID == id })
}
