// Package mock provides a call-recording [taskstore.Store] for unit tests.
//
// Store delegates to an in-memory [taskstore.MemStore] so that tests observe
// realistic behaviour, while the exported *Err fields let a test force any
// operation to fail.
//
//	s := mock.New(taskstore.Task{ID: "1", Title: "Buy milk"})
//	s.ListErr = errors.New("db down")
package mock

import (
	"context"
	"sync"

	"github.com/Shaxina0930/vocalis-app/internal/taskstore"
)

var _ taskstore.Store = (*Store)(nil)

// Store is a mock implementation of [taskstore.Store].
type Store struct {
	mu   sync.Mutex
	impl *taskstore.MemStore

	// CreateErr, UpdateErr, DeleteErr, ListErr and GetErr, when non-nil, are
	// returned by the corresponding method without touching the data.
	CreateErr error
	UpdateErr error
	DeleteErr error
	ListErr   error
	GetErr    error

	// Call counters.
	CreateCalls int
	UpdateCalls int
	DeleteCalls int
	ListCalls   int
	GetCalls    int

	// DeletedIDs records every ID passed to Delete, in order.
	DeletedIDs []string
}

// New returns a Store seeded with tasks.
func New(tasks ...taskstore.Task) *Store {
	return &Store{impl: taskstore.NewMemStore(tasks...)}
}

func (s *Store) Create(ctx context.Context, t taskstore.Task) error {
	s.mu.Lock()
	s.CreateCalls++
	err := s.CreateErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.impl.Create(ctx, t)
}

func (s *Store) Get(ctx context.Context, id string) (taskstore.Task, error) {
	s.mu.Lock()
	s.GetCalls++
	err := s.GetErr
	s.mu.Unlock()
	if err != nil {
		return taskstore.Task{}, err
	}
	return s.impl.Get(ctx, id)
}

func (s *Store) Update(ctx context.Context, t taskstore.Task) (bool, error) {
	s.mu.Lock()
	s.UpdateCalls++
	err := s.UpdateErr
	s.mu.Unlock()
	if err != nil {
		return false, err
	}
	return s.impl.Update(ctx, t)
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	s.DeleteCalls++
	s.DeletedIDs = append(s.DeletedIDs, id)
	err := s.DeleteErr
	s.mu.Unlock()
	if err != nil {
		return false, err
	}
	return s.impl.Delete(ctx, id)
}

func (s *Store) List(ctx context.Context) ([]taskstore.Task, error) {
	s.mu.Lock()
	s.ListCalls++
	err := s.ListErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.impl.List(ctx)
}

// Mutations returns the number of Create, Update and Delete calls so far.
func (s *Store) Mutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CreateCalls + s.UpdateCalls + s.DeleteCalls
}
