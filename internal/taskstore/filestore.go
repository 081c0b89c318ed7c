package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/spf13/afero"
)

var _ Store = (*FileStore)(nil)

// fileDocument is the on-disk layout of a [FileStore].
type fileDocument struct {
	Version int    `json:"version"`
	Tasks   []Task `json:"tasks"`
}

const fileDocumentVersion = 1

// FileStore is a [Store] that keeps all tasks in a single JSON document. Every
// mutation rewrites the document through a temp file and a rename, so readers
// of the file never observe a partial write. Listing order is insertion order.
type FileStore struct {
	fs   afero.Fs
	path string

	mu    sync.RWMutex
	tasks []Task
}

// OpenFileStore loads the document at path on fsys, creating parent
// directories as needed. A missing file yields an empty store; the file is
// written on the first mutation.
func OpenFileStore(fsys afero.Fs, path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("taskstore: file store path must not be empty")
	}
	s := &FileStore{fs: fsys, path: path}

	data, err := afero.ReadFile(fsys, path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("taskstore: read %q: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("taskstore: decode %q: %w", path, err)
	}
	if doc.Version > fileDocumentVersion {
		return nil, fmt.Errorf("taskstore: %q has unsupported version %d", path, doc.Version)
	}
	s.tasks = doc.Tasks
	return s, nil
}

// Create implements [Store.Create].
func (s *FileStore) Create(_ context.Context, t Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := slices.DeleteFunc(slices.Clone(s.tasks), func(x Task) bool { return x.ID == t.ID })
	next = append(next, t)
	return s.commit(next)
}

// Get implements [Store.Get].
func (s *FileStore) Get(_ context.Context, id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return Task{}, ErrNotFound
}

// Update implements [Store.Update].
func (s *FileStore) Update(_ context.Context, t Task) (bool, error) {
	if err := t.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.tasks, func(x Task) bool { return x.ID == t.ID })
	if i < 0 {
		return false, nil
	}
	next := slices.Clone(s.tasks)
	next[i] = t
	return true, s.commit(next)
}

// Delete implements [Store.Delete].
func (s *FileStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.tasks, func(x Task) bool { return x.ID == id })
	if i < 0 {
		return false, nil
	}
	next := slices.Delete(slices.Clone(s.tasks), i, i+1)
	return true, s.commit(next)
}

// List implements [Store.List].
func (s *FileStore) List(_ context.Context) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tasks), nil
}

// commit writes next to disk and, only on success, makes it the in-memory
// state. Must be called with s.mu held.
func (s *FileStore) commit(next []Task) error {
	doc := fileDocument{Version: fileDocumentVersion, Tasks: next}
	if doc.Tasks == nil {
		doc.Tasks = []Task{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("taskstore: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("taskstore: create dir %q: %w", dir, err)
	}
	tmp, err := afero.TempFile(s.fs, dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("taskstore: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("taskstore: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("taskstore: close temp file: %w", err)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("taskstore: replace %q: %w", s.path, err)
	}
	s.tasks = next
	return nil
}
