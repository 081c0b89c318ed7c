// Package taskstore defines the task entity and the persistence contract the
// command executor relies on, together with in-memory, file, and PostgreSQL
// backends.
//
// Listing order is owned by the backend. Callers that address tasks by
// position ("delete task 2") must resolve the position against a single List
// result and never re-sort it.
package taskstore

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/Shaxina0930/vocalis-app/pkg/types"
)

// ErrNotFound is returned by [Store.Get] when no task has the requested ID.
var ErrNotFound = errors.New("taskstore: task not found")

// Task is a single to-do item.
type Task struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Date        *types.Date      `json:"date,omitempty"`
	Time        *types.TimeOfDay `json:"time,omitempty"`
	Description string           `json:"description"`
}

// Validate reports whether t can be persisted.
func (t Task) Validate() error {
	var errs []error
	if t.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if t.Title == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if t.Time != nil && !t.Time.Valid() {
		errs = append(errs, fmt.Errorf("time %s is out of range", t.Time))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("taskstore: invalid task: %w", err)
	}
	return nil
}

// Store is the CRUD contract for tasks. Implementations must be safe for
// concurrent use, and List must return a stable order across consecutive calls
// when no mutation happens in between.
type Store interface {
	// Create persists t. Creating a task whose ID already exists replaces the
	// stored copy.
	Create(ctx context.Context, t Task) error

	// Get returns the task with the given ID or [ErrNotFound].
	Get(ctx context.Context, id string) (Task, error)

	// Update replaces an existing task and reports whether it existed.
	Update(ctx context.Context, t Task) (bool, error)

	// Delete removes the task with the given ID and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)

	// List returns every task in display order.
	List(ctx context.Context) ([]Task, error)
}

// ForDate returns the tasks scheduled on d, ordered by time of day with
// untimed tasks last. The relative order of tasks at the same time is kept.
func ForDate(tasks []Task, d types.Date) []Task {
	var out []Task
	for _, t := range tasks {
		if t.Date != nil && *t.Date == d {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b Task) int {
		switch {
		case a.Time == nil && b.Time == nil:
			return 0
		case a.Time == nil:
			return 1
		case b.Time == nil:
			return -1
		}
		return (a.Time.Hour*60 + a.Time.Minute) - (b.Time.Hour*60 + b.Time.Minute)
	})
	return out
}
