// Package executor applies parsed command intents to a task store and phrases
// the outcome as a short sentence suitable for both the chat log and speech.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Shaxina0930/vocalis-app/internal/command"
	"github.com/Shaxina0930/vocalis-app/internal/taskstore"
)

// User-facing responses with fixed wording.
const (
	PromptAddTitle    = "What task would you like to add? Please say 'add task' followed by the task name."
	PromptDeleteWhich = "Which task would you like to delete?"
	ResponseNoTasks   = "You have no tasks."
	HelpText          = "I can help you with: Add task, Delete task, List tasks, Clear all tasks. " +
		"Try saying 'add task buy groceries' or 'list tasks'"
)

// Result is the outcome of executing one intent.
//
// WasCommand is false for [command.Help] and [command.Unrecognized]; callers
// treat those utterances as chat. An empty Response with WasCommand false means
// there is nothing to say and the caller should fall back to its chat
// responder.
type Result struct {
	WasCommand bool
	Response   string

	// Mutated is true when the store was changed.
	Mutated bool
}

// Executor runs intents against a [taskstore.Store]. It is safe for concurrent
// use, although concurrent deletes by position may race with each other the
// same way two people editing one list would.
type Executor struct {
	store  taskstore.Store
	newID  func() string
	logger *slog.Logger
}

// Option configures an [Executor].
type Option func(*Executor)

// WithIDGenerator overrides the task ID source. Defaults to random UUIDs.
func WithIDGenerator(gen func() string) Option {
	return func(e *Executor) {
		e.newID = gen
	}
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// New returns an Executor bound to store.
func New(store taskstore.Store, opts ...Option) *Executor {
	e := &Executor{
		store:  store,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Store returns the store the executor writes to.
func (e *Executor) Store() taskstore.Store { return e.store }

// Execute applies in. Store failures are returned as errors; everything else,
// including an unresolvable delete target, is a normal [Result].
func (e *Executor) Execute(ctx context.Context, in command.Intent) (Result, error) {
	switch in := in.(type) {
	case command.AddTask:
		return e.add(ctx, in)
	case command.DeleteTask:
		return e.delete(ctx, in)
	case command.ListTasks:
		return e.list(ctx)
	case command.ClearAll:
		return e.clear(ctx)
	case command.CountTasks:
		return e.count(ctx)
	case command.Help:
		return Result{Response: HelpText}, nil
	default:
		return Result{}, nil
	}
}

func (e *Executor) add(ctx context.Context, in command.AddTask) (Result, error) {
	if in.Title == "" {
		return Result{WasCommand: true, Response: PromptAddTitle}, nil
	}
	task := taskstore.Task{
		ID:    e.newID(),
		Title: in.Title,
		Date:  in.Date,
		Time:  in.Time,
	}
	if err := e.store.Create(ctx, task); err != nil {
		return Result{}, fmt.Errorf("executor: add task: %w", err)
	}
	e.logger.Debug("task added", "id", task.ID, "title", task.Title)

	var b strings.Builder
	b.WriteString("Task added: ")
	b.WriteString(task.Title)
	if task.Date != nil {
		b.WriteString(" on " + task.Date.String())
	}
	if task.Time != nil {
		b.WriteString(" at " + task.Time.String())
	}
	return Result{WasCommand: true, Response: b.String(), Mutated: true}, nil
}

// delete resolves the identifier against one List snapshot: first as a
// 1-based position, then as the first case-insensitive title substring match.
func (e *Executor) delete(ctx context.Context, in command.DeleteTask) (Result, error) {
	ident := strings.TrimSpace(in.Identifier)
	if ident == "" {
		return Result{WasCommand: true, Response: PromptDeleteWhich}, nil
	}
	tasks, err := e.store.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("executor: delete task: %w", err)
	}

	target, ok := resolve(tasks, ident)
	if !ok {
		return Result{WasCommand: true, Response: "Could not find task: " + ident}, nil
	}
	removed, err := e.store.Delete(ctx, target.ID)
	if err != nil {
		return Result{}, fmt.Errorf("executor: delete task %q: %w", target.ID, err)
	}
	if !removed {
		// Gone between List and Delete.
		return Result{WasCommand: true, Response: "Could not find task: " + ident}, nil
	}
	e.logger.Debug("task deleted", "id", target.ID, "title", target.Title)
	return Result{WasCommand: true, Response: "Deleted task: " + target.Title, Mutated: true}, nil
}

func resolve(tasks []taskstore.Task, ident string) (taskstore.Task, bool) {
	if n, err := strconv.Atoi(ident); err == nil && n > 0 && n <= len(tasks) {
		return tasks[n-1], true
	}
	needle := strings.ToLower(ident)
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), needle) {
			return t, true
		}
	}
	return taskstore.Task{}, false
}

func (e *Executor) list(ctx context.Context) (Result, error) {
	tasks, err := e.store.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("executor: list tasks: %w", err)
	}
	if len(tasks) == 0 {
		return Result{WasCommand: true, Response: ResponseNoTasks}, nil
	}
	items := make([]string, len(tasks))
	for i, t := range tasks {
		items[i] = strconv.Itoa(i+1) + ". " + t.Title
	}
	resp := fmt.Sprintf("You have %d %s: %s", len(tasks), plural(len(tasks)), strings.Join(items, ", "))
	return Result{WasCommand: true, Response: resp}, nil
}

// clear deletes every task from one List snapshot. The reported count is the
// snapshot size, matching what the user would have heard from "list tasks".
func (e *Executor) clear(ctx context.Context) (Result, error) {
	tasks, err := e.store.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("executor: clear tasks: %w", err)
	}
	for _, t := range tasks {
		if _, err := e.store.Delete(ctx, t.ID); err != nil {
			return Result{}, fmt.Errorf("executor: clear tasks: delete %q: %w", t.ID, err)
		}
	}
	return Result{
		WasCommand: true,
		Response:   fmt.Sprintf("Deleted all %d tasks.", len(tasks)),
		Mutated:    len(tasks) > 0,
	}, nil
}

func (e *Executor) count(ctx context.Context) (Result, error) {
	tasks, err := e.store.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("executor: count tasks: %w", err)
	}
	return Result{WasCommand: true, Response: fmt.Sprintf("You have %d %s.", len(tasks), plural(len(tasks)))}, nil
}

func plural(n int) string {
	if n == 1 {
		return "task"
	}
	return "tasks"
}
