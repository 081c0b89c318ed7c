package executor_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/Shaxina0930/vocalis-app/internal/command"
	"github.com/Shaxina0930/vocalis-app/internal/executor"
	"github.com/Shaxina0930/vocalis-app/internal/taskstore"
	"github.com/Shaxina0930/vocalis-app/internal/taskstore/mock"
	"github.com/Shaxina0930/vocalis-app/pkg/types"
)

var now = time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return "id-" + strconv.Itoa(n)
	}
}

func seeded(titles ...string) *mock.Store {
	tasks := make([]taskstore.Task, len(titles))
	for i, title := range titles {
		tasks[i] = taskstore.Task{ID: "seed-" + strconv.Itoa(i+1), Title: title}
	}
	return mock.New(tasks...)
}

func listTitles(t *testing.T, s taskstore.Store) []string {
	t.Helper()
	tasks, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.Title
	}
	return out
}

func run(t *testing.T, e *executor.Executor, text string) executor.Result {
	t.Helper()
	res, err := e.Execute(context.Background(), command.Parse(text, now))
	if err != nil {
		t.Fatalf("Execute(%q): %v", text, err)
	}
	return res
}

func TestExecute_AddTask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want string
	}{
		{"add task buy milk", "Task added: Buy milk"},
		{"add task call mom tomorrow at 3pm", "Task added: Call mom on 2026-10-20 at 15:00"},
		{"new task dentist today", "Task added: Dentist on 2026-10-19"},
		{"create task run at 6am", "Task added: Run at 06:00"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			store := mock.New()
			e := executor.New(store, executor.WithIDGenerator(sequentialIDs()))

			res := run(t, e, tt.text)
			if !res.WasCommand || !res.Mutated {
				t.Errorf("WasCommand=%v Mutated=%v, want true true", res.WasCommand, res.Mutated)
			}
			if res.Response != tt.want {
				t.Errorf("Response = %q, want %q", res.Response, tt.want)
			}
			task, err := store.Get(context.Background(), "id-1")
			if err != nil {
				t.Fatalf("created task not stored: %v", err)
			}
			if task.Description != "" {
				t.Errorf("Description = %q, want empty", task.Description)
			}
		})
	}
}

func TestExecute_AddTaskStoresSchedule(t *testing.T) {
	t.Parallel()

	store := mock.New()
	e := executor.New(store, executor.WithIDGenerator(sequentialIDs()))
	run(t, e, "add task call mom tomorrow at 3pm")

	task, err := store.Get(context.Background(), "id-1")
	if err != nil {
		t.Fatal(err)
	}
	if want := (types.Date{Year: 2026, Month: time.October, Day: 20}); task.Date == nil || *task.Date != want {
		t.Errorf("Date = %v, want %v", task.Date, want)
	}
	if task.Time == nil || *task.Time != (types.TimeOfDay{Hour: 15}) {
		t.Errorf("Time = %v, want 15:00", task.Time)
	}
}

func TestExecute_AddTaskDefaultIDsAreUnique(t *testing.T) {
	t.Parallel()

	store := mock.New()
	e := executor.New(store)
	run(t, e, "add task one")
	run(t, e, "add task two")

	tasks, _ := store.List(context.Background())
	if len(tasks) != 2 || tasks[0].ID == tasks[1].ID || tasks[0].ID == "" {
		t.Errorf("ids not unique: %+v", tasks)
	}
}

func TestExecute_ClarificationsDoNotMutate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want string
	}{
		{"add task", executor.PromptAddTitle},
		{"add task tomorrow at 5pm", executor.PromptAddTitle},
		{"delete task", executor.PromptDeleteWhich},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			store := seeded("Alpha")
			res := run(t, executor.New(store), tt.text)
			if !res.WasCommand || res.Mutated {
				t.Errorf("WasCommand=%v Mutated=%v, want true false", res.WasCommand, res.Mutated)
			}
			if res.Response != tt.want {
				t.Errorf("Response = %q, want %q", res.Response, tt.want)
			}
			if n := store.Mutations(); n != 0 {
				t.Errorf("store mutated %d times", n)
			}
		})
	}
}

func TestExecute_DeleteByPosition(t *testing.T) {
	t.Parallel()

	store := seeded("Alpha", "Bravo", "Charlie")
	res := run(t, executor.New(store), "delete task 2")

	if res.Response != "Deleted task: Bravo" {
		t.Errorf("Response = %q", res.Response)
	}
	got := listTitles(t, store)
	if len(got) != 2 || got[0] != "Alpha" || got[1] != "Charlie" {
		t.Errorf("remaining = %v, want [Alpha Charlie]", got)
	}
}

func TestExecute_DeleteByTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		titles    []string
		text      string
		want      string
		remaining int
	}{
		{
			name:      "single match",
			titles:    []string{"Buy groceries", "Walk dog"},
			text:      "delete task groceries",
			want:      "Deleted task: Buy groceries",
			remaining: 1,
		},
		{
			name:      "first of several matches",
			titles:    []string{"Walk dog", "Buy groceries", "Return groceries bag"},
			text:      "remove task GROCERIES",
			want:      "Deleted task: Buy groceries",
			remaining: 2,
		},
		{
			name:      "position out of range falls back to title",
			titles:    []string{"Alpha", "Room 7 cleanup"},
			text:      "delete task 7",
			want:      "Deleted task: Room 7 cleanup",
			remaining: 1,
		},
		{
			name:      "zero is not a position",
			titles:    []string{"Alpha"},
			text:      "delete task 0",
			want:      "Could not find task: 0",
			remaining: 1,
		},
		{
			name:      "no match",
			titles:    []string{"Alpha", "Bravo"},
			text:      "delete task zulu",
			want:      "Could not find task: zulu",
			remaining: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := seeded(tt.titles...)
			res := run(t, executor.New(store), tt.text)
			if res.Response != tt.want {
				t.Errorf("Response = %q, want %q", res.Response, tt.want)
			}
			if got := len(listTitles(t, store)); got != tt.remaining {
				t.Errorf("remaining = %d, want %d", got, tt.remaining)
			}
		})
	}
}

func TestExecute_DeleteNotFoundDoesNotMutate(t *testing.T) {
	t.Parallel()

	store := seeded("Alpha")
	res := run(t, executor.New(store), "delete task zulu")
	if res.Mutated || store.DeleteCalls != 0 {
		t.Errorf("Mutated=%v DeleteCalls=%d", res.Mutated, store.DeleteCalls)
	}
}

func TestExecute_ListTasks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		titles []string
		want   string
	}{
		{"empty", nil, "You have no tasks."},
		{"one", []string{"My task"}, "You have 1 task: 1. My task"},
		{"several", []string{"A", "B", "C"}, "You have 3 tasks: 1. A, 2. B, 3. C"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := run(t, executor.New(seeded(tt.titles...)), "list tasks")
			if !res.WasCommand || res.Mutated {
				t.Errorf("WasCommand=%v Mutated=%v", res.WasCommand, res.Mutated)
			}
			if res.Response != tt.want {
				t.Errorf("Response = %q, want %q", res.Response, tt.want)
			}
		})
	}
}

func TestExecute_ListUsesStoredCapitalisation(t *testing.T) {
	t.Parallel()

	store := mock.New()
	e := executor.New(store)
	run(t, e, "add task my task")
	if got := run(t, e, "list tasks").Response; got != "You have 1 task: 1. My task" {
		t.Errorf("Response = %q", got)
	}
}

func TestExecute_ClearThenCount(t *testing.T) {
	t.Parallel()

	store := seeded("A", "B", "C")
	e := executor.New(store)

	res := run(t, e, "clear all tasks")
	if res.Response != "Deleted all 3 tasks." || !res.Mutated {
		t.Errorf("clear = %+v", res)
	}
	if got := run(t, e, "how many tasks").Response; got != "You have 0 tasks." {
		t.Errorf("count after clear = %q", got)
	}
	if got := run(t, e, "clear all tasks").Response; got != "Deleted all 0 tasks." {
		t.Errorf("second clear = %q", got)
	}
}

func TestExecute_Count(t *testing.T) {
	t.Parallel()

	if got := run(t, executor.New(seeded("A")), "how many tasks").Response; got != "You have 1 task." {
		t.Errorf("one = %q", got)
	}
	if got := run(t, executor.New(seeded("A", "B")), "how many tasks").Response; got != "You have 2 tasks." {
		t.Errorf("two = %q", got)
	}
}

func TestExecute_HelpAndUnrecognized(t *testing.T) {
	t.Parallel()

	store := seeded("A")
	e := executor.New(store)

	help := run(t, e, "help")
	if help.WasCommand || help.Response != executor.HelpText {
		t.Errorf("help = %+v", help)
	}
	chat := run(t, e, "tell me a joke")
	if chat.WasCommand || chat.Response != "" {
		t.Errorf("unrecognized = %+v", chat)
	}
	if n := store.Mutations(); n != 0 {
		t.Errorf("store mutated %d times", n)
	}
}

func TestExecute_StoreErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	tests := []struct {
		name  string
		text  string
		setup func(*mock.Store)
	}{
		{"add", "add task x", func(s *mock.Store) { s.CreateErr = boom }},
		{"delete list", "delete task x", func(s *mock.Store) { s.ListErr = boom }},
		{"delete", "delete task 1", func(s *mock.Store) { s.DeleteErr = boom }},
		{"list", "list tasks", func(s *mock.Store) { s.ListErr = boom }},
		{"clear", "clear all tasks", func(s *mock.Store) { s.DeleteErr = boom }},
		{"count", "how many tasks", func(s *mock.Store) { s.ListErr = boom }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := seeded("x")
			tt.setup(store)
			_, err := executor.New(store).Execute(context.Background(), command.Parse(tt.text, now))
			if !errors.Is(err, boom) {
				t.Errorf("err = %v, want wrapping %v", err, boom)
			}
		})
	}
}
