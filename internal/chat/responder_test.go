package chat_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Shaxina0930/vocalis-app/internal/chat"
	"github.com/Shaxina0930/vocalis-app/internal/taskstore"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/llm"
	llmmock "github.com/Shaxina0930/vocalis-app/pkg/provider/llm/mock"
	"github.com/Shaxina0930/vocalis-app/pkg/types"
)

var fixedNow = time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func TestFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"hello there", `I heard: "hello there"`},
		{`say "hi"`, `I heard: "say "hi""`},
		{"café\tnow", "I heard: \"café\tnow\""},
	}
	for _, tc := range tests {
		if got := chat.Fallback(tc.in); got != tc.want {
			t.Errorf("Fallback(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestReply_NoLLM(t *testing.T) {
	t.Parallel()

	r := chat.New()
	if r.Enabled() {
		t.Error("Enabled() = true without a model")
	}
	if got, want := r.Reply(context.Background(), "  what's the weather  "), `I heard: "what's the weather"`; got != want {
		t.Errorf("Reply = %q, want %q", got, want)
	}
}

func TestReply_UsesModel(t *testing.T) {
	t.Parallel()

	date := types.Date{Year: 2024, Month: time.March, Day: 16}
	store := taskstore.NewMemStore(
		taskstore.Task{ID: "1", Title: "Buy milk"},
		taskstore.Task{ID: "2", Title: "Dentist", Date: &date, Time: &types.TimeOfDay{Hour: 14}},
	)
	model := &llmmock.Provider{Response: &llm.CompletionResponse{Content: " You have a dentist appointment tomorrow. "}}
	r := chat.New(chat.WithLLM(model), chat.WithTasks(store), chat.WithClock(clock))

	got := r.Reply(context.Background(), "anything tomorrow?")
	if got != "You have a dentist appointment tomorrow." {
		t.Errorf("Reply = %q", got)
	}

	calls := model.Calls()
	if len(calls) != 1 {
		t.Fatalf("Complete called %d times, want 1", len(calls))
	}
	req := calls[0].Req
	for _, want := range []string{"1. Buy milk", "2. Dentist (2024-03-16 at 14:00)", "2024-03-15 (Friday)"} {
		if !strings.Contains(req.SystemPrompt, want) {
			t.Errorf("system prompt missing %q:\n%s", want, req.SystemPrompt)
		}
	}
	if len(req.Messages) != 1 || req.Messages[0] != llm.UserMessage("anything tomorrow?") {
		t.Errorf("Messages = %+v", req.Messages)
	}
	if _, ok := calls[0].Ctx.Deadline(); !ok {
		t.Error("completion context has no deadline")
	}
}

func TestReply_FallsBack(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		model *llmmock.Provider
	}{
		{"model error", &llmmock.Provider{Err: llm.ErrCompletion}},
		{"empty reply", &llmmock.Provider{Response: &llm.CompletionResponse{Content: "   "}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := chat.New(chat.WithLLM(tt.model))
			if got, want := r.Reply(context.Background(), "hello"), chat.Fallback("hello"); got != want {
				t.Errorf("Reply = %q, want %q", got, want)
			}
		})
	}
}

func TestReply_Timeout(t *testing.T) {
	t.Parallel()

	model := &llmmock.Provider{Block: make(chan struct{})}
	r := chat.New(chat.WithLLM(model), chat.WithTimeout(20*time.Millisecond))

	start := time.Now()
	if got := r.Reply(context.Background(), "slow"); got != chat.Fallback("slow") {
		t.Errorf("Reply = %q, want fallback", got)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Reply took %v, want it bounded by the timeout", elapsed)
	}
}

// failingStore lists nothing but an error.
type failingStore struct{ taskstore.Store }

func (failingStore) List(context.Context) ([]taskstore.Task, error) {
	return nil, errors.New("database down")
}

func TestReply_StoreErrorStillAnswers(t *testing.T) {
	t.Parallel()

	model := &llmmock.Provider{Response: &llm.CompletionResponse{Content: "Hi!"}}
	r := chat.New(chat.WithLLM(model), chat.WithTasks(failingStore{}))
	if got := r.Reply(context.Background(), "hi"); got != "Hi!" {
		t.Errorf("Reply = %q, want model reply", got)
	}
}

func TestReply_History(t *testing.T) {
	t.Parallel()

	model := &llmmock.Provider{Response: &llm.CompletionResponse{Content: "ok"}}
	r := chat.New(chat.WithLLM(model), chat.WithHistory(2))

	for _, text := range []string{"one", "two", "three"} {
		r.Reply(context.Background(), text)
	}
	calls := model.Calls()
	last := calls[len(calls)-1].Req.Messages
	// Two remembered exchanges plus the new utterance.
	if len(last) != 5 {
		t.Fatalf("sent %d messages, want 5: %+v", len(last), last)
	}
	if last[0] != llm.UserMessage("one") || last[4] != llm.UserMessage("three") {
		t.Errorf("messages = %+v", last)
	}

	r.Reset()
	r.Reply(context.Background(), "four")
	calls = model.Calls()
	if n := len(calls[len(calls)-1].Req.Messages); n != 1 {
		t.Errorf("after Reset sent %d messages, want 1", n)
	}
}

func TestReply_Concurrent(t *testing.T) {
	t.Parallel()

	model := &llmmock.Provider{Response: &llm.CompletionResponse{Content: "ok"}}
	r := chat.New(chat.WithLLM(model), chat.WithTasks(taskstore.NewMemStore()))

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := r.Reply(context.Background(), "hi"); got != "ok" {
				t.Errorf("Reply = %q", got)
			}
		}()
	}
	wg.Wait()
}

func TestFormatSystemPrompt_Empty(t *testing.T) {
	t.Parallel()

	got := chat.FormatSystemPrompt(nil, fixedNow)
	if !strings.Contains(got, "The user has no tasks.") {
		t.Errorf("prompt does not state the empty list:\n%s", got)
	}
}

func TestFormatSystemPrompt_Truncates(t *testing.T) {
	t.Parallel()

	var tasks []taskstore.Task
	for i := range 30 {
		tasks = append(tasks, taskstore.Task{ID: string(rune('a' + i)), Title: "Task", Description: "note"})
	}
	got := chat.FormatSystemPrompt(tasks, fixedNow)
	if !strings.Contains(got, "...and 5 more.") {
		t.Errorf("prompt not truncated:\n%s", got)
	}
	if !strings.Contains(got, "1. Task - note") {
		t.Errorf("description not rendered:\n%s", got)
	}
}

func TestFormatSystemPrompt_DueToday(t *testing.T) {
	t.Parallel()

	today := types.DateOf(fixedNow)
	tomorrow := today.AddDays(1)
	tasks := []taskstore.Task{
		{ID: "a", Title: "Water plants", Date: &today},
		{ID: "b", Title: "Dentist", Date: &today, Time: &types.TimeOfDay{Hour: 14}},
		{ID: "c", Title: "Call mom", Date: &tomorrow, Time: &types.TimeOfDay{Hour: 9}},
	}
	got := chat.FormatSystemPrompt(tasks, fixedNow)
	if want := "Due today: Dentist at 14:00, Water plants."; !strings.Contains(got, want) {
		t.Errorf("prompt missing %q:\n%s", want, got)
	}

	got = chat.FormatSystemPrompt(tasks[2:], fixedNow)
	if strings.Contains(got, "Due today") {
		t.Errorf("prompt lists tasks due today without any:\n%s", got)
	}
}
