package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/Shaxina0930/vocalis-app/pkg/provider/llm"
	llmmock "github.com/Shaxina0930/vocalis-app/pkg/provider/llm/mock"
)

func TestLLMFallback_Failover(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{Err: llm.ErrCompletion}
	secondary := &llmmock.Provider{Response: &llm.CompletionResponse{Content: "from secondary"}}
	fb := NewLLMFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	req := llm.CompletionRequest{Messages: []llm.Message{llm.UserMessage("hi")}}
	resp, err := fb.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "from secondary" {
		t.Errorf("Content = %q", resp.Content)
	}
	if n := len(primary.Calls()); n != 1 {
		t.Errorf("primary called %d times, want 1", n)
	}
}

func TestLLMFallback_AllFail(t *testing.T) {
	t.Parallel()

	fb := NewLLMFallback(&llmmock.Provider{Err: errors.New("rate limited")}, "primary", FallbackConfig{})
	_, err := fb.Complete(context.Background(), llm.CompletionRequest{Messages: []llm.Message{llm.UserMessage("hi")}})
	if !errors.Is(err, llm.ErrCompletion) || !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrCompletion and ErrAllFailed", err)
	}
}

func TestLLMFallback_Status(t *testing.T) {
	t.Parallel()

	fb := NewLLMFallback(&llmmock.Provider{}, "openai", FallbackConfig{})
	fb.AddFallback("ollama", &llmmock.Provider{})
	status := fb.Status()
	if len(status) != 2 || status[0].Name != "openai" || status[1].Name != "ollama" {
		t.Errorf("Status() = %+v", status)
	}
	if !fb.Healthy() {
		t.Error("Healthy() = false for fresh group")
	}
}
