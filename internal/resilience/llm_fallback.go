package resilience

import (
	"context"
	"errors"

	"github.com/Shaxina0930/vocalis-app/pkg/provider/llm"
)

// LLMFallback implements [llm.Provider] with failover across chat models.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred
// backend.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional model.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Status reports each model's breaker state.
func (f *LLMFallback) Status() []EntryStatus { return f.group.Status() }

// Healthy reports whether any model is available.
func (f *LLMFallback) Healthy() bool { return f.group.Healthy() }

// Complete sends req to the first healthy model.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := ExecuteWithResult(ctx, f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
	if errors.Is(err, ErrAllFailed) && !errors.Is(err, llm.ErrCompletion) {
		err = errors.Join(llm.ErrCompletion, err)
	}
	return resp, err
}
