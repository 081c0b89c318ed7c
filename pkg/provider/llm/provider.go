// Package llm defines the Provider interface for the chat model that answers
// utterances which are not task commands.
//
// An LLM provider wraps a remote or local model API (OpenAI, Anthropic, a
// local Ollama instance, ...) behind a single blocking completion call.
// Responses are short spoken replies, so streaming and tool calling are not
// part of the contract.
//
// Implementors must be safe for concurrent use.
package llm

import (
	"context"
	"errors"
)

// ErrCompletion wraps every backend failure so callers can fall back to a
// canned reply without inspecting provider-specific errors.
var ErrCompletion = errors.New("llm: completion failed")

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the LLM needs to produce a reply.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is injected before the conversation as a "system" message.
	SystemPrompt string

	// Messages is the ordered conversation. The last message is the user's
	// utterance.
	Messages []Message

	// Temperature in [0.0, 2.0]. Zero uses the provider default.
	Temperature float64

	// MaxTokens caps the reply length. Zero uses the provider default.
	MaxTokens int
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Failures wrap [ErrCompletion]; a cancelled ctx returns ctx.Err().
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
