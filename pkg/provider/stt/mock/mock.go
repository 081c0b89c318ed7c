// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider to return a controlled Transcript and to inspect which audio
// was submitted for recognition.
//
// Example:
//
//	p := &mock.Provider{Result: stt.Transcript{Text: "add task buy milk"}}
//	t, _ := p.Recognize(ctx, pcm, stt.AudioConfig{SampleRate: 16000, Channels: 1})
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/Shaxina0930/vocalis-app/pkg/provider/stt"
)

// RecognizeCall records a single invocation of Recognize.
type RecognizeCall struct {
	// Ctx is the context passed to Recognize.
	Ctx context.Context
	// PCM is a copy of the audio passed to Recognize.
	PCM []byte
	// Cfg is the AudioConfig passed to Recognize.
	Cfg stt.AudioConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Result is returned by Recognize when Err is nil.
	Result stt.Transcript

	// Results, when non-empty, is consumed one entry per call before falling
	// back to Result.
	Results []stt.Transcript

	// Err, if non-nil, is returned as the error from Recognize.
	Err error

	// Delay is how long Recognize takes. Cancelling ctx ends the wait early
	// with ctx.Err().
	Delay time.Duration

	// --- Call records ---

	// RecognizeCalls records every call to Recognize in order.
	RecognizeCalls []RecognizeCall
}

// Recognize records the call and returns the configured result.
func (p *Provider) Recognize(ctx context.Context, pcm []byte, cfg stt.AudioConfig) (stt.Transcript, error) {
	p.mu.Lock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	p.RecognizeCalls = append(p.RecognizeCalls, RecognizeCall{Ctx: ctx, PCM: cp, Cfg: cfg})
	result := p.Result
	if len(p.Results) > 0 {
		result = p.Results[0]
		p.Results = p.Results[1:]
	}
	err, delay := p.Err, p.Delay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return stt.Transcript{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return stt.Transcript{}, err
	}
	return result, nil
}

// Calls returns a copy of the recorded calls. Thread-safe.
func (p *Provider) Calls() []RecognizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]RecognizeCall(nil), p.RecognizeCalls...)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RecognizeCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
