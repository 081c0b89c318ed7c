// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to return controlled audio and to verify which texts were
// synthesised. Delay and Block let tests hold a synthesis in flight.
//
// Example:
//
//	p := &mock.Provider{
//	    Result: tts.Audio{PCM: make([]byte, 3200), Format: audio.CaptureFormat},
//	}
//	a, _ := p.Synthesize(ctx, "Task added: Buy milk")
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/Shaxina0930/vocalis-app/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the text passed to Synthesize.
	Text string
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Result is returned by Synthesize when Err is nil.
	Result tts.Audio

	// Err, if non-nil, is returned as the error from Synthesize.
	Err error

	// Delay is how long Synthesize takes. Cancelling ctx ends the wait early
	// with ctx.Err().
	Delay time.Duration

	// Block, when non-nil, makes Synthesize wait until it is closed. The wait
	// ignores ctx so tests can deliver a result after a cancellation.
	Block chan struct{}

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize records the call and returns Result, Err.
func (p *Provider) Synthesize(ctx context.Context, text string) (tts.Audio, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text})
	result, err, delay, block := p.Result, p.Err, p.Delay, p.Block
	p.mu.Unlock()

	if block != nil {
		<-block
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return tts.Audio{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return tts.Audio{}, err
	}
	return result, nil
}

// Calls returns a copy of the recorded calls. Thread-safe.
func (p *Provider) Calls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SynthesizeCall(nil), p.SynthesizeCalls...)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
