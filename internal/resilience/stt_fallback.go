package resilience

import (
	"context"
	"errors"

	"github.com/Shaxina0930/vocalis-app/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with failover across recognisers.
// [stt.ErrNoSpeech] is treated as an answer, not a failure: silence is
// silence whichever backend hears it.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred
// backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	cfg.Permanent = either(cfg.Permanent, func(err error) bool { return errors.Is(err, stt.ErrNoSpeech) })
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional recogniser.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Status reports each recogniser's breaker state.
func (f *STTFallback) Status() []EntryStatus { return f.group.Status() }

// Healthy reports whether any recogniser is available.
func (f *STTFallback) Healthy() bool { return f.group.Healthy() }

// Recognize transcribes pcm with the first healthy recogniser.
func (f *STTFallback) Recognize(ctx context.Context, pcm []byte, cfg stt.AudioConfig) (stt.Transcript, error) {
	t, err := ExecuteWithResult(ctx, f.group, func(p stt.Provider) (stt.Transcript, error) {
		return p.Recognize(ctx, pcm, cfg)
	})
	if errors.Is(err, ErrAllFailed) && !errors.Is(err, stt.ErrRecognition) {
		// Every backend was skipped; callers still only test for ErrRecognition.
		err = errors.Join(stt.ErrRecognition, err)
	}
	return t, err
}

// either combines two classifiers; a nil first classifier is ignored.
func either(a, b func(error) bool) func(error) bool {
	if a == nil {
		return b
	}
	return func(err error) bool { return a(err) || b(err) }
}
