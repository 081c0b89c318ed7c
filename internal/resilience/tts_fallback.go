package resilience

import (
	"context"
	"errors"

	"github.com/Shaxina0930/vocalis-app/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with failover across synthesisers.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred
// backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional synthesiser.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Status reports each synthesiser's breaker state.
func (f *TTSFallback) Status() []EntryStatus { return f.group.Status() }

// Healthy reports whether any synthesiser is available.
func (f *TTSFallback) Healthy() bool { return f.group.Healthy() }

// Synthesize renders text with the first healthy synthesiser.
func (f *TTSFallback) Synthesize(ctx context.Context, text string) (tts.Audio, error) {
	a, err := ExecuteWithResult(ctx, f.group, func(p tts.Provider) (tts.Audio, error) {
		return p.Synthesize(ctx, text)
	})
	if errors.Is(err, ErrAllFailed) && !errors.Is(err, tts.ErrSynthesis) {
		err = errors.Join(tts.ErrSynthesis, err)
	}
	return a, err
}

// ListVoices returns the voices of the first healthy entry that can list
// them.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return ExecuteWithResult(ctx, f.group, func(p tts.Provider) ([]tts.VoiceProfile, error) {
		vl, ok := p.(tts.VoiceLister)
		if !ok {
			return nil, errors.New("provider cannot list voices")
		}
		return vl.ListVoices(ctx)
	})
}
