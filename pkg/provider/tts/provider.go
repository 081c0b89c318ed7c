// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., Google Cloud
// Text-to-Speech, OpenAI, ElevenLabs, or a local Coqui server) and turns one
// complete response string into one buffer of 16-bit PCM. Responses in this
// application are short confirmations, so synthesis is batch: the caller gets
// the whole utterance before playback begins.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
	"time"

	"github.com/Shaxina0930/vocalis-app/pkg/audio"
)

// ErrSynthesis is wrapped by every error a provider returns for a request it
// could not turn into audio: transport failures, non-2xx responses, and
// payloads without audio. Callers use errors.Is to detect it.
var ErrSynthesis = errors.New("tts: synthesis failed")

// Audio is one synthesised utterance.
type Audio struct {
	// PCM is interleaved 16-bit little-endian samples.
	PCM []byte

	// Format describes PCM.
	Format audio.Format
}

// Duration returns the playing time of a.
func (a Audio) Duration() time.Duration {
	if a.Format.Validate() != nil {
		return 0
	}
	return a.Format.Duration(len(a.PCM))
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text as speech. text is never empty; callers reject
	// blank input before reaching the provider.
	//
	// Returns an error wrapping [ErrSynthesis] if the backend fails or returns
	// no audio, or ctx.Err() if ctx is cancelled first.
	Synthesize(ctx context.Context, text string) (Audio, error)
}

// VoiceProfile describes one voice offered by a provider.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Metadata holds provider-specific voice attributes (gender, accent, etc.).
	Metadata map[string]string
}

// VoiceLister is implemented by providers that can enumerate their voices.
// The CLI uses it to help pick a voice for the config file.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}
