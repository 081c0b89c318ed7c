// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/Shaxina0930/vocalis-app/pkg/audio"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/stt"
)

// Compile-time assertion that NativeProvider satisfies stt.Provider.
var _ stt.Provider = (*NativeProvider)(nil)

// modelSampleRate is the only input rate whisper models accept.
const modelSampleRate = 16000

// NativeProvider implements stt.Provider using whisper.cpp Go bindings
// (CGO), eliminating HTTP overhead entirely. The model is loaded once at
// startup and shared across calls.
type NativeProvider struct {
	model        whisperlib.Model
	language     string
	rmsThreshold float64
	logger       *slog.Logger

	// sem serialises inference: whisper.cpp saturates all cores for one
	// context, so parallel runs only add memory pressure.
	sem chan struct{}
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithNativeRMSThreshold sets the energy level below which audio is
// considered silent. Defaults to 300.
func WithNativeRMSThreshold(rms float64) NativeOption {
	return func(p *NativeProvider) { p.rmsThreshold = rms }
}

// WithNativeLogger sets the logger. Defaults to [slog.Default].
func WithNativeLogger(l *slog.Logger) NativeOption {
	return func(p *NativeProvider) { p.logger = l }
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The caller must call Close when the provider is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model:        model,
		language:     defaultLanguage,
		rmsThreshold: defaultRMSThreshold,
		logger:       slog.Default(),
		sem:          make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model. Must be called when the provider is no
// longer needed.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Recognize implements stt.Provider. Audio that is not 16 kHz mono is
// converted first, since whisper models only accept that format.
func (p *NativeProvider) Recognize(ctx context.Context, pcm []byte, cfg stt.AudioConfig) (stt.Transcript, error) {
	f := formatOf(cfg)
	voiced, ok := voicedSpan(pcm, f, p.rmsThreshold)
	if !ok {
		return stt.Transcript{}, fmt.Errorf("whisper: %w", stt.ErrNoSpeech)
	}
	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}

	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return stt.Transcript{}, ctx.Err()
	}

	want := audio.Format{SampleRate: modelSampleRate, Channels: 1}
	samples := audio.ToFloat32(audio.Convert(voiced, f, want), 1)

	text, err := p.infer(ctx, samples, lang)
	if err != nil {
		if ctx.Err() != nil {
			return stt.Transcript{}, ctx.Err()
		}
		return stt.Transcript{}, fmt.Errorf("%w: %w", stt.ErrRecognition, err)
	}
	if text == "" {
		return stt.Transcript{}, fmt.Errorf("whisper: %w", stt.ErrNoSpeech)
	}
	return stt.Transcript{
		Text:     text,
		Language: lang,
		Duration: f.Duration(len(pcm)),
	}, nil
}

// infer runs whisper.cpp inference on samples using a fresh context and
// returns the concatenated segment text.
func (p *NativeProvider) infer(ctx context.Context, samples []float32, lang string) (string, error) {
	// Each context is NOT thread-safe, but the model can be shared across
	// goroutines.
	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(lang); err != nil {
		p.logger.Warn("whisper: failed to set language, using default", "language", lang, "err", err)
	}

	// The bindings cannot interrupt a running Process call; ctx is honoured
	// only between segments.
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return cleanText(strings.Join(parts, " ")), nil
}
