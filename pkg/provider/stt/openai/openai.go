// Package openai provides an STT provider backed by the OpenAI audio
// transcriptions endpoint (whisper-1, gpt-4o-transcribe).
//
// The recording is uploaded as a WAV file. Keyword hints are passed as the
// prompt, which biases the model toward the command vocabulary.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Shaxina0930/vocalis-app/pkg/audio"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/stt"
)

// Compile-time interface assertion.
var _ stt.Provider = (*Provider)(nil)

// DefaultModel is the transcription model used when none is configured.
const DefaultModel = string(oai.AudioModelWhisper1)

// Provider implements stt.Provider using OpenAI transcriptions.
type Provider struct {
	client   oai.Client
	model    string
	language string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL  string
	model    string
	language string
	timeout  time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel sets the transcription model (e.g., "whisper-1").
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithLanguage sets the ISO-639-1 language hint (e.g., "en").
func WithLanguage(lang string) Option {
	return func(c *config) { c.language = lang }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a new OpenAI STT Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai stt: apiKey must not be empty")
	}
	cfg := &config{model: DefaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(1),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Provider{
		client:   oai.NewClient(reqOpts...),
		model:    cfg.model,
		language: cfg.language,
	}, nil
}

// Recognize implements stt.Provider.
func (p *Provider) Recognize(ctx context.Context, pcm []byte, cfg stt.AudioConfig) (stt.Transcript, error) {
	if len(pcm) == 0 {
		return stt.Transcript{}, fmt.Errorf("openai stt: %w", stt.ErrNoSpeech)
	}
	f := audio.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels}
	if f.Validate() != nil {
		f = audio.CaptureFormat
	}
	wav, err := audio.EncodeWAV(pcm, f)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("openai stt: encode wav: %w", err)
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model: oai.AudioModel(p.model),
	}
	lang := languageHint(cfg.Language, p.language)
	if lang != "" {
		params.Language = oai.String(lang)
	}
	if prompt := keywordPrompt(cfg.Keywords); prompt != "" {
		params.Prompt = oai.String(prompt)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return stt.Transcript{}, ctx.Err()
		}
		return stt.Transcript{}, fmt.Errorf("%w: openai: %w", stt.ErrRecognition, err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return stt.Transcript{}, fmt.Errorf("openai stt: %w", stt.ErrNoSpeech)
	}
	return stt.Transcript{
		Text:     text,
		Language: lang,
		Duration: f.Duration(len(pcm)),
	}, nil
}

// languageHint reduces a BCP-47 tag to the ISO-639-1 code the endpoint
// expects ("en-US" → "en").
func languageHint(tags ...string) string {
	for _, t := range tags {
		if t == "" {
			continue
		}
		base, _, _ := strings.Cut(t, "-")
		return strings.ToLower(base)
	}
	return ""
}

// keywordPrompt renders keyword hints as a comma-separated prompt.
func keywordPrompt(kws []stt.KeywordBoost) string {
	words := make([]string, 0, len(kws))
	for _, kw := range kws {
		if kw.Keyword != "" {
			words = append(words, kw.Keyword)
		}
	}
	return strings.Join(words, ", ")
}
