// Package google provides a TTS provider backed by the Google Cloud
// Text-to-Speech v1 REST API (text:synthesize). It implements tts.Provider.
//
// Requests ask for LINEAR16 audio at the configured sample rate. The API
// returns that audio base64-encoded inside a WAV container, which is decoded
// to raw PCM before it is handed to the caller.
//
//	p, err := google.New(apiKey, google.WithVoice("en-US", "en-US-Neural2-F"))
//	a, err := p.Synthesize(ctx, "You have 2 tasks.")
package google

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Shaxina0930/vocalis-app/pkg/audio"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/tts"
)

// Compile-time interface assertions.
var (
	_ tts.Provider    = (*Provider)(nil)
	_ tts.VoiceLister = (*Provider)(nil)
)

const (
	defaultBaseURL    = "https://texttospeech.googleapis.com"
	synthesizePath    = "/v1/text:synthesize"
	voicesPath        = "/v1/voices"
	defaultLanguage   = "en-US"
	defaultVoice      = "en-US-Neural2-F"
	defaultSampleRate = 16000
	defaultTimeout    = 20 * time.Second
)

// Option is a functional option for configuring a Google Provider.
type Option func(*Provider)

// WithBaseURL overrides the API endpoint. Used by tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithVoice selects the language and named voice.
func WithVoice(languageCode, name string) Option {
	return func(p *Provider) {
		p.languageCode = languageCode
		p.voice = name
	}
}

// WithSampleRate sets the requested output sample rate in Hz.
func WithSampleRate(hz int) Option {
	return func(p *Provider) { p.sampleRate = hz }
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// Provider implements tts.Provider using Google Cloud Text-to-Speech.
type Provider struct {
	apiKey       string
	baseURL      string
	languageCode string
	voice        string
	sampleRate   int
	httpClient   *http.Client
}

// New creates a Google Provider authenticated by apiKey.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("google tts: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		languageCode: defaultLanguage,
		voice:        defaultVoice,
		sampleRate:   defaultSampleRate,
		httpClient:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- request/response types ----

type synthesizeRequest struct {
	Input       synthesisInput `json:"input"`
	Voice       voiceSelection `json:"voice"`
	AudioConfig audioConfig    `json:"audioConfig"`
}

type synthesisInput struct {
	Text string `json:"text"`
}

type voiceSelection struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name,omitempty"`
}

type audioConfig struct {
	AudioEncoding   string `json:"audioEncoding"`
	SampleRateHertz int    `json:"sampleRateHertz"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

type voicesResponse struct {
	Voices []struct {
		LanguageCodes          []string `json:"languageCodes"`
		Name                   string   `json:"name"`
		SSMLGender             string   `json:"ssmlGender"`
		NaturalSampleRateHertz int      `json:"naturalSampleRateHertz"`
	} `json:"voices"`
}

// apiError is the error envelope returned by Google APIs.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// ---- Synthesize ----

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string) (tts.Audio, error) {
	body, err := json.Marshal(synthesizeRequest{
		Input: synthesisInput{Text: text},
		Voice: voiceSelection{LanguageCode: p.languageCode, Name: p.voice},
		AudioConfig: audioConfig{
			AudioEncoding:   "LINEAR16",
			SampleRateHertz: p.sampleRate,
		},
	})
	if err != nil {
		return tts.Audio{}, fmt.Errorf("google tts: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(synthesizePath), bytes.NewReader(body))
	if err != nil {
		return tts.Audio{}, fmt.Errorf("google tts: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return tts.Audio{}, ctx.Err()
		}
		return tts.Audio{}, fmt.Errorf("%w: google: POST %s: %w", tts.ErrSynthesis, synthesizePath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return tts.Audio{}, fmt.Errorf("%w: google: %s", tts.ErrSynthesis, describeError(resp))
	}

	var sr synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return tts.Audio{}, fmt.Errorf("%w: google: decode response: %w", tts.ErrSynthesis, err)
	}
	if sr.AudioContent == "" {
		return tts.Audio{}, fmt.Errorf("%w: google: response has no audio content", tts.ErrSynthesis)
	}
	raw, err := base64.StdEncoding.DecodeString(sr.AudioContent)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("%w: google: decode audio content: %w", tts.ErrSynthesis, err)
	}

	// LINEAR16 normally arrives with a WAV header; tolerate bare PCM too.
	if !audio.IsWAV(raw) {
		return tts.Audio{PCM: raw, Format: audio.Format{SampleRate: p.sampleRate, Channels: 1}}, nil
	}
	pcm, f, err := audio.DecodeWAV(raw)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("%w: google: %w", tts.ErrSynthesis, err)
	}
	return tts.Audio{PCM: pcm, Format: f}, nil
}

// ---- ListVoices ----

// ListVoices returns the voices available for the configured language.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	q := url.Values{}
	q.Set("languageCode", p.languageCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(voicesPath)+"&"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("google tts: create list-voices request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google tts: GET %s: %w", voicesPath, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google tts: list voices: %s", describeError(resp))
	}

	var vr voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("google tts: decode voices: %w", err)
	}
	profiles := make([]tts.VoiceProfile, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		profiles = append(profiles, tts.VoiceProfile{
			ID:       v.Name,
			Name:     v.Name,
			Provider: "google",
			Metadata: map[string]string{
				"gender":    strings.ToLower(v.SSMLGender),
				"languages": strings.Join(v.LanguageCodes, ","),
			},
		})
	}
	return profiles, nil
}

// ---- helpers ----

// endpoint returns the full URL for path with the api key attached.
func (p *Provider) endpoint(path string) string {
	return p.baseURL + path + "?key=" + url.QueryEscape(p.apiKey)
}

// describeError renders a non-200 response, preferring the API's message.
func describeError(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var ae apiError
	if json.Unmarshal(data, &ae) == nil && ae.Error.Message != "" {
		return fmt.Sprintf("status %d: %s", resp.StatusCode, ae.Error.Message)
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
