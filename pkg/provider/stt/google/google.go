// Package google provides an STT provider backed by the Google Cloud
// Speech-to-Text v1 REST API (speech:recognize). It implements stt.Provider.
//
// The recording is sent inline as base64 LINEAR16 content, which the API
// accepts for clips up to one minute. Command phrases from
// [stt.AudioConfig.Keywords] are passed as a speech context.
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
	"strconv"
	"strings"
	"time"

	"github.com/Shaxina0930/vocalis-app/pkg/provider/stt"
)

// Compile-time interface assertion.
var _ stt.Provider = (*Provider)(nil)

const (
	defaultBaseURL  = "https://speech.googleapis.com"
	recognizePath   = "/v1/speech:recognize"
	defaultLanguage = "en-US"
	defaultTimeout  = 30 * time.Second
)

// Option is a functional option for configuring a Google Provider.
type Option func(*Provider)

// WithBaseURL overrides the API endpoint. Used by tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithLanguage sets the default BCP-47 language code (e.g., "en-US").
func WithLanguage(code string) Option {
	return func(p *Provider) { p.language = code }
}

// WithModel selects a recognition model (e.g., "latest_short",
// "command_and_search"). Empty lets the API choose.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// Provider implements stt.Provider using Google Cloud Speech-to-Text.
type Provider struct {
	apiKey     string
	baseURL    string
	language   string
	model      string
	httpClient *http.Client
}

// New creates a Google Provider authenticated by apiKey.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("google stt: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- request/response types ----

type recognizeRequest struct {
	Config recognitionConfig `json:"config"`
	Audio  recognitionAudio  `json:"audio"`
}

type recognitionConfig struct {
	Encoding                   string          `json:"encoding"`
	SampleRateHertz            int             `json:"sampleRateHertz"`
	AudioChannelCount          int             `json:"audioChannelCount,omitempty"`
	LanguageCode               string          `json:"languageCode"`
	Model                      string          `json:"model,omitempty"`
	EnableAutomaticPunctuation bool            `json:"enableAutomaticPunctuation"`
	EnableWordTimeOffsets      bool            `json:"enableWordTimeOffsets"`
	SpeechContexts             []speechContext `json:"speechContexts,omitempty"`
}

type speechContext struct {
	Phrases []string `json:"phrases"`
	Boost   float64  `json:"boost,omitempty"`
}

type recognitionAudio struct {
	Content string `json:"content"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				StartTime string `json:"startTime"`
				EndTime   string `json:"endTime"`
				Word      string `json:"word"`
			} `json:"words"`
		} `json:"alternatives"`
		LanguageCode string `json:"languageCode"`
	} `json:"results"`
	TotalBilledTime string `json:"totalBilledTime"`
}

// apiError is the error envelope returned by Google APIs.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// ---- Recognize ----

// Recognize implements stt.Provider.
func (p *Provider) Recognize(ctx context.Context, pcm []byte, cfg stt.AudioConfig) (stt.Transcript, error) {
	if len(pcm) == 0 {
		return stt.Transcript{}, fmt.Errorf("google stt: %w", stt.ErrNoSpeech)
	}
	body, err := json.Marshal(p.buildRequest(pcm, cfg))
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("google stt: marshal request: %w", err)
	}

	endpoint := p.baseURL + recognizePath + "?key=" + url.QueryEscape(p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("google stt: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return stt.Transcript{}, ctx.Err()
		}
		return stt.Transcript{}, fmt.Errorf("%w: google: POST %s: %w", stt.ErrRecognition, recognizePath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stt.Transcript{}, fmt.Errorf("%w: google: %s", stt.ErrRecognition, describeError(resp))
	}

	var rr recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return stt.Transcript{}, fmt.Errorf("%w: google: decode response: %w", stt.ErrRecognition, err)
	}
	return rr.transcript(cfg.Language)
}

// buildRequest fills the recognition config from cfg and the provider
// defaults.
func (p *Provider) buildRequest(pcm []byte, cfg stt.AudioConfig) recognizeRequest {
	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	rc := recognitionConfig{
		Encoding:                   "LINEAR16",
		SampleRateHertz:            rate,
		AudioChannelCount:          cfg.Channels,
		LanguageCode:               lang,
		Model:                      p.model,
		EnableAutomaticPunctuation: true,
		EnableWordTimeOffsets:      true,
	}
	if len(cfg.Keywords) > 0 {
		sc := speechContext{Phrases: make([]string, 0, len(cfg.Keywords))}
		for _, kw := range cfg.Keywords {
			sc.Phrases = append(sc.Phrases, kw.Keyword)
			sc.Boost = max(sc.Boost, kw.Boost)
		}
		rc.SpeechContexts = []speechContext{sc}
	}
	return recognizeRequest{
		Config: rc,
		Audio:  recognitionAudio{Content: base64.StdEncoding.EncodeToString(pcm)},
	}
}

// transcript joins the top alternative of every result. Long clips come back
// as several consecutive results.
func (rr recognizeResponse) transcript(lang string) (stt.Transcript, error) {
	var (
		parts []string
		words []stt.WordDetail
		conf  float64
		n     int
	)
	for _, r := range rr.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		if text := strings.TrimSpace(alt.Transcript); text != "" {
			parts = append(parts, text)
			conf += alt.Confidence
			n++
		}
		for _, w := range alt.Words {
			words = append(words, stt.WordDetail{
				Word:  w.Word,
				Start: parseOffset(w.StartTime),
				End:   parseOffset(w.EndTime),
			})
		}
		if r.LanguageCode != "" {
			lang = r.LanguageCode
		}
	}
	if n == 0 {
		return stt.Transcript{}, fmt.Errorf("google stt: %w", stt.ErrNoSpeech)
	}
	return stt.Transcript{
		Text:       strings.Join(parts, " "),
		Confidence: conf / float64(n),
		Language:   lang,
		Words:      words,
		Duration:   parseOffset(rr.TotalBilledTime),
	}, nil
}

// parseOffset parses protobuf Duration JSON such as "1.500s". Malformed
// values yield 0.
func parseOffset(s string) time.Duration {
	secs, err := strconv.ParseFloat(strings.TrimSuffix(s, "s"), 64)
	if err != nil {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
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
