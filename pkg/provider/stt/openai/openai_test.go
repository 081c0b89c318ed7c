package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Shaxina0930/vocalis-app/pkg/audio"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/stt"
)

func TestNew_EmptyAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestRecognize(t *testing.T) {
	t.Parallel()

	pcm := make([]byte, 3200)
	var (
		mu     sync.Mutex
		fields = map[string]string{}
		wav    []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			t.Errorf("path = %q, want suffix /audio/transcriptions", r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		mu.Lock()
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		wav = data
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":" Delete task groceries. "}`))
	}))
	t.Cleanup(srv.Close)

	p, err := New("sk-test", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tr, err := p.Recognize(context.Background(), pcm, stt.AudioConfig{
		SampleRate: 16000,
		Channels:   1,
		Language:   "en-US",
		Keywords:   []stt.KeywordBoost{{Keyword: "add task"}, {Keyword: "delete task"}},
	})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if tr.Text != "Delete task groceries." {
		t.Errorf("Text = %q", tr.Text)
	}

	mu.Lock()
	defer mu.Unlock()
	want := map[string]string{
		"model":    DefaultModel,
		"language": "en",
		"prompt":   "add task, delete task",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("field %s = %q, want %q", k, fields[k], v)
		}
	}
	decoded, f, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("uploaded file is not a WAV: %v", err)
	}
	if len(decoded) != len(pcm) || f != audio.CaptureFormat {
		t.Errorf("uploaded %d bytes at %v, want %d at %v", len(decoded), f, len(pcm), audio.CaptureFormat)
	}
}

func TestRecognize_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "api error", status: http.StatusBadRequest, body: `{"error":{"message":"bad file","type":"invalid_request_error"}}`, wantErr: stt.ErrRecognition},
		{name: "blank text", status: http.StatusOK, body: `{"text":"   "}`, wantErr: stt.ErrNoSpeech},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			t.Cleanup(srv.Close)

			p, _ := New("sk-test", WithBaseURL(srv.URL))
			_, err := p.Recognize(context.Background(), make([]byte, 320), stt.AudioConfig{SampleRate: 16000, Channels: 1})
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestLanguageHint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tags []string
		want string
	}{
		{[]string{"en-US", "de"}, "en"},
		{[]string{"", "DE"}, "de"},
		{[]string{"", ""}, ""},
	}
	for _, tc := range tests {
		if got := languageHint(tc.tags...); got != tc.want {
			t.Errorf("languageHint(%q) = %q, want %q", tc.tags, got, tc.want)
		}
	}
}
