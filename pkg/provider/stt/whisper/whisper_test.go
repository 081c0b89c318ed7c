package whisper_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shaxina0930/vocalis-app/pkg/audio"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/stt"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/stt/whisper"
)

// ---- helpers ----------------------------------------------------------------

// newMockServer creates a test server that responds to POST /inference with a
// JSON body containing the provided responseText. It increments *callCount on
// every matched request.
func newMockServer(t *testing.T, responseText string, callCount *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if callCount != nil {
			callCount.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": responseText})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// makeSpeechPCM generates a sine-wave PCM buffer at 440 Hz whose RMS is well
// above the silence threshold. The buffer contains `samples` 16-bit
// little-endian signed samples.
func makeSpeechPCM(samples int) []byte {
	const amplitude = 10_000.0 // RMS ≈ 7071, well above 300
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/16000))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

// makeSilencePCM generates a zero-valued PCM buffer (RMS = 0, below any
// threshold). The buffer contains `samples` 16-bit little-endian samples.
func makeSilencePCM(samples int) []byte {
	return make([]byte, samples*2)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var mono16k = stt.AudioConfig{SampleRate: 16000, Channels: 1}

// ---- provider construction --------------------------------------------------

func TestNew_EmptyServerURL_ReturnsError(t *testing.T) {
	_, err := whisper.New("")
	if err == nil {
		t.Fatal("expected error for empty server URL, got nil")
	}
}

func TestNew_WithOptions_DoesNotError(t *testing.T) {
	p, err := whisper.New("http://localhost:8080/",
		whisper.WithModel("base.en"),
		whisper.WithLanguage("de"),
		whisper.WithRMSThreshold(500),
		whisper.WithTimeout(5*time.Second),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil Provider")
	}
}

// ---- Recognize --------------------------------------------------------------

func TestRecognize_Speech(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		fields = map[string]string{}
		wav    []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
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
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "  add task buy milk\n"})
	}))
	t.Cleanup(srv.Close)

	p, _ := whisper.New(srv.URL, whisper.WithModel("base.en"))
	tr, err := p.Recognize(context.Background(), makeSpeechPCM(8000), stt.AudioConfig{SampleRate: 16000, Channels: 1, Language: "fr"})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if tr.Text != "add task buy milk" {
		t.Errorf("Text = %q, want %q", tr.Text, "add task buy milk")
	}
	if tr.Duration != 500*time.Millisecond {
		t.Errorf("Duration = %v, want 500ms", tr.Duration)
	}

	mu.Lock()
	defer mu.Unlock()
	if fields["language"] != "fr" {
		t.Errorf("language field = %q, want fr", fields["language"])
	}
	if fields["model"] != "base.en" {
		t.Errorf("model field = %q, want base.en", fields["model"])
	}
	pcm, f, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("uploaded file is not a WAV: %v", err)
	}
	if f != audio.CaptureFormat {
		t.Errorf("uploaded format = %v, want %v", f, audio.CaptureFormat)
	}
	if len(pcm) == 0 {
		t.Error("uploaded WAV has no samples")
	}
}

func TestRecognize_SilenceSkipsInference(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := newMockServer(t, "unexpected", &calls)

	p, _ := whisper.New(srv.URL)
	_, err := p.Recognize(context.Background(), makeSilencePCM(16000), mono16k)
	if !errors.Is(err, stt.ErrNoSpeech) {
		t.Errorf("err = %v, want ErrNoSpeech", err)
	}
	if _, err := p.Recognize(context.Background(), nil, mono16k); !errors.Is(err, stt.ErrNoSpeech) {
		t.Errorf("empty audio err = %v, want ErrNoSpeech", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("inference called %d time(s) for silence-only audio; want 0", n)
	}
}

func TestRecognize_TrimsSilence(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		uploaded int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		pcm, _, _ := audio.DecodeWAV(data)
		mu.Lock()
		uploaded = len(pcm)
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "list tasks"})
	}))
	t.Cleanup(srv.Close)

	// 2 s silence, 0.5 s tone, 2 s silence.
	pcm := concat(makeSilencePCM(32000), makeSpeechPCM(8000), makeSilencePCM(32000))
	p, _ := whisper.New(srv.URL)
	if _, err := p.Recognize(context.Background(), pcm, mono16k); err != nil {
		t.Fatalf("Recognize: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	// Tone plus up to 200 ms padding on each side.
	if limit := (8000 + 2*3200 + 320) * 2; uploaded > limit || uploaded < 8000*2 {
		t.Errorf("uploaded %d bytes, want between %d and %d", uploaded, 8000*2, limit)
	}
}

func TestRecognize_BlankMarkerIsNoSpeech(t *testing.T) {
	t.Parallel()

	srv := newMockServer(t, " [BLANK_AUDIO] ", nil)
	p, _ := whisper.New(srv.URL)
	_, err := p.Recognize(context.Background(), makeSpeechPCM(1600), mono16k)
	if !errors.Is(err, stt.ErrNoSpeech) {
		t.Errorf("err = %v, want ErrNoSpeech", err)
	}
}

func TestRecognize_ServerError(t *testing.T) {
	t.Parallel()

	tests := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
		"error field": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"error":"failed to read WAV"}`))
		},
		"bad json": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		},
	}
	for name, h := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(h)
			t.Cleanup(srv.Close)

			p, _ := whisper.New(srv.URL)
			_, err := p.Recognize(context.Background(), makeSpeechPCM(1600), mono16k)
			if !errors.Is(err, stt.ErrRecognition) {
				t.Errorf("err = %v, want ErrRecognition", err)
			}
		})
	}
}

func TestRecognize_ContextCancelled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	p, _ := whisper.New(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := p.Recognize(ctx, makeSpeechPCM(1600), mono16k)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestRecognize_Concurrent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := newMockServer(t, "how many tasks", &calls)
	p, _ := whisper.New(srv.URL)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Recognize(context.Background(), makeSpeechPCM(1600), mono16k); err != nil {
				t.Errorf("Recognize: %v", err)
			}
		}()
	}
	wg.Wait()
	if n := calls.Load(); n != 8 {
		t.Errorf("inference called %d times, want 8", n)
	}
}
