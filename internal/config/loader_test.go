package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Shaxina0930/vocalis-app/internal/config"
)

const sampleYAML = `
server:
  listen_addr: ":9090"
  log_level: debug

providers:
  stt:
    name: whisper
    base_url: http://localhost:8081
    options:
      language: en
  tts:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini-tts
    options:
      voice: alloy
  llm:
    name: ollama
    model: llama3.2

fallbacks:
  stt:
    - name: google
      api_key: g-test
  tts:
    - name: coqui
      base_url: http://localhost:5002

audio:
  sample_rate: 16000
  chunk_bytes: 2048
  stop_timeout: 500ms
  dump_dir: /tmp/vocalis

store:
  backend: file
  path: /var/lib/vocalis/tasks.json

assistant:
  speak_responses: true
  chat_fallback: true
`

func TestLoadFromReader_Sample(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" || cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Providers.STT.Name != "whisper" || cfg.Providers.STT.OptionString("language") != "en" {
		t.Errorf("providers.stt = %+v", cfg.Providers.STT)
	}
	if cfg.Providers.TTS.OptionString("voice") != "alloy" {
		t.Errorf("providers.tts.options = %v", cfg.Providers.TTS.Options)
	}
	if len(cfg.Fallbacks.STT) != 1 || cfg.Fallbacks.STT[0].Name != "google" {
		t.Errorf("fallbacks.stt = %+v", cfg.Fallbacks.STT)
	}
	if cfg.Audio.ChunkBytes != 2048 || cfg.Audio.StopTimeout != 500*time.Millisecond {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if cfg.Store.Backend != config.StoreFile || cfg.Store.Path != "/var/lib/vocalis/tasks.json" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if !cfg.Assistant.Speak() || !cfg.Assistant.ChatFallback || !cfg.Assistant.Echo() {
		t.Errorf("assistant = %+v", cfg.Assistant)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(`
providers:
  stt: {name: google}
  tts: {name: google}
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("LogLevel = %q", cfg.Server.LogLevel)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.ChunkBytes != 4096 || cfg.Audio.StopTimeout != time.Second {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if cfg.Store.Backend != config.StoreMemory {
		t.Errorf("store.backend = %q", cfg.Store.Backend)
	}
	if !cfg.Assistant.Speak() || !cfg.Assistant.Echo() || cfg.Assistant.ChatFallback {
		t.Errorf("assistant defaults = %+v", cfg.Assistant)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(`
providers:
  stt: {name: google}
  tts: {name: google}
reminders: []
`))
	if err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestLoadFromReader_EmptyDocument(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(""))
	if err == nil || !strings.Contains(err.Error(), "providers.stt.name is required") {
		t.Fatalf("err = %v, want missing provider error", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *config.Config {
		cfg := &config.Config{
			Providers: config.ProvidersConfig{
				STT: config.ProviderEntry{Name: "google"},
				TTS: config.ProviderEntry{Name: "google"},
			},
		}
		config.ApplyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr []string
	}{
		{name: "valid", mutate: func(*config.Config) {}},
		{
			name:    "bad log level",
			mutate:  func(c *config.Config) { c.Server.LogLevel = "loud" },
			wantErr: []string{"server.log_level"},
		},
		{
			name:    "half tls",
			mutate:  func(c *config.Config) { c.Server.TLS = &config.TLSConfig{CertFile: "c.pem"} },
			wantErr: []string{"server.tls"},
		},
		{
			name: "missing providers",
			mutate: func(c *config.Config) {
				c.Providers.STT.Name = ""
				c.Providers.TTS.Name = ""
			},
			wantErr: []string{"providers.stt.name", "providers.tts.name"},
		},
		{
			name:    "unnamed fallback",
			mutate:  func(c *config.Config) { c.Fallbacks.TTS = []config.ProviderEntry{{}} },
			wantErr: []string{"fallbacks.tts[0].name"},
		},
		{
			name:    "llm fallback without primary",
			mutate:  func(c *config.Config) { c.Fallbacks.LLM = []config.ProviderEntry{{Name: "ollama"}} },
			wantErr: []string{"fallbacks.llm requires providers.llm"},
		},
		{
			name: "audio out of range",
			mutate: func(c *config.Config) {
				c.Audio.SampleRate = 4000
				c.Audio.ChunkBytes = 1023
				c.Audio.StopTimeout = -time.Second
			},
			wantErr: []string{"audio.sample_rate", "audio.chunk_bytes", "audio.stop_timeout"},
		},
		{
			name:    "sample rate other than 16 kHz",
			mutate:  func(c *config.Config) { c.Audio.SampleRate = 44100 },
			wantErr: []string{"audio.sample_rate 44100 is not supported"},
		},
		{
			name:    "unknown backend",
			mutate:  func(c *config.Config) { c.Store.Backend = "redis" },
			wantErr: []string{"store.backend"},
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *config.Config) { c.Store.Backend = config.StorePostgres },
			wantErr: []string{"store.postgres_dsn"},
		},
		{
			name: "file without path",
			mutate: func(c *config.Config) {
				c.Store.Backend = config.StoreFile
				c.Store.Path = ""
			},
			wantErr: []string{"store.path"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.mutate(cfg)
			err := config.Validate(cfg)
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err, want)
				}
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vocalis.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.LLM.Model != "llama3.2" {
		t.Errorf("llm model = %q", cfg.Providers.LLM.Model)
	}
}

func TestLoad_Missing(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("../../configs/example.yaml")
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if cfg.Store.Backend != config.StoreFile || len(cfg.Fallbacks.STT) != 1 {
		t.Errorf("unexpected example config: %+v", cfg)
	}
}
