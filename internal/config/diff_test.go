package config_test

import (
	"slices"
	"testing"

	"github.com/Shaxina0930/vocalis-app/internal/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{
		Providers: config.ProvidersConfig{
			STT: config.ProviderEntry{Name: "whisper", Options: map[string]any{"language": "en"}},
			TTS: config.ProviderEntry{Name: "google"},
		},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mutate      func(*config.Config)
		wantLog     bool
		wantAssist  bool
		wantRestart []string
	}{
		{name: "identical", mutate: func(*config.Config) {}},
		{
			name:    "log level",
			mutate:  func(c *config.Config) { c.Server.LogLevel = config.LogDebug },
			wantLog: true,
		},
		{
			name:       "assistant flags",
			mutate:     func(c *config.Config) { c.Assistant.ChatFallback = true },
			wantAssist: true,
		},
		{
			name:        "listen addr",
			mutate:      func(c *config.Config) { c.Server.ListenAddr = ":9999" },
			wantRestart: []string{"server"},
		},
		{
			name: "provider option and store",
			mutate: func(c *config.Config) {
				c.Providers.STT.Options = map[string]any{"language": "de"}
				c.Store.Backend = config.StorePostgres
			},
			wantRestart: []string{"providers", "store"},
		},
		{
			name: "fallback and audio",
			mutate: func(c *config.Config) {
				c.Fallbacks.TTS = []config.ProviderEntry{{Name: "coqui"}}
				c.Audio.ChunkBytes = 1024
			},
			wantRestart: []string{"fallbacks", "audio"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			old, updated := baseConfig(), baseConfig()
			tt.mutate(updated)

			d := config.Diff(old, updated)
			if d.LogLevelChanged != tt.wantLog {
				t.Errorf("LogLevelChanged = %v, want %v", d.LogLevelChanged, tt.wantLog)
			}
			if tt.wantLog && d.NewLogLevel != updated.Server.LogLevel {
				t.Errorf("NewLogLevel = %q", d.NewLogLevel)
			}
			if d.AssistantChanged != tt.wantAssist {
				t.Errorf("AssistantChanged = %v, want %v", d.AssistantChanged, tt.wantAssist)
			}
			if tt.wantAssist && d.NewAssistant != updated.Assistant {
				t.Errorf("NewAssistant = %+v", d.NewAssistant)
			}
			if !slices.Equal(d.RestartRequired, tt.wantRestart) {
				t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, tt.wantRestart)
			}
			wantEmpty := !tt.wantLog && !tt.wantAssist && len(tt.wantRestart) == 0
			if d.Empty() != wantEmpty {
				t.Errorf("Empty() = %v, want %v", d.Empty(), wantEmpty)
			}
		})
	}
}
