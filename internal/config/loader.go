package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the built-in provider names per provider kind.
// [Validate] warns about names outside this list; they may still be
// registered by a third party.
var ValidProviderNames = map[string][]string{
	"stt": {"google", "whisper", "whisper-native", "openai", "deepgram"},
	"tts": {"google", "openai", "elevenlabs", "coqui"},
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. Unknown keys are rejected. An empty document yields
// the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts.name is required"))
	}
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	for kind, list := range map[string][]ProviderEntry{"stt": cfg.Fallbacks.STT, "tts": cfg.Fallbacks.TTS, "llm": cfg.Fallbacks.LLM} {
		for i, e := range list {
			if e.Name == "" {
				errs = append(errs, fmt.Errorf("fallbacks.%s[%d].name is required", kind, i))
				continue
			}
			validateProviderName(kind, e.Name)
		}
	}
	if len(cfg.Fallbacks.LLM) > 0 && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("fallbacks.llm requires providers.llm"))
	}
	if cfg.Assistant.ChatFallback && cfg.Providers.LLM.Name == "" {
		slog.Warn("assistant.chat_fallback is enabled but providers.llm is not configured; replies will echo the transcript")
	}

	// Audio
	// Recognizers and the command pipeline expect 16 kHz mono PCM.
	if cfg.Audio.SampleRate != DefaultSampleRate {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is not supported; capture is fixed at %d Hz", cfg.Audio.SampleRate, DefaultSampleRate))
	}
	if cfg.Audio.ChunkBytes <= 0 || cfg.Audio.ChunkBytes%2 != 0 {
		errs = append(errs, fmt.Errorf("audio.chunk_bytes %d must be a positive even number", cfg.Audio.ChunkBytes))
	}
	if cfg.Audio.StopTimeout < 0 {
		errs = append(errs, fmt.Errorf("audio.stop_timeout %s must not be negative", cfg.Audio.StopTimeout))
	}

	// Store
	switch {
	case !cfg.Store.Backend.IsValid():
		errs = append(errs, fmt.Errorf("store.backend %q is invalid; valid values: memory, file, postgres", cfg.Store.Backend))
	case cfg.Store.Backend == StoreFile && cfg.Store.Path == "":
		errs = append(errs, errors.New("store.path is required for the file backend"))
	case cfg.Store.Backend == StorePostgres && cfg.Store.PostgresDSN == "":
		errs = append(errs, errors.New("store.postgres_dsn is required for the postgres backend"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	if slices.Contains(ValidProviderNames[kind], name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", ValidProviderNames[kind],
	)
}
