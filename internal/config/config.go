// Package config provides the configuration schema, loader, hot-reload
// watcher and provider registry for the Vocalis assistant.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// StoreBackend selects where tasks are persisted.
type StoreBackend string

const (
	// StoreMemory keeps tasks for the lifetime of the process.
	StoreMemory StoreBackend = "memory"

	// StoreFile keeps tasks in a JSON document on disk.
	StoreFile StoreBackend = "file"

	// StorePostgres keeps tasks in the PostgreSQL "tasks" table.
	StorePostgres StoreBackend = "postgres"
)

// IsValid reports whether b is a recognised backend.
func (b StoreBackend) IsValid() bool {
	switch b {
	case StoreMemory, StoreFile, StorePostgres:
		return true
	}
	return false
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr  = ":8080"
	DefaultSampleRate  = 16000
	DefaultChunkBytes  = 4096
	DefaultStopTimeout = time.Second
	DefaultTaskFile    = "tasks.json"
)

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Fallbacks FallbacksConfig `yaml:"fallbacks"`
	Audio     AudioConfig     `yaml:"audio"`
	Store     StoreConfig     `yaml:"store"`
	Assistant AssistantConfig `yaml:"assistant"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address for the UI gateway, health and metrics
	// endpoints (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Applied live on reload.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig selects the primary implementation for each pipeline
// stage. Each Name is looked up in the [Registry]. An empty LLM disables model
// chat replies.
type ProvidersConfig struct {
	STT ProviderEntry `yaml:"stt"`
	TTS ProviderEntry `yaml:"tts"`
	LLM ProviderEntry `yaml:"llm"`
}

// FallbacksConfig lists additional providers tried in order, each behind its
// own circuit breaker, when the primary fails.
type FallbacksConfig struct {
	STT []ProviderEntry `yaml:"stt"`
	TTS []ProviderEntry `yaml:"tts"`
	LLM []ProviderEntry `yaml:"llm"`
}

// ProviderEntry is the configuration block shared by all provider types.
type ProviderEntry struct {
	// Name selects the registered implementation (e.g., "google", "whisper").
	Name string `yaml:"name"`

	// APIKey authenticates against the provider's API, if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the provider (e.g., "whisper-1").
	Model string `yaml:"model"`

	// Options holds provider-specific values such as "voice" or "language".
	Options map[string]any `yaml:"options"`
}

// OptionString returns Options[key] as a string, or "" when it is missing or
// not a string.
func (e ProviderEntry) OptionString(key string) string {
	s, _ := e.Options[key].(string)
	return s
}

// OptionFloat returns Options[key] as a float64. YAML integers are accepted.
func (e ProviderEntry) OptionFloat(key string) (float64, bool) {
	switch v := e.Options[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// AudioConfig controls the microphone and speaker.
type AudioConfig struct {
	// SampleRate of the captured PCM. Default 16000.
	SampleRate int `yaml:"sample_rate"`

	// ChunkBytes is the size of one microphone read. Default 4096.
	ChunkBytes int `yaml:"chunk_bytes"`

	// StopTimeout bounds how long stopping a recording waits for the reader.
	// Default 1s.
	StopTimeout time.Duration `yaml:"stop_timeout"`

	// InputDevice and OutputDevice name a device; empty selects the system
	// default.
	InputDevice  string `yaml:"input_device"`
	OutputDevice string `yaml:"output_device"`

	// DumpDir, when set, receives a WAV copy of every recording.
	DumpDir string `yaml:"dump_dir"`
}

// StoreConfig selects the task store backend.
type StoreConfig struct {
	// Backend is memory, file or postgres. Default memory.
	Backend StoreBackend `yaml:"backend"`

	// Path is the JSON document used by the file backend.
	Path string `yaml:"path"`

	// PostgresDSN is the connection string used by the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// AssistantConfig holds behaviour flags. All of them are applied live on
// reload.
type AssistantConfig struct {
	// SpeakResponses speaks every assistant reply through the synthesizer.
	// Defaults to true.
	SpeakResponses *bool `yaml:"speak_responses"`

	// EchoTranscript appends the recognised text to the chat log as a
	// "You" message.
	EchoTranscript *bool `yaml:"echo_transcript"`

	// ChatFallback enables LLM replies for utterances that are not commands.
	// Without it every such utterance gets the fixed echo reply.
	ChatFallback bool `yaml:"chat_fallback"`
}

// Speak reports whether replies are spoken. Defaults to true.
func (a AssistantConfig) Speak() bool {
	return a.SpeakResponses == nil || *a.SpeakResponses
}

// Echo reports whether transcripts are echoed. Defaults to true.
func (a AssistantConfig) Echo() bool {
	return a.EchoTranscript == nil || *a.EchoTranscript
}

// ApplyDefaults fills every unset field with its default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = DefaultSampleRate
	}
	if cfg.Audio.ChunkBytes == 0 {
		cfg.Audio.ChunkBytes = DefaultChunkBytes
	}
	if cfg.Audio.StopTimeout == 0 {
		cfg.Audio.StopTimeout = DefaultStopTimeout
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreMemory
	}
	if cfg.Store.Backend == StoreFile && cfg.Store.Path == "" {
		cfg.Store.Path = DefaultTaskFile
	}
}
