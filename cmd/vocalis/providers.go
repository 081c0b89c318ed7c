package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/Shaxina0930/vocalis-app/internal/app"
	"github.com/Shaxina0930/vocalis-app/internal/config"
	"github.com/Shaxina0930/vocalis-app/internal/health"
	"github.com/Shaxina0930/vocalis-app/internal/resilience"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/llm"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/llm/anyllm"
	oallm "github.com/Shaxina0930/vocalis-app/pkg/provider/llm/openai"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/stt"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/stt/deepgram"
	googlestt "github.com/Shaxina0930/vocalis-app/pkg/provider/stt/google"
	oastt "github.com/Shaxina0930/vocalis-app/pkg/provider/stt/openai"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/stt/whisper"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/tts"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/tts/coqui"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/tts/elevenlabs"
	googletts "github.com/Shaxina0930/vocalis-app/pkg/provider/tts/google"
	oatts "github.com/Shaxina0930/vocalis-app/pkg/provider/tts/openai"
)

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("google", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []googlestt.Option
		if entry.BaseURL != "" {
			opts = append(opts, googlestt.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, googlestt.WithModel(entry.Model))
		}
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, googlestt.WithLanguage(lang))
		}
		return googlestt.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []oastt.Option
		if entry.BaseURL != "" {
			opts = append(opts, oastt.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, oastt.WithModel(entry.Model))
		}
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, oastt.WithLanguage(lang))
		}
		return oastt.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		if rms, ok := entry.OptionFloat("rms_threshold"); ok {
			opts = append(opts, whisper.WithRMSThreshold(rms))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.OptionString("model_path")
		}
		var opts []whisper.NativeOption
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		if rms, ok := entry.OptionFloat("rms_threshold"); ok {
			opts = append(opts, whisper.WithNativeRMSThreshold(rms))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("google", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []googletts.Option
		if entry.BaseURL != "" {
			opts = append(opts, googletts.WithBaseURL(entry.BaseURL))
		}
		if lang, voice := entry.OptionString("language"), entry.OptionString("voice"); lang != "" || voice != "" {
			opts = append(opts, googletts.WithVoice(lang, voice))
		}
		if rate, ok := entry.OptionFloat("sample_rate"); ok {
			opts = append(opts, googletts.WithSampleRate(int(rate)))
		}
		return googletts.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []oatts.Option
		if entry.BaseURL != "" {
			opts = append(opts, oatts.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, oatts.WithModel(entry.Model))
		}
		if voice := entry.OptionString("voice"); voice != "" {
			opts = append(opts, oatts.WithVoice(voice))
		}
		return oatts.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := entry.OptionString("output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		if voice := entry.OptionString("voice"); voice != "" {
			opts = append(opts, elevenlabs.WithVoice(voice))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if speaker := entry.OptionString("speaker"); speaker != "" {
			opts = append(opts, coqui.WithSpeaker(speaker))
		}
		if mode := entry.OptionString("api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		if org := entry.OptionString("organization"); org != "" {
			opts = append(opts, oallm.WithOrganization(org))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	})

	// The remaining hosted models share the same pattern through any-llm-go:
	// optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	for _, kind := range []string{"stt", "tts", "llm"} {
		for _, name := range reg.Names(kind) {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// named pairs a provider with its config name.
type named[T any] struct {
	name     string
	provider T
}

// instantiate creates the primary and every fallback of one kind. Names that
// are not registered are skipped with a warning; any other factory error is
// fatal.
func instantiate[T any](kind string, primary config.ProviderEntry, fallbacks []config.ProviderEntry, create func(config.ProviderEntry) (T, error)) ([]named[T], error) {
	var out []named[T]
	entries := append([]config.ProviderEntry{primary}, fallbacks...)
	for i, entry := range entries {
		if entry.Name == "" {
			continue
		}
		p, err := create(entry)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("provider not registered, skipping", "kind", kind, "name", entry.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create %s provider %q: %w", kind, entry.Name, err)
		}
		role := "primary"
		if i > 0 {
			role = "fallback"
		}
		slog.Info("provider created", "kind", kind, "name", entry.Name, "role", role)
		out = append(out, named[T]{name: entry.Name, provider: p})
	}
	return out, nil
}

// fallbackConfig is the breaker template shared by every provider group.
func fallbackConfig(logger *slog.Logger) resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  3,
			ResetTimeout: 30 * time.Second,
			Logger:       logger,
		},
		Logger: logger,
	}
}

// buildProviders instantiates all providers named in cfg using the registry
// and wraps each kind in a fallback group so that every backend sits behind
// a circuit breaker.
func buildProviders(cfg *config.Config, reg *config.Registry, logger *slog.Logger) (*app.Providers, error) {
	ps := &app.Providers{}
	fcfg := fallbackConfig(logger)

	stts, err := instantiate("stt", cfg.Providers.STT, cfg.Fallbacks.STT, reg.CreateSTT)
	if err != nil {
		return nil, err
	}
	if len(stts) > 0 {
		g := resilience.NewSTTFallback(stts[0].provider, stts[0].name, fcfg)
		for _, f := range stts[1:] {
			g.AddFallback(f.name, f.provider)
		}
		ps.STT = g
		ps.Checks = append(ps.Checks, health.BreakerCheck("stt", g.Healthy))
	}

	ttss, err := instantiate("tts", cfg.Providers.TTS, cfg.Fallbacks.TTS, reg.CreateTTS)
	if err != nil {
		return nil, err
	}
	if len(ttss) > 0 {
		g := resilience.NewTTSFallback(ttss[0].provider, ttss[0].name, fcfg)
		for _, f := range ttss[1:] {
			g.AddFallback(f.name, f.provider)
		}
		ps.TTS = g
		ps.Checks = append(ps.Checks, health.BreakerCheck("tts", g.Healthy))
	}

	llmProvider, err := buildLLM(cfg, reg, logger)
	if err != nil {
		return nil, err
	}
	ps.LLM = llmProvider

	return ps, nil
}

// buildLLM returns the fallback-wrapped model, or nil when none is configured.
func buildLLM(cfg *config.Config, reg *config.Registry, logger *slog.Logger) (llm.Provider, error) {
	llms, err := instantiate("llm", cfg.Providers.LLM, cfg.Fallbacks.LLM, reg.CreateLLM)
	if err != nil || len(llms) == 0 {
		return nil, err
	}
	g := resilience.NewLLMFallback(llms[0].provider, llms[0].name, fallbackConfig(logger))
	for _, f := range llms[1:] {
		g.AddFallback(f.name, f.provider)
	}
	return g, nil
}
