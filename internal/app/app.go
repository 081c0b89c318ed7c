// Package app wires all Vocalis subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the UI gateway and watches the config file, and
// Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore, WithInput,
// WithOutput, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/Shaxina0930/vocalis-app/internal/capture"
	"github.com/Shaxina0930/vocalis-app/internal/chat"
	"github.com/Shaxina0930/vocalis-app/internal/config"
	"github.com/Shaxina0930/vocalis-app/internal/executor"
	"github.com/Shaxina0930/vocalis-app/internal/gateway"
	"github.com/Shaxina0930/vocalis-app/internal/health"
	"github.com/Shaxina0930/vocalis-app/internal/observe"
	"github.com/Shaxina0930/vocalis-app/internal/orchestrator"
	"github.com/Shaxina0930/vocalis-app/internal/playback"
	"github.com/Shaxina0930/vocalis-app/internal/taskstore"
	"github.com/Shaxina0930/vocalis-app/pkg/audio"
	"github.com/Shaxina0930/vocalis-app/pkg/audio/portaudio"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/llm"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/stt"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/tts"
)

// serverShutdownTimeout bounds the HTTP server drain when Run's context ends.
const serverShutdownTimeout = 5 * time.Second

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	STT stt.Provider
	TTS tts.Provider
	LLM llm.Provider

	// Checks are readiness probes for the providers, typically one
	// [health.BreakerCheck] per fallback group.
	Checks []health.Checker
}

// App owns all subsystem lifetimes and orchestrates the Vocalis pipeline.
type App struct {
	cfg        *config.Config
	providers  *Providers
	configPath string

	logger  *slog.Logger
	level   *slog.LevelVar
	metrics *observe.Metrics
	fs      afero.Fs

	// Subsystems, initialised in New and torn down in Shutdown.
	store    taskstore.Store
	input    audio.Input
	output   audio.Output
	recorder *capture.Session
	player   *playback.Session
	replier  *replier
	exec     *executor.Executor
	orch     *orchestrator.Orchestrator
	gateway  *gateway.Server
	health   *health.Handler
	handler  http.Handler
	checks   []health.Checker

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a task store instead of creating one from config.
func WithStore(s taskstore.Store) Option {
	return func(a *App) { a.store = s }
}

// WithInput injects the microphone instead of opening PortAudio.
func WithInput(in audio.Input) Option {
	return func(a *App) { a.input = in }
}

// WithOutput injects the speaker instead of opening PortAudio.
func WithOutput(out audio.Output) Option {
	return func(a *App) { a.output = out }
}

// WithFs sets the filesystem used by the file store and recording dumps.
// Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(a *App) { a.fs = fs }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithLevel hands the app the level variable behind its logger so that a
// reloaded log_level takes effect immediately.
func WithLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithConfigPath enables hot reload of the file at path during Run.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		logger:    slog.Default(),
		fs:        afero.NewOsFs(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Task store ────────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Audio devices ─────────────────────────────────────────────────
	a.initAudio()

	// ── 3. Chat responder ────────────────────────────────────────────────
	a.initChat()

	// ── 4. Executor + orchestrator ───────────────────────────────────────
	if err := a.initOrchestrator(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init orchestrator: %w", err)
	}

	// ── 5. HTTP surface ──────────────────────────────────────────────────
	a.initHTTP()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore opens the configured task store unless one was injected.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	store, closeStore, err := OpenStore(ctx, a.cfg.Store, a.fs)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, func() error {
		closeStore()
		return nil
	})
	a.logger.Info("task store ready", "backend", a.cfg.Store.Backend)
	return nil
}

// OpenStore opens the task store selected by cfg. The returned func releases
// it and is never nil.
func OpenStore(ctx context.Context, cfg config.StoreConfig, fs afero.Fs) (taskstore.Store, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case config.StoreFile:
		s, err := taskstore.OpenFileStore(fs, cfg.Path)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, noop, fmt.Errorf("connect postgres: %w", err)
		}
		s := taskstore.NewPostgresStore(pool)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, noop, err
		}
		return s, pool.Close, nil

	default:
		return taskstore.NewMemStore(), noop, nil
	}
}

// initAudio builds the capture and playback sessions. PortAudio only touches
// the hardware when a stream opens, so building it here is free.
func (a *App) initAudio() {
	if a.input == nil || a.output == nil {
		host := portaudio.New(
			portaudio.WithInputDevice(a.cfg.Audio.InputDevice),
			portaudio.WithOutputDevice(a.cfg.Audio.OutputDevice),
		)
		if a.input == nil {
			a.input = host
		}
		if a.output == nil {
			a.output = host
		}
	}

	copts := []capture.Option{
		capture.WithFormat(audio.Format{SampleRate: a.cfg.Audio.SampleRate, Channels: 1}),
		capture.WithChunkBytes(a.cfg.Audio.ChunkBytes),
		capture.WithStopTimeout(a.cfg.Audio.StopTimeout),
		capture.WithLogger(a.logger),
		capture.WithMetrics(a.metrics),
	}
	if dir := a.cfg.Audio.DumpDir; dir != "" {
		copts = append(copts, capture.WithDump(a.fs, dir))
	}
	a.recorder = capture.New(a.input, copts...)

	if a.providers.TTS != nil {
		a.player = playback.New(a.providers.TTS, a.output,
			playback.WithLogger(a.logger),
			playback.WithMetrics(a.metrics),
		)
		a.closers = append(a.closers, a.player.Close)
	} else {
		a.logger.Warn("no TTS provider configured, replies will not be spoken")
	}
	if a.providers.STT == nil {
		a.logger.Warn("no STT provider configured, voice input disabled")
	}
}

// initChat builds the responder for utterances that are not commands.
func (a *App) initChat() {
	r := chat.New(
		chat.WithLLM(a.providers.LLM),
		chat.WithTasks(a.store),
		chat.WithLogger(a.logger),
		chat.WithMetrics(a.metrics),
	)
	a.replier = &replier{responder: r}
	a.replier.enabled.Store(a.cfg.Assistant.ChatFallback)
	if a.cfg.Assistant.ChatFallback && !r.Enabled() {
		a.logger.Warn("assistant.chat_fallback is set but no LLM provider is configured")
	}
}

// initOrchestrator builds the executor and the orchestrator.
func (a *App) initOrchestrator() error {
	a.exec = executor.New(a.store, executor.WithLogger(a.logger))

	c := orchestrator.Components{
		Recorder:   a.recorder,
		Recognizer: a.providers.STT,
		Executor:   a.exec,
		Responder:  a.replier,
	}
	if a.player != nil {
		c.Player = a.player
	}

	o, err := orchestrator.New(c,
		orchestrator.WithLogger(a.logger),
		orchestrator.WithMetrics(a.metrics),
		orchestrator.WithAudioConfig(a.recognitionConfig()),
		orchestrator.WithSpeakResponses(a.cfg.Assistant.Speak()),
		orchestrator.WithEcho(a.cfg.Assistant.Echo()),
	)
	if err != nil {
		return err
	}
	a.orch = o
	return nil
}

func (a *App) recognitionConfig() stt.AudioConfig {
	return stt.AudioConfig{
		SampleRate: a.cfg.Audio.SampleRate,
		Channels:   1,
		Language:   a.cfg.Providers.STT.OptionString("language"),
		Keywords:   stt.DefaultKeywords(),
	}
}

// initHTTP builds the gateway, health and metrics routes.
func (a *App) initHTTP() {
	a.gateway = gateway.New(a.orch,
		gateway.WithLogger(a.logger),
		gateway.WithMetrics(a.metrics),
	)

	a.checks = append(a.checks, a.storeCheck())
	a.checks = append(a.checks, a.providers.Checks...)
	a.health = health.New(a.checks...)

	mux := http.NewServeMux()
	a.gateway.Register(mux)
	a.health.Register(mux)
	mux.Handle("GET /metrics", observe.MetricsHandler())
	a.handler = observe.Middleware(a.metrics)(mux)
}

// storeCheck pings the store when it can, and lists it otherwise.
func (a *App) storeCheck() health.Checker {
	if p, ok := a.store.(health.Pinger); ok {
		return health.PingCheck("store", p)
	}
	return health.Checker{Name: "store", Check: func(ctx context.Context) error {
		_, err := a.store.List(ctx)
		return err
	}}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Handler returns the HTTP handler serving the gateway, health and metrics
// routes.
func (a *App) Handler() http.Handler { return a.handler }

// Orchestrator returns the interaction orchestrator.
func (a *App) Orchestrator() *orchestrator.Orchestrator { return a.orch }

// Executor returns the command executor bound to the task store.
func (a *App) Executor() *executor.Executor { return a.exec }

// Store returns the task store.
func (a *App) Store() taskstore.Store { return a.store }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and, if a config path was given, watches it for changes.
// It blocks until ctx is cancelled or the server fails, and returns
// context.Canceled (or the underlying cause) on a clean stop.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("http server listening", "addr", srv.Addr, "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: http server: %w", err)
	})

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.applyConfig, config.WithWatcherLogger(a.logger))
		if err != nil {
			a.logger.Warn("config hot reload disabled", "path", a.configPath, "err", err)
		} else {
			g.Go(func() error {
				<-gctx.Done()
				w.Stop()
				return nil
			})
		}
	}

	a.logger.Info("app running", "stt", a.providers.STT != nil, "tts", a.player != nil)
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// applyConfig applies the live-reloadable parts of a new config.
func (a *App) applyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.Empty() {
		return
	}
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(LogLevel(d.NewLogLevel))
		a.logger.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.AssistantChanged {
		if err := a.orch.SetSpeakResponses(d.NewAssistant.Speak()); err != nil {
			a.logger.Warn("apply speak_responses", "err", err)
		}
		if err := a.orch.SetEcho(d.NewAssistant.Echo()); err != nil {
			a.logger.Warn("apply echo_transcript", "err", err)
		}
		a.replier.enabled.Store(d.NewAssistant.ChatFallback)
		a.logger.Info("assistant settings reloaded",
			"speak_responses", d.NewAssistant.Speak(),
			"echo_transcript", d.NewAssistant.Echo(),
			"chat_fallback", d.NewAssistant.ChatFallback,
		)
	}
	if len(d.RestartRequired) > 0 {
		a.logger.Warn("config changes require a restart", "sections", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the orchestrator, then tears down the remaining subsystems
// in reverse-init order. It respects the context deadline: if ctx expires
// before all closers finish, remaining closers are skipped and the context
// error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down", "closers", len(a.closers))

		if a.orch != nil {
			if err := a.orch.Close(); err != nil {
				a.logger.Warn("orchestrator close error", "err", err)
			}
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.logger.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				a.logger.Warn("closer error", "index", i, "err", err)
			}
		}

		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll runs the closers registered so far after a failed New.
func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// LogLevel converts a config level to its slog equivalent.
func LogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// replier gates the model responder behind the live chat_fallback flag.
type replier struct {
	responder *chat.Responder
	enabled   atomic.Bool
}

func (r *replier) Reply(ctx context.Context, text string) string {
	if !r.enabled.Load() {
		return chat.Fallback(text)
	}
	return r.responder.Reply(ctx, text)
}
