package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Shaxina0930/vocalis-app/internal/app"
	"github.com/Shaxina0930/vocalis-app/internal/chat"
	"github.com/Shaxina0930/vocalis-app/internal/command"
	"github.com/Shaxina0930/vocalis-app/internal/config"
	"github.com/Shaxina0930/vocalis-app/internal/executor"
	"github.com/Shaxina0930/vocalis-app/internal/mcp/taskserver"
	"github.com/Shaxina0930/vocalis-app/internal/observe"
	"github.com/Shaxina0930/vocalis-app/internal/taskstore"
)

// ── serve ────────────────────────────────────────────────────────────────────

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant with microphone, speaker and the web UI gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			logger, level := newLogger(os.Stderr, cfg.Server.LogLevel)
			slog.SetDefault(logger)
			slog.Info("vocalis starting",
				"config", path,
				"listen_addr", cfg.Server.ListenAddr,
				"log_level", cfg.Server.LogLevel,
				"version", version,
			)

			stopTelemetry, err := startTelemetry(ctx)
			if err != nil {
				return err
			}
			defer stopTelemetry()

			reg := config.NewRegistry()
			registerBuiltinProviders(reg)
			providers, err := buildProviders(cfg, reg, logger)
			if err != nil {
				return fmt.Errorf("build providers: %w", err)
			}

			printStartupSummary(cmd.OutOrStdout(), cfg)

			application, err := app.New(ctx, cfg, providers,
				app.WithLogger(logger),
				app.WithLevel(level),
				app.WithConfigPath(path),
			)
			if err != nil {
				return fmt.Errorf("initialise application: %w", err)
			}

			slog.Info("server ready, press Ctrl+C to shut down")
			runErr := application.Run(ctx)
			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				slog.Error("run error", "err", runErr)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			slog.Info("shutdown signal received, stopping…")
			if err := application.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			slog.Info("goodbye")
			if errors.Is(runErr, context.Canceled) {
				return nil
			}
			return runErr
		},
	}
}

// startTelemetry installs the global meter and tracer providers. The returned
// func flushes them with a bounded timeout.
func startTelemetry(ctx context.Context) (func(), error) {
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "vocalis",
		ServiceVersion: version,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}, nil
}

func printStartupSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(w, "║         Vocalis · startup summary     ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════╣")
	printProvider(w, "STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider(w, "TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider(w, "LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	fmt.Fprintf(w, "║  Fallbacks       : %-19d ║\n",
		len(cfg.Fallbacks.STT)+len(cfg.Fallbacks.TTS)+len(cfg.Fallbacks.LLM))
	fmt.Fprintf(w, "║  Task store      : %-19s ║\n", cfg.Store.Backend)
	if cfg.Server.ListenAddr != "" {
		fmt.Fprintf(w, "║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Fprintln(w, "╚═══════════════════════════════════════╝")
}

func printProvider(w io.Writer, kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", kind, value)
}

// ── parse ────────────────────────────────────────────────────────────────────

// parsedIntent is the JSON shape printed by the parse command.
type parsedIntent struct {
	Kind       string `json:"kind"`
	Title      string `json:"title,omitempty"`
	Date       string `json:"date,omitempty"`
	Time       string `json:"time,omitempty"`
	Identifier string `json:"identifier,omitempty"`
}

func describeIntent(in command.Intent) parsedIntent {
	out := parsedIntent{Kind: in.Kind().String()}
	switch v := in.(type) {
	case command.AddTask:
		out.Title = v.Title
		if v.Date != nil {
			out.Date = v.Date.String()
		}
		if v.Time != nil {
			out.Time = v.Time.String()
		}
	case command.DeleteTask:
		out.Identifier = v.Identifier
	}
	return out
}

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <text...>",
		Short: "Classify a transcript and print the resulting intent as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := command.Parse(strings.Join(args, " "), time.Now())
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(describeIntent(in))
		},
	}
}

// ── tasks ────────────────────────────────────────────────────────────────────

func tasksCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and edit the configured task store",
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print every task",
			Args:  cobra.NoArgs,
			RunE: withStore(func(cmd *cobra.Command, _ []string, exec *executor.Executor) error {
				tasks, err := exec.Store().List(cmd.Context())
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if len(tasks) == 0 {
					fmt.Fprintln(w, executor.ResponseNoTasks)
					return nil
				}
				for i, t := range tasks {
					fmt.Fprintf(w, "%d. %s\n", i+1, formatTask(t))
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "add <text...>",
			Short: `Add a task, e.g. "buy milk tomorrow at 5 pm"`,
			Args:  cobra.MinimumNArgs(1),
			RunE: withStore(func(cmd *cobra.Command, args []string, exec *executor.Executor) error {
				in := command.Parse("add task "+strings.Join(args, " "), time.Now())
				return respond(cmd, exec, in)
			}),
		},
		&cobra.Command{
			Use:   "delete <position|title>",
			Short: "Delete a task by its 1-based position or title",
			Args:  cobra.MinimumNArgs(1),
			RunE: withStore(func(cmd *cobra.Command, args []string, exec *executor.Executor) error {
				return respond(cmd, exec, command.DeleteTask{Identifier: strings.Join(args, " ")})
			}),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every task",
			Args:  cobra.NoArgs,
			RunE: withStore(func(cmd *cobra.Command, _ []string, exec *executor.Executor) error {
				return respond(cmd, exec, command.ClearAll{})
			}),
		},
	)
	return root
}

// withStore opens the configured store around fn.
func withStore(fn func(*cobra.Command, []string, *executor.Executor) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, _ := newLogger(cmd.ErrOrStderr(), cfg.Server.LogLevel)
		store, release, err := app.OpenStore(cmd.Context(), cfg.Store, afero.NewOsFs())
		if err != nil {
			return fmt.Errorf("open task store: %w", err)
		}
		defer release()
		return fn(cmd, args, executor.New(store, executor.WithLogger(logger)))
	}
}

func respond(cmd *cobra.Command, exec *executor.Executor, in command.Intent) error {
	res, err := exec.Execute(cmd.Context(), in)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Response)
	return nil
}

func formatTask(t taskstore.Task) string {
	s := t.Title
	if t.Date != nil {
		s += " (" + t.Date.String()
		if t.Time != nil {
			s += " " + t.Time.String()
		}
		s += ")"
	} else if t.Time != nil {
		s += " (" + t.Time.String() + ")"
	}
	return s
}

// ── mcp ──────────────────────────────────────────────────────────────────────

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the task tools over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			// stdout carries the protocol; everything else goes to stderr.
			logger, _ := newLogger(os.Stderr, cfg.Server.LogLevel)
			slog.SetDefault(logger)

			store, release, err := app.OpenStore(ctx, cfg.Store, afero.NewOsFs())
			if err != nil {
				return fmt.Errorf("open task store: %w", err)
			}
			defer release()

			opts := []taskserver.Option{taskserver.WithLogger(logger)}
			if cfg.Assistant.ChatFallback {
				reg := config.NewRegistry()
				registerBuiltinProviders(reg)
				model, err := buildLLM(cfg, reg, logger)
				if err != nil {
					return fmt.Errorf("build llm: %w", err)
				}
				if model != nil {
					responder := chat.New(
						chat.WithLLM(model),
						chat.WithTasks(store),
						chat.WithLogger(logger),
					)
					opts = append(opts, taskserver.WithReplier(responder.Reply))
				}
			}

			srv := taskserver.New(executor.New(store, executor.WithLogger(logger)), opts...)
			slog.Info("mcp server ready on stdio", "store", cfg.Store.Backend)
			return srv.ServeStdio(ctx)
		},
	}
}
