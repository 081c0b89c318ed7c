// Command vocalis is the entry point for the Vocalis voice task assistant.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Shaxina0930/vocalis-app/internal/app"
	"github.com/Shaxina0930/vocalis-app/internal/config"
)

// version is overridden at build time with -ldflags "-X main.version=…".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "vocalis: %v\n", err)
		return 1
	}
	return 0
}

// ── Commands ─────────────────────────────────────────────────────────────────

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vocalis",
		Short:         "Voice-driven task assistant",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "config.yaml", "path to the YAML configuration file")

	root.AddCommand(serveCmd())
	root.AddCommand(parseCmd())
	root.AddCommand(tasksCmd())
	root.AddCommand(mcpCmd())
	return root
}

// ── Config + logger ──────────────────────────────────────────────────────────

// loadConfig reads the file named by --config.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, path, fmt.Errorf("config file %q not found, copy configs/example.yaml to get started", path)
		}
		return nil, path, err
	}
	return cfg, path, nil
}

// newLogger builds a text logger on w whose level follows v.
func newLogger(w io.Writer, level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	v := new(slog.LevelVar)
	v.Set(app.LogLevel(level))
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: v})), v
}
