// Command dataops answers questions about GitHub repositories with
// BigQuery: it writes the SQL, explains what running it costs, and runs it
// once the user agrees.
//
// Usage:
//
//	dataops serve            agent API, browser UI and metrics
//	dataops chat             terminal UI
//	dataops ask "question"   one-shot answer on stdout
//
// Configuration is read from the environment, after loading .env and
// dataops/.env when present.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fwojciec/dataops/metrics"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

// Set by the linker.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "dataops",
	Short:         "Ask questions about GitHub repositories, answered with BigQuery",
	Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(serveCmd, chatCmd, askCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "dataops: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and creates a logger writing to w.
func setup(w io.Writer) (Config, *slog.Logger, error) {
	if err := loadEnvFiles(envFiles...); err != nil {
		return Config{}, nil, err
	}
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		return Config{}, nil, err
	}
	if verbose {
		cfg.LogLevel = slog.LevelDebug
	}
	log := newLogger(w, cfg.LogLevel)
	slog.SetDefault(log)
	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
	return cfg, log, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}
