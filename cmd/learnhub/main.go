package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/learnhub/internal/app"
	"github.com/yungbote/learnhub/internal/learning/engine"
	"github.com/yungbote/learnhub/internal/platform/logger"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:           "learnhub",
		Short:         "Offline-first adaptive learning hub",
		Long:          "learnhub schedules lessons for students on a local hub and mines a shared skill graph from lesson completions.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("LEARNHUB_CONFIG"), "path to a YAML config file")
	rootCmd.Version = app.Version
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads the config and builds the process logger.
func setup() (app.Config, *logger.Logger, error) {
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return app.Config{}, nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return app.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

// openEngine loads the hub state without the rest of the service.
func openEngine(cfg app.Config, log *logger.Logger) *engine.Engine {
	return engine.New(engine.Config{
		StatePath: cfg.StatePath,
		HubID:     cfg.HubID,
		Hyper:     cfg.Engine,
	}, log, nil)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
