package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yungbote/learnhub/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hub API, analysis trigger and peer relay",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		a, err := app.New(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		// Close runs after the serve context is cancelled.
		defer a.Close(context.WithoutCancel(cmd.Context()))

		a.Log.Info("Starting hub", "addr", cfg.HTTP.Addr, "events_dir", cfg.Sentry.EventsDir)
		return a.Serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
