package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yungbote/learnhub/internal/app"
	"github.com/yungbote/learnhub/internal/jobs/skillgraph_refresh"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Fold new completion events and publish the skill graph once",
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
		defer a.Close(context.WithoutCancel(cmd.Context()))

		res, err := a.Pipeline.Run(cmd.Context(), skillgraph_refresh.TriggerCLI)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
