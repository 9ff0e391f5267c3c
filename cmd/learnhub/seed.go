package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/learnhub/internal/learning/engine"
	"github.com/yungbote/learnhub/internal/learning/theta"
)

var seedCmd = &cobra.Command{
	Use:   "seed <index.json>",
	Short: "Register every lesson of a compiled lesson index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		if _, err := os.Stat(args[0]); err != nil {
			return fmt.Errorf("lesson index: %w", err)
		}
		catalog, err := theta.LoadCatalog(args[0])
		if err != nil {
			return err
		}
		seeds := make([]engine.LessonSeed, 0, len(catalog.Lessons))
		for _, l := range catalog.Lessons {
			seeds = append(seeds, engine.LessonSeed{
				LessonID:   l.LessonID,
				Difficulty: l.Difficulty,
				Skill:      l.Skill,
			})
		}

		eng := openEngine(cfg, log)
		added, err := eng.SeedLessons(cmd.Context(), seeds)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d new lessons (%d in index)\n", added, len(seeds))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print counts from the hub state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()
		return printJSON(cmd.OutOrStdout(), openEngine(cfg, log).Status())
	},
}

func init() {
	rootCmd.AddCommand(seedCmd, statusCmd)
}
