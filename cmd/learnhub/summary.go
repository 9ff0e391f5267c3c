package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/learnhub/internal/learning/federation"
	"github.com/yungbote/learnhub/internal/platform/fileutil"
	"github.com/yungbote/learnhub/internal/platform/hubtoken"
)

var (
	summaryOut string

	tokenHub   string
	tokenLevel string
	tokenTTL   time.Duration
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Exchange bandit summaries with other hubs through files",
}

var summaryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write this hub's bandit posterior summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		s, err := openEngine(cfg, log).ExportBanditSummary(cmd.Context())
		if err != nil {
			return err
		}
		if summaryOut == "" || summaryOut == "-" {
			return printJSON(cmd.OutOrStdout(), s)
		}
		if err := fileutil.WriteJSONAtomic(summaryOut, s); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote summary (sample size %d) to %s\n", s.SampleSize, summaryOut)
		return nil
	},
}

var summaryMergeCmd = &cobra.Command{
	Use:   "merge <summary.json>...",
	Short: "Fold summaries exported by other hubs into the local posterior",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		eng := openEngine(cfg, log)
		for _, path := range args {
			raw, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			var remote federation.Summary
			if err := json.Unmarshal(raw, &remote); err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			merged, err := eng.MergeRemoteSummary(cmd.Context(), remote, "cli")
			if err != nil {
				return fmt.Errorf("merge %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "merged %s from hub %q, sample size now %d\n", path, remote.HubID, merged.SampleSize)
		}
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a hub token for the federation endpoints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		hub := tokenHub
		if hub == "" {
			hub = cfg.HubID
		}
		level := tokenLevel
		if level == "" {
			level = cfg.Sentry.Level
		}
		ttl := cfg.Federation.TokenTTL
		if tokenTTL > 0 {
			ttl = tokenTTL
		}
		tok, err := hubtoken.NewSigner(cfg.Federation.Secret, ttl).Mint(hub, level)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	summaryExportCmd.Flags().StringVarP(&summaryOut, "out", "o", "", "output file (stdout when empty)")
	summaryCmd.AddCommand(summaryExportCmd, summaryMergeCmd)

	tokenCmd.Flags().StringVar(&tokenHub, "hub", "", "hub id to embed (defaults to this hub)")
	tokenCmd.Flags().StringVar(&tokenLevel, "level", "", "hub level to embed (defaults to sentry.level)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (defaults to federation.token_ttl)")

	rootCmd.AddCommand(summaryCmd, tokenCmd)
}
