package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/horsie/harvester/internal/candidate"
)

// clockNow resolves an unset candidates.year; tests pin it.
var clockNow = time.Now

func newCandidatesCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "Print the candidate identifier sequence size and its first ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config()
			tables := cfg.Tables(clockNow())
			if err := tables.Validate(); err != nil {
				return fmt.Errorf("validate tables: %w", err)
			}
			ids := candidate.Generate(tables)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "year %d: %d candidates (%d probed per run)\n",
				tables.Year, len(ids), min(len(ids), cfg.Schedule.MaxCandidates))
			for _, id := range ids[:min(limit, len(ids))] {
				fmt.Fprintf(out, "%s  %s R%d\n", id, candidate.TrackName(id.Venue()), id.RaceNumber())
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "how many leading ids to print")
	return cmd
}
