package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/horsie/harvester/internal/report"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one harvest and write the dataset",
		Long: `Generates candidate identifiers, fetches and validates each entry page in
batches, writes races.json and summary.json, and prints a breakdown.
Interrupting the run stops it between batches without writing artifacts.`,
		Args: cobra.NoArgs,
		RunE: runHarvest,
	}
}

func runHarvest(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	h, err := appInstance.Harvester()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ds, err := h.Run(ctx)
	if err != nil {
		return fmt.Errorf("run harvest: %w", err)
	}
	if err := report.Render(cmd.OutOrStdout(), ds); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
