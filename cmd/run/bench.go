package run

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Mmx233/FSearch/bench"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Run a load test against the server",
		Args:  cobra.NoArgs,
		RunE:  runBench,
	}
)

func runBench(cmd *cobra.Command, args []string) error {
	logger := log.With().Str("com", "bench-cmd").Logger()

	cfg, err := loadBenchConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := bench.New(cfg).Run(ctx)
	if err != nil {
		return err
	}
	report.Log(logger)

	if cfg.Report == "" {
		return report.WriteJSON(cmd.OutOrStdout())
	}

	f, err := os.Create(cfg.Report)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()
	if err := report.WriteJSON(f); err != nil {
		return err
	}
	logger.Info().Str("file", cfg.Report).Msg("report written")
	return nil
}
