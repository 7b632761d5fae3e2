package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Monitor the marketplace and buy automatically",
		Long: `Run the affordability pre-check, then poll the sale listings on a
fixed interval. Every genuinely new or repriced listing within the
price ceiling triggers a single-flight purchase from the wallet.`,
		RunE: runWatch,
	}

	cmd.Flags().Int64P("max-price", "p", 0, "Price ceiling in TON (required)")
	cmd.Flags().DurationP("interval", "i", time.Second, "Polling interval")
	cmd.Flags().StringP("kind", "k", "numbers", "Listing kind (numbers, usernames)")

	_ = viper.BindPFlag("monitor.max_price_ton", cmd.Flags().Lookup("max-price"))
	_ = viper.BindPFlag("monitor.interval", cmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag("monitor.kind", cmd.Flags().Lookup("kind"))

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	maxPrice := viper.GetInt64("monitor.max_price_ton")
	if maxPrice <= 0 {
		return fmt.Errorf("--max-price must be > 0")
	}
	kind, err := parseKind(viper.GetString("monitor.kind"))
	if err != nil {
		return err
	}
	interval := viper.GetDuration("monitor.interval")
	if interval <= 0 {
		interval = time.Second
	}

	svc, cleanup, err := initService(true)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()

	status, err := svc.StartMonitoring(ctx, kind, maxPrice, interval)
	if err != nil {
		return fmt.Errorf("failed to start monitoring: %w", err)
	}

	slog.Info("Watching marketplace",
		"kind", kind,
		"max_price_ton", maxPrice,
		"interval", interval,
		"balance_nano", status.BalanceNano)

	// Run until interrupted or the session stops itself (insufficient
	// funds, safety floor reached).
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for svc.MonitorRunning() {
		select {
		case <-ctx.Done():
			svc.StopMonitoring()
			return nil
		case <-ticker.C:
		}
	}

	svc.StopMonitoring()
	slog.Info("Monitoring session ended")

	return nil
}
