package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func walletCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wallet",
		Short: "Show wallet address and balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, cleanup, err := initService(false)
			if err != nil {
				return err
			}
			defer cleanup()

			status, err := svc.WalletStatus(cmd.Context())
			if err != nil {
				return err
			}

			slog.Info("Wallet status",
				"address", status.Address,
				"balance_nano", status.BalanceNano)
			return nil
		},
	}
}
