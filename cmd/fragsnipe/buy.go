package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vkoval/fragsnipe/internal/model"
)

func buyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buy <item-id>",
		Short: "Buy one listing immediately",
		Long: `Run a single purchase attempt for the given item. Without --bid the
current listed price is used; the item must then still be on sale.`,
		Args: cobra.ExactArgs(1),
		RunE: runBuy,
	}

	cmd.Flags().Int64P("bid", "b", 0, "Bid amount in TON (default: current listed price)")
	cmd.Flags().StringP("kind", "k", "numbers", "Listing kind (numbers, usernames)")

	_ = viper.BindPFlag("buy.bid", cmd.Flags().Lookup("bid"))
	_ = viper.BindPFlag("buy.kind", cmd.Flags().Lookup("kind"))

	return cmd
}

func runBuy(cmd *cobra.Command, args []string) error {
	itemID := args[0]
	kind, err := parseKind(viper.GetString("buy.kind"))
	if err != nil {
		return err
	}

	var bid *int64
	if b := viper.GetInt64("buy.bid"); b > 0 {
		bid = &b
	}

	svc, cleanup, err := initService(true)
	if err != nil {
		return err
	}
	defer cleanup()

	outcome, err := svc.Purchase(cmd.Context(), kind, itemID, bid)
	if err != nil {
		return err
	}

	switch outcome.Status {
	case model.TransferSent:
		slog.Info("Purchase sent", "item_id", itemID, "tx_ref", outcome.TxRef, "tag", outcome.Tag)
		return nil
	case model.TransferInsufficient:
		return fmt.Errorf("insufficient balance: need %d nano, have %d nano",
			outcome.RequiredNano, outcome.AvailableNano)
	case model.TransferRejected:
		return fmt.Errorf("transfer rejected: %s", outcome.Reason)
	default:
		return fmt.Errorf("purchase failed (%s): %s", outcome.Kind, outcome.Detail)
	}
}
