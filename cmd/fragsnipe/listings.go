package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func listingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Dump the current sale snapshot",
		RunE:  runListings,
	}

	cmd.Flags().StringP("kind", "k", "numbers", "Listing kind (numbers, usernames)")
	_ = viper.BindPFlag("listings.kind", cmd.Flags().Lookup("kind"))

	return cmd
}

func runListings(cmd *cobra.Command, _ []string) error {
	kind, err := parseKind(viper.GetString("listings.kind"))
	if err != nil {
		return err
	}

	svc, cleanup, err := initService(false)
	if err != nil {
		return err
	}
	defer cleanup()

	listings, err := svc.Listings(cmd.Context(), kind)
	if err != nil {
		return err
	}

	slog.Info("Sale snapshot", "kind", kind, "count", len(listings))
	for _, l := range listings {
		price := int64(-1)
		if l.PriceTON != nil {
			price = *l.PriceTON
		}
		slog.Info("Listing",
			"id", l.ID,
			"label", l.DisplayLabel,
			"price_ton", price,
			"raw_price", l.RawPriceText,
			"status", l.Status)
	}

	return nil
}
