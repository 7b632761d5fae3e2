// Package purchase implements the single-flight purchase pipeline: the
// pre-flight affordability gate and the coordinator that turns a detected
// listing into a funds transfer.
package purchase

import (
	"log/slog"

	"github.com/vkoval/fragsnipe/internal/common"
	"github.com/vkoval/fragsnipe/internal/model"
)

// CheckAffordability is the pre-flight gate run once before a monitoring
// session starts. When at least one listing within the price ceiling
// exists, the balance must cover the cheapest of them. When nothing is
// affordable yet, monitoring may still start speculatively, but only if
// the balance covers the ceiling itself, since any listing up to that
// price is a potential target.
func CheckAffordability(maxPriceTON int64, listings []model.Listing, balanceNano int64) error {
	balanceTON := balanceNano / model.NanoPerTON

	cheapest, ok := model.CheapestAffordable(listings, maxPriceTON)
	if !ok {
		if balanceTON < maxPriceTON {
			return &common.InsufficientFundsError{RequiredTON: maxPriceTON, AvailableTON: balanceTON}
		}
		slog.Info("No listings within price range yet, starting speculatively",
			"max_price_ton", maxPriceTON, "balance_ton", balanceTON)
		return nil
	}

	if balanceTON < *cheapest.PriceTON {
		return &common.InsufficientFundsError{RequiredTON: *cheapest.PriceTON, AvailableTON: balanceTON}
	}

	slog.Info("Affordability pre-check passed",
		"max_price_ton", maxPriceTON,
		"cheapest_ton", *cheapest.PriceTON,
		"balance_ton", balanceTON)

	return nil
}
