package main

import (
	"fmt"
	"log/slog"

	"github.com/vkoval/fragsnipe/internal/app"
	"github.com/vkoval/fragsnipe/internal/config"
	"github.com/vkoval/fragsnipe/internal/fragment"
	"github.com/vkoval/fragsnipe/internal/model"
	"github.com/vkoval/fragsnipe/internal/service"
	"github.com/vkoval/fragsnipe/internal/storage"
	"github.com/vkoval/fragsnipe/internal/ton"
)

// initService wires the application facade from resolved settings.
// The returned cleanup closes the attempt ledger.
func initService(withLedger bool) (*app.Service, func(), error) {
	settings, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	wallet, err := ton.New(settings.Wallet)
	if err != nil {
		return nil, nil, err
	}

	var ledger service.Ledger
	cleanup := func() {}
	if withLedger {
		l, err := storage.NewSQLiteLedger(settings.LedgerPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open attempt ledger: %w", err)
		}
		ledger = l
		cleanup = func() {
			if err := l.Close(); err != nil {
				slog.Warn("Failed to close ledger", "error", err)
			}
		}
	}

	clients := map[model.ListingKind]app.Clients{
		model.KindNumbers:   clientsFor(fragment.NewNumbersClient(settings.FragmentBaseURL, settings.FragmentCookies)),
		model.KindUsernames: clientsFor(fragment.NewUsernamesClient(settings.FragmentBaseURL, settings.FragmentCookies)),
	}

	return app.New(wallet, ledger, clients), cleanup, nil
}

func clientsFor(c *fragment.Client) app.Clients {
	return app.Clients{Source: c, Quotes: c}
}

// parseKind validates a --kind flag value.
func parseKind(raw string) (model.ListingKind, error) {
	switch raw {
	case string(model.KindNumbers):
		return model.KindNumbers, nil
	case string(model.KindUsernames):
		return model.KindUsernames, nil
	default:
		return "", fmt.Errorf("invalid kind %q (want numbers or usernames)", raw)
	}
}
