// Package app wires the monitor, affordability gate, purchase
// coordinator, and transfer engine into the operations exposed to
// transports.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vkoval/fragsnipe/internal/common"
	"github.com/vkoval/fragsnipe/internal/model"
	"github.com/vkoval/fragsnipe/internal/monitor"
	"github.com/vkoval/fragsnipe/internal/purchase"
	"github.com/vkoval/fragsnipe/internal/service"
	"github.com/vkoval/fragsnipe/internal/transfer"
)

// purchaseTimeout bounds one whole purchase pipeline run triggered by a
// detected listing.
const purchaseTimeout = 60 * time.Second

// safetyFloorNano is the residual balance below which monitoring stops
// after a successful purchase: one TON.
const safetyFloorNano = model.NanoPerTON

// Clients bundles the marketplace interfaces for one listing category.
type Clients struct {
	Source service.ListingSource
	Quotes service.QuoteService
}

// Service is the application facade: one monitoring session system-wide,
// single-flight purchases, and wallet status.
type Service struct {
	wallet  service.LedgerWallet
	clients map[model.ListingKind]Clients
	mon     *monitor.Monitor
	coords  map[model.ListingKind]*purchase.Coordinator
}

// New assembles the service. All coordinators share one purchase lock,
// so at most one purchase runs regardless of listing category. ledger
// may be nil to disable attempt recording.
func New(wallet service.LedgerWallet, ledger service.Ledger, clients map[model.ListingKind]Clients) *Service {
	engine := transfer.New(wallet)
	lock := &purchase.Lock{}

	coords := make(map[model.ListingKind]*purchase.Coordinator, len(clients))
	for kind, c := range clients {
		coords[kind] = purchase.NewCoordinator(lock, c.Source, c.Quotes, wallet, engine, ledger)
	}

	return &Service{
		wallet:  wallet,
		clients: clients,
		mon:     monitor.New(),
		coords:  coords,
	}
}

// MonitorRunning reports whether a monitoring session is active.
func (s *Service) MonitorRunning() bool {
	return s.mon.Running()
}

// StartMonitoring runs the affordability gate and then launches the
// polling session. It fails with ErrAlreadyRunning when a session is
// active and with InsufficientFundsError when the gate rejects.
func (s *Service) StartMonitoring(ctx context.Context, kind model.ListingKind, maxPriceTON int64, interval time.Duration) (model.WalletStatus, error) {
	clients, ok := s.clients[kind]
	if !ok {
		return model.WalletStatus{}, fmt.Errorf("unknown listing kind %q", kind)
	}

	balance, err := s.wallet.BalanceNano(ctx)
	if err != nil {
		return model.WalletStatus{}, fmt.Errorf("failed to check wallet balance: %w", err)
	}

	listings, err := clients.Source.Fetch(ctx)
	if err != nil {
		return model.WalletStatus{}, fmt.Errorf("failed to fetch listings for pre-check: %w", err)
	}

	if err := purchase.CheckAffordability(maxPriceTON, listings, balance); err != nil {
		return model.WalletStatus{}, err
	}

	_, err = s.mon.Start(ctx, clients.Source, interval, func(sess *monitor.Session, listing model.Listing) {
		go s.processNewListing(kind, sess, maxPriceTON, listing)
	})
	if err != nil {
		return model.WalletStatus{}, err
	}

	addr, err := s.wallet.Address(ctx)
	if err != nil {
		slog.Warn("Could not resolve wallet address", "error", err)
	}

	return model.WalletStatus{Address: addr, BalanceNano: balance}, nil
}

// StopMonitoring ends the active session. Calling it when idle is a no-op.
func (s *Service) StopMonitoring() {
	s.mon.Stop()
}

// processNewListing runs the purchase pipeline for one detected listing
// and applies the post-outcome policy to the owning session.
func (s *Service) processNewListing(kind model.ListingKind, sess *monitor.Session, maxPriceTON int64, listing model.Listing) {
	if sess.StopRequested() {
		return
	}
	if !listing.Affordable(maxPriceTON) {
		return
	}
	price := *listing.PriceTON

	ctx, cancel := context.WithTimeout(context.Background(), purchaseTimeout)
	defer cancel()

	// Re-check funds before committing to a purchase attempt. A balance
	// read failure is not fatal; the transfer engine checks again.
	if balance, err := s.wallet.BalanceNano(ctx); err != nil {
		slog.Warn("Could not check current balance", "error", err)
	} else if balance < price*model.NanoPerTON {
		slog.Info("Insufficient balance for target, stopping monitor",
			"item_id", listing.ID, "price_ton", price, "balance_nano", balance)
		sess.RequestStop()
		return
	}

	slog.Info("Found target listing",
		"kind", kind, "item_id", listing.ID, "label", listing.DisplayLabel, "price_ton", price)

	outcome, err := s.coords[kind].Attempt(ctx, listing.ID, &price)
	if err != nil {
		if errors.Is(err, common.ErrPurchaseInFlight) {
			slog.Info("Skipping target, purchase already in flight", "item_id", listing.ID)
			return
		}
		slog.Error("Purchase attempt failed, will try again next cycle", "item_id", listing.ID, "error", err)
		return
	}

	switch outcome.Status {
	case model.TransferSent:
		slog.Info("Purchase succeeded", "item_id", listing.ID, "tx_ref", outcome.TxRef, "tag", outcome.Tag)
		s.checkResidualBalance(ctx, sess)

	case model.TransferInsufficient:
		slog.Info("Stopping monitor, insufficient balance",
			"required_nano", outcome.RequiredNano, "available_nano", outcome.AvailableNano)
		sess.RequestStop()

	default:
		slog.Error("Purchase failed, will try again next cycle",
			"item_id", listing.ID, "status", outcome.Status, "reason", outcome.Reason,
			"kind", outcome.Kind, "detail", outcome.Detail)
	}
}

// checkResidualBalance stops monitoring when the balance left after a
// successful purchase drops below the safety floor.
func (s *Service) checkResidualBalance(ctx context.Context, sess *monitor.Session) {
	balance, err := s.wallet.BalanceNano(ctx)
	if err != nil {
		slog.Warn("Could not check remaining balance, continuing to monitor", "error", err)
		return
	}
	if balance < safetyFloorNano {
		slog.Info("Remaining balance below safety floor, stopping monitor", "balance_nano", balance)
		sess.RequestStop()
		return
	}
	slog.Info("Sufficient balance remaining, continuing to monitor", "balance_nano", balance)
}

// Purchase runs one synchronous single-flight purchase attempt.
func (s *Service) Purchase(ctx context.Context, kind model.ListingKind, itemID string, bidTON *int64) (model.TransferOutcome, error) {
	coord, ok := s.coords[kind]
	if !ok {
		return model.TransferOutcome{}, fmt.Errorf("unknown listing kind %q", kind)
	}
	return coord.Attempt(ctx, itemID, bidTON)
}

// Listings returns the current sale snapshot for one category.
func (s *Service) Listings(ctx context.Context, kind model.ListingKind) ([]model.Listing, error) {
	clients, ok := s.clients[kind]
	if !ok {
		return nil, fmt.Errorf("unknown listing kind %q", kind)
	}
	return clients.Source.Fetch(ctx)
}

// WalletStatus returns the wallet address and balance.
func (s *Service) WalletStatus(ctx context.Context) (model.WalletStatus, error) {
	addr, err := s.wallet.Address(ctx)
	if err != nil {
		return model.WalletStatus{}, fmt.Errorf("failed to get wallet address: %w", err)
	}
	balance, err := s.wallet.BalanceNano(ctx)
	if err != nil {
		return model.WalletStatus{}, fmt.Errorf("failed to get wallet balance: %w", err)
	}
	return model.WalletStatus{Address: addr, BalanceNano: balance}, nil
}
