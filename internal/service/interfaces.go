// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/vkoval/fragsnipe/internal/model"
)

// ListingSource returns the current snapshot of marketplace listings for
// one item category. Implementations own all page-fetching and parsing;
// the core only sees the resulting listings.
type ListingSource interface {
	Fetch(ctx context.Context) ([]model.Listing, error)
	Kind() model.ListingKind
}

// QuoteService turns an intended bid into a concrete payment instruction
// via the marketplace's quote endpoint.
type QuoteService interface {
	GetBidLink(ctx context.Context, itemID string, bidTON int64, identity model.WalletIdentity) (model.BidLink, error)
}

// SubmitResult is what a wallet reports back for one submission attempt.
// Confirmed is false when the call went through but the wallet reported
// an explicit failure; that is a definitive rejection, not a transient
// error.
type SubmitResult struct {
	Confirmed bool
	TxRef     string
	Detail    string // rejection detail when Confirmed is false
}

// TransferRequest carries one assembled transfer: destination, amount in
// nanotons, and the opaque payload from the quote endpoint.
type TransferRequest struct {
	Address    string
	AmountNano int64
	PayloadB64 string
}

// LedgerWallet signs and submits value transfers and reports balance.
// The core consumes this interface; signing internals live elsewhere.
type LedgerWallet interface {
	Address(ctx context.Context) (string, error)
	BalanceNano(ctx context.Context) (int64, error)
	IdentityPayload(ctx context.Context) (model.WalletIdentity, error)

	// RefreshState re-reads account/sequence state. The transfer engine
	// calls it between transient submission failures; errors are advisory.
	RefreshState(ctx context.Context) error

	Submit(ctx context.Context, req TransferRequest) (SubmitResult, error)
	SubmitFallback(ctx context.Context, req TransferRequest) (SubmitResult, error)
}

// Ledger records purchase attempts made by this process. It is an audit
// trail of our own actions, not marketplace history.
type Ledger interface {
	RecordAttempt(ctx context.Context, rec model.PurchaseRecord) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
