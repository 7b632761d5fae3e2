package model

import "time"

// TransferStatus tags the variant of a TransferOutcome.
type TransferStatus string

// Transfer outcome variants. Exactly one set of fields is populated for
// each status; callers branch exhaustively on the tag.
const (
	TransferSent         TransferStatus = "sent"
	TransferInsufficient TransferStatus = "insufficient_balance"
	TransferRejected     TransferStatus = "transfer_failed"
	TransferError        TransferStatus = "error"
)

// Error kinds reported under TransferError.
const (
	ErrKindIncompleteQuote   = "incomplete_quote"
	ErrKindTimeout           = "timeout"
	ErrKindBalanceCheck      = "balance_check_failed"
	ErrKindAllAttemptsFailed = "all_attempts_failed"
	ErrKindUnexpected        = "unexpected"
)

// TransferOutcome is the structured result of a funds transfer or a whole
// purchase attempt. It is a value, never an error: every code path in the
// transfer engine folds into one of the four variants.
type TransferOutcome struct {
	Status TransferStatus

	// TransferSent
	TxRef string
	Tag   string // "fallback" when the alternate submission path succeeded

	// TransferInsufficient
	RequiredNano  int64
	AvailableNano int64

	// TransferRejected
	Reason string

	// TransferError
	Kind   string
	Detail string
}

// Sent builds a success outcome.
func Sent(txRef string) TransferOutcome {
	return TransferOutcome{Status: TransferSent, TxRef: txRef}
}

// SentFallback builds a success outcome for the alternate submission path.
func SentFallback(txRef string) TransferOutcome {
	return TransferOutcome{Status: TransferSent, TxRef: txRef, Tag: "fallback"}
}

// Insufficient builds an insufficient-balance outcome with the exact
// requested and available figures in nanotons.
func Insufficient(requiredNano, availableNano int64) TransferOutcome {
	return TransferOutcome{Status: TransferInsufficient, RequiredNano: requiredNano, AvailableNano: availableNano}
}

// Rejected builds a definitive-failure outcome. Rejections are never retried.
func Rejected(reason string) TransferOutcome {
	return TransferOutcome{Status: TransferRejected, Reason: reason}
}

// OutcomeError builds an error outcome with a machine-readable kind.
func OutcomeError(kind, detail string) TransferOutcome {
	return TransferOutcome{Status: TransferError, Kind: kind, Detail: detail}
}

// OK reports whether the outcome is a successful send.
func (o TransferOutcome) OK() bool {
	return o.Status == TransferSent
}

// PurchaseRecord is one row of the attempt ledger: what we tried to buy,
// with what bid, and how it ended.
type PurchaseRecord struct {
	AttemptedAt time.Time
	ID          string
	ItemID      string
	Kind        ListingKind
	BidTON      int64
	Status      TransferStatus
	TxRef       string
	Detail      string
}
