// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Monitor errors.
	ErrAlreadyRunning = errors.New("monitor already running")

	// Purchase errors.
	ErrPurchaseInFlight = errors.New("purchase already in progress")
	ErrCannotInferBid   = errors.New("bid is required or item must be present in current sales list")
	ErrIncompleteQuote  = errors.New("incomplete bid link in quote response")

	// Funds errors.
	ErrInsufficientFunds = errors.New("insufficient balance")

	// Marketplace errors.
	ErrRateLimit = errors.New("rate limit exceeded")

	// Retry errors.
	ErrMaxRetries = errors.New("max retries exceeded")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
)

// InsufficientFundsError carries the exact required/available figures so
// callers can decide whether to stop monitoring.
type InsufficientFundsError struct {
	RequiredTON  int64
	AvailableTON int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance: need %d TON, have %d TON", e.RequiredTON, e.AvailableTON)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
