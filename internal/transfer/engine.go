// Package transfer implements the balance-checked, retried funds
// transfer with a fallback submission path.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vkoval/fragsnipe/internal/common"
	"github.com/vkoval/fragsnipe/internal/model"
	"github.com/vkoval/fragsnipe/internal/service"
)

// errRejectedSubmission marks an explicit on-chain rejection. It is
// wrapped non-retryable so the retry loop short-circuits: definitive
// failures are never retried.
var errRejectedSubmission = errors.New("submission rejected")

// Engine drives transfers through a LedgerWallet. Per call it runs the
// state machine: balance check, up to three primary submission attempts,
// then a single fallback submission when every primary attempt failed
// transiently.
type Engine struct {
	wallet service.LedgerWallet
	retry  service.RetryOptions
}

// New creates a transfer engine with default retry pacing.
func New(wallet service.LedgerWallet) *Engine {
	return &Engine{
		wallet: wallet,
		retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// Transfer executes one funds transfer and always returns a structured
// outcome, never an error. Unexpected faults anywhere in the routine are
// converted to an error outcome rather than propagated.
func (e *Engine) Transfer(ctx context.Context, req service.TransferRequest) (outcome model.TransferOutcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Transfer panicked", "panic", r)
			outcome = model.OutcomeError(model.ErrKindUnexpected, fmt.Sprintf("panic: %v", r))
		}
	}()

	balance, err := e.wallet.BalanceNano(ctx)
	if err != nil {
		slog.Error("Balance check failed", "error", err)
		return model.OutcomeError(model.ErrKindBalanceCheck, err.Error())
	}
	if balance < req.AmountNano {
		slog.Warn("Insufficient balance for transfer",
			"required_nano", req.AmountNano,
			"available_nano", balance)
		return model.Insufficient(req.AmountNano, balance)
	}

	// The request is assembled once; every submission attempt reuses it.
	var (
		sent      service.SubmitResult
		rejection string
	)
	err = common.WithRetry(ctx, func() error {
		res, serr := e.wallet.Submit(ctx, req)
		if serr != nil {
			// Transient fault. Refresh account/sequence state before the
			// next attempt; a failed refresh is only advisory.
			if rerr := e.wallet.RefreshState(ctx); rerr != nil {
				slog.Debug("State refresh failed", "error", rerr)
			}
			return serr
		}
		if !res.Confirmed {
			rejection = res.Detail
			return &common.RetryableError{Err: errRejectedSubmission, Retryable: false}
		}
		sent = res
		return nil
	}, e.retry)

	switch {
	case err == nil:
		slog.Info("Transfer sent", "to", req.Address, "amount_nano", req.AmountNano, "tx_ref", sent.TxRef)
		return model.Sent(sent.TxRef)

	case errors.Is(err, errRejectedSubmission):
		slog.Error("Transfer rejected", "to", req.Address, "reason", rejection)
		return model.Rejected(rejection)

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return model.OutcomeError(model.ErrKindTimeout, "transfer timed out")

	case errors.Is(err, common.ErrMaxRetries):
		return e.fallback(ctx, req, err)

	default:
		return model.OutcomeError(model.ErrKindUnexpected, err.Error())
	}
}

// fallback runs the alternate submission path once after all primary
// attempts failed transiently.
func (e *Engine) fallback(ctx context.Context, req service.TransferRequest, lastErr error) model.TransferOutcome {
	slog.Info("Primary attempts exhausted, trying fallback submission",
		"to", req.Address, "last_error", lastErr)

	res, err := e.wallet.SubmitFallback(ctx, req)
	if err != nil {
		slog.Error("Fallback submission failed", "error", err)
		return model.OutcomeError(model.ErrKindAllAttemptsFailed, err.Error())
	}
	if !res.Confirmed {
		return model.OutcomeError(model.ErrKindAllAttemptsFailed, res.Detail)
	}

	slog.Info("Fallback submission succeeded", "tx_ref", res.TxRef)

	return model.SentFallback(res.TxRef)
}
