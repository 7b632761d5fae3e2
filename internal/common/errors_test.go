package common

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsufficientFundsErrorUnwraps(t *testing.T) {
	err := &InsufficientFundsError{RequiredTON: 450, AvailableTON: 300}

	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Contains(t, err.Error(), "need 450 TON")
	assert.Contains(t, err.Error(), "have 300 TON")

	wrapped := fmt.Errorf("start monitoring: %w", err)
	var fundsErr *InsufficientFundsError
	assert.ErrorAs(t, wrapped, &fundsErr)
	assert.Equal(t, int64(450), fundsErr.RequiredTON)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "rate limit", err: ErrRateLimit, want: true},
		{name: "wrapped rate limit", err: fmt.Errorf("fetch: %w", ErrRateLimit), want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "retryable wrapper", err: &RetryableError{Err: errors.New("x"), Retryable: true}, want: true},
		{name: "non-retryable wrapper", err: &RetryableError{Err: errors.New("x"), Retryable: false}, want: false},
		{name: "plain error", err: errors.New("x"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestRetryableErrorUnwraps(t *testing.T) {
	inner := errors.New("liteserver hiccup")
	err := &RetryableError{Err: inner, Retryable: true}
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, inner.Error(), err.Error())
}
