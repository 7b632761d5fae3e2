package purchase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkoval/fragsnipe/internal/common"
	"github.com/vkoval/fragsnipe/internal/model"
	"github.com/vkoval/fragsnipe/internal/service"
)

type fakeSource struct {
	listings []model.Listing
	err      error
}

func (f *fakeSource) Kind() model.ListingKind { return model.KindNumbers }
func (f *fakeSource) Fetch(context.Context) ([]model.Listing, error) {
	return f.listings, f.err
}

type fakeQuotes struct {
	link model.BidLink
	err  error
}

func (f *fakeQuotes) GetBidLink(context.Context, string, int64, model.WalletIdentity) (model.BidLink, error) {
	return f.link, f.err
}

type fakeWallet struct {
	identityErr error
}

func (f *fakeWallet) Address(context.Context) (string, error)     { return "EQwallet", nil }
func (f *fakeWallet) BalanceNano(context.Context) (int64, error)  { return 0, nil }
func (f *fakeWallet) RefreshState(context.Context) error          { return nil }
func (f *fakeWallet) IdentityPayload(context.Context) (model.WalletIdentity, error) {
	return model.WalletIdentity{Address: "0:abc"}, f.identityErr
}
func (f *fakeWallet) Submit(context.Context, service.TransferRequest) (service.SubmitResult, error) {
	return service.SubmitResult{}, errors.New("not used")
}
func (f *fakeWallet) SubmitFallback(context.Context, service.TransferRequest) (service.SubmitResult, error) {
	return service.SubmitResult{}, errors.New("not used")
}

// fakeEngine returns a canned outcome, optionally blocking until released.
type fakeEngine struct {
	outcome model.TransferOutcome
	block   chan struct{} // when non-nil, Transfer waits for it to close

	mu   sync.Mutex
	reqs []service.TransferRequest
}

func (f *fakeEngine) Transfer(_ context.Context, req service.TransferRequest) model.TransferOutcome {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.outcome
}

func (f *fakeEngine) requests() []service.TransferRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]service.TransferRequest(nil), f.reqs...)
}

type memLedger struct {
	mu   sync.Mutex
	recs []model.PurchaseRecord
}

func (m *memLedger) RecordAttempt(_ context.Context, rec model.PurchaseRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memLedger) Close() error { return nil }

func (m *memLedger) records() []model.PurchaseRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.PurchaseRecord(nil), m.recs...)
}

func newTestCoordinator(source *fakeSource, quotes *fakeQuotes, engine *fakeEngine, ledger service.Ledger) *Coordinator {
	return NewCoordinator(&Lock{}, source, quotes, &fakeWallet{}, engine, ledger)
}

func validQuote() *fakeQuotes {
	return &fakeQuotes{link: model.BidLink{Address: "EQdest", AmountNano: 50 * model.NanoPerTON, PayloadB64: "cGF5"}}
}

func TestAttemptSuccess(t *testing.T) {
	source := &fakeSource{listings: []model.Listing{{ID: "item1", PriceTON: ptr(50)}}}
	engine := &fakeEngine{outcome: model.Sent("tx123")}
	ledger := &memLedger{}
	c := newTestCoordinator(source, validQuote(), engine, ledger)

	bid := int64(50)
	outcome, err := c.Attempt(context.Background(), "item1", &bid)
	require.NoError(t, err)
	assert.Equal(t, model.TransferSent, outcome.Status)
	assert.Equal(t, "tx123", outcome.TxRef)

	reqs := engine.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "EQdest", reqs[0].Address)
	assert.Equal(t, 50*model.NanoPerTON, reqs[0].AmountNano)

	recs := ledger.records()
	require.Len(t, recs, 1)
	assert.Equal(t, "item1", recs[0].ItemID)
	assert.Equal(t, int64(50), recs[0].BidTON)
	assert.Equal(t, model.TransferSent, recs[0].Status)
	assert.NotEmpty(t, recs[0].ID)
}

func TestAttemptConcurrentConflict(t *testing.T) {
	source := &fakeSource{}
	engine := &fakeEngine{outcome: model.Sent("tx123"), block: make(chan struct{})}
	c := newTestCoordinator(source, validQuote(), engine, nil)

	bid := int64(50)

	firstDone := make(chan model.TransferOutcome, 1)
	go func() {
		outcome, err := c.Attempt(context.Background(), "item1", &bid)
		assert.NoError(t, err)
		firstDone <- outcome
	}()

	// Wait until the first attempt is inside the engine, holding the lock.
	require.Eventually(t, func() bool { return len(engine.requests()) == 1 },
		time.Second, 5*time.Millisecond)

	_, err := c.Attempt(context.Background(), "item1", &bid)
	assert.ErrorIs(t, err, common.ErrPurchaseInFlight)

	close(engine.block)
	outcome := <-firstDone
	assert.Equal(t, model.TransferSent, outcome.Status)

	// Once released, the lock admits another attempt.
	engine.block = nil
	outcome, err = c.Attempt(context.Background(), "item1", &bid)
	require.NoError(t, err)
	assert.Equal(t, model.TransferSent, outcome.Status)
}

func TestAttemptInfersBidFromListings(t *testing.T) {
	source := &fakeSource{listings: []model.Listing{
		{ID: "other", PriceTON: ptr(10)},
		{ID: "item1", PriceTON: ptr(42)},
	}}
	engine := &fakeEngine{outcome: model.Sent("tx123")}
	ledger := &memLedger{}
	c := newTestCoordinator(source, validQuote(), engine, ledger)

	_, err := c.Attempt(context.Background(), "item1", nil)
	require.NoError(t, err)

	recs := ledger.records()
	require.Len(t, recs, 1)
	assert.Equal(t, int64(42), recs[0].BidTON)
}

func TestAttemptCannotInferBid(t *testing.T) {
	tests := []struct {
		name   string
		source *fakeSource
	}{
		{"item absent from snapshot", &fakeSource{listings: []model.Listing{{ID: "other", PriceTON: ptr(10)}}}},
		{"item present without price", &fakeSource{listings: []model.Listing{{ID: "item1", PriceTON: nil}}}},
		{"snapshot fetch fails", &fakeSource{err: errors.New("marketplace down")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{outcome: model.Sent("tx")}
			c := newTestCoordinator(tt.source, validQuote(), engine, nil)

			_, err := c.Attempt(context.Background(), "item1", nil)
			assert.ErrorIs(t, err, common.ErrCannotInferBid)
			assert.Empty(t, engine.requests())

			// Lock must be free again after the failed attempt.
			assert.False(t, c.lock.Held())
		})
	}
}

func TestAttemptIncompleteQuote(t *testing.T) {
	tests := []struct {
		name   string
		quotes *fakeQuotes
	}{
		{"quote service reports incomplete", &fakeQuotes{err: common.ErrIncompleteQuote}},
		{"missing address", &fakeQuotes{link: model.BidLink{AmountNano: 10}}},
		{"non-positive amount", &fakeQuotes{link: model.BidLink{Address: "EQdest", AmountNano: 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{outcome: model.Sent("tx")}
			bid := int64(50)
			c := newTestCoordinator(&fakeSource{}, tt.quotes, engine, nil)

			outcome, err := c.Attempt(context.Background(), "item1", &bid)
			require.NoError(t, err)
			assert.Equal(t, model.TransferError, outcome.Status)
			assert.Equal(t, model.ErrKindIncompleteQuote, outcome.Kind)
			assert.Empty(t, engine.requests())
			assert.False(t, c.lock.Held())
		})
	}
}

func TestAttemptIdentityFailure(t *testing.T) {
	engine := &fakeEngine{outcome: model.Sent("tx")}
	bid := int64(50)
	c := NewCoordinator(&Lock{}, &fakeSource{}, validQuote(),
		&fakeWallet{identityErr: errors.New("wallet offline")}, engine, nil)

	outcome, err := c.Attempt(context.Background(), "item1", &bid)
	require.NoError(t, err)
	assert.Equal(t, model.TransferError, outcome.Status)
	assert.Equal(t, model.ErrKindUnexpected, outcome.Kind)
	assert.False(t, c.lock.Held())
}

func TestLockTryAcquire(t *testing.T) {
	var l Lock
	assert.True(t, l.TryAcquire())
	assert.True(t, l.Held())
	assert.False(t, l.TryAcquire())
	l.Release()
	assert.True(t, l.TryAcquire())
	l.Release()
}
