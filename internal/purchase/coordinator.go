package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vkoval/fragsnipe/internal/common"
	"github.com/vkoval/fragsnipe/internal/model"
	"github.com/vkoval/fragsnipe/internal/service"
)

// Per-step deadlines for the external calls a purchase makes.
const (
	defaultQuoteTimeout    = 10 * time.Second
	defaultTransferTimeout = 30 * time.Second
)

// TransferEngine drives one balance-checked, retried funds transfer.
type TransferEngine interface {
	Transfer(ctx context.Context, req service.TransferRequest) model.TransferOutcome
}

// Coordinator serializes purchase attempts for one listing category.
// Coordinators for different categories share the same Lock, so at most
// one purchase is in flight system-wide.
type Coordinator struct {
	lock   *Lock
	source service.ListingSource
	quotes service.QuoteService
	wallet service.LedgerWallet
	engine TransferEngine
	ledger service.Ledger // optional; attempts are recorded best-effort

	quoteTimeout    time.Duration
	transferTimeout time.Duration
}

// NewCoordinator wires a purchase coordinator. ledger may be nil.
func NewCoordinator(lock *Lock, source service.ListingSource, quotes service.QuoteService, wallet service.LedgerWallet, engine TransferEngine, ledger service.Ledger) *Coordinator {
	return &Coordinator{
		lock:            lock,
		source:          source,
		quotes:          quotes,
		wallet:          wallet,
		engine:          engine,
		ledger:          ledger,
		quoteTimeout:    defaultQuoteTimeout,
		transferTimeout: defaultTransferTimeout,
	}
}

// Attempt runs one purchase: resolve the bid, fetch the payment
// instruction, and drive the transfer. It fails immediately with
// ErrPurchaseInFlight when another attempt holds the lock, and with
// ErrCannotInferBid when no bid is given and the item is absent from the
// current sales list. Every other failure folds into the returned
// TransferOutcome. All retry behavior lives in the transfer engine.
func (c *Coordinator) Attempt(ctx context.Context, itemID string, bidTON *int64) (model.TransferOutcome, error) {
	if !c.lock.TryAcquire() {
		slog.Warn("Purchase rejected, another purchase in flight", "item_id", itemID)
		return model.TransferOutcome{}, common.ErrPurchaseInFlight
	}
	defer c.lock.Release()

	bid, err := c.resolveBid(ctx, itemID, bidTON)
	if err != nil {
		return model.TransferOutcome{}, err
	}

	slog.Info("Purchase attempt starting", "item_id", itemID, "bid_ton", bid)

	link, outcome, ok := c.assembleBidLink(ctx, itemID, bid)
	if !ok {
		c.record(ctx, itemID, bid, outcome)
		return outcome, nil
	}

	tctx, cancel := context.WithTimeout(ctx, c.transferTimeout)
	defer cancel()

	outcome = c.engine.Transfer(tctx, service.TransferRequest{
		Address:    link.Address,
		AmountNano: link.AmountNano,
		PayloadB64: link.PayloadB64,
	})

	c.record(ctx, itemID, bid, outcome)

	return outcome, nil
}

// resolveBid uses the caller's bid when given, otherwise requires the
// item to still be listed with a known price.
func (c *Coordinator) resolveBid(ctx context.Context, itemID string, bidTON *int64) (int64, error) {
	if bidTON != nil {
		return *bidTON, nil
	}

	fctx, cancel := context.WithTimeout(ctx, c.quoteTimeout)
	defer cancel()

	listings, err := c.source.Fetch(fctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrCannotInferBid, err)
	}
	for _, l := range listings {
		if l.ID == itemID && l.PriceTON != nil {
			slog.Info("Inferred bid from current listings", "item_id", itemID, "bid_ton", *l.PriceTON)
			return *l.PriceTON, nil
		}
	}

	return 0, common.ErrCannotInferBid
}

// assembleBidLink fetches the wallet identity and the marketplace quote.
// On failure it returns ok=false with the outcome the caller should
// surface.
func (c *Coordinator) assembleBidLink(ctx context.Context, itemID string, bid int64) (model.BidLink, model.TransferOutcome, bool) {
	qctx, cancel := context.WithTimeout(ctx, c.quoteTimeout)
	defer cancel()

	identity, err := c.wallet.IdentityPayload(qctx)
	if err != nil {
		return model.BidLink{}, quoteFailure("wallet identity", err), false
	}

	link, err := c.quotes.GetBidLink(qctx, itemID, bid, identity)
	if err != nil {
		return model.BidLink{}, quoteFailure("bid link", err), false
	}

	if link.Address == "" || link.AmountNano <= 0 {
		return model.BidLink{}, model.OutcomeError(model.ErrKindIncompleteQuote, "quote missing address or positive amount"), false
	}

	slog.Info("Bid link assembled", "item_id", itemID, "to", link.Address, "amount_nano", link.AmountNano)

	return link, model.TransferOutcome{}, true
}

func quoteFailure(step string, err error) model.TransferOutcome {
	switch {
	case errors.Is(err, common.ErrIncompleteQuote):
		return model.OutcomeError(model.ErrKindIncompleteQuote, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return model.OutcomeError(model.ErrKindTimeout, step+" timed out")
	default:
		return model.OutcomeError(model.ErrKindUnexpected, step+": "+err.Error())
	}
}

func (c *Coordinator) record(ctx context.Context, itemID string, bid int64, outcome model.TransferOutcome) {
	if c.ledger == nil {
		return
	}

	detail := outcome.Detail
	if detail == "" {
		detail = outcome.Reason
	}
	rec := model.PurchaseRecord{
		AttemptedAt: time.Now().UTC(),
		ID:          uuid.NewString(),
		ItemID:      itemID,
		Kind:        c.source.Kind(),
		BidTON:      bid,
		Status:      outcome.Status,
		TxRef:       outcome.TxRef,
		Detail:      detail,
	}
	if err := c.ledger.RecordAttempt(ctx, rec); err != nil {
		slog.Warn("Failed to record purchase attempt", "item_id", itemID, "error", err)
	}
}
