package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vkoval/fragsnipe/internal/common"
	"github.com/vkoval/fragsnipe/internal/model"
)

type monitorStartRequest struct {
	Kind        string `json:"kind"`
	MaxPriceTON int64  `json:"max_price_ton"`
	IntervalSec int    `json:"interval_sec"`
}

type buyRequest struct {
	Kind   string `json:"kind"`
	ItemID string `json:"item_id"`
	BidTON *int64 `json:"bid_ton"`
}

type listingPayload struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	PriceRaw string `json:"price_ton"`
	PriceTON *int64 `json:"price_ton_int"`
	Status   string `json:"status,omitempty"`
}

func listingKind(raw string) (model.ListingKind, bool) {
	switch raw {
	case "", string(model.KindNumbers):
		return model.KindNumbers, true
	case string(model.KindUsernames):
		return model.KindUsernames, true
	default:
		return "", false
	}
}

func (a *App) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "fragsnipe"})
}

func (a *App) listingsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "", nil)
		return
	}
	kind, ok := listingKind(r.URL.Query().Get("kind"))
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "kind must be numbers or usernames", nil)
		return
	}

	listings, err := a.Core.Listings(r.Context(), kind)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "list_sales_failed", "Failed to retrieve sales list", err.Error())
		return
	}

	payload := make([]listingPayload, 0, len(listings))
	for _, l := range listings {
		payload = append(payload, listingPayload{
			ID:       l.ID,
			Label:    l.DisplayLabel,
			PriceRaw: l.RawPriceText,
			PriceTON: l.PriceTON,
			Status:   l.Status,
		})
	}
	writeJSON(w, http.StatusOK, payload)
}

func (a *App) monitorStartHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "", nil)
		return
	}

	var req monitorStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return
	}
	kind, ok := listingKind(req.Kind)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "kind must be numbers or usernames", nil)
		return
	}
	if req.MaxPriceTON <= 0 {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "max_price_ton must be > 0", nil)
		return
	}
	if req.IntervalSec == 0 {
		req.IntervalSec = 1
	}
	if req.IntervalSec < 1 || req.IntervalSec > 60 {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "interval_sec must be between 1 and 60", nil)
		return
	}

	status, err := a.Core.StartMonitoring(r.Context(), kind, req.MaxPriceTON, time.Duration(req.IntervalSec)*time.Second)
	if err != nil {
		var fundsErr *common.InsufficientFundsError
		switch {
		case errors.As(err, &fundsErr):
			writeJSONError(w, http.StatusPaymentRequired, "insufficient_balance_for_monitoring",
				"Insufficient balance to monitor at this price ceiling", map[string]int64{
					"required_balance": fundsErr.RequiredTON,
					"current_balance":  fundsErr.AvailableTON,
					"shortage":         fundsErr.RequiredTON - fundsErr.AvailableTON,
				})
		case errors.Is(err, common.ErrAlreadyRunning):
			writeJSONError(w, http.StatusConflict, "monitor_already_running", "A monitoring session is already active", nil)
		default:
			writeJSONError(w, http.StatusInternalServerError, "monitor_start_failed", "Failed to start monitor", err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "started",
		"kind":          kind,
		"interval_sec":  req.IntervalSec,
		"max_price_ton": req.MaxPriceTON,
		"balance_nano":  status.BalanceNano,
	})
}

func (a *App) monitorStopHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "", nil)
		return
	}
	a.Core.StopMonitoring()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (a *App) buyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "", nil)
		return
	}

	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return
	}
	kind, ok := listingKind(req.Kind)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "kind must be numbers or usernames", nil)
		return
	}
	if req.ItemID == "" {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "item_id is required", nil)
		return
	}
	if req.BidTON != nil && *req.BidTON <= 0 {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "bid_ton must be > 0", nil)
		return
	}

	outcome, err := a.Core.Purchase(r.Context(), kind, req.ItemID, req.BidTON)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrPurchaseInFlight):
			writeJSONError(w, http.StatusConflict, "purchase_in_progress", "Purchase already in progress", nil)
		case errors.Is(err, common.ErrCannotInferBid):
			writeJSONError(w, http.StatusBadRequest, "bid_required",
				"bid_ton is required or item must be present in current sales list", nil)
		default:
			writeJSONError(w, http.StatusInternalServerError, "unexpected_error", "Unexpected error occurred", err.Error())
		}
		return
	}

	writeOutcome(w, req.ItemID, outcome)
}

// walletNotActivated reports whether a failure detail points at a wallet
// that has never been deployed on-chain. Uninitialized wallets reject
// submissions with exit code -256 or a seqno mismatch.
func walletNotActivated(detail string) bool {
	return strings.Contains(detail, "exit code -256") || strings.Contains(detail, "seqno")
}

func writeWalletNotActivated(w http.ResponseWriter, itemID string) {
	writeJSONError(w, http.StatusPaymentRequired, "wallet_not_activated",
		"Wallet is not activated or has insufficient balance", map[string]string{
			"detail":  "Please fund the wallet, then retry",
			"item_id": itemID,
		})
}

// writeOutcome maps a transfer outcome onto the HTTP status surface.
func writeOutcome(w http.ResponseWriter, itemID string, outcome model.TransferOutcome) {
	switch outcome.Status {
	case model.TransferSent:
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "sent",
			"tx": map[string]string{
				"tx_ref": outcome.TxRef,
				"tag":    outcome.Tag,
			},
		})

	case model.TransferInsufficient:
		writeJSONError(w, http.StatusPaymentRequired, "insufficient_balance",
			"Insufficient balance for purchase", map[string]any{
				"required_nano":  outcome.RequiredNano,
				"available_nano": outcome.AvailableNano,
				"shortage_nano":  outcome.RequiredNano - outcome.AvailableNano,
				"item_id":        itemID,
			})

	case model.TransferRejected:
		if walletNotActivated(outcome.Reason) {
			writeWalletNotActivated(w, itemID)
			return
		}
		writeJSONError(w, http.StatusBadRequest, "transfer_failed", "Transfer failed", map[string]string{
			"result":  outcome.Reason,
			"item_id": itemID,
		})

	default:
		if walletNotActivated(outcome.Detail) {
			writeWalletNotActivated(w, itemID)
			return
		}
		status := http.StatusBadRequest
		switch outcome.Kind {
		case model.ErrKindTimeout:
			status = http.StatusGatewayTimeout
		case model.ErrKindUnexpected:
			status = http.StatusInternalServerError
		}
		writeJSONError(w, status, outcome.Kind, "Transaction failed", map[string]string{
			"detail":  outcome.Detail,
			"item_id": itemID,
		})
	}
}

func (a *App) walletHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "", nil)
		return
	}
	status, err := a.Core.WalletStatus(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "wallet_info_failed", "Failed to retrieve wallet information", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address":      status.Address,
		"balance_nano": status.BalanceNano,
	})
}
