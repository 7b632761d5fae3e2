// Package server exposes the HTTP API: monitor control, one-shot
// purchases, listing snapshots, and wallet status.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/vkoval/fragsnipe/internal/model"
)

// Core is the application surface the HTTP layer drives.
type Core interface {
	MonitorRunning() bool
	StartMonitoring(ctx context.Context, kind model.ListingKind, maxPriceTON int64, interval time.Duration) (model.WalletStatus, error)
	StopMonitoring()
	Purchase(ctx context.Context, kind model.ListingKind, itemID string, bidTON *int64) (model.TransferOutcome, error)
	Listings(ctx context.Context, kind model.ListingKind) ([]model.Listing, error)
	WalletStatus(ctx context.Context) (model.WalletStatus, error)
}

// App carries handler dependencies.
type App struct {
	Core Core
}

// NewApp creates the HTTP application.
func NewApp(core Core) *App {
	return &App{Core: core}
}

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", app.healthHandler)
	mux.HandleFunc("/listings", app.listingsHandler)
	mux.HandleFunc("/monitor/start", app.monitorStartHandler)
	mux.HandleFunc("/monitor/stop", app.monitorStopHandler)
	mux.HandleFunc("/buy", app.buyHandler)
	mux.HandleFunc("/wallet", app.walletHandler)
	return WithRequestID(WithLogging(mux))
}

// jsonError represents a JSON error payload.
type jsonError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// writeJSON writes a JSON payload with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error payload with the given status code.
func writeJSONError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, jsonError{Error: code, Message: message, Details: details})
}
