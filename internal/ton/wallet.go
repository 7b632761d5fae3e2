// Package ton adapts a TON V4R2 wallet to the LedgerWallet interface.
// All signing and chain plumbing stays behind this package; the core
// only sees balances, identity payloads, and submit results.
package ton

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/vkoval/fragsnipe/internal/common"
	"github.com/vkoval/fragsnipe/internal/model"
	"github.com/vkoval/fragsnipe/internal/service"
)

// DefaultConfigURL points at the mainnet liteserver config.
const DefaultConfigURL = "https://ton.org/global.config.json"

// mainnetChain is the chain id the marketplace expects in account payloads.
const mainnetChain = "-239"

// Config holds wallet connection settings.
type Config struct {
	Seed      string // space-separated mnemonic
	ConfigURL string
}

// Wallet implements service.LedgerWallet over a liteclient connection.
// The connection and wallet are initialized lazily on first use.
type Wallet struct {
	cfg Config

	mu     sync.Mutex
	api    ton.APIClientWrapped
	wallet *wallet.Wallet
}

var _ service.LedgerWallet = (*Wallet)(nil)

// New creates an unconnected wallet adapter.
func New(cfg Config) (*Wallet, error) {
	if strings.TrimSpace(cfg.Seed) == "" {
		return nil, fmt.Errorf("%w: wallet seed phrase", common.ErrMissingConfig)
	}
	if cfg.ConfigURL == "" {
		cfg.ConfigURL = DefaultConfigURL
	}
	return &Wallet{cfg: cfg}, nil
}

// ensure connects the liteclient and derives the wallet on first call.
func (w *Wallet) ensure(ctx context.Context) (*wallet.Wallet, ton.APIClientWrapped, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.wallet != nil {
		return w.wallet, w.api, nil
	}

	pool := liteclient.NewConnectionPool()
	if err := pool.AddConnectionsFromConfigUrl(ctx, w.cfg.ConfigURL); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to TON network: %w", err)
	}
	api := ton.NewAPIClient(pool).WithRetry()

	wlt, err := wallet.FromSeed(api, strings.Fields(w.cfg.Seed), wallet.V4R2)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize wallet: %w", err)
	}

	w.api = api
	w.wallet = wlt

	slog.Info("TON wallet initialized", "address", wlt.WalletAddress().String())

	return wlt, api, nil
}

// Address returns the wallet address in user-friendly form.
func (w *Wallet) Address(ctx context.Context) (string, error) {
	wlt, _, err := w.ensure(ctx)
	if err != nil {
		return "", err
	}
	return wlt.WalletAddress().String(), nil
}

// BalanceNano returns the spendable balance in nanotons.
func (w *Wallet) BalanceNano(ctx context.Context) (int64, error) {
	wlt, api, err := w.ensure(ctx)
	if err != nil {
		return 0, err
	}

	block, err := api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get masterchain info: %w", err)
	}
	balance, err := wlt.GetBalance(ctx, block)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}

	return balance.Nano().Int64(), nil
}

// IdentityPayload builds the TON Connect style account descriptor the
// marketplace requires with a bid: raw address, chain id, state init
// BOC, and the public key.
func (w *Wallet) IdentityPayload(ctx context.Context) (model.WalletIdentity, error) {
	wlt, _, err := w.ensure(ctx)
	if err != nil {
		return model.WalletIdentity{}, err
	}

	pub, ok := wlt.PrivateKey().Public().(ed25519.PublicKey)
	if !ok {
		return model.WalletIdentity{}, fmt.Errorf("unexpected wallet key type")
	}

	stateInit, err := wallet.GetStateInit(pub, wallet.V4R2, wallet.DefaultSubwallet)
	if err != nil {
		return model.WalletIdentity{}, fmt.Errorf("failed to build state init: %w", err)
	}
	stateCell, err := tlb.ToCell(stateInit)
	if err != nil {
		return model.WalletIdentity{}, fmt.Errorf("failed to serialize state init: %w", err)
	}

	return model.WalletIdentity{
		Address:         wlt.WalletAddress().StringRaw(),
		Chain:           mainnetChain,
		WalletStateInit: base64.StdEncoding.EncodeToString(stateCell.ToBOC()),
		PublicKey:       hex.EncodeToString(pub),
	}, nil
}

// RefreshState re-reads the account from the chain so the next submission
// picks up a fresh sequence number.
func (w *Wallet) RefreshState(ctx context.Context) error {
	wlt, api, err := w.ensure(ctx)
	if err != nil {
		return err
	}

	block, err := api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return err
	}
	if _, err := api.GetAccount(ctx, block, wlt.WalletAddress()); err != nil {
		return err
	}
	return nil
}

// Submit signs and sends the transfer, waiting for the transaction to
// land. The returned reference is the transaction hash.
func (w *Wallet) Submit(ctx context.Context, req service.TransferRequest) (service.SubmitResult, error) {
	wlt, _, err := w.ensure(ctx)
	if err != nil {
		return service.SubmitResult{}, err
	}

	msg, err := buildMessage(req)
	if err != nil {
		return service.SubmitResult{}, err
	}

	tx, _, err := wlt.SendWaitTransaction(ctx, msg)
	if err != nil {
		return service.SubmitResult{}, err
	}

	return service.SubmitResult{Confirmed: true, TxRef: hex.EncodeToString(tx.Hash)}, nil
}

// SubmitFallback sends the transfer as a raw external message without
// waiting for confirmation. Used once after primary attempts fail.
func (w *Wallet) SubmitFallback(ctx context.Context, req service.TransferRequest) (service.SubmitResult, error) {
	wlt, api, err := w.ensure(ctx)
	if err != nil {
		return service.SubmitResult{}, err
	}

	msg, err := buildMessage(req)
	if err != nil {
		return service.SubmitResult{}, err
	}

	ext, err := wlt.PrepareExternalMessageForMany(ctx, false, []*wallet.Message{msg})
	if err != nil {
		return service.SubmitResult{}, fmt.Errorf("failed to build external message: %w", err)
	}
	if err := api.SendExternalMessage(ctx, ext); err != nil {
		return service.SubmitResult{}, fmt.Errorf("failed to send external message: %w", err)
	}

	return service.SubmitResult{Confirmed: true, TxRef: "external_message_sent"}, nil
}

// buildMessage assembles the internal transfer message with the opaque
// marketplace payload attached as the body.
func buildMessage(req service.TransferRequest) (*wallet.Message, error) {
	to, err := address.ParseAddr(req.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid destination address: %w", err)
	}

	var body *cell.Cell
	if req.PayloadB64 != "" {
		raw, err := base64.StdEncoding.DecodeString(req.PayloadB64)
		if err != nil {
			return nil, fmt.Errorf("invalid payload encoding: %w", err)
		}
		body, err = cell.FromBOC(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid payload cell: %w", err)
		}
	}

	return wallet.SimpleMessage(to, tlb.FromNanoTONU(uint64(req.AmountNano)), body), nil
}
