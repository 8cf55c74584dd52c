// Package wallet wraps the browser wallet flow used for minting and buying.
// Signing and broadcasting are not performed: mint and purchase wait a fixed
// delay and return a placeholder transaction id.
package wallet

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/R3E-Network/ordzaar/internal/app/domain"
	"github.com/R3E-Network/ordzaar/internal/app/domain/ordinal"
	apperrors "github.com/R3E-Network/ordzaar/internal/errors"
	"github.com/R3E-Network/ordzaar/internal/httputil"
	"github.com/R3E-Network/ordzaar/pkg/logger"
)

// Provider identifies a supported browser wallet.
type Provider string

const (
	ProviderXverse Provider = "xverse"
	ProviderUnisat Provider = "unisat"
)

// DefaultDelay is how long placeholder operations take.
const DefaultDelay = 1500 * time.Millisecond

// ParseProvider validates a provider name.
func ParseProvider(raw string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(raw))); p {
	case ProviderXverse, ProviderUnisat:
		return p, nil
	}
	return "", apperrors.BadRequest("Unsupported wallet provider").WithDetails("provider", raw)
}

// Session is a connected wallet.
type Session struct {
	Provider    Provider  `json:"provider"`
	Address     string    `json:"address"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Connected reports whether the session carries an address.
func (s Session) Connected() bool {
	return s.Provider != "" && s.Address != ""
}

// Config configures a Wallet.
type Config struct {
	// APIURL is the base of a mempool.space compatible REST API. Empty
	// disables balance lookups.
	APIURL string
	APIKey string
	Delay  time.Duration
}

// Wallet performs placeholder wallet operations.
type Wallet struct {
	api   *httputil.Client
	delay time.Duration
	log   *logger.Logger
	now   func() time.Time
}

// New creates a wallet wrapper.
func New(cfg Config, log *logger.Logger) *Wallet {
	if log == nil {
		log = logger.NewDefault("wallet")
	}
	w := &Wallet{delay: cfg.Delay, log: log, now: time.Now}
	if w.delay < 0 {
		w.delay = 0
	}
	if base := strings.TrimSpace(cfg.APIURL); base != "" {
		w.api = httputil.NewClient(httputil.ClientConfig{BaseURL: base, APIKey: cfg.APIKey})
	}
	return w
}

// BalanceConfigured reports whether balances come from a live API.
func (w *Wallet) BalanceConfigured() bool {
	return w.api != nil
}

// Connect opens a session for address using provider.
func (w *Wallet) Connect(provider, address string) (Session, error) {
	p, err := ParseProvider(provider)
	if err != nil {
		return Session{}, err
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return Session{}, apperrors.BadRequest("Wallet not connected")
	}
	return Session{Provider: p, Address: address, ConnectedAt: w.now().UTC()}, nil
}

// Balance returns the confirmed balance of address in sats. It returns 0 when
// no API is configured.
func (w *Wallet) Balance(ctx context.Context, address string) (int64, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return 0, apperrors.BadRequest("Address is required")
	}
	if w.api == nil {
		return 0, nil
	}

	body, err := w.api.GetBody(ctx, "/address/"+url.PathEscape(address))
	if err != nil {
		return 0, fmt.Errorf("fetch balance for %s: %w", address, err)
	}
	if !gjson.ValidBytes(body) {
		return 0, fmt.Errorf("fetch balance for %s: invalid JSON response", address)
	}
	stats := gjson.GetManyBytes(body, "chain_stats.funded_txo_sum", "chain_stats.spent_txo_sum")
	return stats[0].Int() - stats[1].Int(), nil
}

// Mint pretends to inscribe ord and returns a placeholder txid.
func (w *Wallet) Mint(ctx context.Context, session Session, ord ordinal.Ordinal) (string, error) {
	if !session.Connected() {
		return "", apperrors.BadRequest("Wallet not connected")
	}
	w.log.WithField("ordinal_id", ord.ID).
		WithField("provider", session.Provider).
		Info("minting ordinal (placeholder)")
	return w.placeholderTx(ctx)
}

// Purchase pretends to buy ord for price BTC and returns a placeholder txid.
// The balance check only runs when a balance API is configured.
func (w *Wallet) Purchase(ctx context.Context, session Session, ord ordinal.Ordinal, price float64) (string, error) {
	if !session.Connected() {
		return "", apperrors.BadRequest("Wallet not connected")
	}
	if w.api != nil {
		balance, err := w.Balance(ctx, session.Address)
		if err != nil {
			return "", err
		}
		if balance <= 0 || balance < domain.ToSats(price) {
			return "", apperrors.BadRequest("Insufficient balance").
				WithDetails("balance", balance).
				WithDetails("required", domain.ToSats(price))
		}
	}
	w.log.WithField("ordinal_id", ord.ID).
		WithField("provider", session.Provider).
		WithField("price", price).
		Info("purchasing ordinal (placeholder)")
	return w.placeholderTx(ctx)
}

func (w *Wallet) placeholderTx(ctx context.Context) (string, error) {
	if w.delay > 0 {
		timer := time.NewTimer(w.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return "mock_txid_" + strconv.FormatInt(w.now().UnixMilli(), 10), nil
}
