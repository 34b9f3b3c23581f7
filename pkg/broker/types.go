// Package broker defines the uniform operation set and normalized outcomes
// shared by every broker integration.
package broker

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies a supported broker mechanism. The set is closed: adding a
// broker means adding a constant here and a compile-time checked Adapter for it.
type Kind string

const (
	KindMarginFX       Kind = "margin_fx"
	KindCryptoExchange Kind = "crypto_exchange"
)

// Kinds lists every supported broker kind.
func Kinds() []Kind {
	return []Kind{KindMarginFX, KindCryptoExchange}
}

// ParseKind maps a path identifier onto a known Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindMarginFX:
		return KindMarginFX, true
	case KindCryptoExchange:
		return KindCryptoExchange, true
	}
	return "", false
}

// Account carries the per-request identity for a broker call. It is built from
// the request path and query (with environment fallback), handed to exactly one
// adapter call and discarded. The password must never be logged or cached.
type Account struct {
	Kind     Kind
	ID       string
	Password string
	Server   string
}

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType denotes basic order types. Venues enforce their own semantics;
// the gateway only passes the literal through.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// TradeRequest is the generic order intent every adapter accepts.
type TradeRequest struct {
	Symbol     string    `json:"symbol"`
	OrderType  OrderType `json:"order_type"`
	Side       Side      `json:"side"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price,omitempty"`
	StopLoss   float64   `json:"stop_loss,omitempty"`
	TakeProfit float64   `json:"take_profit,omitempty"`
}

// Validate enforces the request invariants before any adapter is invoked.
func (r TradeRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if r.Side != SideBuy && r.Side != SideSell {
		return fmt.Errorf("side must be %q or %q", SideBuy, SideSell)
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("quantity must be > 0")
	}
	if r.OrderType == "" {
		return fmt.Errorf("order_type is required")
	}
	return nil
}

// TradeStatus is the normalized execution status every adapter converges to,
// regardless of the underlying broker vocabulary.
type TradeStatus string

const (
	TradeFilled   TradeStatus = "filled"
	TradePending  TradeStatus = "pending"
	TradeRejected TradeStatus = "rejected"
	TradeError    TradeStatus = "error"
)

// TradeResult is the normalized trade outcome.
type TradeResult struct {
	Status  TradeStatus `json:"status"`
	OrderID string      `json:"order_id,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Equity is the margin-account balance shape reported by the margin-FX bridge.
type Equity struct {
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity,omitempty"`
	Margin     float64 `json:"margin,omitempty"`
	MarginFree float64 `json:"margin_free,omitempty"`
	Currency   string  `json:"currency,omitempty"`
}

// Balance is the per-broker balance outcome. The contract deliberately does not
// force one shape across brokers: the margin-FX adapter fills Equity, the
// crypto adapter fills Assets with the full asset->amount map, unfiltered.
// Each adapter's shape is internally consistent.
type Balance struct {
	Broker Kind               `json:"broker"`
	Equity *Equity            `json:"equity,omitempty"`
	Assets map[string]float64 `json:"assets,omitempty"`
}

// TransferDirection distinguishes deposits from withdrawals.
type TransferDirection string

const (
	TransferDeposit  TransferDirection = "deposit"
	TransferWithdraw TransferDirection = "withdraw"
)

// TransferRequest is the deposit/withdraw payload. Address is required for
// withdrawals only.
type TransferRequest struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Address  string  `json:"address,omitempty"`
}

// Validate enforces transfer invariants for the given direction.
func (r TransferRequest) Validate(dir TransferDirection) error {
	if r.Amount <= 0 {
		return fmt.Errorf("amount must be > 0")
	}
	if strings.TrimSpace(r.Currency) == "" {
		return fmt.Errorf("currency is required")
	}
	if dir == TransferWithdraw && strings.TrimSpace(r.Address) == "" {
		return fmt.Errorf("address is required for withdrawals")
	}
	return nil
}

// TransferStatus is the acknowledgement status of a transfer request.
type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferSubmitted TransferStatus = "submitted"
	TransferSettled   TransferStatus = "settled"
)

// TransferResult acknowledges a deposit or withdrawal request. It promises
// nothing about settlement.
type TransferResult struct {
	Status    TransferStatus `json:"status"`
	Reference string         `json:"reference,omitempty"`
	Address   string         `json:"address,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// MarketData is a structured quote snapshot. The margin-FX bridge returns the
// script's payload verbatim in Payload; the crypto adapter fills the quote
// fields from the exchange book ticker.
type MarketData struct {
	Symbol  string          `json:"symbol"`
	Bid     float64         `json:"bid,omitempty"`
	Ask     float64         `json:"ask,omitempty"`
	Price   float64         `json:"price,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
