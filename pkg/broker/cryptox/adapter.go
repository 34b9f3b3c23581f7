// Package cryptox adapts a networked cryptocurrency exchange to the gateway
// operation set. One client instance is authenticated at process startup and
// shared across all requests; rate limiting is delegated to the client.
package cryptox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"broker-gateway/pkg/broker"
)

var errNoTicker = errors.New("empty book ticker response")

// Exchange API error codes that mean "slow down", kept distinguishable from
// other rejections so callers can back off instead of failing over.
const (
	codeTooManyRequests = -1003
	codeTooManyOrders   = -1015
)

// Config holds the exchange credentials and limiter settings.
type Config struct {
	APIKey    string
	APISecret string
	RPS       float64
	Burst     int
}

// Adapter is the crypto-exchange adapter.
type Adapter struct {
	client spotClient
	log    *logrus.Entry
}

// New authenticates one shared client from config.
func New(cfg Config) *Adapter {
	return &Adapter{
		client: newSpotExchange(cfg.APIKey, cfg.APISecret, cfg.RPS, cfg.Burst),
		log:    logrus.WithField("adapter", string(broker.KindCryptoExchange)),
	}
}

// newWithClient wires an alternative client implementation (tests).
func newWithClient(c spotClient) *Adapter {
	return &Adapter{
		client: c,
		log:    logrus.WithField("adapter", string(broker.KindCryptoExchange)),
	}
}

func (a *Adapter) Kind() broker.Kind { return broker.KindCryptoExchange }

// GetBalance returns the full asset->amount mapping as reported by the
// exchange, unfiltered. The account argument is ignored: the exchange
// identity is fixed at startup.
func (a *Adapter) GetBalance(ctx context.Context, _ broker.Account) (broker.Balance, error) {
	raw, err := a.client.AccountBalances(ctx)
	if err != nil {
		return broker.Balance{}, a.convert("get_balance", err)
	}

	assets := make(map[string]float64, len(raw))
	for asset, amount := range raw {
		f, perr := strconv.ParseFloat(amount, 64)
		if perr != nil {
			return broker.Balance{}, broker.NewError(broker.ErrParse, a.Kind(), "get_balance",
				fmt.Sprintf("unparseable amount %q for asset %s", amount, asset), perr)
		}
		assets[asset] = f
	}
	return broker.Balance{Broker: a.Kind(), Assets: assets}, nil
}

// ExecuteTrade maps the generic request 1:1 onto the exchange client call.
// Price is passed through for limit orders; order-type semantics are enforced
// by the exchange, not here.
func (a *Adapter) ExecuteTrade(ctx context.Context, _ broker.Account, req broker.TradeRequest) (broker.TradeResult, error) {
	params := orderParams{
		Symbol:   NormalizeSymbol(req.Symbol),
		Side:     strings.ToUpper(string(req.Side)),
		Type:     strings.ToUpper(string(req.OrderType)),
		Quantity: decimal.NewFromFloat(req.Quantity).String(),
	}
	if req.OrderType == broker.OrderTypeLimit {
		params.Price = decimal.NewFromFloat(req.Price).String()
		params.TimeInForce = "GTC"
	}

	ack, err := a.client.CreateOrder(ctx, params)
	if err != nil {
		converted := a.convert("execute_trade", err)
		if e, ok := broker.AsError(converted); ok && e.Kind == broker.ErrRejected && !e.RateLimited {
			return broker.TradeResult{Status: broker.TradeRejected, Message: e.Message()}, nil
		}
		return broker.TradeResult{}, converted
	}

	return broker.TradeResult{
		Status:  mapOrderStatus(ack.Status),
		OrderID: ack.OrderID,
	}, nil
}

// Deposit resolves the exchange's native deposit address for the currency.
func (a *Adapter) Deposit(ctx context.Context, _ broker.Account, req broker.TransferRequest) (broker.TransferResult, error) {
	address, err := a.client.DepositAddress(ctx, strings.ToUpper(req.Currency))
	if err != nil {
		return broker.TransferResult{}, a.convert("deposit", err)
	}
	return broker.TransferResult{
		Status:  broker.TransferPending,
		Address: address,
		Message: fmt.Sprintf("send %s %s to the deposit address", decimal.NewFromFloat(req.Amount).String(), strings.ToUpper(req.Currency)),
	}, nil
}

// Withdraw submits a withdrawal through the exchange's native handling.
func (a *Adapter) Withdraw(ctx context.Context, _ broker.Account, req broker.TransferRequest) (broker.TransferResult, error) {
	id, err := a.client.Withdraw(ctx, strings.ToUpper(req.Currency), req.Address,
		decimal.NewFromFloat(req.Amount).String())
	if err != nil {
		return broker.TransferResult{}, a.convert("withdraw", err)
	}
	return broker.TransferResult{
		Status:    broker.TransferSubmitted,
		Reference: id,
	}, nil
}

// GetMarketData returns a best bid/ask snapshot for the symbol.
func (a *Adapter) GetMarketData(ctx context.Context, symbol string) (broker.MarketData, error) {
	t, err := a.client.BookTicker(ctx, NormalizeSymbol(symbol))
	if err != nil {
		return broker.MarketData{}, a.convert("get_market_data", err)
	}
	bid, _ := strconv.ParseFloat(t.Bid, 64)
	ask, _ := strconv.ParseFloat(t.Ask, 64)
	md := broker.MarketData{Symbol: t.Symbol, Bid: bid, Ask: ask}
	if bid > 0 && ask > 0 {
		md.Price = (bid + ask) / 2
	}
	return md, nil
}

// convert turns any client error into a typed *broker.Error. Nothing from the
// client library propagates raw past this adapter.
func (a *Adapter) convert(op string, err error) error {
	if e, ok := broker.AsError(err); ok {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return broker.NewError(broker.ErrTimeout, a.Kind(), op, "exchange call exceeded deadline", err)
	}
	if errors.Is(err, context.Canceled) {
		return broker.NewError(broker.ErrTimeout, a.Kind(), op, "request canceled", err)
	}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		e := broker.NewError(broker.ErrRejected, a.Kind(), op, apiErr.Message, err)
		if apiErr.Code == codeTooManyRequests || apiErr.Code == codeTooManyOrders {
			e.RateLimited = true
			e.Detail = "exchange rate limit hit: " + apiErr.Message
		}
		a.log.WithFields(logrus.Fields{"op": op, "code": apiErr.Code}).Warn("exchange rejected call")
		return e
	}

	a.log.WithFields(logrus.Fields{"op": op}).WithError(err).Warn("exchange transport failure")
	return broker.NewError(broker.ErrNetwork, a.Kind(), op, "exchange unreachable", err)
}

// NormalizeSymbol converts the gateway's pair notation to the exchange's
// concatenated form: "BTC/USDT" -> "BTCUSDT".
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.NewReplacer("/", "", "-", "").Replace(strings.TrimSpace(symbol)))
}

func mapOrderStatus(s string) broker.TradeStatus {
	switch strings.ToUpper(s) {
	case "FILLED":
		return broker.TradeFilled
	case "NEW", "PARTIALLY_FILLED":
		return broker.TradePending
	case "REJECTED", "EXPIRED", "CANCELED":
		return broker.TradeRejected
	case "":
		return broker.TradePending
	default:
		return broker.TradeError
	}
}
