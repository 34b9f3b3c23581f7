package cryptox

import (
	"context"
	"strconv"

	"github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"
)

// orderParams is the exact tuple handed to the exchange client for an order.
type orderParams struct {
	Symbol      string
	Side        string // BUY / SELL
	Type        string // MARKET / LIMIT
	Quantity    string
	Price       string // empty for market orders
	TimeInForce string // empty unless limit
}

// orderAck is the exchange acknowledgement of an order.
type orderAck struct {
	OrderID string
	Status  string
}

// bookTicker is a best bid/ask snapshot.
type bookTicker struct {
	Symbol string
	Bid    string
	Ask    string
}

// spotClient is the slice of the exchange client the adapter depends on.
// The production implementation wraps the go-binance client behind the
// process-wide rate limiter; tests substitute a recording fake.
type spotClient interface {
	AccountBalances(ctx context.Context) (map[string]string, error)
	CreateOrder(ctx context.Context, p orderParams) (orderAck, error)
	DepositAddress(ctx context.Context, coin string) (string, error)
	Withdraw(ctx context.Context, coin, address, amount string) (string, error)
	BookTicker(ctx context.Context, symbol string) (bookTicker, error)
}

// spotExchange implements spotClient on top of go-binance. One instance is
// authenticated at startup and shared by every request; the limiter inside it
// is the only throttle in the crypto path.
type spotExchange struct {
	api     *binance.Client
	limiter *rate.Limiter
}

func newSpotExchange(apiKey, apiSecret string, rps float64, burst int) *spotExchange {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return &spotExchange{
		api:     binance.NewClient(apiKey, apiSecret),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (s *spotExchange) AccountBalances(ctx context.Context) (map[string]string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	acct, err := s.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, err
	}
	balances := make(map[string]string, len(acct.Balances))
	for _, b := range acct.Balances {
		balances[b.Asset] = b.Free
	}
	return balances, nil
}

func (s *spotExchange) CreateOrder(ctx context.Context, p orderParams) (orderAck, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return orderAck{}, err
	}
	svc := s.api.NewCreateOrderService().
		Symbol(p.Symbol).
		Side(binance.SideType(p.Side)).
		Type(binance.OrderType(p.Type)).
		Quantity(p.Quantity)
	if p.Price != "" {
		svc = svc.Price(p.Price)
	}
	if p.TimeInForce != "" {
		svc = svc.TimeInForce(binance.TimeInForceType(p.TimeInForce))
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		return orderAck{}, err
	}
	return orderAck{
		OrderID: formatOrderID(resp.OrderID),
		Status:  string(resp.Status),
	}, nil
}

func (s *spotExchange) DepositAddress(ctx context.Context, coin string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := s.api.NewGetDepositAddressService().Coin(coin).Do(ctx)
	if err != nil {
		return "", err
	}
	return resp.Address, nil
}

func (s *spotExchange) Withdraw(ctx context.Context, coin, address, amount string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := s.api.NewCreateWithdrawService().
		Coin(coin).
		Address(address).
		Amount(amount).
		Do(ctx)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func formatOrderID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (s *spotExchange) BookTicker(ctx context.Context, symbol string) (bookTicker, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return bookTicker{}, err
	}
	tickers, err := s.api.NewListBookTickersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return bookTicker{}, err
	}
	if len(tickers) == 0 {
		return bookTicker{}, errNoTicker
	}
	t := tickers[0]
	return bookTicker{Symbol: t.Symbol, Bid: t.BidPrice, Ask: t.AskPrice}, nil
}
