package cryptox

import (
	"context"
	"errors"
	"testing"

	"github.com/adshao/go-binance/v2/common"

	"broker-gateway/pkg/broker"
)

// fakeSpot records every call so tests can assert the exact tuple the
// adapter hands to the exchange client.
type fakeSpot struct {
	balances    map[string]string
	balancesErr error

	orders   []orderParams
	orderAck orderAck
	orderErr error

	depositAddr string
	depositErr  error

	withdrawID  string
	withdrawErr error

	tickers    map[string]bookTicker
	tickerErr  error
	tickerHits int
}

func (f *fakeSpot) AccountBalances(ctx context.Context) (map[string]string, error) {
	return f.balances, f.balancesErr
}

func (f *fakeSpot) CreateOrder(ctx context.Context, p orderParams) (orderAck, error) {
	f.orders = append(f.orders, p)
	return f.orderAck, f.orderErr
}

func (f *fakeSpot) DepositAddress(ctx context.Context, coin string) (string, error) {
	return f.depositAddr, f.depositErr
}

func (f *fakeSpot) Withdraw(ctx context.Context, coin, address, amount string) (string, error) {
	return f.withdrawID, f.withdrawErr
}

func (f *fakeSpot) BookTicker(ctx context.Context, symbol string) (bookTicker, error) {
	f.tickerHits++
	if f.tickerErr != nil {
		return bookTicker{}, f.tickerErr
	}
	return f.tickers[symbol], nil
}

func acct() broker.Account {
	return broker.Account{Kind: broker.KindCryptoExchange}
}

func TestGetBalanceFullAssetMap(t *testing.T) {
	fake := &fakeSpot{balances: map[string]string{"BTC": "0.5", "USDT": "1200.25", "DUST": "0"}}
	a := newWithClient(fake)

	bal, err := a.GetBalance(context.Background(), acct())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bal.Assets) != 3 {
		t.Fatalf("asset map must be unfiltered, got %v", bal.Assets)
	}
	if bal.Assets["USDT"] != 1200.25 {
		t.Fatalf("bad parse: %v", bal.Assets)
	}
}

func TestGetBalanceUnparseableAmount(t *testing.T) {
	a := newWithClient(&fakeSpot{balances: map[string]string{"BTC": "??"}})

	_, err := a.GetBalance(context.Background(), acct())
	e, ok := broker.AsError(err)
	if !ok || e.Kind != broker.ErrParse {
		t.Fatalf("expected parse failure, got %v", err)
	}
}

func TestExecuteTradeMarketOrderTuple(t *testing.T) {
	fake := &fakeSpot{orderAck: orderAck{OrderID: "42", Status: "FILLED"}}
	a := newWithClient(fake)

	res, err := a.ExecuteTrade(context.Background(), acct(), broker.TradeRequest{
		Symbol: "BTC/USDT", OrderType: broker.OrderTypeMarket, Side: broker.SideBuy, Quantity: 0.01,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != broker.TradeFilled || res.OrderID != "42" {
		t.Fatalf("unexpected result: %+v", res)
	}

	if len(fake.orders) != 1 {
		t.Fatalf("expected exactly one order, got %d", len(fake.orders))
	}
	got := fake.orders[0]
	want := orderParams{Symbol: "BTCUSDT", Side: "BUY", Type: "MARKET", Quantity: "0.01"}
	if got != want {
		t.Fatalf("order tuple mismatch:\n got  %+v\n want %+v", got, want)
	}
}

func TestExecuteTradeLimitOrderCarriesPrice(t *testing.T) {
	fake := &fakeSpot{orderAck: orderAck{OrderID: "43", Status: "NEW"}}
	a := newWithClient(fake)

	res, err := a.ExecuteTrade(context.Background(), acct(), broker.TradeRequest{
		Symbol: "ETH-USDT", OrderType: broker.OrderTypeLimit, Side: broker.SideSell,
		Quantity: 1.5, Price: 3000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != broker.TradePending {
		t.Fatalf("NEW should map to pending, got %q", res.Status)
	}

	got := fake.orders[0]
	if got.Symbol != "ETHUSDT" || got.Price != "3000" || got.TimeInForce != "GTC" {
		t.Fatalf("limit tuple mismatch: %+v", got)
	}
}

func TestExecuteTradeExchangeRejectionBecomesResult(t *testing.T) {
	fake := &fakeSpot{orderErr: &common.APIError{Code: -2010, Message: "insufficient balance"}}
	a := newWithClient(fake)

	res, err := a.ExecuteTrade(context.Background(), acct(), broker.TradeRequest{
		Symbol: "BTC/USDT", OrderType: broker.OrderTypeMarket, Side: broker.SideBuy, Quantity: 1,
	})
	if err != nil {
		t.Fatalf("rejection should surface as a result, got error %v", err)
	}
	if res.Status != broker.TradeRejected || res.Message != "insufficient balance" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestExecuteTradeRateLimitStaysAnError(t *testing.T) {
	fake := &fakeSpot{orderErr: &common.APIError{Code: -1003, Message: "too many requests"}}
	a := newWithClient(fake)

	_, err := a.ExecuteTrade(context.Background(), acct(), broker.TradeRequest{
		Symbol: "BTC/USDT", OrderType: broker.OrderTypeMarket, Side: broker.SideBuy, Quantity: 1,
	})
	e, ok := broker.AsError(err)
	if !ok || e.Kind != broker.ErrRejected || !e.RateLimited {
		t.Fatalf("expected rate-limited rejection error, got %v", err)
	}
}

func TestTransportErrorIsNetworkFailure(t *testing.T) {
	a := newWithClient(&fakeSpot{balancesErr: errors.New("connection refused")})

	_, err := a.GetBalance(context.Background(), acct())
	e, ok := broker.AsError(err)
	if !ok || e.Kind != broker.ErrNetwork {
		t.Fatalf("expected network failure, got %v", err)
	}
	if !e.Retryable() {
		t.Fatal("network failures should be retryable")
	}
}

func TestDeadlineIsTimeout(t *testing.T) {
	a := newWithClient(&fakeSpot{balancesErr: context.DeadlineExceeded})

	_, err := a.GetBalance(context.Background(), acct())
	e, ok := broker.AsError(err)
	if !ok || e.Kind != broker.ErrTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestDepositResolvesNativeAddress(t *testing.T) {
	a := newWithClient(&fakeSpot{depositAddr: "bc1qexample"})

	res, err := a.Deposit(context.Background(), acct(), broker.TransferRequest{Amount: 0.1, Currency: "btc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != broker.TransferPending || res.Address != "bc1qexample" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestWithdrawSubmitsWithReference(t *testing.T) {
	a := newWithClient(&fakeSpot{withdrawID: "wd-777"})

	res, err := a.Withdraw(context.Background(), acct(), broker.TransferRequest{
		Amount: 0.25, Currency: "eth", Address: "0xabc",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != broker.TransferSubmitted || res.Reference != "wd-777" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestGetMarketDataMidPriceAndNoCaching(t *testing.T) {
	fake := &fakeSpot{tickers: map[string]bookTicker{
		"BTCUSDT": {Symbol: "BTCUSDT", Bid: "50000", Ask: "50002"},
	}}
	a := newWithClient(fake)

	md, err := a.GetMarketData(context.Background(), "BTC/USDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.Bid != 50000 || md.Ask != 50002 || md.Price != 50001 {
		t.Fatalf("unexpected quote: %+v", md)
	}

	if _, err := a.GetMarketData(context.Background(), "BTC/USDT"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.tickerHits != 2 {
		t.Fatalf("every call must hit the exchange, got %d hits", fake.tickerHits)
	}
}

func TestNormalizeSymbol(t *testing.T) {
	cases := map[string]string{
		"BTC/USDT":  "BTCUSDT",
		"eth-usdt":  "ETHUSDT",
		" BNBUSDT ": "BNBUSDT",
	}
	for in, want := range cases {
		if got := NormalizeSymbol(in); got != want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}
