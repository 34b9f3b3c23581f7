package broker

import "context"

// Adapter implements the full operation set for exactly one broker. Every
// operation returns either a success value or a *Error; implementations must
// not panic across this boundary and must honor context cancellation.
type Adapter interface {
	Kind() Kind

	GetBalance(ctx context.Context, account Account) (Balance, error)
	ExecuteTrade(ctx context.Context, account Account, req TradeRequest) (TradeResult, error)
	Deposit(ctx context.Context, account Account, req TransferRequest) (TransferResult, error)
	Withdraw(ctx context.Context, account Account, req TransferRequest) (TransferResult, error)
	GetMarketData(ctx context.Context, symbol string) (MarketData, error)
}
