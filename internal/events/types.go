package events

import "time"

// Event enumerates high-level topics inside the gateway.
type Event string

const (
	EventTradeExecuted   Event = "trade.executed"
	EventTradeFailed     Event = "trade.failed"
	EventTransferPending Event = "transfer.pending"
	EventTransferSettled Event = "transfer.settled"
	EventEngineState     Event = "engine.state"
)

// Activity is the payload pushed on every gateway event; the websocket feed
// streams these to dashboard clients.
type Activity struct {
	Event     Event     `json:"event"`
	Broker    string    `json:"broker,omitempty"`
	Account   string    `json:"account,omitempty"`
	Symbol    string    `json:"symbol,omitempty"`
	Status    string    `json:"status,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
