package marginfx

import (
	"encoding/json"
	"fmt"

	"broker-gateway/pkg/broker"
)

// Operation names understood by the automation script.
const (
	opGetBalance    = "get_balance"
	opExecuteTrade  = "execute_trade"
	opGetMarketData = "get_market_data"
)

// command is the single self-describing message passed to the automation
// script as its final process argument. One invocation carries exactly one
// command; the script answers with exactly one line of JSON on stdout.
type command struct {
	Op     string               `json:"op"`
	Trade  *broker.TradeRequest `json:"trade,omitempty"`
	Symbol string               `json:"symbol,omitempty"`
}

func marshalCommand(c command) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal command: %w", err)
	}
	return string(data), nil
}

func parseCommand(s string) (command, error) {
	var c command
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return command{}, fmt.Errorf("parse command: %w", err)
	}
	if c.Op == "" {
		return command{}, fmt.Errorf("parse command: missing op")
	}
	return c, nil
}
