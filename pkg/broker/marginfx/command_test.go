package marginfx

import (
	"strings"
	"testing"

	"broker-gateway/pkg/broker"
)

func TestCommandRoundTrip(t *testing.T) {
	in := command{
		Op: opExecuteTrade,
		Trade: &broker.TradeRequest{
			Symbol:    "EURUSD",
			OrderType: broker.OrderTypeLimit,
			Side:      broker.SideBuy,
			Quantity:  0.5,
			Price:     1.08,
			StopLoss:  1.07,
		},
	}

	encoded, err := marshalCommand(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.ContainsAny(encoded, "\n\r") {
		t.Fatal("encoded command must be a single line")
	}

	out, err := parseCommand(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.Op != opExecuteTrade || out.Trade == nil {
		t.Fatalf("round trip lost fields: %+v", out)
	}
	if out.Trade.Symbol != "EURUSD" || out.Trade.Price != 1.08 {
		t.Fatalf("trade fields corrupted: %+v", out.Trade)
	}
}

func TestParseCommandRejectsMissingOp(t *testing.T) {
	if _, err := parseCommand(`{"symbol":"EURUSD"}`); err == nil {
		t.Fatal("expected error for missing op")
	}
	if _, err := parseCommand(`not json`); err == nil {
		t.Fatal("expected error for garbage")
	}
}

func TestMarketDataCommandOmitsTrade(t *testing.T) {
	encoded, err := marshalCommand(command{Op: opGetMarketData, Symbol: "XAUUSD"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(encoded, "trade") {
		t.Fatalf("empty trade should be omitted: %s", encoded)
	}
}
