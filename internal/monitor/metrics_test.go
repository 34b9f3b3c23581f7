package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"broker-gateway/internal/events"
	"broker-gateway/pkg/broker"
)

func TestHistogramStats(t *testing.T) {
	h := NewLatencyHistogram(100)
	for i := 1; i <= 10; i++ {
		h.Record(float64(i))
	}

	stats := h.Stats()
	if stats.Count != 10 || stats.Min != 1 || stats.Max != 10 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Avg != 5.5 {
		t.Fatalf("avg = %v", stats.Avg)
	}
}

func TestHistogramSlidingWindow(t *testing.T) {
	h := NewLatencyHistogram(3)
	for i := 1; i <= 5; i++ {
		h.Record(float64(i))
	}
	stats := h.Stats()
	if stats.Count != 3 || stats.Min != 3 {
		t.Fatalf("oldest samples should be evicted: %+v", stats)
	}
}

func TestRecordAdapterCall(t *testing.T) {
	m := NewSystemMetrics()

	m.RecordAdapterCall(broker.KindMarginFX, 10*time.Millisecond, false)
	m.RecordAdapterCall(broker.KindMarginFX, 20*time.Millisecond, true)
	m.RecordAdapterCall(broker.KindCryptoExchange, 5*time.Millisecond, false)

	snap := m.GetSnapshot()
	if snap.AdapterCalls != 3 || snap.AdapterFailures != 1 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
	if snap.AdapterLatency[broker.KindMarginFX].Count != 2 {
		t.Fatalf("per-kind histogram missing samples: %+v", snap.AdapterLatency)
	}
}

type captureSink struct {
	mu   sync.Mutex
	msgs []string
}

func (c *captureSink) Send(message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, message)
	return nil
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func TestMonitorAlertsOnFailedTrades(t *testing.T) {
	bus := events.NewBus()
	sink := &captureSink{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := &Monitor{Bus: bus, Sink: sink}
	m.Start(ctx)

	bus.Publish(events.Activity{Event: events.EventTradeFailed, Broker: "margin_fx", Symbol: "EURUSD", Detail: "timeout"})
	bus.Publish(events.Activity{Event: events.EventTradeExecuted, Broker: "margin_fx", Symbol: "EURUSD"})

	deadline := time.After(2 * time.Second)
	for sink.count() < 1 {
		select {
		case <-deadline:
			t.Fatal("alert never delivered")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if sink.count() != 1 {
		t.Fatalf("executed trades must not alert, got %d messages", sink.count())
	}
}
