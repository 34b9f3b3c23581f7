package events

import (
	"sync"
	"time"
)

// Bus is a lightweight pub/sub broker using channels.
type Bus struct {
	mu   sync.RWMutex
	subs map[Event][]chan Activity
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Event][]chan Activity)}
}

// Subscribe registers a listener for an event and returns the channel and an
// unsubscribe function.
func (b *Bus) Subscribe(e Event, buffer int) (<-chan Activity, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Activity, buffer)
	b.subs[e] = append(b.subs[e], ch)

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[e]
		for i, c := range subs {
			if c == ch {
				close(c)
				b.subs[e] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}

	return ch, unsub
}

// SubscribeAll registers one merged listener for every gateway event.
func (b *Bus) SubscribeAll(buffer int) (<-chan Activity, func()) {
	all := []Event{
		EventTradeExecuted,
		EventTradeFailed,
		EventTransferPending,
		EventTransferSettled,
		EventEngineState,
	}

	merged := make(chan Activity, buffer)
	var wg sync.WaitGroup
	unsubs := make([]func(), 0, len(all))

	for _, e := range all {
		ch, unsub := b.Subscribe(e, buffer)
		unsubs = append(unsubs, unsub)
		wg.Add(1)
		go func(ch <-chan Activity) {
			defer wg.Done()
			for a := range ch {
				select {
				case merged <- a:
				default:
					// drop if the merged reader is slow
				}
			}
		}(ch)
	}

	cancel := func() {
		for _, u := range unsubs {
			u()
		}
		wg.Wait()
		close(merged)
	}
	return merged, cancel
}

// Publish fans the activity out to subscribers without ever blocking the
// request path.
func (b *Bus) Publish(a Activity) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[a.Event] {
		select {
		case ch <- a:
		default:
			// drop if subscriber is slow; keep broker non-blocking
		}
	}
}
