package monitor

import (
	"context"
	"fmt"
	"time"

	"broker-gateway/internal/events"

	"github.com/sirupsen/logrus"
)

// AlertSink interface for pluggable alert delivery.
type AlertSink interface {
	Send(message string) error
}

// LogSink delivers alerts to the process log.
type LogSink struct{}

func (LogSink) Send(message string) error {
	logrus.Warn(message)
	return nil
}

// Monitor watches failed-trade activity and forwards alerts to the sink.
type Monitor struct {
	Bus  *events.Bus
	Sink AlertSink
}

func (m *Monitor) Start(ctx context.Context) {
	if m.Bus == nil || m.Sink == nil {
		logrus.Warn("monitor not fully configured; skipping")
		return
	}
	stream, unsub := m.Bus.Subscribe(events.EventTradeFailed, 50)
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case a, ok := <-stream:
				if !ok {
					return
				}
				if err := m.Sink.Send(formatAlert(a)); err != nil {
					logrus.WithError(err).Warn("alert delivery failed")
				}
			}
		}
	}()
}

func formatAlert(a events.Activity) string {
	return fmt.Sprintf("[%s] trade failed on %s (%s): %s",
		time.Now().Format(time.RFC3339), a.Broker, a.Symbol, a.Detail)
}
