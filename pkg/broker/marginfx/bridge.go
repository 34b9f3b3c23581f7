// Package marginfx bridges the gateway to a margin-FX broker whose automation
// lives in an external toolchain. Each call spawns the automation script as a
// child process, passes credentials and one command as process arguments, and
// reads exactly one line of JSON from its stdout.
package marginfx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"broker-gateway/pkg/broker"
)

const (
	defaultTimeout = 25 * time.Second
	maxTimeout     = 30 * time.Second
	maxDetailLen   = 512
)

// Config holds the bridge invocation settings.
type Config struct {
	Interpreter string        // e.g. "python3"
	ScriptPath  string        // automation script invoked per call
	Timeout     time.Duration // hard bound on a single invocation
}

// Bridge is the margin-FX adapter. It keeps no per-call state; every
// operation is an independent child-process invocation.
type Bridge struct {
	cfg Config
	log *logrus.Entry
}

// New builds a Bridge, clamping the timeout into (0, 30s].
func New(cfg Config) *Bridge {
	if cfg.Interpreter == "" {
		cfg.Interpreter = "python3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Timeout > maxTimeout {
		cfg.Timeout = maxTimeout
	}
	return &Bridge{
		cfg: cfg,
		log: logrus.WithField("adapter", string(broker.KindMarginFX)),
	}
}

func (b *Bridge) Kind() broker.Kind { return broker.KindMarginFX }

// GetBalance queries account balance through the automation script.
func (b *Bridge) GetBalance(ctx context.Context, account broker.Account) (broker.Balance, error) {
	raw, err := b.invoke(ctx, account, command{Op: opGetBalance})
	if err != nil {
		return broker.Balance{}, err
	}

	var equity broker.Equity
	if uerr := json.Unmarshal(raw, &equity); uerr != nil {
		return broker.Balance{}, broker.NewError(broker.ErrParse, b.Kind(), opGetBalance,
			"balance payload has unexpected shape", uerr)
	}
	return broker.Balance{Broker: b.Kind(), Equity: &equity}, nil
}

// ExecuteTrade submits an order through the automation script.
func (b *Bridge) ExecuteTrade(ctx context.Context, account broker.Account, req broker.TradeRequest) (broker.TradeResult, error) {
	raw, err := b.invoke(ctx, account, command{Op: opExecuteTrade, Trade: &req})
	if err != nil {
		if e, ok := broker.AsError(err); ok && e.Kind == broker.ErrRejected {
			return broker.TradeResult{Status: broker.TradeRejected, Message: e.Message()}, nil
		}
		return broker.TradeResult{}, err
	}

	fields, err := decodeObject(raw)
	if err != nil {
		return broker.TradeResult{}, broker.NewError(broker.ErrParse, b.Kind(), opExecuteTrade,
			"trade payload is not a JSON object", err)
	}

	result := broker.TradeResult{
		Status:  mapTradeStatus(stringField(fields, "status")),
		OrderID: stringField(fields, "order_id"),
		Message: stringField(fields, "message"),
	}
	return result, nil
}

// Deposit acknowledges a deposit request without touching the terminal.
// Fund movement for this broker is settled out of band by an ops process;
// the immediate pending answer is the documented contract, not a shortcut.
func (b *Bridge) Deposit(ctx context.Context, account broker.Account, req broker.TransferRequest) (broker.TransferResult, error) {
	return broker.TransferResult{
		Status:  broker.TransferPending,
		Message: "deposit recorded; settlement is handled manually",
	}, nil
}

// Withdraw acknowledges a withdrawal request without touching the terminal.
// See Deposit.
func (b *Bridge) Withdraw(ctx context.Context, account broker.Account, req broker.TransferRequest) (broker.TransferResult, error) {
	return broker.TransferResult{
		Status:  broker.TransferPending,
		Message: "withdrawal recorded; settlement is handled manually",
	}, nil
}

// GetMarketData shells out for a quote snapshot. The terminal session holds
// its own login, so credential arguments are forwarded empty.
func (b *Bridge) GetMarketData(ctx context.Context, symbol string) (broker.MarketData, error) {
	raw, err := b.invoke(ctx, broker.Account{Kind: b.Kind()}, command{Op: opGetMarketData, Symbol: symbol})
	if err != nil {
		return broker.MarketData{}, err
	}
	return broker.MarketData{Symbol: symbol, Payload: raw}, nil
}

// invoke runs one script invocation under the configured deadline and
// validates the IPC contract: exit code zero, empty stderr, exactly one line
// of valid JSON on stdout. Partial or garbage output is never surfaced as a
// valid result.
func (b *Bridge) invoke(ctx context.Context, account broker.Account, c command) (json.RawMessage, error) {
	payload, err := marshalCommand(c)
	if err != nil {
		return nil, broker.NewError(broker.ErrParse, b.Kind(), c.Op, "cannot encode command", err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	// Credentials travel only in the child argv for this one invocation.
	// They are intentionally absent from all log lines below.
	cmd := exec.CommandContext(ctx, b.cfg.Interpreter,
		b.cfg.ScriptPath, account.ID, account.Password, account.Server, payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	log := b.log.WithFields(logrus.Fields{
		"op":      c.Op,
		"account": account.ID,
		"elapsed": elapsed.Round(time.Millisecond).String(),
	})

	if ctx.Err() == context.DeadlineExceeded {
		log.Warn("automation script exceeded deadline, process killed")
		return nil, broker.NewError(broker.ErrTimeout, b.Kind(), c.Op,
			fmt.Sprintf("automation script exceeded %s", b.cfg.Timeout), context.DeadlineExceeded)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		log.Warn("caller gone, process killed")
		return nil, broker.NewError(broker.ErrTimeout, b.Kind(), c.Op, "request canceled", ctx.Err())
	}

	if runErr != nil {
		detail := "automation script failed"
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			detail = fmt.Sprintf("automation script exited %d", exitErr.ExitCode())
		}
		if s := truncate(stderr.String()); s != "" {
			detail += ": " + s
		}
		log.WithField("detail", detail).Warn("subprocess failure")
		return nil, broker.NewError(broker.ErrSubprocess, b.Kind(), c.Op, detail, runErr)
	}

	if s := strings.TrimSpace(stderr.String()); s != "" {
		log.Warn("automation script wrote to stderr")
		return nil, broker.NewError(broker.ErrSubprocess, b.Kind(), c.Op,
			"automation script wrote to stderr: "+truncate(s), nil)
	}

	line, err := singleLine(stdout.String())
	if err != nil {
		log.Warn("protocol violation on stdout")
		return nil, broker.NewError(broker.ErrParse, b.Kind(), c.Op, err.Error(), nil)
	}

	raw := json.RawMessage(line)
	fields, err := decodeObject(raw)
	if err != nil {
		log.Warn("stdout is not a JSON object")
		return nil, broker.NewError(broker.ErrParse, b.Kind(), c.Op,
			"stdout is not a JSON object: "+truncate(line), err)
	}

	// The script reports its own failures as {"error": "..."} with exit 0.
	if msg, ok := fields["error"]; ok {
		log.Info("broker rejected operation")
		return nil, broker.NewError(broker.ErrRejected, b.Kind(), c.Op, fmt.Sprint(msg), nil)
	}

	log.Debug("automation script completed")
	return raw, nil
}

// singleLine enforces the one-line stdout contract.
func singleLine(out string) (string, error) {
	trimmed := strings.TrimSpace(out)
	if trimmed == "" {
		return "", fmt.Errorf("automation script produced no output")
	}
	if strings.ContainsAny(trimmed, "\n\r") {
		return "", fmt.Errorf("automation script produced multi-line output")
	}
	return trimmed, nil
}

func decodeObject(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func stringField(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func mapTradeStatus(s string) broker.TradeStatus {
	switch strings.ToLower(s) {
	case "success", "filled", "done":
		return broker.TradeFilled
	case "pending", "placed", "accepted":
		return broker.TradePending
	case "rejected":
		return broker.TradeRejected
	default:
		// Scripts historically answer {"order_id":..., "status":"success"};
		// an order id without a recognizable status still means the terminal
		// accepted the order.
		if s == "" {
			return broker.TradePending
		}
		return broker.TradeError
	}
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxDetailLen {
		return s[:maxDetailLen] + "..."
	}
	return s
}
