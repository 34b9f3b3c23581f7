package api

import (
	"errors"
	"net/http"
	"time"

	"broker-gateway/internal/events"
	"broker-gateway/internal/registry"
	"broker-gateway/pkg/broker"
	"broker-gateway/pkg/db"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// resolveAdapter maps the :broker path segment onto an adapter, answering the
// client-error response itself when the identifier is unknown.
func (s *Server) resolveAdapter(c *gin.Context) (broker.Adapter, bool) {
	adapter, err := s.Registry.Resolve(c.Param("broker"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "UNSUPPORTED_BROKER",
			"error": err.Error(),
		})
		return nil, false
	}
	return adapter, true
}

// accountFromRequest assembles the per-request identity: account id from the
// path, password and server from the query with environment fallback. The
// result lives for one adapter call; the password never reaches a log line.
func (s *Server) accountFromRequest(c *gin.Context, kind broker.Kind) broker.Account {
	account := broker.Account{
		Kind:     kind,
		ID:       c.Param("account"),
		Password: c.Query("password"),
		Server:   c.Query("server"),
	}
	if account.ID == "" || account.ID == "default" {
		if s.Fallback.Account != "" {
			account.ID = s.Fallback.Account
		}
	}
	if account.Password == "" {
		account.Password = s.Fallback.Password
	}
	if account.Server == "" {
		account.Server = s.Fallback.Server
	}
	if kind == broker.KindMarginFX && account.Password == "" {
		logrus.WithField("account", account.ID).
			Warn("no terminal password supplied, forwarding empty credentials")
	}
	return account
}

// renderBrokerError flattens a typed adapter failure into an HTTP response.
// This is the only place the error taxonomy meets status codes.
func (s *Server) renderBrokerError(c *gin.Context, err error) {
	if errors.Is(err, registry.ErrUnsupportedBroker) {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "UNSUPPORTED_BROKER",
			"error": err.Error(),
		})
		return
	}

	if e, ok := broker.AsError(err); ok {
		status := http.StatusBadGateway
		switch {
		case e.RateLimited:
			status = http.StatusTooManyRequests
		case e.Kind == broker.ErrTimeout:
			status = http.StatusGatewayTimeout
		case e.Kind == broker.ErrRejected:
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{
			"code":      string(e.Kind),
			"error":     e.Message(),
			"retryable": e.Retryable(),
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"code":  "INTERNAL_ERROR",
		"error": err.Error(),
	})
}

func (s *Server) getBalance(c *gin.Context) {
	adapter, ok := s.resolveAdapter(c)
	if !ok {
		return
	}
	account := s.accountFromRequest(c, adapter.Kind())

	start := time.Now()
	balance, err := adapter.GetBalance(c.Request.Context(), account)
	s.Metrics.RecordAdapterCall(adapter.Kind(), time.Since(start), err != nil)
	if err != nil {
		s.renderBrokerError(c, err)
		return
	}

	c.JSON(http.StatusOK, balance)
}

func (s *Server) executeTrade(c *gin.Context) {
	adapter, ok := s.resolveAdapter(c)
	if !ok {
		return
	}

	var req broker.TradeRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_PAYLOAD",
			"error": "invalid request payload",
		})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_TRADE",
			"error": err.Error(),
		})
		return
	}

	account := s.accountFromRequest(c, adapter.Kind())

	start := time.Now()
	result, err := adapter.ExecuteTrade(c.Request.Context(), account, req)
	s.Metrics.RecordAdapterCall(adapter.Kind(), time.Since(start), err != nil)
	if err != nil {
		s.Bus.Publish(events.Activity{
			Event:   events.EventTradeFailed,
			Broker:  string(adapter.Kind()),
			Account: account.ID,
			Symbol:  req.Symbol,
			Detail:  err.Error(),
		})
		s.renderBrokerError(c, err)
		return
	}

	event := events.EventTradeExecuted
	if result.Status == broker.TradeRejected || result.Status == broker.TradeError {
		event = events.EventTradeFailed
	}
	s.Bus.Publish(events.Activity{
		Event:   event,
		Broker:  string(adapter.Kind()),
		Account: account.ID,
		Symbol:  req.Symbol,
		Status:  string(result.Status),
		Detail:  result.Message,
	})

	c.JSON(http.StatusOK, result)
}

func (s *Server) deposit(c *gin.Context) {
	s.transfer(c, broker.TransferDeposit)
}

func (s *Server) withdraw(c *gin.Context) {
	s.transfer(c, broker.TransferWithdraw)
}

// transfer handles the shared deposit/withdraw flow: validate, call the
// adapter, then record the acknowledgement in the ledger so ops can settle it.
func (s *Server) transfer(c *gin.Context, dir broker.TransferDirection) {
	adapter, ok := s.resolveAdapter(c)
	if !ok {
		return
	}

	var req broker.TransferRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_PAYLOAD",
			"error": "invalid request payload",
		})
		return
	}
	if err := req.Validate(dir); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_TRANSFER",
			"error": err.Error(),
		})
		return
	}

	account := s.accountFromRequest(c, adapter.Kind())

	start := time.Now()
	var (
		result broker.TransferResult
		err    error
	)
	if dir == broker.TransferDeposit {
		result, err = adapter.Deposit(c.Request.Context(), account, req)
	} else {
		result, err = adapter.Withdraw(c.Request.Context(), account, req)
	}
	s.Metrics.RecordAdapterCall(adapter.Kind(), time.Since(start), err != nil)
	if err != nil {
		s.renderBrokerError(c, err)
		return
	}

	transferID := uuid.NewString()
	row := db.Transfer{
		ID:        transferID,
		Broker:    string(adapter.Kind()),
		Account:   account.ID,
		Direction: string(dir),
		Amount:    req.Amount,
		Currency:  req.Currency,
		Address:   result.Address,
		Status:    string(result.Status),
		Reference: result.Reference,
	}
	if row.Address == "" {
		row.Address = req.Address
	}
	if err := s.DB.InsertTransfer(c.Request.Context(), row); err != nil {
		logrus.WithError(err).Error("transfer acknowledged but ledger insert failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "LEDGER_ERROR",
			"error": "transfer acknowledged but could not be recorded",
		})
		return
	}

	s.Bus.Publish(events.Activity{
		Event:   events.EventTransferPending,
		Broker:  string(adapter.Kind()),
		Account: account.ID,
		Status:  string(result.Status),
		Detail:  string(dir) + " " + transferID,
	})

	c.JSON(http.StatusOK, gin.H{
		"transfer_id": transferID,
		"status":      result.Status,
		"reference":   result.Reference,
		"address":     result.Address,
		"message":     result.Message,
	})
}

func (s *Server) getMarketData(c *gin.Context) {
	identifier := c.Query("broker")
	if identifier == "" {
		identifier = string(broker.KindMarginFX)
	}
	adapter, err := s.Registry.Resolve(identifier)
	if err != nil {
		s.renderBrokerError(c, err)
		return
	}

	start := time.Now()
	md, err := adapter.GetMarketData(c.Request.Context(), c.Param("symbol"))
	s.Metrics.RecordAdapterCall(adapter.Kind(), time.Since(start), err != nil)
	if err != nil {
		s.renderBrokerError(c, err)
		return
	}

	c.JSON(http.StatusOK, md)
}

func (s *Server) getEngineStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.Snapshot())
}

func (s *Server) startEngine(c *gin.Context) {
	s.Engine.Start(CurrentUserID(c))
	s.publishEngineState("started")
	c.JSON(http.StatusOK, s.Engine.Snapshot())
}

func (s *Server) stopEngine(c *gin.Context) {
	s.Engine.Stop(CurrentUserID(c))
	s.publishEngineState("stopped")
	c.JSON(http.StatusOK, s.Engine.Snapshot())
}

func (s *Server) emergencyStopEngine(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.BindJSON(&req) // body optional

	s.Engine.EmergencyStop(CurrentUserID(c), req.Reason)
	s.publishEngineState("emergency-stopped")
	c.JSON(http.StatusOK, s.Engine.Snapshot())
}

func (s *Server) publishEngineState(status string) {
	st := s.Engine.Snapshot()
	s.Bus.Publish(events.Activity{
		Event:  events.EventEngineState,
		Status: status,
		Detail: st.Reason,
	})
}

func (s *Server) listTransfers(c *gin.Context) {
	identifier := c.Param("broker")
	if _, ok := broker.ParseKind(identifier); !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "UNSUPPORTED_BROKER",
			"error": "unsupported broker: " + identifier,
		})
		return
	}

	transfers, err := s.DB.ListTransfers(c.Request.Context(), identifier, c.Param("account"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "LEDGER_ERROR",
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transfers": transfers})
}

func (s *Server) settleTransfer(c *gin.Context) {
	id := c.Param("id")
	if err := s.DB.MarkTransferSettled(c.Request.Context(), id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":  "TRANSFER_NOT_FOUND",
				"error": "no unsettled transfer with that id",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "LEDGER_ERROR",
			"error": err.Error(),
		})
		return
	}

	transfer, err := s.DB.GetTransfer(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "LEDGER_ERROR",
			"error": err.Error(),
		})
		return
	}

	s.Bus.Publish(events.Activity{
		Event:   events.EventTransferSettled,
		Broker:  transfer.Broker,
		Account: transfer.Account,
		Status:  transfer.Status,
		Detail:  transfer.Direction + " " + transfer.ID,
	})

	c.JSON(http.StatusOK, transfer)
}
