package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"broker-gateway/internal/api"
	"broker-gateway/internal/engine"
	"broker-gateway/internal/events"
	"broker-gateway/internal/monitor"
	"broker-gateway/internal/registry"
	"broker-gateway/pkg/broker/cryptox"
	"broker-gateway/pkg/broker/marginfx"
	"broker-gateway/pkg/config"
	"broker-gateway/pkg/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	setupLogging(cfg)

	database, err := db.New(cfg.DBPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open database")
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		logrus.WithError(err).Fatal("failed to apply migrations")
	}

	// One adapter per broker kind. The crypto client authenticates once here
	// and is shared by every request; the margin-FX bridge spawns per call.
	marginFX := marginfx.New(marginfx.Config{
		Interpreter: cfg.MarginFXInterpreter,
		ScriptPath:  cfg.MarginFXScript,
		Timeout:     cfg.MarginFXTimeout,
	})
	crypto := cryptox.New(cryptox.Config{
		APIKey:    cfg.CryptoAPIKey,
		APISecret: cfg.CryptoAPISecret,
		RPS:       cfg.CryptoRPS,
		Burst:     cfg.CryptoBurst,
	})

	reg, err := registry.New(marginFX, crypto)
	if err != nil {
		logrus.WithError(err).Fatal("failed to build broker registry")
	}

	bus := events.NewBus()
	metrics := monitor.NewSystemMetrics()
	sw := engine.NewSwitch()

	monCtx, monCancel := context.WithCancel(context.Background())
	defer monCancel()
	alerter := &monitor.Monitor{Bus: bus, Sink: monitor.LogSink{}}
	alerter.Start(monCtx)

	server := api.NewServer(reg, sw, bus, database, metrics, cfg.JWTSecret, api.CredentialFallback{
		Account:  cfg.MarginFXAccount,
		Password: cfg.MarginFXPassword,
		Server:   cfg.MarginFXServer,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("port", cfg.Port).Info("gateway listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("graceful shutdown failed")
	}
}

func setupLogging(cfg *config.Config) {
	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
