// Package main is the entry point for the Sentinel CAN-SLIM position
// monitor. It watches open positions and watchlist candidates against a
// checker suite, tracks the daily market regime, and emits alerts — no
// broker connectivity, no trade execution, no GUI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/canslim/sentinel/internal/app"
	"github.com/canslim/sentinel/internal/config"
	"github.com/canslim/sentinel/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	log.Info().Msg("starting sentinel")

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire application")
	}

	ctx, cancel := context.WithCancel(context.Background())

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- a.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutdown signal received")
	case err := <-runErrCh:
		if err != nil {
			log.Error().Err(err).Msg("application run loop exited with error")
		}
	}

	cancel()
	a.Shutdown(shutdownTimeout)
	log.Info().Msg("sentinel stopped")
}
