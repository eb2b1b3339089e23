// Package main is the entry point for the quote platform server: it loads
// configuration, wires the component graph, starts the HTTP API and the
// job scheduler, and waits for a shutdown signal.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/quoteflow/internal/clients/exchangerate"
	"github.com/aristath/quoteflow/internal/config"
	"github.com/aristath/quoteflow/internal/query"
	"github.com/aristath/quoteflow/internal/server"
	"github.com/aristath/quoteflow/internal/wiring"
	"github.com/aristath/quoteflow/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	log.Info().Msg("starting quoteflow")

	container, err := wiring.Build(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire dependencies")
	}
	defer container.Store.Close()

	rateConverter := exchangerate.NewClient(time.Hour, log)
	container.Query = query.New(container.Store, rateConverter)

	srv := server.New(server.Config{
		Log:       log,
		Cfg:       cfg,
		Store:     container.Store,
		Query:     container.Query,
		Pipeline:  container.Pipeline,
		Router:    container.Router,
		GapEngine: container.GapEngine,
		Calendar:  container.Calendar,
		Backup:    container.Backup,
		Events:    container.Events,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("server started")

	container.Scheduler.Start()
	log.Info().Msg("scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	schedStopCtx := container.Scheduler.Stop()
	<-schedStopCtx.Done()
	log.Info().Msg("scheduler stopped")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
