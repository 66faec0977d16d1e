package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/mikepea/stockpile/pkg/stockpile/auth"
	"github.com/mikepea/stockpile/pkg/stockpile/config"
	"github.com/mikepea/stockpile/pkg/stockpile/logger"
	"github.com/mikepea/stockpile/pkg/stockpile/membership"
	"github.com/mikepea/stockpile/pkg/stockpile/server"
	"github.com/mikepea/stockpile/pkg/stockpile/store"
)

// @title Stockpile API
// @version 1.0
// @description Multi-user electronic component inventory with personal and group warehouses.

// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := server.OpenBacking(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to open storage")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := store.New(store.Options{Backing: b, Logger: log, Metrics: store.NewMetrics(reg)})
	defer func() {
		if err := s.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close storage")
		}
	}()
	s.Init(ctx)

	if err := server.EnsureAdmin(ctx, s, cfg.Admin, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure admin user exists")
	}

	sync := membership.New(s, log)
	if err := sync.Sync(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to synchronize group membership")
	}

	router := server.NewRouter(server.Deps{
		Store:    s,
		Tokens:   auth.NewTokenIssuer(cfg.JWT.Secret, time.Duration(cfg.JWT.Expiration)*time.Minute, cfg.JWT.Issuer),
		Sync:     sync,
		Logger:   log,
		Registry: reg,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("storage", cfg.Storage.Driver).Msg("Starting Stockpile server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
