package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/divvyapp/divvy/internal/amqp"
	"github.com/divvyapp/divvy/internal/auth"
	"github.com/divvyapp/divvy/internal/broadcast"
	"github.com/divvyapp/divvy/internal/cache"
	"github.com/divvyapp/divvy/internal/config"
	"github.com/divvyapp/divvy/internal/models"
	"github.com/divvyapp/divvy/internal/server"
	"github.com/divvyapp/divvy/internal/service"
	"github.com/divvyapp/divvy/internal/storage/sqlite"
	"github.com/divvyapp/divvy/pkg/logging"
)

func main() {
	// .env is for local development; absence is fine.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("loading .env failed", "error", err)
	}
	logging.Setup()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	slog.Info("storage initialized", "database", cfg.SQLiteDBPath)

	broadcaster := broadcast.New(slog.Default())
	defer broadcaster.Close()

	var publisher *amqp.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = amqp.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// The broker is an optional fan-out target; the ledger is the
			// source of truth, so starting without it is acceptable.
			slog.Warn("broker unavailable, continuing without AMQP", "error", err)
			publisher = nil
		} else {
			defer publisher.Close()
			slog.Info("broker connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	locks := service.NewGroupLocks()
	balances := cache.NewLRU[*models.GroupBalances](cfg.BalanceCacheSize, cfg.BalanceCacheTTL)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTokenDuration)

	srv := server.New(
		service.NewUserService(store),
		service.NewGroupService(store, locks, balances),
		service.NewExpenseService(store, locks, balances, broadcaster, publisher),
		service.NewSettlementService(store, locks, balances),
		broadcaster,
		tokens,
	)

	httpServer := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        srv.Handler(),
		ReadTimeout:    10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
		// No WriteTimeout: the SSE endpoint holds connections open.
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
