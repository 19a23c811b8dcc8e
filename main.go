package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	auction "auction-market/internal/auctionService"
	bidding "auction-market/internal/biddingService"
	"auction-market/internal/config"
	ledger "auction-market/internal/ledgerService"
	"auction-market/internal/locker"
	"auction-market/internal/metrics"
	"auction-market/internal/repository"
	"auction-market/internal/repository/postgres"
	"auction-market/internal/retry"
	"auction-market/internal/server"
	"auction-market/internal/settlement"
	"auction-market/internal/sweeper"
	"auction-market/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// store is the union of record interfaces every backend implements.
type store interface {
	repository.AuctionDB
	repository.WalletDB
	repository.SaleDB
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (overrides $MARKET_CONFIG)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}
	utils.SetLevel(cfg.LogLevel)

	// --- Infra ---
	repo, closeStore, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	locks, closeLocks, err := openLocker(ctx, cfg.Lock)
	if err != nil {
		return err
	}
	defer closeLocks()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	policy := retry.DefaultPolicy()
	policy.Attempts = cfg.Bidding.MaxAttempts
	policy.Start = cfg.Bidding.RetryBackoff

	// --- Services ---
	ledgerSvc := ledger.NewLedgerService(repo, locks, ledger.Options{Retry: policy, Metrics: m})
	auctionSvc := auction.NewAuctionService(repo, repo, locks, auction.Options{
		Retry:            policy,
		Metrics:          m,
		Publisher:        settlement.LogPublisher{},
		AllowPrebidEdits: cfg.Auction.AllowPrebidEdits,
	})
	biddingSvc := bidding.NewBiddingService(repo, locks, bidding.Options{Retry: policy, Metrics: m})

	if cfg.Sweeper.Enabled {
		go sweeper.New(auctionSvc, cfg.Sweeper.Interval).Run(ctx)
	}

	if cfg.Auth.JWTSecret == "" {
		utils.Warn("auth.jwt_secret is empty; bearer tokens will be rejected and only public reads work", nil)
	}

	// --- HTTP server ---
	gin.SetMode(gin.ReleaseMode)
	router := server.SetupRouter(server.Services{
		Ledger:   ledgerSvc,
		Auctions: auctionSvc,
		Bidding:  biddingSvc,
	}, server.Options{JWTSecret: cfg.Auth.JWTSecret, Metrics: m})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}
		errCh <- nil
	}()

	utils.Info("Starting auction server", map[string]any{
		"addr":    srv.Addr,
		"storage": cfg.Storage.Driver,
		"lock":    cfg.Lock.Driver,
		"sweeper": cfg.Sweeper.Enabled,
	})

	select {
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}
		return nil
	case <-ctx.Done():
	}

	utils.Info("Shutting down server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (store, func(), error) {
	if cfg.Driver != "postgres" {
		return repository.NewMemoryRepo(), func() {}, nil
	}

	db, err := postgres.Open(ctx, cfg.Postgres.DSN, postgres.PoolOptions{
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	return postgres.New(db), func() {
		if err := db.Close(); err != nil {
			utils.Warn("closing postgres", map[string]any{"error": err.Error()})
		}
	}, nil
}

func openLocker(ctx context.Context, cfg config.LockConfig) (locker.Locker, func(), error) {
	if cfg.Driver != "redis" {
		return locker.NewLocal(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return locker.NewRedis(client, locker.RedisOptions{TTL: cfg.TTL, Wait: cfg.Wait}), func() {
		if err := client.Close(); err != nil {
			utils.Warn("closing redis", map[string]any{"error": err.Error()})
		}
	}, nil
}
