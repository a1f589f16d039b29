package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/collab"
	"server/internal/infra"
	"server/internal/ledger"
	"server/internal/lock"
	"server/internal/notify"
	"server/internal/reconcile"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("reconciler: db connection failed")
	}
	defer pool.Close()

	metrics, err := infra.NewMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("reconciler: failed to register metrics")
	}

	jobs := repo.NewJobRepository(pool)
	credits := ledger.New(logger)
	locks := lock.New(infra.NewSQLRunner(pool, logger), cfg.LockTimeout, logger)

	agents := collab.NewAgentClient(collab.AgentClientOptions{
		Timeout: cfg.CollabTimeout,
		Logger:  logger,
	})
	payments, err := collab.NewPaymentClient(collab.PaymentClientOptions{
		BaseURL: cfg.PaymentBaseURL,
		Timeout: cfg.CollabTimeout,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("reconciler: failed to configure payment client")
	}

	// Status rows changed here are broadcast by Postgres NOTIFY; the API
	// process hosts the listener, so no hub subscribers live here.
	hub := notify.NewHub(logger, metrics)

	sweeper := reconcile.NewSweeper(reconcile.SweeperOptions{
		Jobs:      jobs,
		Agents:    agents,
		Payments:  payments,
		Locks:     locks,
		Ledger:    credits,
		Tx:        infra.PoolTxRunner{Pool: pool},
		Publisher: hub,
		Logger:    logger,
		Metrics:   metrics,
		AgentBaseURL: func(agentID string) string {
			return fmt.Sprintf(cfg.AgentBaseURLTemplate, agentID)
		},
		BatchSize:     cfg.SweepBatchSize,
		CollabTimeout: cfg.CollabTimeout,
	})

	if err := run(ctx, sweeper, cfg.SweepInterval, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("reconciler: stopped with error")
	}
	logger.Info().Msg("reconciler: stopped")
}

func run(ctx context.Context, sweeper *reconcile.Sweeper, interval time.Duration, logger infra.Logger) error {
	logger.Info().Dur("interval", interval).Msg("reconciler: started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := sweeper.Sweep(ctx)
		switch {
		case err != nil:
			logger.Error().Err(err).Msg("reconciler: sweep failed")
		case !result.Acquired:
			logger.Debug().Msg("reconciler: sweep lock held elsewhere, skipping")
		default:
			logger.Info().
				Int("reconciled", result.Reconciled).
				Int("failed", result.Failed).
				Msg("reconciler: sweep done")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
