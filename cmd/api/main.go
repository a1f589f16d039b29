package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/collab"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
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
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	metrics, err := infra.NewMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to register metrics")
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
		logger.Fatal().Err(err).Msg("failed to configure payment client")
	}

	hub := notify.NewHub(logger, metrics)
	txRunner := infra.PoolTxRunner{Pool: pool}

	sweeper := reconcile.NewSweeper(reconcile.SweeperOptions{
		Jobs:      jobs,
		Agents:    agents,
		Payments:  payments,
		Locks:     locks,
		Ledger:    credits,
		Tx:        txRunner,
		Publisher: hub,
		Logger:    logger,
		Metrics:   metrics,
		AgentBaseURL: func(agentID string) string {
			return fmt.Sprintf(cfg.AgentBaseURLTemplate, agentID)
		},
		BatchSize:     cfg.SweepBatchSize,
		CollabTimeout: cfg.CollabTimeout,
	})

	listener := notify.NewListener(cfg.DatabaseURL, jobs, hub, logger, metrics)
	if err := listener.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start status listener")
	}
	defer func() {
		if err := listener.Stop(); err != nil {
			logger.Warn().Err(err).Msg("status listener close failed")
		}
	}()

	app := &handlers.App{
		Jobs:   jobs,
		Ledger: credits,
		DB:     pool,
		Tx:     txRunner,
		Sweeps: sweeper,
		Hub:    hub,
		Logger: logger,
	}

	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
