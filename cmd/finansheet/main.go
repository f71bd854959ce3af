package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finansheet/internal/cli"
	apphttp "finansheet/internal/http"
	"finansheet/internal/log"
	"finansheet/internal/middleware/ratelimit"
	"finansheet/internal/services"
)

func main() {
	cli.LoadEnvFile()

	// the level is only known after the config is loaded
	logger := cli.SetupLogger(log.DefaultConfig().Level, log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.SlogLevel(), log.ComponentApp)

	logger.Info("Starting finansheet",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"base_currency", cfg.BaseCurrency,
		"grid_months", cfg.GridMonths)

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	result := cli.InitBackend(startCtx, logger, cfg)
	startCancel()

	amqpClient := cli.InitAMQP(logger, cfg, false)

	dashboard := services.NewDashboardService(result.Backend, result.Backend, cli.ScheduleOptions(cfg))
	commitments := services.NewCommitmentService(result.Backend, cli.EventPublisher(amqpClient), dashboard, cfg.BaseCurrency)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Dashboard:   dashboard,
		Commitments: commitments,
		Pinger:      result.Backend,
		GridMonths:  cfg.GridMonths,
		RateLimit:   ratelimit.DefaultConfig(),
		Logger:      logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", log.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("Failed to close AMQP client", log.FieldError, err)
			}
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Failed to close data backend", log.FieldError, err)
			}
		}
	})

	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", log.FieldError, err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
