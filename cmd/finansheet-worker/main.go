package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"finansheet/internal/cli"
	"finansheet/internal/log"
	"finansheet/internal/services"
	"finansheet/internal/sheets/google"
	"finansheet/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.DefaultConfig().Level, log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.SlogLevel(), log.ComponentWorker)

	logger.Info("Starting finansheet-worker",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName,
		"export_interval", cfg.ExportInterval)

	if !cfg.ExportEnabled() {
		logger.Error("Export disabled - GOOGLE_SPREADSHEET_ID and service account credentials are required")
		os.Exit(1)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	result := cli.InitBackend(startCtx, logger, cfg)
	sheetsClient, err := google.New(startCtx, google.Options{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	startCancel()
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}

	amqpClient := cli.InitAMQP(logger, cfg, true)

	dashboard := services.NewDashboardService(result.Backend, result.Backend, cli.ScheduleOptions(cfg))
	exportWorker := worker.NewExportWorker(dashboard, sheetsClient, cfg.GridMonths)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Error("Failed to close AMQP client", log.FieldError, err)
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Failed to close data backend", log.FieldError, err)
			}
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeEvents(gctx, exportWorker.HandleEvent)
	})
	g.Go(func() error {
		// periodic export catches events missed while the worker was down
		cli.RunEvery(gctx, cfg.ExportInterval, func(ctx context.Context) {
			if err := exportWorker.ExportAll(ctx); err != nil {
				logger.Error("Periodic export failed", log.FieldError, err)
			}
		})
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Event consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
}
