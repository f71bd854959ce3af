package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"finansheet/internal/amqp"
	"finansheet/internal/cli"
	"finansheet/internal/log"
	"finansheet/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.DefaultConfig().Level, log.ComponentReminder)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.SlogLevel(), log.ComponentReminder)

	logger.Info("Starting reminder-worker",
		"interval", cfg.ReminderInterval,
		"queue", cfg.AMQPReminderQueue)

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	result := cli.InitBackend(startCtx, logger, cfg)
	startCancel()

	amqpClient := cli.InitAMQP(logger, cfg, true)

	dashboard := services.NewDashboardService(result.Backend, result.Backend, cli.ScheduleOptions(cfg))
	processor := services.NewReminderProcessor(dashboard, cli.ReminderPublisher(amqpClient))

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
		cli.RunEvery(gctx, cfg.ReminderInterval, func(ctx context.Context) {
			// the data may have changed in the server process
			dashboard.Invalidate()
			if _, err := processor.ProcessReminders(ctx); err != nil {
				logger.Error("Reminder processing failed", log.FieldError, err)
			}
		})
		return nil
	})
	g.Go(func() error {
		return amqpClient.ConsumeReminders(gctx, func(ctx context.Context, m *amqp.ReminderMessage) error {
			logger.InfoContext(ctx, "Commitment reminder",
				log.FieldCommitmentID, m.CommitmentID,
				log.FieldCommitment, m.Name,
				log.FieldPeriod, m.Period,
				log.FieldStatus, m.Status,
				"due_date", m.DueDate,
				log.FieldAmount, m.Amount.String(),
				"days_overdue", m.DaysOverdue,
				"days_remaining", m.DaysRemaining,
				"important", m.Important)
			return nil
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Reminder consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
}
