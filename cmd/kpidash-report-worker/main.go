package main

import (
	"context"
	"errors"
	"os"
	"time"

	"kpidash/internal/amqp"
	"kpidash/internal/cli"
	"kpidash/internal/log"
	"kpidash/internal/report"
	"kpidash/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), log.ComponentWorker)
	logger.Info("Starting kpidash-report-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the report worker")
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	reportWorker := worker.NewReportWorker(report.DefaultNotifiers(logger), logger)

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)

	logger.Info("Consuming report messages",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	if err := amqpClient.ConsumeReports(ctx, reportWorker.HandleReportMessage); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Report worker stopped gracefully")
}
