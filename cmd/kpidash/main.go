package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"kpidash/internal/amqp"
	"kpidash/internal/backend"
	"kpidash/internal/cache"
	"kpidash/internal/cli"
	"kpidash/internal/config"
	"kpidash/internal/core"
	apphttp "kpidash/internal/http"
	"kpidash/internal/log"
	"kpidash/internal/middleware/ratelimit"
	"kpidash/internal/report"
	"kpidash/internal/session"
	"kpidash/internal/sources"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	defaults, err := config.LoadPreferences(cfg.PreferencesFile)
	if err != nil {
		logger.Warn("Ignoring dashboard preferences", log.FieldError, err)
		defaults = core.DefaultSettings()
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).Create(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "source", cfg.DataSource)
		os.Exit(1)
	}
	calc, err := res.NewCalculator()
	if err != nil {
		logger.Error("Failed to build calculator", log.FieldError, err)
		os.Exit(1)
	}

	sessions := session.NewStore(session.Config{
		TTL:              cfg.SessionTTL,
		MaxSessions:      cfg.MaxSessions,
		SummaryCacheSize: cfg.SummaryCacheSize,
		Defaults:         defaults,
	}, res.Source, calc, logger)

	caches := cache.NewManager()
	sessions.Register(caches)
	caches.StartCleanup(5 * time.Minute)

	checks := make(map[string]sources.HealthChecker, len(res.Checks)+1)
	for name, c := range res.Checks {
		checks[name] = c
	}

	var (
		publisher  report.Publisher = report.NewLogPublisher(logger)
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, reports will only be logged", log.FieldError, err)
		} else {
			publisher = report.NewAMQPPublisher(amqpClient, logger)
			checks["amqp"] = amqpClient
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	builder := report.NewBuilder(sessions)
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Sessions:       sessions,
		Reports:        builder,
		Publisher:      publisher,
		Checks:         checks,
		MaxUploadBytes: cfg.MaxUploadBytes,
		SessionTTL:     cfg.SessionTTL,
		RateLimit:      ratelimit.DefaultConfig(),
		Logger:         logger,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := res.Close(); err != nil {
			logger.Warn("Backend cleanup error", log.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting kpidash server",
			"port", cfg.Port,
			"source", res.Source.Name(),
			"baseline", cfg.BaselineMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.ReportSchedule {
		scheduler := report.NewScheduler(res.Source, builder, publisher, defaults, logger)
		g.Go(func() error {
			return scheduler.Start(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
