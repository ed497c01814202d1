package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"kpidash/internal/core"
	"kpidash/internal/log"
	"kpidash/internal/sources"
)

// Scheduler periodically reports on the default data source.
type Scheduler struct {
	source    sources.DatasetSource
	builder   *Builder
	publisher Publisher
	settings  core.Settings
	logger    *log.Logger
}

func NewScheduler(source sources.DatasetSource, builder *Builder, publisher Publisher, settings core.Settings, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Scheduler{
		source:    source,
		builder:   builder,
		publisher: publisher,
		settings:  settings,
		logger:    logger.WithComponent(log.ComponentScheduler),
	}
}

// Interval is the report frequency as a duration.
func (s *Scheduler) Interval() time.Duration {
	return time.Duration(s.settings.ReportFrequencyDays) * 24 * time.Hour
}

// RunOnce loads the source, builds a report and publishes it.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	ds, err := s.source.Load(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load %s: %w", s.source.Name(), err)
	}
	r, err := s.builder.Build(ctx, ds, s.settings)
	if err != nil {
		return Report{}, err
	}
	if err := s.publisher.Publish(ctx, r); err != nil {
		return r, err
	}
	return r, nil
}

// Start runs RunOnce every Interval until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.settings.Validate(); err != nil {
		return fmt.Errorf("scheduler settings: %w", err)
	}

	scheduler := gocron.NewScheduler(time.UTC)
	_, err := scheduler.Every(s.Interval()).Do(func() {
		r, err := s.RunOnce(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.ErrorContext(ctx, "Scheduled report failed", log.FieldError, err)
			}
			return
		}
		s.logger.InfoContext(ctx, "Scheduled report published", log.FieldReportID, r.ID)
	})
	if err != nil {
		return fmt.Errorf("schedule report: %w", err)
	}

	s.logger.InfoContext(ctx, "Report scheduler started",
		"interval", s.Interval().String(),
		"source", s.source.Name())
	scheduler.StartAsync()

	<-ctx.Done()
	scheduler.Stop()
	s.logger.Info("Report scheduler stopped")
	return nil
}
