package report

import (
	"context"
	"fmt"

	"kpidash/internal/amqp"
	"kpidash/internal/log"
)

// Publisher hands a report off for delivery.
type Publisher interface {
	Publish(ctx context.Context, r Report) error
}

// ReportPublisher is the broker side of a Publisher.
type ReportPublisher interface {
	PublishReport(ctx context.Context, msg *amqp.ReportMessage) error
}

// AMQPPublisher queues reports for the report worker.
type AMQPPublisher struct {
	client ReportPublisher
	logger *log.Logger
}

func NewAMQPPublisher(client ReportPublisher, logger *log.Logger) *AMQPPublisher {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &AMQPPublisher{client: client, logger: logger.WithComponent(log.ComponentReport)}
}

func (p *AMQPPublisher) Publish(ctx context.Context, r Report) error {
	if err := p.client.PublishReport(ctx, r.Message()); err != nil {
		return fmt.Errorf("publish report %s: %w", r.ID, err)
	}
	p.logger.InfoContext(ctx, "Report queued",
		log.FieldReportID, r.ID,
		log.FieldNotification, string(r.Settings.Notification),
		log.FieldDatasetVersion, r.DatasetVersion)
	return nil
}

// LogPublisher writes reports to the log. Used when no broker is configured.
type LogPublisher struct {
	logger *log.Logger
}

func NewLogPublisher(logger *log.Logger) *LogPublisher {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LogPublisher{logger: logger.WithComponent(log.ComponentReport)}
}

func (p *LogPublisher) Publish(ctx context.Context, r Report) error {
	p.logger.InfoContext(ctx, "Report generated",
		log.FieldReportID, r.ID,
		log.FieldNotification, string(r.Settings.Notification),
		log.FieldRows, r.Rows,
		"report", r.Text())
	return nil
}
