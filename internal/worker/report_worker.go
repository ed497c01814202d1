package worker

import (
	"context"
	"errors"
	"fmt"

	"kpidash/internal/amqp"
	"kpidash/internal/log"
	"kpidash/internal/report"
)

// ReportWorker delivers reports consumed from the broker.
type ReportWorker struct {
	notifiers report.Notifiers
	logger    *log.Logger
}

func NewReportWorker(notifiers report.Notifiers, logger *log.Logger) *ReportWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ReportWorker{
		notifiers: notifiers,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleReportMessage processes a single report message from AMQP. An
// unknown channel is permanent, so it is logged and acknowledged.
func (w *ReportWorker) HandleReportMessage(ctx context.Context, msg *amqp.ReportMessage) error {
	w.logger.InfoContext(ctx, "Processing report message",
		log.FieldReportID, msg.ReportID,
		log.FieldNotification, string(msg.Settings.Notification),
		"timestamp", msg.Timestamp)

	r := report.FromMessage(msg)
	sent, err := w.notifiers.Deliver(ctx, r)
	if errors.Is(err, report.ErrNoNotifier) {
		w.logger.WarnContext(ctx, "No notifier configured, dropping report",
			log.FieldReportID, msg.ReportID,
			log.FieldNotification, string(msg.Settings.Notification))
		return nil
	}
	if err != nil {
		return fmt.Errorf("deliver report %s: %w", msg.ReportID, err)
	}
	if !sent {
		w.logger.InfoContext(ctx, "Notifications disabled, report skipped", log.FieldReportID, msg.ReportID)
		return nil
	}

	w.logger.InfoContext(ctx, "Successfully delivered report", log.FieldReportID, msg.ReportID)
	return nil
}
