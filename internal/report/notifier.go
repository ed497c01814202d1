package report

import (
	"context"
	"errors"
	"fmt"

	"kpidash/internal/core"
	"kpidash/internal/log"
)

var ErrNoNotifier = errors.New("no notifier for preference")

// Notifier delivers a finished report to stakeholders over one channel.
type Notifier interface {
	Notify(ctx context.Context, r Report) error
}

// LogNotifier stands in for a delivery gateway and records what would be sent.
type LogNotifier struct {
	channel core.NotificationPreference
	logger  *log.Logger
}

func NewLogNotifier(channel core.NotificationPreference, logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LogNotifier{channel: channel, logger: logger.WithComponent(log.ComponentReport)}
}

func (n *LogNotifier) Notify(ctx context.Context, r Report) error {
	n.logger.InfoContext(ctx, "Report delivered",
		log.FieldReportID, r.ID,
		log.FieldNotification, string(n.channel),
		"kpis", len(r.Summaries))
	return nil
}

// Notifiers maps each notification preference to its channel.
type Notifiers map[core.NotificationPreference]Notifier

// DefaultNotifiers wires log-backed Email and SMS channels.
func DefaultNotifiers(logger *log.Logger) Notifiers {
	return Notifiers{
		core.NotifyEmail: NewLogNotifier(core.NotifyEmail, logger),
		core.NotifySMS:   NewLogNotifier(core.NotifySMS, logger),
	}
}

// Deliver sends r over the channel chosen in its settings. NotifyNone is a
// no-op and reports false.
func (ns Notifiers) Deliver(ctx context.Context, r Report) (bool, error) {
	pref := r.Settings.Notification
	if pref == core.NotifyNone {
		return false, nil
	}
	n, ok := ns[pref]
	if !ok || n == nil {
		return false, fmt.Errorf("%w: %s", ErrNoNotifier, pref)
	}
	if err := n.Notify(ctx, r); err != nil {
		return false, fmt.Errorf("notify %s: %w", pref, err)
	}
	return true, nil
}
