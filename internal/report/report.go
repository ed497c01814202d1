// Package report assembles KPI reports from a dataset and hands them to a
// publisher, on demand or on a schedule.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"kpidash/internal/amqp"
	"kpidash/internal/core"
	"kpidash/internal/format"
)

var ErrEmptyReport = errors.New("report has no KPIs")

// Summarizer computes the KPI summaries of a dataset. *core.Calculator,
// *session.Store and *session.Session satisfy it.
type Summarizer interface {
	Summarize(ctx context.Context, ds core.Dataset) ([]core.MetricSummary, error)
}

// Report is a point-in-time snapshot of the KPIs for one dataset.
type Report struct {
	ID             string
	GeneratedAt    time.Time
	Source         string
	DatasetVersion string
	Rows           int
	Settings       core.Settings
	Summaries      []core.MetricSummary
}

// Builder turns datasets into reports.
type Builder struct {
	summarizer Summarizer
	now        func() time.Time
}

func NewBuilder(s Summarizer) *Builder {
	return &Builder{summarizer: s, now: time.Now}
}

// Build summarizes ds and stamps the result with a new report ID.
func (b *Builder) Build(ctx context.Context, ds core.Dataset, settings core.Settings) (Report, error) {
	return b.BuildWith(ctx, b.summarizer, ds, settings)
}

// BuildWith is Build with the summaries taken from s, so a report shows the
// same KPIs as the session that requested it.
func (b *Builder) BuildWith(ctx context.Context, s Summarizer, ds core.Dataset, settings core.Settings) (Report, error) {
	if s == nil {
		s = b.summarizer
	}
	if err := settings.Validate(); err != nil {
		return Report{}, fmt.Errorf("report settings: %w", err)
	}
	summaries, err := s.Summarize(ctx, ds)
	if err != nil {
		return Report{}, fmt.Errorf("summarize %s: %w", ds.Source, err)
	}
	if len(summaries) == 0 {
		return Report{}, ErrEmptyReport
	}
	return Report{
		ID:             uuid.NewString(),
		GeneratedAt:    b.now().UTC(),
		Source:         ds.Source,
		DatasetVersion: ds.Version,
		Rows:           ds.Len(),
		Settings:       settings,
		Summaries:      summaries,
	}, nil
}

// Text renders the report as an aligned plain-text table.
func (r Report) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "KPI report %s\n", r.ID)
	fmt.Fprintf(&sb, "Generated: %s\n", r.GeneratedAt.Format(time.RFC1123))
	fmt.Fprintf(&sb, "Source: %s (%d rows)\n", r.Source, r.Rows)
	fmt.Fprintf(&sb, "Granularity: %s, retention %d months\n\n", r.Settings.Granularity, r.Settings.RetentionMonths)

	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Metric\tCurrent\tBaseline\tChange")
	for _, s := range r.Summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Metric,
			format.Currency(s.CurrentTotal), format.Currency(s.BaselineTotal), format.Change(s))
	}
	tw.Flush()
	return sb.String()
}

// Message converts the report for the broker.
func (r Report) Message() *amqp.ReportMessage {
	return &amqp.ReportMessage{
		ReportID:       r.ID,
		GeneratedAt:    r.GeneratedAt,
		Source:         r.Source,
		DatasetVersion: r.DatasetVersion,
		Rows:           r.Rows,
		Settings:       r.Settings,
		KPIs:           amqp.KPILinesFrom(r.Summaries),
		Timestamp:      time.Now().UTC(),
	}
}

// FromMessage rebuilds a report received from the broker.
func FromMessage(m *amqp.ReportMessage) Report {
	return Report{
		ID:             m.ReportID,
		GeneratedAt:    m.GeneratedAt,
		Source:         m.Source,
		DatasetVersion: m.DatasetVersion,
		Rows:           m.Rows,
		Settings:       m.Settings,
		Summaries:      m.Summaries(),
	}
}
