package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"kpidash/internal/core"
)

var ErrInvalidMessage = errors.New("invalid report message")

// KPILine is one metric summary as carried on the wire. Decimals travel as
// JSON strings so totals stay exact.
type KPILine struct {
	Metric        string          `json:"metric"`
	Derived       bool            `json:"derived,omitempty"`
	Current       decimal.Decimal `json:"current"`
	Baseline      decimal.Decimal `json:"baseline"`
	Change        decimal.Decimal `json:"change"`
	ChangeDefined bool            `json:"change_defined"`
	Direction     core.Direction  `json:"direction"`
}

// ReportMessage asks the report worker to deliver a KPI report.
type ReportMessage struct {
	ReportID       string        `json:"report_id"`
	GeneratedAt    time.Time     `json:"generated_at"`
	Source         string        `json:"source"`
	DatasetVersion string        `json:"dataset_version"`
	Rows           int           `json:"rows"`
	Settings       core.Settings `json:"settings"`
	KPIs           []KPILine     `json:"kpis"`
	Timestamp      time.Time     `json:"timestamp"`
}

// KPILinesFrom converts summaries for the wire.
func KPILinesFrom(summaries []core.MetricSummary) []KPILine {
	out := make([]KPILine, len(summaries))
	for i, s := range summaries {
		out[i] = KPILine{
			Metric:        s.Metric,
			Derived:       s.Derived,
			Current:       s.CurrentTotal,
			Baseline:      s.BaselineTotal,
			Change:        s.PercentChange,
			ChangeDefined: s.ChangeDefined,
			Direction:     s.Direction,
		}
	}
	return out
}

// Summaries converts the wire lines back to summaries.
func (m *ReportMessage) Summaries() []core.MetricSummary {
	out := make([]core.MetricSummary, len(m.KPIs))
	for i, k := range m.KPIs {
		out[i] = core.MetricSummary{
			Metric:        k.Metric,
			Derived:       k.Derived,
			CurrentTotal:  k.Current,
			BaselineTotal: k.Baseline,
			PercentChange: k.Change,
			ChangeDefined: k.ChangeDefined,
			Direction:     k.Direction,
		}
	}
	return out
}

// Validate checks the fields the worker depends on.
func (m *ReportMessage) Validate() error {
	if m.ReportID == "" {
		return errors.Join(ErrInvalidMessage, errors.New("missing report_id"))
	}
	if err := m.Settings.Validate(); err != nil {
		return errors.Join(ErrInvalidMessage, err)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ReportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportMessageFromJSON decodes and validates a message.
func ReportMessageFromJSON(data []byte) (*ReportMessage, error) {
	var msg ReportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Join(ErrInvalidMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
