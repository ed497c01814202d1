package report

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kpidash/internal/amqp"
	"kpidash/internal/baseline"
	"kpidash/internal/core"
	"kpidash/internal/log"
	"kpidash/internal/sources/memory"
)

func testDataset(t *testing.T) core.Dataset {
	t.Helper()
	ds, err := core.NewDataset("test", "Month", []string{"Sales", "Expenses"}, []core.Record{
		{Period: "January", Values: []decimal.Decimal{decimal.NewFromInt(100000), decimal.NewFromInt(50000)}},
		{Period: "February", Values: []decimal.Decimal{decimal.NewFromInt(200000), decimal.NewFromInt(70000)}},
	})
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	return ds
}

func testCalculator() *core.Calculator {
	return core.NewCalculator(baseline.Fixed{
		"Sales":    decimal.NewFromInt(250000),
		"Expenses": decimal.NewFromInt(120000),
	}, core.Profit)
}

func testLogger(buf *bytes.Buffer) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Output = buf
	return log.New(cfg)
}

type recordingPublisher struct {
	reports []Report
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, r Report) error {
	if p.err != nil {
		return p.err
	}
	p.reports = append(p.reports, r)
	return nil
}

type fakeBroker struct {
	msgs []*amqp.ReportMessage
}

func (b *fakeBroker) PublishReport(_ context.Context, msg *amqp.ReportMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	b.msgs = append(b.msgs, msg)
	return nil
}

func TestBuilderBuild(t *testing.T) {
	b := NewBuilder(testCalculator())
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	ds := testDataset(t)
	r, err := b.Build(context.Background(), ds, core.DefaultSettings())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if r.ID == "" || !r.GeneratedAt.Equal(fixed) {
		t.Fatalf("unexpected header: %+v", r)
	}
	if r.Rows != 2 || r.DatasetVersion != ds.Version || len(r.Summaries) != 3 {
		t.Fatalf("unexpected report: %+v", r)
	}

	text := r.Text()
	for _, want := range []string{"Sales", "$300,000", "▲ 20.00%", "Profit", "$180,000"} {
		if !strings.Contains(text, want) {
			t.Errorf("report text missing %q:\n%s", want, text)
		}
	}
}

func TestBuilderRejectsBadInput(t *testing.T) {
	b := NewBuilder(testCalculator())
	bad := core.DefaultSettings()
	bad.RetentionMonths = 0
	if _, err := b.Build(context.Background(), testDataset(t), bad); !errors.Is(err, core.ErrInvalidRetention) {
		t.Fatalf("expected ErrInvalidRetention, got %v", err)
	}
	if _, err := b.Build(context.Background(), core.Dataset{}, core.DefaultSettings()); !errors.Is(err, core.ErrNoMetrics) {
		t.Fatalf("expected ErrNoMetrics, got %v", err)
	}
}

func TestMessageRoundTrip(t *testing.T) {
	r, err := NewBuilder(testCalculator()).Build(context.Background(), testDataset(t), core.DefaultSettings())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	data, err := r.Message().ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	msg, err := amqp.ReportMessageFromJSON(data)
	if err != nil {
		t.Fatalf("ReportMessageFromJSON: %v", err)
	}
	back := FromMessage(msg)
	if back.ID != r.ID || len(back.Summaries) != len(r.Summaries) {
		t.Fatalf("unexpected report: %+v", back)
	}
	if !back.Summaries[0].CurrentTotal.Equal(r.Summaries[0].CurrentTotal) || back.Summaries[0].Direction != core.DirectionUp {
		t.Fatalf("summary lost in transit: %+v", back.Summaries[0])
	}
}

func TestAMQPPublisher(t *testing.T) {
	var buf bytes.Buffer
	broker := &fakeBroker{}
	p := NewAMQPPublisher(broker, testLogger(&buf))

	r, _ := NewBuilder(testCalculator()).Build(context.Background(), testDataset(t), core.DefaultSettings())
	if err := p.Publish(context.Background(), r); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(broker.msgs) != 1 || broker.msgs[0].ReportID != r.ID {
		t.Fatalf("unexpected messages: %+v", broker.msgs)
	}
	if !strings.Contains(buf.String(), "Report queued") {
		t.Fatalf("expected log line, got %q", buf.String())
	}
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	r, _ := NewBuilder(testCalculator()).Build(context.Background(), testDataset(t), core.DefaultSettings())
	if err := NewLogPublisher(testLogger(&buf)).Publish(context.Background(), r); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !strings.Contains(buf.String(), r.ID) {
		t.Fatalf("expected report id in log, got %q", buf.String())
	}
}

type countingNotifier struct{ calls int }

func (n *countingNotifier) Notify(context.Context, Report) error {
	n.calls++
	return nil
}

func TestNotifiersDeliver(t *testing.T) {
	email, sms := &countingNotifier{}, &countingNotifier{}
	ns := Notifiers{core.NotifyEmail: email, core.NotifySMS: sms}

	r := Report{ID: "r1", Settings: core.DefaultSettings()}
	if sent, err := ns.Deliver(context.Background(), r); err != nil || !sent {
		t.Fatalf("expected email delivery, got %v %v", sent, err)
	}

	r.Settings.Notification = core.NotifySMS
	if _, err := ns.Deliver(context.Background(), r); err != nil {
		t.Fatalf("sms: %v", err)
	}

	r.Settings.Notification = core.NotifyNone
	if sent, err := ns.Deliver(context.Background(), r); err != nil || sent {
		t.Fatalf("none should skip, got %v %v", sent, err)
	}

	if email.calls != 1 || sms.calls != 1 {
		t.Fatalf("unexpected calls: email=%d sms=%d", email.calls, sms.calls)
	}

	r.Settings.Notification = core.NotifySMS
	if _, err := (Notifiers{}).Deliver(context.Background(), r); !errors.Is(err, ErrNoNotifier) {
		t.Fatalf("expected ErrNoNotifier, got %v", err)
	}
}

func TestSchedulerRunOnce(t *testing.T) {
	pub := &recordingPublisher{}
	src := memory.New(testDataset(t))
	s := NewScheduler(src, NewBuilder(testCalculator()), pub, core.DefaultSettings(), nil)

	if got := s.Interval(); got != 7*24*time.Hour {
		t.Fatalf("unexpected interval %s", got)
	}

	r, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(pub.reports) != 1 || pub.reports[0].ID != r.ID {
		t.Fatalf("unexpected published reports: %+v", pub.reports)
	}

	pub.err = errors.New("broker down")
	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected publish error")
	}
}

func TestSchedulerStartStopsOnCancel(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewScheduler(memory.New(testDataset(t)), NewBuilder(testCalculator()), pub, core.DefaultSettings(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("scheduler did not stop")
	}
}
