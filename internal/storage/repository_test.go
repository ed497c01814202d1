package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestRepo(t *testing.T) *HistoryRepository {
	t.Helper()
	repo, err := NewHistoryRepository(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("NewHistoryRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRecordAndLookup(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }

	if err := repo.RecordTotals(ctx, "2023", map[string]decimal.Decimal{
		"Sales":    decimal.RequireFromString("250000.25"),
		"Expenses": decimal.NewFromInt(180000),
	}); err != nil {
		t.Fatalf("RecordTotals 2023: %v", err)
	}

	clock = clock.Add(time.Hour)
	if err := repo.RecordTotals(ctx, "2024", map[string]decimal.Decimal{
		"Sales": decimal.NewFromInt(300000),
	}); err != nil {
		t.Fatalf("RecordTotals 2024: %v", err)
	}

	got, err := repo.LatestTotal(ctx, "sales")
	if err != nil || !got.Equal(decimal.NewFromInt(300000)) {
		t.Fatalf("LatestTotal: %s (err=%v)", got, err)
	}

	got, err = repo.TotalForLabel(ctx, "2023", "Sales")
	if err != nil || !got.Equal(decimal.RequireFromString("250000.25")) {
		t.Fatalf("TotalForLabel: %s (err=%v)", got, err)
	}

	got, err = repo.LatestTotal(ctx, "Expenses")
	if err != nil || !got.Equal(decimal.NewFromInt(180000)) {
		t.Fatalf("LatestTotal expenses: %s (err=%v)", got, err)
	}

	if _, err := repo.LatestTotal(ctx, "Profit"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	labels, err := repo.Labels(ctx)
	if err != nil {
		t.Fatalf("Labels: %v", err)
	}
	if len(labels) != 2 || labels[0] != "2024" || labels[1] != "2023" {
		t.Fatalf("unexpected labels: %v", labels)
	}
}

func TestRecordTotalsReplacesSameLabel(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, v := range []int64{1, 2} {
		if err := repo.RecordTotals(ctx, "Q1", map[string]decimal.Decimal{"Sales": decimal.NewFromInt(v)}); err != nil {
			t.Fatalf("RecordTotals: %v", err)
		}
	}
	totals, err := repo.TotalsForLabel(ctx, "Q1")
	if err != nil {
		t.Fatalf("TotalsForLabel: %v", err)
	}
	if len(totals) != 1 || !totals[0].Total.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}

func TestRecordTotalsValidation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.RecordTotals(ctx, " ", map[string]decimal.Decimal{"Sales": decimal.Zero}); !errors.Is(err, ErrEmptyLabel) {
		t.Fatalf("expected ErrEmptyLabel, got %v", err)
	}
	if err := repo.RecordTotals(ctx, "x", nil); !errors.Is(err, ErrNoTotals) {
		t.Fatalf("expected ErrNoTotals, got %v", err)
	}
	if _, err := repo.TotalsForLabel(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	for i := 0; i < 2; i++ {
		repo, err := NewHistoryRepository(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		repo.Close()
	}
}
