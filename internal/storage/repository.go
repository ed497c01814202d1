// Package storage keeps recorded prior-period totals in SQLite. The
// calculator reads them back as comparison baselines.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrEmptyLabel   = errors.New("label is required")
	ErrNoTotals     = errors.New("no totals to record")
	ErrInvalidTotal = errors.New("stored total is not a number")
)

// BaselineTotal is one recorded metric total for a labelled period.
type BaselineTotal struct {
	Label      string
	Metric     string
	Total      decimal.Decimal
	RecordedAt time.Time
}

// HistoryRepository reads and writes the baseline_totals table.
type HistoryRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewHistoryRepository opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewHistoryRepository(dbPath string) (*HistoryRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &HistoryRepository{db: db, now: time.Now}, nil
}

func (r *HistoryRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *HistoryRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RecordTotals stores one total per metric under label, replacing any totals
// previously recorded for the same label and metric.
func (r *HistoryRepository) RecordTotals(ctx context.Context, label string, totals map[string]decimal.Decimal) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return ErrEmptyLabel
	}
	if len(totals) == 0 {
		return ErrNoTotals
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO baseline_totals (label, metric, total, recorded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (label, metric) DO UPDATE SET
			total = excluded.total,
			recorded_at = excluded.recorded_at`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := r.now().UTC().UnixNano()
	metrics := make([]string, 0, len(totals))
	for m := range totals {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)
	for _, m := range metrics {
		if _, err := stmt.ExecContext(ctx, label, strings.TrimSpace(m), totals[m].String(), now); err != nil {
			return fmt.Errorf("record %s: %w", m, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Baseline totals recorded",
		"label", label,
		"metrics", len(metrics))
	return nil
}

// LatestTotal returns the most recently recorded total for metric.
func (r *HistoryRepository) LatestTotal(ctx context.Context, metric string) (decimal.Decimal, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT total FROM baseline_totals
		WHERE metric = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1`, strings.TrimSpace(metric))
	return scanTotal(row, metric)
}

// TotalForLabel returns the total recorded for metric under label.
func (r *HistoryRepository) TotalForLabel(ctx context.Context, label, metric string) (decimal.Decimal, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT total FROM baseline_totals
		WHERE label = ? AND metric = ?`, strings.TrimSpace(label), strings.TrimSpace(metric))
	return scanTotal(row, metric)
}

// Labels lists recorded labels, most recent first.
func (r *HistoryRepository) Labels(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT label FROM baseline_totals
		GROUP BY label
		ORDER BY MAX(recorded_at) DESC, label`)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// TotalsForLabel returns every total recorded under label, ordered by metric.
func (r *HistoryRepository) TotalsForLabel(ctx context.Context, label string) ([]BaselineTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT label, metric, total, recorded_at FROM baseline_totals
		WHERE label = ?
		ORDER BY metric`, strings.TrimSpace(label))
	if err != nil {
		return nil, fmt.Errorf("list totals: %w", err)
	}
	defer rows.Close()

	var out []BaselineTotal
	for rows.Next() {
		var (
			bt       BaselineTotal
			raw      string
			recorded int64
		)
		if err := rows.Scan(&bt.Label, &bt.Metric, &raw, &recorded); err != nil {
			return nil, fmt.Errorf("scan total: %w", err)
		}
		bt.Total, err = decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s/%s", ErrInvalidTotal, bt.Label, bt.Metric)
		}
		bt.RecordedAt = time.Unix(0, recorded).UTC()
		out = append(out, bt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: label %s", ErrNotFound, label)
	}
	return out, nil
}

func scanTotal(row *sql.Row, metric string) (decimal.Decimal, error) {
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrNotFound, metric)
		}
		return decimal.Zero, fmt.Errorf("query total for %s: %w", metric, err)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidTotal, metric)
	}
	return d, nil
}
