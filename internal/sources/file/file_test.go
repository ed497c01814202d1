package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"kpidash/internal/ingest"
)

func TestSourceLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpis.csv")
	if err := os.WriteFile(path, []byte("Month,Sales,Expenses\nJan,10,5\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := New(path)
	ds, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.Source != "kpis.csv" || ds.Len() != 1 {
		t.Fatalf("unexpected dataset: %+v", ds)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestSourceLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := New(filepath.Join(dir, "missing.csv")).Load(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}

	path := filepath.Join(dir, "bad.csv")
	os.WriteFile(path, []byte("Month,Sales\nJan,x\n"), 0o644)
	if _, err := New(path).Load(context.Background()); !errors.Is(err, ingest.ErrNonNumeric) {
		t.Fatalf("expected ErrNonNumeric, got %v", err)
	}
}
