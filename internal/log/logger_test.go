package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestJSONLoggerCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentSession, Output: &buf})
	l.Info("hello", FieldMetric, "Sales")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if rec[FieldComponent] != ComponentSession || rec[FieldMetric] != "Sales" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestWithComponentReplacesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "text", Component: ComponentApp, Output: &buf}).WithComponent(ComponentHTTP)
	l.Info("x")
	if strings.Count(buf.String(), "component=") != 1 || !strings.Contains(buf.String(), "component=http") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "text", Output: &buf}))

	sl.LogDatasetReplaced(context.Background(), "sess", "v1", "upload.csv", 12, 2)
	sl.LogError(context.Background(), "boom", errors.New("bad"), OpExport, nil)
	sl.LogHTTPEnd(context.Background(), httptest.NewRequest("GET", "/x?y=1", nil), 500, 3, "1.2.3.4")

	out := buf.String()
	for _, want := range []string{"dataset_version=v1", "rows=12", "error=bad", "operation=export", "status_code=500", "level=ERROR"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected default logger")
	}
	l := New(DefaultConfig())
	if FromContext(WithLogger(context.Background(), l)) != l {
		t.Fatal("expected stored logger")
	}
}
