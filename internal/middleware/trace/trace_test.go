package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kpidash/internal/log"
)

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	cfg := log.DefaultConfig()
	cfg.Output = &buf
	m := NewMiddleware(log.New(cfg), func(*http.Request) string { return "203.0.113.1" })

	var seenID string
	var fromCtx *log.Logger
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		fromCtx = log.FromContext(r.Context())
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if !strings.HasPrefix(seenID, "req_") || rr.Header().Get(RequestIDHeader) != seenID {
		t.Fatalf("unexpected request id %q / %q", seenID, rr.Header().Get(RequestIDHeader))
	}
	if fromCtx.Component() != log.ComponentHTTP {
		t.Fatalf("expected http component, got %q", fromCtx.Component())
	}

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(RequestIDHeader, "upstream-1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seenID != "upstream-1" {
		t.Fatalf("expected upstream id to be kept, got %q", seenID)
	}

	got := m.GetMetrics()
	if got.TotalRequests != 2 || got.ServerErrors != 1 {
		t.Fatalf("unexpected metrics: %+v", got)
	}
	out := buf.String()
	if !strings.Contains(out, "HTTP request completed") || !strings.Contains(out, "client_ip=203.0.113.1") {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	if id := GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); id != "" {
		t.Fatalf("expected empty id, got %q", id)
	}
}
