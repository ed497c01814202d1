package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kpidash/internal/baseline"
	"kpidash/internal/core"
	"kpidash/internal/export"
	"kpidash/internal/middleware/ratelimit"
	"kpidash/internal/report"
	"kpidash/internal/session"
	"kpidash/internal/sources"
	"kpidash/internal/sources/memory"
)

type fakePublisher struct {
	mu      sync.Mutex
	reports []report.Report
	err     error
}

func (p *fakePublisher) Publish(_ context.Context, r report.Report) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.reports = append(p.reports, r)
	return nil
}

type fakeCheck struct{ err error }

func (c fakeCheck) Ping(context.Context) error { return c.err }

func seedDataset(t *testing.T) core.Dataset {
	t.Helper()
	ds, err := core.NewDataset("seed", "Month", []string{"Sales", "Expenses"}, []core.Record{
		{Period: "January", Values: []decimal.Decimal{decimal.NewFromInt(100000), decimal.NewFromInt(50000)}},
		{Period: "February", Values: []decimal.Decimal{decimal.NewFromInt(200000), decimal.NewFromInt(70000)}},
	})
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	return ds
}

type testEnv struct {
	srv       *Server
	publisher *fakePublisher
	cookie    *http.Cookie
}

func newTestEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()
	calc := core.NewCalculator(baseline.Fixed{
		"Sales":    decimal.NewFromInt(250000),
		"Expenses": decimal.NewFromInt(120000),
	}, core.Profit)
	store := session.NewStore(session.Config{
		TTL:              time.Hour,
		MaxSessions:      10,
		SummaryCacheSize: 10,
	}, memory.New(seedDataset(t)), calc, nil)

	pub := &fakePublisher{}
	deps := Deps{
		Sessions:       store,
		Publisher:      pub,
		MaxUploadBytes: 1 << 20,
		SessionTTL:     time.Hour,
		RateLimit:      ratelimit.Config{RequestsPerWindow: 100},
	}
	if mutate != nil {
		mutate(&deps)
	}
	srv := NewServer(":0", deps)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, publisher: pub}
}

// do sends req with the env's session cookie and remembers a new one.
func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookie {
			e.cookie = c
		}
	}
	return rr
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (e *testEnv) postForm(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

func (e *testEnv) upload(t *testing.T, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(UploadField, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write([]byte(content))
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(req)
}

func (e *testEnv) summary(t *testing.T) summaryJSON {
	t.Helper()
	rr := e.get("/api/summary")
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status=%d body=%s", rr.Code, rr.Body.String())
	}
	var out summaryJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	return out
}

func TestIndexAndHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.get("/")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"Data Analysis Dashboard", "Total Sales", "$300,000", "▲ 20.00%", "Profit", "February"} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
	if env.cookie == nil {
		t.Fatalf("expected session cookie")
	}
	if rr.Header().Get("Content-Security-Policy") == "" || rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected security and trace headers")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.get(path)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
	}

	if rr := env.get("/nope"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestSessionCookieIsReusedAndRefreshed(t *testing.T) {
	env := newTestEnv(t, nil)
	env.get("/")
	first := env.cookie.Value

	rr := env.get("/ui/kpis")
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookie {
		t.Fatalf("expected the session cookie to be refreshed, got %v", cookies)
	}
	if cookies[0].Value != first {
		t.Fatalf("refreshed cookie carries a different session")
	}
	if cookies[0].MaxAge != int(time.Hour/time.Second) {
		t.Fatalf("expected MaxAge to match the session TTL, got %d", cookies[0].MaxAge)
	}
	if env.cookie.Value != first {
		t.Fatalf("session changed")
	}
	if env.srv.sessions.Len() != 1 {
		t.Fatalf("expected one session, got %d", env.srv.sessions.Len())
	}
}

func TestReadyReportsFailingCheck(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Checks = map[string]sources.HealthChecker{"history": fakeCheck{err: errors.New("locked")}}
	})
	rr := env.get("/readyz")
	if rr.Code != http.StatusServiceUnavailable || !strings.Contains(rr.Body.String(), "locked") {
		t.Fatalf("expected 503 with cause, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestUploadReplacesDataset(t *testing.T) {
	env := newTestEnv(t, nil)
	before := env.summary(t)

	rr := env.upload(t, "q1.csv", "Month,Sales,Expenses\nJanuary,10,4\nFebruary,20,6\n")
	if rr.Code != http.StatusOK {
		t.Fatalf("upload status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventDatasetReplaced) {
		t.Fatalf("missing dataset trigger: %q", rr.Header().Get("HX-Trigger"))
	}

	after := env.summary(t)
	if after.DatasetVersion == before.DatasetVersion || after.Rows != 2 || after.Source != "upload:q1.csv" {
		t.Fatalf("dataset not replaced: %+v", after)
	}
	if !after.KPIs[0].Current.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("unexpected sales total %s", after.KPIs[0].Current)
	}
	if len(after.Series) != 2 || after.Series[0].Points[1].X != "February" {
		t.Fatalf("unexpected series: %+v", after.Series)
	}
}

func TestUploadErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	before := env.summary(t)

	cases := []struct {
		name, file, content string
		status              int
		want                string
	}{
		{"non numeric", "bad.csv", "Month,Sales\nJanuary,abc\n", http.StatusUnprocessableEntity, "row 2"},
		{"header only", "empty.csv", "Month,Sales\n", http.StatusUnprocessableEntity, "no data rows"},
		{"wrong extension", "data.txt", "Month,Sales\nJan,1\n", http.StatusUnprocessableEntity, ".csv"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.upload(t, tc.file, tc.content)
			if rr.Code != tc.status {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			if !strings.Contains(rr.Body.String(), tc.want) {
				t.Fatalf("body %q missing %q", rr.Body.String(), tc.want)
			}
		})
	}

	if after := env.summary(t); after.DatasetVersion != before.DatasetVersion {
		t.Fatalf("failed upload must keep the current dataset")
	}

	if rr := env.get("/upload"); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	if rr := env.postForm("/upload", "x=1"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-multipart, got %d", rr.Code)
	}
}

func TestUploadTooLarge(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.MaxUploadBytes = 64 })
	rr := env.upload(t, "big.csv", "Month,Sales\n"+strings.Repeat("January,1\n", 50))
	if rr.Code != http.StatusRequestEntityTooLarge && rr.Code != http.StatusBadRequest {
		t.Fatalf("expected rejection, got %d", rr.Code)
	}
}

func TestSettings(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.get("/settings")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `value="Monthly" selected`) {
		t.Fatalf("unexpected settings panel: %d %s", rr.Code, rr.Body.String())
	}

	rr = env.postForm("/settings", "granularity=Quarterly&retention_months=3&notification=SMS")
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventSettingsUpdated) {
		t.Fatalf("missing settings trigger")
	}
	got := env.summary(t).Settings
	want := core.Settings{Granularity: core.Quarterly, RetentionMonths: 3, ReportFrequencyDays: 7, Notification: core.NotifySMS}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	for _, body := range []string{"retention_months=13", "report_frequency_days=0", "granularity=Weekly", "notification=Pigeon", "retention_months=six"} {
		if rr := env.postForm("/settings", body); rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: expected 422, got %d", body, rr.Code)
		}
	}
	if env.summary(t).Settings != want {
		t.Fatalf("rejected update must not change settings")
	}

	req := httptest.NewRequest(http.MethodPost, "/settings", strings.NewReader(`{"report_frequency_days": 14}`))
	req.Header.Set("Content-Type", "application/json")
	rr = env.do(req)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"report_frequency_days":14`) {
		t.Fatalf("json update: %d %s", rr.Code, rr.Body.String())
	}

	rr = env.postForm("/settings/reset", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("reset status=%d", rr.Code)
	}
	if env.summary(t).Settings != core.DefaultSettings() {
		t.Fatalf("reset did not restore defaults")
	}
}

func TestRunAnalysis(t *testing.T) {
	env := newTestEnv(t, nil)
	env.get("/")

	rr := env.postForm("/analysis/run", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), `"runs":1`) {
		t.Fatalf("unexpected trigger %q", rr.Header().Get("HX-Trigger"))
	}
	if !strings.Contains(rr.Body.String(), "Total Expenses") || !strings.Contains(rr.Body.String(), "Analyses run: 1") {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
	if rr := env.get("/analysis/run"); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestReports(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.postForm("/reports", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "KPI report") {
		t.Fatalf("generate: %d %s", rr.Code, rr.Body.String())
	}
	if len(env.publisher.reports) != 0 {
		t.Fatalf("generate must not publish")
	}

	rr = env.postForm("/reports/send", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "successfully") {
		t.Fatalf("send: %d %s", rr.Code, rr.Body.String())
	}
	if len(env.publisher.reports) != 1 || env.publisher.reports[0].Settings.Notification != core.NotifyEmail {
		t.Fatalf("unexpected published reports: %+v", env.publisher.reports)
	}

	env.postForm("/settings", "notification=None")
	env.postForm("/reports/send", "")
	if len(env.publisher.reports) != 1 {
		t.Fatalf("None must not publish")
	}

	env.postForm("/settings", "notification=Email")
	env.publisher.err = errors.New("broker down")
	rr = env.postForm("/reports/send", "")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
}

func TestChartAndExport(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.get("/ui/chart.svg")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/svg+xml" || !strings.Contains(rr.Body.String(), "<svg") {
		t.Fatalf("chart: %d %q", rr.Code, rr.Header().Get("Content-Type"))
	}
	if rr := env.get("/ui/chart.svg?metric=Nope"); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown metric should be rejected, got %d", rr.Code)
	}

	rr = env.get("/export.xlsx")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != export.ContentType {
		t.Fatalf("export: %d %q", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")) {
		t.Fatalf("export is not a zip container")
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), ExportFilename) {
		t.Fatalf("unexpected disposition %q", rr.Header().Get("Content-Disposition"))
	}

	rr = env.get("/ui/table")
	if !strings.Contains(rr.Body.String(), "200,000") {
		t.Fatalf("table missing grouped value: %s", rr.Body.String())
	}
}

func TestRateLimitOnPost(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.RateLimit = ratelimit.Config{RequestsPerWindow: 2} })
	for i := 0; i < 2; i++ {
		if rr := env.postForm("/analysis/run", ""); rr.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i+1, rr.Code)
		}
	}
	rr := env.postForm("/analysis/run", "")
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr := env.get("/ui/kpis"); rr.Code != http.StatusOK {
		t.Fatalf("GET must not be limited, got %d", rr.Code)
	}
}

func TestParseSettings(t *testing.T) {
	cur := core.DefaultSettings()
	get := func(m map[string]string) func(string) string {
		return func(k string) string { return m[k] }
	}

	got, err := ParseSettings(get(map[string]string{"granularity": "yearly"}), cur)
	if err != nil || got.Granularity != core.Yearly || got.RetentionMonths != cur.RetentionMonths {
		t.Fatalf("unexpected %+v %v", got, err)
	}

	got, err = ParseSettings(get(map[string]string{"retention_months": "0"}), cur)
	if !errors.Is(err, core.ErrInvalidRetention) || got != cur {
		t.Fatalf("expected ErrInvalidRetention and unchanged settings, got %+v %v", got, err)
	}
}
