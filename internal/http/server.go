package http

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"kpidash/internal/format"
	"kpidash/internal/log"
	"kpidash/internal/middleware/ratelimit"
	"kpidash/internal/middleware/security"
	"kpidash/internal/middleware/trace"
	"kpidash/internal/report"
	"kpidash/internal/session"
	"kpidash/internal/sources"
	appweb "kpidash/web"
)

var errTemplatesNotLoaded = errors.New("templates not loaded")

// DefaultMaxUploadBytes caps CSV uploads when Deps leaves it unset.
const DefaultMaxUploadBytes = 5 << 20

// Deps are the collaborators of the dashboard server.
type Deps struct {
	Sessions  *session.Store
	Reports   *report.Builder
	Publisher report.Publisher
	// Checks are pinged by /readyz, keyed by name.
	Checks         map[string]sources.HealthChecker
	MaxUploadBytes int64
	SessionTTL     time.Duration
	RateLimit      ratelimit.Config
	Logger         *log.Logger
}

type Server struct {
	http.Server
	templates *template.Template

	sessions   *session.Store
	reports    *report.Builder
	publisher  report.Publisher
	checks     map[string]sources.HealthChecker
	maxUpload  int64
	sessionTTL time.Duration

	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	headers  *security.HeadersMiddleware

	startedAt    time.Time
	shutdownOnce sync.Once
}

var templateFuncs = template.FuncMap{
	"currency": format.Currency,
	"number":   format.Number,
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = report.NewLogPublisher(logger)
	}
	maxUpload := deps.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	reports := deps.Reports
	if reports == nil && deps.Sessions != nil {
		reports = report.NewBuilder(deps.Sessions)
	}
	ttl := deps.SessionTTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}

	mux := http.NewServeMux()
	s := &Server{
		sessions:   deps.Sessions,
		reports:    reports,
		publisher:  publisher,
		checks:     deps.Checks,
		maxUpload:  maxUpload,
		sessionTTL: ttl,
		logger:     logger.WithComponent(log.ComponentHTTP),
		limiter:    ratelimit.NewLimiter(deps.RateLimit),
		detector:   security.NewDetector(),
		headers:    security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		startedAt:  time.Now(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ui/kpis", s.handleKPIs)
	mux.HandleFunc("/ui/table", s.handleTable)
	mux.HandleFunc("/ui/chart.svg", s.handleChart)
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/export.xlsx", s.handleExport)
	mux.HandleFunc("/settings", s.handleSettings)
	mux.HandleFunc("/settings/reset", s.handleSettingsReset)
	mux.HandleFunc("/analysis/run", s.handleRunAnalysis)
	mux.HandleFunc("/reports", s.handleGenerateReport)
	mux.HandleFunc("/reports/send", s.handleSendReport)

	s.Handler = s.tracer.Middleware(s.headers.Middleware(s.guard(mux)))
	return s
}

// guard flags probes and rate limits mutating requests per client IP.
func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := s.detector.ExtractClientIP(r)
		if reason := s.detector.Inspect(r); reason != "" {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldComponent, log.ComponentSecurity,
				log.FieldClientIP, clientIP,
				log.FieldPath, r.URL.Path,
				"reason", reason)
		}

		if r.Method == http.MethodPost && !s.limiter.Allow(clientIP) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").
				Header("Retry-After", "60").
				Write(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// execute renders a named template to a string.
func (s *Server) execute(name string, data interface{}) (string, error) {
	if s.templates == nil {
		return "", errTemplatesNotLoaded
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// render writes a template as a 200 response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	s.renderWith(w, r, NewHTMXResponse(), name, data)
}

// renderWith writes a template through b, keeping its status and triggers.
func (s *Server) renderWith(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data interface{}) {
	html, err := s.execute(name, data)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err, "template", name)
		InternalServerError("Could not render the page").Write(w)
		return
	}
	b.BodyHTML(html).Write(w)
}
