package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"kpidash/internal/chart"
	"kpidash/internal/core"
	"kpidash/internal/format"
	"kpidash/internal/log"
	"kpidash/internal/session"
)

// kpisView feeds the KPI cards partial. Error replaces the cards when the
// summaries could not be computed.
type kpisView struct {
	KPIs  []kpiCard
	Runs  int
	Error string
}

type pageView struct {
	kpisView
	Table     tableView
	Settings  settingsView
	Source    string
	Rows      int
	Version   string
	MaxUpload string
}

func (s *Server) kpis(r *http.Request, sess *session.Session) kpisView {
	summaries, err := sess.Summaries(r.Context())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Summary computation failed",
			log.FieldSessionID, sess.ID,
			log.FieldOperation, log.OpSummarize,
			log.FieldError, err)
		return kpisView{Runs: sess.Runs(), Error: "KPIs are unavailable for this dataset."}
	}
	return kpisView{KPIs: kpiCards(summaries), Runs: sess.Runs()}
}

// handleIndex renders the dashboard page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	sess, err := s.sessionFor(w, r)
	if err != nil {
		s.sessionError(w, r, err)
		return
	}

	ds := sess.Dataset()
	s.render(w, r, "index.html", pageView{
		kpisView:  s.kpis(r, sess),
		Table:     newTableView(ds),
		Settings:  newSettingsView(sess.Settings()),
		Source:    ds.Source,
		Rows:      ds.Len(),
		Version:   ds.Version,
		MaxUpload: format.Number(decimal.NewFromInt(s.maxUpload >> 10)) + " KB",
	})
}

// handleKPIs renders the KPI cards partial.
func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	sess, err := s.sessionFor(w, r)
	if err != nil {
		s.sessionError(w, r, err)
		return
	}
	s.render(w, r, "kpis.html", s.kpis(r, sess))
}

// handleTable renders the data table partial.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	sess, err := s.sessionFor(w, r)
	if err != nil {
		s.sessionError(w, r, err)
		return
	}
	s.render(w, r, "table.html", newTableView(sess.Dataset()))
}

// handleChart renders the trend chart of every metric column as SVG.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	sess, err := s.sessionFor(w, r)
	if err != nil {
		s.sessionError(w, r, err)
		return
	}

	opts := chart.DefaultOptions()
	if m := sanitizeInput(r.URL.Query().Get("metric")); m != "" {
		opts.Metrics = []string{m}
	}
	svg, err := chart.SVG(sess.Dataset(), opts)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Chart rendering failed",
			log.FieldOperation, log.OpRender, log.FieldError, err)
		UnprocessableEntityError("Chart unavailable: " + err.Error()).Write(w)
		return
	}
	w.Header().Set("Content-Type", chart.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(svg)
}

type kpiJSON struct {
	Metric    string           `json:"metric"`
	Derived   bool             `json:"derived,omitempty"`
	Current   decimal.Decimal  `json:"current"`
	Baseline  decimal.Decimal  `json:"baseline"`
	Change    *decimal.Decimal `json:"change"`
	Direction core.Direction   `json:"direction"`
	Display   string           `json:"display"`
}

type seriesJSON struct {
	Metric string      `json:"metric"`
	Points []pointJSON `json:"points"`
}

type pointJSON struct {
	X string          `json:"x"`
	Y decimal.Decimal `json:"y"`
}

type summaryJSON struct {
	DatasetVersion string        `json:"dataset_version"`
	Source         string        `json:"source"`
	Rows           int           `json:"rows"`
	Settings       core.Settings `json:"settings"`
	KPIs           []kpiJSON     `json:"kpis"`
	Series         []seriesJSON  `json:"series"`
}

// handleSummary returns the KPIs and chart series as JSON. An undefined
// change is null.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	sess, err := s.sessionFor(w, r)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "session unavailable"})
		return
	}

	ds := sess.Dataset()
	summaries, err := sess.Summaries(r.Context())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Summary computation failed",
			log.FieldSessionID, sess.ID, log.FieldError, err)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	out := summaryJSON{
		DatasetVersion: ds.Version,
		Source:         ds.Source,
		Rows:           ds.Len(),
		Settings:       sess.Settings(),
		KPIs:           make([]kpiJSON, len(summaries)),
	}
	for i, sm := range summaries {
		k := kpiJSON{
			Metric:    sm.Metric,
			Derived:   sm.Derived,
			Current:   sm.CurrentTotal,
			Baseline:  sm.BaselineTotal,
			Direction: sm.Direction,
			Display:   format.Change(sm),
		}
		if sm.ChangeDefined {
			change := sm.PercentChange
			k.Change = &change
		}
		out.KPIs[i] = k
	}
	for _, m := range ds.Metrics {
		pts, err := ds.Series(m)
		if err != nil {
			continue
		}
		sj := seriesJSON{Metric: m, Points: make([]pointJSON, len(pts))}
		for i, p := range pts {
			sj.Points[i] = pointJSON{X: p.X, Y: p.Y}
		}
		out.Series = append(out.Series, sj)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) sessionError(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Session unavailable",
		log.FieldOperation, log.OpStartup, log.FieldError, err)
	InternalServerError("Could not load the dashboard data.").Write(w)
}
