package http

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strings"
	"time"

	"kpidash/internal/core"
	"kpidash/internal/format"
	"kpidash/internal/log"
	"kpidash/internal/session"
)

// SessionCookie carries the session ID.
const SessionCookie = "kpidash_session"

// sessionFor returns the caller's session, starting one when there is none.
// The cookie is rewritten on every call so its lifetime slides with the
// server-side TTL.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	id := ""
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	sess, created, err := s.sessions.GetOrCreate(r.Context(), id)
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(s.sessionTTL / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	if created {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Session started", log.FieldSessionID, sess.ID)
	}
	return sess, nil
}

// sanitizeInput removes control characters except tab and newlines, then
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func noticeHTML(msg string) string {
	return `<div class="notice" role="status">` + template.HTMLEscapeString(msg) + `</div>`
}

func errorHTML(msg string) string {
	return `<div class="error" role="alert">` + template.HTMLEscapeString(msg) + `</div>`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// kpiCard is the view model of one KPI card.
type kpiCard struct {
	Title     string
	Metric    string
	Derived   bool
	Current   string
	Baseline  string
	Change    string
	Direction string
	Defined   bool
}

func kpiCards(summaries []core.MetricSummary) []kpiCard {
	out := make([]kpiCard, len(summaries))
	for i, sm := range summaries {
		title := "Total " + sm.Metric
		if sm.Derived {
			title = sm.Metric
		}
		out[i] = kpiCard{
			Title:     title,
			Metric:    sm.Metric,
			Derived:   sm.Derived,
			Current:   format.Currency(sm.CurrentTotal),
			Baseline:  format.Currency(sm.BaselineTotal),
			Change:    format.Change(sm),
			Direction: string(sm.Direction),
			Defined:   sm.ChangeDefined,
		}
	}
	return out
}

// tableView is the view model of the data table.
type tableView struct {
	PeriodLabel string
	Metrics     []string
	Rows        [][]string
}

func newTableView(ds core.Dataset) tableView {
	tv := tableView{
		PeriodLabel: ds.PeriodLabel,
		Metrics:     ds.Metrics,
		Rows:        make([][]string, len(ds.Records)),
	}
	for i, rec := range ds.Records {
		row := make([]string, 0, len(rec.Values)+1)
		row = append(row, rec.Period)
		for _, v := range rec.Values {
			row = append(row, format.Number(v))
		}
		tv.Rows[i] = row
	}
	return tv
}

// settingsView feeds the configuration panel.
type settingsView struct {
	Settings      core.Settings
	Granularities []core.Granularity
	Notifications []core.NotificationPreference
	MinRetention  int
	MaxRetention  int
	MinFrequency  int
	MaxFrequency  int
}

func newSettingsView(st core.Settings) settingsView {
	return settingsView{
		Settings:      st,
		Granularities: core.Granularities(),
		Notifications: core.NotificationPreferences(),
		MinRetention:  core.MinRetentionMonths,
		MaxRetention:  core.MaxRetentionMonths,
		MinFrequency:  core.MinReportFrequencyDays,
		MaxFrequency:  core.MaxReportFrequencyDays,
	}
}
