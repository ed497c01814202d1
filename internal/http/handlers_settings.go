package http

import (
	"net/http"

	"kpidash/internal/log"
)

// handleSettings renders the configuration panel on GET and applies it on
// POST. JSON bodies get a JSON reply.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet, http.MethodPost); resp != nil {
		resp.Write(w)
		return
	}
	sess, err := s.sessionFor(w, r)
	if err != nil {
		s.sessionError(w, r, err)
		return
	}

	if r.Method == http.MethodGet {
		s.render(w, r, "settings.html", newSettingsView(sess.Settings()))
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format.").Write(w)
		return
	}

	updated, err := ParseSettings(p.Get, sess.Settings())
	if err == nil {
		err = sess.UpdateSettings(updated)
	}
	if err != nil {
		log.FromContext(r.Context()).InfoContext(r.Context(), "Settings rejected",
			log.FieldSessionID, sess.ID,
			log.FieldOperation, log.OpSettings,
			log.FieldError, err)
		if p.IsJSON() {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Settings updated",
		log.FieldSessionID, sess.ID,
		log.FieldOperation, log.OpSettings,
		"granularity", string(updated.Granularity),
		log.FieldNotification, string(updated.Notification))

	if p.IsJSON() {
		writeJSON(w, http.StatusOK, updated)
		return
	}
	s.renderWith(w, r, NewHTMXResponse().TriggerSettingsUpdated().TriggerSuccessNotification("Configuration saved!"),
		"settings.html", newSettingsView(updated))
}

// handleSettingsReset restores the session defaults.
func (s *Server) handleSettingsReset(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	sess, err := s.sessionFor(w, r)
	if err != nil {
		s.sessionError(w, r, err)
		return
	}

	st := sess.ResetSettings()
	log.FromContext(r.Context()).InfoContext(r.Context(), "Settings reset",
		log.FieldSessionID, sess.ID, log.FieldOperation, log.OpReset)

	s.renderWith(w, r, NewHTMXResponse().TriggerSettingsUpdated().TriggerSuccessNotification("Configuration reset!"),
		"settings.html", newSettingsView(st))
}

// handleRunAnalysis recomputes the KPIs of the current dataset with fresh
// baselines and returns the cards.
func (s *Server) handleRunAnalysis(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	sess, err := s.sessionFor(w, r)
	if err != nil {
		s.sessionError(w, r, err)
		return
	}

	runs := sess.Invalidate()
	view := s.kpis(r, sess)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Analysis run",
		log.FieldSessionID, sess.ID,
		log.FieldOperation, log.OpAnalyze,
		"runs", runs)

	s.renderWith(w, r, NewHTMXResponse().TriggerAnalysisRun(runs).TriggerSuccessNotification("Analysis launched!"),
		"kpis.html", view)
}
