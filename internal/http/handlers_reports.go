package http

import (
	"net/http"

	"kpidash/internal/core"
	"kpidash/internal/log"
	"kpidash/internal/report"
	"kpidash/internal/session"
)

type reportView struct {
	ID   string
	Text string
}

func (s *Server) buildReport(w http.ResponseWriter, r *http.Request) (*session.Session, report.Report, bool) {
	sess, err := s.sessionFor(w, r)
	if err != nil {
		s.sessionError(w, r, err)
		return nil, report.Report{}, false
	}
	rep, err := s.reports.BuildWith(r.Context(), sess, sess.Dataset(), sess.Settings())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Report build failed",
			log.FieldSessionID, sess.ID,
			log.FieldOperation, log.OpReport,
			log.FieldError, err)
		UnprocessableEntityError("Could not build the report: " + err.Error()).Write(w)
		return nil, report.Report{}, false
	}
	return sess, rep, true
}

// handleGenerateReport builds a report and shows it without sending it.
func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	sess, rep, ok := s.buildReport(w, r)
	if !ok {
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Report generated",
		log.FieldSessionID, sess.ID,
		log.FieldReportID, rep.ID,
		log.FieldOperation, log.OpReport)

	s.renderWith(w, r, NewHTMXResponse().TriggerReportCreated(rep.ID).TriggerSuccessNotification("Report generated!"),
		"report.html", reportView{ID: rep.ID, Text: rep.Text()})
}

// handleSendReport builds a report and publishes it for delivery over the
// session's notification channel.
func (s *Server) handleSendReport(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	sess, rep, ok := s.buildReport(w, r)
	if !ok {
		return
	}
	logger := log.FromContext(r.Context())

	if rep.Settings.Notification == core.NotifyNone {
		msg := "Notifications are disabled; the report was not sent."
		NewHTMXResponse().
			TriggerNotification(NotificationInfo, msg, 3000).
			BodyHTML(noticeHTML(msg)).
			Write(w)
		return
	}

	if err := s.publisher.Publish(r.Context(), rep); err != nil {
		log.NewStructuredLogger(logger).LogError(r.Context(), "Report send failed", err, log.OpSend,
			log.NewFields().WithSessionID(sess.ID).WithReport(rep.ID, string(rep.Settings.Notification)))
		msg := "The report could not be sent. Please try again later."
		NewHTMXResponse().
			Status(http.StatusBadGateway).
			TriggerErrorNotification(msg).
			BodyHTML(errorHTML(msg)).
			Write(w)
		return
	}

	logger.InfoContext(r.Context(), "Report sent",
		log.FieldSessionID, sess.ID,
		log.FieldReportID, rep.ID,
		log.FieldNotification, string(rep.Settings.Notification))

	msg := "Report sent to stakeholders successfully!"
	NewHTMXResponse().
		TriggerReportCreated(rep.ID).
		TriggerSuccessNotification(msg).
		BodyHTML(noticeHTML(msg + " (" + string(rep.Settings.Notification) + ")")).
		Write(w)
}
