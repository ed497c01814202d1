package http

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"kpidash/internal/core"
	"kpidash/internal/export"
	"kpidash/internal/ingest"
	"kpidash/internal/log"
)

// UploadField is the multipart field carrying the CSV file.
const UploadField = "file"

// ExportFilename is suggested to the browser for the spreadsheet download.
const ExportFilename = "kpi_data.xlsx"

// handleUpload replaces the session dataset with an uploaded CSV. Parse
// failures are reported with their row and column and leave the current
// dataset in place.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	sess, err := s.sessionFor(w, r)
	if err != nil {
		s.sessionError(w, r, err)
		return
	}
	logger := log.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RequestTooLargeError(fmt.Sprintf("File too large (max %d bytes).", s.maxUpload)).Write(w)
			return
		}
		BadRequestError("Expected a multipart form upload.").Write(w)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(UploadField)
	if err != nil {
		BadRequestError("Choose a CSV file to upload.").Write(w)
		return
	}
	defer file.Close()

	name := sanitizeInput(filepath.Base(header.Filename))
	if ext := filepath.Ext(name); ext != "" && !strings.EqualFold(ext, ".csv") {
		UnprocessableEntityError("Only .csv files are accepted.").Write(w)
		return
	}

	ds, err := ingest.ParseCSV(file, "upload:"+name)
	if err != nil {
		logger.WarnContext(r.Context(), "Upload rejected",
			log.FieldSessionID, sess.ID,
			log.FieldOperation, log.OpUpload,
			log.FieldError, err)
		NewHTMXResponse().
			Status(http.StatusUnprocessableEntity).
			TriggerErrorNotification(uploadMessage(err)).
			BodyHTML(errorHTML(uploadMessage(err))).
			Write(w)
		return
	}

	if err := sess.ReplaceDataset(ds); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	log.NewStructuredLogger(logger).LogDatasetReplaced(r.Context(), sess.ID, ds.Version, ds.Source, ds.Len(), len(ds.Metrics))

	msg := "Loaded " + strconv.Itoa(ds.Len()) + " rows from " + name + "."
	NewHTMXResponse().
		TriggerDatasetReplaced(ds.Version, ds.Len()).
		TriggerSuccessNotification(msg).
		BodyHTML(noticeHTML(msg)).
		Write(w)
}

// uploadMessage turns an ingestion error into text for the user.
func uploadMessage(err error) string {
	var pe *ingest.ParseError
	switch {
	case errors.As(err, &pe):
		return pe.Error()
	case errors.Is(err, ingest.ErrNoHeader):
		return "The file is empty."
	case errors.Is(err, ingest.ErrNoRows), errors.Is(err, core.ErrEmptyDataset):
		return "The file has a header but no data rows."
	case errors.Is(err, core.ErrNoMetrics):
		return "The file needs a period column and at least one metric column."
	default:
		return "Invalid CSV: " + err.Error()
	}
}

// handleExport downloads the session dataset, plus its KPIs, as a workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	sess, err := s.sessionFor(w, r)
	if err != nil {
		s.sessionError(w, r, err)
		return
	}
	logger := log.FromContext(r.Context())

	summaries, err := sess.Summaries(r.Context())
	if err != nil {
		logger.WarnContext(r.Context(), "Exporting without summary sheet", log.FieldError, err)
		summaries = nil
	}
	data, err := export.XLSX(sess.Dataset(), summaries)
	if err != nil {
		logger.ErrorContext(r.Context(), "Export failed",
			log.FieldOperation, log.OpExport, log.FieldError, err)
		InternalServerError("Export failed.").Write(w)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+ExportFilename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}
