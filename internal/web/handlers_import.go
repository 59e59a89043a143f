package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/clinicimport/internal/core"
	"github.com/JonMunkholm/clinicimport/internal/logging"
	"github.com/JonMunkholm/clinicimport/internal/report"
	"github.com/JonMunkholm/clinicimport/internal/web/templates"
)

const (
	// multipartOverhead is allowed on top of the file size for boundaries and headers.
	multipartOverhead = 1 << 20

	// multipartMemory is kept in memory by ParseMultipartForm; the rest spills to disk.
	multipartMemory = 32 << 20
)

// KindResponse describes one import kind and the columns it accepts.
type KindResponse struct {
	Kind     core.Kind        `json:"kind"`
	Label    string           `json:"label"`
	Dedup    bool             `json:"dedup"`
	Columns  []ColumnResponse `json:"columns"`
	Template string           `json:"template_url"`
}

// ColumnResponse describes one canonical field.
type ColumnResponse struct {
	Label    string   `json:"label"`
	Key      string   `json:"key"`
	Required bool     `json:"required"`
	Aliases  []string `json:"aliases,omitempty"`
}

// ImportResponse wraps an import result for JSON encoding.
type ImportResponse struct {
	RunID      string          `json:"run_id"`
	Kind       core.Kind       `json:"kind"`
	FileName   string          `json:"file_name"`
	TotalRows  int             `json:"total_rows"`
	Success    int             `json:"success"`
	Duplicates int             `json:"duplicates"`
	Errors     []core.RowError `json:"errors"`
	Duration   string          `json:"duration"`
	ReportURL  string          `json:"failed_rows_url,omitempty"`
}

// StartResponse is returned for asynchronous imports.
type StartResponse struct {
	RunID       string `json:"run_id"`
	ProgressURL string `json:"progress_url"`
	ResultURL   string `json:"result_url"`
}

func toResponse(result *core.ImportResult) ImportResponse {
	resp := ImportResponse{
		RunID:      result.RunID,
		Kind:       result.Kind,
		FileName:   result.FileName,
		TotalRows:  result.TotalRows,
		Success:    result.Success,
		Duplicates: result.Duplicates,
		Errors:     result.Errors,
		Duration:   result.Duration.String(),
	}
	if result.HasFailures() {
		resp.ReportURL = failedRowsURL(result.RunID)
	}
	return resp
}

func failedRowsURL(runID string) string {
	return "/api/import/" + runID + "/failed-rows"
}

// handleHealth reports liveness, and database reachability when a check is configured.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListKinds returns every import kind with its columns.
func (s *Server) handleListKinds(w http.ResponseWriter, r *http.Request) {
	defs := s.service.Registry().All()
	kinds := make([]KindResponse, 0, len(defs))
	for _, def := range defs {
		cols := make([]ColumnResponse, len(def.Fields))
		for i, f := range def.Fields {
			cols[i] = ColumnResponse{Label: f.Label, Key: f.StorageKey, Required: f.Required, Aliases: f.Aliases}
		}
		kinds = append(kinds, KindResponse{
			Kind:     def.Kind,
			Label:    def.Label,
			Dedup:    def.Dedup,
			Columns:  cols,
			Template: "/api/template/" + string(def.Kind),
		})
	}
	writeJSON(w, http.StatusOK, kinds)
}

// handleDownloadTemplate serves the blank CSV template of a kind.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	def, err := s.service.Definition(core.Kind(chi.URLParam(r, "kind")))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	data, err := core.TemplateCSV(def)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, core.TemplateFileName(def.Kind, time.Now())))
	w.Write(data)
}

// handleImportStatus returns the current state of the import limiter.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.LimiterStatus())
}

// handleImport reads the multipart "file" field and starts a run.
// With ?async=1 it answers 202 with the run ID at once; otherwise it waits
// for the result. The run itself never depends on the request staying open.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	def, err := s.service.Definition(core.Kind(chi.URLParam(r, "kind")))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	fileName, data, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	runID, err := s.service.StartImport(r.Context(), def.Kind, fileName, data)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		writeJSON(w, http.StatusAccepted, StartResponse{
			RunID:       runID,
			ProgressURL: "/api/import/" + runID + "/progress",
			ResultURL:   "/api/import/" + runID + "/result",
		})
		return
	}

	result, err := s.service.GetResult(r.Context(), runID)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	s.writeResult(w, r, result)
}

// handlePreview reports what an import of the uploaded file would do, without writing.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	def, err := s.service.Definition(core.Kind(chi.URLParam(r, "kind")))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	fileName, data, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	result, err := s.service.Preview(r.Context(), def.Kind, fileName, bytes.NewReader(data))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		templates.ImportResult(templates.ResultParams{
			Result:     result,
			ErrorLimit: s.cfg.Import.ErrorDisplayLimit,
			Preview:    true,
		}).Render(r.Context(), w)
		return
	}
	resp := toResponse(result)
	resp.ReportURL = ""
	writeJSON(w, http.StatusOK, resp)
}

// readUpload returns the name and content of the multipart "file" field.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return "", nil, errTooLarge
		}
		return "", nil, errNoFile
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, errNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, err
	}
	return header.Filename, data, nil
}

func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, result *core.ImportResult) {
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		params := templates.ResultParams{
			Result:     result,
			ErrorLimit: s.cfg.Import.ErrorDisplayLimit,
			ReportURL:  failedRowsURL(result.RunID),
		}
		templates.ImportResult(params).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(result))
}

// handleImportProgress streams run progress via Server-Sent Events.
// Supports resumption via lastEventId query parameter for reconnection.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	// The event ID is the progress percentage, allowing clients to skip
	// already-received events after reconnection
	lastEventIDStr := r.URL.Query().Get("lastEventId")
	if lastEventIDStr == "" {
		lastEventIDStr = r.Header.Get("Last-Event-ID")
	}
	lastEventID := -1
	if lastEventIDStr != "" {
		if n, err := strconv.Atoi(lastEventIDStr); err == nil {
			lastEventID = n
		}
	}

	progressCh, err := s.service.SubscribeProgress(runID)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, errors.New("streaming not supported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	var last core.ImportProgress
	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// Channel closed: the run is over
				if final, err := s.service.GetProgress(runID); err == nil {
					last = final
				}
				data, _ := json.Marshal(last)
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				flusher.Flush()
				return
			}
			last = progress

			// Skip events that were already sent (for resumption)
			eventID := progress.Percent()
			if !progress.Done() && eventID <= lastEventID {
				continue
			}
			lastEventID = eventID

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", eventID, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleImportResult returns the result of a run. A run still in progress
// answers 202 with its progress unless ?wait=1 asks to block until it ends.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	progress, err := s.service.GetProgress(runID)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); !wait && !progress.Done() {
		writeJSON(w, http.StatusAccepted, progress)
		return
	}

	result, err := s.service.GetResult(r.Context(), runID)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	s.writeResult(w, r, result)
}

// handleFailedRows downloads the rejected rows of a finished run as CSV or XLSX.
func (s *Server) handleFailedRows(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	result, err := s.service.GetResult(r.Context(), runID)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.FileName(result.Kind, format, time.Now())))
	if err := report.Write(w, format, result); err != nil {
		// Headers are already sent
		logging.FromContext(r.Context()).Error("write failed rows report", "run_id", runID, "error", err)
	}
}
