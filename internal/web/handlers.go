package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/KaramelBytes/csvreport-cli/internal/analysis"
	"github.com/KaramelBytes/csvreport-cli/internal/session"
	"github.com/KaramelBytes/csvreport-cli/internal/table"
)

const missingCell = "NaN"

type previewRow struct {
	Index int
	Cells []string
}

type previewData struct {
	Header []string
	Rows   []previewRow
}

type pageData struct {
	Title       string
	MaxUploadMB int64
	ID          string
	FileName    string
	Rows        int
	Cols        int
	Removed     int
	Report      string
	Preview     previewData
	Message     string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, "index", pageData{
		Title:       "Upload a CSV File",
		MaxUploadMB: s.opt.MaxUploadBytes >> 20,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opt.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.metrics.uploads.WithLabelValues(resultTooLarge).Inc()
			s.pageError(w, r, http.StatusRequestEntityTooLarge,
				fmt.Errorf("file exceeds the %d MB upload limit", s.opt.MaxUploadBytes>>20))
			return
		}
		s.metrics.uploads.WithLabelValues(resultBadRequest).Inc()
		s.pageError(w, r, http.StatusBadRequest, errors.New("no file part in the request"))
		return
	}
	defer file.Close()
	if header.Filename == "" {
		s.metrics.uploads.WithLabelValues(resultBadRequest).Inc()
		s.pageError(w, r, http.StatusBadRequest, errors.New("no selected file"))
		return
	}

	sess, err := s.store.Create(header.Filename, file)
	if err != nil {
		var pe *analysis.ParseError
		if errors.As(err, &pe) {
			s.metrics.uploads.WithLabelValues(resultParseError).Inc()
			// The temp path means nothing to the browser.
			s.pageError(w, r, http.StatusUnprocessableEntity,
				fmt.Errorf("error reading %s: %v", filepath.Base(pe.Path), pe.Err))
			return
		}
		s.metrics.uploads.WithLabelValues(resultError).Inc()
		s.pageError(w, r, statusFor(err), err)
		return
	}
	s.metrics.uploads.WithLabelValues(resultOK).Inc()

	t := sess.Table()
	rows, cols := t.Shape()
	s.metrics.uploadRows.Observe(float64(rows))
	s.logger.InfoContext(r.Context(), "file analyzed",
		slog.String("session_id", sess.ID),
		slog.String("file", sess.FileName),
		slog.Int("rows", rows),
		slog.Int("cols", cols),
	)
	s.renderPage(w, r, http.StatusOK, "result", pageData{
		Title:    "Analysis Result",
		ID:       sess.ID,
		FileName: sess.FileName,
		Rows:     rows,
		Cols:     cols,
		Report:   strings.Join(sess.Report(), "\n"),
		Preview:  preview(t.Head(s.opt.PreviewRows), 0),
	})
}

func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.pageError(w, r, statusFor(err), err)
		return
	}
	res, err := sess.Clean()
	if err != nil {
		s.pageError(w, r, statusFor(err), err)
		return
	}
	s.metrics.cleans.Inc()
	s.metrics.rowsRemoved.Add(float64(res.Removed))
	s.logger.InfoContext(r.Context(), "data cleaned",
		slog.String("session_id", sess.ID),
		slog.Int("rows_removed", res.Removed),
	)
	s.renderPage(w, r, http.StatusOK, "cleaned", pageData{
		Title:    "Cleaned Data",
		ID:       sess.ID,
		FileName: sess.FileName,
		Rows:     res.Table.NumRows(),
		Cols:     res.Table.NumCols(),
		Removed:  res.Removed,
		Preview:  preview(res.Table.Head(s.opt.PreviewRows), 0),
	})
}

func (s *Server) handleReportDownload(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.pageError(w, r, statusFor(err), err)
		return
	}
	s.serveAttachment(w, r, sess.ReportPath(), "csv_analysis_report.txt", "text/plain; charset=utf-8")
}

func (s *Server) handleCleanedDownload(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.pageError(w, r, statusFor(err), err)
		return
	}
	path, ok := sess.CleanedPath()
	if !ok {
		s.pageError(w, r, http.StatusNotFound, errors.New("no cleaned file yet; drop rows with missing values first"))
		return
	}
	s.serveAttachment(w, r, path, "cleaned_output.csv", "text/csv; charset=utf-8")
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Remove(chi.URLParam(r, "id")); err != nil {
		s.apiError(w, r, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type columnInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type cleanInfo struct {
	Removed int `json:"removed"`
	Rows    int `json:"rows"`
}

type sessionResponse struct {
	ID        string                   `json:"id"`
	FileName  string                   `json:"file_name"`
	CreatedAt time.Time                `json:"created_at"`
	Shape     [2]int                   `json:"shape"`
	Columns   []columnInfo             `json:"columns"`
	Summaries []analysis.ColumnSummary `json:"summaries"`
	Report    []string                 `json:"report"`
	Cleaned   *cleanInfo               `json:"cleaned,omitempty"`
}

func (s *Server) handleSessionAPI(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.apiError(w, r, statusFor(err), err)
		return
	}
	t := sess.Table()
	rows, cols := t.Shape()
	resp := sessionResponse{
		ID:        sess.ID,
		FileName:  sess.FileName,
		CreatedAt: sess.CreatedAt,
		Shape:     [2]int{rows, cols},
		Summaries: sess.Summaries(),
		Report:    sess.Report(),
	}
	for _, c := range t.Columns() {
		resp.Columns = append(resp.Columns, columnInfo{Name: c.Name, Kind: c.Kind.String()})
	}
	if _, ok := sess.CleanedPath(); ok {
		res, err := sess.Clean()
		if err == nil {
			resp.Cleaned = &cleanInfo{Removed: res.Removed, Rows: res.Table.NumRows()}
		}
	}
	render.JSON(w, r, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) serveAttachment(w http.ResponseWriter, r *http.Request, path, name, contentType string) {
	f, err := os.Open(path)
	if err != nil {
		s.pageError(w, r, http.StatusNotFound, errors.New("file is no longer available"))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.pageError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	var b strings.Builder
	if err := s.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "template failed", slog.String("template", name), slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(b.String()))
}

func (s *Server) pageError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.logRequestError(r, status, err)
	s.renderPage(w, r, status, "error", pageData{Title: http.StatusText(status), Message: err.Error()})
}

type errorResponse struct {
	Error     string `json:"error"`
	Status    int    `json:"status"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) apiError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.logRequestError(r, status, err)
	render.Status(r, status)
	render.JSON(w, r, errorResponse{
		Error:     err.Error(),
		Status:    status,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func (s *Server) logRequestError(r *http.Request, status int, err error) {
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed", slog.Int("status", status), slog.String("error", err.Error()))
}

// statusFor maps core error kinds onto HTTP statuses.
func statusFor(err error) int {
	var pe *analysis.ParseError
	var we *analysis.WriteError
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, analysis.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &pe):
		return http.StatusUnprocessableEntity
	case errors.Is(err, analysis.ErrNotLoaded):
		return http.StatusConflict
	case errors.As(err, &we):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// preview renders t's cells for an HTML table, index starting at offset.
func preview(t *table.Table, offset int) previewData {
	p := previewData{Header: t.Names()}
	for i := 0; i < t.NumRows(); i++ {
		row := previewRow{Index: offset + i, Cells: make([]string, t.NumCols())}
		for j, c := range t.Columns() {
			if c.IsNull(i) {
				row.Cells[j] = missingCell
			} else {
				row.Cells[j] = c.Format(i)
			}
		}
		p.Rows = append(p.Rows, row)
	}
	return p
}
