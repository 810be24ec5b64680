// Package web serves the browser front end and JSON API over the session store.
package web

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KaramelBytes/csvreport-cli/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// Options configures the HTTP front end.
type Options struct {
	// MaxUploadBytes caps the request body of POST /upload.
	MaxUploadBytes int64
	// UploadRPS and UploadBurst configure the upload rate limiter.
	UploadRPS   float64
	UploadBurst int
	// PreviewRows is the number of rows shown in HTML previews.
	PreviewRows int
	Logger      *slog.Logger
	// Registry receives the server's metrics. A fresh registry is used when nil.
	Registry *prometheus.Registry
}

// Server is the HTTP front end.
type Server struct {
	store    *session.Store
	opt      Options
	logger   *slog.Logger
	tmpl     *template.Template
	metrics  *metrics
	registry *prometheus.Registry
	router   chi.Router
}

// New builds the router.
func New(store *session.Store, opt Options) (*Server, error) {
	if opt.MaxUploadBytes <= 0 {
		opt.MaxUploadBytes = 32 << 20
	}
	if opt.UploadRPS <= 0 {
		opt.UploadRPS = 2
	}
	if opt.UploadBurst <= 0 {
		opt.UploadBurst = 5
	}
	if opt.PreviewRows <= 0 {
		opt.PreviewRows = 5
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	reg := opt.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:    store,
		opt:      opt,
		logger:   opt.Logger.With(slog.String("component", "web")),
		tmpl:     tmpl,
		registry: reg,
	}
	s.metrics = newMetrics(reg, func() float64 { return float64(store.Len()) })
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.With(rateLimiter(s.opt.UploadRPS, s.opt.UploadBurst, s.logger)).Post("/upload", s.handleUpload)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/report.txt", s.handleReportDownload)
		r.Post("/clean", s.handleClean)
		r.Get("/cleaned.csv", s.handleCleanedDownload)
		r.Delete("/", s.handleDelete)
	})
	r.Get("/api/sessions/{id}", s.handleSessionAPI)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
