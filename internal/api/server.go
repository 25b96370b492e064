package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"appshots/internal/compose"
	"appshots/internal/config"
	"appshots/internal/export"
	"appshots/internal/jobs"
	"appshots/internal/logx"
	"appshots/internal/models"
	"appshots/internal/project"
	"appshots/internal/storage"
	"appshots/internal/telemetry"
	"appshots/internal/worker"
)

// Limiter throttles job creation per owner. *ratelimit.TokenBucket satisfies it.
type Limiter interface {
	Allow(ctx context.Context, owner string) (bool, float64, error)
}

// Cooldown gates watermark-free exports. *ratelimit.Cooldown satisfies it.
type Cooldown interface {
	Acquire(ctx context.Context, key string) (bool, time.Duration, error)
	Release(ctx context.Context, key string) error
}

// History lists stored exports. *store.Store satisfies it.
type History interface {
	ListExports(ctx context.Context, projectID string, limit int) ([]models.ExportRecord, error)
}

// Deps are the collaborators of the API. Limiter, Cooldown and History are
// optional.
type Deps struct {
	Registry  *jobs.Registry
	Projects  project.Source
	Processor *worker.Processor
	Uploader  storage.Uploader
	Renderer  export.Renderer
	Limiter   Limiter
	Cooldown  Cooldown
	History   History
	Logger    zerolog.Logger
}

// Server wires HTTP handlers for previews, export jobs and downloads.
type Server struct {
	cfg       config.Config
	registry  *jobs.Registry
	projects  project.Source
	processor *worker.Processor
	uploader  storage.Uploader
	renderer  export.Renderer
	limiter   Limiter
	cooldown  Cooldown
	history   History
	log       zerolog.Logger
}

// New constructs the API server.
func New(cfg config.Config, d Deps) *Server {
	if d.Renderer == nil {
		d.Renderer = compose.New(nil)
	}
	return &Server{
		cfg:       cfg,
		registry:  d.Registry,
		projects:  d.Projects,
		processor: d.Processor,
		uploader:  d.Uploader,
		renderer:  d.Renderer,
		limiter:   d.Limiter,
		cooldown:  d.Cooldown,
		history:   d.History,
		log:       d.Logger,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/metrics", telemetry.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/templates", s.handleTemplates)
		r.Get("/devices", s.handleDevices)

		r.Route("/projects/{id}", func(r chi.Router) {
			r.Get("/preview/{index}", s.handlePreview)
			r.Post("/export", s.handleExportNow)
			r.Post("/export/jobs", s.handleCreateJob)
			r.Get("/exports", s.handleHistory)
		})

		r.Get("/export/jobs/{jobId}", s.handleGetJob)
		r.Get("/export/jobs/{jobId}/stream", s.handleStream)
		// storage.DownloadPrefix must resolve here.
		r.Get("/export/{filename}", s.handleDownload)
	})
	return r
}

// requestLogger attaches request and session ids to the context and logs
// one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logx.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ctx = logx.WithSessionID(ctx, ownerFromRequest(r))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		l := logx.FromCtx(ctx, s.log)
		l.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) logger(ctx context.Context) *zerolog.Logger {
	l := logx.FromCtx(ctx, s.log)
	return &l
}

func ownerFromRequest(r *http.Request) string {
	if v := r.Header.Get("X-Session-ID"); v != "" {
		return v
	}
	return "anonymous"
}

type errorResponse struct {
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Message: msg})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
