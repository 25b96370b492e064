package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"appshots/internal/catalog"
	"appshots/internal/export"
	"appshots/internal/jobs"
	"appshots/internal/models"
	"appshots/internal/project"
	"appshots/internal/storage"
	"appshots/internal/telemetry"
	"appshots/internal/worker"
)

const (
	msgProjectNotFound = "Project not found"
	msgJobNotFound     = "Export job not found or expired"
)

type exportRequest struct {
	DeviceSizes      []string `json:"deviceSizes"`
	Languages        []string `json:"languages"`
	Language         string   `json:"language"`
	IncludeWatermark *bool    `json:"includeWatermark"`
	WatermarkText    string   `json:"watermarkText"`
}

type exportResponse struct {
	ZipURL         string `json:"zipUrl"`
	FileCount      int    `json:"fileCount"`
	TotalSizeBytes int64  `json:"totalSizeBytes"`
}

type historyResponse struct {
	Items []models.ExportRecord `json:"items"`
}

// exportLanguages picks the language list: explicit languages win, then the
// legacy zh|en|both selector, then the configured defaults.
func exportLanguages(body exportRequest, defaults []string) []string {
	if len(body.Languages) > 0 {
		return catalog.DedupeLanguages(body.Languages)
	}
	switch body.Language {
	case "both":
		return []string{"zh", "en"}
	case "zh", "en":
		return []string{body.Language}
	}
	return catalog.DedupeLanguages(defaults)
}

func exportDevices(raw []string) []catalog.DeviceID {
	sizes := catalog.ResolveDevices(raw)
	out := make([]catalog.DeviceID, 0, len(sizes))
	for _, d := range sizes {
		out = append(out, d.ID)
	}
	return out
}

func (s *Server) loadProject(w http.ResponseWriter, r *http.Request) (project.Project, bool) {
	proj, err := s.projects.Load(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, project.ErrProjectNotFound) {
		writeError(w, http.StatusNotFound, msgProjectNotFound)
		return project.Project{}, false
	}
	if err != nil {
		s.logger(r.Context()).Error().Err(err).Msg("load project")
		writeError(w, http.StatusInternalServerError, "Failed to load project")
		return project.Project{}, false
	}
	return proj, true
}

// prepareExport validates an export request against its project and writes
// the error response itself when it returns false.
func (s *Server) prepareExport(w http.ResponseWriter, r *http.Request) (project.Project, worker.Request, bool) {
	proj, ok := s.loadProject(w, r)
	if !ok {
		return project.Project{}, worker.Request{}, false
	}

	var body exportRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return project.Project{}, worker.Request{}, false
	}

	if proj.GeneratedCopy == nil {
		writeError(w, http.StatusBadRequest, "Run analysis first")
		return project.Project{}, worker.Request{}, false
	}
	if len(proj.ScreenshotPaths) == 0 {
		writeError(w, http.StatusBadRequest, "Upload screenshots first")
		return project.Project{}, worker.Request{}, false
	}
	devices := exportDevices(body.DeviceSizes)
	if len(devices) == 0 {
		writeError(w, http.StatusBadRequest, "No valid device size selected")
		return project.Project{}, worker.Request{}, false
	}

	watermark := true
	if body.IncludeWatermark != nil {
		watermark = *body.IncludeWatermark
	}
	text := strings.TrimSpace(body.WatermarkText)
	if text == "" {
		text = s.cfg.DefaultWatermarkText
	}

	return proj, worker.Request{
		ProjectID:        proj.ID,
		Owner:            ownerFromRequest(r),
		Devices:          devices,
		Languages:        exportLanguages(body, s.cfg.DefaultLanguages),
		IncludeWatermark: watermark,
		WatermarkText:    text,
	}, true
}

// admit applies the per-owner rate limit and, for watermark-free exports,
// the advanced-export cooldown. The returned release undoes the cooldown.
func (s *Server) admit(w http.ResponseWriter, r *http.Request, req worker.Request) (func(), bool) {
	release := func() {}
	if s.limiter != nil {
		allowed, _, err := s.limiter.Allow(r.Context(), req.Owner)
		if err != nil {
			s.logger(r.Context()).Error().Err(err).Msg("rate limiter")
			writeError(w, http.StatusInternalServerError, "rate limit error")
			return release, false
		}
		if !allowed {
			telemetry.RateLimitRejects.WithLabelValues("bucket").Inc()
			writeError(w, http.StatusTooManyRequests, "Too many export requests, please retry later")
			return release, false
		}
	}

	if req.IncludeWatermark || s.cooldown == nil {
		return release, true
	}
	key := req.Owner + ":" + req.ProjectID
	ok, wait, err := s.cooldown.Acquire(r.Context(), key)
	if err != nil {
		s.logger(r.Context()).Error().Err(err).Msg("advanced export cooldown")
		writeError(w, http.StatusInternalServerError, "rate limit error")
		return release, false
	}
	if !ok {
		telemetry.RateLimitRejects.WithLabelValues("cooldown").Inc()
		minutes := int(math.Ceil(wait.Minutes()))
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		writeError(w, http.StatusTooManyRequests, fmt.Sprintf("Advanced export requested too often, please retry in %d minutes", minutes))
		return release, false
	}
	ctx := r.Context()
	return func() {
		if err := s.cooldown.Release(ctx, key); err != nil {
			s.logger(ctx).Warn().Err(err).Msg("release cooldown")
		}
	}, true
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	_, req, ok := s.prepareExport(w, r)
	if !ok {
		return
	}
	release, ok := s.admit(w, r, req)
	if !ok {
		return
	}

	job := s.registry.Create(req.ProjectID, req.Owner)
	req.JobID = job.ID
	if err := s.processor.Enqueue(req); err != nil {
		_, _ = s.registry.Fail(job.ID, err.Error())
		release()
		s.logger(r.Context()).Warn().Err(err).Str("job_id", job.ID).Msg("enqueue export")
		writeError(w, http.StatusServiceUnavailable, "Export queue is full, please retry later")
		return
	}
	telemetry.ExportsStarted.Inc()
	s.logger(r.Context()).Info().
		Str("job_id", job.ID).
		Str("project_id", req.ProjectID).
		Strs("languages", req.Languages).
		Int("devices", len(req.Devices)).
		Bool("watermark", req.IncludeWatermark).
		Msg("export job queued")

	writeJSON(w, http.StatusAccepted, job)
}

// handleExportNow renders and stores an archive within the request.
func (s *Server) handleExportNow(w http.ResponseWriter, r *http.Request) {
	proj, req, ok := s.prepareExport(w, r)
	if !ok {
		return
	}
	release, ok := s.admit(w, r, req)
	if !ok {
		return
	}

	telemetry.ExportsStarted.Inc()
	shots, err := s.projects.Screenshots(r.Context(), proj)
	if err == nil {
		var out worker.Outcome
		out, err = s.processor.Export(r.Context(), proj, shots, req, nil, nil)
		if err == nil {
			telemetry.ExportsCompleted.Inc()
			writeJSON(w, http.StatusOK, exportResponse{ZipURL: out.ZipURL, FileCount: out.FileCount, TotalSizeBytes: out.TotalSizeBytes})
			return
		}
	}

	telemetry.ExportsFailed.Inc()
	release()
	s.logger(r.Context()).Error().Err(err).Str("project_id", proj.ID).Msg("export failed")
	if errors.Is(err, export.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, jobs.FailureMessage)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.registry.Get(chi.URLParam(r, "jobId"))
	if !ok {
		writeError(w, http.StatusNotFound, msgJobNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	if s.history == nil {
		writeJSON(w, http.StatusOK, historyResponse{Items: []models.ExportRecord{}})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := s.history.ListExports(r.Context(), projectID, limit)
	if err != nil {
		s.logger(r.Context()).Error().Err(err).Msg("list exports")
		writeError(w, http.StatusInternalServerError, "Failed to list exports")
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Items: items})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	rc, err := s.uploader.Open(r.Context(), name)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	if err != nil {
		s.logger(r.Context()).Error().Err(err).Str("file", name).Msg("open archive")
		writeError(w, http.StatusInternalServerError, "Failed to open file")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", storage.ZipContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger(r.Context()).Warn().Err(err).Str("file", name).Msg("download interrupted")
	}
}
