package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"appshots/internal/catalog"
	"appshots/internal/compose"
	"appshots/internal/export"
	"appshots/internal/telemetry"
)

// handlePreview renders one screenshot with the watermark always on.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	proj, ok := s.loadProject(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 || index >= len(proj.ScreenshotPaths) {
		writeError(w, http.StatusBadRequest, "Invalid screenshot index")
		return
	}

	q := r.URL.Query()
	templateID := q.Get("template")
	if templateID == "" {
		templateID = proj.TemplateStyle
	}
	tpl := catalog.TemplateOrDefault(templateID)
	lang := catalog.NormalizeLanguage(q.Get("lang"))
	if lang == "" {
		lang = "zh"
	}
	deviceID := q.Get("device")
	if deviceID == "" {
		deviceID = string(catalog.Device67)
	}
	device, ok := catalog.Device(catalog.DeviceID(deviceID))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid device size")
		return
	}

	var headline, subtitle string
	if c := proj.GeneratedCopy; c != nil {
		headline = export.Localize(c.Headlines, index, lang)
		subtitle = export.Localize(c.Subtitles, index, lang)
	}

	shot, err := s.projects.Screenshot(r.Context(), proj, index)
	if err != nil {
		s.logger(r.Context()).Error().Err(err).Int("index", index).Msg("read screenshot")
		writeError(w, http.StatusInternalServerError, "Failed to read screenshot")
		return
	}

	img, err := s.renderer.Compose(compose.Input{
		Screenshot:       shot,
		Index:            index,
		Total:            len(proj.ScreenshotPaths),
		Headline:         headline,
		Subtitle:         subtitle,
		Template:         tpl,
		Device:           device,
		IncludeWatermark: true,
		WatermarkText:    s.cfg.DefaultWatermarkText,
	})
	if err != nil {
		s.logger(r.Context()).Error().Err(err).Int("index", index).Str("device", deviceID).Msg("render preview")
		writeError(w, http.StatusUnprocessableEntity, "Screenshot could not be rendered")
		return
	}
	telemetry.PreviewsRendered.Inc()

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", s.cfg.PreviewCacheMaxAgeSec))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func (s *Server) handleTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, catalog.Templates())
}

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, catalog.Devices())
}
