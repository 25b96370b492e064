package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	ExportsStarted   = prometheus.NewCounter(prometheus.CounterOpts{Name: "appshots_exports_started_total", Help: "Export jobs accepted"})
	ExportsCompleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "appshots_exports_completed_total", Help: "Export jobs that produced an archive"})
	ExportsFailed    = prometheus.NewCounter(prometheus.CounterOpts{Name: "appshots_exports_failed_total", Help: "Export jobs that failed"})
	RateLimitRejects = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "appshots_rate_limit_rejects_total", Help: "Export requests rejected by a limiter"}, []string{"limiter"})
	ImagesRendered   = prometheus.NewCounter(prometheus.CounterOpts{Name: "appshots_images_rendered_total", Help: "Marketing images composed"})
	PreviewsRendered = prometheus.NewCounter(prometheus.CounterOpts{Name: "appshots_previews_rendered_total", Help: "Single-image previews served"})
	ActiveExports    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "appshots_exports_inflight", Help: "Export jobs currently running"})
	ExportDuration   = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "appshots_export_duration_seconds",
		Help:    "Wall time of an export job from start to terminal state",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
	ArchiveBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "appshots_archive_size_bytes",
		Help:    "Size of produced export archives",
		Buckets: prometheus.ExponentialBuckets(256*1024, 2, 10),
	})
)

// Register adds every collector to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ExportsStarted,
			ExportsCompleted,
			ExportsFailed,
			RateLimitRejects,
			ImagesRendered,
			PreviewsRendered,
			ActiveExports,
			ExportDuration,
			ArchiveBytes,
		)
	})
}

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}
