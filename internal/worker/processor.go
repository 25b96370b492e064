package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"appshots/internal/catalog"
	"appshots/internal/export"
	"appshots/internal/jobs"
	"appshots/internal/logx"
	"appshots/internal/models"
	"appshots/internal/project"
	"appshots/internal/storage"
	"appshots/internal/store"
	"appshots/internal/telemetry"
)

// ErrQueueFull is returned by Enqueue when every slot is taken.
var ErrQueueFull = errors.New("export queue is full")

// Recorder persists finished exports. *store.Store satisfies it.
type Recorder interface {
	RecordExport(ctx context.Context, p store.RecordExportParams) (models.ExportRecord, error)
}

// Request is one export to run for a registry job.
type Request struct {
	JobID            string
	ProjectID        string
	Owner            string
	Devices          []catalog.DeviceID
	Languages        []string
	IncludeWatermark bool
	WatermarkText    string
}

// Outcome describes a stored archive.
type Outcome struct {
	ZipURL         string
	StorageKey     string
	FileCount      int
	TotalSizeBytes int64
}

// Options configures a Processor.
type Options struct {
	Registry *jobs.Registry
	Projects project.Source
	Uploader storage.Uploader
	// Recorder is optional; without it archives are not listed in history.
	Recorder Recorder
	// Renderer defaults to the builtin-font compositor.
	Renderer export.Renderer
	// Concurrency is the number of jobs rendered at once.
	Concurrency int
	// QueueSize bounds jobs waiting for a slot.
	QueueSize     int
	RenderWorkers int
	Logger        zerolog.Logger
}

// Processor drives export jobs through render, storage and history while
// reporting progress to the registry.
type Processor struct {
	registry    *jobs.Registry
	projects    project.Source
	uploader    storage.Uploader
	recorder    Recorder
	renderer    export.Renderer
	concurrency int
	renderers   int
	queue       chan Request
	log         zerolog.Logger
	now         func() time.Time

	wg sync.WaitGroup
}

// NewProcessor creates a processor; call Run to start consuming jobs.
func NewProcessor(o Options) *Processor {
	if o.Concurrency <= 0 {
		o.Concurrency = 2
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	return &Processor{
		registry:    o.Registry,
		projects:    o.Projects,
		uploader:    o.Uploader,
		recorder:    o.Recorder,
		renderer:    o.Renderer,
		concurrency: o.Concurrency,
		renderers:   o.RenderWorkers,
		queue:       make(chan Request, o.QueueSize),
		log:         o.Logger,
		now:         time.Now,
	}
}

// Enqueue hands a job to the worker loops. It never blocks.
func (p *Processor) Enqueue(req Request) error {
	select {
	case p.queue <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run starts the worker loops and blocks until ctx is cancelled and every
// in-flight job has reached a terminal state. Jobs still waiting in the
// queue at shutdown are failed.
func (p *Processor) Run(ctx context.Context) error {
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case req := <-p.queue:
					p.Process(ctx, req)
				}
			}
		}()
	}
	<-ctx.Done()
	p.wg.Wait()
	for {
		select {
		case req := <-p.queue:
			_, _ = p.registry.Fail(req.JobID, "service shutting down")
		default:
			return ctx.Err()
		}
	}
}

// Process runs one job to a terminal registry state. Errors are recorded on
// the job, never returned.
func (p *Processor) Process(ctx context.Context, req Request) {
	log := logx.FromCtx(logx.WithJobID(ctx, req.JobID), p.log).With().Str("project_id", req.ProjectID).Logger()
	start := p.now()
	telemetry.ActiveExports.Inc()
	defer telemetry.ActiveExports.Dec()

	out, err := p.run(ctx, req)
	telemetry.ExportDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.ExportsFailed.Inc()
		log.Error().Err(err).Msg("export failed")
		if _, ferr := p.registry.Fail(req.JobID, err.Error()); ferr != nil && !errors.Is(ferr, jobs.ErrJobNotFound) {
			log.Warn().Err(ferr).Msg("mark job failed")
		}
		return
	}

	telemetry.ExportsCompleted.Inc()
	telemetry.ArchiveBytes.Observe(float64(out.TotalSizeBytes))
	if _, err := p.registry.Complete(req.JobID, jobs.Completion{
		ZipURL:         out.ZipURL,
		FileCount:      out.FileCount,
		TotalSizeBytes: out.TotalSizeBytes,
	}); err != nil {
		log.Warn().Err(err).Msg("mark job completed")
		return
	}
	log.Info().Int("files", out.FileCount).Int64("bytes", out.TotalSizeBytes).Str("zip_url", out.ZipURL).Msg("export completed")
}

func (p *Processor) run(ctx context.Context, req Request) (Outcome, error) {
	p.update(req.JobID, models.StagePreparing, 5, "Reading project assets...")
	proj, shots, err := p.load(ctx, req.ProjectID)
	if err != nil {
		return Outcome{}, err
	}

	p.update(req.JobID, models.StageRendering, 8, "Rendering screenshots...")
	return p.Export(ctx, proj, shots, req, func(pr export.Progress) {
		if pr.Stage == models.StageRendering {
			p.update(req.JobID, models.StageRendering, max(8, pr.Progress),
				fmt.Sprintf("Rendering %d/%d...", pr.CompletedItems, pr.TotalItems))
			return
		}
		p.update(req.JobID, pr.Stage, pr.Progress, "Packaging ZIP archive...")
	}, func() {
		p.update(req.JobID, models.StageSaving, 99, "Saving export file...")
	})
}

func (p *Processor) load(ctx context.Context, projectID string) (project.Project, [][]byte, error) {
	proj, err := p.projects.Load(ctx, projectID)
	if err != nil {
		return project.Project{}, nil, err
	}
	if proj.GeneratedCopy == nil {
		return project.Project{}, nil, project.ErrNoCopy
	}
	shots, err := p.projects.Screenshots(ctx, proj)
	if err != nil {
		return project.Project{}, nil, err
	}
	return proj, shots, nil
}

// Export renders, stores and records one archive for an already loaded
// project. It is shared by queued jobs and the synchronous export route.
func (p *Processor) Export(ctx context.Context, proj project.Project, shots [][]byte, req Request, onProgress func(export.Progress), onSaving func()) (Outcome, error) {
	tpl := catalog.TemplateOrDefault(proj.TemplateStyle)
	var texts models.Copy
	if proj.GeneratedCopy != nil {
		texts = *proj.GeneratedCopy
	}

	var buf bytes.Buffer
	res, err := export.RunTo(ctx, &buf, export.Request{
		Screenshots:      shots,
		Copy:             texts,
		Template:         tpl.ID,
		Devices:          req.Devices,
		Languages:        req.Languages,
		IncludeWatermark: req.IncludeWatermark,
		WatermarkText:    req.WatermarkText,
		AppName:          proj.AppName,
		Workers:          p.renderers,
		Renderer:         p.renderer,
	}, onProgress)
	if err != nil {
		return Outcome{}, err
	}
	telemetry.ImagesRendered.Add(float64(res.FileCount))

	if onSaving != nil {
		onSaving()
	}
	suffix := strconv.FormatInt(p.now().UnixMilli(), 10)
	if req.JobID != "" {
		suffix += "_" + req.JobID
	}
	obj, err := p.uploader.Put(ctx, storage.ExportFilename(proj.AppName, suffix), buf.Bytes(), storage.ZipContentType)
	if err != nil {
		return Outcome{}, fmt.Errorf("store archive: %w", err)
	}
	out := Outcome{
		ZipURL:         obj.URL,
		StorageKey:     obj.Key,
		FileCount:      res.FileCount,
		TotalSizeBytes: int64(buf.Len()),
	}

	if p.recorder != nil && req.JobID != "" {
		devices := make([]string, 0, len(req.Devices))
		for _, d := range req.Devices {
			devices = append(devices, string(d))
		}
		if _, err := p.recorder.RecordExport(ctx, store.RecordExportParams{
			JobID:          req.JobID,
			ProjectID:      proj.ID,
			Owner:          req.Owner,
			ZipURL:         out.ZipURL,
			StorageKey:     out.StorageKey,
			FileCount:      out.FileCount,
			TotalSizeBytes: out.TotalSizeBytes,
			Languages:      req.Languages,
			DeviceIDs:      devices,
			TemplateID:     string(tpl.ID),
		}); err != nil {
			// The archive exists; losing the history row must not fail the job.
			p.log.Warn().Err(err).Str("job_id", req.JobID).Msg("record export history")
		}
	}
	return out, nil
}

func (p *Processor) update(id string, stage models.Stage, progress int, msg string) {
	if _, err := p.registry.Update(id, jobs.Patch{Stage: stage, Progress: progress, Message: msg}); err != nil {
		p.log.Debug().Err(err).Str("job_id", id).Msg("skip progress update")
	}
}
