package jobs

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"appshots/internal/models"
)

// ErrJobNotFound is returned for unknown or expired job ids.
var ErrJobNotFound = errors.New("export job not found")

// ErrTerminal is returned when a completed or failed job is changed.
var ErrTerminal = errors.New("export job already finished")

const (
	// DefaultTTL is how long a job survives after its last update.
	DefaultTTL = 30 * time.Minute
	// FailureMessage is the user-facing message of a failed job.
	FailureMessage = "Export failed, please retry."

	defaultBuffer = 16
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Patch is a partial job update. Zero fields leave the job unchanged.
// Progress lower than the current value is ignored, and so is a stage that
// would move the job backwards.
type Patch struct {
	Stage    models.Stage
	Progress int
	Message  string
}

// Completion carries the result of a finished export.
type Completion struct {
	ZipURL         string
	FileCount      int
	TotalSizeBytes int64
	Message        string
}

type entry struct {
	job  models.ExportJob
	subs map[*subscriber]struct{}
}

type subscriber struct {
	ch chan models.ExportJob
}

// Registry holds in-memory export jobs and fans out every snapshot to
// subscribers. Jobs are purged once UpdatedAt is older than the TTL.
type Registry struct {
	mu     sync.Mutex
	jobs   map[string]*entry
	clock  Clock
	ttl    time.Duration
	buffer int
	newID  func() string

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{} // guarded by mu; nil until Start
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithTTL sets how long idle jobs are kept.
func WithTTL(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.ttl = d
		}
	}
}

// WithIDGenerator overrides job id generation.
func WithIDGenerator(f func() string) Option {
	return func(r *Registry) { r.newID = f }
}

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.buffer = n
		}
	}
}

// NewRegistry builds an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		jobs:   make(map[string]*entry),
		clock:  systemClock{},
		ttl:    DefaultTTL,
		buffer: defaultBuffer,
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.newID == nil {
		entropy := ulid.Monotonic(rand.New(rand.NewSource(r.clock.Now().UnixNano())), 0)
		r.newID = func() string {
			return ulid.MustNew(ulid.Timestamp(r.clock.Now()), entropy).String()
		}
	}
	return r
}

// Start runs a janitor that purges expired jobs every interval until ctx
// is done or Stop is called. Reads and creates purge on their own, so the
// janitor only bounds memory of jobs nobody touches. Only the first call
// starts a janitor.
func (r *Registry) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	r.startOnce.Do(func() {
		done := make(chan struct{})
		r.mu.Lock()
		r.done = done
		r.mu.Unlock()
		go r.janitor(ctx, interval, done)
	})
}

func (r *Registry) janitor(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			r.purgeLocked()
			r.mu.Unlock()
		}
	}
}

// Stop halts the janitor and waits for it to exit.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Create registers a queued job.
func (r *Registry) Create(projectID, owner string) models.ExportJob {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.purgeLocked()
	now := r.clock.Now()
	job := models.ExportJob{
		ID:        r.newID(),
		ProjectID: projectID,
		Owner:     owner,
		Status:    models.StatusQueued,
		Stage:     models.StageQueued,
		Progress:  0,
		Message:   "Export job created.",
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.jobs[job.ID] = &entry{job: job, subs: make(map[*subscriber]struct{})}
	return job
}

// Get returns the current snapshot of id.
func (r *Registry) Get(id string) (models.ExportJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.purgeLocked()
	e, ok := r.jobs[id]
	if !ok {
		return models.ExportJob{}, false
	}
	return e.job, true
}

// Update merges p into the job and publishes the new snapshot. A queued job
// moves to running on its first update.
func (r *Registry) Update(id string, p Patch) (models.ExportJob, error) {
	return r.mutate(id, func(job *models.ExportJob) {
		if job.Status == models.StatusQueued {
			job.Status = models.StatusRunning
		}
		if p.Stage != "" && p.Stage.Rank() >= job.Stage.Rank() &&
			p.Stage != models.StageCompleted && p.Stage != models.StageFailed {
			job.Stage = p.Stage
		}
		job.Progress = max(job.Progress, min(100, p.Progress))
		if p.Message != "" {
			job.Message = p.Message
		}
	})
}

// Complete marks the job completed at 100% and closes its subscriptions.
func (r *Registry) Complete(id string, c Completion) (models.ExportJob, error) {
	return r.mutate(id, func(job *models.ExportJob) {
		job.Status = models.StatusCompleted
		job.Stage = models.StageCompleted
		job.Progress = 100
		job.Message = c.Message
		if job.Message == "" {
			job.Message = fmt.Sprintf("Export complete: %d images.", c.FileCount)
		}
		job.ZipURL = c.ZipURL
		job.FileCount = c.FileCount
		job.TotalSizeBytes = c.TotalSizeBytes
	})
}

// Fail marks the job failed with a diagnostic error and closes its subscriptions.
func (r *Registry) Fail(id, errMsg string) (models.ExportJob, error) {
	return r.mutate(id, func(job *models.ExportJob) {
		job.Status = models.StatusFailed
		job.Stage = models.StageFailed
		job.Message = FailureMessage
		job.Error = errMsg
	})
}

func (r *Registry) mutate(id string, apply func(*models.ExportJob)) (models.ExportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.purgeLocked()
	e, ok := r.jobs[id]
	if !ok {
		return models.ExportJob{}, ErrJobNotFound
	}
	if e.job.Status.Terminal() {
		return e.job, ErrTerminal
	}
	apply(&e.job)
	e.job.UpdatedAt = r.clock.Now()

	for s := range e.subs {
		s.offer(e.job)
	}
	if e.job.Status.Terminal() {
		for s := range e.subs {
			close(s.ch)
		}
		e.subs = make(map[*subscriber]struct{})
	}
	return e.job, nil
}

// Subscribe returns a channel receiving every snapshot of the job from now
// on, starting with the current one. The channel is closed once the job
// finishes or expires, or when the returned cancel func is called. A slow
// reader only loses intermediate snapshots; the newest is always kept.
func (r *Registry) Subscribe(id string) (<-chan models.ExportJob, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.purgeLocked()
	e, ok := r.jobs[id]
	if !ok {
		return nil, nil, ErrJobNotFound
	}
	s := &subscriber{ch: make(chan models.ExportJob, r.buffer)}
	s.ch <- e.job
	if e.job.Status.Terminal() {
		close(s.ch)
		return s.ch, func() {}, nil
	}
	e.subs[s] = struct{}{}

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if cur, ok := r.jobs[id]; ok && cur == e {
			if _, ok := e.subs[s]; ok {
				delete(e.subs, s)
				close(s.ch)
			}
		}
	}
	return s.ch, cancel, nil
}

// Len is the number of live jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeLocked()
	return len(r.jobs)
}

// SubscriberCount is the number of open subscriptions for id.
func (r *Registry) SubscriberCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.jobs[id]; ok {
		return len(e.subs)
	}
	return 0
}

func (r *Registry) purgeLocked() {
	cutoff := r.clock.Now().Add(-r.ttl)
	for id, e := range r.jobs {
		if !e.job.UpdatedAt.Before(cutoff) {
			continue
		}
		for s := range e.subs {
			close(s.ch)
		}
		delete(r.jobs, id)
	}
}

// offer enqueues snap without blocking, dropping the oldest pending
// snapshot when the buffer is full.
func (s *subscriber) offer(snap models.ExportJob) {
	for {
		select {
		case s.ch <- snap:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}
