package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"appshots/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("job-%d", n)
	}
}

// TestCreateStartsQueued verifies the initial snapshot of a new job.
func TestCreateStartsQueued(t *testing.T) {
	r := NewRegistry(WithClock(newFakeClock()), WithIDGenerator(sequentialIDs()))
	job := r.Create("p1", "alice")
	if job.ID != "job-1" || job.Status != models.StatusQueued || job.Stage != models.StageQueued || job.Progress != 0 {
		t.Fatalf("unexpected job: %+v", job)
	}
	got, ok := r.Get(job.ID)
	if !ok || got.ProjectID != "p1" || got.Owner != "alice" {
		t.Fatalf("Get = %+v, %v", got, ok)
	}
}

// TestDefaultIDsAreUnique verifies generated ULIDs do not collide.
func TestDefaultIDsAreUnique(t *testing.T) {
	r := NewRegistry()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := r.Create("p", "o").ID
		if len(id) != 26 {
			t.Fatalf("id %q is not a ULID", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

// TestTTLPurge verifies idle jobs disappear without explicit deletion.
func TestTTLPurge(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(WithClock(clock))
	old := r.Create("p1", "o")

	clock.Advance(20 * time.Minute)
	fresh := r.Create("p2", "o")
	if _, err := r.Update(fresh.ID, Patch{Stage: models.StagePreparing, Progress: 5}); err != nil {
		t.Fatalf("update: %v", err)
	}

	clock.Advance(10*time.Minute + time.Second)
	if _, ok := r.Get(old.ID); ok {
		t.Fatalf("job older than TTL still present")
	}
	if _, ok := r.Get(fresh.ID); !ok {
		t.Fatalf("recently updated job was purged")
	}
	if got := r.Len(); got != 1 {
		t.Fatalf("Len = %d, want 1", got)
	}
	if _, err := r.Update(old.ID, Patch{Progress: 10}); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("update purged job err = %v, want ErrJobNotFound", err)
	}
}

// TestPurgeClosesSubscribers verifies expiry releases stray subscriptions.
func TestPurgeClosesSubscribers(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(WithClock(clock), WithTTL(time.Minute))
	job := r.Create("p", "o")
	ch, cancel, err := r.Subscribe(job.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	clock.Advance(2 * time.Minute)
	r.Len()
	<-ch // initial snapshot
	if _, open := <-ch; open {
		t.Fatalf("channel still open after purge")
	}
}

// TestUpdateIsMonotonic verifies progress and stage never move backwards.
func TestUpdateIsMonotonic(t *testing.T) {
	r := NewRegistry(WithClock(newFakeClock()))
	job := r.Create("p", "o")

	got, err := r.Update(job.ID, Patch{Stage: models.StageRendering, Progress: 40, Message: "Rendering 2/5..."})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Status != models.StatusRunning {
		t.Fatalf("status = %s, want running", got.Status)
	}
	got, _ = r.Update(job.ID, Patch{Stage: models.StagePreparing, Progress: 10})
	if got.Progress != 40 || got.Stage != models.StageRendering {
		t.Fatalf("regressed to %s/%d", got.Stage, got.Progress)
	}
	if got.Message != "Rendering 2/5..." {
		t.Fatalf("message = %q", got.Message)
	}
	got, _ = r.Update(job.ID, Patch{Progress: 250})
	if got.Progress != 100 {
		t.Fatalf("progress = %d, want capped 100", got.Progress)
	}
}

// TestTerminalRejectsUpdates verifies completed jobs are immutable.
func TestTerminalRejectsUpdates(t *testing.T) {
	r := NewRegistry(WithClock(newFakeClock()))
	job := r.Create("p", "o")
	done, err := r.Complete(job.ID, Completion{ZipURL: "/api/export/a.zip", FileCount: 12, TotalSizeBytes: 2048})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Progress != 100 || done.ZipURL == "" || done.FileCount != 12 || done.Error != "" {
		t.Fatalf("unexpected completed job: %+v", done)
	}
	if done.Message != "Export complete: 12 images." {
		t.Fatalf("message = %q", done.Message)
	}
	if _, err := r.Update(job.ID, Patch{Progress: 50}); !errors.Is(err, ErrTerminal) {
		t.Fatalf("update after complete err = %v, want ErrTerminal", err)
	}
	if _, err := r.Fail(job.ID, "boom"); !errors.Is(err, ErrTerminal) {
		t.Fatalf("fail after complete err = %v, want ErrTerminal", err)
	}
}

// TestFailRecordsError verifies failure snapshots carry only the error fields.
func TestFailRecordsError(t *testing.T) {
	r := NewRegistry(WithClock(newFakeClock()))
	job := r.Create("p", "o")
	r.Update(job.ID, Patch{Stage: models.StageRendering, Progress: 30})
	failed, err := r.Fail(job.ID, "render 6.7/en/#2: bad png")
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if failed.Status != models.StatusFailed || failed.Stage != models.StageFailed {
		t.Fatalf("unexpected state %s/%s", failed.Status, failed.Stage)
	}
	if failed.Error == "" || failed.ZipURL != "" || failed.FileCount != 0 {
		t.Fatalf("unexpected failed job: %+v", failed)
	}
	if failed.Message != FailureMessage || failed.Progress != 30 {
		t.Fatalf("message/progress = %q/%d", failed.Message, failed.Progress)
	}
}

// TestSubscriberSeesMonotonicProgress verifies the observed sequence ends at 100.
func TestSubscriberSeesMonotonicProgress(t *testing.T) {
	r := NewRegistry(WithClock(newFakeClock()), WithBuffer(4))
	job := r.Create("p", "o")
	ch, cancel, err := r.Subscribe(job.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	go func() {
		for p := 1; p <= 95; p++ {
			r.Update(job.ID, Patch{Stage: models.StageRendering, Progress: p})
		}
		r.Update(job.ID, Patch{Stage: models.StagePackaging, Progress: 96})
		r.Complete(job.ID, Completion{ZipURL: "z", FileCount: 1})
	}()

	last := -1
	var final models.ExportJob
	for snap := range ch {
		if snap.Progress < last {
			t.Fatalf("progress went from %d to %d", last, snap.Progress)
		}
		last = snap.Progress
		final = snap
	}
	if final.Status != models.StatusCompleted || final.Progress != 100 {
		t.Fatalf("final snapshot = %s/%d, want completed/100", final.Status, final.Progress)
	}
}

// TestSlowSubscriberDoesNotBlock verifies publishing never waits on readers.
func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	r := NewRegistry(WithClock(newFakeClock()), WithBuffer(2))
	job := r.Create("p", "o")
	ch, cancel, err := r.Subscribe(job.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	finished := make(chan struct{})
	go func() {
		for p := 1; p <= 90; p++ {
			r.Update(job.ID, Patch{Stage: models.StageRendering, Progress: p})
		}
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("publisher blocked on an unread subscriber")
	}

	first := <-ch
	second := <-ch
	if first.Progress != 89 || second.Progress != 90 {
		t.Fatalf("buffered = %d,%d, want latest 89,90", first.Progress, second.Progress)
	}
}

// TestNoLeakedSubscribers verifies terminal jobs drop every subscription.
func TestNoLeakedSubscribers(t *testing.T) {
	r := NewRegistry(WithClock(newFakeClock()))
	for i := 0; i < 50; i++ {
		job := r.Create("p", "o")
		var chans []<-chan models.ExportJob
		for j := 0; j < 3; j++ {
			ch, _, err := r.Subscribe(job.ID)
			if err != nil {
				t.Fatalf("subscribe: %v", err)
			}
			chans = append(chans, ch)
		}
		if got := r.SubscriberCount(job.ID); got != 3 {
			t.Fatalf("SubscriberCount = %d, want 3", got)
		}
		if i%2 == 0 {
			r.Complete(job.ID, Completion{ZipURL: "z"})
		} else {
			r.Fail(job.ID, "boom")
		}
		if got := r.SubscriberCount(job.ID); got != 0 {
			t.Fatalf("SubscriberCount after terminal = %d, want 0", got)
		}
		for _, ch := range chans {
			for range ch {
			}
		}
	}
}

// TestUnsubscribeIsIdempotent verifies cancel can be called repeatedly.
func TestUnsubscribeIsIdempotent(t *testing.T) {
	r := NewRegistry(WithClock(newFakeClock()))
	job := r.Create("p", "o")
	ch, cancel, err := r.Subscribe(job.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()
	cancel()
	if got := r.SubscriberCount(job.ID); got != 0 {
		t.Fatalf("SubscriberCount = %d, want 0", got)
	}
	<-ch
	if _, open := <-ch; open {
		t.Fatalf("channel open after cancel")
	}
	if _, err := r.Update(job.ID, Patch{Progress: 10}); err != nil {
		t.Fatalf("update after unsubscribe: %v", err)
	}
}

// TestSubscribeTerminalJob verifies late subscribers get the final snapshot.
func TestSubscribeTerminalJob(t *testing.T) {
	r := NewRegistry(WithClock(newFakeClock()))
	job := r.Create("p", "o")
	r.Complete(job.ID, Completion{ZipURL: "z", FileCount: 2})

	ch, cancel, err := r.Subscribe(job.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	snap, ok := <-ch
	if !ok || snap.Status != models.StatusCompleted {
		t.Fatalf("snapshot = %+v, %v", snap, ok)
	}
	if _, open := <-ch; open {
		t.Fatalf("channel for terminal job left open")
	}
	if _, _, err := r.Subscribe("missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("subscribe missing err = %v", err)
	}
}

// TestJanitorPurges verifies the background sweep removes expired jobs.
func TestJanitorPurges(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(WithClock(clock), WithTTL(time.Minute))
	r.Create("p", "o")
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx, 5*time.Millisecond)
	defer r.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		r.mu.Lock()
		n := len(r.jobs)
		r.mu.Unlock()
		if n == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("janitor did not purge expired job")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestStartTwiceLeavesOneJanitor checks that a repeated Start neither leaks a
// janitor nor blocks Stop.
func TestStartTwiceLeavesOneJanitor(t *testing.T) {
	before := runtime.NumGoroutine()
	r := NewRegistry()
	r.Start(context.Background(), time.Hour)
	r.Start(context.Background(), time.Hour)

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		r.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return")
	}

	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before {
		if time.Now().After(deadline) {
			t.Fatalf("goroutines = %d, want <= %d", runtime.NumGoroutine(), before)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStopWithoutStart(t *testing.T) {
	r := NewRegistry()
	r.Stop()
	r.Start(context.Background(), time.Millisecond)
	r.Stop()
}
