// Package jobs implements the Job Orchestrator (C5): async submission,
// progress reporting, cooperative cancellation and bounded-concurrency
// execution of backtest/compare runs, per spec §4.5. It is grounded on the
// teacher's internal/esi/order_cache.go (a mutex-guarded map of entries,
// each independently lockable, with singleflight coalescing concurrent
// callers) and internal/engine/scanner.go's bounded goroutine fan-out —
// generalized from "cache entries"/"scan workers" to "submitted jobs".
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketcore/internal/corekit"
	"marketcore/internal/domain"
)

// RunFunc is the work a submitted job performs. It must poll ctx.Done() at
// reasonable intervals to honor cooperative cancellation, and should report
// incremental progress via sink.
type RunFunc func(ctx context.Context, sink ProgressReporter) (any, error)

// ProgressReporter receives fractional-complete progress updates in [0,1].
// Its method set intentionally matches internal/backtest.ProgressSink so a
// *jobSink can be passed directly to Run/RunWalkForward without either
// package importing the other.
type ProgressReporter interface {
	Report(fractionComplete float64, message string)
}

type jobEntry struct {
	mu     sync.Mutex
	job    *domain.Job
	cancel context.CancelFunc
}

// Registry tracks submitted jobs and bounds how many run concurrently.
// Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*jobEntry
	sem     chan struct{}
}

// NewRegistry builds a Registry that runs at most maxConcurrent jobs at
// once; additional submissions queue (PENDING) until a slot frees up.
func NewRegistry(maxConcurrent int) *Registry {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Registry{
		entries: make(map[string]*jobEntry),
		sem:     make(chan struct{}, maxConcurrent),
	}
}

// Submit registers a new job in PENDING state and starts it in the
// background; it returns immediately with the job's ID. perJobDeadline<=0
// means no deadline beyond the parent context's.
func (r *Registry) Submit(parent context.Context, kind domain.JobKind, perJobDeadline time.Duration, run RunFunc) string {
	now := time.Now().UTC()
	id := uuid.NewString()

	var ctx context.Context
	var cancel context.CancelFunc
	if perJobDeadline > 0 {
		ctx, cancel = context.WithTimeout(parent, perJobDeadline)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}

	entry := &jobEntry{
		job: &domain.Job{
			ID:        id,
			Kind:      kind,
			State:     domain.JobPending,
			CreatedAt: now,
		},
		cancel: cancel,
	}

	r.mu.Lock()
	r.entries[id] = entry
	r.mu.Unlock()

	go r.execute(ctx, entry, run)
	return id
}

func (r *Registry) execute(ctx context.Context, entry *jobEntry, run RunFunc) {
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		err := ctx.Err()
		if err == context.DeadlineExceeded {
			err = corekit.NewError(corekit.ErrDeadlineExceeded, "job deadline exceeded", nil)
		}
		r.finish(entry, nil, err)
		return
	}
	defer func() { <-r.sem }()

	entry.mu.Lock()
	startedAt := time.Now().UTC()
	entry.job.State = domain.JobRunning
	entry.job.StartedAt = &startedAt
	entry.mu.Unlock()

	result, err := run(ctx, &jobSink{entry: entry})
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		// A run cut short by the per-job deadline fails with DEADLINE_EXCEEDED,
		// whatever error the run itself returned.
		err = corekit.NewError(corekit.ErrDeadlineExceeded, "job deadline exceeded", nil)
	}
	r.finish(entry, result, err)
}

func (r *Registry) finish(entry *jobEntry, result any, err error) {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	completedAt := time.Now().UTC()
	entry.job.CompletedAt = &completedAt

	switch {
	case err == nil:
		entry.job.State = domain.JobCompleted
		entry.job.Result = result
		entry.job.Progress = 100
	case corekit.IsKind(err, corekit.ErrCancelled) || err == context.Canceled:
		entry.job.State = domain.JobCancelled
		entry.job.Error = errView(err)
	default:
		entry.job.State = domain.JobFailed
		entry.job.Error = errView(err)
	}
}

func errView(err error) *domain.CoreErrorView {
	if ce, ok := err.(*corekit.CoreError); ok {
		return &domain.CoreErrorView{Kind: string(ce.Kind), Message: ce.Message, Fields: ce.Fields}
	}
	return &domain.CoreErrorView{Kind: string(corekit.ErrNumerical), Message: err.Error()}
}

// Status returns a snapshot of the job (see domain.Job.Clone), or a
// NOT_FOUND error.
func (r *Registry) Status(id string) (*domain.Job, error) {
	entry, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.job.Clone(), nil
}

// Result returns the job's result payload; errors if the job has not
// reached COMPLETED.
func (r *Registry) Result(id string) (any, error) {
	entry, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.job.State != domain.JobCompleted {
		return nil, corekit.NewError(corekit.ErrNotReady, "job "+id+" has not completed", map[string]any{"state": string(entry.job.State)})
	}
	return entry.job.Result, nil
}

// Cancel requests cooperative cancellation of a running or pending job. It
// is idempotent; cancelling an already-terminal job is a no-op and returns
// (false, nil). The returned bool reports whether this call actually
// triggered cancellation of a non-terminal job.
func (r *Registry) Cancel(id string) (bool, error) {
	entry, err := r.lookup(id)
	if err != nil {
		return false, err
	}
	entry.mu.Lock()
	terminal := entry.job.State.Terminal()
	entry.mu.Unlock()
	if terminal {
		return false, nil
	}
	entry.cancel()
	return true, nil
}

// List returns a snapshot (see domain.Job.Clone) of every tracked job, most
// recently created first.
func (r *Registry) List() []*domain.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Job, 0, len(r.entries))
	for _, entry := range r.entries {
		entry.mu.Lock()
		out = append(out, entry.job.Clone())
		entry.mu.Unlock()
	}
	sortJobsByCreatedAtDesc(out)
	return out
}

func sortJobsByCreatedAtDesc(jobs []*domain.Job) {
	for i := 1; i < len(jobs); i++ {
		for j := i; j > 0 && jobs[j-1].CreatedAt.Before(jobs[j].CreatedAt); j-- {
			jobs[j-1], jobs[j] = jobs[j], jobs[j-1]
		}
	}
}

func (r *Registry) lookup(id string) (*jobEntry, error) {
	r.mu.RLock()
	entry, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, corekit.NewError(corekit.ErrNotFound, "no job with id "+id, nil)
	}
	return entry, nil
}

// jobSink adapts a registry entry to ProgressReporter, clamping progress to
// [0,100] and guarding the job under its own mutex.
type jobSink struct {
	entry *jobEntry
}

func (s *jobSink) Report(fractionComplete float64, message string) {
	pct := fractionComplete * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	s.entry.mu.Lock()
	defer s.entry.mu.Unlock()
	if s.entry.job.State.Terminal() {
		return
	}
	s.entry.job.Progress = pct
	s.entry.job.Message = message
}
