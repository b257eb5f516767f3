package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketcore/internal/corekit"
	"marketcore/internal/domain"
)

func waitForTerminal(t *testing.T, r *Registry, id string, timeout time.Duration) *domain.Job {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		job, err := r.Status(id)
		if err != nil {
			t.Fatalf("Status(%s) returned error: %v", id, err)
		}
		if job.State.Terminal() {
			return job
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state within %v", id, timeout)
	return nil
}

func TestSubmitRunsToCompletionAndStoresResult(t *testing.T) {
	r := NewRegistry(2)
	id := r.Submit(context.Background(), domain.JobBacktest, 0, func(ctx context.Context, sink ProgressReporter) (any, error) {
		sink.Report(0.5, "halfway")
		return 42, nil
	})

	job := waitForTerminal(t, r, id, time.Second)
	if job.State != domain.JobCompleted {
		t.Fatalf("State = %v, want COMPLETED", job.State)
	}
	if job.Progress != 100 {
		t.Errorf("Progress = %v, want 100", job.Progress)
	}

	result, err := r.Result(id)
	if err != nil {
		t.Fatalf("Result returned error: %v", err)
	}
	if result != 42 {
		t.Errorf("Result = %v, want 42", result)
	}
}

func TestSubmitPropagatesFailure(t *testing.T) {
	r := NewRegistry(2)
	wantErr := corekit.Validationf("bad input")
	id := r.Submit(context.Background(), domain.JobBacktest, 0, func(ctx context.Context, sink ProgressReporter) (any, error) {
		return nil, wantErr
	})

	job := waitForTerminal(t, r, id, time.Second)
	if job.State != domain.JobFailed {
		t.Fatalf("State = %v, want FAILED", job.State)
	}
	if job.Error == nil || job.Error.Kind != string(corekit.ErrValidation) {
		t.Errorf("Error = %+v, want VALIDATION kind", job.Error)
	}

	if _, err := r.Result(id); err == nil {
		t.Error("Result on a FAILED job should return an error")
	}
}

func TestCancelStopsARunningJob(t *testing.T) {
	r := NewRegistry(2)
	started := make(chan struct{})
	id := r.Submit(context.Background(), domain.JobBacktest, 0, func(ctx context.Context, sink ProgressReporter) (any, error) {
		close(started)
		select {
		case <-ctx.Done():
			return nil, corekit.NewError(corekit.ErrCancelled, "cancelled", nil)
		case <-time.After(5 * time.Second):
			return "should not get here", nil
		}
	})

	<-started
	cancelled, err := r.Cancel(id)
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if !cancelled {
		t.Error("Cancel on a running job should report cancelled = true")
	}

	job := waitForTerminal(t, r, id, time.Second)
	if job.State != domain.JobCancelled {
		t.Fatalf("State = %v, want CANCELLED", job.State)
	}
}

func TestCancelOnTerminalJobIsNoOp(t *testing.T) {
	r := NewRegistry(2)
	id := r.Submit(context.Background(), domain.JobBacktest, 0, func(ctx context.Context, sink ProgressReporter) (any, error) {
		return "done", nil
	})
	waitForTerminal(t, r, id, time.Second)

	cancelled, err := r.Cancel(id)
	if err != nil {
		t.Errorf("Cancel on a completed job returned error: %v", err)
	}
	if cancelled {
		t.Error("Cancel on a completed job should report cancelled = false")
	}
}

func TestStatusUnknownIDReturnsNotFound(t *testing.T) {
	r := NewRegistry(2)
	_, err := r.Status("does-not-exist")
	if !corekit.IsKind(err, corekit.ErrNotFound) {
		t.Errorf("Status(unknown) error = %v, want NOT_FOUND", err)
	}
}

func TestResultBeforeCompletionReturnsNotReady(t *testing.T) {
	r := NewRegistry(1)
	release := make(chan struct{})
	id := r.Submit(context.Background(), domain.JobBacktest, 0, func(ctx context.Context, sink ProgressReporter) (any, error) {
		<-release
		return "done", nil
	})

	if _, err := r.Result(id); !corekit.IsKind(err, corekit.ErrNotReady) {
		t.Errorf("Result(pending job) error = %v, want NOT_READY", err)
	}
	close(release)
	waitForTerminal(t, r, id, time.Second)
}

func TestBoundedConcurrencyQueuesExcessJobs(t *testing.T) {
	r := NewRegistry(1)
	release := make(chan struct{})
	inFlight := make(chan struct{}, 2)

	id1 := r.Submit(context.Background(), domain.JobBacktest, 0, func(ctx context.Context, sink ProgressReporter) (any, error) {
		inFlight <- struct{}{}
		<-release
		return "first", nil
	})
	id2 := r.Submit(context.Background(), domain.JobBacktest, 0, func(ctx context.Context, sink ProgressReporter) (any, error) {
		inFlight <- struct{}{}
		return "second", nil
	})

	<-inFlight
	job2, err := r.Status(id2)
	if err != nil {
		t.Fatalf("Status(id2) returned error: %v", err)
	}
	if job2.State != domain.JobPending {
		t.Errorf("second job State = %v, want PENDING while the pool is saturated", job2.State)
	}

	close(release)
	waitForTerminal(t, r, id1, time.Second)
	waitForTerminal(t, r, id2, time.Second)
}

func TestListReturnsDeepCopies(t *testing.T) {
	r := NewRegistry(2)
	id := r.Submit(context.Background(), domain.JobBacktest, 0, func(ctx context.Context, sink ProgressReporter) (any, error) {
		return "done", nil
	})
	waitForTerminal(t, r, id, time.Second)

	jobs := r.List()
	if len(jobs) != 1 {
		t.Fatalf("List() returned %d jobs, want 1", len(jobs))
	}
	jobs[0].Message = "mutated by caller"

	again, err := r.Status(id)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if again.Message == "mutated by caller" {
		t.Error("List() leaked a reference to internal job state; mutation should not be visible")
	}
}

func TestPerJobDeadlineExpires(t *testing.T) {
	r := NewRegistry(1)
	id := r.Submit(context.Background(), domain.JobBacktest, 10*time.Millisecond, func(ctx context.Context, sink ProgressReporter) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	job := waitForTerminal(t, r, id, time.Second)
	if job.State != domain.JobCancelled && job.State != domain.JobFailed {
		t.Errorf("State = %v, want CANCELLED or FAILED after deadline", job.State)
	}
}

func TestErrViewWrapsPlainErrors(t *testing.T) {
	view := errView(errors.New("boom"))
	if view.Message != "boom" {
		t.Errorf("errView(plain error).Message = %q, want %q", view.Message, "boom")
	}
}
