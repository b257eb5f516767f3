package domain

import "time"

// JobKind names the two job shapes the orchestrator runs (spec §3).
type JobKind string

const (
	JobBacktest JobKind = "BACKTEST"
	JobCompare  JobKind = "COMPARE"
)

// JobState is a node in the job lifecycle state machine (spec §3, §4.5).
type JobState string

const (
	JobPending   JobState = "PENDING"
	JobRunning   JobState = "RUNNING"
	JobCompleted JobState = "COMPLETED"
	JobFailed    JobState = "FAILED"
	JobCancelled JobState = "CANCELLED"
)

// Terminal reports whether s is one of the three terminal states.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Job is the orchestrator's view of one submitted run (spec §3).
// Snapshots returned to callers are made by Clone (see internal/jobs); this
// struct itself carries no behavior beyond the copy helper.
type Job struct {
	ID          string         `json:"id"`
	Kind        JobKind        `json:"kind"`
	State       JobState       `json:"state"`
	Progress    float64        `json:"progress"` // [0,100]
	Message     string         `json:"message,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Result      any            `json:"result,omitempty"`
	Error       *CoreErrorView `json:"error,omitempty"`
}

// CoreErrorView is the JSON/snapshot-safe view of a corekit.CoreError,
// kept in domain (rather than importing corekit's concrete type into Job)
// so domain has no dependency on the error-construction helpers.
type CoreErrorView struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Clone returns a copy of the job whose StartedAt, CompletedAt and Error
// (including Error.Fields) do not alias the original. Result is copied as an
// interface value only: whatever it points to is shared with the original.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	if j.Error != nil {
		e := *j.Error
		if j.Error.Fields != nil {
			e.Fields = make(map[string]any, len(j.Error.Fields))
			for k, v := range j.Error.Fields {
				e.Fields[k] = v
			}
		}
		cp.Error = &e
	}
	return &cp
}
