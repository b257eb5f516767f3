// Package config holds the engine-wide settings that parameterise the job
// orchestrator and its subsystems: pool sizing, deadlines, fan-out degree,
// and numerical-solver tolerances. These settings are not persisted:
// internal/store records only jobs and their results.
package config

import "time"

// EngineConfig holds application settings for a running marketcore
// instance (in-memory representation; spec §6).
type EngineConfig struct {
	// MaxConcurrentJobs bounds how many backtest/compare jobs the
	// orchestrator (internal/jobs) runs at once; excess submissions queue.
	MaxConcurrentJobs int `json:"max_concurrent_jobs"`

	// PerJobDeadline bounds the wall-clock time a single submitted job may
	// run; a job still running at the deadline has its context cancelled and
	// ends FAILED with DEADLINE_EXCEEDED. 0 = no deadline.
	PerJobDeadline time.Duration `json:"per_job_deadline"`

	// PerCallDeadline is not read by any package: CachingSource calls use
	// marketdata.DefaultCallDeadline, and the price/implied-vol CLI commands
	// run without a deadline.
	PerCallDeadline time.Duration `json:"per_call_deadline"`

	// IndicatorFanout is not read by internal/indicators: ComputeAll always
	// computes at most min(NumCPU,4) symbols concurrently.
	IndicatorFanout int `json:"indicator_fanout"`

	// ImpliedVolTolerance and ImpliedVolMaxIterations hold the same values
	// as internal/pricing's solver constants; the solver does not read them.
	ImpliedVolTolerance     float64 `json:"implied_vol_tolerance"`
	ImpliedVolMaxIterations int     `json:"implied_vol_max_iterations"`

	// BinomialSteps holds the same value as pricing.DefaultBinomialSteps,
	// which CRRPrice uses when a caller passes no step count; pricing does
	// not read this field.
	BinomialSteps int `json:"binomial_steps"`

	// DBPath names a SQLite file for internal/store. No package reads it:
	// the CLI opens a store only from its --db flag, and without one the job
	// registry lives in memory only.
	DBPath string `json:"db_path"`
}

// Default returns an EngineConfig with sensible defaults.
func Default() *EngineConfig {
	return &EngineConfig{
		MaxConcurrentJobs:       4,
		PerJobDeadline:          10 * time.Minute,
		PerCallDeadline:         30 * time.Second,
		IndicatorFanout:         0,
		ImpliedVolTolerance:     1e-6,
		ImpliedVolMaxIterations: 100,
		BinomialSteps:           200,
		DBPath:                  "",
	}
}
