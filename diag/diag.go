// Package diag is the optional performance-counter sampling wrapper
// SPEC_FULL.md §3 calls for: a Sampler brackets a rank's time-step loop
// and returns elapsed counters. Packages engine and loop do not call a
// Sampler themselves. The default
// Sampler is a no-op so every platform can run calc_rank_opt; a
// perf_events-backed Sampler is available on Linux behind a build tag.
package diag

import "time"

// Sample is one rank's accumulated counters for a run.
type Sample struct {
	Wall    time.Duration
	Shadow  time.Duration
	MPI     time.Duration
	Counters map[string]uint64
}

// Sampler brackets a rank's time-step loop, handing back whatever
// hardware counters the platform exposes.
type Sampler interface {
	Start() error
	Stop() (Sample, error)
}

// NoopSampler is the zero-dependency default: it tracks wall time only.
type NoopSampler struct {
	start time.Time
}

func NewNoopSampler() *NoopSampler { return &NoopSampler{} }

func (s *NoopSampler) Start() error {
	s.start = timeNow()
	return nil
}

func (s *NoopSampler) Stop() (Sample, error) {
	return Sample{Wall: timeNow().Sub(s.start)}, nil
}

// timeNow is a var so tests can freeze it; production code leaves it as
// time.Now.
var timeNow = time.Now

var _ Sampler = (*NoopSampler)(nil)
