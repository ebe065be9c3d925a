package telemetry

import (
	"time"

	"github.com/google/uuid"

	"overmind/internal/logging"
)

// SelectionProfiler retains the most recent selection samples in a bounded
// ring buffer.
type SelectionProfiler struct {
	samples *RingBuffer[SelectionSample]
}

// NewSelectionProfiler creates a profiler retaining maxSamples entries.
func NewSelectionProfiler(maxSamples int) *SelectionProfiler {
	return &SelectionProfiler{
		samples: NewRingBuffer[SelectionSample](maxSamples),
	}
}

// RecordSelection stamps the sample with an ID and the current time and
// appends it. Safe under concurrent selection calls.
func (p *SelectionProfiler) RecordSelection(sample SelectionSample) {
	sample.ID = uuid.NewString()
	sample.Timestamp = time.Now()
	p.samples.Push(sample)
	logging.Get(logging.CategoryTelemetry).Debug(
		"selection sample: planner=%s score=%.4f candidates=%d duration=%v",
		sample.ChosenPlanner, sample.Score, sample.CandidateCount, sample.Duration)
}

// Samples returns the most recent limit samples in insertion order.
// A non-positive limit returns everything retained.
func (p *SelectionProfiler) Samples(limit int) []SelectionSample {
	if limit <= 0 || limit > p.samples.Len() {
		limit = p.samples.Len()
	}
	return p.samples.Last(limit)
}

// InstantiationProfiler retains the most recent instantiation samples.
type InstantiationProfiler struct {
	samples *RingBuffer[InstantiationSample]
}

// NewInstantiationProfiler creates a profiler retaining maxSamples entries.
func NewInstantiationProfiler(maxSamples int) *InstantiationProfiler {
	return &InstantiationProfiler{
		samples: NewRingBuffer[InstantiationSample](maxSamples),
	}
}

// RecordInstantiation stamps and appends the sample.
func (p *InstantiationProfiler) RecordInstantiation(sample InstantiationSample) {
	sample.ID = uuid.NewString()
	sample.Timestamp = time.Now()
	p.samples.Push(sample)
	logging.Get(logging.CategoryTelemetry).Debug(
		"instantiation sample: planner=%s success=%v cache_hit=%v duration=%v",
		sample.Planner, sample.Success, sample.CacheHit, sample.Duration)
}

// Samples returns the most recent limit samples in insertion order.
func (p *InstantiationProfiler) Samples(limit int) []InstantiationSample {
	if limit <= 0 || limit > p.samples.Len() {
		limit = p.samples.Len()
	}
	return p.samples.Last(limit)
}
