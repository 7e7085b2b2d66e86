// Package progress tracks cumulative progress of long-running scans and
// logs throttled status lines with a throughput-based completion estimate.
package progress

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/eunmann/tilescan/pkg/humanfmt"
	"github.com/rs/zerolog"
)

// sampleWindow bounds the throughput history. Older samples are evicted
// oldest-first, so the estimate follows the recent scan rate instead of
// the lifetime average.
const sampleWindow = 32

// conditionKind discriminates the UpdateCondition variants.
type conditionKind int

const (
	onPercentage conditionKind = iota
	onProgress
)

// UpdateCondition decides when IncProgress emits a status line.
type UpdateCondition struct {
	kind conditionKind
	step float64
}

// OnPercentageChanged emits whenever the completed fraction crosses a
// multiple of step. The fraction is current/target in [0, 1], so step
// 0.05 reports every 5%.
func OnPercentageChanged(step float64) UpdateCondition {
	return UpdateCondition{kind: onPercentage, step: step}
}

// OnProgressChanged emits whenever the raw progress value crosses a
// multiple of step.
func OnProgressChanged(step float64) UpdateCondition {
	return UpdateCondition{kind: onProgress, step: step}
}

// shouldEmit reports whether advancing from prev to cur against target
// crosses a step boundary.
func (c UpdateCondition) shouldEmit(prev, cur, target float64) bool {
	if c.kind == onPercentage {
		prev /= target
		cur /= target
	}
	return math.Floor(cur/c.step) > math.Floor(prev/c.step)
}

// sample is one (progress, timestamp) observation.
type sample struct {
	progress float64
	at       time.Time
}

// Tracker accumulates progress toward a fixed target. It is safe for
// concurrent use: all state, including the sample window and status
// emission, is serialized under one mutex, and the critical section is
// O(1).
type Tracker struct {
	mu      sync.Mutex
	current float64
	target  float64
	cond    UpdateCondition
	samples []sample
	log     zerolog.Logger

	// now is the clock; tests substitute it.
	now func() time.Time
}

// NewTracker creates a tracker for a run with the given target. Progress
// starts at zero. A negative target is a programmer error and panics.
func NewTracker(target float64, cond UpdateCondition, log zerolog.Logger) *Tracker {
	if target < 0 {
		panic(fmt.Sprintf("progress: negative target %v", target))
	}
	return &Tracker{
		target:  target,
		cond:    cond,
		samples: make([]sample, 0, sampleWindow),
		log:     log,
		now:     time.Now,
	}
}

// IncProgress advances progress by inc. Once the target is reached the
// tracker is terminal and further increments are ignored, so racing
// workers may overshoot harmlessly. An increment that crosses the target
// clamps to it and always logs one final status line; increments below
// the target log only when the update condition fires. A negative
// increment is a programmer error and panics.
func (t *Tracker) IncProgress(inc float64) {
	if inc < 0 {
		panic(fmt.Sprintf("progress: negative increment %v", inc))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == t.target {
		return
	}

	prev := t.current
	if prev+inc >= t.target {
		t.current = t.target
		t.recordSample()
		t.emitStatus()
		return
	}

	t.current = prev + inc
	t.recordSample()
	if t.cond.shouldEmit(prev, t.current, t.target) {
		t.emitStatus()
	}
}

// Progress returns the current and target progress values.
func (t *Tracker) Progress() (current, target float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.target
}

// ETA estimates the time remaining from the sample window. ok is false
// until two samples exist, or when the measured throughput is zero.
func (t *Tracker) ETA() (eta time.Duration, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.etaLocked()
}

// recordSample appends an observation, evicting the oldest once the
// window is full. Callers must hold mu.
func (t *Tracker) recordSample() {
	if len(t.samples) >= sampleWindow {
		t.samples = t.samples[1:]
	}
	t.samples = append(t.samples, sample{progress: t.current, at: t.now()})
}

// throughputLocked returns progress units per second across the retained
// window. ok is false with fewer than two samples or a zero time delta.
// Callers must hold mu.
func (t *Tracker) throughputLocked() (perSecond float64, ok bool) {
	if len(t.samples) < 2 {
		return 0, false
	}
	oldest := t.samples[0]
	newest := t.samples[len(t.samples)-1]
	seconds := newest.at.Sub(oldest.at).Seconds()
	if seconds <= 0 {
		return 0, false
	}
	return (newest.progress - oldest.progress) / seconds, true
}

// etaLocked derives the remaining time from the window throughput.
// Callers must hold mu.
func (t *Tracker) etaLocked() (time.Duration, bool) {
	perSecond, ok := t.throughputLocked()
	if !ok || perSecond == 0 {
		return 0, false
	}
	seconds := (t.target - t.current) / perSecond
	return time.Duration(seconds * float64(time.Second)), true
}

// emitStatus logs one status line. The ETA fields are omitted while the
// estimate is undefined. Callers must hold mu.
func (t *Tracker) emitStatus() {
	e := t.log.Info().
		Float64("progress", t.current).
		Float64("target", t.target)
	if t.target > 0 {
		e = e.Float64("progress_pct", t.current*100/t.target)
	}
	if perSecond, ok := t.throughputLocked(); ok && perSecond != 0 {
		e = e.Str("rate_h", humanfmt.Rate(perSecond))
	}
	if eta, ok := t.etaLocked(); ok {
		e = e.Int64("eta_ms", eta.Milliseconds()).
			Str("eta_h", humanfmt.Duration(eta))
	}
	e.Msg("progress")
}
