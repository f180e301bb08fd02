package monitor

import (
	"sync"

	"github.com/kestrel-data/sweepfeatures/internal/sweep"
)

// LatestSweep retains the most recently processed sweep for the debug
// endpoints. It implements sweep.Publisher so it can sit in the
// pipeline's publisher fan-out.
type LatestSweep struct {
	mu      sync.RWMutex
	sweep   *sweep.Sweep
	feats   *sweep.Features
	summary sweep.MotionSummary
}

// Publish records the sweep as the latest one.
func (l *LatestSweep) Publish(sw *sweep.Sweep, feats *sweep.Features, summary sweep.MotionSummary) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep, l.feats, l.summary = sw, feats, summary
	return nil
}

// Get returns the latest sweep, or ok=false before the first one.
func (l *LatestSweep) Get() (sw *sweep.Sweep, feats *sweep.Features, summary sweep.MotionSummary, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.sweep == nil {
		return nil, nil, sweep.MotionSummary{}, false
	}
	return l.sweep, l.feats, l.summary, true
}
