package imu

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kestrel-data/sweepfeatures/internal/spatial"
)

// History is a fixed-capacity ring buffer of inertial states ordered by
// timestamp. The IMU goroutine pushes, the sweep worker reads through
// Snapshot; neither path ever blocks on the other beyond the short
// mutex hold.
type History struct {
	mu     sync.RWMutex
	states []State // fixed-size backing array
	head   int     // index of the oldest entry
	size   int
}

// NewHistory creates a History holding at most capacity states.
// Capacity must be >= 1.
func NewHistory(capacity int) (*History, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("invalid history capacity %d (expected >= 1)", capacity)
	}
	return &History{states: make([]State, capacity)}, nil
}

// Push appends a state, evicting the oldest entry at capacity. A state
// stamped before the newest buffered entry is rejected so the buffer
// never loses its time ordering.
func (h *History) Push(s State) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.size > 0 {
		newest := h.states[(h.head+h.size-1)%len(h.states)]
		if s.Stamp.Before(newest.Stamp) {
			return fmt.Errorf("out-of-order inertial state: %v precedes newest %v", s.Stamp, newest.Stamp)
		}
	}

	if h.size < len(h.states) {
		h.states[(h.head+h.size)%len(h.states)] = s
		h.size++
	} else {
		h.states[h.head] = s
		h.head = (h.head + 1) % len(h.states)
	}
	return nil
}

// Len returns the number of buffered states.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Newest returns the most recently pushed state.
func (h *History) Newest() (State, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.size == 0 {
		return State{}, false
	}
	return h.states[(h.head+h.size-1)%len(h.states)], true
}

// StateAt estimates the inertial state at time t. See Snapshot.StateAt
// for the interpolation contract.
func (h *History) StateAt(t time.Time) (State, bool) {
	return h.Snapshot().StateAt(t)
}

// Snapshot returns a consistent, ordered copy of the buffer. The sweep
// worker takes one snapshot per sweep so every point of the sweep is
// compensated against the same history.
func (h *History) Snapshot() *Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	states := make([]State, h.size)
	for i := 0; i < h.size; i++ {
		states[i] = h.states[(h.head+i)%len(h.states)]
	}
	return &Snapshot{states: states}
}

// Snapshot is an immutable, time-ordered copy of a History.
type Snapshot struct {
	states []State
}

// Len returns the number of states in the snapshot.
func (s *Snapshot) Len() int { return len(s.states) }

// StateAt estimates the inertial state at time t.
//
// Within the buffered span the two bracketing samples are linearly
// interpolated (orientation along the shortest arc per angle). Past the
// newest sample the position is extrapolated with the newest sample's
// velocity, which is the routine case for scan points arriving ahead of
// the slower inertial stream. Before the oldest sample, or with an
// empty buffer, the oldest (or zero) state is returned and degraded is
// true so downstream weighting can react.
func (s *Snapshot) StateAt(t time.Time) (state State, degraded bool) {
	n := len(s.states)
	if n == 0 {
		return State{Stamp: t}, true
	}

	oldest, newest := s.states[0], s.states[n-1]
	if t.Before(oldest.Stamp) {
		return oldest, true
	}
	if !t.Before(newest.Stamp) {
		dt := t.Sub(newest.Stamp).Seconds()
		out := newest
		out.Stamp = t
		out.Position = newest.Position.Add(newest.Velocity.Mul(dt))
		return out, false
	}

	// First index whose stamp is after t; the bracket is [hi-1, hi].
	hi := sort.Search(n, func(i int) bool { return s.states[i].Stamp.After(t) })
	lo := hi - 1
	a, b := s.states[lo], s.states[hi]

	span := b.Stamp.Sub(a.Stamp).Seconds()
	if span <= 0 {
		return b, false
	}
	f := t.Sub(a.Stamp).Seconds() / span

	out := State{
		Stamp:        t,
		Roll:         spatial.LerpAngle(a.Roll, b.Roll, f),
		Pitch:        spatial.LerpAngle(a.Pitch, b.Pitch, f),
		Yaw:          spatial.LerpAngle(a.Yaw, b.Yaw, f),
		Acceleration: a.Acceleration.Add(b.Acceleration.Sub(a.Acceleration).Mul(f)),
		Velocity:     a.Velocity.Add(b.Velocity.Sub(a.Velocity).Mul(f)),
		Position:     a.Position.Add(b.Position.Sub(a.Position).Mul(f)),
	}
	return out, false
}
