package imu

import (
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r3"
)

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func stateAt(offset time.Duration, pos r3.Vector) State {
	return State{Stamp: t0.Add(offset), Position: pos}
}

func TestHistoryRejectsBadCapacity(t *testing.T) {
	if _, err := NewHistory(0); err == nil {
		t.Fatal("NewHistory(0) should fail")
	}
}

func TestHistoryOrderingInvariant(t *testing.T) {
	h, err := NewHistory(8)
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := h.Push(stateAt(time.Duration(i)*10*time.Millisecond, r3.Vector{})); err != nil {
			t.Fatalf("Push %d: %v", i, err)
		}
	}

	// A state before the newest must be rejected and leave the buffer
	// unchanged.
	if err := h.Push(stateAt(25*time.Millisecond, r3.Vector{})); err == nil {
		t.Fatal("out-of-order Push accepted")
	}
	if h.Len() != 5 {
		t.Fatalf("buffer changed by rejected push: len = %d, want 5", h.Len())
	}

	snap := h.Snapshot()
	prev := time.Time{}
	for i := 0; i < snap.Len(); i++ {
		s, _ := snap.StateAt(t0.Add(time.Duration(i) * 10 * time.Millisecond))
		if s.Stamp.Before(prev) {
			t.Fatalf("timestamps not non-decreasing at %d", i)
		}
		prev = s.Stamp
	}
}

func TestHistoryEviction(t *testing.T) {
	h, _ := NewHistory(3)
	for i := 0; i < 5; i++ {
		if err := h.Push(stateAt(time.Duration(i)*time.Second, r3.Vector{X: float64(i)})); err != nil {
			t.Fatalf("Push %d: %v", i, err)
		}
	}
	if h.Len() != 3 {
		t.Fatalf("len = %d, want capacity 3", h.Len())
	}

	// Oldest surviving entry is i=2; querying before it is degraded and
	// clamps to it.
	s, degraded := h.StateAt(t0)
	if !degraded {
		t.Error("query before oldest should be degraded")
	}
	if s.Position.X != 2 {
		t.Errorf("clamped state = %v, want oldest surviving (X=2)", s.Position)
	}
}

func TestStateAtExactStamp(t *testing.T) {
	h, _ := NewHistory(8)
	states := []State{
		{Stamp: t0, Roll: 0.1, Pitch: 0.2, Yaw: 0.3, Position: r3.Vector{X: 1}},
		{Stamp: t0.Add(40 * time.Millisecond), Roll: 0.4, Pitch: 0.5, Yaw: 0.6, Position: r3.Vector{X: 2}},
		{Stamp: t0.Add(80 * time.Millisecond), Roll: 0.7, Pitch: 0.8, Yaw: 0.9, Position: r3.Vector{X: 3}},
	}
	for _, s := range states {
		if err := h.Push(s); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	for _, want := range states {
		got, degraded := h.StateAt(want.Stamp)
		if degraded {
			t.Errorf("exact stamp %v reported degraded", want.Stamp)
		}
		if got.Roll != want.Roll || got.Pitch != want.Pitch || got.Yaw != want.Yaw || got.Position != want.Position {
			t.Errorf("StateAt(%v) = %+v, want exact %+v", want.Stamp, got, want)
		}
	}
}

func TestStateAtInterpolates(t *testing.T) {
	h, _ := NewHistory(8)
	h.Push(State{Stamp: t0, Yaw: 0, Position: r3.Vector{}})
	h.Push(State{Stamp: t0.Add(100 * time.Millisecond), Yaw: 1, Position: r3.Vector{X: 10}})

	got, degraded := h.StateAt(t0.Add(50 * time.Millisecond))
	if degraded {
		t.Error("mid-span query reported degraded")
	}
	if math.Abs(got.Yaw-0.5) > 1e-12 {
		t.Errorf("interpolated yaw = %g, want 0.5", got.Yaw)
	}
	if math.Abs(got.Position.X-5) > 1e-12 {
		t.Errorf("interpolated position X = %g, want 5", got.Position.X)
	}
}

func TestStateAtExtrapolatesWithVelocity(t *testing.T) {
	h, _ := NewHistory(8)
	h.Push(State{Stamp: t0, Position: r3.Vector{}, Velocity: r3.Vector{X: 2}})

	got, degraded := h.StateAt(t0.Add(500 * time.Millisecond))
	if degraded {
		t.Error("forward extrapolation is the designed fallback, not degraded")
	}
	if math.Abs(got.Position.X-1) > 1e-12 {
		t.Errorf("extrapolated position X = %g, want 1 (2 m/s for 0.5 s)", got.Position.X)
	}
}

func TestStateAtEmptyBufferDegraded(t *testing.T) {
	h, _ := NewHistory(4)
	s, degraded := h.StateAt(t0)
	if !degraded {
		t.Error("empty buffer query should be degraded")
	}
	if s.Position != (r3.Vector{}) || s.Velocity != (r3.Vector{}) {
		t.Errorf("empty buffer should yield zero state, got %+v", s)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	h, _ := NewHistory(4)
	h.Push(stateAt(0, r3.Vector{X: 1}))
	snap := h.Snapshot()

	// Later pushes must not show up in an existing snapshot.
	h.Push(stateAt(time.Second, r3.Vector{X: 99}))
	if snap.Len() != 1 {
		t.Fatalf("snapshot grew after later push: len = %d", snap.Len())
	}
}
