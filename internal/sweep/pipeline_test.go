package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/kestrel-data/sweepfeatures/internal/config"
	"github.com/kestrel-data/sweepfeatures/internal/sweep/imu"
)

type capturePublisher struct {
	sweeps    []*Sweep
	feats     []*Features
	summaries []MotionSummary
}

func (c *capturePublisher) Publish(sw *Sweep, feats *Features, summary MotionSummary) error {
	c.sweeps = append(c.sweeps, sw)
	c.feats = append(c.feats, feats)
	c.summaries = append(c.summaries, summary)
	return nil
}

type captureStore struct {
	saved []MotionSummary
}

func (c *captureStore) SaveSummary(ctx context.Context, summary MotionSummary, sw *Sweep, feats *Features) error {
	c.saved = append(c.saved, summary)
	return nil
}

// drainPipeline runs the worker against an already-cancelled context,
// which processes everything queued and returns.
func drainPipeline(t *testing.T, p *Pipeline) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Run(ctx); err != context.Canceled {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
}

func newTestPipeline(t *testing.T, history *imu.History, pub Publisher, store SummaryStore) *Pipeline {
	t.Helper()
	p, err := NewPipeline(PipelineConfig{
		Params:    config.DefaultParams(),
		History:   history,
		Publisher: pub,
		Store:     store,
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

func fullRotation(stamp time.Time) []RawPoint {
	var points []RawPoint
	for az := 0.0; az < 360.0; az++ {
		p := ringPoint(0, az)
		p.Stamp = stamp
		points = append(points, p)
	}
	return points
}

func TestPipelineProcessesCompletedSweep(t *testing.T) {
	history, err := imu.NewHistory(32)
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}
	history.Push(imu.State{Stamp: testStart.Add(-time.Second)})
	history.Push(imu.State{Stamp: testStart.Add(time.Second)})

	pub := &capturePublisher{}
	store := &captureStore{}
	p := newTestPipeline(t, history, pub, store)

	p.AddPoints(fullRotation(testStart))
	p.AddPoints([]RawPoint{ringPoint(0, 0.5)}) // wraps, completing the sweep
	drainPipeline(t, p)

	if len(pub.sweeps) != 1 {
		t.Fatalf("published %d sweeps, want 1", len(pub.sweeps))
	}
	sw := pub.sweeps[0]
	if !sw.Compensated {
		t.Error("processed sweep not compensated")
	}
	if store.saved[0].SweepID != sw.ID {
		t.Errorf("stored summary for %s, published %s", store.saved[0].SweepID, sw.ID)
	}
	if pub.summaries[0].DegradedPoints != 0 {
		t.Errorf("%d degraded points inside buffered history span", pub.summaries[0].DegradedPoints)
	}
}

func TestPipelineInterpolatesAcrossInertialGaps(t *testing.T) {
	// Inertial samples every 5 ms around the sweep: every point time
	// falls between samples and must interpolate, not degrade.
	history, err := imu.NewHistory(256)
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}
	for ts := testStart.Add(-20 * time.Millisecond); ts.Before(testStart.Add(200 * time.Millisecond)); ts = ts.Add(5 * time.Millisecond) {
		if err := history.Push(imu.State{Stamp: ts, Yaw: float64(ts.UnixNano()%7) * 0.001}); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	pub := &capturePublisher{}
	p := newTestPipeline(t, history, pub, nil)

	p.AddPoints(fullRotation(testStart))
	p.AddPoints([]RawPoint{ringPoint(0, 0.25)})
	drainPipeline(t, p)

	if len(pub.summaries) != 1 {
		t.Fatalf("published %d sweeps, want 1", len(pub.summaries))
	}
	if got := pub.summaries[0].DegradedPoints; got != 0 {
		t.Fatalf("%d points degraded despite 5 ms inertial coverage", got)
	}
}

func TestPipelineDropsSweepsWhenWorkerBacklogged(t *testing.T) {
	history, err := imu.NewHistory(8)
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}
	history.Push(imu.State{Stamp: testStart})

	pub := &capturePublisher{}
	p := newTestPipeline(t, history, pub, nil)
	p.sweeps = make(chan *Sweep, 1) // force a tiny queue

	for i := 0; i < 3; i++ {
		p.AddPoints(fullRotation(testStart))
		p.Flush()
	}
	drainPipeline(t, p)

	if len(pub.sweeps) != 1 {
		t.Fatalf("worker processed %d sweeps, want 1 (rest dropped, never blocking)", len(pub.sweeps))
	}
}

func TestPipelineFlushDeliversPartialSweep(t *testing.T) {
	history, err := imu.NewHistory(8)
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}
	history.Push(imu.State{Stamp: testStart})

	pub := &capturePublisher{}
	p := newTestPipeline(t, history, pub, nil)

	p.AddPoints([]RawPoint{ringPoint(0, 10), ringPoint(0, 20)})
	p.Flush()
	drainPipeline(t, p)

	if len(pub.sweeps) != 1 {
		t.Fatalf("flushed partial sweep not delivered: %d sweeps", len(pub.sweeps))
	}
	if pub.sweeps[0].Size() != 2 {
		t.Fatalf("partial sweep has %d points, want 2", pub.sweeps[0].Size())
	}
}

func TestNewPipelineRequiresHistory(t *testing.T) {
	if _, err := NewPipeline(PipelineConfig{Params: config.DefaultParams()}); err == nil {
		t.Fatal("expected error without inertial history")
	}
}
