package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/golang/geo/r3"

	"github.com/kestrel-data/sweepfeatures/internal/db"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.NewDB(":memory:")
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func sampleSummary(id string, start time.Time) MotionSummary {
	return MotionSummary{
		SweepID:        id,
		Start:          start,
		End:            start.Add(100 * time.Millisecond),
		StartYaw:       0.1,
		EndYaw:         0.3,
		Shift:          r3.Vector{X: 0.5, Y: -0.2},
		Compensated:    true,
		DegradedPoints: 7,
	}
}

func TestStoreSaveAndQuerySummaries(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	sw := &Sweep{ID: "sweep-a", Start: testStart}
	sw.Rings[0] = make([]ScanPoint, 250)
	feats := &Features{
		Sharp:     make([]ScanPoint, 3),
		LessSharp: make([]ScanPoint, 12),
		Flat:      make([]ScanPoint, 8),
		LessFlat:  make([]ScanPoint, 40),
	}

	if err := store.SaveSummary(ctx, sampleSummary("sweep-a", testStart), sw, feats); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}

	records, err := store.RecentSummaries(ctx, 10)
	if err != nil {
		t.Fatalf("RecentSummaries: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	r := records[0]
	if r.SweepID != "sweep-a" {
		t.Errorf("sweep_id = %q", r.SweepID)
	}
	if !r.Start.Equal(testStart) {
		t.Errorf("start = %v, want %v", r.Start, testStart)
	}
	if !r.Compensated || r.DegradedPoints != 7 {
		t.Errorf("compensated/degraded = %t/%d, want true/7", r.Compensated, r.DegradedPoints)
	}
	if r.TotalPoints != 250 {
		t.Errorf("total_points = %d, want 250", r.TotalPoints)
	}
	if r.SharpCount != 3 || r.LessSharpCount != 12 || r.FlatCount != 8 || r.LessFlatCount != 40 {
		t.Errorf("feature counts = %d/%d/%d/%d", r.SharpCount, r.LessSharpCount, r.FlatCount, r.LessFlatCount)
	}
	if r.Shift.X != 0.5 || r.Shift.Y != -0.2 {
		t.Errorf("shift = %v", r.Shift)
	}
}

func TestStoreRecentSummariesOrderAndLimit(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	sw := &Sweep{}
	feats := &Features{}

	for i := 0; i < 3; i++ {
		id := string(rune('a' + i))
		start := testStart.Add(time.Duration(i) * time.Second)
		if err := store.SaveSummary(ctx, sampleSummary(id, start), sw, feats); err != nil {
			t.Fatalf("SaveSummary %s: %v", id, err)
		}
	}

	records, err := store.RecentSummaries(ctx, 2)
	if err != nil {
		t.Fatalf("RecentSummaries: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].SweepID != "c" || records[1].SweepID != "b" {
		t.Errorf("order = %s, %s; want c, b (newest first)", records[0].SweepID, records[1].SweepID)
	}
}

func TestStoreRejectsDuplicateSweepID(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	sw := &Sweep{}
	feats := &Features{}

	if err := store.SaveSummary(ctx, sampleSummary("dup", testStart), sw, feats); err != nil {
		t.Fatalf("first SaveSummary: %v", err)
	}
	if err := store.SaveSummary(ctx, sampleSummary("dup", testStart), sw, feats); err == nil {
		t.Fatal("expected primary key violation on duplicate sweep id")
	}
}
