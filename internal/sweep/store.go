package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrel-data/sweepfeatures/internal/db"
)

func nsToTime(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

// SummaryRecord is one stored row of the sweep_summaries table.
type SummaryRecord struct {
	MotionSummary
	TotalPoints    int
	SharpCount     int
	LessSharpCount int
	FlatCount      int
	LessFlatCount  int
}

// Store persists per-sweep registration summaries to SQLite.
type Store struct {
	db *db.DB
}

// NewStore creates a Store over the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// SaveSummary inserts the motion summary and feature counts for one
// completed sweep.
func (s *Store) SaveSummary(ctx context.Context, summary MotionSummary, sw *Sweep, feats *Features) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sweep_summaries (
			sweep_id, start_time_ns, end_time_ns,
			start_roll, start_pitch, start_yaw,
			end_roll, end_pitch, end_yaw,
			shift_x, shift_y, shift_z,
			compensated, degraded_points, total_points,
			sharp_count, less_sharp_count, flat_count, less_flat_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.SweepID, summary.Start.UnixNano(), summary.End.UnixNano(),
		summary.StartRoll, summary.StartPitch, summary.StartYaw,
		summary.EndRoll, summary.EndPitch, summary.EndYaw,
		summary.Shift.X, summary.Shift.Y, summary.Shift.Z,
		summary.Compensated, summary.DegradedPoints, sw.Size(),
		len(feats.Sharp), len(feats.LessSharp), len(feats.Flat), len(feats.LessFlat),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sweep summary %s: %w", summary.SweepID, err)
	}
	return nil
}

// RecentSummaries returns up to limit summaries ordered newest first.
// The monitor's JSON endpoint serves these.
func (s *Store) RecentSummaries(ctx context.Context, limit int) ([]SummaryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sweep_id, start_time_ns, end_time_ns,
			start_roll, start_pitch, start_yaw,
			end_roll, end_pitch, end_yaw,
			shift_x, shift_y, shift_z,
			compensated, degraded_points, total_points,
			sharp_count, less_sharp_count, flat_count, less_flat_count
		FROM sweep_summaries
		ORDER BY start_time_ns DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sweep summaries: %w", err)
	}
	defer rows.Close()

	var records []SummaryRecord
	for rows.Next() {
		var r SummaryRecord
		var startNs, endNs int64
		if err := rows.Scan(
			&r.SweepID, &startNs, &endNs,
			&r.StartRoll, &r.StartPitch, &r.StartYaw,
			&r.EndRoll, &r.EndPitch, &r.EndYaw,
			&r.Shift.X, &r.Shift.Y, &r.Shift.Z,
			&r.Compensated, &r.DegradedPoints, &r.TotalPoints,
			&r.SharpCount, &r.LessSharpCount, &r.FlatCount, &r.LessFlatCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sweep summary: %w", err)
		}
		r.Start = nsToTime(startNs)
		r.End = nsToTime(endNs)
		records = append(records, r)
	}
	return records, rows.Err()
}
