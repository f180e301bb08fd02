// Package db wraps the embedded SQLite database that stores per-sweep
// registration summaries.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// NewDB opens (creating if necessary) the SQLite database at path and
// ensures the schema exists. Use ":memory:" for tests.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = sqlDB.Exec(`
		CREATE TABLE IF NOT EXISTS sweep_summaries (
			sweep_id          TEXT PRIMARY KEY,
			start_time_ns     BIGINT,
			end_time_ns       BIGINT,
			start_roll        DOUBLE,
			start_pitch       DOUBLE,
			start_yaw         DOUBLE,
			end_roll          DOUBLE,
			end_pitch         DOUBLE,
			end_yaw           DOUBLE,
			shift_x           DOUBLE,
			shift_y           DOUBLE,
			shift_z           DOUBLE,
			compensated       BOOLEAN,
			degraded_points   BIGINT,
			total_points      BIGINT,
			sharp_count       BIGINT,
			less_sharp_count  BIGINT,
			flat_count        BIGINT,
			less_flat_count   BIGINT,
			created_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_sweep_summaries_start
			ON sweep_summaries(start_time_ns);
	`)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{sqlDB}, nil
}
