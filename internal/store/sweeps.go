package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SweepMark records a completed, written sweep of one mission.
type SweepMark struct {
	MissionID int64
	Date      string
	SweepID   string
	SweptAt   time.Time
}

// Covers reports whether a mission is already settled by the mark: it is
// the marked mission or an earlier one, or it does not move the campaign
// date past the marked sweep.
func (m SweepMark) Covers(missionID int64, date string) bool {
	return missionID <= m.MissionID || date == m.Date
}

// LastSweep returns the mark of the latest swept mission.
// The boolean is false when no sweep has been recorded.
func (s *Store) LastSweep(ctx context.Context) (SweepMark, bool, error) {
	var (
		m       SweepMark
		sweptAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT missionId, date, sweepId, swept_at
		FROM promotion_sweeps
		ORDER BY missionId DESC
		LIMIT 1
	`).Scan(&m.MissionID, &m.Date, &m.SweepID, &sweptAt)
	if err == sql.ErrNoRows {
		return SweepMark{}, false, nil
	}
	if err != nil {
		return SweepMark{}, false, fmt.Errorf("last sweep: %w", err)
	}
	// An unreadable timestamp leaves SweptAt zero; the mission ID is what
	// guards against repeats.
	m.SweptAt, _ = time.Parse(time.RFC3339, sweptAt)
	return m, true, nil
}

// RecordSweep marks a mission as swept. Recording the same mission again
// replaces its mark.
func (s *Store) RecordSweep(ctx context.Context, m SweepMark) error {
	if m.SweptAt.IsZero() {
		m.SweptAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO promotion_sweeps (missionId, date, sweepId, swept_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(missionId) DO UPDATE SET
			date = excluded.date,
			sweepId = excluded.sweepId,
			swept_at = excluded.swept_at
	`, m.MissionID, m.Date, m.SweepID, m.SweptAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record sweep of mission %d: %w", m.MissionID, err)
	}
	return nil
}
