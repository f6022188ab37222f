package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/rankwatch/internal/career"
)

// AttemptResult selects the attempt-history write of Apply.
type AttemptResult int

const (
	// NoAttempt leaves promotion_attempts untouched.
	NoAttempt AttemptResult = iota
	// AttemptSucceeded records a success and resets fail_count.
	AttemptSucceeded
	// AttemptFailed records a failure and increments fail_count.
	AttemptFailed
)

// execQuerier is satisfied by *sql.DB and *sql.Tx.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetAttempt returns the attempt record of a pilot.
// The boolean is false when the pilot has no record.
func (s *Store) GetAttempt(ctx context.Context, pilotID int64) (career.AttemptRecord, bool, error) {
	return getAttempt(ctx, s.db, pilotID)
}

// ListAttempts returns every attempt record ordered by pilot ID.
// Returns an empty slice (not nil) when there are none.
func (s *Store) ListAttempts(ctx context.Context) ([]career.AttemptRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pilotId, last_attempt, last_success, fail_count
		FROM promotion_attempts
		ORDER BY pilotId ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	records := []career.AttemptRecord{}
	for rows.Next() {
		var (
			rec         career.AttemptRecord
			lastAttempt sql.NullString
			lastSuccess sql.NullInt64
			failCount   sql.NullInt64
		)
		if err := rows.Scan(&rec.PilotID, &lastAttempt, &lastSuccess, &failCount); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		fillAttempt(&rec, lastAttempt, lastSuccess, failCount)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return records, nil
}

// RecordSuccess upserts a successful attempt: last_success=1, fail_count=0.
func (s *Store) RecordSuccess(ctx context.Context, pilotID int64, date time.Time) error {
	if err := writeSuccess(ctx, s.db, pilotID, date); err != nil {
		return fmt.Errorf("record success: %w", err)
	}
	return nil
}

// RecordFailure upserts a failed attempt and returns the new fail count
// (previous + 1, or 1 when the pilot had no record).
func (s *Store) RecordFailure(ctx context.Context, pilotID int64, date time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("record failure: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	n, err := writeFailure(ctx, tx, pilotID, date)
	if err != nil {
		return 0, fmt.Errorf("record failure: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("record failure: commit: %w", err)
	}
	return n, nil
}

// PurgeOrphans deletes attempt records whose pilot no longer exists in the
// save and returns how many were removed.
func (s *Store) PurgeOrphans(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM promotion_attempts
		WHERE pilotId NOT IN (SELECT id FROM pilot)
	`)
	if err != nil {
		return 0, fmt.Errorf("purge orphan attempts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge orphan attempts: rows affected: %w", err)
	}
	return n, nil
}

func getAttempt(ctx context.Context, q execQuerier, pilotID int64) (career.AttemptRecord, bool, error) {
	var (
		lastAttempt sql.NullString
		lastSuccess sql.NullInt64
		failCount   sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `
		SELECT last_attempt, last_success, fail_count
		FROM promotion_attempts
		WHERE pilotId = ?
	`, pilotID).Scan(&lastAttempt, &lastSuccess, &failCount)
	if err == sql.ErrNoRows {
		return career.AttemptRecord{}, false, nil
	}
	if err != nil {
		return career.AttemptRecord{}, false, fmt.Errorf("get attempt %d: %w", pilotID, err)
	}

	rec := career.AttemptRecord{PilotID: pilotID}
	fillAttempt(&rec, lastAttempt, lastSuccess, failCount)
	return rec, true, nil
}

// fillAttempt converts nullable columns. An unparseable last_attempt leaves
// the zero time, which never falls inside a cooldown window.
func fillAttempt(rec *career.AttemptRecord, lastAttempt sql.NullString, lastSuccess, failCount sql.NullInt64) {
	if lastAttempt.Valid {
		if t, err := career.ParseDate(lastAttempt.String); err == nil {
			rec.LastAttempt = t
		}
	}
	rec.LastSuccess = lastSuccess.Valid && lastSuccess.Int64 != 0
	if failCount.Valid {
		rec.FailCount = int(failCount.Int64)
	}
}

func writeSuccess(ctx context.Context, q execQuerier, pilotID int64, date time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO promotion_attempts (pilotId, last_attempt, last_success, fail_count)
		VALUES (?, ?, 1, 0)
		ON CONFLICT(pilotId) DO UPDATE SET
			last_attempt = excluded.last_attempt,
			last_success = 1,
			fail_count   = 0
	`, pilotID, career.FormatDate(date))
	return err
}

// writeFailure must run inside a transaction: it reads the previous count
// and writes the incremented one.
func writeFailure(ctx context.Context, q execQuerier, pilotID int64, date time.Time) (int, error) {
	prev, _, err := getAttempt(ctx, q, pilotID)
	if err != nil {
		return 0, err
	}
	n := prev.FailCount + 1

	_, err = q.ExecContext(ctx, `
		INSERT INTO promotion_attempts (pilotId, last_attempt, last_success, fail_count)
		VALUES (?, ?, 0, ?)
		ON CONFLICT(pilotId) DO UPDATE SET
			last_attempt = excluded.last_attempt,
			last_success = 0,
			fail_count   = excluded.fail_count
	`, pilotID, career.FormatDate(date), n)
	if err != nil {
		return 0, err
	}
	return n, nil
}
