package store

import (
	"context"
	"fmt"
	"time"
)

// ApplyRequest is the persisted result of one promotion decision.
type ApplyRequest struct {
	PilotID  int64
	FromRank int
	// ToRank is FromRank (no promotion) or FromRank+1.
	ToRank  int
	Attempt AttemptResult
	Date    time.Time
}

// ApplyResult reports what Apply wrote.
type ApplyResult struct {
	RankWritten    bool
	AttemptWritten bool
	// FailCount is the stored fail count after an AttemptFailed write.
	FailCount int
}

// Apply writes a decision in a single transaction: the pilot's rank (only if
// it still equals FromRank) and the attempt record.
//
// Ranks only move up by one; any other ToRank is rejected. If the game
// changed the rank since it was read, nothing is written and the error wraps
// ErrRankChanged.
func (s *Store) Apply(ctx context.Context, req ApplyRequest) (ApplyResult, error) {
	var result ApplyResult

	if req.ToRank != req.FromRank && req.ToRank != req.FromRank+1 {
		return result, fmt.Errorf("apply pilot %d: rank %d -> %d is not a single-step promotion",
			req.PilotID, req.FromRank, req.ToRank)
	}
	if req.ToRank == req.FromRank && req.Attempt == NoAttempt {
		return result, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("apply pilot %d: begin tx: %w", req.PilotID, err)
	}
	defer tx.Rollback() // No-op if committed

	if req.ToRank != req.FromRank {
		res, err := tx.ExecContext(ctx,
			`UPDATE pilot SET rankId = ? WHERE id = ? AND CAST(rankId AS INTEGER) = ?`,
			req.ToRank, req.PilotID, req.FromRank,
		)
		if err != nil {
			return result, fmt.Errorf("apply pilot %d: update rank: %w", req.PilotID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return result, fmt.Errorf("apply pilot %d: rows affected: %w", req.PilotID, err)
		}
		if n == 0 {
			return result, fmt.Errorf("apply pilot %d: %w", req.PilotID, ErrRankChanged)
		}
		result.RankWritten = true
	}

	switch req.Attempt {
	case AttemptSucceeded:
		if err := writeSuccess(ctx, tx, req.PilotID, req.Date); err != nil {
			return ApplyResult{}, fmt.Errorf("apply pilot %d: record success: %w", req.PilotID, err)
		}
		result.AttemptWritten = true
	case AttemptFailed:
		n, err := writeFailure(ctx, tx, req.PilotID, req.Date)
		if err != nil {
			return ApplyResult{}, fmt.Errorf("apply pilot %d: record failure: %w", req.PilotID, err)
		}
		result.AttemptWritten = true
		result.FailCount = n
	}

	if err := tx.Commit(); err != nil {
		return ApplyResult{}, fmt.Errorf("apply pilot %d: commit: %w", req.PilotID, err)
	}
	return result, nil
}
