package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rankwatch/internal/testutil"
)

func TestApply_PromotesAndRecordsSuccess(t *testing.T) {
	s, c := createTestStore(t)
	ctx := context.Background()
	c.AddPilot(testutil.PilotRow{ID: 1, Rank: 5, PersonageID: "p"})
	_, err := s.RecordFailure(ctx, 1, date("1942-01-01"))
	require.NoError(t, err)

	res, err := s.Apply(ctx, ApplyRequest{
		PilotID: 1, FromRank: 5, ToRank: 6, Attempt: AttemptSucceeded, Date: date("1942-01-09"),
	})
	require.NoError(t, err)
	assert.True(t, res.RankWritten)
	assert.True(t, res.AttemptWritten)
	assert.Equal(t, 6, c.Rank(1))

	rec, ok, err := s.GetAttempt(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, rec.LastSuccess)
	assert.Equal(t, 0, rec.FailCount)
}

func TestApply_FailureOnly(t *testing.T) {
	s, c := createTestStore(t)
	ctx := context.Background()
	c.AddPilot(testutil.PilotRow{ID: 1, Rank: 5})

	res, err := s.Apply(ctx, ApplyRequest{
		PilotID: 1, FromRank: 5, ToRank: 5, Attempt: AttemptFailed, Date: date("1942-01-09"),
	})
	require.NoError(t, err)
	assert.False(t, res.RankWritten)
	assert.Equal(t, 1, res.FailCount)
	assert.Equal(t, 5, c.Rank(1))
}

func TestApply_AIPromotionWritesNoAttempt(t *testing.T) {
	s, c := createTestStore(t)
	c.AddPilot(testutil.PilotRow{ID: 1, Rank: 4})

	res, err := s.Apply(context.Background(), ApplyRequest{PilotID: 1, FromRank: 4, ToRank: 5})
	require.NoError(t, err)
	assert.True(t, res.RankWritten)
	assert.False(t, res.AttemptWritten)
	assert.Equal(t, 0, c.AttemptCount())
}

func TestApply_Noop(t *testing.T) {
	s, c := createTestStore(t)
	c.AddPilot(testutil.PilotRow{ID: 1, Rank: 4})

	res, err := s.Apply(context.Background(), ApplyRequest{PilotID: 1, FromRank: 4, ToRank: 4})
	require.NoError(t, err)
	assert.Equal(t, ApplyResult{}, res)
	assert.Equal(t, 0, c.AttemptCount())
}

func TestApply_RejectsNonSingleStep(t *testing.T) {
	s, c := createTestStore(t)
	c.AddPilot(testutil.PilotRow{ID: 1, Rank: 5})

	_, err := s.Apply(context.Background(), ApplyRequest{PilotID: 1, FromRank: 5, ToRank: 7})
	assert.Error(t, err)
	_, err = s.Apply(context.Background(), ApplyRequest{PilotID: 1, FromRank: 5, ToRank: 4})
	assert.Error(t, err)
	assert.Equal(t, 5, c.Rank(1))
}

func TestApply_RankChangedRollsBack(t *testing.T) {
	s, c := createTestStore(t)
	c.AddPilot(testutil.PilotRow{ID: 1, Rank: 6})

	_, err := s.Apply(context.Background(), ApplyRequest{
		PilotID: 1, FromRank: 5, ToRank: 6, Attempt: AttemptSucceeded, Date: date("1942-01-01"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRankChanged))
	assert.Equal(t, 6, c.Rank(1))
	assert.Equal(t, 0, c.AttemptCount(), "attempt write rolled back with the rank")
}

func TestApply_TextRank(t *testing.T) {
	s, c := createTestStore(t)
	c.AddPilot(testutil.PilotRow{ID: 1, Rank: "5"})

	_, err := s.Apply(context.Background(), ApplyRequest{PilotID: 1, FromRank: 5, ToRank: 6})
	require.NoError(t, err)
	assert.Equal(t, 6, c.Rank(1))
}
