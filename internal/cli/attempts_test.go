package cli

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rankwatch/internal/store"
	"github.com/roach88/rankwatch/internal/testutil"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func attemptsCampaign(t *testing.T) *testutil.Campaign {
	t.Helper()
	c := testutil.NewCampaign(t)
	c.AddPilot(testutil.PilotRow{ID: 1, PersonageID: "p1", Rank: 4})

	st, err := store.Open(c.Path())
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	day := time.Date(1941, 7, 3, 0, 0, 0, 0, time.UTC)
	_, err = st.RecordFailure(ctx, 1, day)
	require.NoError(t, err)
	_, err = st.RecordFailure(ctx, 1, day)
	require.NoError(t, err)
	require.NoError(t, st.RecordSuccess(ctx, 7, day))
	return c
}

func TestAttemptsList(t *testing.T) {
	c := attemptsCampaign(t)

	out, _, err := execCLI(t, "attempts", "list", "--db", c.Path())
	require.NoError(t, err)
	assert.Contains(t, out, "PILOT")
	assert.Contains(t, out, "1941-07-03")

	out, _, err = execCLI(t, "--format", "json", "attempts", "list", "--db", c.Path())
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   AttemptsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []AttemptRow{
		{PilotID: 1, LastAttempt: "1941-07-03", LastSuccess: false, FailCount: 2},
		{PilotID: 7, LastAttempt: "1941-07-03", LastSuccess: true, FailCount: 0},
	}, resp.Data.Attempts)
}

func TestAttemptsList_Empty(t *testing.T) {
	c := testutil.NewCampaign(t)

	out, _, err := execCLI(t, "attempts", "list", "--db", c.Path())
	require.NoError(t, err)
	assert.Equal(t, "No promotion attempts recorded.\n", out)
}

func TestAttemptsPurge(t *testing.T) {
	c := attemptsCampaign(t)

	out, _, err := execCLI(t, "attempts", "purge", "--db", c.Path())
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 orphan attempt record(s).\n", out)
	assert.Equal(t, 1, c.AttemptCount())
}
