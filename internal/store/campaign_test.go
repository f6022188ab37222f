package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rankwatch/internal/career"
	"github.com/roach88/rankwatch/internal/testutil"
)

func TestSquadronCountries(t *testing.T) {
	s, c := createTestStore(t)
	c.AddSquadron(1, 201003)
	c.AddSquadron(2, 101017)
	c.Exec(`INSERT INTO squadron (id, configID) VALUES (3, NULL)`)

	got, err := s.SquadronCountries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[int64]career.Country{1: career.Germany, 2: career.USSR}, got)
}

func TestListPilots(t *testing.T) {
	s, c := createTestStore(t)
	c.AddPilot(testutil.PilotRow{
		ID: 2, FirstName: "Hans", LastName: "Weber", Rank: 5, PCP: 120.5, Sorties: 30, GoodSorties: 28,
		Description: "birthCountryInfo=201", PersonageID: "p-1", SquadronID: 10,
	})
	c.AddPilot(testutil.PilotRow{ID: 1, FirstName: "Karl", Rank: 4, SquadronID: 11})

	pilots, err := s.ListPilots(context.Background())
	require.NoError(t, err)
	require.Len(t, pilots, 2)

	assert.Equal(t, int64(1), pilots[0].ID)
	assert.Equal(t, career.Pilot{
		ID: 2, FirstName: "Hans", LastName: "Weber", Rank: 5, PCP: 120.5, Sorties: 30, GoodSorties: 28,
		Description: "birthCountryInfo=201", PersonageID: "p-1", SquadronID: 10,
	}, pilots[1])
}

func TestListPilots_MalformedFields(t *testing.T) {
	s, c := createTestStore(t)
	c.AddPilot(testutil.PilotRow{ID: 1, Rank: "abc", PCP: "n/a", Sorties: "12", GoodSorties: 10})
	c.Exec(`UPDATE pilot SET name = NULL, personageId = NULL, squadronId = NULL WHERE id = 1`)

	pilots, err := s.ListPilots(context.Background())
	require.NoError(t, err)
	require.Len(t, pilots, 1)

	p := pilots[0]
	assert.Equal(t, 0, p.Rank)
	assert.Equal(t, 0.0, p.PCP)
	assert.Equal(t, 12, p.Sorties)
	assert.Equal(t, []string{"rankId", "pcp"}, p.Malformed)
	assert.Equal(t, "", p.FirstName)
	assert.False(t, p.IsPersonage())
}

func TestMissionsAfter_Ascending(t *testing.T) {
	s, c := createTestStore(t)
	c.AddMission(3, "1942-01-03", 10)
	c.AddMission(1, "1942-01-01", 10)
	c.AddMission(2, "1942.01.02", 0)

	missions, err := s.MissionsAfter(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, missions, 2)
	assert.Equal(t, career.Mission{ID: 2, Date: "1942.01.02"}, missions[0])
	assert.Equal(t, career.Mission{ID: 3, Date: "1942-01-03", SquadronID: 10, HasSquadron: true}, missions[1])

	missions, err = s.MissionsAfter(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, missions)
}

func TestLatestMission(t *testing.T) {
	s, c := createTestStore(t)
	ctx := context.Background()

	_, ok, err := s.LatestMission(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	c.AddMission(1, "1942-01-01", 10)
	c.AddMission(2, "1942-01-02", 11)

	m, ok, err := s.LatestMission(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), m.ID)

	m, ok, err = s.LatestSquadronMission(ctx, 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), m.ID)

	_, ok, err = s.LatestSquadronMission(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPlayerCandidatesAndEvents(t *testing.T) {
	s, c := createTestStore(t)
	ctx := context.Background()
	c.AddPilot(testutil.PilotRow{ID: 1, PersonageID: "a", SquadronID: 10})
	c.AddPilot(testutil.PilotRow{ID: 2, SquadronID: 10})
	c.AddPilot(testutil.PilotRow{ID: 3, PersonageID: "b", SquadronID: 10})
	c.AddPilot(testutil.PilotRow{ID: 4, PersonageID: "c", SquadronID: 11})
	c.AddEvent(1, 7, "1942-03-01")

	ids, err := s.PlayerCandidates(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids)

	ok, err := s.HasEvent(ctx, 1, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.HasEvent(ctx, 3, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLatestEventYear(t *testing.T) {
	s, c := createTestStore(t)
	ctx := context.Background()
	c.AddEvent(1, 1, "1942-11-02")
	c.AddEvent(1, 2, "1943-02-10")
	c.AddEvent(2, 1, "??")

	year, err := s.LatestEventYear(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1943, year)

	year, err = s.LatestEventYear(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, DefaultEventYear, year)

	year, err = s.LatestEventYear(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, DefaultEventYear, year)
}

func TestLatestEvent(t *testing.T) {
	s, c := createTestStore(t)
	ctx := context.Background()
	c.AddEvent(1, 4, "1942-11-02")
	c.AddEvent(1, 9, "1943-02-10")
	c.AddEvent(1, 6, "1942-12-24")

	e, ok, err := s.LatestEvent(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, career.Event{PilotID: 1, MissionID: 9, Date: "1943-02-10"}, e)

	_, ok, err = s.LatestEvent(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCampaignCountry(t *testing.T) {
	s, c := createTestStore(t)
	ctx := context.Background()
	c.AddPilot(testutil.PilotRow{ID: 1, PersonageID: "p", Description: "startSquadronInfo=12&birthCountryInfo=101"})
	c.AddPilot(testutil.PilotRow{ID: 2, PersonageID: "p", Description: "startSquadronInfo=1&birthCountryInfo=103"})
	c.AddPilot(testutil.PilotRow{ID: 3, Description: "startSquadronInfo=5&birthCountryInfo=102"})
	c.AddPilot(testutil.PilotRow{ID: 4, PersonageID: "p", Description: "startSquadronInfo=6&birthCountryInfo=x"})

	got, err := s.CampaignCountry(ctx, 12, career.Germany)
	require.NoError(t, err)
	assert.Equal(t, career.USSR, got)

	got, err = s.CampaignCountry(ctx, 1, career.Germany)
	require.NoError(t, err)
	assert.Equal(t, career.UnitedStates, got, "prefix of 12 must not match")

	got, err = s.CampaignCountry(ctx, 5, career.Germany)
	require.NoError(t, err)
	assert.Equal(t, career.Germany, got, "AI pilot descriptions are ignored")

	got, err = s.CampaignCountry(ctx, 6, career.Germany)
	require.NoError(t, err)
	assert.Equal(t, career.Germany, got)
}
