package roster

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rankwatch/internal/career"
	"github.com/roach88/rankwatch/internal/insignia"
	"github.com/roach88/rankwatch/internal/notify"
	"github.com/roach88/rankwatch/internal/policy"
	"github.com/roach88/rankwatch/internal/store"
	"github.com/roach88/rankwatch/internal/testutil"
)

const (
	rankBase    = "/ranks"
	resourceDir = "/res"
)

type fixture struct {
	store    *store.Store
	campaign *testutil.Campaign
	roller   *testutil.ScriptedRoller
	sink     *notify.Sink
	roster   *Roster
}

func newFixture(t *testing.T, rolls ...float64) *fixture {
	t.Helper()
	c := testutil.NewCampaign(t)
	s, err := store.Open(c.Path())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	f := &fixture{
		store:    s,
		campaign: c,
		roller:   testutil.NewScriptedRoller(rolls...),
		sink:     notify.NewSink(),
	}
	f.roster = New(Options{
		Policy:      policy.New(policy.DefaultThresholds, f.roller),
		Resolver:    insignia.Default(rankBase),
		Sink:        f.sink,
		IDs:         testutil.NewSequentialIDs("n"),
		Language:    "ENG",
		Locale:      "eng",
		ResourceDir: resourceDir,
	})
	return f
}

func (f *fixture) sweepContext(t *testing.T, missionID int64, date string, squadron int64) SweepContext {
	t.Helper()
	countries, err := f.store.SquadronCountries(context.Background())
	require.NoError(t, err)
	return SweepContext{
		SweepID:           "sweep-1",
		MissionID:         missionID,
		MissionDate:       date,
		Squadron:          squadron,
		HasSquadron:       squadron != 0,
		CampaignCountry:   career.Germany,
		SquadronCountries: countries,
	}
}

func (f *fixture) drain() []notify.Notification {
	var out []notify.Notification
	for {
		n, ok := f.sink.TryPop()
		if !ok {
			return out
		}
		out = append(out, n)
	}
}

func TestResolveCountry(t *testing.T) {
	countries := map[int64]career.Country{10: career.USSR, 20: career.UnitedStates}

	assert.Equal(t, career.USSR, ResolveCountry(career.Pilot{SquadronID: 10}, countries, career.Germany))
	assert.Equal(t, career.UnitedStates, ResolveCountry(career.Pilot{SquadronID: 20}, countries, career.Germany))
	assert.Equal(t, career.GreatBritain, ResolveCountry(career.Pilot{SquadronID: 99}, countries, career.GreatBritain))
	assert.Equal(t, career.Germany, ResolveCountry(career.Pilot{}, nil, career.Germany))
}

func TestFindActivePlayer(t *testing.T) {
	ctx := context.Background()

	t.Run("candidate flying the latest mission", func(t *testing.T) {
		f := newFixture(t)
		for _, id := range []int64{3, 5, 7} {
			f.campaign.AddPilot(testutil.PilotRow{ID: id, PersonageID: fmt.Sprintf("p%d", id), SquadronID: 10})
		}
		f.campaign.AddMission(1, "1941-07-01", 10)
		f.campaign.AddMission(2, "1941-07-02", 10)
		f.campaign.AddEvent(7, 1, "1941-07-01")
		f.campaign.AddEvent(5, 2, "1941-07-02")

		id, ok, err := FindActivePlayer(ctx, f.store, 10)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(5), id)
	})

	t.Run("highest id when nobody flew", func(t *testing.T) {
		f := newFixture(t)
		for _, id := range []int64{3, 7, 5} {
			f.campaign.AddPilot(testutil.PilotRow{ID: id, PersonageID: fmt.Sprintf("p%d", id), SquadronID: 10})
		}
		f.campaign.AddMission(1, "1941-07-01", 10)

		id, ok, err := FindActivePlayer(ctx, f.store, 10)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(7), id)
	})

	t.Run("highest id when the squadron has no mission", func(t *testing.T) {
		f := newFixture(t)
		f.campaign.AddPilot(testutil.PilotRow{ID: 2, PersonageID: "p2", SquadronID: 10})
		f.campaign.AddPilot(testutil.PilotRow{ID: 4, PersonageID: "p4", SquadronID: 10})

		id, ok, err := FindActivePlayer(ctx, f.store, 10)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(4), id)
	})

	t.Run("no candidates", func(t *testing.T) {
		f := newFixture(t)
		f.campaign.AddPilot(testutil.PilotRow{ID: 1, SquadronID: 10})
		f.campaign.AddPilot(testutil.PilotRow{ID: 2, PersonageID: "p2", SquadronID: 11})

		_, ok, err := FindActivePlayer(ctx, f.store, 10)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSweepAllPilots_PromotesAndNotifiesInOrder(t *testing.T) {
	f := newFixture(t, 0.1)
	c := f.campaign
	c.AddSquadron(10, 201003)
	c.AddSquadron(20, 101005)
	c.AddMission(1, "1941-07-01", 10)

	c.AddPilot(testutil.PilotRow{ID: 1, FirstName: "Hans", LastName: "Weber", Rank: 4, PCP: 250, SquadronID: 10})
	c.AddPilot(testutil.PilotRow{ID: 2, FirstName: "Ivan", LastName: "Petrov", Rank: 4, PCP: 300, SquadronID: 20})
	c.AddPilot(testutil.PilotRow{ID: 3, FirstName: "Erich", LastName: "Hahn", Rank: 4, PCP: 250, PersonageID: "p3", SquadronID: 10})
	c.AddPilot(testutil.PilotRow{ID: 4, FirstName: "Otto", Rank: 3, PCP: 900, SquadronID: 10})
	c.AddPilot(testutil.PilotRow{ID: 5, FirstName: "Kurt", Rank: 4, PCP: 10, SquadronID: 10})
	c.AddEvent(3, 1, "1941-07-01")

	report, err := f.roster.SweepAllPilots(context.Background(), f.store, f.sweepContext(t, 1, "1941-07-01", 10))
	require.NoError(t, err)

	assert.Equal(t, 5, c.Rank(1))
	assert.Equal(t, 5, c.Rank(2))
	assert.Equal(t, 5, c.Rank(3))
	assert.Equal(t, 3, c.Rank(4))
	assert.Equal(t, 4, c.Rank(5))
	assert.Equal(t, 1, f.roller.Calls())

	assert.True(t, report.HasPlayer)
	assert.Equal(t, int64(3), report.PlayerID)
	assert.Equal(t, 5, report.Evaluated)
	assert.Equal(t, 3, report.Promoted)
	assert.Equal(t, 2, report.Held)
	assert.Equal(t, 1, report.AttemptsWritten)
	assert.Equal(t, 2, report.Notifications)
	assert.Equal(t, 0, report.Errors)
	require.Len(t, report.Pilots, 4)
	assert.Equal(t, policy.ReasonAIMerit, report.Pilots[0].Reason)
	assert.False(t, report.Pilots[1].Notified, "AI outside the player's squadron is promoted silently")
	assert.Equal(t, policy.ReasonRollWon, report.Pilots[2].Reason)
	assert.Equal(t, policy.ReasonNoMerit, report.Pilots[3].Reason)

	got := f.drain()
	require.Len(t, got, 2)

	assert.Equal(t, notify.Notification{
		ID:      "n-1",
		SweepID: "sweep-1",
		Kind:    notify.KindAIPromotion,
		AI: &notify.AIPromotion{
			Name:           "Hans Weber",
			BeforeInsignia: filepath.Join(rankBase, "201", "small", "4.png"),
			AfterInsignia:  filepath.Join(rankBase, "201", "small", "5.png"),
			RankTitle:      "Feldwebel",
			Language:       "ENG",
		},
	}, got[0])

	assert.Equal(t, notify.Notification{
		ID:      "n-2",
		SweepID: "sweep-1",
		Kind:    notify.KindPlayerPromotion,
		Player: &notify.PlayerPromotion{
			Ceremony:    filepath.Join(resourceDir, "Ceremony_DE.png"),
			Insignia:    filepath.Join(rankBase, "201", "5.png"),
			RankTitle:   "Feldwebel",
			Language:    "ENG",
			Country:     career.Germany,
			FirstName:   "Erich",
			LastName:    "Hahn",
			OldRank:     4,
			NewRank:     5,
			MissionDate: "1941-07-01",
		},
	}, got[1])

	rec, ok, err := f.store.GetAttempt(context.Background(), 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, rec.LastSuccess)
	assert.Equal(t, 0, rec.FailCount)
}

func TestSweepAllPilots_PlayerRollLost(t *testing.T) {
	f := newFixture(t, 0.95)
	c := f.campaign
	c.AddSquadron(10, 201003)
	c.AddMission(1, "1941-07-01", 10)
	c.AddPilot(testutil.PilotRow{ID: 1, FirstName: "Erich", Rank: 4, PCP: 250, PersonageID: "p1", SquadronID: 10})

	report, err := f.roster.SweepAllPilots(context.Background(), f.store, f.sweepContext(t, 1, "1941-07-01", 10))
	require.NoError(t, err)

	assert.Equal(t, 4, c.Rank(1))
	assert.Empty(t, f.drain())
	assert.Equal(t, 1, report.AttemptsWritten)
	assert.Equal(t, 0, report.Promoted)
	require.Len(t, report.Pilots, 1)
	assert.Equal(t, policy.ReasonRollLost, report.Pilots[0].Reason)
	assert.Equal(t, "failure", report.Pilots[0].AttemptWrite)

	rec, ok, err := f.store.GetAttempt(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, rec.LastSuccess)
	assert.Equal(t, 1, rec.FailCount)
	assert.Equal(t, "1941-07-01", career.FormatDate(rec.LastAttempt))
}

func TestSweepAllPilots_PlayerCooldownThenForced(t *testing.T) {
	f := newFixture(t, 0.95)
	c := f.campaign
	c.AddSquadron(10, 201003)
	c.AddMission(1, "1941-07-01", 10)
	c.AddPilot(testutil.PilotRow{ID: 1, Rank: 4, PCP: 250, PersonageID: "p1", SquadronID: 10})
	c.Exec(`INSERT INTO promotion_attempts (pilotId, last_attempt, last_success, fail_count)
		VALUES (1, '1941-06-30', 0, 3)`)

	ctx := context.Background()
	report, err := f.roster.SweepAllPilots(ctx, f.store, f.sweepContext(t, 1, "1941-07-01", 10))
	require.NoError(t, err)
	require.Len(t, report.Pilots, 1)
	assert.Equal(t, policy.ReasonCooldown, report.Pilots[0].Reason)
	assert.Equal(t, 4, c.Rank(1))
	assert.Equal(t, 0, f.roller.Calls())

	c.AddMission(2, "1941-07-02", 10)
	report, err = f.roster.SweepAllPilots(ctx, f.store, f.sweepContext(t, 2, "1941-07-02", 10))
	require.NoError(t, err)
	require.Len(t, report.Pilots, 1)
	assert.Equal(t, policy.ReasonForced, report.Pilots[0].Reason)
	assert.Equal(t, 5, c.Rank(1))
	assert.Equal(t, 0, f.roller.Calls())

	rec, _, err := f.store.GetAttempt(ctx, 1)
	require.NoError(t, err)
	assert.True(t, rec.LastSuccess)
	assert.Equal(t, 0, rec.FailCount)
}

func TestSweepAllPilots_BirthCountryAndInsigniaYear(t *testing.T) {
	f := newFixture(t, 0.0)
	c := f.campaign
	c.AddSquadron(10, 201003)
	c.AddMission(1, "1943-05-02", 10)
	c.AddPilot(testutil.PilotRow{
		ID: 1, FirstName: "Lidia", LastName: "Litvyak", Rank: 4, PCP: 250,
		Description: "startSquadronInfo=10&birthCountryInfo=101", PersonageID: "p1", SquadronID: 10,
	})
	c.AddEvent(1, 1, "1943-05-02")

	_, err := f.roster.SweepAllPilots(context.Background(), f.store, f.sweepContext(t, 1, "1943-05-02", 10))
	require.NoError(t, err)

	got := f.drain()
	require.Len(t, got, 1)
	p := got[0].Player
	require.NotNil(t, p)
	assert.Equal(t, career.USSR, p.Country)
	assert.Equal(t, "Senior Sergeant", p.RankTitle)
	assert.Equal(t, filepath.Join(rankBase, "101_1943", "5.png"), p.Insignia)
	assert.Equal(t, filepath.Join(resourceDir, "Ceremony_RU.png"), p.Ceremony)
}

func TestSweepAllPilots_MissionWithoutSquadron(t *testing.T) {
	f := newFixture(t)
	c := f.campaign
	c.AddSquadron(10, 201003)
	c.AddMission(1, "1941-07-01", 0)
	c.AddPilot(testutil.PilotRow{ID: 1, Rank: 4, PCP: 250, PersonageID: "p1", SquadronID: 10})

	report, err := f.roster.SweepAllPilots(context.Background(), f.store, f.sweepContext(t, 1, "1941-07-01", 0))
	require.NoError(t, err)

	assert.False(t, report.HasPlayer)
	assert.Equal(t, 5, c.Rank(1), "without an active player every pilot is promoted as AI")
	assert.Equal(t, 0, f.roller.Calls())
	assert.Empty(t, f.drain())
	assert.Equal(t, 0, c.AttemptCount())
}

func TestSweepAllPilots_DryRun(t *testing.T) {
	f := newFixture(t, 0.1)
	c := f.campaign
	c.AddSquadron(10, 201003)
	c.AddMission(1, "1941-07-01", 10)
	c.AddPilot(testutil.PilotRow{ID: 1, Rank: 4, PCP: 250, SquadronID: 10})
	c.AddPilot(testutil.PilotRow{ID: 2, Rank: 4, PCP: 250, PersonageID: "p2", SquadronID: 10})

	sc := f.sweepContext(t, 1, "1941-07-01", 10)
	sc.DryRun = true
	report, err := f.roster.SweepAllPilots(context.Background(), f.store, sc)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Promoted)
	assert.Equal(t, 0, report.Notifications)
	assert.Equal(t, 4, c.Rank(1))
	assert.Equal(t, 4, c.Rank(2))
	assert.Equal(t, 0, c.AttemptCount())
	assert.Empty(t, f.drain())
}

func TestSweepAllPilots_ReportCarriesDecisions(t *testing.T) {
	f := newFixture(t, 0.95)
	c := f.campaign
	c.AddSquadron(10, 201003)
	c.AddMission(1, "1941-07-01", 10)
	c.AddPilot(testutil.PilotRow{ID: 1, FirstName: "Hans", Rank: 4, PCP: 250, SquadronID: 10})
	c.AddPilot(testutil.PilotRow{ID: 2, FirstName: "Erich", Rank: 4, PCP: 250, PersonageID: "p2", SquadronID: 10})
	c.AddPilot(testutil.PilotRow{ID: 3, FirstName: "Otto", Rank: 2, PCP: 900, SquadronID: 10})

	report, err := f.roster.SweepAllPilots(context.Background(), f.store, f.sweepContext(t, 1, "1941-07-01", 10))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Evaluated)
	assert.Equal(t, 1, report.Promoted)
	assert.Equal(t, 2, report.Held)
	require.Len(t, report.Pilots, 2, "pilots outside the promotion window are not listed")

	ai := report.Pilots[0]
	assert.Equal(t, int64(1), ai.PilotID)
	assert.Equal(t, "promote", ai.Outcome)
	assert.Equal(t, policy.ReasonAIMerit, ai.Reason)
	assert.Equal(t, 4, ai.OldRank)
	assert.Equal(t, 5, ai.NewRank)
	assert.Empty(t, ai.AttemptWrite)

	player := report.Pilots[1]
	assert.Equal(t, int64(2), player.PilotID)
	assert.True(t, player.IsPlayer)
	assert.Equal(t, "hold", player.Outcome)
	assert.Equal(t, policy.ReasonRollLost, player.Reason)
	assert.Equal(t, 4, player.NewRank)
	assert.Equal(t, "failure", player.AttemptWrite)
	assert.True(t, player.AttemptWritten)
}

type failingApply struct {
	*store.Store
	pilot int64
	err   error
}

func (f failingApply) Apply(ctx context.Context, req store.ApplyRequest) (store.ApplyResult, error) {
	if req.PilotID == f.pilot {
		return store.ApplyResult{}, f.err
	}
	return f.Store.Apply(ctx, req)
}

func TestSweepAllPilots_IsolatesPilotFailures(t *testing.T) {
	f := newFixture(t)
	c := f.campaign
	c.AddSquadron(10, 201003)
	c.AddMission(1, "1941-07-01", 10)
	c.AddPilot(testutil.PilotRow{ID: 1, FirstName: "Hans", Rank: 4, PCP: 250, SquadronID: 10})
	c.AddPilot(testutil.PilotRow{ID: 2, FirstName: "Karl", Rank: 4, PCP: 250, SquadronID: 10})

	busy := fmt.Errorf("apply pilot 1: %w", sqlite3.Error{Code: sqlite3.ErrBusy})
	campaign := failingApply{Store: f.store, pilot: 1, err: busy}

	report, err := f.roster.SweepAllPilots(context.Background(), campaign, f.sweepContext(t, 1, "1941-07-01", 10))
	require.NoError(t, err)

	assert.Equal(t, 4, c.Rank(1))
	assert.Equal(t, 5, c.Rank(2))
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 1, report.Unavailable)
	assert.Equal(t, 1, report.Promoted)
	require.Len(t, report.Pilots, 2)
	assert.NotEmpty(t, report.Pilots[0].Error)
	assert.Equal(t, 4, report.Pilots[0].NewRank)

	got := f.drain()
	require.Len(t, got, 1)
	assert.Equal(t, "Karl", got[0].AI.Name)
}

type staleRanks struct {
	*store.Store
	campaign *testutil.Campaign
}

// ListPilots returns the pilots, then lets the game bump pilot 1's rank.
func (s staleRanks) ListPilots(ctx context.Context) ([]career.Pilot, error) {
	pilots, err := s.Store.ListPilots(ctx)
	s.campaign.SetRank(1, 6)
	return pilots, err
}

func TestSweepAllPilots_RankChangedByGame(t *testing.T) {
	f := newFixture(t)
	c := f.campaign
	c.AddSquadron(10, 201003)
	c.AddMission(1, "1941-07-01", 10)
	c.AddPilot(testutil.PilotRow{ID: 1, Rank: 4, PCP: 250, SquadronID: 10})

	report, err := f.roster.SweepAllPilots(context.Background(), staleRanks{Store: f.store, campaign: c},
		f.sweepContext(t, 1, "1941-07-01", 10))
	require.NoError(t, err)

	assert.Equal(t, 6, c.Rank(1))
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 0, report.Unavailable)
	assert.Empty(t, f.drain())
}

type brokenPilots struct {
	*store.Store
}

func (brokenPilots) ListPilots(context.Context) ([]career.Pilot, error) {
	return nil, errors.New("disk I/O error")
}

func TestSweepAllPilots_FailsBeforeWriting(t *testing.T) {
	f := newFixture(t)
	c := f.campaign
	c.AddSquadron(10, 201003)
	c.AddMission(1, "1941-07-01", 10)

	report, err := f.roster.SweepAllPilots(context.Background(), brokenPilots{f.store}, f.sweepContext(t, 1, "1941-07-01", 10))
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Contains(t, err.Error(), "sweep mission 1")
	assert.Empty(t, f.drain())
}

func TestSweepAllPilots_BadMissionDate(t *testing.T) {
	f := newFixture(t)
	_, err := f.roster.SweepAllPilots(context.Background(), f.store, SweepContext{MissionID: 9, MissionDate: "July"})
	require.Error(t, err)
}
