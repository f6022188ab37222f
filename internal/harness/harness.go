package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/roach88/rankwatch/internal/career"
	"github.com/roach88/rankwatch/internal/insignia"
	"github.com/roach88/rankwatch/internal/notify"
	"github.com/roach88/rankwatch/internal/policy"
	"github.com/roach88/rankwatch/internal/roster"
	"github.com/roach88/rankwatch/internal/store"
	"github.com/roach88/rankwatch/internal/testutil"
	"github.com/roach88/rankwatch/internal/watcher"
)

// Paths baked into notifications. They are never read.
const (
	insigniaBase = "ranks"
	resourceDir  = "resources"
)

// Harness drives one scenario.
type Harness struct {
	campaign *testutil.Campaign
	watcher  *watcher.Watcher
	sink     *notify.Sink
	logger   *slog.Logger
}

// Run executes a scenario against a fresh campaign save in tb's temp dir.
//
// Execution flow:
//  1. Build the save from the scenario's campaign section
//  2. Prime a watcher on it, as when the game starts
//  3. For each step, apply the game's changes and poll once
//  4. Read back final ranks and attempt records
//  5. Evaluate assertions
//
// Poll errors are recorded in the trace and fail the result; an error is
// returned only when the scenario cannot be set up.
func Run(tb testing.TB, scenario *Scenario) (*Result, error) {
	tb.Helper()
	ctx := context.Background()

	cfg, err := scenario.PromotionConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config: %w", err)
	}

	h := &Harness{
		campaign: testutil.NewCampaign(tb),
		sink:     notify.NewSink(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if err := h.seed(ctx, scenario.Campaign); err != nil {
		return nil, fmt.Errorf("failed to build campaign: %w", err)
	}

	r := roster.New(roster.Options{
		Policy:      policy.New(cfg.Thresholds, testutil.NewScriptedRoller(scenario.Rolls...), cfg.PolicyOptions()...),
		Ceilings:    cfg.Ceilings,
		Resolver:    insignia.Default(insigniaBase),
		Sink:        h.sink,
		IDs:         testutil.NewSequentialIDs("n"),
		Language:    cfg.Language,
		Locale:      cfg.Locale(),
		ResourceDir: resourceDir,
		Logger:      h.logger,
	})
	h.watcher = watcher.New(watcher.Options{
		DBPath:          h.campaign.Path(),
		FallbackCountry: cfg.FallbackCountry,
		Roster:          r,
		IDs:             testutil.NewSequentialIDs("sweep"),
		Logger:          h.logger,
	})
	if err := h.watcher.Prime(ctx); err != nil {
		return nil, fmt.Errorf("failed to prime watcher: %w", err)
	}

	result := NewResult()
	for _, step := range scenario.Steps {
		h.apply(step)
		h.poll(ctx, result)
	}

	if err := h.snapshot(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to read final state: %w", err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// seed writes the initial save. Attempt records go through the store so
// the table is created the way the watcher creates it.
func (h *Harness) seed(ctx context.Context, setup CampaignSetup) error {
	c := h.campaign
	for _, sq := range setup.Squadrons {
		c.AddSquadron(sq.ID, sq.ConfigID)
	}
	for _, p := range setup.Pilots {
		c.AddPilot(testutil.PilotRow{
			ID:          p.ID,
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			Rank:        p.Rank,
			PCP:         p.PCP,
			Sorties:     p.Sorties,
			GoodSorties: p.GoodSorties,
			Description: p.description(),
			PersonageID: p.personage(),
			SquadronID:  p.Squadron,
		})
	}
	for _, m := range setup.Missions {
		c.AddMission(m.ID, m.Date, m.Squadron)
	}
	for _, e := range setup.Events {
		c.AddEvent(e.Pilot, e.Mission, e.Date)
	}
	if len(setup.Attempts) == 0 {
		return nil
	}

	st, err := store.Open(c.Path())
	if err != nil {
		return err
	}
	defer st.Close()
	for _, a := range setup.Attempts {
		date, err := career.ParseDate(a.LastAttempt)
		if err != nil {
			return err
		}
		_, err = st.DB().ExecContext(ctx, `
			INSERT INTO promotion_attempts (pilotId, last_attempt, last_success, fail_count)
			VALUES (?, ?, ?, ?)
		`, a.Pilot, career.FormatDate(date), a.LastSuccess, a.FailCount)
		if err != nil {
			return fmt.Errorf("seed attempt of pilot %d: %w", a.Pilot, err)
		}
	}
	return nil
}

// apply makes the game's changes for one step.
func (h *Harness) apply(step Step) {
	c := h.campaign
	for _, r := range step.SetRanks {
		c.SetRank(r.Pilot, r.Rank)
	}
	for _, id := range step.DeletePilots {
		c.DeletePilot(id)
	}
	if m := step.Mission; m != nil {
		c.AddMission(m.ID, m.Date, m.Squadron)
		for _, pilot := range step.Flown {
			c.AddEvent(pilot, m.ID, m.Date)
		}
	}
}

// poll runs one watcher cycle and traces it, followed by the notifications
// it queued.
func (h *Harness) poll(ctx context.Context, result *Result) {
	res, err := h.watcher.Poll(ctx)
	lastID, lastDate := h.watcher.LastSeen()
	result.record(TraceEvent{Type: EventPoll, Mission: lastID, Date: lastDate})

	for _, report := range res.Sweeps {
		traceSweep(result, report)
	}
	if err != nil {
		result.record(TraceEvent{Type: EventError, Error: err.Error()})
		result.AddError(fmt.Sprintf("poll after mission %d: %v", lastID, err))
	}

	for {
		n, ok := h.sink.TryPop()
		if !ok {
			break
		}
		result.record(notificationEvent(n))
	}
}

func traceSweep(result *Result, report *roster.SweepReport) {
	result.record(TraceEvent{
		Type:    EventSweep,
		Mission: report.MissionID,
		Date:    report.MissionDate,
		Player:  report.PlayerID,
	})
	for _, o := range report.Pilots {
		result.record(TraceEvent{
			Type:    EventDecision,
			Pilot:   o.PilotID,
			From:    o.OldRank,
			To:      o.NewRank,
			Reason:  string(o.Reason),
			Attempt: o.AttemptWrite,
			Error:   o.Error,
		})
	}
}

func notificationEvent(n notify.Notification) TraceEvent {
	e := TraceEvent{Type: EventNotification, Kind: string(n.Kind)}
	switch {
	case n.AI != nil:
		e.Name = n.AI.Name
		e.Title = n.AI.RankTitle
	case n.Player != nil:
		e.Name = n.Player.FirstName + " " + n.Player.LastName
		e.Title = n.Player.RankTitle
	}
	return e
}

// snapshot reads the final ranks and attempt records.
func (h *Harness) snapshot(ctx context.Context, result *Result) error {
	st, err := store.Open(h.campaign.Path())
	if err != nil {
		return err
	}
	defer st.Close()

	pilots, err := st.ListPilots(ctx)
	if err != nil {
		return err
	}
	for _, p := range pilots {
		result.Ranks = append(result.Ranks, PilotRank{Pilot: p.ID, Rank: p.Rank})
	}

	attempts, err := st.ListAttempts(ctx)
	if err != nil {
		return err
	}
	for _, a := range attempts {
		result.Attempts = append(result.Attempts, AttemptState{
			Pilot:       a.PilotID,
			LastAttempt: career.FormatDate(a.LastAttempt),
			LastSuccess: a.LastSuccess,
			FailCount:   a.FailCount,
		})
	}
	return nil
}
