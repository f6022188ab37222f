package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/roach88/rankwatch/internal/career"
	"github.com/roach88/rankwatch/internal/insignia"
	"github.com/roach88/rankwatch/internal/notify"
	"github.com/roach88/rankwatch/internal/policy"
	"github.com/roach88/rankwatch/internal/store"
)

// Campaign is the slice of the store a sweep needs. *store.Store
// implements it.
type Campaign interface {
	ListPilots(ctx context.Context) ([]career.Pilot, error)
	PlayerCandidates(ctx context.Context, squadronID int64) ([]int64, error)
	LatestSquadronMission(ctx context.Context, squadronID int64) (career.Mission, bool, error)
	HasEvent(ctx context.Context, pilotID, missionID int64) (bool, error)
	LatestEventYear(ctx context.Context, pilotID int64) (int, error)
	GetAttempt(ctx context.Context, pilotID int64) (career.AttemptRecord, bool, error)
	Apply(ctx context.Context, req store.ApplyRequest) (store.ApplyResult, error)
}

// Options configures a Roster.
type Options struct {
	Policy   *policy.Policy
	Ceilings policy.Ceilings
	Resolver insignia.Resolver
	Sink     *notify.Sink
	IDs      notify.IDGenerator

	// Language is the display language code carried in notifications
	// ("ENG", "RU", ...). Locale is the matching catalogue locale ("eng").
	Language string
	Locale   string

	// ResourceDir holds the per-country ceremony images.
	ResourceDir string

	Logger *slog.Logger
}

// Roster runs promotion sweeps.
type Roster struct {
	policy      *policy.Policy
	ceilings    policy.Ceilings
	resolver    insignia.Resolver
	sink        *notify.Sink
	ids         notify.IDGenerator
	language    string
	locale      string
	resourceDir string
	logger      *slog.Logger
}

// New creates a Roster. A nil Resolver uses the built-in catalogue, a nil
// IDs uses UUIDv7 and a nil Logger uses slog.Default().
func New(opts Options) *Roster {
	r := &Roster{
		policy:      opts.Policy,
		ceilings:    opts.Ceilings,
		resolver:    opts.Resolver,
		sink:        opts.Sink,
		ids:         opts.IDs,
		language:    opts.Language,
		locale:      opts.Locale,
		resourceDir: opts.ResourceDir,
		logger:      opts.Logger,
	}
	if r.ceilings == nil {
		r.ceilings = policy.DefaultCeilings()
	}
	if r.resolver == nil {
		r.resolver = insignia.Default("")
	}
	if r.ids == nil {
		r.ids = notify.UUIDv7Generator{}
	}
	if r.locale == "" {
		r.locale = insignia.FallbackLocale
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// ResolveCountry returns the country of the pilot's squadron, or fallback
// when the squadron is not mapped.
func ResolveCountry(p career.Pilot, squadronCountries map[int64]career.Country, fallback career.Country) career.Country {
	if c, ok := squadronCountries[p.SquadronID]; ok {
		return c
	}
	return fallback
}

// FindActivePlayer returns the pilot controlled by the player in the
// squadron.
//
// Candidates are the squadron's pilots bound to a personage. Scanning from
// the highest ID down, the first candidate with an event in the squadron's
// latest mission wins; otherwise the highest ID. The boolean is false when
// the squadron has no candidates.
func FindActivePlayer(ctx context.Context, c Campaign, squadronID int64) (int64, bool, error) {
	candidates, err := c.PlayerCandidates(ctx, squadronID)
	if err != nil {
		return 0, false, fmt.Errorf("find active player: %w", err)
	}
	if len(candidates) == 0 {
		return 0, false, nil
	}

	sorted := append([]int64(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })

	latest, ok, err := c.LatestSquadronMission(ctx, squadronID)
	if err != nil {
		return 0, false, fmt.Errorf("find active player: %w", err)
	}
	if ok {
		for _, id := range sorted {
			has, err := c.HasEvent(ctx, id, latest.ID)
			if err != nil {
				return 0, false, fmt.Errorf("find active player: %w", err)
			}
			if has {
				return id, true, nil
			}
		}
	}

	return sorted[0], true, nil
}

// SweepContext describes the mission that triggered a sweep.
type SweepContext struct {
	SweepID     string
	MissionID   int64
	MissionDate string

	// Squadron is the mission's squadron; HasSquadron is false when the
	// mission row has none, in which case the sweep has no player and no AI
	// notifications.
	Squadron    int64
	HasSquadron bool

	// CampaignCountry is the fallback for pilots whose squadron is unmapped.
	CampaignCountry   career.Country
	SquadronCountries map[int64]career.Country

	// DryRun decides without writing or notifying.
	DryRun bool
}

// SweepAllPilots evaluates every pilot and persists the decisions.
//
// It returns an error only when the sweep could not start (pilots or the
// active player could not be read); nothing has been written in that case.
// Per-pilot failures are logged, counted in the report and skipped.
func (r *Roster) SweepAllPilots(ctx context.Context, c Campaign, sc SweepContext) (*SweepReport, error) {
	date, err := career.ParseDate(sc.MissionDate)
	if err != nil {
		return nil, fmt.Errorf("sweep mission %d: %w", sc.MissionID, err)
	}

	report := &SweepReport{
		SweepID:     sc.SweepID,
		MissionID:   sc.MissionID,
		MissionDate: sc.MissionDate,
		DryRun:      sc.DryRun,
		Pilots:      []PilotOutcome{},
	}
	log := r.logger.With("sweep", sc.SweepID, "mission", sc.MissionID)

	var playerID int64
	if sc.HasSquadron {
		id, ok, err := FindActivePlayer(ctx, c, sc.Squadron)
		if err != nil {
			return nil, fmt.Errorf("sweep mission %d: %w", sc.MissionID, err)
		}
		if ok {
			playerID, report.PlayerID, report.HasPlayer = id, id, true
			log.Debug("active player selected", "squadron", sc.Squadron, "pilot", id)
		} else {
			log.Info("no active player for squadron, sweeping AI only", "squadron", sc.Squadron)
		}
	}

	pilots, err := c.ListPilots(ctx)
	if err != nil {
		return nil, fmt.Errorf("sweep mission %d: %w", sc.MissionID, err)
	}

	var batch notify.Batch
	for _, p := range pilots {
		isPlayer := report.HasPlayer && p.ID == playerID
		out := r.sweepPilot(ctx, c, sc, date, p, isPlayer, &batch, log)
		report.add(out)
	}

	if !sc.DryRun {
		report.Notifications = batch.Flush(r.sink)
	}

	log.Info("sweep complete",
		"evaluated", report.Evaluated,
		"promoted", report.Promoted,
		"attempts", report.AttemptsWritten,
		"notifications", report.Notifications,
		"errors", report.Errors,
	)
	return report, nil
}

func (r *Roster) sweepPilot(
	ctx context.Context,
	c Campaign,
	sc SweepContext,
	date time.Time,
	p career.Pilot,
	isPlayer bool,
	batch *notify.Batch,
	log *slog.Logger,
) PilotOutcome {
	country := ResolveCountry(p, sc.SquadronCountries, sc.CampaignCountry)
	ceiling := r.ceilings.Ceiling(country)
	log = log.With("pilot", p.ID)

	out := PilotOutcome{
		PilotID:  p.ID,
		Name:     p.FullName(),
		Country:  country,
		IsPlayer: isPlayer,
		OldRank:  p.Rank,
		NewRank:  p.Rank,
	}

	if len(p.Malformed) > 0 {
		log.Warn("malformed pilot fields read as zero", "fields", p.Malformed)
	}
	log.Debug("evaluating pilot", "squadron", p.SquadronID, "country", country, "rank", p.Rank, "ceiling", ceiling)

	in := policy.Input{Pilot: p, Ceiling: ceiling, Date: date, IsPlayer: isPlayer}
	if isPlayer {
		rec, ok, err := c.GetAttempt(ctx, p.ID)
		if err != nil {
			log.Warn("skipping pilot: attempt history unreadable", "error", err)
			return out.failed(err)
		}
		if ok {
			in.History = &rec
		}
	}

	d := r.policy.Decide(in)
	out = out.decided(d)
	if d.Reason != policy.ReasonRankOutOfRange {
		log.Debug("decision", "outcome", d.Outcome, "reason", d.Reason, "roll", d.Roll, "chance", d.Chance)
	}

	if !d.Promoted() && d.Attempt == policy.AttemptNone {
		return out
	}
	if sc.DryRun {
		return out
	}

	res, err := c.Apply(ctx, store.ApplyRequest{
		PilotID:  p.ID,
		FromRank: d.OldRank,
		ToRank:   d.NewRank,
		Attempt:  attemptResult(d.Attempt),
		Date:     date,
	})
	if err != nil {
		if errors.Is(err, store.ErrRankChanged) {
			log.Warn("skipping pilot: rank changed by the game", "error", err)
		} else {
			log.Warn("skipping pilot: decision not persisted", "error", err)
		}
		return out.failed(err)
	}
	out.AttemptWritten = res.AttemptWritten
	if res.AttemptWritten && d.Attempt == policy.AttemptFailure {
		log.Info("player promotion roll failed", "fail_count", res.FailCount)
	}

	if !d.Promoted() {
		return out
	}
	log.Info("pilot promoted", "from", d.OldRank, "to", d.NewRank, "reason", d.Reason, "player", isPlayer)

	if isPlayer {
		n, err := r.playerNotification(ctx, c, sc, p, country, d)
		if err != nil {
			log.Warn("player notification skipped", "error", err)
			return out
		}
		batch.SetPlayer(n)
		out.Notified = true
		return out
	}

	if sc.HasSquadron && p.SquadronID == sc.Squadron {
		n, err := r.aiNotification(ctx, c, sc, p, country, d)
		if err != nil {
			log.Warn("AI notification skipped", "error", err)
			return out
		}
		batch.AddAI(n)
		out.Notified = true
	}
	return out
}

func (r *Roster) playerNotification(
	ctx context.Context, c Campaign, sc SweepContext, p career.Pilot, country career.Country, d policy.Decision,
) (notify.Notification, error) {
	display := country
	if bc, ok := career.BirthCountry(p.Description); ok {
		display = bc
	}
	year, err := r.insigniaYear(ctx, c, p.ID, display)
	if err != nil {
		return notify.Notification{}, err
	}

	rank := r.resolver.Lookup(display, d.NewRank, year, r.locale)
	var ceremony string
	if info, ok := display.Info(); ok {
		ceremony = filepath.Join(r.resourceDir, info.Ceremony)
	}

	return notify.NewPlayer(r.ids.Generate(), sc.SweepID, notify.PlayerPromotion{
		Ceremony:    ceremony,
		Insignia:    rank.Insignia,
		RankTitle:   rank.Title,
		Language:    r.language,
		Country:     display,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		OldRank:     d.OldRank,
		NewRank:     d.NewRank,
		MissionDate: sc.MissionDate,
	}), nil
}

func (r *Roster) aiNotification(
	ctx context.Context, c Campaign, sc SweepContext, p career.Pilot, country career.Country, d policy.Decision,
) (notify.Notification, error) {
	year, err := r.insigniaYear(ctx, c, p.ID, country)
	if err != nil {
		return notify.Notification{}, err
	}

	before := r.resolver.Lookup(country, d.OldRank, year, r.locale)
	after := r.resolver.Lookup(country, d.NewRank, year, r.locale)

	return notify.NewAI(r.ids.Generate(), sc.SweepID, notify.AIPromotion{
		Name:           p.FullName(),
		BeforeInsignia: before.SmallInsignia,
		AfterInsignia:  after.SmallInsignia,
		RankTitle:      after.Title,
		Language:       r.language,
	}), nil
}

// insigniaYear is the pilot's latest event year for USSR insignia, whose
// design changed mid-war, and store.DefaultEventYear otherwise.
func (r *Roster) insigniaYear(ctx context.Context, c Campaign, pilotID int64, country career.Country) (int, error) {
	if country != career.USSR {
		return store.DefaultEventYear, nil
	}
	return c.LatestEventYear(ctx, pilotID)
}

func attemptResult(w policy.AttemptWrite) store.AttemptResult {
	switch w {
	case policy.AttemptSuccess:
		return store.AttemptSucceeded
	case policy.AttemptFailure:
		return store.AttemptFailed
	default:
		return store.NoAttempt
	}
}
