package watcher

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/rankwatch/internal/career"
	"github.com/roach88/rankwatch/internal/notify"
	"github.com/roach88/rankwatch/internal/process"
	"github.com/roach88/rankwatch/internal/roster"
	"github.com/roach88/rankwatch/internal/store"
)

// DefaultInterval is the time between poll cycles.
const DefaultInterval = 5 * time.Second

// State is the watcher's lifecycle state.
type State int32

const (
	WaitingForGame State = iota
	Polling
	Sweeping
)

func (s State) String() string {
	switch s {
	case WaitingForGame:
		return "waiting_for_game"
	case Polling:
		return "polling"
	case Sweeping:
		return "sweeping"
	default:
		return "unknown"
	}
}

// Options configures a Watcher.
type Options struct {
	DBPath          string
	Interval        time.Duration
	FallbackCountry career.Country

	Roster *roster.Roster
	Probe  process.Probe

	// IDs generates sweep IDs. Defaults to UUIDv7.
	IDs notify.IDGenerator

	// OnSweep, when set, receives every completed sweep report.
	OnSweep func(*roster.SweepReport)

	Logger *slog.Logger
}

// PollResult summarises one poll cycle.
type PollResult struct {
	// Missions is the number of new missions read.
	Missions int
	// Skipped counts new missions that did not advance the date.
	Skipped int
	Sweeps  []*roster.SweepReport

	// GameClosed is set when the game exited between two sweeps of the
	// cycle. Missions not yet swept stay unseen.
	GameClosed bool
}

// Watcher polls one game session. Run must be called from one goroutine;
// State and LastSeen are safe from any goroutine.
type Watcher struct {
	opts  Options
	log   *slog.Logger
	state atomic.Int32

	primed   bool
	lastID   atomic.Int64
	lastDate atomic.Value // string
}

// New creates a Watcher.
func New(opts Options) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.FallbackCountry == 0 {
		opts.FallbackCountry = career.DefaultCountry
	}
	if opts.IDs == nil {
		opts.IDs = notify.UUIDv7Generator{}
	}
	if opts.Probe == nil {
		opts.Probe = process.NewStaticProbe(true)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	w := &Watcher{opts: opts, log: log}
	w.lastDate.Store("")
	w.state.Store(int32(Polling))
	return w
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

// LastSeen returns the last processed mission ID and the last swept date.
func (w *Watcher) LastSeen() (int64, string) {
	return w.lastID.Load(), w.lastDate.Load().(string)
}

func (w *Watcher) setState(s State) {
	if prev := State(w.state.Swap(int32(s))); prev != s {
		w.log.Debug("watcher state", "from", prev, "to", s)
	}
}

// Prime records the latest existing mission as the starting point, so
// missions flown before the watcher started are never swept, and purges
// attempt records of deleted pilots.
func (w *Watcher) Prime(ctx context.Context) error {
	st, err := w.open()
	if err != nil {
		return err
	}
	defer st.Close()

	m, ok, err := st.LatestMission(ctx)
	if err != nil {
		return classify(err, 0)
	}
	if ok {
		w.lastID.Store(m.ID)
		w.lastDate.Store(m.Date)
	}

	purged, err := st.PurgeOrphans(ctx)
	if err != nil {
		w.log.Warn("purge orphan attempts failed", "error", err)
	} else if purged > 0 {
		w.log.Info("purged orphan attempt records", "count", purged)
	}

	w.primed = true
	id, date := w.LastSeen()
	w.log.Info("watcher primed", "mission", id, "date", date)
	return nil
}

// Poll runs one cycle: it reads the missions after the last one seen and
// sweeps for every one that moves the campaign date. A mission is marked
// seen only once its sweep has completed, so a failed cycle is retried.
func (w *Watcher) Poll(ctx context.Context) (PollResult, error) {
	var result PollResult
	if !w.primed {
		return result, w.Prime(ctx)
	}

	w.setState(Polling)
	st, err := w.open()
	if err != nil {
		return result, err
	}
	defer st.Close()

	countries, err := st.SquadronCountries(ctx)
	if err != nil {
		return result, classify(err, 0)
	}

	lastID, _ := w.LastSeen()
	missions, err := st.MissionsAfter(ctx, lastID)
	if err != nil {
		return result, classify(err, 0)
	}
	result.Missions = len(missions)

	mark, marked, err := st.LastSweep(ctx)
	if err != nil {
		return result, classify(err, 0)
	}

	for _, m := range missions {
		_, lastDate := w.LastSeen()
		log := w.log.With("mission", m.ID, "date", m.Date)

		if m.Date == lastDate {
			log.Debug("same campaign date, no sweep")
			w.lastID.Store(m.ID)
			result.Skipped++
			continue
		}
		if marked && mark.Covers(m.ID, m.Date) {
			log.Info("mission already swept", "sweep", mark.SweepID, "swept_mission", mark.MissionID)
			w.lastID.Store(m.ID)
			w.lastDate.Store(m.Date)
			result.Skipped++
			continue
		}
		if _, err := career.ParseDate(m.Date); err != nil {
			log.Warn("mission date unreadable, skipping", "error", err)
			w.lastID.Store(m.ID)
			result.Skipped++
			continue
		}

		if len(result.Sweeps) > 0 && !w.gameRunning(ctx) {
			log.Info("game closed, remaining missions left unswept")
			result.GameClosed = true
			return result, nil
		}

		report, err := w.sweep(ctx, st, m, countries)
		if err != nil {
			return result, classify(err, m.ID)
		}
		w.lastID.Store(m.ID)
		w.lastDate.Store(m.Date)
		result.Sweeps = append(result.Sweeps, report)

		if report.Unavailable > 0 {
			log.Warn("save busy during sweep; affected pilots are evaluated after the next mission",
				"pilots", report.Unavailable)
		}
		if w.opts.OnSweep != nil {
			w.opts.OnSweep(report)
		}
	}
	return result, nil
}

// sweep runs to completion even if ctx is cancelled meanwhile.
func (w *Watcher) sweep(ctx context.Context, st *store.Store, m career.Mission, countries map[int64]career.Country) (*roster.SweepReport, error) {
	w.setState(Sweeping)
	defer w.setState(Polling)

	ctx = context.WithoutCancel(ctx)

	country := w.opts.FallbackCountry
	if m.HasSquadron {
		c, err := st.CampaignCountry(ctx, m.SquadronID, w.opts.FallbackCountry)
		if err != nil {
			return nil, err
		}
		country = c
	}

	report, err := w.opts.Roster.SweepAllPilots(ctx, st, roster.SweepContext{
		SweepID:           w.opts.IDs.Generate(),
		MissionID:         m.ID,
		MissionDate:       m.Date,
		Squadron:          m.SquadronID,
		HasSquadron:       m.HasSquadron,
		CampaignCountry:   country,
		SquadronCountries: countries,
	})
	if err != nil {
		return nil, err
	}

	// The decisions are already written; a failed mark is not a failed sweep.
	err = st.RecordSweep(ctx, store.SweepMark{MissionID: m.ID, Date: m.Date, SweepID: report.SweepID})
	if err != nil {
		w.log.Warn("failed to mark mission swept", "mission", m.ID, "error", err)
	}
	return report, nil
}

// Run polls until the game exits (returns nil), a fatal error occurs, or
// ctx is cancelled (returns ctx.Err()). Cancellation is observed between
// cycles only.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info("watcher starting", "db", w.opts.DBPath, "interval", w.opts.Interval)

	for {
		if !w.gameRunning(ctx) {
			w.setState(WaitingForGame)
			w.log.Info("game closed, watcher stopping")
			return nil
		}

		res, err := w.Poll(ctx)
		if err != nil {
			if IsFatal(err) {
				w.log.Error("watcher stopping", "error", err)
				return err
			}
			w.log.Error("poll failed", "error", err)
		}
		if res.GameClosed {
			w.setState(WaitingForGame)
			w.log.Info("game closed, watcher stopping")
			return nil
		}

		select {
		case <-ctx.Done():
			w.log.Info("watcher stopping: context cancelled")
			return ctx.Err()
		case <-time.After(w.opts.Interval):
		}
	}
}

// gameRunning asks the probe; a probe failure counts as running.
func (w *Watcher) gameRunning(ctx context.Context) bool {
	running, err := w.opts.Probe.Running(ctx)
	if err != nil {
		w.log.Warn("process probe failed, assuming the game is running", "error", err)
		return true
	}
	return running
}

func (w *Watcher) open() (*store.Store, error) {
	st, err := store.Open(w.opts.DBPath)
	if err != nil {
		return nil, classify(err, 0)
	}
	return st, nil
}
