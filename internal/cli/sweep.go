package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/rankwatch/internal/career"
	"github.com/roach88/rankwatch/internal/notify"
	"github.com/roach88/rankwatch/internal/roster"
	"github.com/roach88/rankwatch/internal/store"
)

// SweepOptions holds flags for the sweep command.
type SweepOptions struct {
	*RootOptions
	Database  string
	MissionID int64
	DryRun    bool
	Seed      uint64

	// IDs overrides the sweep and notification ID generators (for testing).
	IDs notify.IDGenerator
}

// SweepResult is the output of the sweep command.
type SweepResult struct {
	Report        *roster.SweepReport   `json:"report"`
	Notifications []notify.Notification `json:"notifications"`
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SweepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one promotion sweep for a mission",
		Long: `Evaluate every pilot of the campaign once, as the watcher does after a
mission, and print the decisions.

By default the latest mission is used. With --dry-run nothing is written
to the campaign save and no notification is produced.

A written sweep marks its mission in the save. A mission that is already
marked, or that is older than or on the same date as the last marked one,
is refused; only --dry-run may evaluate it again.

Examples:
  rankwatch sweep --dry-run
  rankwatch sweep --db ./cp.db --mission 42 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "campaign save (default: from config)")
	cmd.Flags().Int64Var(&opts.MissionID, "mission", 0, "mission to sweep (default: latest)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "decide without writing or notifying")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "seed for promotion rolls (0 = random)")

	return cmd
}

func runSweep(opts *SweepOptions, cmd *cobra.Command) error {
	a, err := newApp(opts.RootOptions, cmd, opts.Database)
	if err != nil {
		return err
	}
	defer a.closeLog()

	ctx := cmd.Context()
	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	mission, ok, err := findMission(cmd, st, opts.MissionID)
	if err != nil {
		return a.out.Fail(ExitCommandError, CodeStore, "failed to read missions", err)
	}
	if !ok {
		msg := "campaign has no missions"
		if opts.MissionID != 0 {
			msg = fmt.Sprintf("mission %d not found", opts.MissionID)
		}
		return a.out.Fail(ExitCommandError, CodeNoMission, msg, nil)
	}

	if !opts.DryRun {
		mark, marked, err := st.LastSweep(ctx)
		if err != nil {
			return a.out.Fail(ExitFailure, CodeStore, "failed to read sweep marks", err)
		}
		if marked && mark.Covers(mission.ID, mission.Date) {
			msg := fmt.Sprintf("mission %d on %s already swept (last sweep: mission %d on %s); use --dry-run to re-evaluate",
				mission.ID, mission.Date, mark.MissionID, mark.Date)
			return a.out.Fail(ExitCommandError, CodeSwept, msg, nil)
		}
	}

	countries, err := st.SquadronCountries(ctx)
	if err != nil {
		return a.out.Fail(ExitFailure, CodeSweep, "failed to read squadrons", err)
	}
	country := a.cfg.FallbackCountry
	if mission.HasSquadron {
		country, err = st.CampaignCountry(ctx, mission.SquadronID, a.cfg.FallbackCountry)
		if err != nil {
			return a.out.Fail(ExitFailure, CodeSweep, "failed to resolve campaign country", err)
		}
	}

	sink := notify.NewSink()
	r, err := a.roster(sink, opts.Seed)
	if err != nil {
		return a.out.Fail(ExitCommandError, CodeConfig, "failed to load rank catalogue", err)
	}
	ids := opts.IDs
	if ids == nil {
		ids = notify.UUIDv7Generator{}
	}

	report, err := r.SweepAllPilots(ctx, st, roster.SweepContext{
		SweepID:           ids.Generate(),
		MissionID:         mission.ID,
		MissionDate:       mission.Date,
		Squadron:          mission.SquadronID,
		HasSquadron:       mission.HasSquadron,
		CampaignCountry:   country,
		SquadronCountries: countries,
		DryRun:            opts.DryRun,
	})
	if err != nil {
		return a.out.Fail(ExitFailure, CodeSweep, "sweep failed", err)
	}
	if !opts.DryRun {
		err := st.RecordSweep(ctx, store.SweepMark{MissionID: mission.ID, Date: mission.Date, SweepID: report.SweepID})
		if err != nil {
			return a.out.Fail(ExitFailure, CodeSweep, "failed to mark mission swept", err)
		}
	}

	sink.Close()
	result := SweepResult{Report: report, Notifications: []notify.Notification{}}
	for {
		n, ok := sink.TryPop()
		if !ok {
			break
		}
		result.Notifications = append(result.Notifications, n)
	}

	return a.out.Success(result)
}

func findMission(cmd *cobra.Command, st *store.Store, id int64) (career.Mission, bool, error) {
	if id == 0 {
		return st.LatestMission(cmd.Context())
	}
	missions, err := st.MissionsAfter(cmd.Context(), id-1)
	if err != nil {
		return career.Mission{}, false, err
	}
	if len(missions) == 0 || missions[0].ID != id {
		return career.Mission{}, false, nil
	}
	return missions[0], true, nil
}

// RenderText implements textRenderer.
func (r SweepResult) RenderText(w io.Writer) {
	rep := r.Report
	mode := ""
	if rep.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "Sweep %s: mission %d on %s%s\n", rep.SweepID, rep.MissionID, rep.MissionDate, mode)
	if rep.HasPlayer {
		fmt.Fprintf(w, "Player pilot: %d\n", rep.PlayerID)
	} else {
		fmt.Fprintln(w, "Player pilot: none")
	}
	fmt.Fprintf(w, "Evaluated %d, promoted %d, held %d, attempts %d, errors %d\n",
		rep.Evaluated, rep.Promoted, rep.Held, rep.AttemptsWritten, rep.Errors)

	for _, p := range rep.Pilots {
		who := "AI"
		if p.IsPlayer {
			who = "player"
		}
		line := fmt.Sprintf("  %-6d %-24s %-6s %s %d -> %d  %s", p.PilotID, p.Name, who, p.Country, p.OldRank, p.NewRank, p.Reason)
		if p.Error != "" {
			line += "  error: " + p.Error
		}
		fmt.Fprintln(w, line)
	}

	for _, n := range r.Notifications {
		_ = writeNotification(w, "text", n)
	}
}
