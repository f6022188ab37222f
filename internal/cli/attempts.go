package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/rankwatch/internal/career"
)

// AttemptsOptions holds flags for the attempts commands.
type AttemptsOptions struct {
	*RootOptions
	Database string
}

// AttemptRow is one promotion attempt record in command output.
type AttemptRow struct {
	PilotID     int64  `json:"pilot_id"`
	LastAttempt string `json:"last_attempt"`
	LastSuccess bool   `json:"last_success"`
	FailCount   int    `json:"fail_count"`
}

// AttemptsResult is the output of attempts list.
type AttemptsResult struct {
	Attempts []AttemptRow `json:"attempts"`
}

// PurgeResult is the output of attempts purge.
type PurgeResult struct {
	Removed int64 `json:"removed"`
}

// NewAttemptsCommand creates the attempts command group.
func NewAttemptsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AttemptsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "Inspect the player's promotion attempt records",
		Long: `Inspect or clean the promotion_attempts table that rankwatch keeps in
the campaign save.

Examples:
  rankwatch attempts list
  rankwatch attempts purge --db ./cp.db`,
		Args: cobra.NoArgs,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "campaign save (default: from config)")

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List attempt records",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAttemptsList(opts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "purge",
		Short:         "Delete records of pilots that no longer exist",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAttemptsPurge(opts, cmd)
		},
	})

	return cmd
}

func runAttemptsList(opts *AttemptsOptions, cmd *cobra.Command) error {
	a, err := newApp(opts.RootOptions, cmd, opts.Database)
	if err != nil {
		return err
	}
	defer a.closeLog()

	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.ListAttempts(cmd.Context())
	if err != nil {
		return a.out.Fail(ExitFailure, CodeStore, "failed to list attempts", err)
	}

	result := AttemptsResult{Attempts: make([]AttemptRow, 0, len(records))}
	for _, rec := range records {
		row := AttemptRow{PilotID: rec.PilotID, LastSuccess: rec.LastSuccess, FailCount: rec.FailCount}
		if !rec.LastAttempt.IsZero() {
			row.LastAttempt = career.FormatDate(rec.LastAttempt)
		}
		result.Attempts = append(result.Attempts, row)
	}
	return a.out.Success(result)
}

func runAttemptsPurge(opts *AttemptsOptions, cmd *cobra.Command) error {
	a, err := newApp(opts.RootOptions, cmd, opts.Database)
	if err != nil {
		return err
	}
	defer a.closeLog()

	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.PurgeOrphans(cmd.Context())
	if err != nil {
		return a.out.Fail(ExitFailure, CodeStore, "failed to purge attempts", err)
	}
	return a.out.Success(PurgeResult{Removed: n})
}

// RenderText implements textRenderer.
func (r AttemptsResult) RenderText(w io.Writer) {
	if len(r.Attempts) == 0 {
		fmt.Fprintln(w, "No promotion attempts recorded.")
		return
	}
	fmt.Fprintf(w, "%-8s %-12s %-8s %s\n", "PILOT", "LAST", "SUCCESS", "FAILS")
	for _, a := range r.Attempts {
		last := a.LastAttempt
		if last == "" {
			last = "-"
		}
		fmt.Fprintf(w, "%-8d %-12s %-8t %d\n", a.PilotID, last, a.LastSuccess, a.FailCount)
	}
}

// RenderText implements textRenderer.
func (r PurgeResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Removed %d orphan attempt record(s).\n", r.Removed)
}
