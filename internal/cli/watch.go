package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rankwatch/internal/notify"
	"github.com/roach88/rankwatch/internal/process"
	"github.com/roach88/rankwatch/internal/roster"
	"github.com/roach88/rankwatch/internal/watcher"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Database string
	NoProbe  bool
	Interval time.Duration
	Seed     uint64

	// SweepIDs overrides the sweep ID generator (for testing).
	SweepIDs notify.IDGenerator
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the campaign and promote pilots between missions",
		Long: `Wait for the game to start, then poll the campaign save and run a
promotion sweep every time the campaign date moves forward.

Missions that already existed when watching started are never swept.
Promotions are printed on stdout, one per line; with --format json each
line is a notification record for an external overlay.

When the game exits, watching pauses until the next launch.

Examples:
  rankwatch watch
  rankwatch watch --format json
  rankwatch watch --db ./cp.db --no-probe --interval 1s`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "campaign save to watch (default: from config)")
	cmd.Flags().BoolVar(&opts.NoProbe, "no-probe", false, "do not wait for the game process")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "poll interval (default: from config)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "seed for promotion rolls (0 = random)")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	a, err := newApp(opts.RootOptions, cmd, opts.Database)
	if err != nil {
		return err
	}
	defer a.closeLog()

	interval := a.cfg.PollInterval
	if opts.Interval > 0 {
		interval = opts.Interval
	}

	sink := notify.NewSink()
	r, err := a.roster(sink, opts.Seed)
	if err != nil {
		return a.out.Fail(ExitCommandError, CodeConfig, "failed to load rank catalogue", err)
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// The consumer drains the sink until it is closed, so notifications of
	// a sweep that finished during shutdown are still written.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			n, ok, _ := sink.Pop(context.Background())
			if !ok {
				return
			}
			if err := writeNotification(cmd.OutOrStdout(), opts.Format, n); err != nil {
				a.logger.Error("write notification", "error", err, "id", n.ID)
			}
		}
	}()

	var probe process.Probe
	if opts.NoProbe {
		probe = process.NewStaticProbe(true)
	} else {
		probe = process.NewNameProbe(a.cfg.ProcessNames...)
	}

	newWatcher := func() *watcher.Watcher {
		return watcher.New(watcher.Options{
			DBPath:          a.cfg.DBPath(),
			Interval:        interval,
			FallbackCountry: a.cfg.FallbackCountry,
			Roster:          r,
			Probe:           probe,
			IDs:             opts.SweepIDs,
			Logger:          a.logger,
			OnSweep: func(rep *roster.SweepReport) {
				a.out.VerboseLog("sweep %s: mission %d (%s): %d promoted, %d errors",
					rep.SweepID, rep.MissionID, rep.MissionDate, rep.Promoted, rep.Errors)
			},
		})
	}

	a.logger.Info("rankwatch starting", "db", a.cfg.DBPath(), "interval", interval, "probe", !opts.NoProbe)
	if opts.Format != "json" {
		fmt.Fprintln(cmd.ErrOrStderr(), "Watching campaign. Press Ctrl-C to stop.")
	}

	if opts.NoProbe {
		err = newWatcher().Run(ctx)
	} else {
		err = watcher.NewSupervisor(probe, interval, newWatcher, a.logger).Run(ctx)
	}

	sink.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "watcher stopped", err)
	}
	a.logger.Info("rankwatch stopped")
	return nil
}
