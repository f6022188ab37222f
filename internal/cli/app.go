package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rankwatch/internal/config"
	"github.com/roach88/rankwatch/internal/insignia"
	"github.com/roach88/rankwatch/internal/notify"
	"github.com/roach88/rankwatch/internal/policy"
	"github.com/roach88/rankwatch/internal/roster"
	"github.com/roach88/rankwatch/internal/store"
)

// app is what every campaign command needs: the resolved config and a
// logger.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	closeLog func()
	out      *OutputFormatter
}

// newApp loads the config, applies the --db override and sets up logging.
// A campaign save path is required.
func newApp(opts *RootOptions, cmd *cobra.Command, dbOverride string) (*app, error) {
	out := opts.formatter(cmd)

	cfg, err := config.LoadOrDefault(opts.Config)
	if err != nil {
		return nil, out.Fail(ExitCommandError, CodeConfig, "failed to load config", err)
	}
	if dbOverride != "" {
		cfg = cfg.WithDBPath(dbOverride)
	}
	if cfg.DBPath() == "" {
		return nil, out.Fail(ExitCommandError, CodeConfig,
			"no campaign save configured (run 'rankwatch config init --game-path <dir>' or pass --db)", nil)
	}

	logFile := opts.LogFile
	if logFile == "" {
		logFile = cfg.LogFile
	}
	logger, closeLog, err := setupLogging(opts, cmd.ErrOrStderr(), logFile)
	if err != nil {
		return nil, out.Fail(ExitCommandError, CodeConfig, "failed to set up logging", err)
	}

	return &app{cfg: cfg, logger: logger, closeLog: closeLog, out: out}, nil
}

// roster builds the promotion roster pushing into sink.
func (a *app) roster(sink *notify.Sink, seed uint64) (*roster.Roster, error) {
	catalog, err := insignia.Load(a.cfg.InsigniaDir())
	if err != nil {
		return nil, err
	}
	return roster.New(roster.Options{
		Policy:      policy.New(a.cfg.Thresholds, newRoller(seed), a.cfg.PolicyOptions()...),
		Ceilings:    a.cfg.Ceilings,
		Resolver:    catalog,
		Sink:        sink,
		Language:    a.cfg.Language,
		Locale:      a.cfg.Locale(),
		ResourceDir: a.cfg.ResourceDir(),
		Logger:      a.logger,
	}), nil
}

// openStore opens the campaign save and checks that it is one.
func (a *app) openStore() (*store.Store, error) {
	path := a.cfg.DBPath()
	if _, err := os.Stat(path); err != nil {
		return nil, a.out.Fail(ExitCommandError, CodeStore, fmt.Sprintf("campaign save not found: %s", path), err)
	}
	st, err := store.Open(path)
	if errors.Is(err, store.ErrSchemaMissing) {
		return nil, a.out.Fail(ExitCommandError, CodeStore, "not a campaign save", err)
	}
	if err != nil {
		return nil, a.out.Fail(ExitCommandError, CodeStore, "failed to open campaign save", err)
	}
	return st, nil
}

// newRoller seeds the promotion roll. Seed 0 draws a random seed.
func newRoller(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed))
}

// writeNotification emits one notification line for an external overlay.
func writeNotification(w io.Writer, format string, n notify.Notification) error {
	if format == "json" {
		return json.NewEncoder(w).Encode(n)
	}

	switch n.Kind {
	case notify.KindAIPromotion:
		if n.AI == nil {
			return errors.New("ai notification without payload")
		}
		_, err := fmt.Fprintf(w, "Squadron promotion: %s is now %s\n", n.AI.Name, n.AI.RankTitle)
		return err
	case notify.KindPlayerPromotion:
		p := n.Player
		if p == nil {
			return errors.New("player notification without payload")
		}
		_, err := fmt.Fprintf(w, "PROMOTED: %s %s is now %s (rank %d -> %d, %s)\n",
			p.FirstName, p.LastName, p.RankTitle, p.OldRank, p.NewRank, p.MissionDate)
		return err
	default:
		return fmt.Errorf("unknown notification kind %q", n.Kind)
	}
}
