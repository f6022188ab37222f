package watcher

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/rankwatch/internal/process"
)

// Supervisor restarts a Watcher for every game session.
type Supervisor struct {
	probe      process.Probe
	interval   time.Duration
	newWatcher func() *Watcher
	log        *slog.Logger

	current  atomic.Pointer[Watcher]
	sessions atomic.Int64
}

// NewSupervisor creates a supervisor. newWatcher is called once per game
// session.
func NewSupervisor(probe process.Probe, interval time.Duration, newWatcher func() *Watcher, logger *slog.Logger) *Supervisor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{probe: probe, interval: interval, newWatcher: newWatcher, log: logger}
}

// State returns the state of the running watcher, or WaitingForGame.
func (s *Supervisor) State() State {
	if w := s.current.Load(); w != nil {
		return w.State()
	}
	return WaitingForGame
}

// Sessions returns how many watchers have been started.
func (s *Supervisor) Sessions() int {
	return int(s.sessions.Load())
}

// Run waits for the game, watches it until it exits, and repeats until ctx
// is cancelled. A watcher that stops on a fatal error is not restarted
// until the game has been closed and launched again.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		s.log.Info("waiting for game")
		if err := s.waitFor(ctx, true); err != nil {
			return err
		}

		w := s.newWatcher()
		s.current.Store(w)
		s.sessions.Add(1)

		err := w.Run(ctx)
		s.current.Store(nil)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.log.Error("watcher failed", "error", err)
			if err := s.waitFor(ctx, false); err != nil {
				return err
			}
		}
		s.log.Info("monitoring will restart on next launch")
	}
}

// waitFor probes every interval until the game's running state equals want.
func (s *Supervisor) waitFor(ctx context.Context, want bool) error {
	for {
		running, err := s.probe.Running(ctx)
		if err != nil {
			s.log.Warn("process probe failed", "error", err)
		} else if running == want {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.interval):
		}
	}
}
