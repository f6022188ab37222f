// Package process detects whether the game is running.
package process

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	ps "github.com/shirou/gopsutil/v4/process"
)

// DefaultNames are the executable names of the game client.
var DefaultNames = []string{"il-2.exe"}

// Probe reports whether the game is running.
type Probe interface {
	Running(ctx context.Context) (bool, error)
}

// NameProbe scans the process table for an executable name. Matching is
// case-insensitive.
type NameProbe struct {
	Names []string

	// list is replaced in tests.
	list func(ctx context.Context) ([]string, error)
}

// NewNameProbe creates a probe for names, or DefaultNames when empty.
func NewNameProbe(names ...string) *NameProbe {
	if len(names) == 0 {
		names = DefaultNames
	}
	return &NameProbe{Names: names}
}

// Running implements Probe.
func (p *NameProbe) Running(ctx context.Context) (bool, error) {
	list := p.list
	if list == nil {
		list = processNames
	}
	names, err := list(ctx)
	if err != nil {
		return false, fmt.Errorf("list processes: %w", err)
	}
	for _, name := range names {
		for _, want := range p.Names {
			if strings.EqualFold(name, want) {
				return true, nil
			}
		}
	}
	return false, nil
}

// processNames returns the names of all visible processes. Processes that
// exit or deny access while being inspected are skipped.
func processNames(ctx context.Context) ([]string, error) {
	procs, err := ps.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(procs))
	for _, proc := range procs {
		name, err := proc.NameWithContext(ctx)
		if err != nil {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// StaticProbe reports a fixed answer. It backs --no-probe runs and tests.
type StaticProbe struct {
	running atomic.Bool
	calls   atomic.Int64
}

// NewStaticProbe creates a probe answering running.
func NewStaticProbe(running bool) *StaticProbe {
	p := &StaticProbe{}
	p.running.Store(running)
	return p
}

// Set changes the answer.
func (p *StaticProbe) Set(running bool) {
	p.running.Store(running)
}

// Calls returns how many times Running was called.
func (p *StaticProbe) Calls() int {
	return int(p.calls.Load())
}

// Running implements Probe.
func (p *StaticProbe) Running(context.Context) (bool, error) {
	p.calls.Add(1)
	return p.running.Load(), nil
}
