package testutil

import "sync"

// ScriptedRoller returns predetermined roll values in order.
//
// Once the script is exhausted the last value repeats; an empty script
// always returns 0. Calls counts how many rolls were drawn so tests can
// assert that no randomness was consumed.
type ScriptedRoller struct {
	mu     sync.Mutex
	values []float64
	calls  int
}

// NewScriptedRoller creates a roller returning values in order.
func NewScriptedRoller(values ...float64) *ScriptedRoller {
	return &ScriptedRoller{values: values}
}

// Float64 returns the next scripted value.
func (r *ScriptedRoller) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.calls
	r.calls++
	switch {
	case len(r.values) == 0:
		return 0
	case i >= len(r.values):
		return r.values[len(r.values)-1]
	default:
		return r.values[i]
	}
}

// Calls returns the number of rolls drawn so far.
func (r *ScriptedRoller) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
