// Package harness runs promotion scenarios end to end.
//
// A scenario is a YAML file describing a campaign save (squadrons, pilots,
// missions, attempt history), a sequence of steps the game would take
// (new missions, rank edits, deleted careers) and assertions on the
// outcome. The harness builds the save on disk, drives a real watcher over
// it with a scripted roller and sequential IDs, and records a trace of
// every poll, sweep decision and notification.
//
// Traces are deterministic, so they are compared against golden files in
// testdata/golden. To regenerate them after an intended behaviour change:
//
//	go test ./internal/harness -update
package harness
