// Package notify carries promotion notifications from the watcher to a UI.
//
// The watcher is the only producer and the UI collaborator the only
// consumer. Sink is an unbounded FIFO queue with a coalesced availability
// signal; it never blocks the producer. Within one sweep, Batch orders the
// notifications so that AI squadron-mates come first and the player's own
// ceremony comes last.
package notify
