// Package watcher follows a running campaign and triggers promotion sweeps.
//
// A Watcher polls the campaign save for missions it has not seen yet and
// sweeps the roster each time the campaign date moves forward. All work
// happens on the goroutine calling Run; the save is opened at the start of
// each poll cycle and closed at its end so the game is never locked out
// between polls.
//
// A Supervisor waits for the game to start, runs a fresh Watcher for the
// session and goes back to waiting when the game exits.
package watcher
