// Package career defines the domain types read from a campaign save.
//
// The campaign save is owned by the game. Pilots, squadrons, missions and
// events are produced and mutated externally; rankwatch reads them and writes
// exactly one pilot field (the rank index) plus its own attempt history.
//
// Missions are append-only with strictly increasing IDs. A new mission row is
// the only signal that campaign time has advanced.
package career
