// Package store provides SQLite access to a campaign save.
//
// The save is owned by the game. The store reads four of its tables and
// writes exactly one pilot column (rankId). It also owns two tables of its
// own: promotion_attempts, holding the player's promotion-attempt history,
// and promotion_sweeps, marking the missions already swept so no mission is
// swept twice by the watcher or the sweep command:
//
//	promotion_attempts(pilotId PRIMARY KEY, last_attempt, last_success, fail_count)
//	promotion_sweeps(missionId PRIMARY KEY, date, sweepId, swept_at)
//
// # Sharing the file with the game
//
// The game writes the save while it runs, so the store:
//   - never changes journal mode or user_version
//   - waits up to busy_timeout for locks and reports SQLITE_BUSY/LOCKED as
//     unavailable (see IsUnavailable), which callers retry on the next poll
//   - opens in read-write mode without creating the file, so a missing save is
//     also reported as unavailable instead of producing an empty database
//
// Callers are expected to open a Store per poll cycle and close it before
// sleeping.
//
// # Durability
//
// Every write commits before the method returns. A promotion (rank update
// plus attempt record) is written in a single transaction by Apply.
package store
