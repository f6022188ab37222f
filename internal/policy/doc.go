// Package policy implements the rank-promotion decision.
//
// Decide is a pure function of a pilot's stats, its attempt history and an
// injected random source. It never touches storage: the caller persists the
// new rank and the attempt write carried by the returned Decision.
//
// Eligibility is evaluated only for ranks in [4, ceiling). Merit is met when
// the pilot has enough promotion credit points, or enough sorties with a low
// enough failure ratio. AI pilots are promoted whenever merit is met. The
// player's pilot is gated by a cooldown after a failed roll, a forced
// promotion after repeated failures, and otherwise a roll whose chance drops
// with rank.
package policy
