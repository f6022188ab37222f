package policy

import (
	"math"
	"time"

	"github.com/roach88/rankwatch/internal/career"
)

// Roller is the random source for the player's promotion roll.
// *rand.Rand from math/rand/v2 satisfies it.
type Roller interface {
	Float64() float64
}

// Outcome is the result of a decision.
type Outcome int

const (
	// Hold leaves the pilot at the current rank.
	Hold Outcome = iota
	// Promote raises the pilot by exactly one rank.
	Promote
)

func (o Outcome) String() string {
	if o == Promote {
		return "promote"
	}
	return "hold"
}

// Reason explains how a decision was reached.
type Reason string

const (
	ReasonRankOutOfRange Reason = "rank_out_of_range"
	ReasonNoThreshold    Reason = "no_threshold"
	ReasonNoMerit        Reason = "no_merit"
	ReasonAIMerit        Reason = "ai_merit"
	ReasonCooldown       Reason = "cooldown"
	ReasonForced         Reason = "forced"
	ReasonRollWon        Reason = "roll_won"
	ReasonRollLost       Reason = "roll_lost"
)

// AttemptWrite is the attempt-history write a decision requires.
type AttemptWrite int

const (
	// AttemptNone means no attempt record is written.
	AttemptNone AttemptWrite = iota
	// AttemptSuccess records a success and resets the fail count.
	AttemptSuccess
	// AttemptFailure records a failure and increments the fail count.
	AttemptFailure
)

func (w AttemptWrite) String() string {
	switch w {
	case AttemptSuccess:
		return "success"
	case AttemptFailure:
		return "failure"
	default:
		return "none"
	}
}

// Input is everything Decide needs about one pilot.
type Input struct {
	Pilot    career.Pilot
	Ceiling  int
	Date     time.Time
	IsPlayer bool
	// History is nil when the pilot has no attempt record.
	History *career.AttemptRecord
}

// Decision is the result of Decide.
type Decision struct {
	Outcome Outcome
	OldRank int
	NewRank int
	Reason  Reason
	Attempt AttemptWrite

	// Roll and Chance are set only when a roll was drawn.
	Roll   float64
	Chance float64
	Rolled bool
}

// Promoted reports whether the decision raises the rank.
func (d Decision) Promoted() bool {
	return d.Outcome == Promote
}

// Policy parameters. The zero value is not usable; use New.
type Policy struct {
	thresholds    Thresholds
	roller        Roller
	cooldownDays  int
	failThreshold int
}

// Default values for the player gates.
const (
	DefaultCooldownDays  = 2
	DefaultFailThreshold = 3
)

// Option configures a Policy.
type Option func(*Policy)

// WithCooldownDays sets how many days must pass after a failed roll.
func WithCooldownDays(days int) Option {
	return func(p *Policy) {
		p.cooldownDays = days
	}
}

// WithFailThreshold sets the number of consecutive failures that forces a
// promotion.
func WithFailThreshold(n int) Option {
	return func(p *Policy) {
		p.failThreshold = n
	}
}

// New creates a Policy with the given merit table and random source.
func New(thresholds Thresholds, roller Roller, opts ...Option) *Policy {
	p := &Policy{
		thresholds:    thresholds,
		roller:        roller,
		cooldownDays:  DefaultCooldownDays,
		failThreshold: DefaultFailThreshold,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Chance returns the player's promotion probability out of rank.
func Chance(rank int) float64 {
	idx := rank - MinRank
	return math.Max(0.9-0.05*float64(idx), 0.25)
}

// HasMerit reports whether the pilot meets the threshold row.
func HasMerit(p career.Pilot, t Threshold) bool {
	if p.PCP >= t.PCP {
		return true
	}
	return p.Sorties >= t.Sorties && p.FailureRatio() <= t.MaxFailureRatio
}

// Decide evaluates one pilot. It has no side effects beyond drawing from the
// roller, which happens only for a player past the cooldown and forced gates.
func (p *Policy) Decide(in Input) Decision {
	rank := in.Pilot.Rank
	d := Decision{Outcome: Hold, OldRank: rank, NewRank: rank}

	if rank < MinRank || rank >= in.Ceiling {
		d.Reason = ReasonRankOutOfRange
		return d
	}

	row, ok := p.thresholds.For(rank)
	if !ok {
		d.Reason = ReasonNoThreshold
		return d
	}

	if !HasMerit(in.Pilot, row) {
		d.Reason = ReasonNoMerit
		return d
	}

	if !in.IsPlayer {
		return promote(d, ReasonAIMerit, AttemptNone)
	}

	if h := in.History; h != nil {
		if !h.LastSuccess && career.DaysBetween(h.LastAttempt, in.Date) < p.cooldownDays {
			d.Reason = ReasonCooldown
			return d
		}
		if h.FailCount >= p.failThreshold {
			return promote(d, ReasonForced, AttemptSuccess)
		}
	}

	d.Chance = Chance(rank)
	d.Roll = p.roller.Float64()
	d.Rolled = true
	if d.Roll <= d.Chance {
		return promote(d, ReasonRollWon, AttemptSuccess)
	}
	d.Reason = ReasonRollLost
	d.Attempt = AttemptFailure
	return d
}

func promote(d Decision, reason Reason, attempt AttemptWrite) Decision {
	d.Outcome = Promote
	d.NewRank = d.OldRank + 1
	d.Reason = reason
	d.Attempt = attempt
	return d
}
