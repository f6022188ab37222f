package roster

import (
	"github.com/roach88/rankwatch/internal/career"
	"github.com/roach88/rankwatch/internal/policy"
	"github.com/roach88/rankwatch/internal/store"
)

// PilotOutcome is the result of one pilot in a sweep.
type PilotOutcome struct {
	PilotID        int64          `json:"pilot_id"`
	Name           string         `json:"name"`
	Country        career.Country `json:"country"`
	IsPlayer       bool           `json:"is_player"`
	OldRank        int            `json:"old_rank"`
	NewRank        int            `json:"new_rank"`
	Outcome        string         `json:"outcome"`
	Reason         policy.Reason  `json:"reason,omitempty"`
	AttemptWrite   string         `json:"attempt_write,omitempty"`
	AttemptWritten bool           `json:"attempt_written,omitempty"`
	Notified       bool           `json:"notified,omitempty"`
	Error          string         `json:"error,omitempty"`

	unavailable bool
}

func (o PilotOutcome) decided(d policy.Decision) PilotOutcome {
	o.Outcome = d.Outcome.String()
	o.Reason = d.Reason
	o.NewRank = d.NewRank
	if d.Attempt != policy.AttemptNone {
		o.AttemptWrite = d.Attempt.String()
	}
	return o
}

func (o PilotOutcome) failed(err error) PilotOutcome {
	o.Error = err.Error()
	o.NewRank = o.OldRank
	o.unavailable = store.IsUnavailable(err)
	return o
}

// SweepReport summarises a sweep. Pilots lists every pilot whose rank was
// inside the promotion window, or that failed.
type SweepReport struct {
	SweepID     string `json:"sweep_id"`
	MissionID   int64  `json:"mission_id"`
	MissionDate string `json:"mission_date"`
	PlayerID    int64  `json:"player_id,omitempty"`
	HasPlayer   bool   `json:"has_player"`
	DryRun      bool   `json:"dry_run,omitempty"`

	Evaluated       int `json:"evaluated"`
	Promoted        int `json:"promoted"`
	Held            int `json:"held"`
	AttemptsWritten int `json:"attempts_written"`
	Notifications   int `json:"notifications"`
	Errors          int `json:"errors"`
	// Unavailable counts the errors caused by a busy or locked store.
	Unavailable int `json:"unavailable"`

	Pilots []PilotOutcome `json:"pilots"`
}

func (r *SweepReport) add(o PilotOutcome) {
	r.Evaluated++
	switch {
	case o.Error != "":
		r.Errors++
		if o.unavailable {
			r.Unavailable++
		}
	case o.NewRank > o.OldRank:
		r.Promoted++
	default:
		r.Held++
	}
	if o.AttemptWritten {
		r.AttemptsWritten++
	}
	if o.Error != "" || o.Reason != policy.ReasonRankOutOfRange {
		r.Pilots = append(r.Pilots, o)
	}
}
