package harness

// Trace event types.
const (
	EventPoll         = "poll"
	EventSweep        = "sweep"
	EventDecision     = "decision"
	EventNotification = "notification"
	EventError        = "error"
)

// TraceEvent is one entry of a scenario trace. Only the fields relevant to
// Type are set.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Type    string `json:"type"`
	Mission int64  `json:"mission,omitempty"`
	Date    string `json:"date,omitempty"`
	Player  int64  `json:"player,omitempty"`
	Pilot   int64  `json:"pilot,omitempty"`
	From    int    `json:"from,omitempty"`
	To      int    `json:"to,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Attempt string `json:"attempt,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Name    string `json:"name,omitempty"`
	Title   string `json:"title,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PilotRank is a pilot's rank when the scenario ends.
type PilotRank struct {
	Pilot int64 `json:"pilot"`
	Rank  int   `json:"rank"`
}

// AttemptState is an attempt record when the scenario ends.
type AttemptState struct {
	Pilot       int64  `json:"pilot"`
	LastAttempt string `json:"last_attempt"`
	LastSuccess bool   `json:"last_success"`
	FailCount   int    `json:"fail_count"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is false when a poll failed or an assertion did not hold.
	Pass bool `json:"pass"`

	Trace    []TraceEvent   `json:"trace"`
	Ranks    []PilotRank    `json:"ranks"`
	Attempts []AttemptState `json:"attempts"`

	Errors []string `json:"errors,omitempty"`

	seq int64
}

// NewResult creates an empty passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Ranks:    []PilotRank{},
		Attempts: []AttemptState{},
		Errors:   []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// record appends e to the trace with the next sequence number.
func (r *Result) record(e TraceEvent) {
	r.seq++
	e.Seq = r.seq
	r.Trace = append(r.Trace, e)
}

// Rank returns the final rank of a pilot; false when the pilot no longer
// exists.
func (r *Result) Rank(pilotID int64) (int, bool) {
	for _, pr := range r.Ranks {
		if pr.Pilot == pilotID {
			return pr.Rank, true
		}
	}
	return 0, false
}

// Attempt returns the final attempt record of a pilot.
func (r *Result) Attempt(pilotID int64) (AttemptState, bool) {
	for _, a := range r.Attempts {
		if a.Pilot == pilotID {
			return a, true
		}
	}
	return AttemptState{}, false
}

// Events returns the trace events of one type, in order.
func (r *Result) Events(typ string) []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
