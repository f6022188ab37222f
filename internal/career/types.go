package career

import "time"

// Pilot is a row of the game's pilot table.
//
// Rank, PCP, Sorties and GoodSorties are scanned loosely: the game stores
// them in untyped columns and a malformed value is read as zero. Malformed
// records which fields were coerced so callers can log them.
type Pilot struct {
	ID          int64
	FirstName   string
	LastName    string
	Rank        int
	PCP         float64
	Sorties     int
	GoodSorties int
	Description string
	PersonageID string
	SquadronID  int64

	// Malformed lists the column names that could not be parsed.
	Malformed []string
}

// FullName joins the first and last name.
func (p Pilot) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// IsPersonage reports whether the pilot is bound to a human personage.
func (p Pilot) IsPersonage() bool {
	return p.PersonageID != ""
}

// FailureRatio is the share of sorties that were not good.
// A pilot with no sorties has a ratio of 1.0.
func (p Pilot) FailureRatio() float64 {
	if p.Sorties <= 0 {
		return 1.0
	}
	return float64(p.Sorties-p.GoodSorties) / float64(p.Sorties)
}

// Squadron maps a squadron to its configuration code.
type Squadron struct {
	ID       int64
	ConfigID int64
}

// Country returns the squadron's country, see CountryFromConfigCode.
func (s Squadron) Country() Country {
	return CountryFromConfigCode(s.ConfigID)
}

// Mission is a row of the game's mission table.
// SquadronID is zero when the row has no owning squadron (HasSquadron false).
type Mission struct {
	ID          int64
	Date        string
	SquadronID  int64
	HasSquadron bool
}

// Event is a row of the game's event table: the pilot flew the mission.
type Event struct {
	PilotID   int64
	MissionID int64
	Date      string
}

// AttemptRecord is the durable promotion-attempt history of one pilot.
type AttemptRecord struct {
	PilotID     int64
	LastAttempt time.Time
	LastSuccess bool
	FailCount   int
}
