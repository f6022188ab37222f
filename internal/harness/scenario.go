package harness

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rankwatch/internal/career"
	"github.com/roach88/rankwatch/internal/config"
)

// Scenario defines one promotion test case.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Rolls are the values the player's promotion rolls draw, in order.
	Rolls []float64 `yaml:"rolls,omitempty"`

	// Config is a promotion_config.yaml fragment applied on top of the
	// defaults (max_ranks, cooldown_days, thresholds, ...).
	Config yaml.Node `yaml:"config,omitempty"`

	// Campaign is the save as it is when the watcher starts.
	Campaign CampaignSetup `yaml:"campaign"`

	// Steps run in order; each one is followed by a poll.
	Steps []Step `yaml:"steps"`

	Assertions []Assertion `yaml:"assertions"`
}

// CampaignSetup is the initial content of the campaign save.
type CampaignSetup struct {
	Squadrons []SquadronSpec `yaml:"squadrons,omitempty"`
	Pilots    []PilotSpec    `yaml:"pilots"`
	Missions  []MissionSpec  `yaml:"missions,omitempty"`
	Events    []EventSpec    `yaml:"events,omitempty"`
	Attempts  []AttemptSpec  `yaml:"attempts,omitempty"`
}

// SquadronSpec is a squadron row.
type SquadronSpec struct {
	ID       int64 `yaml:"id"`
	ConfigID int64 `yaml:"config_id"`
}

// PilotSpec is a pilot row.
type PilotSpec struct {
	ID          int64  `yaml:"id"`
	FirstName   string `yaml:"first_name"`
	LastName    string `yaml:"last_name"`
	Rank        int    `yaml:"rank"`
	PCP         int    `yaml:"pcp,omitempty"`
	Sorties     int    `yaml:"sorties,omitempty"`
	GoodSorties int    `yaml:"good_sorties,omitempty"`
	Squadron    int64  `yaml:"squadron,omitempty"`

	// Player binds the pilot to a personage, making it a player candidate.
	Player bool `yaml:"player,omitempty"`

	// BirthCountry and StartSquadron become description tags.
	BirthCountry  int   `yaml:"birth_country,omitempty"`
	StartSquadron int64 `yaml:"start_squadron,omitempty"`
}

// MissionSpec is a mission row. A zero squadron is stored as NULL.
type MissionSpec struct {
	ID       int64  `yaml:"id"`
	Date     string `yaml:"date"`
	Squadron int64  `yaml:"squadron,omitempty"`
}

// EventSpec records that a pilot flew a mission.
type EventSpec struct {
	Pilot   int64  `yaml:"pilot"`
	Mission int64  `yaml:"mission"`
	Date    string `yaml:"date"`
}

// AttemptSpec is an attempt record present before the watcher starts.
type AttemptSpec struct {
	Pilot       int64  `yaml:"pilot"`
	LastAttempt string `yaml:"last_attempt"`
	LastSuccess bool   `yaml:"last_success,omitempty"`
	FailCount   int    `yaml:"fail_count,omitempty"`
}

// Step is what the game does between two polls.
type Step struct {
	// SetRanks and DeletePilots are applied first, as the game would
	// between missions.
	SetRanks     []RankSpec `yaml:"set_ranks,omitempty"`
	DeletePilots []int64    `yaml:"delete_pilots,omitempty"`

	// Mission is appended to the save, with an event for every pilot in
	// Flown dated on the mission day.
	Mission *MissionSpec `yaml:"mission,omitempty"`
	Flown   []int64      `yaml:"flown,omitempty"`
}

// RankSpec overwrites a pilot's rank.
type RankSpec struct {
	Pilot int64 `yaml:"pilot"`
	Rank  int   `yaml:"rank"`
}

// Assertion is a check evaluated once all steps have run.
type Assertion struct {
	Type string `yaml:"type"`

	Pilot int64 `yaml:"pilot,omitempty"`
	Rank  int   `yaml:"rank,omitempty"`

	LastAttempt string `yaml:"last_attempt,omitempty"`
	LastSuccess *bool  `yaml:"last_success,omitempty"`
	FailCount   *int   `yaml:"fail_count,omitempty"`

	Kinds []string `yaml:"kinds,omitempty"`
	Count *int     `yaml:"count,omitempty"`
}

// Assertion types.
const (
	AssertRank          = "rank"
	AssertAttempt       = "attempt"
	AssertNoAttempt     = "no_attempt"
	AssertNotifications = "notifications"
	AssertSweeps        = "sweeps"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// PromotionConfig resolves the scenario's config fragment against the
// defaults.
func (s *Scenario) PromotionConfig() (*config.Config, error) {
	if s.Config.Kind == 0 {
		return config.Default(), nil
	}
	data, err := yaml.Marshal(&s.Config)
	if err != nil {
		return nil, fmt.Errorf("encode scenario config: %w", err)
	}
	return config.Parse(s.Name+" config", data)
}

// description renders the pilot's description tags the way the game
// stores them.
func (p PilotSpec) description() string {
	var tags []string
	if p.BirthCountry != 0 {
		tags = append(tags, "birthCountryInfo="+strconv.Itoa(p.BirthCountry))
	}
	if p.StartSquadron != 0 {
		tags = append(tags, career.StartSquadronTag(p.StartSquadron))
	}
	return strings.Join(tags, "&")
}

func (p PilotSpec) personage() string {
	if !p.Player {
		return ""
	}
	return "personage-" + strconv.FormatInt(p.ID, 10)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Campaign.Pilots) == 0 {
		return fmt.Errorf("campaign.pilots is required and must be non-empty")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, r := range s.Rolls {
		if r < 0 || r >= 1 {
			return fmt.Errorf("rolls[%d]: %v is outside [0, 1)", i, r)
		}
	}

	pilots := make(map[int64]bool, len(s.Campaign.Pilots))
	for i, p := range s.Campaign.Pilots {
		if p.ID <= 0 {
			return fmt.Errorf("campaign.pilots[%d]: id must be positive", i)
		}
		if pilots[p.ID] {
			return fmt.Errorf("campaign.pilots[%d]: duplicate id %d", i, p.ID)
		}
		pilots[p.ID] = true
	}

	missions := make(map[int64]bool)
	for i, m := range s.Campaign.Missions {
		if err := validateMission(fmt.Sprintf("campaign.missions[%d]", i), m, missions); err != nil {
			return err
		}
	}

	for i, a := range s.Campaign.Attempts {
		if !pilots[a.Pilot] {
			return fmt.Errorf("campaign.attempts[%d]: unknown pilot %d", i, a.Pilot)
		}
		if _, err := career.ParseDate(a.LastAttempt); err != nil {
			return fmt.Errorf("campaign.attempts[%d]: %w", i, err)
		}
		if a.FailCount < 0 {
			return fmt.Errorf("campaign.attempts[%d]: fail_count must be non-negative", i)
		}
	}

	for i, step := range s.Steps {
		if step.Mission == nil && len(step.SetRanks) == 0 && len(step.DeletePilots) == 0 {
			return fmt.Errorf("steps[%d]: nothing to do", i)
		}
		if step.Mission != nil {
			if err := validateMission(fmt.Sprintf("steps[%d].mission", i), *step.Mission, missions); err != nil {
				return err
			}
		} else if len(step.Flown) > 0 {
			return fmt.Errorf("steps[%d]: flown requires a mission", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

func validateMission(where string, m MissionSpec, seen map[int64]bool) error {
	if m.ID <= 0 {
		return fmt.Errorf("%s: id must be positive", where)
	}
	if seen[m.ID] {
		return fmt.Errorf("%s: duplicate id %d", where, m.ID)
	}
	seen[m.ID] = true
	if m.Date == "" {
		return fmt.Errorf("%s: date is required", where)
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRank:
		if a.Pilot == 0 || a.Rank == 0 {
			return fmt.Errorf("assertions[%d]: pilot and rank are required for rank", index)
		}
	case AssertAttempt:
		if a.Pilot == 0 {
			return fmt.Errorf("assertions[%d]: pilot is required for attempt", index)
		}
		if a.LastAttempt == "" && a.LastSuccess == nil && a.FailCount == nil {
			return fmt.Errorf("assertions[%d]: attempt needs last_attempt, last_success or fail_count", index)
		}
	case AssertNoAttempt:
		if a.Pilot == 0 {
			return fmt.Errorf("assertions[%d]: pilot is required for no_attempt", index)
		}
	case AssertNotifications:
		if a.Kinds == nil {
			return fmt.Errorf("assertions[%d]: kinds list is required for notifications (use [] for none)", index)
		}
	case AssertSweeps:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for sweeps", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
