package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rankwatch/internal/career"
)

const validScenario = `
name: test_scenario
description: "Test scenario for validation"
rolls: [0.5]
config:
  cooldown_days: 3
campaign:
  squadrons:
    - {id: 10, config_id: 201003}
  pilots:
    - {id: 1, first_name: Hans, last_name: Weber, rank: 4, pcp: 250, squadron: 10, player: true, birth_country: 101, start_squadron: 10}
  missions:
    - {id: 1, date: "1941-07-01", squadron: 10}
  attempts:
    - {pilot: 1, last_attempt: "1941-06-30", fail_count: 2}
steps:
  - mission: {id: 2, date: "1941-07-02", squadron: 10}
    flown: [1]
assertions:
  - {type: rank, pilot: 1, rank: 5}
  - {type: attempt, pilot: 1, last_success: true}
  - {type: notifications, kinds: []}
  - {type: sweeps, count: 1}
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validScenario), 0644))

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", s.Name)
	assert.Equal(t, []float64{0.5}, s.Rolls)
	require.Len(t, s.Campaign.Pilots, 1)
	assert.True(t, s.Campaign.Pilots[0].Player)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, []int64{1}, s.Steps[0].Flown)
	require.Len(t, s.Assertions, 4)
	assert.NotNil(t, s.Assertions[2].Kinds)
	assert.Empty(t, s.Assertions[2].Kinds)
	require.NotNil(t, s.Assertions[3].Count)
	assert.Equal(t, 1, *s.Assertions[3].Count)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(validScenario + "flow_token: abc\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	base := `
campaign:
  pilots:
    - {id: 1, rank: 4}
`
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\n" + base + "steps: [{set_ranks: [{pilot: 1, rank: 4}]}]\nassertions: [{type: sweeps, count: 0}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\n" + base + "steps: [{set_ranks: [{pilot: 1, rank: 4}]}]\nassertions: [{type: sweeps, count: 0}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no pilots",
			content: "name: n\ndescription: d\nsteps: [{set_ranks: [{pilot: 1, rank: 4}]}]\nassertions: [{type: sweeps, count: 0}]\n",
			wantErr: "campaign.pilots is required",
		},
		{
			name:    "no steps",
			content: "name: n\ndescription: d\n" + base + "assertions: [{type: sweeps, count: 0}]\n",
			wantErr: "steps list is required",
		},
		{
			name:    "no assertions",
			content: "name: n\ndescription: d\n" + base + "steps: [{set_ranks: [{pilot: 1, rank: 4}]}]\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "roll out of range",
			content: "name: n\ndescription: d\nrolls: [1.0]\n" + base + "steps: [{set_ranks: [{pilot: 1, rank: 4}]}]\nassertions: [{type: sweeps, count: 0}]\n",
			wantErr: "rolls[0]",
		},
		{
			name:    "empty step",
			content: "name: n\ndescription: d\n" + base + "steps: [{}]\nassertions: [{type: sweeps, count: 0}]\n",
			wantErr: "steps[0]: nothing to do",
		},
		{
			name:    "flown without mission",
			content: "name: n\ndescription: d\n" + base + "steps: [{set_ranks: [{pilot: 1, rank: 4}], flown: [1]}]\nassertions: [{type: sweeps, count: 0}]\n",
			wantErr: "flown requires a mission",
		},
		{
			name: "duplicate mission",
			content: "name: n\ndescription: d\n" + base + "  missions: [{id: 1, date: \"1941-07-01\"}]\n" +
				"steps: [{mission: {id: 1, date: \"1941-07-02\"}}]\nassertions: [{type: sweeps, count: 0}]\n",
			wantErr: "duplicate id 1",
		},
		{
			name:    "attempt for unknown pilot",
			content: "name: n\ndescription: d\n" + base + "  attempts: [{pilot: 9, last_attempt: \"1941-07-01\"}]\nsteps: [{set_ranks: [{pilot: 1, rank: 4}]}]\nassertions: [{type: sweeps, count: 0}]\n",
			wantErr: "unknown pilot 9",
		},
		{
			name:    "unknown assertion",
			content: "name: n\ndescription: d\n" + base + "steps: [{set_ranks: [{pilot: 1, rank: 4}]}]\nassertions: [{type: trace_order}]\n",
			wantErr: `unknown assertion type "trace_order"`,
		},
		{
			name:    "sweeps without count",
			content: "name: n\ndescription: d\n" + base + "steps: [{set_ranks: [{pilot: 1, rank: 4}]}]\nassertions: [{type: sweeps}]\n",
			wantErr: "non-negative count is required",
		},
		{
			name:    "notifications without kinds",
			content: "name: n\ndescription: d\n" + base + "steps: [{set_ranks: [{pilot: 1, rank: 4}]}]\nassertions: [{type: notifications}]\n",
			wantErr: "kinds list is required",
		},
		{
			name:    "attempt without fields",
			content: "name: n\ndescription: d\n" + base + "steps: [{set_ranks: [{pilot: 1, rank: 4}]}]\nassertions: [{type: attempt, pilot: 1}]\n",
			wantErr: "attempt needs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestScenario_PromotionConfig(t *testing.T) {
	s, err := ParseScenario([]byte(validScenario))
	require.NoError(t, err)

	cfg, err := s.PromotionConfig()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.CooldownDays)

	s.Config.Kind = 0
	cfg, err = s.PromotionConfig()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.CooldownDays)
}

func TestPilotSpec_Description(t *testing.T) {
	p := PilotSpec{ID: 4, BirthCountry: 103, StartSquadron: 30, Player: true}

	desc := p.description()
	country, ok := career.BirthCountry(desc)
	require.True(t, ok)
	assert.Equal(t, career.UnitedStates, country)
	sq, ok := career.StartSquadron(desc)
	require.True(t, ok)
	assert.Equal(t, int64(30), sq)
	assert.Equal(t, "personage-4", p.personage())

	assert.Empty(t, PilotSpec{ID: 5}.description())
	assert.Empty(t, PilotSpec{ID: 5}.personage())
}
