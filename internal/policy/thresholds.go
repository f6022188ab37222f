package policy

import (
	"fmt"

	"github.com/roach88/rankwatch/internal/career"
)

// MinRank is the lowest rank the policy will promote from.
const MinRank = 4

// DefaultCeiling applies to countries without a configured ceiling.
const DefaultCeiling = 5

// Threshold is one row of the merit table.
type Threshold struct {
	PCP             float64 `yaml:"pcp" json:"pcp"`
	Sorties         int     `yaml:"sorties" json:"sorties"`
	MaxFailureRatio float64 `yaml:"max_failure_ratio" json:"max_failure_ratio"`
}

// Thresholds is indexed by rank - MinRank.
type Thresholds []Threshold

// DefaultThresholds is the stock merit table.
var DefaultThresholds = Thresholds{
	{PCP: 210, Sorties: 60, MaxFailureRatio: 0.10},
	{PCP: 270, Sorties: 80, MaxFailureRatio: 0.10},
	{PCP: 340, Sorties: 100, MaxFailureRatio: 0.10},
	{PCP: 420, Sorties: 150, MaxFailureRatio: 0.075},
	{PCP: 500, Sorties: 200, MaxFailureRatio: 0.075},
	{PCP: 590, Sorties: 250, MaxFailureRatio: 0.075},
	{PCP: 690, Sorties: 350, MaxFailureRatio: 0.07},
	{PCP: 800, Sorties: 450, MaxFailureRatio: 0.06},
	{PCP: 920, Sorties: 600, MaxFailureRatio: 0.05},
}

// For returns the row governing a promotion from rank.
func (t Thresholds) For(rank int) (Threshold, bool) {
	idx := rank - MinRank
	if idx < 0 || idx >= len(t) {
		return Threshold{}, false
	}
	return t[idx], true
}

// Validate checks that every row is usable.
func (t Thresholds) Validate() error {
	for i, row := range t {
		if row.PCP < 0 || row.Sorties < 0 {
			return fmt.Errorf("threshold %d: negative requirement", i)
		}
		if row.MaxFailureRatio < 0 || row.MaxFailureRatio > 1 {
			return fmt.Errorf("threshold %d: max_failure_ratio %v out of [0,1]", i, row.MaxFailureRatio)
		}
	}
	return nil
}

// Ceilings maps a country to the highest rank its pilots may reach.
type Ceilings map[career.Country]int

// DefaultCeilings holds the stock ceiling for every supported country.
func DefaultCeilings() Ceilings {
	c := make(Ceilings, len(career.Countries))
	for country := range career.Countries {
		c[country] = DefaultCeiling
	}
	return c
}

// Ceiling returns the ceiling for country, DefaultCeiling when unmapped.
func (c Ceilings) Ceiling(country career.Country) int {
	if v, ok := c[country]; ok {
		return v
	}
	return DefaultCeiling
}
