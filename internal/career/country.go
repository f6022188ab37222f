package career

import (
	"strconv"
	"strings"
)

// Country is a game country code (101, 102, ...).
type Country int

// Supported countries.
const (
	USSR         Country = 101
	GreatBritain Country = 102
	UnitedStates Country = 103
	Germany      Country = 201
)

// DefaultCountry is used when a pilot's country cannot be determined.
const DefaultCountry = Germany

// CountryInfo holds the per-country presentation references.
type CountryInfo struct {
	Code        string
	Name        string
	Ceremony    string // ceremony image file name
	Certificate string // certificate template file name
}

// Countries is the lookup table for every supported country. Entry points
// needing per-country data go through Info rather than switching on codes.
var Countries = map[Country]CountryInfo{
	USSR:         {Code: "RU", Name: "USSR", Ceremony: "Ceremony_RU.png", Certificate: "certificate_template_CCCP.png"},
	GreatBritain: {Code: "GB", Name: "Great Britain", Ceremony: "Ceremony_GB.png", Certificate: "certificate_template_GB.png"},
	UnitedStates: {Code: "US", Name: "United States", Ceremony: "Ceremony_US.png", Certificate: "certificate_template_US.png"},
	Germany:      {Code: "DE", Name: "Germany", Ceremony: "Ceremony_DE.png", Certificate: "certificate_template.png"},
}

// Info returns the table entry for c.
func (c Country) Info() (CountryInfo, bool) {
	info, ok := Countries[c]
	return info, ok
}

// Supported reports whether c has a table entry.
func (c Country) Supported() bool {
	_, ok := Countries[c]
	return ok
}

func (c Country) String() string {
	if info, ok := Countries[c]; ok {
		return info.Code
	}
	return strconv.Itoa(int(c))
}

// CountryFromConfigCode derives a squadron's country from its configuration
// code. The code's high-order digits are the country: configCode div 1000.
func CountryFromConfigCode(configCode int64) Country {
	return Country(configCode / 1000)
}

const (
	birthCountryTag  = "birthCountryInfo="
	startSquadronTag = "startSquadronInfo="
)

// BirthCountry parses the birthCountryInfo tag embedded in a pilot
// description ("...birthCountryInfo=101&...").
func BirthCountry(description string) (Country, bool) {
	v, ok := descriptionTag(description, birthCountryTag)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return Country(n), true
}

// StartSquadronTag returns the description fragment marking a pilot's
// starting squadron, for LIKE matching.
func StartSquadronTag(squadronID int64) string {
	return startSquadronTag + strconv.FormatInt(squadronID, 10)
}

// StartSquadron parses the startSquadronInfo tag of a pilot description.
func StartSquadron(description string) (int64, bool) {
	v, ok := descriptionTag(description, startSquadronTag)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func descriptionTag(description, tag string) (string, bool) {
	_, rest, found := strings.Cut(description, tag)
	if !found {
		return "", false
	}
	v, _, _ := strings.Cut(rest, "&")
	return strings.TrimSpace(v), true
}
