// Package insignia resolves rank titles and insignia images.
//
// The resolver is consulted when a promotion notification is built. It never
// fails a sweep: an unknown country or rank yields a generic title and empty
// image references.
package insignia

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rankwatch/internal/career"
)

//go:embed ranks.yaml
var defaultCatalog []byte

// CatalogFile is the catalogue file name looked up under the insignia base.
const CatalogFile = "ranks.yaml"

// FallbackLocale is used when a title has no entry for the requested locale.
const FallbackLocale = "eng"

// Rank is a resolved rank for display.
type Rank struct {
	Title         string
	Insignia      string
	SmallInsignia string
}

// Resolver looks up the display data of a rank.
type Resolver interface {
	Lookup(country career.Country, rank, year int, locale string) Rank
}

type catalogFile struct {
	Countries map[int]countryEntry `yaml:"countries"`
}

type countryEntry struct {
	Dir      string         `yaml:"dir"`
	Variants []variantEntry `yaml:"variants"`
	Ranks    []rankEntry    `yaml:"ranks"`
}

type variantEntry struct {
	FromYear int    `yaml:"from_year"`
	Dir      string `yaml:"dir"`
}

type rankEntry struct {
	Rank   int               `yaml:"rank"`
	Titles map[string]string `yaml:"titles"`
}

// Catalog is a Resolver backed by a YAML rank catalogue.
type Catalog struct {
	base      string
	countries map[career.Country]countryEntry
}

// Load reads <base>/ranks.yaml, falling back to the built-in catalogue when
// the file does not exist. Image paths are resolved under base.
func Load(base string) (*Catalog, error) {
	data, err := os.ReadFile(filepath.Join(base, CatalogFile))
	if errors.Is(err, fs.ErrNotExist) {
		return Parse(base, defaultCatalog)
	}
	if err != nil {
		return nil, fmt.Errorf("read rank catalogue: %w", err)
	}
	return Parse(base, data)
}

// Default returns the built-in catalogue with images resolved under base.
func Default(base string) *Catalog {
	c, err := Parse(base, defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("built-in rank catalogue: %v", err))
	}
	return c
}

// Parse decodes a catalogue. Unknown fields are rejected.
func Parse(base string, data []byte) (*Catalog, error) {
	var f catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse rank catalogue: %w", err)
	}

	c := &Catalog{base: base, countries: make(map[career.Country]countryEntry, len(f.Countries))}
	for code, entry := range f.Countries {
		if entry.Dir == "" {
			entry.Dir = strconv.Itoa(code)
		}
		c.countries[career.Country(code)] = entry
	}
	return c, nil
}

// Lookup implements Resolver.
func (c *Catalog) Lookup(country career.Country, rank, year int, locale string) Rank {
	entry, ok := c.countries[country]
	if !ok {
		return Rank{Title: genericTitle(rank)}
	}

	r := Rank{Title: genericTitle(rank)}
	for _, re := range entry.Ranks {
		if re.Rank != rank {
			continue
		}
		if t := pickTitle(re.Titles, locale); t != "" {
			r.Title = t
		}
		dir := entry.dirFor(year)
		file := strconv.Itoa(rank) + ".png"
		r.Insignia = filepath.Join(c.base, dir, file)
		r.SmallInsignia = filepath.Join(c.base, dir, "small", file)
		break
	}
	return r
}

// dirFor picks the image directory in effect for year. Variants apply from
// their year onward; the latest applicable one wins.
func (e countryEntry) dirFor(year int) string {
	dir, from := e.Dir, 0
	for _, v := range e.Variants {
		if year >= v.FromYear && v.FromYear >= from {
			dir, from = v.Dir, v.FromYear
		}
	}
	return dir
}

func pickTitle(titles map[string]string, locale string) string {
	if t, ok := titles[locale]; ok && t != "" {
		return t
	}
	return titles[FallbackLocale]
}

func genericTitle(rank int) string {
	return "Rank " + strconv.Itoa(rank)
}
