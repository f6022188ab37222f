// Package config loads promotion_config.yaml.
//
// The file is checked against an embedded CUE schema, then decoded
// strictly. Missing fields take defaults; max_ranks entries are merged over
// the default ceilings. A Config is immutable once loaded.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rankwatch/internal/career"
	"github.com/roach88/rankwatch/internal/insignia"
	"github.com/roach88/rankwatch/internal/policy"
	"github.com/roach88/rankwatch/internal/process"
)

// DefaultPath is the config file name looked up in the working directory.
const DefaultPath = "promotion_config.yaml"

// Defaults.
const (
	DefaultLanguage     = "ENG"
	DefaultPollInterval = 5 * time.Second
)

// ErrInvalid is wrapped by every schema or value error.
var ErrInvalid = errors.New("invalid config")

// LocaleMap maps a display language code to a rank catalogue locale.
var LocaleMap = map[string]string{
	"RU":  "rus",
	"CHS": "chs",
	"ENG": "eng",
	"DEU": "ger",
	"ESP": "spa",
	"POL": "pol",
	"FRA": "fra",
}

// Config is the resolved configuration.
type Config struct {
	GamePath string
	Language string

	PollInterval time.Duration

	Ceilings      policy.Ceilings
	Thresholds    policy.Thresholds
	CooldownDays  int
	FailThreshold int

	ProcessNames    []string
	FallbackCountry career.Country

	LogFile string

	dbPath      string
	insigniaDir string
	resourceDir string
}

// file is the on-disk shape.
type file struct {
	GamePath        string            `yaml:"game_path,omitempty"`
	DBPath          string            `yaml:"db_path,omitempty"`
	InsigniaDir     string            `yaml:"insignia_dir,omitempty"`
	ResourceDir     string            `yaml:"resource_dir,omitempty"`
	LogFile         string            `yaml:"log_file,omitempty"`
	Language        string            `yaml:"language,omitempty"`
	PollInterval    string            `yaml:"poll_interval,omitempty"`
	MaxRanks        map[int]int       `yaml:"max_ranks,omitempty"`
	Thresholds      policy.Thresholds `yaml:"thresholds,omitempty"`
	CooldownDays    *int              `yaml:"cooldown_days,omitempty"`
	FailThreshold   *int              `yaml:"fail_threshold,omitempty"`
	ProcessNames    []string          `yaml:"process_names,omitempty"`
	FallbackCountry int               `yaml:"fallback_country,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Language:        DefaultLanguage,
		PollInterval:    DefaultPollInterval,
		Ceilings:        policy.DefaultCeilings(),
		Thresholds:      append(policy.Thresholds(nil), policy.DefaultThresholds...),
		CooldownDays:    policy.DefaultCooldownDays,
		FailThreshold:   policy.DefaultFailThreshold,
		ProcessNames:    append([]string(nil), process.DefaultNames...),
		FallbackCountry: career.DefaultCountry,
	}
}

// Load reads and validates the config file at path. The error wraps
// os.ErrNotExist when the file is missing and ErrInvalid when it does not
// validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(path, data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, returning Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse validates and decodes config data. name is used in error messages.
func Parse(name string, data []byte) (*Config, error) {
	if err := validateSchema(name, data); err != nil {
		return nil, err
	}

	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, name, err)
	}

	return f.resolve(name)
}

func (f file) resolve(name string) (*Config, error) {
	cfg := Default()
	cfg.GamePath = f.GamePath
	cfg.LogFile = f.LogFile
	cfg.dbPath = f.DBPath
	cfg.insigniaDir = f.InsigniaDir
	cfg.resourceDir = f.ResourceDir

	if f.Language != "" {
		cfg.Language = f.Language
	}
	if f.PollInterval != "" {
		d, err := time.ParseDuration(f.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: poll_interval: %v", ErrInvalid, name, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("%w: %s: poll_interval must be positive", ErrInvalid, name)
		}
		cfg.PollInterval = d
	}
	for country, ceiling := range f.MaxRanks {
		cfg.Ceilings[career.Country(country)] = ceiling
	}
	if len(f.Thresholds) > 0 {
		if err := f.Thresholds.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, name, err)
		}
		cfg.Thresholds = f.Thresholds
	}
	if f.CooldownDays != nil {
		cfg.CooldownDays = *f.CooldownDays
	}
	if f.FailThreshold != nil {
		cfg.FailThreshold = *f.FailThreshold
	}
	if len(f.ProcessNames) > 0 {
		cfg.ProcessNames = f.ProcessNames
	}
	if f.FallbackCountry != 0 {
		cfg.FallbackCountry = career.Country(f.FallbackCountry)
	}
	return cfg, nil
}

// Save writes cfg to path. Only values that differ from the defaults, plus
// the game path, are written.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg.toFile())
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) toFile() file {
	def := Default()
	f := file{
		GamePath:    c.GamePath,
		DBPath:      c.dbPath,
		InsigniaDir: c.insigniaDir,
		ResourceDir: c.resourceDir,
		LogFile:     c.LogFile,
	}
	if c.Language != def.Language {
		f.Language = c.Language
	}
	if c.PollInterval != def.PollInterval {
		f.PollInterval = c.PollInterval.String()
	}
	for country, ceiling := range c.Ceilings {
		if def.Ceilings.Ceiling(country) != ceiling || !country.Supported() {
			if f.MaxRanks == nil {
				f.MaxRanks = map[int]int{}
			}
			f.MaxRanks[int(country)] = ceiling
		}
	}
	if !equalThresholds(c.Thresholds, def.Thresholds) {
		f.Thresholds = c.Thresholds
	}
	if c.CooldownDays != def.CooldownDays {
		f.CooldownDays = &c.CooldownDays
	}
	if c.FailThreshold != def.FailThreshold {
		f.FailThreshold = &c.FailThreshold
	}
	if !equalStrings(c.ProcessNames, def.ProcessNames) {
		f.ProcessNames = c.ProcessNames
	}
	if c.FallbackCountry != def.FallbackCountry {
		f.FallbackCountry = int(c.FallbackCountry)
	}
	return f
}

// Locale returns the rank catalogue locale for the display language.
func (c *Config) Locale() string {
	if l, ok := LocaleMap[c.Language]; ok {
		return l
	}
	return insignia.FallbackLocale
}

// DBPath returns the campaign save: db_path when set, otherwise
// <game>/data/Career/cp.db. Empty when neither is configured.
func (c *Config) DBPath() string {
	if c.dbPath != "" {
		return c.dbPath
	}
	if c.GamePath == "" {
		return ""
	}
	return filepath.Join(c.GamePath, "data", "Career", "cp.db")
}

// InsigniaDir returns the rank image base directory.
func (c *Config) InsigniaDir() string {
	if c.insigniaDir != "" {
		return c.insigniaDir
	}
	if c.GamePath == "" {
		return ""
	}
	return filepath.Join(c.GamePath, "MODS", "Ranks", "data", "swf", "il2", "charactersranks")
}

// ResourceDir returns the ceremony image directory.
func (c *Config) ResourceDir() string {
	if c.resourceDir != "" {
		return c.resourceDir
	}
	return "resources"
}

// WithDBPath returns a copy of c reading the save at path.
func (c *Config) WithDBPath(path string) *Config {
	cp := *c
	cp.dbPath = path
	return &cp
}

// PolicyOptions returns the policy options derived from c.
func (c *Config) PolicyOptions() []policy.Option {
	return []policy.Option{
		policy.WithCooldownDays(c.CooldownDays),
		policy.WithFailThreshold(c.FailThreshold),
	}
}

// Summary renders the resolved values as key/value pairs for display.
func (c *Config) Summary() map[string]string {
	return map[string]string{
		"game_path":        c.GamePath,
		"db_path":          c.DBPath(),
		"insignia_dir":     c.InsigniaDir(),
		"resource_dir":     c.ResourceDir(),
		"language":         c.Language,
		"locale":           c.Locale(),
		"poll_interval":    c.PollInterval.String(),
		"cooldown_days":    strconv.Itoa(c.CooldownDays),
		"fail_threshold":   strconv.Itoa(c.FailThreshold),
		"fallback_country": c.FallbackCountry.String(),
		"thresholds":       strconv.Itoa(len(c.Thresholds)),
	}
}

func equalThresholds(a, b policy.Thresholds) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
