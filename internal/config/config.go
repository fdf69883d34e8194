package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"icsgen/internal/ics"
)

// Environment variables that override values read from the YAML file.
const (
	EnvListen    = "ICSGEN_LISTEN"
	EnvTimezone  = "ICSGEN_TIMEZONE"
	EnvLogLevel  = "ICSGEN_LOG_LEVEL"
	EnvOutputDir = "ICSGEN_OUTPUT_DIR"
)

const (
	defaultListen   = "127.0.0.1:8080"
	defaultTimezone = "UTC"
	defaultLogLevel = "info"

	LineEndingCRLF = "crlf"
	LineEndingLF   = "lf"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address of the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used for date-only and local date-time
	// parameters (e.g. "Europe/Paris").
	Timezone string `yaml:"timezone" json:"timezone"`

	// ProductID is written as PRODID into every generated calendar.
	ProductID string `yaml:"product_id" json:"product_id"`

	// LineEnding is "crlf" (default) or "lf".
	LineEnding string `yaml:"line_ending" json:"line_ending"`

	// MaxAttendees caps the attendee list of one event. Zero disables the cap.
	MaxAttendees int `yaml:"max_attendees" json:"max_attendees"`

	// VerifyOutput parses every generated document back before returning it.
	VerifyOutput bool `yaml:"verify_output" json:"verify_output"`

	// LogLevel is one of "debug", "info" or "error".
	LogLevel string `yaml:"log_level" json:"log_level"`

	// OutputDir is where -once mode writes documents when -out is not given.
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:     defaultListen,
		Timezone:   defaultTimezone,
		ProductID:  ics.DefaultProductID,
		LineEnding: LineEndingCRLF,
		LogLevel:   defaultLogLevel,
		OutputDir:  ".",
		BasicAuth:  nil,
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.ProductID == "" {
		c.ProductID = ics.DefaultProductID
	}
	switch strings.ToLower(c.LineEnding) {
	case LineEndingLF:
		c.LineEnding = LineEndingLF
	default:
		c.LineEnding = LineEndingCRLF
	}
	if c.MaxAttendees < 0 {
		c.MaxAttendees = 0
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// ApplyEnv overrides fields from ICSGEN_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvTimezone); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		c.OutputDir = v
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// BuilderOptions translates the document settings into builder options.
func (c *Config) BuilderOptions() []ics.Option {
	nl := ics.NewLineCRLF
	if c.LineEnding == LineEndingLF {
		nl = ics.NewLineLF
	}
	return []ics.Option{
		ics.WithProductID(c.ProductID),
		ics.WithNewLine(nl),
		ics.WithMaxAttendees(c.MaxAttendees),
		ics.WithVerify(c.VerifyOutput),
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none are
// given) into the process environment. Missing files are ignored and
// variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// FromEnv returns the defaults with environment overrides applied, for
// deployments without a config file.
func FromEnv() *Config {
	cfg := DefaultConfig()
	cfg.ApplyEnv()
	cfg.Normalize()
	return cfg
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is unmarshaled into Config.
//
// In both cases environment overrides are applied and defaults normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			saveErr := Save(path, cfg)
			cfg.ApplyEnv()
			cfg.Normalize()
			// Even if save fails, return cfg with error so caller can decide.
			return cfg, saveErr
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.ApplyEnv()
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg atomically (temp file + rename) with 0600 permissions,
// creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".icsgen-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
