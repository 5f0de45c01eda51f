// Package config holds the settings shared by the editor, the stamper and
// the command line tool. Files are TOML or YAML, chosen by extension, and
// DOCSIGN_* environment variables override file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownFormat    = errors.New("unknown config format")
	ErrValidationFailed = errors.New("validation failed")
)

// ParseError reports a file that could not be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

type Config struct {
	Locator Locator `toml:"locator" yaml:"locator"`
	Stamp   Stamp   `toml:"stamp" yaml:"stamp"`
	Output  Output  `toml:"output" yaml:"output"`
	Log     Log     `toml:"log" yaml:"log"`
}

type Locator struct {
	// Threshold is the minimum fuzzy similarity on a 0-100 scale.
	Threshold float64 `toml:"threshold" yaml:"threshold"`
}

type Stamp struct {
	// FontPath is a TrueType font embedded in stamps; empty selects Helvetica.
	FontPath string `toml:"font_path" yaml:"font_path"`
	// DefaultX, DefaultY, DefaultWidth and DefaultHeight place a stamp when
	// no signature field is given.
	DefaultX      float64 `toml:"default_x" yaml:"default_x"`
	DefaultY      float64 `toml:"default_y" yaml:"default_y"`
	DefaultWidth  float64 `toml:"default_width" yaml:"default_width"`
	DefaultHeight float64 `toml:"default_height" yaml:"default_height"`
}

type Output struct {
	// Suffix is appended to the input file name of saved results.
	Suffix string `toml:"suffix" yaml:"suffix"`
}

type Log struct {
	Level string `toml:"level" yaml:"level"`
}

func Default() Config {
	return Config{
		Locator: Locator{Threshold: 98},
		Stamp:   Stamp{DefaultX: 400, DefaultY: 500, DefaultWidth: 10, DefaultHeight: 10},
		Output:  Output{Suffix: "_output"},
		Log:     Log{Level: "info"},
	}
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Locator.Threshold < 0 || c.Locator.Threshold > 100 {
		return fmt.Errorf("%w: locator.threshold %v outside [0, 100]", ErrValidationFailed, c.Locator.Threshold)
	}
	if c.Stamp.DefaultWidth < 0 || c.Stamp.DefaultHeight < 0 {
		return fmt.Errorf("%w: stamp default size must not be negative", ErrValidationFailed)
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log.level %q", ErrValidationFailed, c.Log.Level)
	}
	return nil
}

// Load reads path over the defaults, applies the environment and
// validates the result. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := Decode(path, data, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Decode parses data into cfg according to the extension of name.
func Decode(name string, data []byte, cfg *Config) error {
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		_, err = toml.Decode(string(data), cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
	if err != nil {
		return &ParseError{Path: name, Err: err}
	}
	return nil
}

const envPrefix = "DOCSIGN_"

// ApplyEnv overrides fields from environment variables looked up with
// lookup, normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(envPrefix + "THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sTHRESHOLD: %w", envPrefix, err)
		}
		c.Locator.Threshold = f
	}
	if v, ok := lookup(envPrefix + "FONT_PATH"); ok {
		c.Stamp.FontPath = v
	}
	if v, ok := lookup(envPrefix + "OUTPUT_SUFFIX"); ok {
		c.Output.Suffix = v
	}
	if v, ok := lookup(envPrefix + "LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	return nil
}
