// Package config loads the cache configuration from CUE.
//
// User files are unified with the embedded #Config schema, which supplies
// defaults and rejects unknown fields:
//
//	database: "/var/cache/icons.db"
//	icon: pixel_size: 144
//	mem_cache: {mode: "lru", size: 512}
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaSource string

// Config is the decoded configuration.
type Config struct {
	Database       string         `json:"database"`
	ReleaseVersion int            `json:"release_version"`
	Icon           IconConfig     `json:"icon"`
	System         SystemConfig   `json:"system"`
	MemCache       MemCacheConfig `json:"mem_cache"`
	IgnorePackages []IgnoreRule   `json:"ignore_packages"`
	LogLevel       string         `json:"log_level"`
}

type IconConfig struct {
	PixelSize int `json:"pixel_size"`
	DPI       int `json:"dpi"`
}

type SystemConfig struct {
	Locales         []string `json:"locales"`
	PlatformVersion int      `json:"platform_version"`
}

type MemCacheConfig struct {
	Mode string `json:"mode"`
	Size int    `json:"size"`
}

// IgnoreRule keeps the rows of Packages for User during reconciliation.
type IgnoreRule struct {
	User     int      `json:"user"`
	Packages []string `json:"packages"`
}

// ConfigError is a configuration problem, positioned in the source file
// when CUE knows where it came from.
type ConfigError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ConfigError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Default returns the schema defaults.
func Default() *Config {
	cfg, err := Parse("default.cue", nil)
	if err != nil {
		panic(fmt.Sprintf("config: schema defaults do not decode: %v", err))
	}
	return cfg
}

// Load reads a CUE file. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(path, data)
}

// Parse unifies data with the schema and decodes the result. filename is
// used in error positions.
func Parse(filename string, data []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	user := ctx.CompileBytes(data, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, formatCUEError(err)
	}
	if err := cfg.check(v); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// check enforces the rules the schema does not express.
func (c *Config) check(v cue.Value) error {
	if c.MemCache.Mode == "lru" && c.MemCache.Size == 0 {
		return &ConfigError{
			Field:   "mem_cache.size",
			Message: "lru mode needs a positive size",
			Pos:     v.LookupPath(cue.ParsePath("mem_cache")).Pos(),
		}
	}
	if c.Database == "" {
		return &ConfigError{
			Field:   "database",
			Message: "database path must not be empty",
			Pos:     v.LookupPath(cue.ParsePath("database")).Pos(),
		}
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &ConfigError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return &ConfigError{Field: "cue", Message: first.Error()}
}
