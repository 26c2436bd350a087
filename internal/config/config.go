// Manages the configuration stored in config.yaml and the .env overlay.

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/carbonware/bookexchange/internal/storage/sponsor"
)

// Backends supported for the listing collection.
const (
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
)

// Config is the configuration of the book exchange store.
// Loaded from config.yaml, created with defaults if missing.
type Config struct {
	// Backend selects the listing storage: "jsonl" or "sqlite".
	Backend string `yaml:"backend"`

	Database Database `yaml:"database"`
	Sponsors Sponsors `yaml:"sponsors"`
	Seed     Seed     `yaml:"seed"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Database names the listing database and its collection.
type Database struct {
	Name       string `yaml:"name"`
	Version    int    `yaml:"version"`
	Collection string `yaml:"collection"`
}

// Sponsors configures the sponsor list.
type Sponsors struct {
	StorageKey string `yaml:"storage_key"`
	TopLimit   int    `yaml:"top_limit"`
}

// Seed controls the demo content written to empty stores.
type Seed struct {
	Books    bool `yaml:"books"`
	Sponsors bool `yaml:"sponsors"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Backend: BackendJSONL,
		Database: Database{
			Name:       "BookExchangeDB",
			Version:    1,
			Collection: "books",
		},
		Sponsors: Sponsors{
			StorageKey: sponsor.DefaultKey,
			TopLimit:   sponsor.DefaultTopLimit,
		},
		Seed:     Seed{Books: true, Sponsors: true},
		LogLevel: "info",
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendJSONL, BackendSQLite:
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendJSONL, BackendSQLite, c.Backend)
	}
	if c.Database.Name == "" {
		return errors.New("database.name is required")
	}
	if strings.ContainsAny(c.Database.Name, `/\`) {
		return fmt.Errorf("database.name %q must not contain a path separator", c.Database.Name)
	}
	if c.Database.Version < 1 {
		return errors.New("database.version must be at least 1")
	}
	if c.Database.Collection == "" {
		return errors.New("database.collection is required")
	}
	if c.Sponsors.StorageKey == "" {
		return errors.New("sponsors.storage_key is required")
	}
	if c.Sponsors.TopLimit < 0 {
		return errors.New("sponsors.top_limit must be non-negative")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Load reads the configuration at path.
// Creates the file with defaults if it doesn't exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is provided by the CLI user
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := cfg.Save(path); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: data directory
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ApplyEnvFile overlays the values of a .env file. The process environment is
// not modified. A missing file is not an error.
//
// Recognized keys: LOG_LEVEL, BACKEND, SEED_BOOKS, SEED_SPONSORS.
func (c *Config) ApplyEnvFile(path string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := c.ApplyEnv(env); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays values from env, then validates the result.
func (c *Config) ApplyEnv(env map[string]string) error {
	if v, ok := env["LOG_LEVEL"]; ok {
		c.LogLevel = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := env["BACKEND"]; ok {
		c.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	for key, dst := range map[string]*bool{"SEED_BOOKS": &c.Seed.Books, "SEED_SPONSORS": &c.Seed.Sponsors} {
		v, ok := env[key]
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
	}
	return c.Validate()
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid level %q", s)
	}
}
