// Package config loads hub configuration from defaults, an optional YAML
// file, and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"acars_hub/internal/logging"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// AH_DATABASE_PATH maps to database.path.
const EnvPrefix = "AH_"

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "AH_CONFIG"

// DefaultConfigPaths lists where a config file is searched, first hit wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/acars_hub/config.yaml",
}

// SourceConfig describes one decoder feed.
type SourceConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"` // host:port of the decoder's JSON output socket
}

// DatabaseConfig holds primary and backup store settings.
type DatabaseConfig struct {
	Path          string `koanf:"path"`            // SQLite database file, empty = in-memory
	SaveAll       bool   `koanf:"save_all"`        // persist rows even for payload-free frames
	SaveDays      int    `koanf:"save_days"`       // message retention window
	AlertSaveDays int    `koanf:"alert_save_days"` // alert match retention window

	// Backup mirrors every primary write to a second store.
	// Supported kinds: "", "clickhouse", "postgres".
	BackupKind     string `koanf:"backup_kind"`
	BackupHost     string `koanf:"backup_host"`
	BackupPort     int    `koanf:"backup_port"`
	BackupDatabase string `koanf:"backup_database"`
	BackupUser     string `koanf:"backup_user"`
	BackupPassword string `koanf:"backup_password"`
}

// AlertConfig holds the configured alert and ignore term sets.
type AlertConfig struct {
	Terms       string `koanf:"terms"`        // comma-delimited monitored terms
	IgnoreTerms string `koanf:"ignore_terms"` // comma-delimited veto terms
}

// ServerConfig holds the HTTP/WebSocket listen settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// FeedConfig holds the optional NATS egress feed settings.
type FeedConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

// LookupConfig points at the static reference data files.
type LookupConfig struct {
	DataDir      string `koanf:"data_dir"`      // directory holding ground-stations.json, metadata.json, airlines.json
	IATAOverride string `koanf:"iata_override"` // "IATA|ICAO|Name;IATA|ICAO|Name" overrides
	TrackingURL  string `koanf:"tracking_url"`  // base URL for aircraft tracking links
}

// Config is the full hub configuration. Immutable after Load; components
// receive it (or a sub-struct) by value at construction.
type Config struct {
	Sources  map[string]SourceConfig `koanf:"sources"` // keyed by decoder type: acars, vdlm2, hfdl, imsl, irdm
	Database DatabaseConfig          `koanf:"database"`
	Alerts   AlertConfig             `koanf:"alerts"`
	Server   ServerConfig            `koanf:"server"`
	Feed     FeedConfig              `koanf:"feed"`
	Lookup   LookupConfig            `koanf:"lookup"`
	Logging  logging.Config          `koanf:"logging"`
}

func defaultConfig() *Config {
	return &Config{
		Sources: map[string]SourceConfig{
			"acars": {Enabled: false, Addr: "127.0.0.1:15550"},
			"vdlm2": {Enabled: false, Addr: "127.0.0.1:15555"},
			"hfdl":  {Enabled: false, Addr: "127.0.0.1:15556"},
			"imsl":  {Enabled: false, Addr: "127.0.0.1:15557"},
			"irdm":  {Enabled: false, Addr: "127.0.0.1:15558"},
		},
		Database: DatabaseConfig{
			Path:          "/run/acars_hub/messages.db",
			SaveAll:       false,
			SaveDays:      7,
			AlertSaveDays: 120,
			BackupPort:    0,
		},
		Alerts: AlertConfig{},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Feed: FeedConfig{
			Enabled: false,
			URL:     "nats://127.0.0.1:4222",
			Subject: "acars_hub.messages",
		},
		Lookup: LookupConfig{
			DataDir:     "./data",
			TrackingURL: "https://globe.adsbexchange.com/?icao=",
		},
		Logging: logging.Config{
			Level: "info",
		},
	}
}

// Load builds the configuration: defaults, then an optional YAML file, then
// AH_-prefixed environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// AH_DATABASE_SAVE_DAYS -> database.save_days. Section names contain no
	// underscores, so only the first underscore is a separator.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.Replace(s, "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (c *Config) validate() error {
	for name, src := range c.Sources {
		if src.Enabled && src.Addr == "" {
			return fmt.Errorf("source %s enabled without an address", name)
		}
	}
	switch c.Database.BackupKind {
	case "", "clickhouse", "postgres":
	default:
		return fmt.Errorf("unknown backup kind %q", c.Database.BackupKind)
	}
	if c.Database.SaveDays <= 0 {
		return fmt.Errorf("database.save_days must be positive, got %d", c.Database.SaveDays)
	}
	if c.Database.AlertSaveDays <= 0 {
		return fmt.Errorf("database.alert_save_days must be positive, got %d", c.Database.AlertSaveDays)
	}
	return nil
}

// AlertTerms returns the configured alert terms, upper-cased and trimmed.
func (c *Config) AlertTerms() []string {
	return splitTerms(c.Alerts.Terms)
}

// IgnoreTerms returns the configured ignore terms, upper-cased and trimmed.
func (c *Config) IgnoreTerms() []string {
	return splitTerms(c.Alerts.IgnoreTerms)
}

func splitTerms(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(s, ",") {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
