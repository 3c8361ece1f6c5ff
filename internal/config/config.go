package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultListenAddr      = "0.0.0.0"
	DefaultListenPort      = 9617
	DefaultFTLDBPath       = "/etc/pihole/pihole-FTL.db"
	DefaultGravityDBPath   = "/etc/pihole/gravity.db"
	DefaultHostnameLabel   = "host.docker.internal"
	DefaultTopN            = 10
	DefaultScrapeInterval  = 15 * time.Second
	DefaultTimezone        = "Europe/Amsterdam"
	DefaultFreshnessFactor = 3
)

// Config is the top-level configuration for the exporter.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Exporter ExporterConfig `yaml:"exporter"`
}

// ExporterConfig holds all exporter settings.
type ExporterConfig struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string `yaml:"listen_addr"`

	// ListenPort is the port the HTTP server listens on.
	ListenPort int `yaml:"listen_port"`

	// FTLDBPath is the path to Pi-hole's FTL query-log database.
	// Opened read-only; the exporter never writes to it.
	FTLDBPath string `yaml:"ftl_db_path"`

	// GravityDBPath is the path to Pi-hole's gravity block-list database.
	// Optional: when the file is absent, the domains-being-blocked count
	// falls back to a lower-precision derivation from the FTL database.
	GravityDBPath string `yaml:"gravity_db_path"`

	// HostnameLabel is attached as the "hostname" label to every series.
	HostnameLabel string `yaml:"hostname_label"`

	// TopN bounds the size of the top-ads/queries/sources lists.
	TopN int `yaml:"top_n"`

	// ScrapeInterval controls how often the databases are read. The period
	// is measured start-to-start, so scrape duration does not add drift.
	ScrapeInterval time.Duration `yaml:"scrape_interval"`

	// Timezone is the IANA zone used to compute the start-of-day boundary
	// for "today" counters. An unknown zone falls back to the host zone.
	Timezone string `yaml:"timezone"`

	// LifetimeDestinations toggles the per-destination lifetime counters.
	// Enabled by default; disable to avoid full scans of the query log on
	// very large databases.
	LifetimeDestinations bool `yaml:"lifetime_destinations"`

	// FreshnessFactor sets the /healthz staleness bound as a multiple of
	// ScrapeInterval: the snapshot is considered stale once its age exceeds
	// FreshnessFactor * ScrapeInterval.
	FreshnessFactor int `yaml:"freshness_factor"`
}

// ListenAddress returns the host:port the HTTP server binds to.
func (e ExporterConfig) ListenAddress() string {
	return net.JoinHostPort(e.ListenAddr, strconv.Itoa(e.ListenPort))
}

// FreshnessBound returns the maximum snapshot age /healthz accepts.
func (e ExporterConfig) FreshnessBound() time.Duration {
	return time.Duration(e.FreshnessFactor) * e.ScrapeInterval
}

// Location resolves the configured time zone. An invalid zone logs a warning
// and falls back to the host's local zone rather than failing the scrape.
func (e ExporterConfig) Location() *time.Location {
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		slog.Warn("config: invalid timezone, falling back to host zone",
			"timezone", e.Timezone, "err", err)
		return time.Local
	}
	return loc
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Exporter: ExporterConfig{
			ListenAddr:           DefaultListenAddr,
			ListenPort:           DefaultListenPort,
			FTLDBPath:            DefaultFTLDBPath,
			GravityDBPath:        DefaultGravityDBPath,
			HostnameLabel:        DefaultHostnameLabel,
			TopN:                 DefaultTopN,
			ScrapeInterval:       DefaultScrapeInterval,
			Timezone:             DefaultTimezone,
			LifetimeDestinations: true,
			FreshnessFactor:      DefaultFreshnessFactor,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	e := cfg.Exporter
	if e.ListenPort < 1 || e.ListenPort > 65535 {
		return fmt.Errorf("exporter.listen_port must be in 1..65535 (got %d)", e.ListenPort)
	}
	if e.FTLDBPath == "" {
		return fmt.Errorf("exporter.ftl_db_path is required")
	}
	if e.HostnameLabel == "" {
		return fmt.Errorf("exporter.hostname_label is required")
	}
	if e.TopN < 1 {
		return fmt.Errorf("exporter.top_n must be positive (got %d)", e.TopN)
	}
	if e.ScrapeInterval <= 0 {
		return fmt.Errorf("exporter.scrape_interval must be positive")
	}
	if e.FreshnessFactor < 1 {
		return fmt.Errorf("exporter.freshness_factor must be >= 1 (got %d)", e.FreshnessFactor)
	}
	return nil
}
