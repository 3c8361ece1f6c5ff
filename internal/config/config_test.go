package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig writes body to a temp file and returns its path.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "exporter: {}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	e := cfg.Exporter
	if e.ListenPort != DefaultListenPort {
		t.Errorf("ListenPort = %d, want %d", e.ListenPort, DefaultListenPort)
	}
	if e.FTLDBPath != DefaultFTLDBPath {
		t.Errorf("FTLDBPath = %q, want %q", e.FTLDBPath, DefaultFTLDBPath)
	}
	if e.TopN != DefaultTopN {
		t.Errorf("TopN = %d, want %d", e.TopN, DefaultTopN)
	}
	if e.ScrapeInterval != DefaultScrapeInterval {
		t.Errorf("ScrapeInterval = %v, want %v", e.ScrapeInterval, DefaultScrapeInterval)
	}
	if !e.LifetimeDestinations {
		t.Error("LifetimeDestinations should default to true")
	}
	if e.FreshnessFactor != DefaultFreshnessFactor {
		t.Errorf("FreshnessFactor = %d, want %d", e.FreshnessFactor, DefaultFreshnessFactor)
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
exporter:
  listen_port: 9100
  ftl_db_path: /data/pihole-FTL.db
  top_n: 25
  scrape_interval: 1m
  lifetime_destinations: false
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	e := cfg.Exporter
	if e.ListenPort != 9100 {
		t.Errorf("ListenPort = %d, want 9100", e.ListenPort)
	}
	if e.FTLDBPath != "/data/pihole-FTL.db" {
		t.Errorf("FTLDBPath = %q", e.FTLDBPath)
	}
	if e.TopN != 25 {
		t.Errorf("TopN = %d, want 25", e.TopN)
	}
	if e.ScrapeInterval != time.Minute {
		t.Errorf("ScrapeInterval = %v, want 1m", e.ScrapeInterval)
	}
	if e.LifetimeDestinations {
		t.Error("LifetimeDestinations should be false when set in the file")
	}
	// Untouched fields keep their defaults.
	if e.GravityDBPath != DefaultGravityDBPath {
		t.Errorf("GravityDBPath = %q, want default", e.GravityDBPath)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load on missing file: expected error")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "exporter: [not a mapping\n")); err == nil {
		t.Fatal("Load on invalid yaml: expected error")
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"zero port", "exporter:\n  listen_port: 0\n", "listen_port"},
		{"huge port", "exporter:\n  listen_port: 70000\n", "listen_port"},
		{"empty ftl path", "exporter:\n  ftl_db_path: \"\"\n", "ftl_db_path"},
		{"zero top_n", "exporter:\n  top_n: 0\n", "top_n"},
		{"negative interval", "exporter:\n  scrape_interval: -5s\n", "scrape_interval"},
		{"zero freshness", "exporter:\n  freshness_factor: 0\n", "freshness_factor"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q should mention %q", err, tc.want)
			}
		})
	}
}

func TestFreshnessBound(t *testing.T) {
	e := ExporterConfig{ScrapeInterval: 15 * time.Second, FreshnessFactor: 3}
	if got := e.FreshnessBound(); got != 45*time.Second {
		t.Errorf("FreshnessBound = %v, want 45s", got)
	}
}

func TestListenAddress(t *testing.T) {
	e := ExporterConfig{ListenAddr: "127.0.0.1", ListenPort: 9617}
	if got := e.ListenAddress(); got != "127.0.0.1:9617" {
		t.Errorf("ListenAddress = %q", got)
	}
}

func TestLocation_FallsBackOnInvalidZone(t *testing.T) {
	e := ExporterConfig{Timezone: "Not/AZone"}
	if loc := e.Location(); loc == nil {
		t.Fatal("Location: got nil, want fallback zone")
	}

	e.Timezone = "UTC"
	if loc := e.Location(); loc != time.UTC {
		t.Errorf("Location(UTC) = %v, want UTC", loc)
	}
}
