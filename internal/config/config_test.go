package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
mode = "host"
name = "歐米加測試場"

[sim]
tick_duration = "50ms"
grid_width = 16

[network]
max_players = 2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Mode != "host" || cfg.Server.Name != "歐米加測試場" {
		t.Errorf("server section not applied: %+v", cfg.Server)
	}
	if cfg.Sim.TickDuration != 50*time.Millisecond {
		t.Errorf("tick_duration = %s, want 50ms", cfg.Sim.TickDuration)
	}
	if cfg.Sim.GridWidth != 16 {
		t.Errorf("grid_width = %d, want 16", cfg.Sim.GridWidth)
	}
	// Untouched keys keep their defaults.
	if cfg.Sim.GridHeight != 64 {
		t.Errorf("grid_height = %d, want default 64", cfg.Sim.GridHeight)
	}
	if cfg.Sim.MaxCatchupTicks != 4 {
		t.Errorf("max_catchup_ticks = %d, want default 4", cfg.Sim.MaxCatchupTicks)
	}
	if cfg.Network.MaxPlayers != 2 {
		t.Errorf("max_players = %d, want 2", cfg.Network.MaxPlayers)
	}
}

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Server.Mode = "spectator" }},
		{"zero tick duration", func(c *Config) { c.Sim.TickDuration = 0 }},
		{"zero catchup", func(c *Config) { c.Sim.MaxCatchupTicks = 0 }},
		{"empty grid", func(c *Config) { c.Sim.GridWidth = 0 }},
		{"zero day length", func(c *Config) { c.Sim.TicksPerDay = 0 }},
		{"client without host address", func(c *Config) { c.Server.Mode = "client" }},
		{"playback without database", func(c *Config) {
			c.Server.Mode = "playback"
			c.Replay.PlaybackRun = 7
		}},
		{"playback without run id", func(c *Config) {
			c.Server.Mode = "playback"
			c.Database.Enabled = true
		}},
		{"record without database", func(c *Config) { c.Replay.Record = true }},
	}
	for _, tc := range cases {
		cfg := Defaults()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: validation passed, want error", tc.name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("loading a missing file did not fail")
	}
}
