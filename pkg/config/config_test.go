package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "murmur.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Storage.RetryPeriodMs != 1000 || cfg.Indicator.OnMs != 500 || cfg.Indicator.RunningMs != 5000 {
		t.Errorf("defaults drifted from stock timing: %+v", cfg)
	}
	if cfg.Pins.MuteEnabled() {
		t.Errorf("mute line enabled by default")
	}
}

func TestLoadExplicitOverrides(t *testing.T) {
	path := writeFile(t, `
[storage]
root = "/mnt/card"

[pins]
backend = "sysfs"
amp_mute = 4

[log]
level = "debug"
`)
	cfg, err := load(nil, path, zerolog.Nop())
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.Storage.Root != "/mnt/card" {
		t.Errorf("Root = %q", cfg.Storage.Root)
	}
	if cfg.Storage.ConfigFile != "CONFIG.TXT" {
		t.Errorf("unset key lost its default: %q", cfg.Storage.ConfigFile)
	}
	if cfg.Pins.Backend != BackendSysfs || !cfg.Pins.MuteEnabled() || cfg.Pins.AmpMute != 4 {
		t.Errorf("Pins = %+v", cfg.Pins)
	}
	if lvl, _ := cfg.LogLevel(); lvl != zerolog.DebugLevel {
		t.Errorf("LogLevel() = %v", lvl)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"bad toml":       "[storage\n",
		"unknown pins":   "[pins]\nbackend = \"i2c\"\n",
		"shared line":    "[pins]\nled = 2\nbutton = 2\n",
		"mute collision": "[pins]\namp_mute = 13\n",
		"zero tick":      "[playback]\ntick_ms = 0\n",
		"long settle":    "[playback]\nsettle_ms = 500\n",
		"bad level":      "[log]\nlevel = \"loud\"\n",
		"empty root":     "[storage]\nroot = \"\"\n",
		"long key":       "[pins]\nbutton_key = \"ab\"\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := load(nil, writeFile(t, body), zerolog.Nop()); err == nil {
				t.Errorf("load() succeeded, want error")
			}
		})
	}
}

func TestLoadMergesSearchPaths(t *testing.T) {
	system := writeFile(t, "[storage]\nroot = \"/mnt/sys\"\n\n[playback]\ntick_ms = 10\n")
	missing := filepath.Join(t.TempDir(), "absent.toml")
	explicit := writeFile(t, "[storage]\nroot = \"/mnt/card\"\n")

	cfg, err := load([]string{system, missing}, explicit, zerolog.Nop())
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.Storage.Root != "/mnt/card" {
		t.Errorf("Root = %q, want explicit file to win", cfg.Storage.Root)
	}
	if cfg.Playback.TickMs != 10 {
		t.Errorf("TickMs = %d, want value from search path", cfg.Playback.TickMs)
	}
}

func TestLoadExplicitMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"), zerolog.Nop())
	if err == nil || !strings.Contains(err.Error(), "failed to load config file") {
		t.Errorf("Load() error = %v", err)
	}
}

func TestSearchPathsOrder(t *testing.T) {
	paths := SearchPaths()
	if paths[0] != "/usr/local/etc/murmur.toml" || paths[len(paths)-1] != "./murmur.toml" {
		t.Errorf("SearchPaths() = %v", paths)
	}
}
