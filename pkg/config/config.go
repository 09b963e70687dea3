// Package config loads device settings. These describe the hardware and
// timing; the playlist itself lives on the card.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
)

// Storage locates the card.
type Storage struct {
	Root          string `toml:"root"`
	ConfigFile    string `toml:"config_file"`
	RetryPeriodMs uint64 `toml:"retry_period_ms"`
}

// Validate checks if the storage settings are valid.
func (s *Storage) Validate() error {
	if s.Root == "" {
		return errors.New("root cannot be empty")
	}
	if s.ConfigFile == "" {
		return errors.New("config_file cannot be empty")
	}
	if s.RetryPeriodMs == 0 {
		return errors.New("retry_period_ms must be positive")
	}
	return nil
}

// Playback tunes the scheduler loop.
type Playback struct {
	SettleMs          uint64 `toml:"settle_ms"`
	CompletionGraceMs uint64 `toml:"completion_grace_ms"`
	TickMs            uint64 `toml:"tick_ms"`
	Seed              uint64 `toml:"seed"` // 0 seeds from the wall clock
}

// Validate checks if the playback settings are valid.
func (p *Playback) Validate() error {
	if p.TickMs == 0 {
		return errors.New("tick_ms must be positive")
	}
	if p.TickMs > 50 {
		return fmt.Errorf("tick_ms must be at most 50, got %d", p.TickMs)
	}
	if p.SettleMs > 100 {
		return fmt.Errorf("settle_ms must be at most 100, got %d", p.SettleMs)
	}
	return nil
}

// Button configures the override button.
type Button struct {
	DebounceMs uint64 `toml:"debounce_ms"`
}

// Validate checks if the button settings are valid.
func (b *Button) Validate() error {
	if b.DebounceMs == 0 {
		return errors.New("debounce_ms must be positive")
	}
	return nil
}

// Indicator configures the status LED timing.
type Indicator struct {
	OnMs        uint64 `toml:"on_ms"`
	SearchingMs uint64 `toml:"searching_ms"`
	RunningMs   uint64 `toml:"running_ms"`
	BootFlashes int    `toml:"boot_flashes"`
	BootFlashMs uint64 `toml:"boot_flash_ms"`
}

// Validate checks if the indicator settings are valid.
func (i *Indicator) Validate() error {
	if i.OnMs == 0 || i.SearchingMs == 0 || i.RunningMs == 0 {
		return errors.New("on_ms, searching_ms and running_ms must be positive")
	}
	if i.BootFlashes < 0 {
		return errors.New("boot_flashes cannot be negative")
	}
	if i.BootFlashes > 0 && i.BootFlashMs == 0 {
		return errors.New("boot_flash_ms must be positive when boot_flashes is set")
	}
	return nil
}

// Pin backends.
const (
	BackendConsole = "console"
	BackendSysfs   = "sysfs"
	BackendMemory  = "memory"
)

// Pins maps functions to line numbers.
type Pins struct {
	Backend   string `toml:"backend"`
	SysfsRoot string `toml:"sysfs_root"`
	LED       int    `toml:"led"`
	Button    int    `toml:"button"`
	AmpMute   int    `toml:"amp_mute"` // < 0 disables the mute line
	ButtonKey string `toml:"button_key"`
}

// Validate checks if the pin settings are valid.
func (p *Pins) Validate() error {
	switch p.Backend {
	case BackendConsole, BackendSysfs, BackendMemory:
	default:
		return fmt.Errorf("unknown backend '%s'", p.Backend)
	}
	if p.LED < 0 || p.Button < 0 {
		return errors.New("led and button lines cannot be negative")
	}
	if p.LED == p.Button {
		return fmt.Errorf("led and button share line %d", p.LED)
	}
	if p.AmpMute >= 0 && (p.AmpMute == p.LED || p.AmpMute == p.Button) {
		return fmt.Errorf("amp_mute line %d is already in use", p.AmpMute)
	}
	if p.Backend == BackendConsole && len(p.ButtonKey) != 1 {
		return fmt.Errorf("button_key must be a single character, got %q", p.ButtonKey)
	}
	if p.Backend == BackendSysfs && p.SysfsRoot == "" {
		return errors.New("sysfs_root cannot be empty")
	}
	return nil
}

// MuteEnabled reports whether an amplifier mute line is configured.
func (p *Pins) MuteEnabled() bool {
	return p.AmpMute >= 0
}

// Log configures logging.
type Log struct {
	Level string `toml:"level"`
}

// Config holds the complete device configuration.
type Config struct {
	Storage   Storage   `toml:"storage"`
	Playback  Playback  `toml:"playback"`
	Button    Button    `toml:"button"`
	Indicator Indicator `toml:"indicator"`
	Pins      Pins      `toml:"pins"`
	Log       Log       `toml:"log"`
}

// Default returns the stock device settings.
func Default() *Config {
	return &Config{
		Storage: Storage{
			Root:          "/media/sdcard",
			ConfigFile:    "CONFIG.TXT",
			RetryPeriodMs: 1000,
		},
		Playback: Playback{
			SettleMs:          50,
			CompletionGraceMs: 100,
			TickMs:            5,
		},
		Button: Button{DebounceMs: 100},
		Indicator: Indicator{
			OnMs:        500,
			SearchingMs: 1000,
			RunningMs:   5000,
			BootFlashes: 3,
			BootFlashMs: 250,
		},
		Pins: Pins{
			Backend:   BackendConsole,
			SysfsRoot: "/sys/class/gpio",
			LED:       13,
			Button:    2,
			AmpMute:   -1,
			ButtonKey: " ",
		},
		Log: Log{Level: "info"},
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage settings: %w", err)
	}
	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("invalid playback settings: %w", err)
	}
	if err := c.Button.Validate(); err != nil {
		return fmt.Errorf("invalid button settings: %w", err)
	}
	if err := c.Indicator.Validate(); err != nil {
		return fmt.Errorf("invalid indicator settings: %w", err)
	}
	if err := c.Pins.Validate(); err != nil {
		return fmt.Errorf("invalid pins settings: %w", err)
	}
	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("invalid log settings: %w", err)
	}
	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (zerolog.Level, error) {
	return zerolog.ParseLevel(c.Log.Level)
}

// SearchPaths lists settings files in order of increasing priority.
func SearchPaths() []string {
	paths := []string{"/usr/local/etc/murmur.toml"}
	if p, err := xdg.SearchConfigFile("murmur/murmur.toml"); err == nil {
		paths = append(paths, p)
	}
	return append(paths, "./murmur.toml")
}

// Load merges the files that exist among SearchPaths over the defaults,
// then explicit, which must exist when non-empty.
func Load(explicit string, log zerolog.Logger) (*Config, error) {
	return load(SearchPaths(), explicit, log)
}

func load(paths []string, explicit string, log zerolog.Logger) (*Config, error) {
	cfg := Default()
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if !os.IsNotExist(err) {
				log.Warn().Err(err).Str("path", path).Msg("Error checking config file")
			}
			continue
		}
		if err := decodeFile(path, cfg, log); err != nil {
			return nil, err
		}
	}
	if explicit != "" {
		if err := decodeFile(explicit, cfg, log); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Debug().Msg("Configuration loaded and validated successfully")
	return cfg, nil
}

func decodeFile(path string, cfg *Config, log zerolog.Logger) error {
	log.Debug().Str("path", path).Msg("Loading configuration file")
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to load config file '%s': %w", path, err)
	}
	for _, key := range md.Undecoded() {
		log.Warn().Str("path", path).Str("key", key.String()).Msg("Unknown config key")
	}
	return nil
}
