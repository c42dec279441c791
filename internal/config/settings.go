package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/ini.v1"

	"leasesync/internal/dhcp"
)

const (
	// SettingsFileName is looked up in the config directory when no settings file is given
	SettingsFileName = "leasesync.ini"
	// InventoryFileName is looked up in the config directory when no inventory is given
	InventoryFileName = "config.yaml"
)

// Settings holds runtime options. Routers and tracking targets live in the
// inventory, see Inventory.
type Settings struct {
	// File paths
	ConfigDir     string `env:"CONFIG_DIR,overwrite"`
	InventoryFile string `env:"INVENTORY_FILE,overwrite"`
	KnownHosts    string `env:"KNOWN_HOSTS,overwrite"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL,overwrite"`
	LogFormat string `env:"LOG_FORMAT,overwrite"`

	// Router access
	SSHPort       int           `env:"SSH_PORT,overwrite"`
	SSHTimeout    time.Duration `env:"SSH_TIMEOUT,overwrite"`
	ExportCommand string        `env:"EXPORT_COMMAND,overwrite"`

	// Tracking service
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT,overwrite"`

	// Watch mode
	WatchInterval time.Duration `env:"WATCH_INTERVAL,overwrite"`
	HTTPListen    string        `env:"HTTP_LISTEN,overwrite"`

	// Source is the settings file that was read, empty when none was
	Source string
}

// DefaultSettings returns settings with default values
func DefaultSettings() *Settings {
	return &Settings{
		ConfigDir:     "./",
		LogLevel:      "info",
		LogFormat:     "console",
		SSHPort:       22,
		SSHTimeout:    10 * time.Second,
		ExportCommand: dhcp.ExportCommand,
		HTTPTimeout:   10 * time.Second,
		WatchInterval: 15 * time.Minute,
	}
}

// LoadFromFile loads settings from an INI file. Keys are case-insensitive
// and live in the default section.
func (s *Settings) LoadFromFile(filename string) error {
	cfg, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, filename)
	if err != nil {
		return fmt.Errorf("load settings %s: %w", filename, err)
	}

	section := cfg.Section("")
	s.InventoryFile = section.Key("inventory").MustString(s.InventoryFile)
	s.KnownHosts = section.Key("known_hosts").MustString(s.KnownHosts)
	s.LogLevel = section.Key("log_level").MustString(s.LogLevel)
	s.LogFormat = section.Key("log_format").MustString(s.LogFormat)
	s.SSHPort = section.Key("ssh_port").MustInt(s.SSHPort)
	s.SSHTimeout = section.Key("ssh_timeout").MustDuration(s.SSHTimeout)
	s.ExportCommand = section.Key("export_command").MustString(s.ExportCommand)
	s.HTTPTimeout = section.Key("http_timeout").MustDuration(s.HTTPTimeout)
	s.WatchInterval = section.Key("watch_interval").MustDuration(s.WatchInterval)
	s.HTTPListen = section.Key("http_listen").MustString(s.HTTPListen)
	s.Source = filename

	return nil
}

// LoadFromEnv overrides settings with the environment variables that are set
func (s *Settings) LoadFromEnv(ctx context.Context) error {
	if err := envconfig.Process(ctx, s); err != nil {
		return fmt.Errorf("load settings from environment: %w", err)
	}
	return nil
}

// SettingsPath returns the settings file used when none is given explicitly
func (s *Settings) SettingsPath() string {
	return filepath.Join(s.ConfigDir, SettingsFileName)
}

// InventoryPath returns the inventory file location. A relative inventory
// setting is resolved against the config directory.
func (s *Settings) InventoryPath() string {
	switch {
	case s.InventoryFile == "":
		return filepath.Join(s.ConfigDir, InventoryFileName)
	case filepath.IsAbs(s.InventoryFile):
		return s.InventoryFile
	default:
		return filepath.Join(s.ConfigDir, s.InventoryFile)
	}
}

// Load builds settings from defaults, the settings file and the environment,
// in that order. With an empty filename the file is looked up in the config
// directory and skipped when absent.
func Load(ctx context.Context, filename string) (*Settings, error) {
	s := DefaultSettings()

	// CONFIG_DIR decides where the settings file is
	if err := s.LoadFromEnv(ctx); err != nil {
		return nil, err
	}

	if filename == "" {
		filename = s.SettingsPath()
		if _, err := os.Stat(filename); err != nil {
			return s, nil
		}
	}

	if err := s.LoadFromFile(filename); err != nil {
		return nil, err
	}

	if err := s.LoadFromEnv(ctx); err != nil {
		return nil, err
	}

	return s, nil
}
