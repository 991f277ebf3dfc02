package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads from YAML as a string like "90s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Server holds all configuration for the Word Quizzle server.
type Server struct {
	// Network
	BindAddress      string `yaml:"bind_address"`
	Port             int    `yaml:"port"`
	RegistrationPort int    `yaml:"registration_port"`

	// Match rules
	Match MatchConfig `yaml:"match"`

	// Storage
	StorePath  string `yaml:"store_path"`
	Dictionary string `yaml:"dictionary"`

	// Translation service
	TranslationURL string `yaml:"translation_url"`

	// Request handling
	Workers int `yaml:"workers"`

	LogLevel string `yaml:"log_level"`
}

// MatchConfig holds the duel rules.
type MatchConfig struct {
	Duration      Duration `yaml:"duration"`       // wall clock for one duel
	InviteTimeout Duration `yaml:"invite_timeout"` // how long an invitation stays open
	Words         int      `yaml:"words"`          // words per duel
}

// SlogLevel maps the configured log_level string onto a slog level.
// Unknown values fall back to info.
func (s Server) SlogLevel() slog.Level {
	switch s.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// DefaultServer returns Server config with sensible defaults.
func DefaultServer() Server {
	return Server{
		BindAddress:      "0.0.0.0",
		Port:             8888,
		RegistrationPort: 5678,
		Match: MatchConfig{
			Duration:      Duration(time.Minute),
			InviteTimeout: Duration(15 * time.Second),
			Words:         5,
		},
		StorePath:      "wqdata/users.json",
		Dictionary:     "data/italian.txt",
		TranslationURL: "https://api.mymemory.translated.net/get",
		Workers:        4,
		LogLevel:       "info",
	}
}

// LoadServer loads server config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
