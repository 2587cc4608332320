// package config loads application configuration from environment
// variables and the session roster file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// roster errors
var (
	ErrNoSessions       = errors.New("session roster is empty")
	ErrDuplicateSession = errors.New("duplicate session name in roster")
)

// Config holds all application configuration.
type Config struct {
	// telegram
	TGApiID   int
	TGApiHash string

	// session roster
	SessionsFile string

	// nats (optional, empty disables publishing)
	NatsURL string

	// run history
	HistoryDB string

	// logging
	LogLevel string
	LogFile  string
}

// Session is one named entry of the session roster.
type Session struct {
	Name        string `yaml:"name"`
	SessionFile string `yaml:"session_file"`
}

// Roster is the parsed sessions.yaml file.
type Roster struct {
	Sessions []Session `yaml:"sessions"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		TGApiHash:    getEnv("TG_API_HASH", ""),
		TGApiID:      getEnvInt("TG_API_ID", 0),
		SessionsFile: getEnv("SESSIONS_FILE", "./sessions.yaml"),
		NatsURL:      getEnv("NATS_URL", ""),
		HistoryDB:    getEnv("HISTORY_DB", "./chatcount.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFile:      getEnv("LOG_FILE", ""),
	}

	return cfg, nil
}

// LoadRoster parses the session roster yaml file.
// Every entry must have a unique name; order in the file is preserved
// and decides which session runs first in multi-session dispatch.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}

	var roster Roster
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}

	if len(roster.Sessions) == 0 {
		return nil, ErrNoSessions
	}

	seen := make(map[string]bool, len(roster.Sessions))
	for _, s := range roster.Sessions {
		if s.Name == "" || s.SessionFile == "" {
			return nil, fmt.Errorf("roster entry needs name and session_file, got %+v", s)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSession, s.Name)
		}
		seen[s.Name] = true
	}

	return &roster, nil
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
