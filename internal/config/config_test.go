package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("TG_API_ID")
	os.Unsetenv("SESSIONS_FILE")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.SessionsFile != "./sessions.yaml" {
		t.Errorf("SessionsFile = %s, want ./sessions.yaml", cfg.SessionsFile)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.TGApiID != 0 {
		t.Errorf("TGApiID = %d, want 0", cfg.TGApiID)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TG_API_ID", "12345")
	t.Setenv("TG_API_HASH", "abcdef")
	t.Setenv("NATS_URL", "nats://localhost:4222")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.TGApiID != 12345 {
		t.Errorf("TGApiID = %d, want 12345", cfg.TGApiID)
	}
	if cfg.TGApiHash != "abcdef" {
		t.Errorf("TGApiHash = %s, want abcdef", cfg.TGApiHash)
	}
	if cfg.NatsURL != "nats://localhost:4222" {
		t.Errorf("NatsURL = %s", cfg.NatsURL)
	}
}

func TestLoadRoster(t *testing.T) {
	t.Run("parses valid roster in order", func(t *testing.T) {
		path := writeRoster(t, `
sessions:
  - name: main
    session_file: ./sessions/main.db
  - name: backup
    session_file: ./sessions/backup.db
`)

		roster, err := LoadRoster(path)
		if err != nil {
			t.Fatalf("LoadRoster() unexpected error: %v", err)
		}

		if len(roster.Sessions) != 2 {
			t.Fatalf("got %d sessions, want 2", len(roster.Sessions))
		}
		if roster.Sessions[0].Name != "main" || roster.Sessions[1].Name != "backup" {
			t.Errorf("roster order not preserved: %+v", roster.Sessions)
		}
	})

	t.Run("rejects empty roster", func(t *testing.T) {
		path := writeRoster(t, "sessions: []\n")

		_, err := LoadRoster(path)
		if !errors.Is(err, ErrNoSessions) {
			t.Errorf("err = %v, want ErrNoSessions", err)
		}
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		path := writeRoster(t, `
sessions:
  - name: main
    session_file: a.db
  - name: main
    session_file: b.db
`)

		_, err := LoadRoster(path)
		if !errors.Is(err, ErrDuplicateSession) {
			t.Errorf("err = %v, want ErrDuplicateSession", err)
		}
	})

	t.Run("rejects entry without session_file", func(t *testing.T) {
		path := writeRoster(t, `
sessions:
  - name: main
`)

		if _, err := LoadRoster(path); err == nil {
			t.Error("expected error for missing session_file")
		}
	})
}

func writeRoster(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
