package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Driver != StorageDriverPostgres {
		t.Errorf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.Auth.Enabled() {
		t.Error("auth should be disabled by default")
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "s3cret")
	path := writeConfig(t, `
server:
  port: 9090
database:
  password: ${TEST_DB_PASSWORD}
client:
  poll_interval: 30s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Password != "s3cret" {
		t.Errorf("password = %q", cfg.Database.Password)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if got := cfg.Client.EffectivePollInterval(); got != 30*time.Second {
		t.Errorf("poll interval = %v", got)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Database.Host != "localhost" {
		t.Errorf("host = %q", cfg.Database.Host)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad driver", "storage:\n  driver: mongo\n", "storage"},
		{"jwt without secret", "auth:\n  mode: jwt\n", "jwt.secret"},
		{"bad port", "server:\n  port: 70000\n", "server"},
		{"bad log level", "log:\n  level: loud\n", "log"},
		{"unknown auth mode", "auth:\n  mode: none\n", "auth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestMemoryDriverSkipsDatabaseValidation(t *testing.T) {
	cfg, err := Load(writeConfig(t, "storage:\n  driver: memory\ndatabase:\n  host: \"\"\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != StorageDriverMemory {
		t.Errorf("driver = %q", cfg.Storage.Driver)
	}
}

func TestEffectivePollIntervalClamps(t *testing.T) {
	c := ClientConfig{PollInterval: time.Second}
	if got := c.EffectivePollInterval(); got != MinPollInterval {
		t.Errorf("got %v, want %v", got, MinPollInterval)
	}
}

func TestMigrateURL(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss", DBName: "notes", SSLMode: "disable"}
	got := c.MigrateURL()
	if !strings.HasPrefix(got, "pgx5://u:p%40ss@db:5432/notes") {
		t.Errorf("url = %q", got)
	}
	if !strings.Contains(got, "sslmode=disable") {
		t.Errorf("url = %q", got)
	}
}

func TestLoadAuthModes(t *testing.T) {
	cfg, err := Load(writeConfig(t, "auth:\n  mode: disabled\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.Enabled() {
		t.Error("disabled mode reported enabled")
	}

	cfg, err = Load(writeConfig(t, "auth:\n  mode: jwt\njwt:\n  secret: s\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Auth.Enabled() {
		t.Error("jwt mode reported disabled")
	}
}
