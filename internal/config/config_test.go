package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Driver: "valkey",
			Addrs:  []string{"localhost:6379"},
		},
		Remote:   RemoteConfig{UserID: "@reader:lectern.dev"},
		Document: DocumentConfig{RoomID: "!doc:lectern.dev"},
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingDatabaseAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "postgres"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
	expected := `database.driver must be "valkey" or "redis", got "postgres"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_MissingIdentity(t *testing.T) {
	cfg := validConfig()
	cfg.Remote.UserID = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing remote.user_id")
	}

	cfg = validConfig()
	cfg.Document.RoomID = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing document.room_id")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 10 {
		t.Errorf("expected WriteTimeoutSec=10, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.Driver != "valkey" {
		t.Errorf("expected driver=valkey, got %q", cfg.Database.Driver)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Remote.PollIntervalMs != 500 {
		t.Errorf("expected PollIntervalMs=500, got %d", cfg.Remote.PollIntervalMs)
	}
	if cfg.Search.MaxResults != 200 {
		t.Errorf("expected MaxResults=200, got %d", cfg.Search.MaxResults)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database: DatabaseConfig{Driver: "redis", ReadinessTimeout: 15},
		Remote:   RemoteConfig{DeviceID: "reader-1", PollIntervalMs: 250},
		Search:   SearchConfig{MaxResults: 50},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.Driver != "redis" {
		t.Errorf("expected driver=redis, got %q", cfg.Database.Driver)
	}
	if cfg.Remote.DeviceID != "reader-1" {
		t.Errorf("expected DeviceID=reader-1, got %q", cfg.Remote.DeviceID)
	}
	if cfg.Remote.PollIntervalMs != 250 {
		t.Errorf("expected PollIntervalMs=250, got %d", cfg.Remote.PollIntervalMs)
	}
	if cfg.Search.MaxResults != 50 {
		t.Errorf("expected MaxResults=50, got %d", cfg.Search.MaxResults)
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	content := `
http:
  port: 8080
database:
  addrs: ["${LECTERN_TEST_DB_ADDR:-localhost:6379}"]
remote:
  user_id: "${LECTERN_TEST_USER}"
document:
  room_id: "!doc:lectern.dev"
`
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config", "test.yaml"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LECTERN_TEST_USER", "@alice:lectern.dev")
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(oldWD); err != nil {
			t.Fatal(err)
		}
	})

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Remote.UserID != "@alice:lectern.dev" {
		t.Errorf("user id = %q", cfg.Remote.UserID)
	}
	if cfg.Database.Addrs[0] != "localhost:6379" {
		t.Errorf("addr = %q (default not applied)", cfg.Database.Addrs[0])
	}
}
