package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAMLWithDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
timezone: "Asia/Kolkata"
server:
  addr: ":8080"
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Data.EntriesPath != "./data/entries.json" {
		t.Errorf("entries default = %q", cfg.Data.EntriesPath)
	}
	if cfg.Maintenance.DailyAt != "03:30" {
		t.Errorf("daily_at default = %q", cfg.Maintenance.DailyAt)
	}
	if _, err := cfg.Location(); err != nil {
		t.Errorf("Location: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
  "timezone": "UTC",
  "telegram": {"enabled": true, "token": "abc", "chat_id": 42, "send_timeout": "10s"}
}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Telegram.Enabled || cfg.Telegram.ChatID != 42 {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
timezone: UTC
schedulerr:
  enabled: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("unknown key accepted")
	}
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	path := writeConfig(t, "config.yaml", `timezone: "Mars/Olympus"`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "timezone") {
		t.Fatalf("want timezone error, got %v", err)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
notifier:
  send_timeout: "ten seconds"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("bad duration accepted")
	}
}

func TestTelegramEnabledRequiresCredentials(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
telegram:
  enabled: true
  token: ""
`)
	if _, err := Load(path); err == nil {
		t.Fatal("enabled telegram without token accepted")
	}
}

func TestParseDurationField(t *testing.T) {
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: %v %v", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("negative accepted")
	}
	if d, err := ParseDurationOrDefault("x", "", 5); err != nil || d != 5 {
		t.Fatalf("default: %v %v", d, err)
	}
}
