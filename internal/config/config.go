// Package config loads the daemon configuration from a YAML or JSON
// file. YAML is coerced to JSON so both formats share one strict
// decoder (DisallowUnknownFields); durations are Go duration strings.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	// Timezone is the IANA zone the booking rule runs in.
	Timezone string `json:"timezone"`

	Server      ServerConfig      `json:"server"`
	Data        DataConfig        `json:"data"`
	Telegram    TelegramConfig    `json:"telegram"`
	Notifier    NotifierConfig    `json:"notifier"`
	Logging     LoggingConfig     `json:"logging"`
	Maintenance MaintenanceConfig `json:"maintenance"`
}

type ServerConfig struct {
	Addr string `json:"addr"`
	// Server timeouts are Go duration strings (e.g. "5s").
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

type DataConfig struct {
	EntriesPath  string `json:"entries_path"`
	CalendarPath string `json:"calendar_path"`
	AuditPath    string `json:"audit_path"`
	// WatchEntries resyncs timers when the entries file is edited
	// outside the daemon.
	WatchEntries bool `json:"watch_entries"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  int64  `json:"chat_id"`
	// SendTimeout is a Go duration string bounding one API call.
	SendTimeout string `json:"send_timeout,omitempty"`
}

type NotifierConfig struct {
	Workers     int    `json:"workers,omitempty"`
	QueueSize   int    `json:"queue_size,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// MaintenanceConfig controls the nightly housekeeping job: entries
// whose window closed longer than Retention ago are pruned and the
// calendar artifact is rebuilt.
type MaintenanceConfig struct {
	Enabled bool   `json:"enabled"`
	DailyAt string `json:"daily_at,omitempty"` // HH:MM, daemon timezone
	// Retention is a Go duration string.
	Retention string `json:"retention,omitempty"`
}

// Load reads, decodes and validates the config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jsonBytes, format, err := coerceToJSONBytes(path, data)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(jsonBytes))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config decode (%s): %w", format, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = "Asia/Kolkata"
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = ":4567"
	}
	if strings.TrimSpace(c.Data.EntriesPath) == "" {
		c.Data.EntriesPath = "./data/entries.json"
	}
	if strings.TrimSpace(c.Data.CalendarPath) == "" {
		c.Data.CalendarPath = "./calendars/tatkal-events.ics"
	}
	if strings.TrimSpace(c.Data.AuditPath) == "" {
		c.Data.AuditPath = "./data/audit.db"
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if strings.TrimSpace(c.Maintenance.DailyAt) == "" {
		c.Maintenance.DailyAt = "03:30"
	}
	if strings.TrimSpace(c.Maintenance.Retention) == "" {
		c.Maintenance.Retention = "24h"
	}
}

func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone: unknown zone %q: %w", c.Timezone, err)
	}
	for _, f := range []struct{ path, raw string }{
		{"server.read_timeout", c.Server.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeout},
		{"server.idle_timeout", c.Server.IdleTimeout},
		{"telegram.send_timeout", c.Telegram.SendTimeout},
		{"notifier.send_timeout", c.Notifier.SendTimeout},
		{"maintenance.retention", c.Maintenance.Retention},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	if c.Telegram.Enabled {
		if strings.TrimSpace(c.Telegram.Token) == "" {
			return fmt.Errorf("telegram.token is required when telegram.enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram.enabled")
		}
	}
	return nil
}

// Location resolves the configured zone. Validate has already checked
// it, so failures here only happen on hand-built configs.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
