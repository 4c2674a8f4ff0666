package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Config is the full chimed configuration, loaded from a YAML file.
// Unknown keys are rejected so typos surface at startup instead of silently
// doing nothing.
type Config struct {
	Listen   string `yaml:"listen"`
	Timezone string `yaml:"timezone"` // IANA TZ for the scheduling core

	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Auth     AuthConfig     `yaml:"auth"`
	Notify   NotifyConfig   `yaml:"notify"`
}

type DatabaseConfig struct {
	Path        string   `yaml:"path"`
	BusyTimeout Duration `yaml:"busy_timeout"`
}

type LoggingConfig struct {
	Level   string     `yaml:"level"`
	Console bool       `yaml:"console"`
	File    FileConfig `yaml:"file"`
}

type FileConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret string   `yaml:"jwt_secret"`
	TokenTTL  Duration `yaml:"token_ttl"`
}

type NotifyConfig struct {
	RatePerSec int            `yaml:"rate_per_sec"`
	Voice      VoiceConfig    `yaml:"voice"`
	Telegram   TelegramConfig `yaml:"telegram"`
}

type VoiceConfig struct {
	Enabled bool     `yaml:"enabled"`
	Command string   `yaml:"command"`
	Timeout Duration `yaml:"timeout"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  int64  `yaml:"chat_id"`
}

// Duration is a YAML-friendly time.Duration ("5s", "2h30m").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Listen) == "" {
		c.Listen = ":8080"
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		c.Database.Path = "./chime.db"
	}
	if c.Database.BusyTimeout <= 0 {
		c.Database.BusyTimeout = Duration(5 * time.Second)
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "INFO"
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = Duration(24 * time.Hour)
	}
	if c.Notify.RatePerSec <= 0 {
		c.Notify.RatePerSec = 10
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if tz := strings.TrimSpace(c.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
	}
	if c.Notify.Telegram.Enabled {
		if strings.TrimSpace(c.Notify.Telegram.Token) == "" || c.Notify.Telegram.ChatID == 0 {
			return errors.New("notify.telegram requires token and chat_id when enabled")
		}
	}
	return nil
}
