//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package config loads the service configuration from YAML and the
// environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/phuocNg964/ProMeet-AI/log"
)

// Checkpoint backends.
const (
	CheckpointInMemory = "inmemory"
	CheckpointSQLite   = "sqlite"
	CheckpointRedis    = "redis"
)

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Model      ModelConfig      `yaml:"model"`
	Speech     SpeechConfig     `yaml:"speech"`
	Backend    BackendConfig    `yaml:"backend"`
	Email      EmailConfig      `yaml:"email"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Knowledge  KnowledgeConfig  `yaml:"knowledge"`
	Meeting    MeetingConfig    `yaml:"meeting"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	LogLevel   string           `yaml:"log_level"`
	LogFormat  string           `yaml:"log_format"`
}

// ServerConfig configures the HTTP host.
type ServerConfig struct {
	Addr        string        `yaml:"addr"`
	CORSOrigins []string      `yaml:"cors_origins"`
	Workers     int           `yaml:"workers"`
	NodeTimeout time.Duration `yaml:"node_timeout"`
}

// ModelConfig configures the chat model.
type ModelConfig struct {
	Name        string        `yaml:"name"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature *float64      `yaml:"temperature"`
	TopP        *float64      `yaml:"top_p"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  *int          `yaml:"max_retries"`
}

// SpeechConfig configures transcription.
type SpeechConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	CacheDir string `yaml:"cache_dir"`
}

// BackendConfig configures the project API client.
type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// EmailConfig configures SMTP notifications.
type EmailConfig struct {
	Sender   string `yaml:"sender"`
	Password string `yaml:"password"`
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port"`
}

// CheckpointConfig selects and configures the checkpoint store.
type CheckpointConfig struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
	RedisURL   string `yaml:"redis_url"`
	KeyPrefix  string `yaml:"key_prefix"`
	MaxHistory int    `yaml:"max_history"`
}

// KnowledgeConfig points at the documents searched by the chat assistant.
type KnowledgeConfig struct {
	DocsDir    string `yaml:"docs_dir"`
	MaxResults int    `yaml:"max_results"`
}

// MeetingConfig configures the meeting workflow.
type MeetingConfig struct {
	MaxRevisions  int  `yaml:"max_revisions"`
	Notifications bool `yaml:"notifications"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Protocol    string  `yaml:"protocol"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8001",
			CORSOrigins: []string{"*"},
			Workers:     8,
			NodeTimeout: 5 * time.Minute,
		},
		Model:  ModelConfig{Name: "gpt-4o-mini"},
		Speech: SpeechConfig{Provider: "gemini", Model: "gemini-2.5-flash"},
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000/api",
			Timeout: 30 * time.Second,
		},
		Email: EmailConfig{SMTPHost: "smtp.gmail.com", SMTPPort: 587},
		Checkpoint: CheckpointConfig{
			Backend:    CheckpointInMemory,
			SQLitePath: "promeet-checkpoints.db",
			RedisURL:   "redis://localhost:6379/0",
			KeyPrefix:  "promeet",
		},
		Knowledge: KnowledgeConfig{MaxResults: 3},
		Meeting:   MeetingConfig{MaxRevisions: 2, Notifications: true},
		Telemetry: TelemetryConfig{Endpoint: "localhost:4317", Protocol: "grpc", SampleRatio: 1},
		LogLevel:  log.LevelInfo,
		LogFormat: log.FormatConsole,
	}
}

// Load reads path, when not empty, over the defaults and then applies the
// environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return errors.New("yaml: multiple documents are not allowed")
		}
		return err
	}
	return nil
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				return
			}
		}
	}
	str(&c.Model.APIKey, "OPENAI_API_KEY")
	str(&c.Model.BaseURL, "OPENAI_BASE_URL")
	str(&c.Model.Name, "OPENAI_MODEL")
	str(&c.Speech.APIKey, "GOOGLE_API_KEY", "GEMINI_API_KEY")
	str(&c.Backend.BaseURL, "API_BASE_URL")
	str(&c.Backend.Token, "API_BEARER_TOKEN")
	str(&c.Email.Sender, "EMAIL_SENDER")
	str(&c.Email.Password, "EMAIL_PASSWORD")
	str(&c.Server.Addr, "PROMEET_ADDR")
	str(&c.Checkpoint.Backend, "PROMEET_CHECKPOINT_BACKEND")
	str(&c.Checkpoint.SQLitePath, "PROMEET_SQLITE_PATH")
	str(&c.Checkpoint.RedisURL, "PROMEET_REDIS_URL")
	str(&c.Knowledge.DocsDir, "PROMEET_DOCS_DIR")
	str(&c.LogLevel, "PROMEET_LOG_LEVEL")
	str(&c.LogFormat, "PROMEET_LOG_FORMAT")
	if v, ok := lookup("PROMEET_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PROMEET_WORKERS: %w", err)
		}
		c.Server.Workers = n
	}
	return nil
}

// Validate reports configuration the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Checkpoint.Backend {
	case CheckpointInMemory, CheckpointSQLite, CheckpointRedis:
	default:
		errs = append(errs, fmt.Errorf("checkpoint.backend: unknown backend %q", c.Checkpoint.Backend))
	}
	if c.Checkpoint.Backend == CheckpointSQLite && c.Checkpoint.SQLitePath == "" {
		errs = append(errs, errors.New("checkpoint.sqlite_path is required for the sqlite backend"))
	}
	if c.Checkpoint.Backend == CheckpointRedis && c.Checkpoint.RedisURL == "" {
		errs = append(errs, errors.New("checkpoint.redis_url is required for the redis backend"))
	}
	if c.Server.Workers <= 0 {
		errs = append(errs, fmt.Errorf("server.workers must be positive, got %d", c.Server.Workers))
	}
	if c.Server.NodeTimeout < 0 {
		errs = append(errs, errors.New("server.node_timeout must not be negative"))
	}
	if c.Meeting.MaxRevisions < 0 {
		errs = append(errs, errors.New("meeting.max_revisions must not be negative"))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if !log.ValidFormat(c.LogFormat) {
		errs = append(errs, fmt.Errorf("log_format: unknown format %q", c.LogFormat))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio must be within [0, 1], got %v", c.Telemetry.SampleRatio))
	}
	switch c.Telemetry.Protocol {
	case "", "grpc", "http":
	default:
		errs = append(errs, fmt.Errorf("telemetry.protocol: unknown protocol %q", c.Telemetry.Protocol))
	}
	return errors.Join(errs...)
}
