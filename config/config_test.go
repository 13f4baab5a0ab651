//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "promeet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, CheckpointInMemory, cfg.Checkpoint.Backend)
	assert.Equal(t, 2, cfg.Meeting.MaxRevisions)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Setenv("PROMEET_CHECKPOINT_BACKEND", "")
	path := writeConfig(t, `
server:
  addr: ":9000"
  workers: 2
  node_timeout: 90s
checkpoint:
  backend: sqlite
  sqlite_path: /tmp/cp.db
meeting:
  max_revisions: 1
  notifications: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 2, cfg.Server.Workers)
	assert.Equal(t, 90*time.Second, cfg.Server.NodeTimeout)
	assert.Equal(t, CheckpointSQLite, cfg.Checkpoint.Backend)
	assert.Equal(t, 1, cfg.Meeting.MaxRevisions)
	assert.False(t, cfg.Meeting.Notifications)
	assert.Equal(t, "smtp.gmail.com", cfg.Email.SMTPHost)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  adress: x\n"))
	assert.Error(t, err)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(env(map[string]string{
		"OPENAI_API_KEY":             "sk-test",
		"GEMINI_API_KEY":             "g-key",
		"API_BASE_URL":               "http://api:8000/api",
		"PROMEET_CHECKPOINT_BACKEND": "redis",
		"PROMEET_WORKERS":            "3",
		"EMAIL_SENDER":               "  bot@example.com ",
		"PROMEET_LOG_LEVEL":          "",
	})))
	assert.Equal(t, "sk-test", cfg.Model.APIKey)
	assert.Equal(t, "g-key", cfg.Speech.APIKey)
	assert.Equal(t, "http://api:8000/api", cfg.Backend.BaseURL)
	assert.Equal(t, CheckpointRedis, cfg.Checkpoint.Backend)
	assert.Equal(t, 3, cfg.Server.Workers)
	assert.Equal(t, "bot@example.com", cfg.Email.Sender)
	assert.Equal(t, "info", cfg.LogLevel)

	assert.Error(t, cfg.ApplyEnv(env(map[string]string{"PROMEET_WORKERS": "many"})))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Checkpoint.Backend = "etcd" }},
		{"zero workers", func(c *Config) { c.Server.Workers = 0 }},
		{"sqlite without path", func(c *Config) {
			c.Checkpoint.Backend = CheckpointSQLite
			c.Checkpoint.SQLitePath = ""
		}},
		{"negative revisions", func(c *Config) { c.Meeting.MaxRevisions = -1 }},
		{"unknown protocol", func(c *Config) { c.Telemetry.Protocol = "udp" }},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"unknown log format", func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
