// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bcem/graphmail/internal/graph"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GRAPH_TENANT_ID", "GRAPH_CLIENT_ID", "GRAPH_CLIENT_SECRET",
		"MAIL_FROM_ADDRESS", "MAIL_FROM_NAME", "HTTP_TIMEOUT",
		"REDIS_URL", "OUTBOUND_QUEUE", "DATABASE_URL", "PORT",
	} {
		t.Setenv(k, "")
	}
}

// TestLoadFile verifies YAML values and ${VAR} expansion.
func TestLoadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_CLIENT_SECRET", "s3cret")

	path := writeConfig(t, `
mailer:
  tenant_id: foo_tenant_id
  client_id: foo_client_id
  client_secret: ${TEST_CLIENT_SECRET}
  access_token_ttl: 600
  from:
    address: taylor@laravel.com
    name: Taylor
http:
  timeout: 5s
redis:
  url: redis://cache:6379/1
  queue: mail:out
database:
  url: postgres://mail@db/mail
server:
  port: 9090
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := cfg.Mailer
	if m.TenantID != "foo_tenant_id" || m.ClientID != "foo_client_id" || m.ClientSecret != "s3cret" {
		t.Errorf("mailer = %+v", m)
	}
	if m.AccessTokenTTL != 600*time.Second {
		t.Errorf("ttl = %v, want 10m", m.AccessTokenTTL)
	}
	if m.FromAddress != "taylor@laravel.com" || m.FromName != "Taylor" {
		t.Errorf("from = %q %q", m.FromAddress, m.FromName)
	}
	if cfg.HTTPTimeout != 5*time.Second {
		t.Errorf("timeout = %v", cfg.HTTPTimeout)
	}
	if cfg.RedisURL != "redis://cache:6379/1" || cfg.OutboundQueue != "mail:out" {
		t.Errorf("redis = %q %q", cfg.RedisURL, cfg.OutboundQueue)
	}
	if cfg.DatabaseURL != "postgres://mail@db/mail" {
		t.Errorf("database = %q", cfg.DatabaseURL)
	}
	if cfg.Port != 9090 {
		t.Errorf("port = %d", cfg.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

// TestLoadFile_Defaults verifies defaults for an almost empty file.
func TestLoadFile_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFile(writeConfig(t, "mailer: {}\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Mailer.TenantID != "common" {
		t.Errorf("tenant = %q, want common", cfg.Mailer.TenantID)
	}
	if cfg.Mailer.AccessTokenTTL != graph.DefaultAccessTokenTTL {
		t.Errorf("ttl = %v", cfg.Mailer.AccessTokenTTL)
	}
	if cfg.HTTPTimeout != graph.DefaultTimeout {
		t.Errorf("timeout = %v", cfg.HTTPTimeout)
	}
	if cfg.OutboundQueue != "graphmail:outbound" {
		t.Errorf("queue = %q", cfg.OutboundQueue)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.RedisURL != "" || cfg.DatabaseURL != "" {
		t.Errorf("optional backends should be empty: %q %q", cfg.RedisURL, cfg.DatabaseURL)
	}
}

// TestLoadFile_Errors verifies unreadable and malformed files fail.
func TestLoadFile_Errors(t *testing.T) {
	clearEnv(t)

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadFile(writeConfig(t, "mailer: [")); err == nil {
		t.Error("expected error for malformed YAML")
	}
	if _, err := LoadFile(writeConfig(t, "http:\n  timeout: soon\n")); err == nil {
		t.Error("expected error for bad timeout")
	}
}

// TestValidate verifies missing fields are reported in order.
func TestValidate(t *testing.T) {
	full := MailerConfig{
		TenantID:     "t",
		ClientID:     "c",
		ClientSecret: "s",
		FromAddress:  "a@example.com",
	}

	tests := []struct {
		name      string
		mutate    func(*MailerConfig)
		wantField string
	}{
		{"tenant", func(m *MailerConfig) { m.TenantID = "" }, graph.FieldTenantID},
		{"client id", func(m *MailerConfig) { m.ClientID = ""; m.ClientSecret = "" }, graph.FieldClientID},
		{"client secret", func(m *MailerConfig) { m.ClientSecret = "" }, graph.FieldClientSecret},
		{"from", func(m *MailerConfig) { m.FromAddress = "" }, graph.FieldFromAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := full
			tt.mutate(&m)
			err := (&Config{Mailer: m}).Validate()

			var cfgErr *graph.ConfigurationMissing
			if !errors.As(err, &cfgErr) {
				t.Fatalf("err = %v, want *ConfigurationMissing", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", cfgErr.Field, tt.wantField)
			}
		})
	}
}
