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

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bcem/graphmail/internal/graph"
)

// MailerConfig holds the Graph application credentials and sender defaults.
type MailerConfig struct {
	TenantID       string
	ClientID       string
	ClientSecret   string
	AccessTokenTTL time.Duration
	FromAddress    string
	FromName       string
}

// Config holds all configuration for the mail service.
type Config struct {
	Mailer MailerConfig

	HTTPTimeout time.Duration

	// Redis (token cache and job queue). Empty URL selects the in-memory cache.
	RedisURL      string
	OutboundQueue string

	// Postgres outbox. Empty URL disables recording.
	DatabaseURL string

	Port int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Mailer struct {
		TenantID       string `yaml:"tenant_id"`
		ClientID       string `yaml:"client_id"`
		ClientSecret   string `yaml:"client_secret"`
		AccessTokenTTL int    `yaml:"access_token_ttl"`
		From           struct {
			Address string `yaml:"address"`
			Name    string `yaml:"name"`
		} `yaml:"from"`
	} `yaml:"mailer"`
	HTTP struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"http"`
	Redis struct {
		URL   string `yaml:"url"`
		Queue string `yaml:"queue"`
	} `yaml:"redis"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

// Load reads the file named by CONFIG_PATH (default config.yaml).
func Load() (*Config, error) {
	return LoadFile(envOrDefault("CONFIG_PATH", "config.yaml"))
}

// LoadFile reads configuration from a YAML file, expanding ${VAR}
// references, and fills unset values from the environment and defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	ttl := graph.DefaultAccessTokenTTL
	if raw.Mailer.AccessTokenTTL > 0 {
		ttl = time.Duration(raw.Mailer.AccessTokenTTL) * time.Second
	}

	timeout := envOrDefaultDuration("HTTP_TIMEOUT", graph.DefaultTimeout)
	if raw.HTTP.Timeout != "" {
		d, err := time.ParseDuration(raw.HTTP.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parse http.timeout %q: %w", raw.HTTP.Timeout, err)
		}
		timeout = d
	}

	port := raw.Server.Port
	if port == 0 {
		port = envOrDefaultInt("PORT", 8080)
	}

	return &Config{
		Mailer: MailerConfig{
			TenantID:       firstNonEmpty(raw.Mailer.TenantID, envOrDefault("GRAPH_TENANT_ID", "common")),
			ClientID:       firstNonEmpty(raw.Mailer.ClientID, os.Getenv("GRAPH_CLIENT_ID")),
			ClientSecret:   firstNonEmpty(raw.Mailer.ClientSecret, os.Getenv("GRAPH_CLIENT_SECRET")),
			AccessTokenTTL: ttl,
			FromAddress:    firstNonEmpty(raw.Mailer.From.Address, os.Getenv("MAIL_FROM_ADDRESS")),
			FromName:       firstNonEmpty(raw.Mailer.From.Name, os.Getenv("MAIL_FROM_NAME")),
		},
		HTTPTimeout:   timeout,
		RedisURL:      firstNonEmpty(raw.Redis.URL, os.Getenv("REDIS_URL")),
		OutboundQueue: firstNonEmpty(raw.Redis.Queue, envOrDefault("OUTBOUND_QUEUE", "graphmail:outbound")),
		DatabaseURL:   firstNonEmpty(raw.Database.URL, os.Getenv("DATABASE_URL")),
		Port:          port,
	}, nil
}

// Validate reports the first missing mailer setting.
func (c *Config) Validate() error {
	switch {
	case c.Mailer.TenantID == "":
		return &graph.ConfigurationMissing{Field: graph.FieldTenantID}
	case c.Mailer.ClientID == "":
		return &graph.ConfigurationMissing{Field: graph.FieldClientID}
	case c.Mailer.ClientSecret == "":
		return &graph.ConfigurationMissing{Field: graph.FieldClientSecret}
	case c.Mailer.FromAddress == "":
		return &graph.ConfigurationMissing{Field: graph.FieldFromAddress}
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
