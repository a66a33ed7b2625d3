// Copyright 2026 © The Helicon Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads runtime configuration from YAML files and
// HELICON_-prefixed environment variables, with env taking precedence.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/helicon-ai/helicon/pkg/remote"
	"github.com/helicon-ai/helicon/pkg/session"
	"github.com/helicon-ai/helicon/pkg/telemetry"
)

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Audit     AuditConfig     `koanf:"audit"`
	Policy    PolicyConfig    `koanf:"policy"`
	Skills    SkillsConfig    `koanf:"skills"`
	Servers   []ServerConfig  `koanf:"servers"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter              string            `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint          string            `koanf:"otlp_endpoint"`
	OTLPInsecure          bool              `koanf:"otlp_insecure"`
	Environment           string            `koanf:"environment"`
	SampleRatio           float64           `koanf:"sample_ratio"`
	MetricIntervalSeconds int               `koanf:"metric_interval_seconds"`
	Attributes            map[string]string `koanf:"attributes"`
}

type AuditConfig struct {
	Backend        string `koanf:"backend"` // memory, file, sqlite
	Path           string `koanf:"path"`
	FlushSeconds   int    `koanf:"flush_seconds"`
	BatchSize      int    `koanf:"batch_size"`
	RetentionLimit int    `koanf:"retention_limit"`
}

type PolicyConfig struct {
	MaxIterations        int      `koanf:"max_iterations"`
	TimeoutSeconds       int      `koanf:"timeout_seconds"`
	MaxConcurrentActions int      `koanf:"max_concurrent_actions"`
	RequireApproval      bool     `koanf:"require_approval"`
	HighRiskActions      []string `koanf:"high_risk_actions"`
}

type SkillsConfig struct {
	Dir string `koanf:"dir"`
}

type ServerConfig struct {
	ID                 string            `koanf:"id"`
	Name               string            `koanf:"name"`
	Transport          string            `koanf:"transport"` // stdio, sse, streamablehttp
	Command            string            `koanf:"command"`
	Args               []string          `koanf:"args"`
	Env                map[string]string `koanf:"env"`
	URL                string            `koanf:"url"`
	CallTimeoutSeconds int               `koanf:"call_timeout_seconds"`
}

// Load reads configuration from an optional YAML file and the
// environment (HELICON_LOG_LEVEL -> log.level).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("telemetry.exporter", "stdout")
	k.Set("telemetry.sample_ratio", 1.0)

	k.Set("audit.backend", "memory")
	k.Set("audit.flush_seconds", 2)
	k.Set("audit.batch_size", 32)
	k.Set("audit.retention_limit", 10000)

	k.Set("policy.max_iterations", 10)
	k.Set("policy.timeout_seconds", 120)
	k.Set("policy.max_concurrent_actions", 4)
	k.Set("policy.require_approval", true)

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("HELICON_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "HELICON_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RuntimePolicy converts the policy section into the session policy.
func (c *Config) RuntimePolicy() session.RuntimePolicy {
	policy := session.DefaultRuntimePolicy()
	if c.Policy.MaxIterations > 0 {
		policy.MaxIterations = c.Policy.MaxIterations
	}
	if c.Policy.TimeoutSeconds > 0 {
		policy.Timeout = time.Duration(c.Policy.TimeoutSeconds) * time.Second
	}
	if c.Policy.MaxConcurrentActions > 0 {
		policy.MaxConcurrentActions = c.Policy.MaxConcurrentActions
	}
	policy.RequireApproval = c.Policy.RequireApproval
	policy.HighRiskActions = c.Policy.HighRiskActions
	return policy
}

// ServerConfigs converts the servers section into remote client configs.
func (c *Config) ServerConfigs() []remote.ServerConfig {
	out := make([]remote.ServerConfig, 0, len(c.Servers))
	for _, s := range c.Servers {
		cfg := remote.ServerConfig{
			ID:        s.ID,
			Name:      s.Name,
			Transport: remote.TransportKind(s.Transport),
			Command:   s.Command,
			Args:      s.Args,
			Env:       s.Env,
			URL:       s.URL,
		}
		if s.CallTimeoutSeconds > 0 {
			cfg.CallTimeout = time.Duration(s.CallTimeoutSeconds) * time.Second
		}
		out = append(out, cfg)
	}
	return out
}

// TelemetrySettings converts the telemetry section for the exporter setup.
func (c *Config) TelemetrySettings() telemetry.Config {
	out := telemetry.Config{
		Exporter:      c.Telemetry.Exporter,
		OTLPEndpoint:  c.Telemetry.OTLPEndpoint,
		OTLPInsecure:  c.Telemetry.OTLPInsecure,
		Environment:   c.Telemetry.Environment,
		SampleRatio:   c.Telemetry.SampleRatio,
		ResourceAttrs: c.Telemetry.Attributes,
	}
	if c.Telemetry.MetricIntervalSeconds > 0 {
		out.MetricInterval = time.Duration(c.Telemetry.MetricIntervalSeconds) * time.Second
	}
	return out
}

// AuditFlushInterval returns the configured flush interval.
func (c *Config) AuditFlushInterval() time.Duration {
	if c.Audit.FlushSeconds > 0 {
		return time.Duration(c.Audit.FlushSeconds) * time.Second
	}
	return 2 * time.Second
}
