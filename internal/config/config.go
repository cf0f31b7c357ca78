// Package config loads the optional srvgraph YAML configuration file.
// Values from the file only fill settings the command line left unset.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wondertwin-ai/srvgraph/internal/store"
	"github.com/wondertwin-ai/srvgraph/pkg/twincore"
)

// DefaultAddr is the listen address used when neither flags, PORT nor the
// config file name one.
const DefaultAddr = "127.0.0.1:3000"

// WebhookConfig describes where record events are delivered.
type WebhookConfig struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

// SeedRecord is one initial record. Records are seeded at ids 0..n-1 in
// file order.
type SeedRecord struct {
	Name string `yaml:"name"`
	Desc string `yaml:"desc"`
}

// Config represents the contents of a srvgraph config file.
type Config struct {
	Addr     string        `yaml:"addr"`
	Verbose  bool          `yaml:"verbose"`
	Latency  string        `yaml:"latency"`
	FailRate *float64      `yaml:"fail_rate"`
	Webhook  WebhookConfig `yaml:"webhook"`
	Seed     []SeedRecord  `yaml:"seed"`

	latency time.Duration
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML config data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Latency != "" {
		d, err := time.ParseDuration(cfg.Latency)
		if err != nil {
			return nil, fmt.Errorf("invalid latency %q: %w", cfg.Latency, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("latency must not be negative")
		}
		cfg.latency = d
	}
	if cfg.FailRate != nil && (*cfg.FailRate < 0 || *cfg.FailRate > 1) {
		return nil, fmt.Errorf("fail_rate must be between 0.0 and 1.0")
	}
	return &cfg, nil
}

// Apply copies file settings into tc wherever tc still holds its zero value.
func (c *Config) Apply(tc *twincore.Config) {
	if tc.Addr == "" {
		tc.Addr = c.Addr
	}
	if !tc.Verbose {
		tc.Verbose = c.Verbose
	}
	if tc.Latency == 0 {
		tc.Latency = c.latency
	}
	if tc.FailRate == 0 && c.FailRate != nil {
		tc.FailRate = *c.FailRate
	}
	if tc.WebhookURL == "" {
		tc.WebhookURL = c.Webhook.URL
	}
	if tc.WebhookSecret == "" {
		tc.WebhookSecret = c.Webhook.Secret
	}
}

// Records returns the configured seed as store records, or nil when the
// file defines none.
func (c *Config) Records() []store.Record {
	if len(c.Seed) == 0 {
		return nil
	}
	out := make([]store.Record, len(c.Seed))
	for i, s := range c.Seed {
		out[i] = store.Record{Name: s.Name, Desc: s.Desc}
	}
	return out
}
