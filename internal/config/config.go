// Package config loads the client facade's YAML configuration, overlaying
// a caller's file onto this package's own embedded defaults the way
// pkg/connector/config.go overlays a network config onto its own
// example-config.yaml.
package config

import (
	_ "embed"
	"fmt"
	"time"

	"go.mau.fi/util/configupgrade"
	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var exampleConfig string

// Config is the client facade's full configuration.
type Config struct {
	Account      AccountConfig      `yaml:"account"`
	Transport    TransportConfig    `yaml:"transport"`
	Store        StoreConfig        `yaml:"store"`
	OMEMO        OMEMOConfig        `yaml:"omemo"`
	Timeouts     TimeoutsConfig     `yaml:"timeouts"`
	LinkPreviews LinkPreviewConfig  `yaml:"link_previews"`
}

// AccountConfig identifies the account this connection authenticates as.
type AccountConfig struct {
	JID      string `yaml:"jid"`
	Resource string `yaml:"resource"`
}

// TransportConfig selects and addresses the wire transport.
type TransportConfig struct {
	Kind string `yaml:"kind"`
	URL  string `yaml:"url"`
}

// StoreConfig locates the account's indexed key-value store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// OMEMOConfig toggles whether the client sets up the OMEMO engine; it does
// not switch on encryption for any room.
type OMEMOConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TimeoutsConfig overrides the runtime's liveness timers (spec's
// T_timeout/T_ping), expressed as parseable duration strings.
type TimeoutsConfig struct {
	Request string `yaml:"request"`
	Ping    string `yaml:"ping"`
	Sweep   string `yaml:"sweep"`
}

// LinkPreviewConfig tunes the supplemented PreviewLink operation.
type LinkPreviewConfig struct {
	Enabled      bool   `yaml:"enabled"`
	FetchTimeout string `yaml:"fetch_timeout"`
}

// Load parses raw YAML, filling in anything it omits from this package's
// embedded defaults, the overlay pkg/connector/config.go performs with its
// own example-config.yaml.
func Load(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(exampleConfig), &cfg); err != nil {
		return nil, fmt.Errorf("config: malformed embedded defaults: %w", err)
	}
	if len(raw) > 0 {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	if cfg.Account.JID == "" {
		return nil, fmt.Errorf("config: account.jid is required")
	}
	return &cfg, nil
}

// RequestTimeout parses Timeouts.Request, falling back to 15s if empty or
// malformed.
func (c *Config) RequestTimeout() time.Duration { return parseOr(c.Timeouts.Request, 15*time.Second) }

// PingInterval parses Timeouts.Ping, falling back to 60s.
func (c *Config) PingInterval() time.Duration { return parseOr(c.Timeouts.Ping, 60*time.Second) }

// SweepInterval parses Timeouts.Sweep, falling back to 2s.
func (c *Config) SweepInterval() time.Duration { return parseOr(c.Timeouts.Sweep, 2*time.Second) }

// LinkPreviewFetchTimeout parses LinkPreviews.FetchTimeout, falling back
// to 10s.
func (c *Config) LinkPreviewFetchTimeout() time.Duration {
	return parseOr(c.LinkPreviews.FetchTimeout, 10*time.Second)
}

func parseOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// upgradeConfig declares, for each config path, what a schema change
// should preserve from a caller's existing file when the embedded
// defaults gain or rename a field (spec §6 "Config").
func upgradeConfig(helper configupgrade.Helper) {
	helper.Copy(configupgrade.Str, "account", "jid")
	helper.Copy(configupgrade.Str, "account", "resource")
	helper.Copy(configupgrade.Str, "transport", "kind")
	helper.Copy(configupgrade.Str, "transport", "url")
	helper.Copy(configupgrade.Str, "store", "path")
	helper.Copy(configupgrade.Bool, "omemo", "enabled")
	helper.Copy(configupgrade.Str, "timeouts", "request")
	helper.Copy(configupgrade.Str, "timeouts", "ping")
	helper.Copy(configupgrade.Str, "timeouts", "sweep")
	helper.Copy(configupgrade.Bool, "link_previews", "enabled")
	helper.Copy(configupgrade.Str, "link_previews", "fetch_timeout")
}

// Upgrader exposes the configupgrade.Upgrader for this schema, the same
// shape pkg/connector/connector.go's GetConfig returns for a host
// framework to apply against a caller's on-disk config.
func Upgrader() configupgrade.Upgrader {
	return configupgrade.SimpleUpgrader(upgradeConfig)
}

// ExampleYAML returns the embedded defaults document verbatim.
func ExampleYAML() string { return exampleConfig }
