package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"exclusivewire/internal/domain"
)

// Config models exclusivewire.yml.
type Config struct {
	Marketplace struct {
		Name string `yaml:"name"`
	} `yaml:"marketplace"`
	Plans map[string]PlanConfig `yaml:"plans"`
	Verification struct {
		// Pointer so an explicit 0 is distinguishable from "unset".
		TrustBonus *int `yaml:"trust_bonus"`
	} `yaml:"verification"`
	Webhooks []Webhook `yaml:"webhooks"`
}

// PlanConfig is the billing shape of one announcement plan.
type PlanConfig struct {
	PayoutSplit int `yaml:"payout_split"`
}

// Webhook is one HTTP endpoint notified of new lifecycle events.
type Webhook struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

const defaultTrustBonus = 25

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "exclusivewire.yml")
}

// Default returns the built-in configuration used when no file exists.
func Default() *Config {
	var cfg Config
	cfg.Marketplace.Name = "exclusivewire"
	cfg.Plans = map[string]PlanConfig{
		string(domain.PlanBasic):   {PayoutSplit: 0},
		string(domain.PlanPremium): {PayoutSplit: 30},
	}
	bonus := defaultTrustBonus
	cfg.Verification.TrustBonus = &bonus
	return &cfg
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	for name, plan := range c.Plans {
		if _, err := domain.ParsePlan(name); err != nil {
			return fmt.Errorf("config.plans: %w", err)
		}
		if plan.PayoutSplit < 0 || plan.PayoutSplit > 100 {
			return fmt.Errorf("config.plans.%s.payout_split must be within 0..100", name)
		}
	}
	if c.Verification.TrustBonus != nil && *c.Verification.TrustBonus < 0 {
		return fmt.Errorf("config.verification.trust_bonus must not be negative")
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	return nil
}

// PayoutSplit returns the configured journalist share for a plan,
// falling back to the built-in defaults for plans the file omits.
func (c *Config) PayoutSplit(plan domain.Plan) int {
	if p, ok := c.Plans[string(plan)]; ok {
		return p.PayoutSplit
	}
	return Default().Plans[string(plan)].PayoutSplit
}

// TrustBonus returns the trust increment applied on verification. An
// explicitly configured 0 disables the bump; only an absent key falls back
// to the default.
func (c *Config) TrustBonus() int {
	if c.Verification.TrustBonus == nil {
		return defaultTrustBonus
	}
	return *c.Verification.TrustBonus
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOptional returns the default config if the workspace has no file.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}
