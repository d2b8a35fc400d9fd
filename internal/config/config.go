package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models zephix-risk.yml: detection thresholds, scan windows and
// per-organization overrides. Overrides are resolved into an immutable
// Thresholds value before a scan starts; nothing mutates the defaults in place.
type Config struct {
	Thresholds Thresholds `yaml:"thresholds"`
	Scan       struct {
		ConflictHorizonDays int `yaml:"conflict_horizon_days"`
		DailyIntervalHours  int `yaml:"daily_interval_hours"`
		HourlyIntervalMins  int `yaml:"hourly_interval_minutes"`
	} `yaml:"scan"`
	Orgs map[string]OrgOverride `yaml:"orgs"`
}

// Thresholds are the tunable limits consumed by the risk rules.
type Thresholds struct {
	OverallocationPercent  float64 `yaml:"overallocation_percent"`
	ScheduleSlipDays       int     `yaml:"schedule_slip_days"`
	CompletionFloorPercent float64 `yaml:"completion_floor_percent"`
	BudgetVariancePercent  float64 `yaml:"budget_variance_percent"`
	BlockedDays            int     `yaml:"blocked_days"`
	ScopeGraceDays         int     `yaml:"scope_grace_days"`
	ScopeItemLimit         int     `yaml:"scope_item_limit"`
}

// OrgOverride carries per-organization threshold overrides. Zero-valued fields
// fall back to the defaults.
type OrgOverride struct {
	Thresholds ThresholdPatch `yaml:"thresholds"`
}

type ThresholdPatch struct {
	OverallocationPercent  *float64 `yaml:"overallocation_percent"`
	ScheduleSlipDays       *int     `yaml:"schedule_slip_days"`
	CompletionFloorPercent *float64 `yaml:"completion_floor_percent"`
	BudgetVariancePercent  *float64 `yaml:"budget_variance_percent"`
	BlockedDays            *int     `yaml:"blocked_days"`
	ScopeGraceDays         *int     `yaml:"scope_grace_days"`
	ScopeItemLimit         *int     `yaml:"scope_item_limit"`
}

// DefaultThresholds returns the documented rule defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		OverallocationPercent:  100,
		ScheduleSlipDays:       3,
		CompletionFloorPercent: 50,
		BudgetVariancePercent:  20,
		BlockedDays:            3,
		ScopeGraceDays:         7,
		ScopeItemLimit:         3,
	}
}

// Default returns a fully populated config.
func Default() *Config {
	cfg := &Config{Thresholds: DefaultThresholds()}
	cfg.Scan.ConflictHorizonDays = 30
	cfg.Scan.DailyIntervalHours = 24
	cfg.Scan.HourlyIntervalMins = 60
	return cfg
}

// ThresholdsFor resolves the effective thresholds for an organization: the
// defaults with any override applied. The returned value is a copy.
func (c *Config) ThresholdsFor(orgID string) Thresholds {
	th := c.Thresholds
	ov, ok := c.Orgs[orgID]
	if !ok {
		return th
	}
	p := ov.Thresholds
	if p.OverallocationPercent != nil {
		th.OverallocationPercent = *p.OverallocationPercent
	}
	if p.ScheduleSlipDays != nil {
		th.ScheduleSlipDays = *p.ScheduleSlipDays
	}
	if p.CompletionFloorPercent != nil {
		th.CompletionFloorPercent = *p.CompletionFloorPercent
	}
	if p.BudgetVariancePercent != nil {
		th.BudgetVariancePercent = *p.BudgetVariancePercent
	}
	if p.BlockedDays != nil {
		th.BlockedDays = *p.BlockedDays
	}
	if p.ScopeGraceDays != nil {
		th.ScopeGraceDays = *p.ScopeGraceDays
	}
	if p.ScopeItemLimit != nil {
		th.ScopeItemLimit = *p.ScopeItemLimit
	}
	return th
}

// Validate rejects malformed thresholds at load time, never mid-scan.
func (c *Config) Validate() error {
	if err := c.Thresholds.validate(""); err != nil {
		return err
	}
	for org := range c.Orgs {
		if org == "" {
			return fmt.Errorf("config.orgs contains empty org id")
		}
		th := c.ThresholdsFor(org)
		if err := th.validate(org); err != nil {
			return err
		}
	}
	if c.Scan.ConflictHorizonDays <= 0 {
		return fmt.Errorf("scan.conflict_horizon_days must be positive")
	}
	return nil
}

func (t Thresholds) validate(org string) error {
	where := "thresholds"
	if org != "" {
		where = fmt.Sprintf("orgs.%s.thresholds", org)
	}
	if t.OverallocationPercent <= 0 {
		return fmt.Errorf("%s.overallocation_percent must be positive", where)
	}
	if t.ScheduleSlipDays < 0 {
		return fmt.Errorf("%s.schedule_slip_days must not be negative", where)
	}
	if t.CompletionFloorPercent < 0 || t.CompletionFloorPercent > 100 {
		return fmt.Errorf("%s.completion_floor_percent must be within [0,100]", where)
	}
	if t.BudgetVariancePercent <= 0 {
		return fmt.Errorf("%s.budget_variance_percent must be positive", where)
	}
	if t.BlockedDays < 0 {
		return fmt.Errorf("%s.blocked_days must not be negative", where)
	}
	if t.ScopeGraceDays < 0 {
		return fmt.Errorf("%s.scope_grace_days must not be negative", where)
	}
	if t.ScopeItemLimit < 0 {
		return fmt.Errorf("%s.scope_item_limit must not be negative", where)
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "zephix-risk.yml")
}

// Load reads config from the workspace, falling back to defaults when the
// file does not exist (a missing override is never an error).
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes. Omitted fields
// take the defaults before validation.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if cfg.Scan.DailyIntervalHours <= 0 {
		cfg.Scan.DailyIntervalHours = 24
	}
	if cfg.Scan.HourlyIntervalMins <= 0 {
		cfg.Scan.HourlyIntervalMins = 60
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// GenerateDefault returns the default config YAML for seeding a workspace.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `thresholds:
  overallocation_percent: 100
  schedule_slip_days: 3
  completion_floor_percent: 50
  budget_variance_percent: 20
  blocked_days: 3
  scope_grace_days: 7
  scope_item_limit: 3

scan:
  conflict_horizon_days: 30
  daily_interval_hours: 24
  hourly_interval_minutes: 60

# Per-organization overrides. Omitted keys inherit the defaults above.
# orgs:
#   acme:
#     thresholds:
#       overallocation_percent: 120
#       blocked_days: 5
`
