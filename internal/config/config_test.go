package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Thresholds != DefaultThresholds() {
		t.Fatalf("thresholds = %+v, want defaults", cfg.Thresholds)
	}
	if cfg.Scan.ConflictHorizonDays != 30 {
		t.Fatalf("conflict_horizon_days = %d, want 30", cfg.Scan.ConflictHorizonDays)
	}
}

func TestLoadFromWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	body := `thresholds:
  overallocation_percent: 120
scan:
  conflict_horizon_days: 14
`
	if err := os.WriteFile(filepath.Join(dir, "zephix-risk.yml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Thresholds.OverallocationPercent != 120 {
		t.Fatalf("overallocation_percent = %v, want 120", cfg.Thresholds.OverallocationPercent)
	}
	// omitted keys keep defaults
	if cfg.Thresholds.ScheduleSlipDays != 3 {
		t.Fatalf("schedule_slip_days = %d, want default 3", cfg.Thresholds.ScheduleSlipDays)
	}
	if cfg.Scan.ConflictHorizonDays != 14 {
		t.Fatalf("conflict_horizon_days = %d, want 14", cfg.Scan.ConflictHorizonDays)
	}
	if cfg.Scan.DailyIntervalHours != 24 || cfg.Scan.HourlyIntervalMins != 60 {
		t.Fatalf("scan intervals = %d/%d, want 24/60", cfg.Scan.DailyIntervalHours, cfg.Scan.HourlyIntervalMins)
	}
}

func TestThresholdsForOverride(t *testing.T) {
	cfg, err := FromYAML([]byte(`orgs:
  acme:
    thresholds:
      overallocation_percent: 150
      blocked_days: 5
`))
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	th := cfg.ThresholdsFor("acme")
	if th.OverallocationPercent != 150 {
		t.Fatalf("overallocation_percent = %v, want 150", th.OverallocationPercent)
	}
	if th.BlockedDays != 5 {
		t.Fatalf("blocked_days = %d, want 5", th.BlockedDays)
	}
	// un-patched keys inherit
	if th.ScopeItemLimit != 3 {
		t.Fatalf("scope_item_limit = %d, want 3", th.ScopeItemLimit)
	}
	// another org is untouched
	if got := cfg.ThresholdsFor("other"); got != DefaultThresholds() {
		t.Fatalf("unknown org thresholds = %+v, want defaults", got)
	}
	// resolving must never mutate the defaults
	if cfg.Thresholds.OverallocationPercent != 100 {
		t.Fatalf("defaults mutated: %v", cfg.Thresholds.OverallocationPercent)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			"zero overallocation",
			"thresholds:\n  overallocation_percent: 0\n",
			"overallocation_percent must be positive",
		},
		{
			"completion floor above 100",
			"thresholds:\n  completion_floor_percent: 130\n",
			"completion_floor_percent must be within",
		},
		{
			"negative blocked days",
			"thresholds:\n  blocked_days: -1\n",
			"blocked_days must not be negative",
		},
		{
			"bad org override",
			"orgs:\n  acme:\n    thresholds:\n      budget_variance_percent: -5\n",
			"orgs.acme.thresholds.budget_variance_percent",
		},
		{
			"zero horizon",
			"scan:\n  conflict_horizon_days: -2\n",
			"conflict_horizon_days must be positive",
		},
		{
			"malformed yaml",
			"thresholds: [",
			"invalid config yaml",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromYAML([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestGenerateDefaultRoundTrips(t *testing.T) {
	cfg, err := FromYAML([]byte(GenerateDefault()))
	if err != nil {
		t.Fatalf("generated config does not parse: %v", err)
	}
	if cfg.Thresholds != DefaultThresholds() {
		t.Fatalf("generated thresholds = %+v, want defaults", cfg.Thresholds)
	}
}
