package domain

import "testing"

func TestClassifyConflictSeverity(t *testing.T) {
	cases := []struct {
		total float64
		want  Severity
	}{
		{101, SeverityLow},
		{110, SeverityLow},
		{110.5, SeverityMedium},
		{125, SeverityMedium},
		{126, SeverityHigh},
		{150, SeverityHigh},
		{151, SeverityCritical},
		{300, SeverityCritical},
	}
	for _, tc := range cases {
		if got := ClassifyConflictSeverity(tc.total); got != tc.want {
			t.Errorf("ClassifyConflictSeverity(%v) = %s, want %s", tc.total, got, tc.want)
		}
	}
}

func TestClassifyRiskTier(t *testing.T) {
	cases := []struct {
		value, threshold float64
		want             RiskTier
	}{
		{300, 100, Tier1},
		{299, 100, Tier2},
		{200, 100, Tier2},
		{150, 100, Tier3},
		{149, 100, Tier4},
		{100, 100, Tier4},
		{99, 100, Tier5},
		{50, 0, Tier5},
	}
	for _, tc := range cases {
		if got := ClassifyRiskTier(tc.value, tc.threshold); got != tc.want {
			t.Errorf("ClassifyRiskTier(%v, %v) = %d, want %d", tc.value, tc.threshold, got, tc.want)
		}
	}
}

func TestTierSeverityTable(t *testing.T) {
	// the tier-to-severity table is intentionally non-monotonic: tiers 1
	// and 2 map to low, and the scale climbs from there
	cases := []struct {
		tier RiskTier
		want Severity
	}{
		{Tier1, SeverityLow},
		{Tier2, SeverityLow},
		{Tier3, SeverityMedium},
		{Tier4, SeverityHigh},
		{Tier5, SeverityCritical},
	}
	for _, tc := range cases {
		if got := TierSeverity(tc.tier); got != tc.want {
			t.Errorf("TierSeverity(%d) = %s, want %s", tc.tier, got, tc.want)
		}
	}
}

func TestSeverityWeight(t *testing.T) {
	cases := []struct {
		sev  Severity
		want int
	}{
		{SeverityLow, 1},
		{SeverityMedium, 2},
		{SeverityHigh, 4},
		{SeverityCritical, 5},
		{Severity("bogus"), 1},
	}
	for _, tc := range cases {
		if got := SeverityWeight(tc.sev); got != tc.want {
			t.Errorf("SeverityWeight(%s) = %d, want %d", tc.sev, got, tc.want)
		}
	}
}
