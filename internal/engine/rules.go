package engine

import (
	"context"
	"math"
	"time"

	"github.com/adeel99sa/ZephixPlatform-sub021/internal/config"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/domain"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/overlap"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/repo"
)

// Finding is one rule hit for one project, not yet persisted.
type Finding struct {
	OrgID      string
	ProjectID  string
	WorkItemID *string
	Type       domain.SignalType
	Severity   domain.Severity
	Details    domain.SignalDetails
}

type ruleFunc func(ctx context.Context, p domain.Project, th config.Thresholds) []Finding

// ScanProject runs every rule against one project and returns the findings.
// A rule that fails internally logs and contributes nothing; the remaining
// rules still run.
func (e Engine) ScanProject(ctx context.Context, projectID string) ([]Finding, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	th := e.Config.ThresholdsFor(p.OrgID)
	rules := []ruleFunc{
		e.ruleResourceOverallocation,
		e.ruleScheduleVariance,
		e.ruleLowCompletion,
		e.ruleBudgetVariance,
		e.ruleDependencyBlocking,
		e.ruleScopeCreep,
	}
	var findings []Finding
	for _, rule := range rules {
		findings = append(findings, rule(ctx, p, th)...)
	}
	return findings, nil
}

// ruleResourceOverallocation flags each resource on the project whose peak
// concurrent commitment, across all projects, exceeds the threshold.
func (e Engine) ruleResourceOverallocation(ctx context.Context, p domain.Project, th config.Thresholds) []Finding {
	resources, err := e.Repo.ResourcesOnProject(ctx, p.ID)
	if err != nil {
		e.logf("scan %s: overallocation rule: %v", p.ID, err)
		return nil
	}
	var out []Finding
	for _, rid := range resources {
		allocs, err := e.Repo.ListAllocationsByResource(ctx, rid)
		if err != nil {
			e.logf("scan %s: overallocation rule: resource %s: %v", p.ID, rid, err)
			continue
		}
		peak, window, ok := overlap.PeakConcurrent(allocs)
		if !ok || peak <= th.OverallocationPercent {
			continue
		}
		tier := domain.ClassifyRiskTier(peak, th.OverallocationPercent)
		out = append(out, Finding{
			OrgID:     p.OrgID,
			ProjectID: p.ID,
			Type:      domain.SignalResourceOverallocation,
			Severity:  domain.TierSeverity(tier),
			Details: &domain.OverallocationDetails{
				ResourceID:    rid,
				TotalPercent:  math.Round(peak),
				OverByPercent: math.Round(peak - th.OverallocationPercent),
				WindowStart:   window.Start.Format(domain.DateLayout),
				WindowEnd:     window.End.Format(domain.DateLayout),
			},
		})
	}
	return out
}

// completionPercent is completed effort over planned effort across the items
// that carry effort points; unestimated and canceled items contribute nothing.
// Zero planned effort is 0%, never NaN.
func completionPercent(items []domain.WorkItem) float64 {
	total, done := 0, 0
	for _, it := range items {
		if it.Status == "canceled" || it.EffortPoints == nil {
			continue
		}
		total += *it.EffortPoints
		if it.Status == "done" {
			done += *it.EffortPoints
		}
	}
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total) * 100
}

// ruleScheduleVariance flags projects past their end date by more than the
// configured slip.
func (e Engine) ruleScheduleVariance(ctx context.Context, p domain.Project, th config.Thresholds) []Finding {
	if p.EndDate == "" || p.Status == "completed" {
		return nil
	}
	end, err := time.Parse(domain.DateLayout, p.EndDate)
	if err != nil {
		e.logf("scan %s: schedule rule: bad end_date %q: %v", p.ID, p.EndDate, err)
		return nil
	}
	daysOverdue := int(e.now().UTC().Sub(end).Hours() / 24)
	if daysOverdue <= th.ScheduleSlipDays {
		return nil
	}
	items, err := e.Repo.ListWorkItems(ctx, repo.WorkItemFilters{ProjectID: p.ID})
	if err != nil {
		e.logf("scan %s: schedule rule: %v", p.ID, err)
		return nil
	}
	tier := domain.ClassifyRiskTier(float64(daysOverdue), float64(th.ScheduleSlipDays))
	return []Finding{{
		OrgID:     p.OrgID,
		ProjectID: p.ID,
		Type:      domain.SignalScheduleVariance,
		Severity:  domain.TierSeverity(tier),
		Details: &domain.ScheduleVarianceDetails{
			DaysOverdue:       daysOverdue,
			CompletionPercent: math.Round(completionPercent(items)*10) / 10,
		},
	}}
}

// ruleLowCompletion flags projects whose effort-weighted completion sits below
// the configured floor. Projects with no work items yet are skipped.
func (e Engine) ruleLowCompletion(ctx context.Context, p domain.Project, th config.Thresholds) []Finding {
	items, err := e.Repo.ListWorkItems(ctx, repo.WorkItemFilters{ProjectID: p.ID})
	if err != nil {
		e.logf("scan %s: completion rule: %v", p.ID, err)
		return nil
	}
	if len(items) == 0 {
		return nil
	}
	pct := completionPercent(items)
	if pct >= th.CompletionFloorPercent {
		return nil
	}
	// Severity scales with how far below the floor the project sits.
	tier := domain.ClassifyRiskTier(th.CompletionFloorPercent-pct, th.CompletionFloorPercent)
	return []Finding{{
		OrgID:     p.OrgID,
		ProjectID: p.ID,
		Type:      domain.SignalLowCompletion,
		Severity:  domain.TierSeverity(tier),
		Details: &domain.LowCompletionDetails{
			CompletionPercent: math.Round(pct*10) / 10,
			FloorPercent:      th.CompletionFloorPercent,
		},
	}}
}

// ruleBudgetVariance flags projects whose actual cost runs over plan by more
// than the threshold percentage. Projects without budget data are skipped.
func (e Engine) ruleBudgetVariance(ctx context.Context, p domain.Project, th config.Thresholds) []Finding {
	planned, actual, err := e.Budget.ProjectBudget(ctx, p.ID)
	if err != nil {
		if err != repo.ErrNotFound {
			e.logf("scan %s: budget rule: %v", p.ID, err)
		}
		return nil
	}
	if planned <= 0 {
		return nil
	}
	variancePct := (actual - planned) / planned * 100
	if variancePct <= th.BudgetVariancePercent {
		return nil
	}
	tier := domain.ClassifyRiskTier(variancePct, th.BudgetVariancePercent)
	return []Finding{{
		OrgID:     p.OrgID,
		ProjectID: p.ID,
		Type:      domain.SignalBudgetVariance,
		Severity:  domain.TierSeverity(tier),
		Details: &domain.BudgetVarianceDetails{
			PlannedBudget:   planned,
			ActualCost:      actual,
			VarianceAmount:  math.Round((actual-planned)*100) / 100,
			VariancePercent: math.Round(variancePct*10) / 10,
		},
	}}
}

// ruleDependencyBlocking emits one finding per work item stuck in blocked
// longer than the threshold, measured from the item's last update.
func (e Engine) ruleDependencyBlocking(ctx context.Context, p domain.Project, th config.Thresholds) []Finding {
	items, err := e.Repo.ListWorkItems(ctx, repo.WorkItemFilters{ProjectID: p.ID, Status: "blocked"})
	if err != nil {
		e.logf("scan %s: blocking rule: %v", p.ID, err)
		return nil
	}
	now := e.now().UTC()
	var out []Finding
	for _, it := range items {
		since, err := time.Parse(time.RFC3339, it.UpdatedAt)
		if err != nil {
			e.logf("scan %s: blocking rule: item %s: bad updated_at %q", p.ID, it.ID, it.UpdatedAt)
			continue
		}
		daysBlocked := int(now.Sub(since).Hours() / 24)
		if daysBlocked <= th.BlockedDays {
			continue
		}
		itemID := it.ID
		tier := domain.ClassifyRiskTier(float64(daysBlocked), float64(th.BlockedDays))
		out = append(out, Finding{
			OrgID:      p.OrgID,
			ProjectID:  p.ID,
			WorkItemID: &itemID,
			Type:       domain.SignalDependencyBlocking,
			Severity:   domain.TierSeverity(tier),
			Details: &domain.DependencyBlockingDetails{
				WorkItemID:   it.ID,
				DaysBlocked:  daysBlocked,
				BlockedSince: it.UpdatedAt,
			},
		})
	}
	return out
}

// ruleScopeCreep flags projects that gained more than the allowed number of
// work items after the grace period following project creation. The baseline
// is the in-grace item count, floored at one so a project that started empty
// still computes a percentage.
func (e Engine) ruleScopeCreep(ctx context.Context, p domain.Project, th config.Thresholds) []Finding {
	created, err := time.Parse(time.RFC3339, p.CreatedAt)
	if err != nil {
		e.logf("scan %s: scope rule: bad created_at %q: %v", p.ID, p.CreatedAt, err)
		return nil
	}
	items, err := e.Repo.ListWorkItems(ctx, repo.WorkItemFilters{ProjectID: p.ID})
	if err != nil {
		e.logf("scan %s: scope rule: %v", p.ID, err)
		return nil
	}
	cutoff := created.AddDate(0, 0, th.ScopeGraceDays)
	var added []string
	for _, it := range items {
		at, err := time.Parse(time.RFC3339, it.CreatedAt)
		if err != nil {
			continue
		}
		if at.After(cutoff) {
			added = append(added, it.ID)
		}
	}
	if len(added) <= th.ScopeItemLimit {
		return nil
	}
	baseline := len(items) - len(added)
	if baseline < 1 {
		baseline = 1
	}
	tier := domain.ClassifyRiskTier(float64(len(added)), float64(th.ScopeItemLimit))
	return []Finding{{
		OrgID:     p.OrgID,
		ProjectID: p.ID,
		Type:      domain.SignalScopeCreep,
		Severity:  domain.TierSeverity(tier),
		Details: &domain.ScopeCreepDetails{
			AddedItems:      added,
			AddedCount:      len(added),
			IncreasePercent: math.Round(float64(len(added))/float64(baseline)*1000) / 10,
		},
	}}
}
