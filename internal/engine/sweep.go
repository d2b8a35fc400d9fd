package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/adeel99sa/ZephixPlatform-sub021/internal/domain"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/events"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/overlap"
)

// SweepSummary reports what one daily sweep did.
type SweepSummary struct {
	ProjectsScanned int `json:"projects_scanned"`
	SignalsCreated  int `json:"signals_created"`
	OrgsSkipped     int `json:"orgs_skipped"`
}

// DailySweep scans every active project and records each rule hit as a risk
// signal. Organizations with a sweep already in flight are skipped rather than
// queued; the next interval picks them back up.
func (e Engine) DailySweep(ctx context.Context) (SweepSummary, error) {
	var sum SweepSummary
	projects, err := e.Repo.ListActiveProjects(ctx)
	if err != nil {
		return sum, err
	}
	byOrg := map[string][]domain.Project{}
	for _, p := range projects {
		byOrg[p.OrgID] = append(byOrg[p.OrgID], p)
	}
	for orgID, orgProjects := range byOrg {
		if !e.sweeps.tryAcquire(orgID) {
			e.logf("daily sweep: org %s already in flight, skipping", orgID)
			sum.OrgsSkipped++
			continue
		}
		for _, p := range orgProjects {
			findings, err := e.ScanProject(ctx, p.ID)
			if err != nil {
				e.logf("daily sweep: project %s: %v", p.ID, err)
				continue
			}
			sum.ProjectsScanned++
			created, err := e.RecordFindings(ctx, findings)
			if err != nil {
				e.logf("daily sweep: project %s: record: %v", p.ID, err)
			}
			sum.SignalsCreated += len(created)
		}
		e.sweeps.release(orgID)
	}
	e.logf("daily sweep: scanned %d projects, created %d signals, skipped %d orgs",
		sum.ProjectsScanned, sum.SignalsCreated, sum.OrgsSkipped)
	return sum, nil
}

// ConflictSummary reports what one hourly sweep did.
type ConflictSummary struct {
	ConflictsDetected int `json:"conflicts_detected"`
	ConflictsResolved int `json:"conflicts_resolved"`
}

// HourlySweep recomputes day-level capacity over the next horizon and
// reconciles the conflicts table against it: newly overloaded days gain an
// open conflict, and open conflicts whose day no longer exceeds capacity are
// resolved by the system. At most one open conflict exists per resource and
// day; re-running the sweep over an unchanged schedule is a no-op.
func (e Engine) HourlySweep(ctx context.Context) (ConflictSummary, error) {
	var sum ConflictSummary
	now := e.now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, e.Config.Scan.ConflictHorizonDays)
	fromStr, toStr := from.Format(domain.DateLayout), to.Format(domain.DateLayout)

	allocs, err := e.Repo.ListAllocationsInWindow(ctx, fromStr, toStr)
	if err != nil {
		return sum, err
	}
	byResource := map[string][]domain.Allocation{}
	for _, a := range allocs {
		byResource[a.ResourceID] = append(byResource[a.ResourceID], a)
	}

	stillOverloaded := map[string]bool{}
	for rid, resAllocs := range byResource {
		for _, day := range overlap.OverloadedDays(resAllocs, from, to, fullCapacityPercent) {
			date := day.Date.Format(domain.DateLayout)
			stillOverloaded[rid+"|"+date] = true
			created, err := e.recordConflict(ctx, rid, date, day)
			if err != nil {
				e.logf("hourly sweep: resource %s day %s: %v", rid, date, err)
				continue
			}
			if created {
				sum.ConflictsDetected++
			}
		}
	}

	open, err := e.Repo.ListOpenConflictsInWindow(ctx, fromStr, toStr)
	if err != nil {
		return sum, err
	}
	at := now.Format(time.RFC3339)
	for _, c := range open {
		if stillOverloaded[c.ResourceID+"|"+c.ConflictDate] {
			continue
		}
		if err := e.Repo.MarkConflictResolved(ctx, c.ID, "system", at); err != nil {
			e.logf("hourly sweep: resolve conflict %s: %v", c.ID, err)
			continue
		}
		if err := e.Events.Append(ctx, nil, "conflict.resolved", "", "conflict", c.ID, "system", nil); err != nil {
			e.logf("hourly sweep: conflict %s event: %v", c.ID, err)
		}
		sum.ConflictsResolved++
	}
	if sum.ConflictsDetected > 0 || sum.ConflictsResolved > 0 {
		e.logf("hourly sweep: detected %d conflicts, resolved %d", sum.ConflictsDetected, sum.ConflictsResolved)
	}
	return sum, nil
}

func (e Engine) recordConflict(ctx context.Context, resourceID, date string, day overlap.DayLoad) (bool, error) {
	affected := make([]domain.AffectedProject, 0, len(day.Entries))
	for _, a := range day.Entries {
		affected = append(affected, domain.AffectedProject{
			ProjectID: a.ProjectID,
			TaskID:    a.TaskID,
			Percent:   a.Percent,
		})
	}
	c := domain.Conflict{
		ID:               uuid.New().String(),
		ResourceID:       resourceID,
		ConflictDate:     date,
		TotalPercent:     day.Total,
		Severity:         domain.ClassifyConflictSeverity(day.Total),
		AffectedProjects: affected,
		CreatedAt:        e.now().UTC().Format(time.RFC3339),
	}
	created, err := e.Repo.InsertConflictIfAbsent(ctx, c)
	if err != nil || !created {
		return created, err
	}
	err = e.Events.Append(ctx, nil, "conflict.detected", "", "conflict", c.ID, "system", conflictPayload(c))
	if err != nil {
		e.logf("conflict %s event: %v", c.ID, err)
	}
	return true, nil
}

func conflictPayload(c domain.Conflict) events.EventPayload {
	return events.EventPayload{
		"resource_id":   c.ResourceID,
		"conflict_date": c.ConflictDate,
		"total_percent": c.TotalPercent,
		"severity":      string(c.Severity),
	}
}
