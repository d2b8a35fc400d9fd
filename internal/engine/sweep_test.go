package engine_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/adeel99sa/ZephixPlatform-sub021/internal/domain"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/repo"
)

func TestDailySweepRecordsSignals(t *testing.T) {
	env := newTestEnv(t)
	overdueEnd := testClock.AddDate(0, 0, -10).Format(domain.DateLayout)
	env.seedProject(t, domain.Project{ID: "proj-late", Name: "Late", EndDate: overdueEnd})
	env.seedProject(t, domain.Project{ID: "proj-ok", Name: "Fine"})
	env.seedProject(t, domain.Project{ID: "proj-archived", Name: "Old", Status: "archived", EndDate: overdueEnd})

	sum, err := env.Engine.DailySweep(env.Ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	// Archived projects are not scanned.
	if sum.ProjectsScanned != 2 {
		t.Fatalf("projects scanned = %d, want 2", sum.ProjectsScanned)
	}
	if sum.SignalsCreated != 1 {
		t.Fatalf("signals created = %d, want 1", sum.SignalsCreated)
	}

	signals, err := env.Engine.Repo.ListSignals(env.Ctx, repo.SignalFilters{ProjectID: "proj-late"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(signals) != 1 || signals[0].Type != domain.SignalScheduleVariance {
		t.Fatalf("signals = %+v", signals)
	}
	decoded, err := domain.DecodeDetails(signals[0].Type, signals[0].DetailsJSON)
	if err != nil {
		t.Fatalf("decode details: %v", err)
	}
	details, ok := decoded.(*domain.ScheduleVarianceDetails)
	if !ok {
		t.Fatalf("details type = %T", decoded)
	}
	if details.DaysOverdue != 10 {
		t.Fatalf("days overdue = %d, want 10", details.DaysOverdue)
	}

	// Sweeps never deduplicate against earlier runs: a second pass over the
	// unchanged project stacks a second signal.
	if _, err := env.Engine.DailySweep(env.Ctx); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	signals, err = env.Engine.Repo.ListSignals(env.Ctx, repo.SignalFilters{ProjectID: "proj-late"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(signals) != 2 {
		t.Fatalf("signals after second sweep = %d, want 2", len(signals))
	}
}

func TestHourlySweepDetectsAndResolves(t *testing.T) {
	env := newTestEnv(t)
	env.seedProject(t, domain.Project{ID: "proj-1", Name: "Alpha"})
	env.seedProject(t, domain.Project{ID: "proj-2", Name: "Beta"})
	// Three overloaded days starting tomorrow.
	start := testClock.AddDate(0, 0, 1).Format(domain.DateLayout)
	end := testClock.AddDate(0, 0, 3).Format(domain.DateLayout)
	env.seedAlloc(t, domain.Allocation{ID: "a-1", ResourceID: "res-1", ProjectID: "proj-1", StartDate: start, EndDate: end, Percent: 70})
	env.seedAlloc(t, domain.Allocation{ID: "a-2", ResourceID: "res-1", ProjectID: "proj-2", StartDate: start, EndDate: end, Percent: 50})

	sum, err := env.Engine.HourlySweep(env.Ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if sum.ConflictsDetected != 3 {
		t.Fatalf("detected = %d, want 3", sum.ConflictsDetected)
	}
	conflicts, err := env.Engine.Repo.ListConflicts(env.Ctx, repo.ConflictFilters{ResourceID: "res-1", Resolved: new(bool)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(conflicts) != 3 {
		t.Fatalf("open conflicts = %d, want 3", len(conflicts))
	}
	c := conflicts[0]
	if c.TotalPercent != 120 || c.Severity != domain.SeverityMedium {
		t.Fatalf("conflict = %+v", c)
	}
	if len(c.AffectedProjects) != 2 {
		t.Fatalf("affected projects = %d", len(c.AffectedProjects))
	}

	// Re-running over an unchanged schedule creates nothing new.
	sum, err = env.Engine.HourlySweep(env.Ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if sum.ConflictsDetected != 0 || sum.ConflictsResolved != 0 {
		t.Fatalf("second sweep = %+v, want no-op", sum)
	}
}

func TestHourlySweepAutoResolvesClearedDays(t *testing.T) {
	env := newTestEnv(t)
	env.seedProject(t, domain.Project{ID: "proj-1", Name: "Alpha"})
	// An open conflict on a day that is no longer over capacity.
	stale := domain.Conflict{
		ID:           uuid.New().String(),
		ResourceID:   "res-1",
		ConflictDate: testClock.AddDate(0, 0, 2).Format(domain.DateLayout),
		TotalPercent: 130,
		Severity:     domain.SeverityHigh,
		CreatedAt:    testClock.Format(time.RFC3339),
	}
	if _, err := env.Engine.Repo.InsertConflictIfAbsent(env.Ctx, stale); err != nil {
		t.Fatalf("seed conflict: %v", err)
	}

	sum, err := env.Engine.HourlySweep(env.Ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if sum.ConflictsResolved != 1 {
		t.Fatalf("resolved = %d, want 1", sum.ConflictsResolved)
	}
	got, err := env.Engine.Repo.GetConflict(env.Ctx, stale.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Resolved || got.ResolvedBy == nil || *got.ResolvedBy != "system" {
		t.Fatalf("conflict = %+v", got)
	}
}

func TestHourlySweepIgnoresDaysBeyondHorizon(t *testing.T) {
	env := newTestEnv(t)
	env.seedProject(t, domain.Project{ID: "proj-1", Name: "Alpha"})
	farStart := testClock.AddDate(0, 0, env.Engine.Config.Scan.ConflictHorizonDays+10).Format(domain.DateLayout)
	farEnd := testClock.AddDate(0, 0, env.Engine.Config.Scan.ConflictHorizonDays+12).Format(domain.DateLayout)
	env.seedAlloc(t, domain.Allocation{ID: "a-1", ResourceID: "res-1", ProjectID: "proj-1", StartDate: farStart, EndDate: farEnd, Percent: 90})
	env.seedAlloc(t, domain.Allocation{ID: "a-2", ResourceID: "res-1", ProjectID: "proj-1", StartDate: farStart, EndDate: farEnd, Percent: 90})

	sum, err := env.Engine.HourlySweep(env.Ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if sum.ConflictsDetected != 0 {
		t.Fatalf("detected = %d, want 0", sum.ConflictsDetected)
	}
}
