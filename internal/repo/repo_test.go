package repo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/adeel99sa/ZephixPlatform-sub021/internal/db"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/domain"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/migrate"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/repo"
)

func newTestRepo(t *testing.T) (repo.Repo, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}, context.Background()
}

func seedProject(t *testing.T, r repo.Repo, ctx context.Context, id, org string) {
	t.Helper()
	err := r.InsertProject(ctx, domain.Project{
		ID:        id,
		OrgID:     org,
		Name:      "Project " + id,
		Status:    "active",
		CreatedAt: "2025-06-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("insert project: %v", err)
	}
}

func TestConflictDedup(t *testing.T) {
	r, ctx := newTestRepo(t)
	c := domain.Conflict{
		ID:           "c-1",
		ResourceID:   "res-1",
		ConflictDate: "2025-06-10",
		TotalPercent: 130,
		Severity:     domain.SeverityHigh,
		AffectedProjects: []domain.AffectedProject{
			{ProjectID: "p-1", Percent: 70},
			{ProjectID: "p-2", Percent: 60},
		},
		CreatedAt: "2025-06-01T00:00:00Z",
	}
	created, err := r.InsertConflictIfAbsent(ctx, c)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !created {
		t.Fatal("first insert should create a row")
	}

	// same (resource, date) while still open: no-op
	c2 := c
	c2.ID = "c-2"
	c2.TotalPercent = 145
	created, err = r.InsertConflictIfAbsent(ctx, c2)
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if created {
		t.Fatal("duplicate open conflict must not create a row")
	}

	// after resolving, a fresh conflict for the same day may open again
	if err := r.MarkConflictResolved(ctx, "c-1", "user-1", "2025-06-02T00:00:00Z"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	created, err = r.InsertConflictIfAbsent(ctx, c2)
	if err != nil {
		t.Fatalf("reinsert after resolve: %v", err)
	}
	if !created {
		t.Fatal("resolved conflict must not block a new one")
	}

	got, err := r.GetConflict(ctx, "c-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Resolved || got.ResolvedBy == nil || *got.ResolvedBy != "user-1" {
		t.Fatalf("resolved state not persisted: %+v", got)
	}
	if len(got.AffectedProjects) != 2 || got.AffectedProjects[0].ProjectID != "p-1" {
		t.Fatalf("affected projects round-trip broken: %+v", got.AffectedProjects)
	}
}

func TestConflictFilters(t *testing.T) {
	r, ctx := newTestRepo(t)
	seed := []domain.Conflict{
		{ID: "c-1", ResourceID: "res-1", ConflictDate: "2025-06-10", TotalPercent: 120, Severity: domain.SeverityMedium, CreatedAt: "2025-06-01T00:00:00Z"},
		{ID: "c-2", ResourceID: "res-1", ConflictDate: "2025-06-11", TotalPercent: 160, Severity: domain.SeverityCritical, CreatedAt: "2025-06-01T00:00:00Z"},
		{ID: "c-3", ResourceID: "res-2", ConflictDate: "2025-06-10", TotalPercent: 110, Severity: domain.SeverityLow, CreatedAt: "2025-06-01T00:00:00Z"},
	}
	for _, c := range seed {
		if _, err := r.InsertConflictIfAbsent(ctx, c); err != nil {
			t.Fatalf("insert %s: %v", c.ID, err)
		}
	}
	if err := r.MarkConflictResolved(ctx, "c-2", "user-1", "2025-06-02T00:00:00Z"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	open := false
	items, err := r.ListConflicts(ctx, repo.ConflictFilters{ResourceID: "res-1", Resolved: &open})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ID != "c-1" {
		t.Fatalf("open res-1 conflicts = %+v, want just c-1", items)
	}

	window, err := r.ListOpenConflictsInWindow(ctx, "2025-06-10", "2025-06-12")
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(window) != 2 {
		t.Fatalf("open conflicts in window = %d, want 2", len(window))
	}

	if err := r.MarkConflictResolved(ctx, "ghost", "user-1", "2025-06-02T00:00:00Z"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("resolve ghost = %v, want ErrNotFound", err)
	}
}

func TestSignalFiltersAndLimit(t *testing.T) {
	r, ctx := newTestRepo(t)
	seed := []domain.RiskSignal{
		{ID: "s-1", OrgID: "org-1", ProjectID: "p-1", Type: domain.SignalResourceOverallocation, Severity: domain.SeverityHigh, Status: domain.SignalUnacknowledged, CreatedAt: "2025-06-01T00:00:00Z"},
		{ID: "s-2", OrgID: "org-1", ProjectID: "p-1", Type: domain.SignalScheduleVariance, Severity: domain.SeverityLow, Status: domain.SignalResolved, CreatedAt: "2025-06-02T00:00:00Z"},
		{ID: "s-3", OrgID: "org-1", ProjectID: "p-2", Type: domain.SignalScheduleVariance, Severity: domain.SeverityMedium, Status: domain.SignalUnacknowledged, CreatedAt: "2025-06-03T00:00:00Z"},
		{ID: "s-4", OrgID: "org-2", ProjectID: "p-3", Type: domain.SignalBudgetVariance, Severity: domain.SeverityCritical, Status: domain.SignalUnacknowledged, CreatedAt: "2025-06-04T00:00:00Z"},
	}
	for _, s := range seed {
		if err := r.InsertSignal(ctx, nil, s); err != nil {
			t.Fatalf("insert %s: %v", s.ID, err)
		}
	}

	items, err := r.ListSignals(ctx, repo.SignalFilters{OrgID: "org-1"})
	if err != nil {
		t.Fatalf("list org: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("org-1 signals = %d, want 3", len(items))
	}
	// newest first
	if items[0].ID != "s-3" {
		t.Fatalf("first signal = %s, want s-3", items[0].ID)
	}

	items, err = r.ListSignals(ctx, repo.SignalFilters{OrgID: "org-1", SignalType: string(domain.SignalScheduleVariance), Status: string(domain.SignalUnacknowledged)})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(items) != 1 || items[0].ID != "s-3" {
		t.Fatalf("filtered = %+v, want just s-3", items)
	}

	items, err = r.ListSignals(ctx, repo.SignalFilters{OrgID: "org-1", Limit: 2})
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("limited = %d, want 2", len(items))
	}

	active, err := r.ListActiveSignals(ctx, "org-1")
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("active org-1 signals = %d, want 2 (resolved excluded)", len(active))
	}

	byType, err := r.CountSignalsByType(ctx, "p-1")
	if err != nil {
		t.Fatalf("count by type: %v", err)
	}
	if byType[string(domain.SignalResourceOverallocation)] != 1 || byType[string(domain.SignalScheduleVariance)] != 1 {
		t.Fatalf("counts = %v", byType)
	}
}

func TestProjectBudgetUpsert(t *testing.T) {
	r, ctx := newTestRepo(t)
	seedProject(t, r, ctx, "p-1", "org-1")

	if _, _, err := r.GetProjectBudget(ctx, "p-1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("missing budget = %v, want ErrNotFound", err)
	}
	if err := r.UpsertProjectBudget(ctx, "p-1", 1000, 400, "2025-06-01T00:00:00Z"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := r.UpsertProjectBudget(ctx, "p-1", 1000, 900, "2025-06-02T00:00:00Z"); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	planned, actual, err := r.GetProjectBudget(ctx, "p-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if planned != 1000 || actual != 900 {
		t.Fatalf("budget = %v/%v, want 1000/900", planned, actual)
	}
}

func TestAllocationsInWindow(t *testing.T) {
	r, ctx := newTestRepo(t)
	seedProject(t, r, ctx, "p-1", "org-1")
	seed := []domain.Allocation{
		{ID: "a-1", ResourceID: "res-1", ProjectID: "p-1", StartDate: "2025-06-01", EndDate: "2025-06-10", Percent: 50, CreatedAt: "2025-06-01T00:00:00Z"},
		{ID: "a-2", ResourceID: "res-1", ProjectID: "p-1", StartDate: "2025-06-20", EndDate: "2025-06-30", Percent: 50, CreatedAt: "2025-06-01T00:00:00Z"},
		{ID: "a-3", ResourceID: "res-2", ProjectID: "p-1", StartDate: "2025-06-05", EndDate: "2025-06-06", Percent: 80, CreatedAt: "2025-06-01T00:00:00Z"},
	}
	for _, a := range seed {
		if err := r.InsertAllocation(ctx, a); err != nil {
			t.Fatalf("insert %s: %v", a.ID, err)
		}
	}

	// window intersects a-1 and a-3 only; an allocation ending on the
	// window's first day still counts
	items, err := r.ListAllocationsInWindow(ctx, "2025-06-06", "2025-06-15")
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("allocations in window = %d, want 2", len(items))
	}

	ids, err := r.ResourcesOnProject(ctx, "p-1")
	if err != nil {
		t.Fatalf("resources: %v", err)
	}
	if len(ids) != 2 || ids[0] != "res-1" || ids[1] != "res-2" {
		t.Fatalf("resources = %v", ids)
	}
}

func TestAPIKeyLookup(t *testing.T) {
	r, ctx := newTestRepo(t)
	hash := repo.HashAPIKey("  secret-key \n")
	if hash != repo.HashAPIKey("secret-key") {
		t.Fatal("hash must ignore surrounding whitespace")
	}
	err := r.InsertAPIKey(ctx, domain.APIKey{ID: "k-1", ActorID: "actor-1", Name: "ci", KeyHash: hash})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	key, err := r.GetAPIKeyByHash(ctx, hash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if key.ActorID != "actor-1" || key.Name != "ci" {
		t.Fatalf("key = %+v", key)
	}
	if _, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey("wrong")); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("wrong hash = %v, want ErrNotFound", err)
	}
}
