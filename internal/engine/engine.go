package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adeel99sa/ZephixPlatform-sub021/internal/config"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/domain"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/events"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/overlap"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/repo"
)

// A day is over capacity when its committed percentage exceeds this. The rule-1
// threshold is configurable; day-level capacity is not.
const fullCapacityPercent = 100.0

// BudgetSource supplies planned/actual figures per project. The default reads
// the local project_budgets table; deployments backed by an external financial
// system swap in their own implementation.
type BudgetSource interface {
	ProjectBudget(ctx context.Context, projectID string) (planned, actual float64, err error)
}

type repoBudgetSource struct {
	repo repo.Repo
}

func (s repoBudgetSource) ProjectBudget(ctx context.Context, projectID string) (float64, float64, error) {
	return s.repo.GetProjectBudget(ctx, projectID)
}

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Budget BudgetSource
	Now    func() time.Time
	Log    *log.Logger

	sweeps *sweepGuard
}

func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:     db,
		Repo:   r,
		Events: events.Writer{DB: db},
		Config: cfg,
		Budget: repoBudgetSource{repo: r},
		Now:    time.Now,
		sweeps: &sweepGuard{running: map[string]bool{}},
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logf(format string, args ...any) {
	if e.Log != nil {
		e.Log.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// sweepGuard keeps at most one daily sweep in flight per organization.
type sweepGuard struct {
	mu      sync.Mutex
	running map[string]bool
}

func (g *sweepGuard) tryAcquire(orgID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running[orgID] {
		return false
	}
	g.running[orgID] = true
	return true
}

func (g *sweepGuard) release(orgID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, orgID)
}

// RecordFindings persists each finding as an unacknowledged risk signal.
// Findings are never deduplicated against earlier runs; a persistently risky
// project accumulates one signal per sweep until someone resolves them.
func (e Engine) RecordFindings(ctx context.Context, findings []Finding) ([]domain.RiskSignal, error) {
	var out []domain.RiskSignal
	for _, f := range findings {
		s, err := e.createSignal(ctx, f)
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (e Engine) createSignal(ctx context.Context, f Finding) (domain.RiskSignal, error) {
	details, err := domain.EncodeDetails(f.Details)
	if err != nil {
		return domain.RiskSignal{}, err
	}
	s := domain.RiskSignal{
		ID:          uuid.New().String(),
		OrgID:       f.OrgID,
		ProjectID:   f.ProjectID,
		WorkItemID:  f.WorkItemID,
		Type:        f.Type,
		Severity:    f.Severity,
		DetailsJSON: details,
		Status:      domain.SignalUnacknowledged,
		CreatedAt:   e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return s, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertSignal(ctx, tx, s); err != nil {
		return s, fmt.Errorf("insert signal: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "risk.signal.created", s.OrgID, "signal", s.ID, "system", events.EventPayload{
		"signal_type": string(s.Type),
		"severity":    string(s.Severity),
		"project_id":  s.ProjectID,
	}); err != nil {
		return s, err
	}
	return s, tx.Commit()
}

// AcknowledgeSignal moves a signal to acknowledged and stamps the actor and
// time. Re-acknowledging an acknowledged signal succeeds and overwrites the
// stamp (last write wins). Resolved signals stay resolved.
func (e Engine) AcknowledgeSignal(ctx context.Context, id, actorID string) (domain.RiskSignal, error) {
	s, err := e.Repo.GetSignal(ctx, id)
	if err != nil {
		return s, err
	}
	if s.Status == domain.SignalResolved {
		return s, fmt.Errorf("signal %s already resolved", id)
	}
	at := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return s, err
	}
	defer tx.Rollback()
	if err := e.Repo.MarkSignalAcknowledged(ctx, tx, id, actorID, at); err != nil {
		return s, err
	}
	if err := e.Events.Append(ctx, tx, "risk.signal.acknowledged", s.OrgID, "signal", id, actorID, events.EventPayload{}); err != nil {
		return s, err
	}
	if err := tx.Commit(); err != nil {
		return s, err
	}
	return e.Repo.GetSignal(ctx, id)
}

// ResolveSignal moves a signal to resolved from any prior state.
func (e Engine) ResolveSignal(ctx context.Context, id, actorID string) (domain.RiskSignal, error) {
	s, err := e.Repo.GetSignal(ctx, id)
	if err != nil {
		return s, err
	}
	at := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return s, err
	}
	defer tx.Rollback()
	if err := e.Repo.MarkSignalResolved(ctx, tx, id, actorID, at); err != nil {
		return s, err
	}
	if err := e.Events.Append(ctx, tx, "risk.signal.resolved", s.OrgID, "signal", id, actorID, events.EventPayload{}); err != nil {
		return s, err
	}
	if err := tx.Commit(); err != nil {
		return s, err
	}
	return e.Repo.GetSignal(ctx, id)
}

// ResolveConflict dismisses an open conflict. Conflicts have no acknowledged
// state, only open and resolved.
func (e Engine) ResolveConflict(ctx context.Context, id, actorID string) (domain.Conflict, error) {
	c, err := e.Repo.GetConflict(ctx, id)
	if err != nil {
		return c, err
	}
	at := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.MarkConflictResolved(ctx, id, actorID, at); err != nil {
		return c, err
	}
	if err := e.Events.Append(ctx, nil, "conflict.resolved", "", "conflict", id, actorID, events.EventPayload{
		"resource_id":   c.ResourceID,
		"conflict_date": c.ConflictDate,
	}); err != nil {
		return c, err
	}
	return e.Repo.GetConflict(ctx, id)
}

// ErrOverallocated marks a rejected allocation write.
var ErrOverallocated = errors.New("allocation exceeds capacity")

func validateAllocation(a domain.Allocation) error {
	if a.ResourceID == "" {
		return errors.New("resource_id is required")
	}
	if a.ProjectID == "" {
		return errors.New("project_id is required")
	}
	if a.Percent <= 0 || a.Percent > 100 {
		return errors.New("allocation_percentage must be within (0,100]")
	}
	start, err := time.Parse(domain.DateLayout, a.StartDate)
	if err != nil {
		return fmt.Errorf("invalid start_date: %w", err)
	}
	end, err := time.Parse(domain.DateLayout, a.EndDate)
	if err != nil {
		return fmt.Errorf("invalid end_date: %w", err)
	}
	if start.After(end) {
		return errors.New("start_date must not be after end_date")
	}
	return nil
}

// CheckAllocation computes the days inside the proposed allocation's window
// that would exceed capacity if it were saved, without saving anything.
func (e Engine) CheckAllocation(ctx context.Context, a domain.Allocation) ([]overlap.DayLoad, error) {
	if err := validateAllocation(a); err != nil {
		return nil, err
	}
	existing, err := e.Repo.ListAllocationsByResource(ctx, a.ResourceID)
	if err != nil {
		return nil, err
	}
	from, _ := time.Parse(domain.DateLayout, a.StartDate)
	to, _ := time.Parse(domain.DateLayout, a.EndDate)
	return overlap.OverloadedDays(append(existing, a), from, to, fullCapacityPercent), nil
}

// CreateAllocation validates the proposed allocation against the resource's
// existing commitments before saving. Overloaded days reject the write unless
// force is set; force saves it and leaves the hourly sweep to flag the days.
func (e Engine) CreateAllocation(ctx context.Context, a domain.Allocation, force bool) (domain.Allocation, []overlap.DayLoad, error) {
	overloaded, err := e.CheckAllocation(ctx, a)
	if err != nil {
		return a, nil, err
	}
	if len(overloaded) > 0 && !force {
		return a, overloaded, ErrOverallocated
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.InsertAllocation(ctx, a); err != nil {
		return a, overloaded, err
	}
	if err := e.Events.Append(ctx, nil, "allocation.created", "", "allocation", a.ID, "system", events.EventPayload{
		"resource_id": a.ResourceID,
		"project_id":  a.ProjectID,
		"percent":     a.Percent,
		"forced":      force && len(overloaded) > 0,
	}); err != nil {
		return a, overloaded, err
	}
	return a, overloaded, nil
}

// RiskProfile aggregates a project's signals into an overall picture.
type RiskProfile struct {
	ProjectID         string         `json:"project_id"`
	OverallRiskScore  float64        `json:"overall_risk_score"`
	TotalSignals      int            `json:"total_signals"`
	RiskCounts        map[string]int `json:"risk_counts"`
	SeverityBreakdown map[string]int `json:"severity_breakdown"`
}

// GetRiskProfile computes the severity-weighted (1..5) average across all of
// the project's signals plus counts by type and severity.
func (e Engine) GetRiskProfile(ctx context.Context, projectID string) (RiskProfile, error) {
	p := RiskProfile{ProjectID: projectID}
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return p, err
	}
	byType, err := e.Repo.CountSignalsByType(ctx, projectID)
	if err != nil {
		return p, err
	}
	bySeverity, err := e.Repo.CountSignalsBySeverity(ctx, projectID)
	if err != nil {
		return p, err
	}
	p.RiskCounts = byType
	p.SeverityBreakdown = bySeverity
	total := 0
	weighted := 0
	for sev, count := range bySeverity {
		total += count
		weighted += count * domain.SeverityWeight(domain.Severity(sev))
	}
	p.TotalSignals = total
	if total > 0 {
		p.OverallRiskScore = float64(weighted) / float64(total)
	}
	return p, nil
}
