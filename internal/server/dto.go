package server

import (
	"encoding/json"

	"github.com/adeel99sa/ZephixPlatform-sub021/internal/domain"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/engine"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/overlap"
)

// Request payloads

type CreateProjectRequest struct {
	ID        *string `json:"id,omitempty"`
	OrgID     string  `json:"org_id"`
	Name      string  `json:"name"`
	StartDate *string `json:"start_date,omitempty" format:"date"`
	EndDate   *string `json:"end_date,omitempty" format:"date"`
}

type UpdateProjectRequest struct {
	Status string `json:"status" enum:"active,completed,archived"`
}

type CreateWorkItemRequest struct {
	ID           *string `json:"id,omitempty"`
	Title        string  `json:"title"`
	Type         string  `json:"type,omitempty"`
	Status       *string `json:"status,omitempty" enum:"planned,in_progress,blocked,done,canceled"`
	EffortPoints *int    `json:"effort_points,omitempty"`
	PlannedEnd   *string `json:"planned_end,omitempty" format:"date"`
}

type UpdateWorkItemRequest struct {
	Status string `json:"status" enum:"planned,in_progress,blocked,done,canceled"`
}

type CreateAllocationRequest struct {
	ResourceID  string  `json:"resource_id"`
	ProjectID   string  `json:"project_id"`
	TaskID      *string `json:"task_id,omitempty"`
	StartDate   string  `json:"start_date" format:"date"`
	EndDate     string  `json:"end_date" format:"date"`
	Percent     float64 `json:"allocation_percentage"`
	HoursPerDay float64 `json:"hours_per_day,omitempty"`
	Force       bool    `json:"force,omitempty"`
}

type UpsertBudgetRequest struct {
	PlannedBudget float64 `json:"planned_budget"`
	ActualCost    float64 `json:"actual_cost"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
	OrgID   string `json:"org_id"`
}

// Response payloads

type DevLoginResponse struct {
	Token string `json:"token"`
}

type WhoAmIResponse struct {
	ActorID string `json:"actor_id"`
	OrgID   string `json:"org_id,omitempty"`
	Source  string `json:"source"`
}

type SignalResponse struct {
	ID             string          `json:"id"`
	OrgID          string          `json:"org_id"`
	ProjectID      string          `json:"project_id"`
	WorkItemID     *string         `json:"work_item_id,omitempty"`
	Type           string          `json:"signal_type"`
	Severity       string          `json:"severity" enum:"low,medium,high,critical"`
	Status         string          `json:"status" enum:"unacknowledged,acknowledged,resolved"`
	Details        json.RawMessage `json:"details,omitempty"`
	AcknowledgedBy *string         `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *string         `json:"acknowledged_at,omitempty" format:"date-time"`
	ResolvedBy     *string         `json:"resolved_by,omitempty"`
	ResolvedAt     *string         `json:"resolved_at,omitempty" format:"date-time"`
	CreatedAt      string          `json:"created_at" format:"date-time"`
}

func signalResponse(s domain.RiskSignal) SignalResponse {
	var details json.RawMessage
	if s.DetailsJSON != "" && json.Valid([]byte(s.DetailsJSON)) {
		details = json.RawMessage(s.DetailsJSON)
	}
	return SignalResponse{
		ID:             s.ID,
		OrgID:          s.OrgID,
		ProjectID:      s.ProjectID,
		WorkItemID:     s.WorkItemID,
		Type:           string(s.Type),
		Severity:       string(s.Severity),
		Status:         string(s.Status),
		Details:        details,
		AcknowledgedBy: s.AcknowledgedBy,
		AcknowledgedAt: s.AcknowledgedAt,
		ResolvedBy:     s.ResolvedBy,
		ResolvedAt:     s.ResolvedAt,
		CreatedAt:      s.CreatedAt,
	}
}

func mapSignals(items []domain.RiskSignal) []SignalResponse {
	res := make([]SignalResponse, 0, len(items))
	for _, s := range items {
		res = append(res, signalResponse(s))
	}
	return res
}

// OverloadedDayResponse is one rejected day in an allocation pre-commit check.
type OverloadedDayResponse struct {
	Date         string  `json:"date" format:"date"`
	TotalPercent float64 `json:"total_allocation_percentage"`
}

func mapOverloadedDays(days []overlap.DayLoad) []OverloadedDayResponse {
	res := make([]OverloadedDayResponse, 0, len(days))
	for _, d := range days {
		res = append(res, OverloadedDayResponse{
			Date:         d.Date.Format(domain.DateLayout),
			TotalPercent: d.Total,
		})
	}
	return res
}

type ScanResponse struct {
	ProjectID string           `json:"project_id"`
	Signals   []SignalResponse `json:"signals"`
}

func mapProjects(items []domain.Project) []domain.Project {
	if items == nil {
		return []domain.Project{}
	}
	return items
}

func mapConflicts(items []domain.Conflict) []domain.Conflict {
	if items == nil {
		return []domain.Conflict{}
	}
	return items
}

func mapWorkItems(items []domain.WorkItem) []domain.WorkItem {
	if items == nil {
		return []domain.WorkItem{}
	}
	return items
}

func mapAllocations(items []domain.Allocation) []domain.Allocation {
	if items == nil {
		return []domain.Allocation{}
	}
	return items
}

type SweepResponse struct {
	Daily  *engine.SweepSummary    `json:"daily,omitempty"`
	Hourly *engine.ConflictSummary `json:"hourly,omitempty"`
}
