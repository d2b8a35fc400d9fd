package domain

import (
	"encoding/json"
	"fmt"
)

// SignalDetails is the typed payload attached to a risk signal. One shape per
// signal type; the stored column holds the JSON encoding.
type SignalDetails interface {
	SignalType() SignalType
}

type OverallocationDetails struct {
	ResourceID    string  `json:"resource_id"`
	TotalPercent  float64 `json:"total_allocation"`
	OverByPercent float64 `json:"overallocation_percent"`
	WindowStart   string  `json:"window_start" format:"date"`
	WindowEnd     string  `json:"window_end" format:"date"`
}

func (OverallocationDetails) SignalType() SignalType { return SignalResourceOverallocation }

type ScheduleVarianceDetails struct {
	DaysOverdue       int     `json:"days_overdue"`
	CompletionPercent float64 `json:"completion_percentage"`
}

func (ScheduleVarianceDetails) SignalType() SignalType { return SignalScheduleVariance }

type LowCompletionDetails struct {
	CompletionPercent float64 `json:"completion_percentage"`
	FloorPercent      float64 `json:"completion_threshold"`
}

func (LowCompletionDetails) SignalType() SignalType { return SignalLowCompletion }

type BudgetVarianceDetails struct {
	PlannedBudget   float64 `json:"planned_budget"`
	ActualCost      float64 `json:"actual_cost"`
	VarianceAmount  float64 `json:"variance_amount"`
	VariancePercent float64 `json:"variance_percent"`
}

func (BudgetVarianceDetails) SignalType() SignalType { return SignalBudgetVariance }

type DependencyBlockingDetails struct {
	WorkItemID   string `json:"work_item_id"`
	DaysBlocked  int    `json:"days_blocked"`
	BlockedSince string `json:"blocked_since" format:"date-time"`
}

func (DependencyBlockingDetails) SignalType() SignalType { return SignalDependencyBlocking }

type ScopeCreepDetails struct {
	AddedItems      []string `json:"added_items"`
	AddedCount      int      `json:"added_count"`
	IncreasePercent float64  `json:"scope_increase_percent"`
}

func (ScopeCreepDetails) SignalType() SignalType { return SignalScopeCreep }

// EncodeDetails marshals a typed payload for storage.
func EncodeDetails(d SignalDetails) (string, error) {
	if d == nil {
		return "", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshal signal details: %w", err)
	}
	return string(b), nil
}

// DecodeDetails unmarshals a stored payload into the shape for its type.
func DecodeDetails(t SignalType, raw string) (SignalDetails, error) {
	if raw == "" {
		return nil, nil
	}
	var d SignalDetails
	switch t {
	case SignalResourceOverallocation:
		d = &OverallocationDetails{}
	case SignalScheduleVariance:
		d = &ScheduleVarianceDetails{}
	case SignalLowCompletion:
		d = &LowCompletionDetails{}
	case SignalBudgetVariance:
		d = &BudgetVarianceDetails{}
	case SignalDependencyBlocking:
		d = &DependencyBlockingDetails{}
	case SignalScopeCreep:
		d = &ScopeCreepDetails{}
	default:
		return nil, fmt.Errorf("unknown signal type %q", t)
	}
	if err := json.Unmarshal([]byte(raw), d); err != nil {
		return nil, fmt.Errorf("decode %s details: %w", t, err)
	}
	return d, nil
}
