package domain

// DateLayout is the storage format for calendar dates. Allocation windows and
// conflict dates are whole days; times of day never matter to the engine.
const DateLayout = "2006-01-02"

type Project struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Name      string `json:"name"`
	Status    string `json:"status" enum:"active,completed,archived"`
	StartDate string `json:"start_date,omitempty" format:"date"`
	EndDate   string `json:"end_date,omitempty" format:"date"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type WorkItem struct {
	ID           string  `json:"id"`
	ProjectID    string  `json:"project_id"`
	Title        string  `json:"title"`
	Type         string  `json:"type"`
	Status       string  `json:"status" enum:"planned,in_progress,blocked,done,canceled"`
	EffortPoints *int    `json:"effort_points,omitempty"`
	PlannedEnd   *string `json:"planned_end,omitempty" format:"date"`
	ActualEnd    *string `json:"actual_end,omitempty" format:"date"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
	UpdatedAt    string  `json:"updated_at" format:"date-time"`
}

// Allocation commits a resource to a project for a percentage of capacity over
// a closed date interval [StartDate, EndDate].
type Allocation struct {
	ID          string  `json:"id"`
	ResourceID  string  `json:"resource_id"`
	ProjectID   string  `json:"project_id"`
	TaskID      *string `json:"task_id,omitempty"`
	StartDate   string  `json:"start_date" format:"date"`
	EndDate     string  `json:"end_date" format:"date"`
	Percent     float64 `json:"allocation_percentage"`
	HoursPerDay float64 `json:"hours_per_day,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

// Severity is the four-tier scale used by conflict records.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ClassifyConflictSeverity buckets a day's total committed percentage.
func ClassifyConflictSeverity(total float64) Severity {
	switch {
	case total <= 110:
		return SeverityLow
	case total <= 125:
		return SeverityMedium
	case total <= 150:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// RiskTier is the five-tier scale used by risk findings. Tier 1 is the most
// severe; tier 5 the least.
type RiskTier int

const (
	Tier1 RiskTier = iota + 1
	Tier2
	Tier3
	Tier4
	Tier5
)

// ClassifyRiskTier buckets value/threshold ratios into tiers.
func ClassifyRiskTier(value, threshold float64) RiskTier {
	if threshold <= 0 {
		return Tier5
	}
	ratio := value / threshold
	switch {
	case ratio >= 3.0:
		return Tier1
	case ratio >= 2.0:
		return Tier2
	case ratio >= 1.5:
		return Tier3
	case ratio >= 1.0:
		return Tier4
	default:
		return Tier5
	}
}

// TierSeverity converts a risk tier into the conflict severity vocabulary used
// for stored signals. Tiers 1 and 2 both collapse into low; existing rows were
// written with this table and it is kept as-is for compatibility.
func TierSeverity(t RiskTier) Severity {
	switch t {
	case Tier1, Tier2:
		return SeverityLow
	case Tier3:
		return SeverityMedium
	case Tier4:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// SeverityWeight is used for the overall risk score (1..5 per signal).
func SeverityWeight(s Severity) int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 4
	case SeverityCritical:
		return 5
	default:
		return 1
	}
}

type SignalType string

const (
	SignalResourceOverallocation SignalType = "resource_overallocation"
	SignalScheduleVariance       SignalType = "schedule_variance"
	SignalLowCompletion          SignalType = "low_completion"
	SignalBudgetVariance         SignalType = "budget_variance"
	SignalDependencyBlocking     SignalType = "dependency_blocking"
	SignalScopeCreep             SignalType = "scope_creep"
)

type SignalStatus string

const (
	SignalUnacknowledged SignalStatus = "unacknowledged"
	SignalAcknowledged   SignalStatus = "acknowledged"
	SignalResolved       SignalStatus = "resolved"
)

// RiskSignal is a durable risk-rule finding with an acknowledge/resolve
// lifecycle. Signals are never deleted.
type RiskSignal struct {
	ID             string       `json:"id"`
	OrgID          string       `json:"org_id"`
	ProjectID      string       `json:"project_id"`
	WorkItemID     *string      `json:"work_item_id,omitempty"`
	Type           SignalType   `json:"signal_type"`
	Severity       Severity     `json:"severity"`
	DetailsJSON    string       `json:"details_json,omitempty"`
	Status         SignalStatus `json:"status"`
	AcknowledgedBy *string      `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *string      `json:"acknowledged_at,omitempty" format:"date-time"`
	ResolvedBy     *string      `json:"resolved_by,omitempty"`
	ResolvedAt     *string      `json:"resolved_at,omitempty" format:"date-time"`
	CreatedAt      string       `json:"created_at" format:"date-time"`
}

// AffectedProject is one allocation's contribution to a conflict day,
// snapshotted at detection time.
type AffectedProject struct {
	ProjectID string  `json:"project_id"`
	TaskID    *string `json:"task_id,omitempty"`
	Percent   float64 `json:"allocation_percentage"`
}

// Conflict is a day-level overallocation finding for one resource. At most one
// unresolved conflict exists per (resource, date).
type Conflict struct {
	ID               string            `json:"id"`
	ResourceID       string            `json:"resource_id"`
	ConflictDate     string            `json:"conflict_date" format:"date"`
	TotalPercent     float64           `json:"total_allocation_percentage"`
	Severity         Severity          `json:"severity"`
	AffectedProjects []AffectedProject `json:"affected_projects"`
	Resolved         bool              `json:"resolved"`
	ResolvedBy       *string           `json:"resolved_by,omitempty"`
	ResolvedAt       *string           `json:"resolved_at,omitempty" format:"date-time"`
	CreatedAt        string            `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	OrgID      string `json:"org_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
