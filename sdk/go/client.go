package zephixsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Zephix Risk HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults. baseURL includes the API
// base path, e.g. "http://localhost:8080/v1".
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Project represents the API project model.
type Project struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Allocation represents a resource assignment over a date window.
type Allocation struct {
	ID          string  `json:"id"`
	ResourceID  string  `json:"resource_id"`
	ProjectID   string  `json:"project_id"`
	TaskID      *string `json:"task_id,omitempty"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	Percent     float64 `json:"allocation_percentage"`
	HoursPerDay float64 `json:"hours_per_day,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// Signal represents a recorded risk signal.
type Signal struct {
	ID             string          `json:"id"`
	OrgID          string          `json:"org_id"`
	ProjectID      string          `json:"project_id"`
	WorkItemID     *string         `json:"work_item_id,omitempty"`
	Type           string          `json:"signal_type"`
	Severity       string          `json:"severity"`
	Status         string          `json:"status"`
	Details        json.RawMessage `json:"details,omitempty"`
	AcknowledgedBy *string         `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *string         `json:"acknowledged_at,omitempty"`
	ResolvedBy     *string         `json:"resolved_by,omitempty"`
	ResolvedAt     *string         `json:"resolved_at,omitempty"`
	CreatedAt      string          `json:"created_at"`
}

// Conflict represents a day-level capacity conflict.
type Conflict struct {
	ID           string  `json:"id"`
	ResourceID   string  `json:"resource_id"`
	ConflictDate string  `json:"conflict_date"`
	TotalPercent float64 `json:"total_allocation_percentage"`
	Severity     string  `json:"severity"`
	Resolved     bool    `json:"resolved"`
	ResolvedBy   *string `json:"resolved_by,omitempty"`
	ResolvedAt   *string `json:"resolved_at,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// OverloadedDay is one day on which allocations exceed capacity.
type OverloadedDay struct {
	Date         string  `json:"date"`
	TotalPercent float64 `json:"total_allocation_percentage"`
}

// CapacityCheck is the result of a dry-run allocation check.
type CapacityCheck struct {
	OK             bool            `json:"ok"`
	OverloadedDays []OverloadedDay `json:"overloaded_days"`
}

// ScanResult bundles the signals a project scan produced.
type ScanResult struct {
	ProjectID string   `json:"project_id"`
	Signals   []Signal `json:"signals"`
}

// RiskProfile is the aggregated risk posture of one project.
type RiskProfile struct {
	ProjectID         string         `json:"project_id"`
	OverallRiskScore  float64        `json:"overall_risk_score"`
	TotalSignals      int            `json:"total_signals"`
	RiskCounts        map[string]int `json:"risk_counts"`
	SeverityBreakdown map[string]int `json:"severity_breakdown"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateProject creates a project under an organization.
func (c *Client) CreateProject(ctx context.Context, orgID, name, startDate, endDate string) (Project, error) {
	body := map[string]any{
		"org_id": orgID,
		"name":   name,
	}
	if startDate != "" {
		body["start_date"] = startDate
	}
	if endDate != "" {
		body["end_date"] = endDate
	}
	var resp Project
	err := c.do(ctx, http.MethodPost, "projects", body, &resp)
	return resp, err
}

// GetProject fetches a project by id.
func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, "projects/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// CreateAllocation proposes an allocation. If force is false and the
// allocation would push any day over capacity, the server rejects it
// with a 422 carrying the overloaded days.
func (c *Client) CreateAllocation(ctx context.Context, a Allocation, force bool) (Allocation, error) {
	body := map[string]any{
		"resource_id":           a.ResourceID,
		"project_id":            a.ProjectID,
		"start_date":            a.StartDate,
		"end_date":              a.EndDate,
		"allocation_percentage": a.Percent,
		"force":                 force,
	}
	if a.TaskID != nil {
		body["task_id"] = *a.TaskID
	}
	if a.HoursPerDay > 0 {
		body["hours_per_day"] = a.HoursPerDay
	}
	var resp Allocation
	err := c.do(ctx, http.MethodPost, "allocations", body, &resp)
	return resp, err
}

// CheckAllocation runs the capacity check without saving anything.
func (c *Client) CheckAllocation(ctx context.Context, a Allocation) (CapacityCheck, error) {
	body := map[string]any{
		"resource_id":           a.ResourceID,
		"project_id":            a.ProjectID,
		"start_date":            a.StartDate,
		"end_date":              a.EndDate,
		"allocation_percentage": a.Percent,
	}
	var resp CapacityCheck
	err := c.do(ctx, http.MethodPost, "allocations/check", body, &resp)
	return resp, err
}

// ScanProject runs the risk rules against one project and returns the
// signals recorded.
func (c *Client) ScanProject(ctx context.Context, projectID string) (ScanResult, error) {
	var resp ScanResult
	endpoint := fmt.Sprintf("projects/%s/scan", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// Signals lists risk signals for an organization. status and
// signalType narrow the listing when non-empty; limit caps the rows
// when positive.
func (c *Client) Signals(ctx context.Context, orgID, status, signalType string, limit int) ([]Signal, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if signalType != "" {
		q.Set("signal_type", signalType)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	endpoint := fmt.Sprintf("organizations/%s/signals", url.PathEscape(orgID))
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var resp []Signal
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// AcknowledgeSignal marks a signal as acknowledged by the caller.
func (c *Client) AcknowledgeSignal(ctx context.Context, id string) (Signal, error) {
	var resp Signal
	endpoint := fmt.Sprintf("signals/%s/acknowledge", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// ResolveSignal marks a signal as resolved by the caller.
func (c *Client) ResolveSignal(ctx context.Context, id string) (Signal, error) {
	var resp Signal
	endpoint := fmt.Sprintf("signals/%s/resolve", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// Conflicts lists capacity conflicts, optionally filtered by resource.
// Pass resolved to filter by resolution state, or nil for all.
func (c *Client) Conflicts(ctx context.Context, resourceID string, resolved *bool) ([]Conflict, error) {
	q := url.Values{}
	if resourceID != "" {
		q.Set("resource_id", resourceID)
	}
	if resolved != nil {
		q.Set("resolved", fmt.Sprintf("%t", *resolved))
	}
	endpoint := "conflicts"
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var resp []Conflict
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ResolveConflict marks a conflict as resolved by the caller.
func (c *Client) ResolveConflict(ctx context.Context, id string) (Conflict, error) {
	var resp Conflict
	endpoint := fmt.Sprintf("conflicts/%s/resolve", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// ProjectRiskProfile returns the aggregated risk profile of a project.
func (c *Client) ProjectRiskProfile(ctx context.Context, projectID string) (RiskProfile, error) {
	var resp RiskProfile
	endpoint := fmt.Sprintf("projects/%s/risk-profile", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
