package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/adeel99sa/ZephixPlatform-sub021/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func (r Repo) InsertProject(ctx context.Context, p domain.Project) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO projects(id,org_id,name,status,start_date,end_date,created_at) VALUES (?,?,?,?,?,?,?)`,
		p.ID, p.OrgID, p.Name, p.Status, nullable(p.StartDate), nullable(p.EndDate), p.CreatedAt)
	return err
}

func scanProjectRow(scan func(dest ...any) error) (domain.Project, error) {
	var p domain.Project
	var start, end sql.NullString
	err := scan(&p.ID, &p.OrgID, &p.Name, &p.Status, &start, &end, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if start.Valid {
		p.StartDate = start.String
	}
	if end.Valid {
		p.EndDate = end.String
	}
	return p, nil
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,org_id,name,status,start_date,end_date,created_at FROM projects WHERE id=?`, id)
	return scanProjectRow(row.Scan)
}

// ListActiveProjects returns every project in status active, the daily sweep's
// candidate set.
func (r Repo) ListActiveProjects(ctx context.Context) ([]domain.Project, error) {
	return r.listProjects(ctx, `SELECT id,org_id,name,status,start_date,end_date,created_at FROM projects WHERE status='active' ORDER BY created_at ASC, id ASC`)
}

func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return r.listProjects(ctx, `SELECT id,org_id,name,status,start_date,end_date,created_at FROM projects ORDER BY created_at DESC, id DESC`)
}

func (r Repo) listProjects(ctx context.Context, query string, args ...any) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProjectRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateProjectStatus(ctx context.Context, id, status string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE projects SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertWorkItem(ctx context.Context, w domain.WorkItem) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO work_items(id,project_id,title,type,status,effort_points,planned_end,actual_end,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		w.ID, w.ProjectID, w.Title, w.Type, w.Status, nullableIntPtr(w.EffortPoints),
		nullableStringPtr(w.PlannedEnd), nullableStringPtr(w.ActualEnd), w.CreatedAt, w.UpdatedAt)
	return err
}

func (r Repo) UpdateWorkItemStatus(ctx context.Context, id, status, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE work_items SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type WorkItemFilters struct {
	ProjectID string
	Status    string
}

func (r Repo) ListWorkItems(ctx context.Context, f WorkItemFilters) ([]domain.WorkItem, error) {
	var clauses []string
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT id,project_id,title,type,status,effort_points,planned_end,actual_end,created_at,updated_at FROM work_items ` + where + ` ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WorkItem
	for rows.Next() {
		var w domain.WorkItem
		var effort sql.NullInt64
		var plannedEnd, actualEnd sql.NullString
		if err := rows.Scan(&w.ID, &w.ProjectID, &w.Title, &w.Type, &w.Status, &effort, &plannedEnd, &actualEnd, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		if effort.Valid {
			e := int(effort.Int64)
			w.EffortPoints = &e
		}
		if plannedEnd.Valid {
			w.PlannedEnd = &plannedEnd.String
		}
		if actualEnd.Valid {
			w.ActualEnd = &actualEnd.String
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

func (r Repo) InsertAllocation(ctx context.Context, a domain.Allocation) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO allocations(id,resource_id,project_id,task_id,start_date,end_date,allocation_percentage,hours_per_day,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		a.ID, a.ResourceID, a.ProjectID, nullableStringPtr(a.TaskID), a.StartDate, a.EndDate, a.Percent, a.HoursPerDay, a.CreatedAt)
	return err
}

func scanAllocations(rows *sql.Rows) ([]domain.Allocation, error) {
	defer rows.Close()
	var res []domain.Allocation
	for rows.Next() {
		var a domain.Allocation
		var taskID sql.NullString
		if err := rows.Scan(&a.ID, &a.ResourceID, &a.ProjectID, &taskID, &a.StartDate, &a.EndDate, &a.Percent, &a.HoursPerDay, &a.CreatedAt); err != nil {
			return nil, err
		}
		if taskID.Valid {
			a.TaskID = &taskID.String
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

const allocationColumns = `id,resource_id,project_id,task_id,start_date,end_date,allocation_percentage,hours_per_day,created_at`

// ListAllocationsByResource returns every allocation for a resource across all
// projects. Overallocation is a cross-project phenomenon, so callers must not
// scope this down.
func (r Repo) ListAllocationsByResource(ctx context.Context, resourceID string) ([]domain.Allocation, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+allocationColumns+` FROM allocations WHERE resource_id=? ORDER BY start_date ASC, id ASC`, resourceID)
	if err != nil {
		return nil, err
	}
	return scanAllocations(rows)
}

func (r Repo) ListAllocationsByProject(ctx context.Context, projectID string) ([]domain.Allocation, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+allocationColumns+` FROM allocations WHERE project_id=? ORDER BY start_date ASC, id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	return scanAllocations(rows)
}

// ListAllocationsInWindow returns allocations whose [start,end] intersects the
// given window (dates in domain.DateLayout, inclusive).
func (r Repo) ListAllocationsInWindow(ctx context.Context, from, to string) ([]domain.Allocation, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+allocationColumns+` FROM allocations WHERE start_date<=? AND end_date>=? ORDER BY resource_id ASC, start_date ASC`, to, from)
	if err != nil {
		return nil, err
	}
	return scanAllocations(rows)
}

// ResourcesOnProject returns the distinct resource ids with any allocation on
// the project.
func (r Repo) ResourcesOnProject(ctx context.Context, projectID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT DISTINCT resource_id FROM allocations WHERE project_id=? ORDER BY resource_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r Repo) UpsertProjectBudget(ctx context.Context, projectID string, planned, actual float64, updatedAt string) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO project_budgets(project_id,planned_budget,actual_cost,updated_at) VALUES (?,?,?,?)
ON CONFLICT(project_id) DO UPDATE SET planned_budget=excluded.planned_budget, actual_cost=excluded.actual_cost, updated_at=excluded.updated_at`,
		projectID, planned, actual, updatedAt)
	return err
}

// GetProjectBudget returns the planned/actual pair for a project.
func (r Repo) GetProjectBudget(ctx context.Context, projectID string) (planned, actual float64, err error) {
	row := r.DB.QueryRowContext(ctx, `SELECT planned_budget, actual_cost FROM project_budgets WHERE project_id=?`, projectID)
	err = row.Scan(&planned, &actual)
	if err == sql.ErrNoRows {
		return 0, 0, ErrNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("read project budget: %w", err)
	}
	return planned, actual, nil
}
