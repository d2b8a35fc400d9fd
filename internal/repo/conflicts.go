package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adeel99sa/ZephixPlatform-sub021/internal/domain"
)

const conflictColumns = `id,resource_id,conflict_date,total_allocation_percentage,severity,affected_projects_json,resolved,resolved_by,resolved_at,created_at`

// InsertConflictIfAbsent inserts a conflict row unless an unresolved conflict
// already exists for the same (resource, date). The partial unique index makes
// the insert a no-op in that case; created reports whether a row was written.
func (r Repo) InsertConflictIfAbsent(ctx context.Context, c domain.Conflict) (created bool, err error) {
	affected, err := json.Marshal(c.AffectedProjects)
	if err != nil {
		return false, fmt.Errorf("marshal affected projects: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO conflicts(`+conflictColumns+`) VALUES (?,?,?,?,?,?,0,NULL,NULL,?)
ON CONFLICT(resource_id, conflict_date) WHERE resolved=0 DO NOTHING`,
		c.ID, c.ResourceID, c.ConflictDate, c.TotalPercent, string(c.Severity), string(affected), c.CreatedAt)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func scanConflictRow(scan func(dest ...any) error) (domain.Conflict, error) {
	var c domain.Conflict
	var sev, affected string
	var resolved int
	var resBy, resAt sql.NullString
	err := scan(&c.ID, &c.ResourceID, &c.ConflictDate, &c.TotalPercent, &sev, &affected, &resolved, &resBy, &resAt, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.Severity = domain.Severity(sev)
	c.Resolved = resolved != 0
	if resBy.Valid {
		c.ResolvedBy = &resBy.String
	}
	if resAt.Valid {
		c.ResolvedAt = &resAt.String
	}
	if err := json.Unmarshal([]byte(affected), &c.AffectedProjects); err != nil {
		return c, fmt.Errorf("decode affected projects: %w", err)
	}
	return c, nil
}

func (r Repo) GetConflict(ctx context.Context, id string) (domain.Conflict, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+conflictColumns+` FROM conflicts WHERE id=?`, id)
	return scanConflictRow(row.Scan)
}

type ConflictFilters struct {
	ResourceID string
	Resolved   *bool
}

func (r Repo) ListConflicts(ctx context.Context, f ConflictFilters) ([]domain.Conflict, error) {
	var clauses []string
	var args []any
	if f.ResourceID != "" {
		clauses = append(clauses, "resource_id=?")
		args = append(args, f.ResourceID)
	}
	if f.Resolved != nil {
		clauses = append(clauses, "resolved=?")
		if *f.Resolved {
			args = append(args, 1)
		} else {
			args = append(args, 0)
		}
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + conflictColumns + ` FROM conflicts ` + where + ` ORDER BY conflict_date ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Conflict
	for rows.Next() {
		c, err := scanConflictRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// ListOpenConflictsInWindow returns unresolved conflicts whose date falls in
// [from, to].
func (r Repo) ListOpenConflictsInWindow(ctx context.Context, from, to string) ([]domain.Conflict, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+conflictColumns+` FROM conflicts WHERE resolved=0 AND conflict_date>=? AND conflict_date<=? ORDER BY conflict_date ASC, id ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Conflict
	for rows.Next() {
		c, err := scanConflictRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) MarkConflictResolved(ctx context.Context, id, actorID, at string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE conflicts SET resolved=1, resolved_by=?, resolved_at=? WHERE id=?`, actorID, at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
