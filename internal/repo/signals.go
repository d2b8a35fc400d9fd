package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/adeel99sa/ZephixPlatform-sub021/internal/domain"
)

const signalColumns = `id,org_id,project_id,work_item_id,signal_type,severity,details_json,status,acknowledged_by,acknowledged_at,resolved_by,resolved_at,created_at`

func (r Repo) InsertSignal(ctx context.Context, tx *sql.Tx, s domain.RiskSignal) error {
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return r.DB.ExecContext(ctx, query, args...)
	}
	_, err := exec(`INSERT INTO risk_signals(`+signalColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.OrgID, s.ProjectID, nullableStringPtr(s.WorkItemID), string(s.Type), string(s.Severity),
		nullable(s.DetailsJSON), string(s.Status), nullableStringPtr(s.AcknowledgedBy), nullableStringPtr(s.AcknowledgedAt),
		nullableStringPtr(s.ResolvedBy), nullableStringPtr(s.ResolvedAt), s.CreatedAt)
	return err
}

func scanSignalRow(scan func(dest ...any) error) (domain.RiskSignal, error) {
	var s domain.RiskSignal
	var workItemID, details, ackBy, ackAt, resBy, resAt sql.NullString
	var typ, sev, status string
	err := scan(&s.ID, &s.OrgID, &s.ProjectID, &workItemID, &typ, &sev, &details, &status, &ackBy, &ackAt, &resBy, &resAt, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.Type = domain.SignalType(typ)
	s.Severity = domain.Severity(sev)
	s.Status = domain.SignalStatus(status)
	if workItemID.Valid {
		s.WorkItemID = &workItemID.String
	}
	if details.Valid {
		s.DetailsJSON = details.String
	}
	if ackBy.Valid {
		s.AcknowledgedBy = &ackBy.String
	}
	if ackAt.Valid {
		s.AcknowledgedAt = &ackAt.String
	}
	if resBy.Valid {
		s.ResolvedBy = &resBy.String
	}
	if resAt.Valid {
		s.ResolvedAt = &resAt.String
	}
	return s, nil
}

func (r Repo) GetSignal(ctx context.Context, id string) (domain.RiskSignal, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+signalColumns+` FROM risk_signals WHERE id=?`, id)
	return scanSignalRow(row.Scan)
}

type SignalFilters struct {
	OrgID      string
	ProjectID  string
	Status     string
	SignalType string
	Limit      int
}

func (r Repo) ListSignals(ctx context.Context, f SignalFilters) ([]domain.RiskSignal, error) {
	var clauses []string
	var args []any
	if f.OrgID != "" {
		clauses = append(clauses, "org_id=?")
		args = append(args, f.OrgID)
	}
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.SignalType != "" {
		clauses = append(clauses, "signal_type=?")
		args = append(args, f.SignalType)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + signalColumns + ` FROM risk_signals ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RiskSignal
	for rows.Next() {
		s, err := scanSignalRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// ListActiveSignals returns unresolved signals for an organization.
func (r Repo) ListActiveSignals(ctx context.Context, orgID string) ([]domain.RiskSignal, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+signalColumns+` FROM risk_signals WHERE org_id=? AND status!='resolved' ORDER BY created_at DESC, id DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RiskSignal
	for rows.Next() {
		s, err := scanSignalRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) MarkSignalAcknowledged(ctx context.Context, tx *sql.Tx, id, actorID, at string) error {
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return r.DB.ExecContext(ctx, query, args...)
	}
	res, err := exec(`UPDATE risk_signals SET status='acknowledged', acknowledged_by=?, acknowledged_at=? WHERE id=?`, actorID, at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) MarkSignalResolved(ctx context.Context, tx *sql.Tx, id, actorID, at string) error {
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return r.DB.ExecContext(ctx, query, args...)
	}
	res, err := exec(`UPDATE risk_signals SET status='resolved', resolved_by=?, resolved_at=? WHERE id=?`, actorID, at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountSignalsByType groups a project's signals by type.
func (r Repo) CountSignalsByType(ctx context.Context, projectID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT signal_type, count(*) FROM risk_signals WHERE project_id=? GROUP BY signal_type`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var typ string
		var count int
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, err
		}
		res[typ] = count
	}
	return res, rows.Err()
}

// CountSignalsBySeverity groups a project's signals by severity.
func (r Repo) CountSignalsBySeverity(ctx context.Context, projectID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT severity, count(*) FROM risk_signals WHERE project_id=? GROUP BY severity`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var sev string
		var count int
		if err := rows.Scan(&sev, &count); err != nil {
			return nil, err
		}
		res[sev] = count
	}
	return res, rows.Err()
}
