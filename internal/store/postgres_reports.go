package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"givinggrid/api/internal/catalog"
)

const reportColumns = `rp.id, rp.type, rp.target_id, rp.reporter_id, rp.reason, rp.details,
	rp.status, rp.resolution_action, rp.resolution_note, rp.resolved_by, rp.resolved_at, rp.created_at,
	u.display_name, a.display_name,
	CASE rp.type
		WHEN 'listing' THEN COALESCE((SELECT l.title FROM listings l WHERE l.id = rp.target_id), 'deleted listing')
		WHEN 'user' THEN COALESCE((SELECT tu.display_name FROM users tu WHERE tu.id = rp.target_id), 'deleted user')
		WHEN 'response' THEN 'response #' || rp.target_id
	END`

const reportFrom = ` FROM reports rp
	LEFT JOIN users u ON u.id = rp.reporter_id
	LEFT JOIN users a ON a.id = rp.resolved_by`

func scanReport(row interface{ Scan(...any) error }) (Report, error) {
	var r Report
	err := row.Scan(&r.ID, &r.Type, &r.TargetID, &r.ReporterID, &r.Reason, &r.Details,
		&r.Status, &r.ResolutionAction, &r.ResolutionNote, &r.ResolvedByID, &r.ResolvedAt, &r.CreatedAt,
		&r.ReporterName, &r.ResolvedByName, &r.TargetSummary)
	return r, err
}

// CreateReport files a report. A reporter re-reporting the same target
// trips the unique constraint and comes back as ErrDuplicate; anonymous
// reports (nil reporter) are never deduplicated.
func (s *PostgresStore) CreateReport(ctx context.Context, report Report) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO reports (type, target_id, reporter_id, reason, details, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, report.Type, report.TargetID, report.ReporterID, report.Reason, report.Details,
		catalog.ReportPending).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("insert report: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetReport(ctx context.Context, id int64) (Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+reportFrom+` WHERE rp.id = $1`, id)
	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, ErrNotFound
	}
	if err != nil {
		return Report{}, fmt.Errorf("lookup report: %w", err)
	}
	return report, nil
}

// ListOpenReports is the moderation queue: pending before reviewed,
// oldest first within each group.
func (s *PostgresStore) ListOpenReports(ctx context.Context) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reportColumns+reportFrom+`
		WHERE rp.status IN ('pending', 'reviewed')
		ORDER BY CASE rp.status WHEN 'pending' THEN 0 ELSE 1 END, rp.created_at, rp.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list open reports: %w", err)
	}
	return collectReports(rows)
}

// ListReports returns all reports, optionally filtered by status, newest
// first, paginated.
func (s *PostgresStore) ListReports(ctx context.Context, status catalog.ReportStatus, limit, offset int) ([]Report, int, error) {
	where := `WHERE 1=1`
	args := []any{}
	if catalog.ValidReportStatus(string(status)) {
		args = append(args, string(status))
		where = `WHERE rp.status = $1`
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports rp `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s%s %s ORDER BY rp.created_at DESC, rp.id DESC LIMIT $%d OFFSET $%d`,
		reportColumns, reportFrom, where, len(args)-1, len(args))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}
	reports, err := collectReports(rows)
	return reports, total, err
}

func collectReports(rows *sql.Rows) ([]Report, error) {
	defer rows.Close()
	var reports []Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func (s *PostgresStore) CountReportsByStatus(ctx context.Context) (map[catalog.ReportStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM reports GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count reports by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[catalog.ReportStatus]int)
	for rows.Next() {
		var status catalog.ReportStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan report count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ResolveReport finalizes a report and applies the side effect in the
// same transaction. The WHERE status guard makes already-final reports
// come back as ErrNotFound so the handler can refuse them. sideEffect may
// be nil (dismiss).
func (s *PostgresStore) ResolveReport(ctx context.Context, reportID, adminID int64, action catalog.ResolutionAction, note string, sideEffect func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin resolve report tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	status := catalog.ReportResolved
	if action == catalog.ActionDismiss {
		status = catalog.ReportDismissed
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE reports
		SET status=$2, resolution_action=$3, resolution_note=$4, resolved_by=$5, resolved_at=NOW()
		WHERE id=$1 AND status IN ('pending', 'reviewed')
	`, reportID, status, action, note, adminID)
	if err != nil {
		return fmt.Errorf("resolve report: %w", err)
	}
	if err := checkAffected(res, "report"); err != nil {
		return err
	}

	if sideEffect != nil {
		if err := sideEffect(tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit resolve report tx: %w", err)
	}
	return nil
}

// CloseListingTx and DeactivateUserTx are the resolution side effects run
// inside ResolveReport's transaction.

func CloseListingTx(ctx context.Context, listingID int64) func(tx *sql.Tx) error {
	return func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE listings SET status='closed', updated_at=NOW() WHERE id=$1
		`, listingID)
		if err != nil {
			return fmt.Errorf("close reported listing: %w", err)
		}
		return checkAffected(res, "listing")
	}
}

func DeactivateUserTx(ctx context.Context, userID int64) func(tx *sql.Tx) error {
	return func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE users SET is_active=FALSE, updated_at=NOW() WHERE id=$1
		`, userID)
		if err != nil {
			return fmt.Errorf("deactivate reported user: %w", err)
		}
		return checkAffected(res, "user")
	}
}
