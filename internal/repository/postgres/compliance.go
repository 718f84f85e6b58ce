package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/service/compliance"
)

// ComplianceRepo implements compliance.Repository against PostgreSQL.
type ComplianceRepo struct{ db *sql.DB }

// NewComplianceRepo creates a Postgres-backed compliance repository.
func NewComplianceRepo(db *sql.DB) *ComplianceRepo { return &ComplianceRepo{db: db} }

func (r *ComplianceRepo) SendLogsFor(ctx context.Context, email string) ([]domain.SendLog, error) {
	return querySendLogs(ctx, r.db, `
		SELECT `+sendLogColumns+` FROM send_logs
		WHERE to_email = $1 OR from_email = $1
		ORDER BY created_at DESC
	`, email)
}

func (r *ComplianceRepo) ConsentsFor(ctx context.Context, email string) ([]domain.ConsentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+consentColumns+` FROM consent_records WHERE email = $1 ORDER BY created_at DESC`, email)
	if err != nil {
		return nil, fmt.Errorf("export consents: %w", err)
	}
	defer rows.Close()

	var out []domain.ConsentRecord
	for rows.Next() {
		c, err := scanConsent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *ComplianceRepo) UnsubscribesFor(ctx context.Context, email string) ([]domain.Unsubscribe, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+unsubscribeColumns+` FROM unsubscribes WHERE email = $1 ORDER BY created_at DESC`, email)
	if err != nil {
		return nil, fmt.Errorf("export unsubscribes: %w", err)
	}
	defer rows.Close()

	var out []domain.Unsubscribe
	for rows.Next() {
		u, err := scanUnsubscribe(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unsubscribe: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *ComplianceRepo) SuppressionsFor(ctx context.Context, email string) ([]domain.Suppression, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+suppressionColumns+` FROM suppression_list WHERE email = $1`, email)
	if err != nil {
		return nil, fmt.Errorf("export suppressions: %w", err)
	}
	defer rows.Close()

	var out []domain.Suppression
	for rows.Next() {
		s, err := scanSuppression(rows)
		if err != nil {
			return nil, fmt.Errorf("scan suppression: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *ComplianceRepo) DeleteUserData(ctx context.Context, email string) (compliance.DeletionCounts, error) {
	var counts compliance.DeletionCounts
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return counts, fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM send_logs WHERE to_email = $1 OR from_email = $1`, email)
	if err != nil {
		return counts, fmt.Errorf("delete send logs: %w", err)
	}
	counts.SendLogs = rowsAffected(res)

	if res, err = tx.ExecContext(ctx, `DELETE FROM consent_records WHERE email = $1`, email); err != nil {
		return counts, fmt.Errorf("delete consents: %w", err)
	}
	counts.ConsentRecords = rowsAffected(res)

	if res, err = tx.ExecContext(ctx, `DELETE FROM unsubscribes WHERE email = $1`, email); err != nil {
		return counts, fmt.Errorf("delete unsubscribes: %w", err)
	}
	counts.Unsubscribes = rowsAffected(res)

	if err := tx.Commit(); err != nil {
		return compliance.DeletionCounts{}, fmt.Errorf("commit delete: %w", err)
	}
	return counts, nil
}

func (r *ComplianceRepo) AnonymizeUserData(ctx context.Context, email string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE send_logs
		SET to_email = CASE WHEN to_email = $1 THEN $2 ELSE to_email END,
		    from_email = CASE WHEN from_email = $1 THEN $2 ELSE from_email END,
		    subject = $3,
		    body_preview = $3,
		    updated_at = NOW()
		WHERE to_email = $1 OR from_email = $1
	`, email, compliance.AnonymizedEmail, compliance.Redacted)
	if err != nil {
		return 0, fmt.Errorf("anonymize send logs: %w", err)
	}
	return rowsAffected(res), nil
}

func (r *ComplianceRepo) ReportMetrics(ctx context.Context, domainID string, since time.Time) (compliance.ReportMetrics, error) {
	var m compliance.ReportMetrics
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM send_logs WHERE domain_id = $1 AND created_at >= $2),
			(SELECT COUNT(*) FROM send_logs WHERE domain_id = $1 AND created_at >= $2 AND status = 'bounced'),
			(SELECT COUNT(*) FROM spam_complaints c JOIN send_logs l ON l.id = c.send_log_id
			  WHERE l.domain_id = $1 AND l.created_at >= $2),
			(SELECT COUNT(*) FROM unsubscribes WHERE domain_id = $1 AND created_at >= $2 AND unsubscribed_at IS NOT NULL),
			(SELECT COUNT(*) FROM compliance_logs WHERE action = $3 AND metadata->>'domain_id' = $1::text AND created_at >= $2)
	`, domainID, since, domain.ActionSendCheck).Scan(
		&m.TotalSent, &m.Bounces, &m.SpamComplaints, &m.Unsubscribes, &m.ComplianceChecks)
	if err != nil {
		return m, fmt.Errorf("report metrics: %w", err)
	}
	return m, nil
}

func (r *ComplianceRepo) BlockedChecks(ctx context.Context, domainID string, since time.Time, limit int) ([]domain.ComplianceLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+complianceLogColumns+`
		FROM compliance_logs
		WHERE action = $1
		  AND metadata->>'domain_id' = $2
		  AND metadata->>'allowed' = 'false'
		  AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT $4
	`, domain.ActionSendCheck, domainID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("blocked checks: %w", err)
	}
	defer rows.Close()

	var out []domain.ComplianceLog
	for rows.Next() {
		l, err := scanComplianceLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan compliance log: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}
