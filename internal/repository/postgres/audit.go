package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/mailcore/internal/domain"
)

// AuditRepo stores compliance log entries.
type AuditRepo struct{ db *sql.DB }

// NewAuditRepo creates a Postgres-backed audit repository.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

const complianceLogColumns = `id, action, COALESCE(regulation, ''), COALESCE(email, ''), description,
	metadata, COALESCE(ip_address, ''), COALESCE(user_agent, ''), COALESCE(actor, ''), created_at`

func scanComplianceLog(row rowScanner) (*domain.ComplianceLog, error) {
	var l domain.ComplianceLog
	var meta []byte
	if err := row.Scan(&l.ID, &l.Action, &l.Regulation, &l.Email, &l.Description,
		&meta, &l.IPAddress, &l.UserAgent, &l.Actor, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Metadata = meta
	return &l, nil
}

func (r *AuditRepo) Insert(ctx context.Context, e *domain.ComplianceLog) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO compliance_logs (id, action, regulation, email, description, metadata, ip_address, user_agent, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.Action, nullString(e.Regulation), nullString(e.Email), e.Description,
		nullJSON(e.Metadata), nullString(e.IPAddress), nullString(e.UserAgent), nullString(e.Actor), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert compliance log: %w", err)
	}
	return nil
}

func (r *AuditRepo) ListByEmail(ctx context.Context, email string, limit int) ([]domain.ComplianceLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+complianceLogColumns+`
		FROM compliance_logs
		WHERE email = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, email, limit)
	if err != nil {
		return nil, fmt.Errorf("list compliance logs: %w", err)
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
