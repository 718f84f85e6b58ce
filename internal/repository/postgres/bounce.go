package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/mailcore/internal/domain"
)

// BounceRepo implements bounce.Repository against PostgreSQL.
type BounceRepo struct{ db *sql.DB }

// NewBounceRepo creates a Postgres-backed bounce repository.
func NewBounceRepo(db *sql.DB) *BounceRepo { return &BounceRepo{db: db} }

func (r *BounceRepo) BouncedWithoutRecord(ctx context.Context, limit int) ([]domain.SendLog, error) {
	return querySendLogs(ctx, r.db, `
		SELECT `+sendLogColumns+` FROM send_logs l
		WHERE l.status = 'bounced'
		  AND NOT EXISTS (SELECT 1 FROM bounces b WHERE b.send_log_id = l.id)
		ORDER BY l.created_at
		LIMIT $1
	`, limit)
}

func (r *BounceRepo) CreateBounce(ctx context.Context, b *domain.Bounce) (bool, error) {
	return insertBounce(ctx, r.db, b)
}

func (r *BounceRepo) HardBounceCount(ctx context.Context, email string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bounces
		WHERE recipient_email = $1 AND bounce_type IN ('hard', 'permanent') AND is_suppressed = FALSE
	`, email).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count hard bounces: %w", err)
	}
	return n, nil
}

func (r *BounceRepo) RecipientsOverThreshold(ctx context.Context, n int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT recipient_email FROM bounces
		WHERE bounce_type IN ('hard', 'permanent') AND is_suppressed = FALSE
		GROUP BY recipient_email
		HAVING COUNT(*) >= $1
		ORDER BY recipient_email
	`, n)
	if err != nil {
		return nil, fmt.Errorf("recipients over threshold: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		out = append(out, email)
	}
	return out, rows.Err()
}

func (r *BounceRepo) MarkSuppressed(ctx context.Context, email string) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bounces SET is_suppressed = TRUE WHERE recipient_email = $1 AND is_suppressed = FALSE`, email)
	if err != nil {
		return 0, fmt.Errorf("mark bounces suppressed: %w", err)
	}
	return rowsAffected(res), nil
}

func (r *BounceRepo) List(ctx context.Context, email string, limit int) ([]domain.Bounce, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, send_log_id, recipient_email, bounce_type, bounce_category, COALESCE(smtp_code, 0),
			COALESCE(smtp_response, ''), COALESCE(diagnostic_code, ''), COALESCE(raw_message, ''),
			is_suppressed, bounced_at
		FROM bounces
		WHERE ($1 = '' OR recipient_email = $1)
		ORDER BY bounced_at DESC
		LIMIT $2
	`, email, limit)
	if err != nil {
		return nil, fmt.Errorf("list bounces: %w", err)
	}
	defer rows.Close()

	var out []domain.Bounce
	for rows.Next() {
		var b domain.Bounce
		if err := rows.Scan(&b.ID, &b.SendLogID, &b.RecipientEmail, &b.BounceType, &b.BounceCategory,
			&b.SMTPCode, &b.SMTPResponse, &b.DiagnosticCode, &b.RawMessage, &b.IsSuppressed, &b.BouncedAt); err != nil {
			return nil, fmt.Errorf("scan bounce: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
