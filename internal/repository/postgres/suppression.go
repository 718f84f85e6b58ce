package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/service/suppression"
)

// SuppressionRepo implements suppression.Repository against PostgreSQL.
type SuppressionRepo struct{ db *sql.DB }

// NewSuppressionRepo creates a Postgres-backed suppression repository.
func NewSuppressionRepo(db *sql.DB) *SuppressionRepo { return &SuppressionRepo{db: db} }

const suppressionColumns = `id, email, reason, source, COALESCE(notes, ''), expires_at, created_at`

func scanSuppression(row rowScanner) (*domain.Suppression, error) {
	var s domain.Suppression
	var expires sql.NullTime
	if err := row.Scan(&s.ID, &s.Email, &s.Reason, &s.Source, &s.Notes, &expires, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.ExpiresAt = timePtr(expires)
	return &s, nil
}

func (r *SuppressionRepo) IsSuppressed(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM suppression_list WHERE email = $1 AND (expires_at IS NULL OR expires_at > NOW()))`,
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("is suppressed: %w", err)
	}
	return exists, nil
}

func (r *SuppressionRepo) Suppress(ctx context.Context, s *domain.Suppression) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO suppression_list (id, email, reason, source, notes, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (email) DO UPDATE
		SET reason = EXCLUDED.reason, source = EXCLUDED.source, notes = EXCLUDED.notes,
		    expires_at = EXCLUDED.expires_at, updated_at = NOW()
		RETURNING id, created_at
	`, s.ID, s.Email, s.Reason, s.Source, nullString(s.Notes), nullTime(s.ExpiresAt)).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("suppress: %w", err)
	}
	return nil
}

func (r *SuppressionRepo) Get(ctx context.Context, email string) (*domain.Suppression, error) {
	s, err := scanSuppression(r.db.QueryRowContext(ctx,
		`SELECT `+suppressionColumns+` FROM suppression_list WHERE email = $1`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, suppression.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get suppression: %w", err)
	}
	return s, nil
}

func (r *SuppressionRepo) Remove(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM suppression_list WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("remove suppression: %w", err)
	}
	if rowsAffected(res) == 0 {
		return suppression.ErrNotFound
	}
	return nil
}

func (r *SuppressionRepo) List(ctx context.Context, f suppression.ListFilter) ([]domain.Suppression, int, error) {
	var where []string
	var args []any
	if f.Reason != "" {
		args = append(args, f.Reason)
		where = append(where, fmt.Sprintf("reason = $%d", len(args)))
	}
	if f.Source != "" {
		args = append(args, f.Source)
		where = append(where, fmt.Sprintf("source = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+strings.ToLower(f.Search)+"%")
		where = append(where, fmt.Sprintf("email LIKE $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM suppression_list`+clause, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count suppressions: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = total
	}
	args = append(args, limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM suppression_list%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, suppressionColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list suppressions: %w", err)
	}
	defer rows.Close()

	var out []domain.Suppression
	for rows.Next() {
		s, err := scanSuppression(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan suppression: %w", err)
		}
		out = append(out, *s)
	}
	return out, total, rows.Err()
}
