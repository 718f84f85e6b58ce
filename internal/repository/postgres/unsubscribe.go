package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/service/unsubscribe"
)

// UnsubscribeRepo implements unsubscribe.Repository against PostgreSQL.
type UnsubscribeRepo struct{ db *sql.DB }

// NewUnsubscribeRepo creates a Postgres-backed unsubscribe repository.
func NewUnsubscribeRepo(db *sql.DB) *UnsubscribeRepo { return &UnsubscribeRepo{db: db} }

const unsubscribeColumns = `id, email, COALESCE(domain_id::text, ''), list_type, unsubscribe_token,
	COALESCE(reason, ''), COALESCE(ip_address, ''), COALESCE(user_agent, ''), unsubscribed_at, created_at`

func scanUnsubscribe(row rowScanner) (*domain.Unsubscribe, error) {
	var u domain.Unsubscribe
	var at sql.NullTime
	if err := row.Scan(&u.ID, &u.Email, &u.DomainID, &u.ListType, &u.Token,
		&u.Reason, &u.IPAddress, &u.UserAgent, &at, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.UnsubscribedAt = timePtr(at)
	return &u, nil
}

func (r *UnsubscribeRepo) FirstOrCreate(ctx context.Context, u *domain.Unsubscribe) (*domain.Unsubscribe, error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO unsubscribes (id, email, domain_id, list_type, unsubscribe_token, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT DO NOTHING
	`, u.ID, u.Email, nullString(u.DomainID), u.ListType, u.Token)
	if err != nil {
		return nil, fmt.Errorf("insert unsubscribe: %w", err)
	}

	found, err := scanUnsubscribe(r.db.QueryRowContext(ctx, `
		SELECT `+unsubscribeColumns+`
		FROM unsubscribes
		WHERE email = $1 AND domain_id IS NOT DISTINCT FROM $2::uuid AND list_type = $3
	`, u.Email, nullString(u.DomainID), u.ListType))
	if err != nil {
		return nil, fmt.Errorf("load unsubscribe: %w", err)
	}
	return found, nil
}

func (r *UnsubscribeRepo) Create(ctx context.Context, u *domain.Unsubscribe) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO unsubscribes (id, email, domain_id, list_type, unsubscribe_token, reason, ip_address, user_agent, unsubscribed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING created_at
	`, u.ID, u.Email, nullString(u.DomainID), u.ListType, u.Token, nullString(u.Reason),
		nullString(u.IPAddress), nullString(u.UserAgent), nullTime(u.UnsubscribedAt)).Scan(&u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create unsubscribe: %w", err)
	}
	return nil
}

func (r *UnsubscribeRepo) GetByToken(ctx context.Context, token string) (*domain.Unsubscribe, error) {
	u, err := scanUnsubscribe(r.db.QueryRowContext(ctx,
		`SELECT `+unsubscribeColumns+` FROM unsubscribes WHERE unsubscribe_token = $1`, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, unsubscribe.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get unsubscribe: %w", err)
	}
	return u, nil
}

func (r *UnsubscribeRepo) MarkUnsubscribed(ctx context.Context, id, reason, ip, userAgent string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE unsubscribes
		SET unsubscribed_at = $2, reason = $3, ip_address = $4, user_agent = $5
		WHERE id = $1
	`, id, at, nullString(reason), nullString(ip), nullString(userAgent))
	if err != nil {
		return fmt.Errorf("mark unsubscribed: %w", err)
	}
	if rowsAffected(res) == 0 {
		return unsubscribe.ErrNotFound
	}
	return nil
}

func (r *UnsubscribeRepo) IsUnsubscribed(ctx context.Context, email, domainID string, listType domain.ListType) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM unsubscribes
			WHERE email = $1
			  AND unsubscribed_at IS NOT NULL
			  AND ($2 = '' OR domain_id = NULLIF($2, '')::uuid)
			  AND (list_type = $3 OR list_type = 'all')
		)
	`, email, domainID, listType).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("is unsubscribed: %w", err)
	}
	return exists, nil
}
