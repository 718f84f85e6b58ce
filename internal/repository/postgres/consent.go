package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/service/consent"
)

// ConsentRepo implements consent.Repository against PostgreSQL.
type ConsentRepo struct{ db *sql.DB }

// NewConsentRepo creates a Postgres-backed consent repository.
func NewConsentRepo(db *sql.DB) *ConsentRepo { return &ConsentRepo{db: db} }

const consentColumns = `id, email, consent_type, granted, consent_method, COALESCE(verification_token, ''),
	verified_at, expires_at, revoked_at, COALESCE(ip_address, ''), COALESCE(user_agent, ''), metadata, created_at`

func scanConsent(row rowScanner) (*domain.ConsentRecord, error) {
	var c domain.ConsentRecord
	var verified, expires, revoked sql.NullTime
	var meta []byte
	if err := row.Scan(&c.ID, &c.Email, &c.ConsentType, &c.Granted, &c.ConsentMethod, &c.VerificationToken,
		&verified, &expires, &revoked, &c.IPAddress, &c.UserAgent, &meta, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.VerifiedAt = timePtr(verified)
	c.ExpiresAt = timePtr(expires)
	c.RevokedAt = timePtr(revoked)
	c.Metadata = meta
	return &c, nil
}

func (r *ConsentRepo) Create(ctx context.Context, c *domain.ConsentRecord) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO consent_records (id, email, consent_type, granted, consent_method, verification_token,
			verified_at, expires_at, ip_address, user_agent, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING created_at
	`, c.ID, c.Email, c.ConsentType, c.Granted, c.ConsentMethod, nullString(c.VerificationToken),
		nullTime(c.VerifiedAt), nullTime(c.ExpiresAt), nullString(c.IPAddress), nullString(c.UserAgent),
		nullJSON(c.Metadata)).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create consent: %w", err)
	}
	return nil
}

func (r *ConsentRepo) ListGranted(ctx context.Context, email string, consentType domain.ConsentType) ([]domain.ConsentRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+consentColumns+`
		FROM consent_records
		WHERE email = $1 AND granted = TRUE AND ($2 = '' OR consent_type = $2)
		ORDER BY created_at DESC
	`, email, string(consentType))
	if err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
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

func (r *ConsentRepo) GetByToken(ctx context.Context, token string) (*domain.ConsentRecord, error) {
	c, err := scanConsent(r.db.QueryRowContext(ctx,
		`SELECT `+consentColumns+` FROM consent_records WHERE verification_token = $1`, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, consent.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get consent: %w", err)
	}
	return c, nil
}

func (r *ConsentRepo) MarkVerified(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE consent_records
		SET granted = TRUE, verified_at = $2, verification_token = NULL, updated_at = NOW()
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("verify consent: %w", err)
	}
	if rowsAffected(res) == 0 {
		return consent.ErrNotFound
	}
	return nil
}

func (r *ConsentRepo) Revoke(ctx context.Context, id string, at time.Time, metadata []byte) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE consent_records
		SET granted = FALSE, revoked_at = $2,
		    metadata = COALESCE(metadata, '{}'::jsonb) || COALESCE($3::jsonb, '{}'::jsonb),
		    updated_at = NOW()
		WHERE id = $1
	`, id, at, nullJSON(metadata))
	if err != nil {
		return fmt.Errorf("revoke consent: %w", err)
	}
	if rowsAffected(res) == 0 {
		return consent.ErrNotFound
	}
	return nil
}
