package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/service/verification"
)

// DomainRepo implements verification.Repository against PostgreSQL.
type DomainRepo struct{ db *sql.DB }

// NewDomainRepo creates a Postgres-backed sending domain repository.
func NewDomainRepo(db *sql.DB) *DomainRepo { return &DomainRepo{db: db} }

const domainColumns = `id, name, dkim_selector, COALESCE(dkim_private_key, ''), COALESCE(dkim_public_key, ''),
	spf_verified, dkim_verified, dmarc_verified, is_active, verification_results,
	last_verification_at, verified_at, created_at`

func scanDomain(row rowScanner) (*domain.Domain, error) {
	var d domain.Domain
	var results []byte
	var lastCheck, verified sql.NullTime
	if err := row.Scan(&d.ID, &d.Name, &d.DKIMSelector, &d.DKIMPrivateKey, &d.DKIMPublicKey,
		&d.SPFVerified, &d.DKIMVerified, &d.DMARCVerified, &d.IsActive, &results,
		&lastCheck, &verified, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.VerificationResults = results
	d.LastVerificationAt = timePtr(lastCheck)
	d.VerifiedAt = timePtr(verified)
	return &d, nil
}

func (r *DomainRepo) Create(ctx context.Context, d *domain.Domain) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO domains (id, name, dkim_selector, dkim_private_key, dkim_public_key, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at
	`, d.ID, d.Name, d.Selector(), nullString(d.DKIMPrivateKey), nullString(d.DKIMPublicKey), d.IsActive).Scan(&d.CreatedAt)
	if isUniqueViolation(err) {
		return verification.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create domain: %w", err)
	}
	return nil
}

func (r *DomainRepo) getBy(ctx context.Context, column, value string) (*domain.Domain, error) {
	d, err := scanDomain(r.db.QueryRowContext(ctx,
		`SELECT `+domainColumns+` FROM domains WHERE `+column+` = $1 AND deleted_at IS NULL`, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, verification.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get domain: %w", err)
	}
	return d, nil
}

func (r *DomainRepo) Get(ctx context.Context, id string) (*domain.Domain, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, verification.ErrNotFound
	}
	return r.getBy(ctx, "id", id)
}

func (r *DomainRepo) GetByName(ctx context.Context, name string) (*domain.Domain, error) {
	return r.getBy(ctx, "name", name)
}

func (r *DomainRepo) List(ctx context.Context, activeOnly bool) ([]domain.Domain, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+domainColumns+` FROM domains
		WHERE deleted_at IS NULL AND (NOT $1 OR is_active)
		ORDER BY name
	`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	defer rows.Close()

	var out []domain.Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *DomainRepo) SaveVerification(ctx context.Context, id string, report domain.VerificationReport, verifiedAt *time.Time) error {
	snapshot, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode verification report: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE domains
		SET spf_verified = $2, dkim_verified = $3, dmarc_verified = $4,
		    verification_results = $5, last_verification_at = $6, verified_at = $7, updated_at = NOW()
		WHERE id = $1
	`, id, report.SPF.Verified, report.DKIM.Verified, report.DMARC.Verified,
		snapshot, report.CheckedAt, nullTime(verifiedAt))
	if err != nil {
		return fmt.Errorf("save verification: %w", err)
	}
	if rowsAffected(res) == 0 {
		return verification.ErrNotFound
	}
	return nil
}

func (r *DomainRepo) SaveKeys(ctx context.Context, id, privateKey, publicKeyDNS string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE domains SET dkim_private_key = $2, dkim_public_key = $3, updated_at = NOW()
		WHERE id = $1
	`, id, privateKey, publicKeyDNS)
	if err != nil {
		return fmt.Errorf("save dkim keys: %w", err)
	}
	if rowsAffected(res) == 0 {
		return verification.ErrNotFound
	}
	return nil
}
