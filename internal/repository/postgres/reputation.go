package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/service/reputation"
)

// ReputationRepo implements reputation.Repository against PostgreSQL.
type ReputationRepo struct{ db *sql.DB }

// NewReputationRepo creates a Postgres-backed IP reputation repository.
func NewReputationRepo(db *sql.DB) *ReputationRepo { return &ReputationRepo{db: db} }

const reputationColumns = `id, ip_address, reputation_score, spam_reports, successful_sends, failed_sends,
	bounce_rate, is_blacklisted, blacklist_sources, last_checked_at, updated_at`

func scanReputation(row rowScanner) (*domain.IPReputation, error) {
	var r domain.IPReputation
	var checked sql.NullTime
	if err := row.Scan(&r.ID, &r.IPAddress, &r.ReputationScore, &r.SpamReports, &r.SuccessfulSends,
		&r.FailedSends, &r.BounceRate, &r.IsBlacklisted, pq.Array(&r.BlacklistSources), &checked, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.LastCheckedAt = timePtr(checked)
	return &r, nil
}

func (r *ReputationRepo) Get(ctx context.Context, ip string) (*domain.IPReputation, error) {
	rep, err := scanReputation(r.db.QueryRowContext(ctx,
		`SELECT `+reputationColumns+` FROM ip_reputation WHERE ip_address = $1`, ip))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reputation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ip reputation: %w", err)
	}
	return rep, nil
}

func (r *ReputationRepo) Increment(ctx context.Context, ip string, d reputation.Delta) (*domain.IPReputation, error) {
	rep, err := scanReputation(r.db.QueryRowContext(ctx, `
		INSERT INTO ip_reputation (id, ip_address, successful_sends, failed_sends, spam_reports, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (ip_address) DO UPDATE
		SET successful_sends = ip_reputation.successful_sends + EXCLUDED.successful_sends,
		    failed_sends = ip_reputation.failed_sends + EXCLUDED.failed_sends,
		    spam_reports = ip_reputation.spam_reports + EXCLUDED.spam_reports,
		    updated_at = NOW()
		RETURNING `+reputationColumns,
		uuid.New().String(), ip, d.Successful, d.Failed, d.Spam))
	if err != nil {
		return nil, fmt.Errorf("increment ip reputation: %w", err)
	}
	return rep, nil
}

func (r *ReputationRepo) SaveScore(ctx context.Context, ip string, score int, bounceRate float64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE ip_reputation SET reputation_score = $2, bounce_rate = $3, updated_at = NOW()
		WHERE ip_address = $1
	`, ip, score, bounceRate)
	if err != nil {
		return fmt.Errorf("save reputation score: %w", err)
	}
	if rowsAffected(res) == 0 {
		return reputation.ErrNotFound
	}
	return nil
}

func (r *ReputationRepo) BounceRate(ctx context.Context, ip string, since time.Time) (float64, error) {
	var total, bounced int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'bounced')
		FROM send_logs
		WHERE sending_ip = $1 AND created_at >= $2
	`, ip, since).Scan(&total, &bounced)
	if err != nil {
		return 0, fmt.Errorf("bounce rate: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(bounced) / float64(total) * 100, nil
}

func (r *ReputationRepo) SetBlacklist(ctx context.Context, ip string, listed bool, sources []string, checkedAt time.Time) error {
	if sources == nil {
		sources = []string{}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ip_reputation (id, ip_address, is_blacklisted, blacklist_sources, last_checked_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (ip_address) DO UPDATE
		SET is_blacklisted = EXCLUDED.is_blacklisted,
		    blacklist_sources = EXCLUDED.blacklist_sources,
		    last_checked_at = EXCLUDED.last_checked_at,
		    updated_at = NOW()
	`, uuid.New().String(), ip, listed, pq.Array(sources), checkedAt)
	if err != nil {
		return fmt.Errorf("set blacklist: %w", err)
	}
	return nil
}

func (r *ReputationRepo) List(ctx context.Context) ([]domain.IPReputation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reputationColumns+` FROM ip_reputation ORDER BY reputation_score ASC, ip_address`)
	if err != nil {
		return nil, fmt.Errorf("list ip reputation: %w", err)
	}
	defer rows.Close()

	var out []domain.IPReputation
	for rows.Next() {
		rep, err := scanReputation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ip reputation: %w", err)
		}
		out = append(out, *rep)
	}
	return out, rows.Err()
}
