package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/service/spamfilter"
)

// ComplaintRepo implements spamfilter.Repository against PostgreSQL.
type ComplaintRepo struct{ db *sql.DB }

// NewComplaintRepo creates a Postgres-backed complaint repository.
func NewComplaintRepo(db *sql.DB) *ComplaintRepo { return &ComplaintRepo{db: db} }

func (r *ComplaintRepo) InsertComplaint(ctx context.Context, c *domain.SpamComplaint) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO spam_complaints (id, email, send_log_id, complaint_type, feedback_type, provider, raw_report, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at
	`, c.ID, c.Email, nullString(c.SendLogID), c.ComplaintType, nullString(c.FeedbackType),
		nullString(c.Provider), nullString(c.RawReport)).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert complaint: %w", err)
	}
	return nil
}

func (r *ComplaintRepo) SenderStats(ctx context.Context, sender string) (int, int, error) {
	var complaints, sent int
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM spam_complaints c JOIN send_logs l ON l.id = c.send_log_id WHERE l.from_email = $1),
			(SELECT COUNT(*) FROM send_logs WHERE from_email = $1)
	`, sender).Scan(&complaints, &sent)
	if err != nil {
		return 0, 0, fmt.Errorf("sender complaint stats: %w", err)
	}
	return complaints, sent, nil
}

func (r *ComplaintRepo) FindSendLog(ctx context.Context, messageID string) (string, string, error) {
	var id, sendingIP string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, COALESCE(sending_ip, '') FROM send_logs WHERE message_id = $1`, messageID,
	).Scan(&id, &sendingIP)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", spamfilter.ErrSendLogNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("find send log: %w", err)
	}
	return id, sendingIP, nil
}
