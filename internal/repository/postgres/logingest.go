package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/service/logingest"
)

// LogIngestRepo implements logingest.Repository against PostgreSQL.
type LogIngestRepo struct{ db *sql.DB }

// NewLogIngestRepo creates a Postgres-backed log ingestion repository.
func NewLogIngestRepo(db *sql.DB) *LogIngestRepo { return &LogIngestRepo{db: db} }

func (r *LogIngestRepo) LinkQueueID(ctx context.Context, queueID, messageID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE send_logs SET queue_id = $1, updated_at = NOW() WHERE message_id = $2`,
		queueID, messageID)
	if err != nil {
		return false, fmt.Errorf("link queue id: %w", err)
	}
	return rowsAffected(res) > 0, nil
}

func (r *LogIngestRepo) EnsureSendLog(ctx context.Context, queueID, from, sendingIP string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO send_logs (id, message_id, queue_id, from_email, status, attempts, sending_ip, created_at, updated_at)
		SELECT $1, $2, $2, $3, 'sent', 1, $4, $5, $5
		WHERE NOT EXISTS (SELECT 1 FROM send_logs WHERE queue_id = $2)
		ON CONFLICT (message_id) DO NOTHING
	`, uuid.New().String(), queueID, from, nullString(sendingIP), at)
	if err != nil {
		return fmt.Errorf("ensure send log: %w", err)
	}
	return nil
}

func (r *LogIngestRepo) ApplyDelivery(ctx context.Context, d logingest.Delivery) (*domain.SendLog, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin delivery: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO delivery_events (line_hash, event, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (line_hash) DO NOTHING
	`, d.Hash, string(d.Update.Status))
	if err != nil {
		return nil, false, fmt.Errorf("record delivery event: %w", err)
	}
	if rowsAffected(res) == 0 {
		return nil, false, nil
	}

	args := statusArgs(d.QueueID, d.Update, d.Retry)
	sl, err := scanSendLog(tx.QueryRowContext(ctx,
		statusUpdateSQL+`id = (SELECT id FROM send_logs WHERE queue_id = $1 ORDER BY created_at DESC LIMIT 1)`+
			statusGuardSQL+`
		RETURNING `+sendLogColumns,
		args...))
	if errors.Is(err, sql.ErrNoRows) {
		// Unknown queue ID or a stale transition. The event stays recorded
		// so a replay is skipped.
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("commit delivery event: %w", err)
		}
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("apply delivery: %w", err)
	}

	if sl.ToEmail == "" && d.To != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE send_logs SET to_email = $2 WHERE id = $1`, sl.ID, d.To); err != nil {
			return nil, false, fmt.Errorf("fill recipient: %w", err)
		}
		sl.ToEmail = d.To
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE delivery_events SET send_log_id = $2 WHERE line_hash = $1`, d.Hash, sl.ID); err != nil {
		return nil, false, fmt.Errorf("link delivery event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit delivery: %w", err)
	}
	return sl, true, nil
}

func (r *LogIngestRepo) CreateBounce(ctx context.Context, b *domain.Bounce) (bool, error) {
	return insertBounce(ctx, r.db, b)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertBounce(ctx context.Context, db execer, b *domain.Bounce) (bool, error) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO bounces (id, send_log_id, recipient_email, bounce_type, bounce_category, smtp_code,
			smtp_response, diagnostic_code, raw_message, is_suppressed, bounced_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (send_log_id) DO NOTHING
	`, b.ID, b.SendLogID, b.RecipientEmail, b.BounceType, b.BounceCategory, nullInt(b.SMTPCode),
		nullString(b.SMTPResponse), nullString(b.DiagnosticCode), nullString(b.RawMessage), b.IsSuppressed, b.BouncedAt)
	if err != nil {
		return false, fmt.Errorf("create bounce: %w", err)
	}
	return rowsAffected(res) > 0, nil
}

// OffsetStore implements logingest.OffsetStore in the log_offsets table.
type OffsetStore struct{ db *sql.DB }

// NewOffsetStore creates a Postgres-backed offset store.
func NewOffsetStore(db *sql.DB) *OffsetStore { return &OffsetStore{db: db} }

func (s *OffsetStore) Load(ctx context.Context, path string) (int64, error) {
	var off int64
	err := s.db.QueryRowContext(ctx, `SELECT "offset" FROM log_offsets WHERE path = $1`, path).Scan(&off)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load offset: %w", err)
	}
	return off, nil
}

func (s *OffsetStore) Save(ctx context.Context, path string, offset int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO log_offsets (path, "offset", updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (path) DO UPDATE SET "offset" = EXCLUDED."offset", updated_at = NOW()
	`, path, offset)
	if err != nil {
		return fmt.Errorf("save offset: %w", err)
	}
	return nil
}
