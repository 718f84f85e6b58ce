package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/service/mailbox"
)

// MailboxRepo implements mailbox.Repository against PostgreSQL.
type MailboxRepo struct{ db *sql.DB }

// NewMailboxRepo creates a Postgres-backed mailbox repository.
func NewMailboxRepo(db *sql.DB) *MailboxRepo { return &MailboxRepo{db: db} }

const mailboxColumns = `id, domain_id, local_part, email, password, quota_mb, used_mb, is_active, can_send,
	can_receive, daily_send_limit, daily_send_count, daily_send_reset_at, created_at`

func scanMailbox(row rowScanner) (*domain.Mailbox, error) {
	var m domain.Mailbox
	var reset sql.NullTime
	if err := row.Scan(&m.ID, &m.DomainID, &m.LocalPart, &m.Email, &m.PasswordHash, &m.QuotaMB, &m.UsedMB,
		&m.IsActive, &m.CanSend, &m.CanReceive, &m.DailySendLimit, &m.DailySendCount, &reset, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.DailySendResetAt = timePtr(reset)
	return &m, nil
}

func (r *MailboxRepo) Create(ctx context.Context, m *domain.Mailbox) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO mailboxes (id, domain_id, local_part, email, password, quota_mb, used_mb, is_active,
			can_send, can_receive, daily_send_limit, daily_send_count, daily_send_reset_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING created_at
	`, m.ID, m.DomainID, m.LocalPart, m.Email, m.PasswordHash, m.QuotaMB, m.UsedMB, m.IsActive,
		m.CanSend, m.CanReceive, m.DailySendLimit, m.DailySendCount, nullTime(m.DailySendResetAt)).Scan(&m.CreatedAt)
	if isUniqueViolation(err) {
		return mailbox.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create mailbox: %w", err)
	}
	return nil
}

func (r *MailboxRepo) getBy(ctx context.Context, column, value string) (*domain.Mailbox, error) {
	m, err := scanMailbox(r.db.QueryRowContext(ctx,
		`SELECT `+mailboxColumns+` FROM mailboxes WHERE `+column+` = $1`, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, mailbox.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get mailbox: %w", err)
	}
	return m, nil
}

func (r *MailboxRepo) Get(ctx context.Context, id string) (*domain.Mailbox, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, mailbox.ErrNotFound
	}
	return r.getBy(ctx, "id", id)
}

func (r *MailboxRepo) GetByEmail(ctx context.Context, email string) (*domain.Mailbox, error) {
	return r.getBy(ctx, "email", email)
}

func (r *MailboxRepo) List(ctx context.Context, domainID string) ([]domain.Mailbox, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+mailboxColumns+` FROM mailboxes
		WHERE ($1 = '' OR domain_id::text = $1)
		ORDER BY email
	`, domainID)
	if err != nil {
		return nil, fmt.Errorf("list mailboxes: %w", err)
	}
	defer rows.Close()

	var out []domain.Mailbox
	for rows.Next() {
		m, err := scanMailbox(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mailbox: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *MailboxRepo) SetFlags(ctx context.Context, id string, isActive, canSend bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE mailboxes SET is_active = $2, can_send = $3, updated_at = NOW() WHERE id = $1`,
		id, isActive, canSend)
	if err != nil {
		return fmt.Errorf("set mailbox flags: %w", err)
	}
	if rowsAffected(res) == 0 {
		return mailbox.ErrNotFound
	}
	return nil
}

func (r *MailboxRepo) ReserveSend(ctx context.Context, id string, now time.Time) (bool, error) {
	y, m, d := now.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	res, err := r.db.ExecContext(ctx, `
		UPDATE mailboxes
		SET daily_send_count = CASE
		        WHEN daily_send_reset_at IS NULL OR daily_send_reset_at < $2 THEN 1
		        ELSE daily_send_count + 1
		    END,
		    daily_send_reset_at = CASE
		        WHEN daily_send_reset_at IS NULL OR daily_send_reset_at < $2 THEN $3
		        ELSE daily_send_reset_at
		    END,
		    updated_at = NOW()
		WHERE id = $1
		  AND is_active AND can_send AND daily_send_limit > 0
		  AND (daily_send_reset_at IS NULL OR daily_send_reset_at < $2 OR daily_send_count < daily_send_limit)
	`, id, dayStart, now)
	if err != nil {
		return false, fmt.Errorf("reserve send slot: %w", err)
	}
	return rowsAffected(res) > 0, nil
}

func (r *MailboxRepo) ReleaseSend(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE mailboxes SET daily_send_count = GREATEST(daily_send_count - 1, 0), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("release send slot: %w", err)
	}
	return nil
}
