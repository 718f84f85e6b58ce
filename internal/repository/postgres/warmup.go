package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/service/warmup"
)

// WarmupRepo implements warmup.Repository against PostgreSQL.
type WarmupRepo struct{ db *sql.DB }

// NewWarmupRepo creates a Postgres-backed warmup schedule repository.
func NewWarmupRepo(db *sql.DB) *WarmupRepo { return &WarmupRepo{db: db} }

const warmupColumns = `id, mailbox_id, day, target_day, emails_sent_today, emails_target_today,
	status, started_at, completed_at`

func scanWarmup(row rowScanner) (*domain.WarmupSchedule, error) {
	var w domain.WarmupSchedule
	var completed sql.NullTime
	if err := row.Scan(&w.ID, &w.MailboxID, &w.Day, &w.TargetDay, &w.EmailsSentToday,
		&w.EmailsTargetToday, &w.Status, &w.StartedAt, &completed); err != nil {
		return nil, err
	}
	w.CompletedAt = timePtr(completed)
	return &w, nil
}

func (r *WarmupRepo) Create(ctx context.Context, w *domain.WarmupSchedule) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO warmup_schedules (id, mailbox_id, day, target_day, emails_sent_today, emails_target_today,
			status, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`, w.ID, w.MailboxID, w.Day, w.TargetDay, w.EmailsSentToday, w.EmailsTargetToday, w.Status, w.StartedAt)
	if isUniqueViolation(err) {
		return warmup.ErrAlreadyActive
	}
	if err != nil {
		return fmt.Errorf("create warmup schedule: %w", err)
	}
	return nil
}

func (r *WarmupRepo) Latest(ctx context.Context, mailboxID string) (*domain.WarmupSchedule, error) {
	w, err := scanWarmup(r.db.QueryRowContext(ctx, `
		SELECT `+warmupColumns+` FROM warmup_schedules
		WHERE mailbox_id = $1
		ORDER BY started_at DESC
		LIMIT 1
	`, mailboxID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, warmup.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest warmup schedule: %w", err)
	}
	return w, nil
}

func (r *WarmupRepo) List(ctx context.Context, status domain.WarmupStatus) ([]domain.WarmupSchedule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+warmupColumns+` FROM warmup_schedules
		WHERE ($1 = '' OR status = $1)
		ORDER BY started_at
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list warmup schedules: %w", err)
	}
	defer rows.Close()

	var out []domain.WarmupSchedule
	for rows.Next() {
		w, err := scanWarmup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan warmup schedule: %w", err)
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func (r *WarmupRepo) Save(ctx context.Context, w *domain.WarmupSchedule) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE warmup_schedules
		SET day = $2, emails_sent_today = $3, emails_target_today = $4, status = $5,
		    completed_at = $6, updated_at = NOW()
		WHERE id = $1
	`, w.ID, w.Day, w.EmailsSentToday, w.EmailsTargetToday, w.Status, nullTime(w.CompletedAt))
	if isUniqueViolation(err) {
		return warmup.ErrAlreadyActive
	}
	if err != nil {
		return fmt.Errorf("save warmup schedule: %w", err)
	}
	return nil
}
