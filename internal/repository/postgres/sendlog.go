package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/mailcore/internal/domain"
)

// SendLogRepo implements sending.Repository against PostgreSQL.
type SendLogRepo struct{ db *sql.DB }

// NewSendLogRepo creates a Postgres-backed send log repository.
func NewSendLogRepo(db *sql.DB) *SendLogRepo { return &SendLogRepo{db: db} }

const sendLogColumns = `id, COALESCE(domain_id::text, ''), COALESCE(mailbox_id::text, ''), message_id,
	COALESCE(queue_id, ''), from_email, to_email, subject, COALESCE(body_preview, ''), status,
	COALESCE(smtp_code, 0), COALESCE(smtp_response, ''), attempts, COALESCE(client_ip, ''),
	headers, metadata, COALESCE(error_message, ''), sent_at, delivered_at, bounced_at, created_at`

func scanSendLog(row rowScanner) (*domain.SendLog, error) {
	var l domain.SendLog
	var headers, meta []byte
	var sent, delivered, bounced sql.NullTime
	if err := row.Scan(&l.ID, &l.DomainID, &l.MailboxID, &l.MessageID,
		&l.QueueID, &l.FromEmail, &l.ToEmail, &l.Subject, &l.BodyPreview, &l.Status,
		&l.SMTPCode, &l.SMTPResponse, &l.Attempts, &l.ClientIP,
		&headers, &meta, &l.ErrorMessage, &sent, &delivered, &bounced, &l.CreatedAt); err != nil {
		return nil, err
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &l.Headers); err != nil {
			return nil, fmt.Errorf("decode headers: %w", err)
		}
	}
	l.Metadata = meta
	l.SentAt = timePtr(sent)
	l.DeliveredAt = timePtr(delivered)
	l.BouncedAt = timePtr(bounced)
	return &l, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func querySendLogs(ctx context.Context, q querier, query string, args ...any) ([]domain.SendLog, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query send logs: %w", err)
	}
	defer rows.Close()

	var out []domain.SendLog
	for rows.Next() {
		l, err := scanSendLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan send log: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (r *SendLogRepo) Create(ctx context.Context, l *domain.SendLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.Status == "" {
		l.Status = domain.StatusQueued
	}
	headers, err := marshalHeaders(l.Headers)
	if err != nil {
		return fmt.Errorf("encode headers: %w", err)
	}
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO send_logs (id, domain_id, mailbox_id, message_id, queue_id, from_email, to_email,
			subject, body_preview, status, attempts, client_ip, sending_ip, headers, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
		RETURNING created_at
	`, l.ID, nullString(l.DomainID), nullString(l.MailboxID), l.MessageID, nullString(l.QueueID),
		l.FromEmail, l.ToEmail, l.Subject, nullString(l.BodyPreview), l.Status, l.Attempts,
		nullString(l.ClientIP), nullString(l.SendingIP), nullJSON(headers), nullJSON(l.Metadata)).Scan(&l.CreatedAt)
	if err != nil {
		return fmt.Errorf("create send log: %w", err)
	}
	return nil
}

// statusUpdateSQL applies a forward-only transition. $1 selects the row by
// the column named in the WHERE clause appended by the caller.
const statusUpdateSQL = `
	UPDATE send_logs
	SET status = $2,
	    smtp_code = COALESCE($3, smtp_code),
	    smtp_response = COALESCE($4, smtp_response),
	    error_message = COALESCE($5, error_message),
	    queue_id = COALESCE($6, queue_id),
	    sent_at = CASE WHEN $2 = 'sent' AND sent_at IS NULL THEN $7 ELSE sent_at END,
	    delivered_at = CASE WHEN $2 = 'delivered' THEN $7 ELSE delivered_at END,
	    bounced_at = CASE WHEN $2 = 'bounced' THEN $7 ELSE bounced_at END,
	    attempts = attempts + $8,
	    updated_at = NOW()
	WHERE `

const statusGuardSQL = ` AND (send_status_rank($2) > send_status_rank(status)
	     OR (status = 'deferred' AND $2 = 'deferred'))`

func statusArgs(key string, u domain.StatusUpdate, retry bool) []any {
	inc := 0
	if retry {
		inc = 1
	}
	return []any{key, string(u.Status), nullInt(u.SMTPCode), nullString(u.SMTPResponse),
		nullString(u.ErrorMessage), nullString(u.QueueID), u.At, inc}
}

func (r *SendLogRepo) UpdateStatus(ctx context.Context, messageID string, u domain.StatusUpdate) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		statusUpdateSQL+`message_id = $1`+statusGuardSQL,
		statusArgs(messageID, u, false)...)
	if err != nil {
		return false, fmt.Errorf("update send status: %w", err)
	}
	return rowsAffected(res) > 0, nil
}
