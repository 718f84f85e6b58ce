package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/service/logingest"
	"github.com/ignite/mailcore/internal/service/mailbox"
	"github.com/ignite/mailcore/internal/service/reputation"
	"github.com/ignite/mailcore/internal/service/settings"
	"github.com/ignite/mailcore/internal/service/suppression"
	"github.com/ignite/mailcore/internal/service/verification"
	"github.com/ignite/mailcore/internal/service/warmup"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db, mock
}

var sendLogCols = []string{"id", "domain_id", "mailbox_id", "message_id", "queue_id", "from_email", "to_email",
	"subject", "body_preview", "status", "smtp_code", "smtp_response", "attempts", "client_ip", "headers",
	"metadata", "error_message", "sent_at", "delivered_at", "bounced_at", "created_at"}

func sendLogRow(id, queueID, to string, status domain.SendStatus, attempts int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(sendLogCols).AddRow(id, "", "", queueID, queueID, "sender@example.com", to,
		"", "", string(status), 550, "user unknown", attempts, "", nil, nil, "", nil, nil, now, now)
}

func TestSuppressionRepo_GetNotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSuppressionRepo(db)

	mock.ExpectQuery("FROM suppression_list WHERE email").
		WithArgs("gone@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "gone@example.com")
	assert.ErrorIs(t, err, suppression.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSuppressionRepo_IsSuppressed(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSuppressionRepo(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("user@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.IsSuppressed(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSuppressionRepo_SuppressUpserts(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSuppressionRepo(db)

	created := time.Now()
	mock.ExpectQuery("ON CONFLICT \\(email\\) DO UPDATE").
		WithArgs(sqlmock.AnyArg(), "user@example.com", domain.ReasonHardBounce, domain.SourceBounceSweep, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("existing-id", created))

	s := &domain.Suppression{Email: "user@example.com", Reason: domain.ReasonHardBounce, Source: domain.SourceBounceSweep}
	require.NoError(t, repo.Suppress(context.Background(), s))
	assert.Equal(t, "existing-id", s.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSuppressionRepo_RemoveMissing(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSuppressionRepo(db)

	mock.ExpectExec("DELETE FROM suppression_list").
		WithArgs("user@example.com").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Remove(context.Background(), "user@example.com"), suppression.ErrNotFound)
}

func TestSuppressionRepo_ListFilters(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSuppressionRepo(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM suppression_list WHERE reason = \\$1 AND email LIKE \\$2").
		WithArgs("hard_bounce", "%example%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("LIMIT \\$3 OFFSET \\$4").
		WithArgs("hard_bounce", "%example%", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "reason", "source", "notes", "expires_at", "created_at"}).
			AddRow("s1", "a@example.com", "hard_bounce", "bounce_sweep", "", nil, time.Now()))

	out, total, err := repo.List(context.Background(), suppression.ListFilter{Reason: "hard_bounce", Search: "EXAMPLE", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, out, 1)
	assert.Equal(t, "a@example.com", out[0].Email)
	assert.Nil(t, out[0].ExpiresAt)
}

func TestMailboxRepo_CreateDuplicate(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewMailboxRepo(db)

	mock.ExpectQuery("INSERT INTO mailboxes").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &domain.Mailbox{DomainID: "d1", LocalPart: "info", Email: "info@example.com"})
	assert.ErrorIs(t, err, mailbox.ErrDuplicate)
}

func TestMailboxRepo_GetRejectsNonUUID(t *testing.T) {
	db, _ := setupTestDB(t)
	_, err := NewMailboxRepo(db).Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, mailbox.ErrNotFound)
}

func TestMailboxRepo_ReserveSend(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewMailboxRepo(db)
	now := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)
	dayStart := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE mailboxes").
		WithArgs("mb-1", dayStart, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE mailboxes").
		WithArgs("mb-1", dayStart, now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.ReserveSend(context.Background(), "mb-1", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ReserveSend(context.Background(), "mb-1", now)
	require.NoError(t, err)
	assert.False(t, ok, "limit reached should not reserve")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDomainRepo_CreateDuplicate(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectQuery("INSERT INTO domains").
		WillReturnError(&pq.Error{Code: "23505"})

	err := NewDomainRepo(db).Create(context.Background(), &domain.Domain{Name: "example.com"})
	assert.ErrorIs(t, err, verification.ErrDuplicate)
}

func TestSendLogRepo_UpdateStatusGuarded(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSendLogRepo(db)
	at := time.Now()

	mock.ExpectExec("send_status_rank").
		WithArgs("msg-1", "sent", 250, "250 2.0.0 Ok: queued as ABC123", nil, "ABC123", at, 0).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateStatus(context.Background(), "msg-1", domain.StatusUpdate{
		Status: domain.StatusSent, SMTPCode: 250, SMTPResponse: "250 2.0.0 Ok: queued as ABC123",
		QueueID: "ABC123", At: at,
	})
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogIngestRepo_ApplyDelivery(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewLogIngestRepo(db)
	at := time.Now()
	d := logingest.Delivery{
		Hash:    "h1",
		QueueID: "4A1B2C3D4E",
		To:      "user@example.com",
		Update:  domain.StatusUpdate{Status: domain.StatusBounced, SMTPCode: 550, SMTPResponse: "user unknown", At: at},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO delivery_events").
		WithArgs("h1", "bounced").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("RETURNING").
		WithArgs("4A1B2C3D4E", "bounced", 550, "user unknown", nil, nil, at, 0).
		WillReturnRows(sendLogRow("log-1", "4A1B2C3D4E", "", domain.StatusBounced, 1))
	mock.ExpectExec("SET to_email").
		WithArgs("log-1", "user@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE delivery_events SET send_log_id").
		WithArgs("h1", "log-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sl, applied, err := repo.ApplyDelivery(context.Background(), d)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "user@example.com", sl.ToEmail)
	assert.Equal(t, domain.StatusBounced, sl.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogIngestRepo_ApplyDeliveryReplay(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewLogIngestRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO delivery_events").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	sl, applied, err := repo.ApplyDelivery(context.Background(), logingest.Delivery{
		Hash: "h1", QueueID: "Q1", Update: domain.StatusUpdate{Status: domain.StatusDelivered},
	})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Nil(t, sl)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogIngestRepo_ApplyDeliveryUnknownQueue(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewLogIngestRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO delivery_events").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("RETURNING").
		WillReturnRows(sqlmock.NewRows(sendLogCols))
	mock.ExpectCommit()

	_, applied, err := repo.ApplyDelivery(context.Background(), logingest.Delivery{
		Hash: "h2", QueueID: "UNKNOWN", Update: domain.StatusUpdate{Status: domain.StatusDelivered},
	})
	require.NoError(t, err)
	assert.False(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOffsetStore_LoadMissingIsZero(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewOffsetStore(db)

	mock.ExpectQuery("FROM log_offsets").
		WithArgs("/var/log/mail.log").
		WillReturnRows(sqlmock.NewRows([]string{"offset"}))

	off, err := store.Load(context.Background(), "/var/log/mail.log")
	require.NoError(t, err)
	assert.Zero(t, off)
}

func TestReputationRepo_Increment(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewReputationRepo(db)

	cols := []string{"id", "ip_address", "reputation_score", "spam_reports", "successful_sends", "failed_sends",
		"bounce_rate", "is_blacklisted", "blacklist_sources", "last_checked_at", "updated_at"}
	mock.ExpectQuery("INSERT INTO ip_reputation").
		WithArgs(sqlmock.AnyArg(), "203.0.113.7", 1, 0, 0).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("r1", "203.0.113.7", 100, 0, 11, 1, 0.0, false, "{zen.spamhaus.org}", nil, time.Now()))

	rep, err := repo.Increment(context.Background(), "203.0.113.7", reputation.Delta{Successful: 1})
	require.NoError(t, err)
	assert.Equal(t, 11, rep.SuccessfulSends)
	assert.Equal(t, []string{"zen.spamhaus.org"}, rep.BlacklistSources)
}

func TestReputationRepo_BounceRateBySendingIP(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewReputationRepo(db)
	since := time.Now().Add(-reputation.BounceWindow)

	mock.ExpectQuery(`FROM send_logs\s+WHERE sending_ip = \$1`).
		WithArgs("203.0.113.10", since).
		WillReturnRows(sqlmock.NewRows([]string{"total", "bounced"}).AddRow(50, 1))

	rate, err := repo.BounceRate(context.Background(), "203.0.113.10", since)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, rate, 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWarmupRepo_CreateConflict(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectExec("INSERT INTO warmup_schedules").
		WillReturnError(&pq.Error{Code: "23505"})

	w := domain.NewWarmupSchedule("mb-1", 30, time.Now())
	assert.ErrorIs(t, NewWarmupRepo(db).Create(context.Background(), w), warmup.ErrAlreadyActive)
}

func TestSettingsRepo_GetDecodes(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSettingsRepo(db)

	mock.ExpectQuery("FROM system_settings WHERE key").
		WithArgs("retention_days").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "type", "description", "is_public"}).
			AddRow("retention_days", "45", "integer", "", false))
	mock.ExpectQuery("FROM system_settings WHERE key").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	s, err := repo.Get(context.Background(), "retention_days")
	require.NoError(t, err)
	assert.Equal(t, int64(45), s.Value.Int)

	_, err = repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, settings.ErrNotFound)
}
