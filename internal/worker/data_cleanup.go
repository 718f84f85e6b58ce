package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
)

// =============================================================================
// DATA CLEANUP WORKER: removes send history past the retention window
// =============================================================================
// Retention applies to:
//   - Send logs in a terminal state (delivered, bounced, failed, rejected),
//     except those carrying a suppressed bounce
//   - Unsuppressed bounces
//   - Compliance log entries
//   - Delivery events used for log replay detection
//
// Deletes run in batches of cleanupBatchSize rows so no statement holds
// long locks on the send tables.

const (
	// DefaultRetentionDays applies when no retention is configured.
	DefaultRetentionDays = 90

	cleanupBatchSize = 10000
)

// CleanupStats is the number of rows removed per table.
type CleanupStats struct {
	SendLogs       int64 `json:"send_logs"`
	Bounces        int64 `json:"bounces"`
	ComplianceLogs int64 `json:"compliance_logs"`
	DeliveryEvents int64 `json:"delivery_events"`
}

// Total returns the number of rows removed across all tables.
func (s CleanupStats) Total() int64 {
	return s.SendLogs + s.Bounces + s.ComplianceLogs + s.DeliveryEvents
}

// CleanupWorker deletes rows older than the retention window.
type CleanupWorker struct {
	db    *sql.DB
	pause time.Duration
	now   func() time.Time
}

// NewCleanupWorker creates a cleanup worker.
func NewCleanupWorker(db *sql.DB) *CleanupWorker {
	return &CleanupWorker{db: db, pause: 100 * time.Millisecond, now: time.Now}
}

// Run removes rows older than days. A non-positive days uses
// DefaultRetentionDays.
func (dc *CleanupWorker) Run(ctx context.Context, days int) (CleanupStats, error) {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	cutoff := dc.now().AddDate(0, 0, -days)
	start := time.Now()
	log.Printf("[DataCleanup] Cleanup cycle starting (retention=%dd, cutoff=%s)", days, cutoff.Format(time.RFC3339))

	var stats CleanupStats
	var err error
	steps := []struct {
		table string
		query string
		dst   *int64
	}{
		{"bounces", `
			DELETE FROM bounces
			WHERE id IN (
				SELECT id FROM bounces
				WHERE is_suppressed = FALSE AND created_at < $2
				LIMIT $1
			)`, &stats.Bounces},
		{"send_logs", `
			DELETE FROM send_logs
			WHERE id IN (
				SELECT l.id FROM send_logs l
				WHERE l.status IN ('delivered', 'bounced', 'failed', 'rejected')
				  AND l.created_at < $2
				  AND NOT EXISTS (SELECT 1 FROM bounces b WHERE b.send_log_id = l.id AND b.is_suppressed)
				LIMIT $1
			)`, &stats.SendLogs},
		{"compliance_logs", `
			DELETE FROM compliance_logs
			WHERE id IN (
				SELECT id FROM compliance_logs
				WHERE created_at < $2
				LIMIT $1
			)`, &stats.ComplianceLogs},
		{"delivery_events", `
			DELETE FROM delivery_events
			WHERE id IN (
				SELECT id FROM delivery_events
				WHERE created_at < $2
				LIMIT $1
			)`, &stats.DeliveryEvents},
	}
	for _, st := range steps {
		n, stepErr := dc.batchDelete(ctx, st.table, st.query, cutoff)
		*st.dst = n
		if n > 0 {
			log.Printf("[DataCleanup] Removed %d rows from %s", n, st.table)
		}
		if stepErr != nil && err == nil {
			err = fmt.Errorf("cleanup %s: %w", st.table, stepErr)
		}
	}

	log.Printf("[DataCleanup] Cleanup cycle completed in %s (%d rows)",
		time.Since(start).Round(time.Millisecond), stats.Total())
	return stats, err
}

// batchDelete runs query with cleanupBatchSize as $1 and cutoff as $2 until
// no rows are affected. A missing table is skipped.
func (dc *CleanupWorker) batchDelete(ctx context.Context, table, query string, cutoff time.Time) (int64, error) {
	var totalDeleted int64

	for {
		if err := ctx.Err(); err != nil {
			return totalDeleted, err
		}

		queryCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		res, err := dc.db.ExecContext(queryCtx, query, cleanupBatchSize, cutoff)
		cancel()

		if err != nil {
			if isTableNotExistsError(err) {
				log.Printf("[DataCleanup] Table %s does not exist, skipping", table)
				return totalDeleted, nil
			}
			return totalDeleted, err
		}

		affected, _ := res.RowsAffected()
		totalDeleted += affected
		if affected < cleanupBatchSize {
			return totalDeleted, nil
		}

		if dc.pause > 0 {
			time.Sleep(dc.pause)
		}
	}
}

// isTableNotExistsError reports an undefined_table error.
func isTableNotExistsError(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "42P01"
}
