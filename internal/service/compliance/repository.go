package compliance

import (
	"context"
	"time"

	"github.com/ignite/mailcore/internal/domain"
)

// AnonymizedEmail and Redacted replace personal data on soft deletion.
const (
	AnonymizedEmail = "anonymized@deleted.local"
	Redacted        = "[DELETED]"
)

// Repository defines the data access contract for GDPR requests and
// reporting.
type Repository interface {
	SendLogsFor(ctx context.Context, email string) ([]domain.SendLog, error)
	ConsentsFor(ctx context.Context, email string) ([]domain.ConsentRecord, error)
	UnsubscribesFor(ctx context.Context, email string) ([]domain.Unsubscribe, error)
	SuppressionsFor(ctx context.Context, email string) ([]domain.Suppression, error)

	// DeleteUserData removes send logs, consent and unsubscribe records for
	// email in one transaction.
	DeleteUserData(ctx context.Context, email string) (DeletionCounts, error)

	// AnonymizeUserData overwrites addresses, subject and preview on every
	// send log to or from email. Returns the number of rows changed.
	AnonymizeUserData(ctx context.Context, email string) (int, error)

	// ReportMetrics aggregates activity for a domain since the given time.
	ReportMetrics(ctx context.Context, domainID string, since time.Time) (ReportMetrics, error)

	// BlockedChecks returns send checks for the domain that were blocked.
	BlockedChecks(ctx context.Context, domainID string, since time.Time, limit int) ([]domain.ComplianceLog, error)
}

// DeletionCounts is the number of rows removed by a hard delete.
type DeletionCounts struct {
	SendLogs       int `json:"send_logs"`
	ConsentRecords int `json:"consent_records"`
	Unsubscribes   int `json:"unsubscribes"`
}

// ReportMetrics is the activity summary of a compliance report.
type ReportMetrics struct {
	TotalSent        int `json:"total_sent"`
	Bounces          int `json:"bounces"`
	SpamComplaints   int `json:"spam_complaints"`
	Unsubscribes     int `json:"unsubscribes"`
	ComplianceChecks int `json:"compliance_checks"`
}
