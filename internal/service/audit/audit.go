// Package audit records the compliance audit trail. Every send decision,
// unsubscribe, consent change and GDPR request writes one entry.
package audit

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/ignite/mailcore/internal/domain"
)

// Repository persists audit entries.
type Repository interface {
	Insert(ctx context.Context, entry *domain.ComplianceLog) error
	ListByEmail(ctx context.Context, email string, limit int) ([]domain.ComplianceLog, error)
}

// Logger writes audit entries. A failed write is logged and never fails
// the caller's operation.
type Logger struct {
	repo Repository
	now  func() time.Time
}

// NewLogger creates an audit logger.
func NewLogger(repo Repository) *Logger {
	return &Logger{repo: repo, now: time.Now}
}

// Entry describes one audited action.
type Entry struct {
	Action      string
	Regulation  string
	Email       string
	Description string
	Metadata    map[string]any
}

// Record writes an entry tagged with the caller identity.
func (l *Logger) Record(ctx context.Context, rc domain.RequestContext, e Entry) {
	entry := &domain.ComplianceLog{
		Action:      e.Action,
		Regulation:  e.Regulation,
		Email:       e.Email,
		Description: e.Description,
		IPAddress:   rc.IP,
		UserAgent:   rc.UserAgent,
		Actor:       rc.Actor,
		CreatedAt:   l.now(),
	}
	if len(e.Metadata) > 0 {
		if b, err := json.Marshal(e.Metadata); err == nil {
			entry.Metadata = b
		}
	}
	if err := l.repo.Insert(ctx, entry); err != nil {
		log.Printf("[Audit] failed to record %s: %v", e.Action, err)
	}
}

// History returns the most recent entries for an address.
func (l *Logger) History(ctx context.Context, email string, limit int) ([]domain.ComplianceLog, error) {
	if limit <= 0 {
		limit = 100
	}
	return l.repo.ListByEmail(ctx, email, limit)
}
