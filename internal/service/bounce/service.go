package bounce

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ignite/mailcore/internal/domain"
)

// ReconcileBatch bounds how many send logs one reconciliation pass repairs.
const ReconcileBatch = 500

// Suppressions adds suppression entries.
type Suppressions interface {
	Suppress(ctx context.Context, email string, reason domain.SuppressionReason, source domain.SuppressionSource, notes string, expiresAt *time.Time) error
}

// Stats summarizes a reconciliation pass.
type Stats struct {
	Reconciled int `json:"reconciled"`
	Suppressed int `json:"suppressed"`
}

// Service reconciles bounces and applies auto-suppression.
type Service struct {
	repo         Repository
	suppressions Suppressions
	threshold    int
	now          func() time.Time
}

// NewService creates a bounce service using domain.HardBounceThreshold.
func NewService(repo Repository, suppressions Suppressions) *Service {
	return &Service{
		repo:         repo,
		suppressions: suppressions,
		threshold:    domain.HardBounceThreshold,
		now:          time.Now,
	}
}

// CheckRecipient suppresses email when it has reached the hard bounce
// threshold. It reports whether the recipient was suppressed.
func (s *Service) CheckRecipient(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false, nil
	}
	n, err := s.repo.HardBounceCount(ctx, email)
	if err != nil {
		return false, fmt.Errorf("count hard bounces: %w", err)
	}
	if n < s.threshold {
		return false, nil
	}
	return true, s.suppress(ctx, email, n)
}

func (s *Service) suppress(ctx context.Context, email string, n int) error {
	notes := fmt.Sprintf("Auto-suppressed after %d hard bounces", n)
	if err := s.suppressions.Suppress(ctx, email, domain.ReasonHardBounce, domain.SourceBounceSweep, notes, nil); err != nil {
		return fmt.Errorf("suppress %s: %w", email, err)
	}
	if _, err := s.repo.MarkSuppressed(ctx, email); err != nil {
		return fmt.Errorf("mark bounces suppressed: %w", err)
	}
	log.Printf("[Bounce] %s", notes)
	return nil
}

// CheckBounces creates missing bounce rows for bounced send logs and then
// sweeps recipients over the hard bounce threshold.
func (s *Service) CheckBounces(ctx context.Context) (Stats, error) {
	var stats Stats

	logs, err := s.repo.BouncedWithoutRecord(ctx, ReconcileBatch)
	if err != nil {
		return stats, fmt.Errorf("list unreconciled bounces: %w", err)
	}
	for _, l := range logs {
		code := l.SMTPCode
		if code == 0 {
			code = 550
		}
		at := s.now()
		if l.BouncedAt != nil {
			at = *l.BouncedAt
		}
		created, err := s.repo.CreateBounce(ctx, domain.NewBounce(l.ID, l.ToEmail, code, l.SMTPResponse, "", at))
		if err != nil {
			return stats, fmt.Errorf("create bounce for %s: %w", l.ID, err)
		}
		if created {
			stats.Reconciled++
		}
	}

	recipients, err := s.repo.RecipientsOverThreshold(ctx, s.threshold)
	if err != nil {
		return stats, fmt.Errorf("list recipients over threshold: %w", err)
	}
	for _, email := range recipients {
		if err := s.suppress(ctx, email, s.threshold); err != nil {
			return stats, err
		}
		stats.Suppressed++
	}

	if stats.Reconciled > 0 || stats.Suppressed > 0 {
		log.Printf("[Bounce] Reconciled %d bounces, suppressed %d recipients", stats.Reconciled, stats.Suppressed)
	}
	return stats, nil
}

// List returns recent bounces, optionally for one recipient.
func (s *Service) List(ctx context.Context, email string, limit int) ([]domain.Bounce, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return s.repo.List(ctx, strings.ToLower(strings.TrimSpace(email)), limit)
}
