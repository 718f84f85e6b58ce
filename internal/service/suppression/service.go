package suppression

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/mailcore/internal/domain"
)

// Service implements suppression business logic. It is safe for concurrent use.
type Service struct {
	repo Repository
}

// NewService creates a suppression service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Normalize lowercases and trims an address.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsSuppressed checks whether an email address is blocked from all sends.
func (s *Service) IsSuppressed(ctx context.Context, email string) (bool, error) {
	return s.repo.IsSuppressed(ctx, Normalize(email))
}

// Suppress adds an email to the suppression list. A nil expiresAt makes the
// entry permanent.
func (s *Service) Suppress(ctx context.Context, email string, reason domain.SuppressionReason, source domain.SuppressionSource, notes string, expiresAt *time.Time) error {
	email = Normalize(email)
	if email == "" {
		return ErrEmailRequired
	}
	if !reason.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidReason, reason)
	}
	return s.repo.Suppress(ctx, &domain.Suppression{
		Email:     email,
		Reason:    reason,
		Source:    source,
		Notes:     notes,
		ExpiresAt: expiresAt,
	})
}

// Get returns the entry for an address.
func (s *Service) Get(ctx context.Context, email string) (*domain.Suppression, error) {
	return s.repo.Get(ctx, Normalize(email))
}

// Remove deletes a suppression entry.
func (s *Service) Remove(ctx context.Context, email string) error {
	email = Normalize(email)
	if email == "" {
		return ErrEmailRequired
	}
	return s.repo.Remove(ctx, email)
}

// List returns suppression entries matching the given filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]domain.Suppression, int, error) {
	return s.repo.List(ctx, filter)
}

// Stats returns aggregate counts grouped by reason and source.
type Stats struct {
	Total    int            `json:"total"`
	ByReason map[string]int `json:"by_reason"`
	BySource map[string]int `json:"by_source"`
}

// GetStats computes suppression statistics.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	entries, total, err := s.repo.List(ctx, ListFilter{Limit: 0})
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Total:    total,
		ByReason: make(map[string]int),
		BySource: make(map[string]int),
	}
	for _, e := range entries {
		stats.ByReason[string(e.Reason)]++
		stats.BySource[string(e.Source)]++
	}
	return stats, nil
}
