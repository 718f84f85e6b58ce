package suppression

import (
	"context"

	"github.com/ignite/mailcore/internal/domain"
)

// Repository defines the data access contract for the suppression list.
type Repository interface {
	// IsSuppressed returns true if the email has an entry that has not expired.
	IsSuppressed(ctx context.Context, email string) (bool, error)

	// Suppress adds an email to the list. An existing entry is refreshed
	// with the new reason and expiry.
	Suppress(ctx context.Context, s *domain.Suppression) error

	// Get returns the entry for email. Returns ErrNotFound if absent.
	Get(ctx context.Context, email string) (*domain.Suppression, error)

	// Remove deletes a suppression entry. Returns ErrNotFound if it doesn't exist.
	Remove(ctx context.Context, email string) error

	// List returns suppression entries matching the filter.
	List(ctx context.Context, filter ListFilter) ([]domain.Suppression, int, error)
}

// ListFilter controls pagination and filtering for suppression lists.
type ListFilter struct {
	Reason string
	Source string
	Search string
	Limit  int
	Offset int
}
