package unsubscribe

import (
	"context"
	"time"

	"github.com/ignite/mailcore/internal/domain"
)

// Repository defines the data access contract for unsubscribe records.
type Repository interface {
	// FirstOrCreate returns the record matching (email, domainID, listType),
	// inserting u if none exists.
	FirstOrCreate(ctx context.Context, u *domain.Unsubscribe) (*domain.Unsubscribe, error)

	// Create inserts a new record.
	Create(ctx context.Context, u *domain.Unsubscribe) error

	// GetByToken returns ErrNotFound if the token is unknown.
	GetByToken(ctx context.Context, token string) (*domain.Unsubscribe, error)

	// MarkUnsubscribed confirms a record.
	MarkUnsubscribed(ctx context.Context, id, reason, ip, userAgent string, at time.Time) error

	// IsUnsubscribed reports whether a confirmed record matches. An empty
	// domainID matches any domain. A listType other than "all" also matches
	// records of type "all".
	IsUnsubscribed(ctx context.Context, email, domainID string, listType domain.ListType) (bool, error)
}
