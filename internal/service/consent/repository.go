package consent

import (
	"context"
	"time"

	"github.com/ignite/mailcore/internal/domain"
)

// Repository defines the data access contract for consent records.
type Repository interface {
	Create(ctx context.Context, c *domain.ConsentRecord) error

	// ListGranted returns granted records for email. An empty consentType
	// returns every type.
	ListGranted(ctx context.Context, email string, consentType domain.ConsentType) ([]domain.ConsentRecord, error)

	// GetByToken returns ErrNotFound if no record holds the token.
	GetByToken(ctx context.Context, token string) (*domain.ConsentRecord, error)

	// MarkVerified grants the record and clears its token.
	MarkVerified(ctx context.Context, id string, at time.Time) error

	// Revoke ungrants the record and merges metadata.
	Revoke(ctx context.Context, id string, at time.Time, metadata []byte) error
}
