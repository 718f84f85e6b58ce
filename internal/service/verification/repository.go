package verification

import (
	"context"
	"time"

	"github.com/ignite/mailcore/internal/domain"
)

// Repository defines the data access contract for sending domains.
type Repository interface {
	// Create inserts a domain. Returns ErrDuplicate if the name exists.
	Create(ctx context.Context, d *domain.Domain) error

	// Get returns ErrNotFound if the domain does not exist.
	Get(ctx context.Context, id string) (*domain.Domain, error)
	GetByName(ctx context.Context, name string) (*domain.Domain, error)

	// List returns domains, optionally only active ones.
	List(ctx context.Context, activeOnly bool) ([]domain.Domain, error)

	// SaveVerification stores the per-record flags, the report snapshot and
	// the verification timestamps.
	SaveVerification(ctx context.Context, id string, report domain.VerificationReport, verifiedAt *time.Time) error

	// SaveKeys stores the DKIM private key and the DNS-formatted public key.
	SaveKeys(ctx context.Context, id, privateKey, publicKeyDNS string) error
}
