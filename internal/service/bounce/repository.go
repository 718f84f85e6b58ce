package bounce

import (
	"context"

	"github.com/ignite/mailcore/internal/domain"
)

// Repository defines the data access contract for bounces.
type Repository interface {
	// BouncedWithoutRecord returns bounced send logs that have no bounce row.
	BouncedWithoutRecord(ctx context.Context, limit int) ([]domain.SendLog, error)

	// CreateBounce inserts a bounce unless its send log already has one.
	CreateBounce(ctx context.Context, b *domain.Bounce) (bool, error)

	// HardBounceCount counts unsuppressed hard bounces for email.
	HardBounceCount(ctx context.Context, email string) (int, error)

	// RecipientsOverThreshold lists recipients with at least n unsuppressed
	// hard bounces.
	RecipientsOverThreshold(ctx context.Context, n int) ([]string, error)

	// MarkSuppressed flags every bounce of email as suppressed.
	MarkSuppressed(ctx context.Context, email string) (int, error)

	// List returns recent bounces, optionally for one recipient.
	List(ctx context.Context, email string, limit int) ([]domain.Bounce, error)
}
