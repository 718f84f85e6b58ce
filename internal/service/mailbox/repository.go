package mailbox

import (
	"context"
	"time"

	"github.com/ignite/mailcore/internal/domain"
)

// Repository defines the data access contract for mailboxes.
type Repository interface {
	// Create inserts a mailbox. Returns ErrDuplicate if the email exists.
	Create(ctx context.Context, m *domain.Mailbox) error

	Get(ctx context.Context, id string) (*domain.Mailbox, error)

	// GetByEmail returns the mailbox for a full address. Returns ErrNotFound
	// if absent.
	GetByEmail(ctx context.Context, email string) (*domain.Mailbox, error)

	List(ctx context.Context, domainID string) ([]domain.Mailbox, error)

	// SetFlags updates the active and can-send flags.
	SetFlags(ctx context.Context, id string, isActive, canSend bool) error

	// ReserveSend resets the counter when the last reset was before today
	// and increments it if still under the limit, in one statement. It
	// reports whether a slot was taken.
	ReserveSend(ctx context.Context, id string, now time.Time) (bool, error)

	// ReleaseSend gives back a reserved slot, never going below zero.
	ReleaseSend(ctx context.Context, id string) error
}
