package warmup

import (
	"context"

	"github.com/ignite/mailcore/internal/domain"
)

// Repository defines the data access contract for warmup schedules.
type Repository interface {
	// Create inserts a schedule and fills its ID. At most one active schedule
	// may exist per mailbox; a conflict returns ErrAlreadyActive.
	Create(ctx context.Context, w *domain.WarmupSchedule) error

	// Latest returns the most recently started schedule for a mailbox.
	// Returns ErrNotFound if none.
	Latest(ctx context.Context, mailboxID string) (*domain.WarmupSchedule, error)

	// List returns schedules, optionally filtered by status.
	List(ctx context.Context, status domain.WarmupStatus) ([]domain.WarmupSchedule, error)

	// Save persists the progress fields and status of a schedule.
	Save(ctx context.Context, w *domain.WarmupSchedule) error
}
