package sending

import (
	"context"

	"github.com/ignite/mailcore/internal/domain"
)

// Repository persists send logs.
type Repository interface {
	// Create inserts a send log. The message ID is unique.
	Create(ctx context.Context, l *domain.SendLog) error

	// UpdateStatus applies a forward-only transition to the send log with
	// messageID. It reports false when the transition was not allowed or no
	// row matched.
	UpdateStatus(ctx context.Context, messageID string, u domain.StatusUpdate) (bool, error)
}
