package logingest

import (
	"context"
	"time"

	"github.com/ignite/mailcore/internal/domain"
)

// Delivery is a status change read from one delivery line.
type Delivery struct {
	// Hash is the idempotency key of the raw line.
	Hash    string
	QueueID string
	To      string
	Update  domain.StatusUpdate
	// Retry increments attempts.
	Retry bool
}

// Repository applies log information to send logs.
type Repository interface {
	// LinkQueueID records the MTA queue ID on the send log with messageID.
	// Returns false when no send log has that message ID.
	LinkQueueID(ctx context.Context, queueID, messageID string) (bool, error)

	// EnsureSendLog creates a stub send log for queueID with the given sender
	// and outbound IP unless one is already linked to that queue ID.
	EnsureSendLog(ctx context.Context, queueID, from, sendingIP string, at time.Time) error

	// ApplyDelivery records the delivery event and applies its transition in
	// one transaction. It returns the updated send log and true when the
	// event was new and the transition allowed. A replayed event, an
	// unknown queue ID or a disallowed transition yields false.
	ApplyDelivery(ctx context.Context, d Delivery) (*domain.SendLog, bool, error)

	// CreateBounce inserts a bounce unless the send log already has one.
	CreateBounce(ctx context.Context, b *domain.Bounce) (bool, error)
}

// OffsetStore persists how far a log file has been read.
type OffsetStore interface {
	Load(ctx context.Context, path string) (int64, error)
	Save(ctx context.Context, path string, offset int64) error
}
