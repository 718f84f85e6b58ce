package spamfilter

import (
	"context"

	"github.com/ignite/mailcore/internal/domain"
)

// Repository defines the data access contract for complaints.
type Repository interface {
	// InsertComplaint stores a complaint and fills its ID.
	InsertComplaint(ctx context.Context, c *domain.SpamComplaint) error

	// SenderStats returns the complaints filed against mail from sender
	// and the number of send logs from sender.
	SenderStats(ctx context.Context, sender string) (complaints, sent int, err error)

	// FindSendLog resolves a message ID to its send log ID and the client IP
	// that requested the send. Returns ErrSendLogNotFound if absent.
	FindSendLog(ctx context.Context, messageID string) (id, sendingIP string, err error)
}
