package reputation

import (
	"context"
	"time"

	"github.com/ignite/mailcore/internal/domain"
)

// Delta is a set of counter increments applied in one statement.
type Delta struct {
	Successful int
	Failed     int
	Spam       int
}

// Repository defines the data access contract for IP reputation records.
type Repository interface {
	// Get returns the record for ip. Returns ErrNotFound if absent.
	Get(ctx context.Context, ip string) (*domain.IPReputation, error)

	// Increment upserts the record for ip, adds d to its counters and
	// returns the updated row.
	Increment(ctx context.Context, ip string, d Delta) (*domain.IPReputation, error)

	// SaveScore stores a recomputed score and bounce rate.
	SaveScore(ctx context.Context, ip string, score int, bounceRate float64) error

	// BounceRate returns bounced/total*100 over send logs from ip since the
	// given time. Zero when there are no sends.
	BounceRate(ctx context.Context, ip string, since time.Time) (float64, error)

	// SetBlacklist records the outcome of a DNSBL check.
	SetBlacklist(ctx context.Context, ip string, listed bool, sources []string, checkedAt time.Time) error

	// List returns every tracked IP ordered by score ascending.
	List(ctx context.Context) ([]domain.IPReputation, error)
}
