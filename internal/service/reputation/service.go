package reputation

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/ignite/mailcore/internal/dnsx"
	"github.com/ignite/mailcore/internal/domain"
)

// BounceWindow is how far back send logs are scanned for the bounce rate.
const BounceWindow = 7 * 24 * time.Hour

// StatusUnknown is reported for IPs with no record.
const StatusUnknown = "unknown"

// Blacklister checks an IP against DNSBL zones.
type Blacklister interface {
	Check(ctx context.Context, ip string) ([]dnsx.Listing, error)
}

// Service records delivery outcomes and answers send-permission queries.
type Service struct {
	repo  Repository
	bl    Blacklister
	nowFn func() time.Time
}

// NewService creates a reputation service. bl may be nil when blacklist
// checks are disabled.
func NewService(repo Repository, bl Blacklister) *Service {
	return &Service{repo: repo, bl: bl, nowFn: time.Now}
}

// RecordSuccess counts a successful handoff from ip.
func (s *Service) RecordSuccess(ctx context.Context, ip string) error {
	return s.apply(ctx, ip, Delta{Successful: 1}, false)
}

// RecordFailure counts a failed send from ip.
func (s *Service) RecordFailure(ctx context.Context, ip string) error {
	return s.apply(ctx, ip, Delta{Failed: 1}, false)
}

// RecordSpamReport counts a complaint against mail sent from ip.
func (s *Service) RecordSpamReport(ctx context.Context, ip string) error {
	return s.apply(ctx, ip, Delta{Spam: 1}, false)
}

// RecordBounce counts a bounce as a failure and refreshes the bounce rate.
func (s *Service) RecordBounce(ctx context.Context, ip string) error {
	return s.apply(ctx, ip, Delta{Failed: 1}, true)
}

func (s *Service) apply(ctx context.Context, ip string, d Delta, refreshBounceRate bool) error {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return ErrIPRequired
	}
	rep, err := s.repo.Increment(ctx, ip, d)
	if err != nil {
		return err
	}
	if refreshBounceRate {
		rate, err := s.repo.BounceRate(ctx, ip, s.nowFn().Add(-BounceWindow))
		if err != nil {
			return err
		}
		rep.BounceRate = rate
	}
	prev := rep.ReputationScore
	rep.Recompute()
	if rep.ReputationScore == prev && !refreshBounceRate {
		return nil
	}
	if rep.ReputationScore < domain.MinSendScore && prev >= domain.MinSendScore {
		log.Printf("[Reputation] %s dropped below send threshold (score %d)", ip, rep.ReputationScore)
	}
	return s.repo.SaveScore(ctx, ip, rep.ReputationScore, rep.BounceRate)
}

// Get returns the record for ip.
func (s *Service) Get(ctx context.Context, ip string) (*domain.IPReputation, error) {
	return s.repo.Get(ctx, strings.TrimSpace(ip))
}

// List returns every tracked IP.
func (s *Service) List(ctx context.Context) ([]domain.IPReputation, error) {
	return s.repo.List(ctx)
}

// CanSend reports whether ip may send. Unknown IPs are allowed.
func (s *Service) CanSend(ctx context.Context, ip string) (bool, error) {
	rep, err := s.repo.Get(ctx, strings.TrimSpace(ip))
	if errors.Is(err, ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return rep.CanSend(), nil
}

// Status returns the display bucket for ip, or "unknown".
func (s *Service) Status(ctx context.Context, ip string) (string, error) {
	rep, err := s.repo.Get(ctx, strings.TrimSpace(ip))
	if errors.Is(err, ErrNotFound) {
		return StatusUnknown, nil
	}
	if err != nil {
		return "", err
	}
	return rep.Status(), nil
}

// CheckBlacklists queries the DNSBL zones for ip at most once per day
// unless force is set. It returns the listing zones.
func (s *Service) CheckBlacklists(ctx context.Context, ip string, force bool) ([]string, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return nil, ErrIPRequired
	}
	if s.bl == nil {
		return nil, nil
	}
	now := s.nowFn()

	rep, err := s.repo.Get(ctx, ip)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return nil, err
	case !force && rep.LastCheckedAt != nil && domain.SameDay(*rep.LastCheckedAt, now):
		return rep.BlacklistSources, nil
	}

	results, err := s.bl.Check(ctx, ip)
	if err != nil {
		return nil, err
	}
	listed := dnsx.Listed(results)
	if _, err := s.repo.Increment(ctx, ip, Delta{}); err != nil {
		return nil, err
	}
	if err := s.repo.SetBlacklist(ctx, ip, len(listed) > 0, listed, now); err != nil {
		return nil, err
	}
	if len(listed) > 0 {
		log.Printf("[Reputation] %s listed on %s", ip, strings.Join(listed, ", "))
	}
	return listed, nil
}
