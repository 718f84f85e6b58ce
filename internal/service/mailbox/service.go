package mailbox

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ignite/mailcore/internal/domain"
)

var localPartRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._%+-]{0,63}$`)

const minPasswordLength = 8

// Domains looks up the domain a mailbox belongs to.
type Domains interface {
	Get(ctx context.Context, id string) (*domain.Domain, error)
}

// WarmupStarter starts a warmup schedule for a new mailbox.
type WarmupStarter interface {
	StartWarmup(ctx context.Context, mailboxID string, targetDays int) (*domain.WarmupSchedule, error)
}

// Options holds creation defaults.
type Options struct {
	AutoWarmup        bool
	WarmupDays        int
	DefaultQuotaMB    int
	MaxQuotaMB        int
	DefaultDailyLimit int
}

// Service implements mailbox business logic.
type Service struct {
	repo        Repository
	domains     Domains
	provisioner Provisioner
	warmup      WarmupStarter
	opts        Options
	now         func() time.Time
}

// NewService creates a mailbox service. provisioner and warmup may be nil.
func NewService(repo Repository, domains Domains, provisioner Provisioner, warmup WarmupStarter, opts Options) *Service {
	return &Service{
		repo:        repo,
		domains:     domains,
		provisioner: provisioner,
		warmup:      warmup,
		opts:        opts,
		now:         time.Now,
	}
}

// SetWarmup attaches the warmup scheduler after construction.
func (s *Service) SetWarmup(w WarmupStarter) {
	s.warmup = w
}

// CreateRequest is the input to Create.
type CreateRequest struct {
	DomainID       string
	LocalPart      string
	Password       string
	QuotaMB        int
	DailySendLimit int
	CanSend        bool
	CanReceive     bool
}

// Create validates and stores a new mailbox, then provisions its maildir
// and starts warmup when enabled. The follow-up steps only log on failure.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Mailbox, error) {
	local := strings.ToLower(strings.TrimSpace(req.LocalPart))
	if !localPartRe.MatchString(local) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLocalPart, req.LocalPart)
	}
	if len(req.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	d, err := s.domains.Get(ctx, req.DomainID)
	if err != nil {
		return nil, fmt.Errorf("load domain: %w", err)
	}
	if !d.IsActive {
		return nil, ErrDomainInactive
	}

	quota := req.QuotaMB
	if quota == 0 {
		quota = s.opts.DefaultQuotaMB
	}
	if s.opts.MaxQuotaMB > 0 && quota > s.opts.MaxQuotaMB {
		return nil, fmt.Errorf("%w (%d MB)", ErrQuotaTooLarge, s.opts.MaxQuotaMB)
	}
	limit := req.DailySendLimit
	if limit == 0 {
		limit = s.opts.DefaultDailyLimit
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	m := &domain.Mailbox{
		DomainID:         d.ID,
		LocalPart:        local,
		Email:            local + "@" + strings.ToLower(d.Name),
		PasswordHash:     string(hash),
		QuotaMB:          quota,
		IsActive:         true,
		CanSend:          req.CanSend,
		CanReceive:       req.CanReceive,
		DailySendLimit:   limit,
		DailySendResetAt: &now,
		CreatedAt:        now,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	log.Printf("[Mailbox] created %s", m.ID)

	if s.provisioner != nil {
		if path, err := s.provisioner.Provision(m.Email); err != nil {
			log.Printf("[Mailbox] failed to provision maildir for %s: %v", m.ID, err)
		} else {
			log.Printf("[Mailbox] maildir ready at %s", path)
		}
	}

	if s.opts.AutoWarmup && m.CanSend && s.warmup != nil {
		if _, err := s.warmup.StartWarmup(ctx, m.ID, s.opts.WarmupDays); err != nil {
			log.Printf("[Mailbox] failed to start warmup for %s: %v", m.ID, err)
		}
	}
	return m, nil
}

// Get returns a mailbox by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Mailbox, error) {
	return s.repo.Get(ctx, id)
}

// GetByEmail returns a mailbox by its address.
func (s *Service) GetByEmail(ctx context.Context, email string) (*domain.Mailbox, error) {
	return s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// List returns the mailboxes of a domain, or all when domainID is empty.
func (s *Service) List(ctx context.Context, domainID string) ([]domain.Mailbox, error) {
	return s.repo.List(ctx, domainID)
}

// SetFlags toggles the active and can-send flags. Reactivating a mailbox
// re-provisions its maildir.
func (s *Service) SetFlags(ctx context.Context, id string, isActive, canSend bool) error {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SetFlags(ctx, id, isActive, canSend); err != nil {
		return err
	}
	if isActive && !m.IsActive && s.provisioner != nil {
		if _, err := s.provisioner.Provision(m.Email); err != nil {
			log.Printf("[Mailbox] failed to provision maildir for %s: %v", m.ID, err)
		}
	}
	return nil
}

// CanSendEmail reports whether the mailbox is active, allowed to send and
// under today's limit. It does not change the stored counter.
func (s *Service) CanSendEmail(m *domain.Mailbox) bool {
	cp := *m
	return cp.CanSendEmail(s.now())
}

// ReserveSend takes one slot of today's limit. Returns ErrLimitReached when
// none is left.
func (s *Service) ReserveSend(ctx context.Context, id string) error {
	ok, err := s.repo.ReserveSend(ctx, id, s.now())
	if err != nil {
		return fmt.Errorf("reserve send slot: %w", err)
	}
	if !ok {
		return ErrLimitReached
	}
	return nil
}

// ReleaseSend returns a slot taken by ReserveSend.
func (s *Service) ReleaseSend(ctx context.Context, id string) error {
	return s.repo.ReleaseSend(ctx, id)
}
