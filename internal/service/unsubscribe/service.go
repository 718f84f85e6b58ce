package unsubscribe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/pkg/randstr"
	"github.com/ignite/mailcore/internal/service/audit"
)

// TokenLength is the length of generated unsubscribe tokens.
const TokenLength = 64

const maxReasonLength = 500

// Suppressor adds an address to the suppression list.
type Suppressor interface {
	Suppress(ctx context.Context, email string, reason domain.SuppressionReason, source domain.SuppressionSource, notes string, expiresAt *time.Time) error
}

// Auditor records compliance audit entries.
type Auditor interface {
	Record(ctx context.Context, rc domain.RequestContext, e audit.Entry)
}

// Service implements unsubscribe business logic.
type Service struct {
	repo       Repository
	suppressor Suppressor
	auditor    Auditor
	baseURL    string
	now        func() time.Time
}

// NewService creates an unsubscribe service. baseURL is the public origin the
// links point at, e.g. "https://mail.example.com".
func NewService(repo Repository, suppressor Suppressor, auditor Auditor, baseURL string) *Service {
	return &Service{
		repo:       repo,
		suppressor: suppressor,
		auditor:    auditor,
		baseURL:    strings.TrimRight(baseURL, "/"),
		now:        time.Now,
	}
}

// Links are the per-recipient unsubscribe URLs placed in a message.
type Links struct {
	Page     string
	OneClick string
}

// ListUnsubscribeHeaders renders the RFC 2369 and RFC 8058 headers.
func (l Links) ListUnsubscribeHeaders() map[string]string {
	return map[string]string{
		"List-Unsubscribe":      fmt.Sprintf("<%s>, <%s>", l.Page, l.OneClick),
		"List-Unsubscribe-Post": "List-Unsubscribe=One-Click",
	}
}

// LinksFor returns the links for a recipient, creating a pending token record
// on first use.
func (s *Service) LinksFor(ctx context.Context, rc domain.RequestContext, email, domainID string) (Links, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return Links{}, ErrEmailRequired
	}
	u, err := s.repo.FirstOrCreate(ctx, &domain.Unsubscribe{
		Email:     email,
		DomainID:  domainID,
		ListType:  domain.ListAll,
		Token:     randstr.Alphanumeric(TokenLength),
		IPAddress: rc.IP,
		UserAgent: rc.UserAgent,
		CreatedAt: s.now(),
	})
	if err != nil {
		return Links{}, fmt.Errorf("unsubscribe token: %w", err)
	}
	return Links{
		Page:     s.baseURL + "/unsubscribe/" + u.Token,
		OneClick: s.baseURL + "/unsubscribe/one-click/" + u.Token,
	}, nil
}

// IsUnsubscribed reports whether email opted out of listType mail.
func (s *Service) IsUnsubscribed(ctx context.Context, email, domainID string, listType domain.ListType) (bool, error) {
	return s.repo.IsUnsubscribed(ctx, strings.ToLower(strings.TrimSpace(email)), domainID, listType)
}

// Lookup returns the record for a token.
func (s *Service) Lookup(ctx context.Context, token string) (*domain.Unsubscribe, error) {
	return s.repo.GetByToken(ctx, token)
}

// Confirm processes the unsubscribe link form.
func (s *Service) Confirm(ctx context.Context, rc domain.RequestContext, token, reason string) (*domain.Unsubscribe, error) {
	if len([]rune(reason)) > maxReasonLength {
		return nil, ErrReasonTooLong
	}
	u, err := s.mark(ctx, rc, token, reason)
	if err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, rc, audit.Entry{
		Action:      domain.ActionUnsubscribe,
		Regulation:  domain.RegulationCANSPAM,
		Email:       u.Email,
		Description: "User unsubscribed from emails",
		Metadata:    map[string]any{"unsubscribe_id": u.ID},
	})
	return u, nil
}

// OneClick processes an RFC 8058 one-click POST.
func (s *Service) OneClick(ctx context.Context, rc domain.RequestContext, token string) (*domain.Unsubscribe, error) {
	u, err := s.mark(ctx, rc, token, "One-click unsubscribe")
	if err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, rc, audit.Entry{
		Action:      domain.ActionUnsubscribe + "_one_click",
		Regulation:  domain.RegulationRFC8058,
		Email:       u.Email,
		Description: "User unsubscribed via one-click",
	})
	return u, nil
}

func (s *Service) mark(ctx context.Context, rc domain.RequestContext, token, reason string) (*domain.Unsubscribe, error) {
	u, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.repo.MarkUnsubscribed(ctx, u.ID, reason, rc.IP, rc.UserAgent, now); err != nil {
		return nil, fmt.Errorf("mark unsubscribed: %w", err)
	}
	u.Reason = reason
	u.IPAddress = rc.IP
	u.UserAgent = rc.UserAgent
	u.UnsubscribedAt = &now
	return u, nil
}

// Process is the administrative opt-out: the address is suppressed for all
// mail and a confirmed unsubscribe is recorded.
func (s *Service) Process(ctx context.Context, rc domain.RequestContext, email, domainID string, listType domain.ListType, reason string) (*domain.Unsubscribe, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrEmailRequired
	}
	if listType == "" {
		listType = domain.ListAll
	}
	if err := s.suppressor.Suppress(ctx, email, domain.ReasonUnsubscribe, domain.SourceUnsubscribeLink,
		"list_type="+string(listType), nil); err != nil {
		return nil, fmt.Errorf("suppress on unsubscribe: %w", err)
	}
	now := s.now()
	u := &domain.Unsubscribe{
		Email:          email,
		DomainID:       domainID,
		ListType:       listType,
		Token:          randstr.Alphanumeric(TokenLength),
		Reason:         reason,
		IPAddress:      rc.IP,
		UserAgent:      rc.UserAgent,
		UnsubscribedAt: &now,
		CreatedAt:      now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create unsubscribe: %w", err)
	}
	s.auditor.Record(ctx, rc, audit.Entry{
		Action:      domain.ActionUnsubscribe,
		Regulation:  domain.RegulationCANSPAM,
		Email:       email,
		Description: "Unsubscribe processed for " + string(listType) + " emails",
	})
	return u, nil
}
