package consent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/pkg/randstr"
	"github.com/ignite/mailcore/internal/service/audit"
)

// TokenLength is the length of double opt-in verification tokens.
const TokenLength = 64

// Auditor records compliance audit entries.
type Auditor interface {
	Record(ctx context.Context, rc domain.RequestContext, e audit.Entry)
}

// Service implements consent business logic.
type Service struct {
	repo    Repository
	auditor Auditor
	now     func() time.Time
}

// NewService creates a consent service.
func NewService(repo Repository, auditor Auditor) *Service {
	return &Service{repo: repo, auditor: auditor, now: time.Now}
}

// ValidType reports whether t may be granted.
func ValidType(t domain.ConsentType) bool {
	switch t {
	case domain.ConsentMarketing, domain.ConsentTransactional, domain.ConsentNewsletter, domain.ConsentPromotional:
		return true
	}
	return false
}

// GrantRequest describes a consent grant.
type GrantRequest struct {
	Email     string
	Type      domain.ConsentType
	Method    domain.ConsentMethod
	ExpiresAt *time.Time
	Metadata  map[string]any
}

// Grant records consent. Double opt-in records start ungranted with a
// verification token.
func (s *Service) Grant(ctx context.Context, rc domain.RequestContext, req GrantRequest) (*domain.ConsentRecord, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, ErrEmailRequired
	}
	if !ValidType(req.Type) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, req.Type)
	}
	if req.Method == "" {
		req.Method = domain.MethodOptIn
	}
	if !req.Method.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, req.Method)
	}

	c := &domain.ConsentRecord{
		Email:         email,
		ConsentType:   req.Type,
		Granted:       true,
		ConsentMethod: req.Method,
		ExpiresAt:     req.ExpiresAt,
		IPAddress:     rc.IP,
		UserAgent:     rc.UserAgent,
		CreatedAt:     s.now(),
	}
	if len(req.Metadata) > 0 {
		c.Metadata, _ = json.Marshal(req.Metadata)
	}
	if req.Method == domain.MethodDoubleOptIn {
		c.Granted = false
		c.VerificationToken = randstr.Alphanumeric(TokenLength)
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create consent: %w", err)
	}

	s.auditor.Record(ctx, rc, audit.Entry{
		Action:      domain.ActionConsentGranted,
		Regulation:  domain.RegulationGDPR,
		Email:       email,
		Description: fmt.Sprintf("Consent granted for %s", req.Type),
		Metadata:    map[string]any{"consent_id": c.ID, "method": req.Method},
	})
	return c, nil
}

// Verify completes a double opt-in.
func (s *Service) Verify(ctx context.Context, rc domain.RequestContext, token string) (*domain.ConsentRecord, error) {
	c, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if c.ConsentMethod != domain.MethodDoubleOptIn {
		return nil, ErrNotDoubleOptIn
	}
	if c.VerifiedAt != nil {
		return c, ErrAlreadyVerified
	}
	now := s.now()
	if err := s.repo.MarkVerified(ctx, c.ID, now); err != nil {
		return nil, fmt.Errorf("verify consent: %w", err)
	}
	c.Granted = true
	c.VerifiedAt = &now
	c.VerificationToken = ""

	s.auditor.Record(ctx, rc, audit.Entry{
		Action:      domain.ActionConsentVerified,
		Regulation:  domain.RegulationGDPR,
		Email:       c.Email,
		Description: "Double opt-in consent verified",
		Metadata:    map[string]any{"consent_id": c.ID},
	})
	return c, nil
}

// Revoke withdraws consent of one type, or every type for ConsentAll. It
// returns how many records were revoked.
func (s *Service) Revoke(ctx context.Context, rc domain.RequestContext, email string, consentType domain.ConsentType, reason string) (int, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return 0, ErrEmailRequired
	}
	if consentType != domain.ConsentAll && !ValidType(consentType) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidType, consentType)
	}
	filter := consentType
	if consentType == domain.ConsentAll {
		filter = ""
	}
	records, err := s.repo.ListGranted(ctx, email, filter)
	if err != nil {
		return 0, fmt.Errorf("list consents: %w", err)
	}
	if consentType != domain.ConsentAll && len(records) > 1 {
		records = records[:1]
	}

	now := s.now()
	for _, c := range records {
		meta := map[string]any{}
		if len(c.Metadata) > 0 {
			_ = json.Unmarshal(c.Metadata, &meta)
		}
		meta["revoke_reason"] = reason
		meta["revoked_ip"] = rc.IP
		b, _ := json.Marshal(meta)
		if err := s.repo.Revoke(ctx, c.ID, now, b); err != nil {
			return 0, fmt.Errorf("revoke consent %s: %w", c.ID, err)
		}
	}

	s.auditor.Record(ctx, rc, audit.Entry{
		Action:      domain.ActionConsentRevoked,
		Regulation:  domain.RegulationGDPR,
		Email:       email,
		Description: fmt.Sprintf("Consent revoked for %s", consentType),
		Metadata:    map[string]any{"reason": reason, "revoked": len(records)},
	})
	return len(records), nil
}

// HasValidConsent reports whether any granted record of consentType is valid now.
func (s *Service) HasValidConsent(ctx context.Context, email string, consentType domain.ConsentType) (bool, error) {
	records, err := s.repo.ListGranted(ctx, strings.ToLower(strings.TrimSpace(email)), consentType)
	if err != nil {
		return false, err
	}
	now := s.now()
	for i := range records {
		if records[i].IsValid(now) {
			return true, nil
		}
	}
	return false, nil
}
