package compliance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/service/audit"
	"github.com/ignite/mailcore/internal/service/mailbox"
)

// Gate reasons.
const (
	ReasonSuppressed   = "Email is in suppression list"
	ReasonUnsubscribed = "User has unsubscribed from marketing emails"
	ReasonNoConsent    = "No valid marketing consent (GDPR)"
	ReasonSenderLimit  = "Sender has reached daily limit or is inactive"
)

// Suppressions answers suppression lookups and adds entries.
type Suppressions interface {
	IsSuppressed(ctx context.Context, email string) (bool, error)
	Suppress(ctx context.Context, email string, reason domain.SuppressionReason, source domain.SuppressionSource, notes string, expiresAt *time.Time) error
}

// Unsubscribes answers whether a recipient opted out.
type Unsubscribes interface {
	IsUnsubscribed(ctx context.Context, email, domainID string, listType domain.ListType) (bool, error)
}

// Consents answers whether a recipient has valid consent.
type Consents interface {
	HasValidConsent(ctx context.Context, email string, consentType domain.ConsentType) (bool, error)
}

// Mailboxes resolves sender mailboxes.
type Mailboxes interface {
	GetByEmail(ctx context.Context, email string) (*domain.Mailbox, error)
	CanSendEmail(m *domain.Mailbox) bool
}

// Auditor records compliance audit entries.
type Auditor interface {
	Record(ctx context.Context, rc domain.RequestContext, e audit.Entry)
}

// Service is the compliance gate.
type Service struct {
	repo         Repository
	suppressions Suppressions
	unsubscribes Unsubscribes
	consents     Consents
	mailboxes    Mailboxes
	auditor      Auditor
	now          func() time.Time
}

// NewService creates a compliance service.
func NewService(repo Repository, suppressions Suppressions, unsubscribes Unsubscribes, consents Consents, mailboxes Mailboxes, auditor Auditor) *Service {
	return &Service{
		repo:         repo,
		suppressions: suppressions,
		unsubscribes: unsubscribes,
		consents:     consents,
		mailboxes:    mailboxes,
		auditor:      auditor,
		now:          time.Now,
	}
}

// CanSendEmail evaluates every rule for sending to `to` from `from`.
func (s *Service) CanSendEmail(ctx context.Context, rc domain.RequestContext, to, from string, emailType domain.EmailType) (domain.ComplianceDecision, error) {
	to = strings.ToLower(strings.TrimSpace(to))
	from = strings.ToLower(strings.TrimSpace(from))
	decision := domain.ComplianceDecision{Allowed: true, Reasons: []string{}}
	block := func(reason string) {
		decision.Allowed = false
		decision.Reasons = append(decision.Reasons, reason)
	}

	var domainID string
	fail := func(err error) (domain.ComplianceDecision, error) {
		decision.Allowed = false
		s.recordCheck(ctx, rc, to, from, emailType, decision, domainID, err)
		return decision, err
	}

	suppressed, err := s.suppressions.IsSuppressed(ctx, to)
	if err != nil {
		return fail(fmt.Errorf("suppression lookup: %w", err))
	}
	if suppressed {
		block(ReasonSuppressed)
	}

	if emailType == domain.EmailMarketing {
		unsubscribed, err := s.unsubscribes.IsUnsubscribed(ctx, to, "", domain.ListMarketing)
		if err != nil {
			return fail(fmt.Errorf("unsubscribe lookup: %w", err))
		}
		if unsubscribed {
			block(ReasonUnsubscribed)
		}

		consented, err := s.consents.HasValidConsent(ctx, to, domain.ConsentMarketing)
		if err != nil {
			return fail(fmt.Errorf("consent lookup: %w", err))
		}
		if !consented {
			block(ReasonNoConsent)
		}
	}

	mb, err := s.mailboxes.GetByEmail(ctx, from)
	switch {
	case errors.Is(err, mailbox.ErrNotFound):
	case err != nil:
		return fail(fmt.Errorf("mailbox lookup: %w", err))
	default:
		domainID = mb.DomainID
		if !s.mailboxes.CanSendEmail(mb) {
			block(ReasonSenderLimit)
		}
	}

	s.recordCheck(ctx, rc, to, from, emailType, decision, domainID, nil)
	return decision, nil
}

// recordCheck writes the audit entry for one compliance check. A failed
// lookup is recorded as blocked with the error attached.
func (s *Service) recordCheck(ctx context.Context, rc domain.RequestContext, to, from string, emailType domain.EmailType, decision domain.ComplianceDecision, domainID string, checkErr error) {
	result := "ALLOWED"
	if !decision.Allowed {
		result = "BLOCKED"
	}
	meta := map[string]any{
		"allowed":    decision.Allowed,
		"reasons":    decision.Reasons,
		"email_type": string(emailType),
	}
	if domainID != "" {
		meta["domain_id"] = domainID
	}
	if checkErr != nil {
		meta["error"] = checkErr.Error()
	}
	s.auditor.Record(ctx, rc, audit.Entry{
		Action:      domain.ActionSendCheck,
		Regulation:  domain.RegulationCANSPAM,
		Email:       to,
		Description: fmt.Sprintf("Compliance check for sending to %s from %s (Type: %s). Result: %s", to, from, emailType, result),
		Metadata:    meta,
	})
}

// Export is the GDPR data export for one address.
type Export struct {
	Email      string     `json:"email"`
	ExportedAt time.Time  `json:"export_date"`
	Data       ExportData `json:"data"`
}

// ExportData groups the exported records.
type ExportData struct {
	SendLogs       []domain.SendLog       `json:"send_logs"`
	ConsentRecords []domain.ConsentRecord `json:"consent_records"`
	Unsubscribes   []domain.Unsubscribe   `json:"unsubscribes"`
	Suppressions   []domain.Suppression   `json:"suppressions"`
}

// ExportUserData collects every record held for email.
func (s *Service) ExportUserData(ctx context.Context, rc domain.RequestContext, email string) (*Export, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrEmailRequired
	}

	exp := &Export{Email: email, ExportedAt: s.now()}
	var err error
	if exp.Data.SendLogs, err = s.repo.SendLogsFor(ctx, email); err != nil {
		return nil, fmt.Errorf("export send logs: %w", err)
	}
	if exp.Data.ConsentRecords, err = s.repo.ConsentsFor(ctx, email); err != nil {
		return nil, fmt.Errorf("export consents: %w", err)
	}
	if exp.Data.Unsubscribes, err = s.repo.UnsubscribesFor(ctx, email); err != nil {
		return nil, fmt.Errorf("export unsubscribes: %w", err)
	}
	if exp.Data.Suppressions, err = s.repo.SuppressionsFor(ctx, email); err != nil {
		return nil, fmt.Errorf("export suppressions: %w", err)
	}

	s.auditor.Record(ctx, rc, audit.Entry{
		Action:      domain.ActionDataExport,
		Regulation:  domain.RegulationGDPR,
		Email:       email,
		Description: "User data exported for GDPR compliance",
		Metadata: map[string]any{
			"send_logs":       len(exp.Data.SendLogs),
			"consent_records": len(exp.Data.ConsentRecords),
			"unsubscribes":    len(exp.Data.Unsubscribes),
			"suppressions":    len(exp.Data.Suppressions),
		},
	})
	return exp, nil
}

// Deletion is the outcome of DeleteUserData.
type Deletion struct {
	Hard       bool            `json:"hard"`
	Deleted    *DeletionCounts `json:"deleted,omitempty"`
	Anonymized int             `json:"anonymized"`
}

// DeleteUserData erases (hard) or anonymizes the records for email. The
// address is always suppressed afterwards so it is never mailed again.
func (s *Service) DeleteUserData(ctx context.Context, rc domain.RequestContext, email string, hard bool) (*Deletion, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrEmailRequired
	}

	res := &Deletion{Hard: hard}
	meta := map[string]any{"hard_delete": hard}
	if hard {
		counts, err := s.repo.DeleteUserData(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("delete user data: %w", err)
		}
		res.Deleted = &counts
		meta["send_logs"] = counts.SendLogs
		meta["consent_records"] = counts.ConsentRecords
		meta["unsubscribes"] = counts.Unsubscribes
	} else {
		n, err := s.repo.AnonymizeUserData(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("anonymize user data: %w", err)
		}
		res.Anonymized = n
		meta["anonymized"] = n
	}

	notes := "deletion_date=" + s.now().UTC().Format(time.RFC3339)
	if err := s.suppressions.Suppress(ctx, email, domain.ReasonGDPRRequest, domain.SourceGDPR, notes, nil); err != nil {
		return nil, fmt.Errorf("suppress after deletion: %w", err)
	}

	s.auditor.Record(ctx, rc, audit.Entry{
		Action:      domain.ActionDataDeletion,
		Regulation:  domain.RegulationGDPR,
		Email:       email,
		Description: "User data deleted/anonymized for GDPR compliance",
		Metadata:    meta,
	})
	return res, nil
}

// Period is the date range of a report.
type Period struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Report is a per-domain compliance summary.
type Report struct {
	DomainID            string                 `json:"domain_id"`
	Period              Period                 `json:"period"`
	Metrics             ReportMetrics          `json:"metrics"`
	BounceRate          float64                `json:"bounce_rate"`
	ComplaintRate       float64                `json:"complaint_rate"`
	NonCompliantActions []domain.ComplianceLog `json:"non_compliant_actions"`
}

const maxNonCompliant = 100

// GenerateComplianceReport summarizes the last `days` days for a domain.
func (s *Service) GenerateComplianceReport(ctx context.Context, domainID string, days int) (*Report, error) {
	if days == 0 {
		days = 30
	}
	if days < 1 || days > 365 {
		return nil, ErrInvalidDays
	}
	now := s.now()
	since := now.AddDate(0, 0, -days)

	metrics, err := s.repo.ReportMetrics(ctx, domainID, since)
	if err != nil {
		return nil, fmt.Errorf("report metrics: %w", err)
	}
	blocked, err := s.repo.BlockedChecks(ctx, domainID, since, maxNonCompliant)
	if err != nil {
		return nil, fmt.Errorf("blocked checks: %w", err)
	}

	r := &Report{
		DomainID:            domainID,
		Period:              Period{From: since.Format("2006-01-02"), To: now.Format("2006-01-02")},
		Metrics:             metrics,
		ComplaintRate:       domain.ComplaintRate(metrics.SpamComplaints, metrics.TotalSent),
		NonCompliantActions: blocked,
	}
	if metrics.TotalSent > 0 {
		r.BounceRate = float64(metrics.Bounces) / float64(metrics.TotalSent) * 100
	}
	if r.NonCompliantActions == nil {
		r.NonCompliantActions = []domain.ComplianceLog{}
	}
	return r, nil
}
