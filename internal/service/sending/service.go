package sending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/mta"
	"github.com/ignite/mailcore/internal/pkg/logger"
	"github.com/ignite/mailcore/internal/pkg/randstr"
	"github.com/ignite/mailcore/internal/pkg/tmpl"
	"github.com/ignite/mailcore/internal/service/content"
	"github.com/ignite/mailcore/internal/service/mailbox"
	"github.com/ignite/mailcore/internal/service/spamfilter"
	"github.com/ignite/mailcore/internal/service/unsubscribe"
)

// MessageIDLength is the number of random characters before "@domain".
const MessageIDLength = 32

// Mailboxes resolves and meters sender mailboxes.
type Mailboxes interface {
	GetByEmail(ctx context.Context, email string) (*domain.Mailbox, error)
	CanSendEmail(m *domain.Mailbox) bool
	ReserveSend(ctx context.Context, id string) error
	ReleaseSend(ctx context.Context, id string) error
}

// Domains loads sending domains.
type Domains interface {
	Get(ctx context.Context, id string) (*domain.Domain, error)
}

// Compliance is the compliance gate.
type Compliance interface {
	CanSendEmail(ctx context.Context, rc domain.RequestContext, to, from string, emailType domain.EmailType) (domain.ComplianceDecision, error)
}

// Filter scores messages for spam.
type Filter interface {
	ShouldFilter(ctx context.Context, msg spamfilter.Message) (*spamfilter.Result, error)
}

// Reputations gates and records sends per IP.
type Reputations interface {
	CanSend(ctx context.Context, ip string) (bool, error)
	RecordSuccess(ctx context.Context, ip string) error
	RecordFailure(ctx context.Context, ip string) error
}

// Unsubscribes issues per-recipient unsubscribe links.
type Unsubscribes interface {
	LinksFor(ctx context.Context, rc domain.RequestContext, email, domainID string) (unsubscribe.Links, error)
}

// Options configure the orchestrator.
type Options struct {
	// SendingIP is the outbound IP checked against reputation before handoff.
	SendingIP string
	// Sandbox records messages as delivered without contacting the MTA.
	Sandbox bool
}

// Service orchestrates a send from request to MTA handoff.
type Service struct {
	repo         Repository
	mailboxes    Mailboxes
	domains      Domains
	compliance   Compliance
	filter       Filter
	reputations  Reputations
	unsubscribes Unsubscribes
	sender       mta.Sender
	templates    *tmpl.Renderer
	opts         Options
	now          func() time.Time
}

// NewService creates a send orchestrator. In sandbox mode sender may be nil.
func NewService(
	repo Repository,
	mailboxes Mailboxes,
	domains Domains,
	compliance Compliance,
	filter Filter,
	reputations Reputations,
	unsubscribes Unsubscribes,
	sender mta.Sender,
	opts Options,
) *Service {
	if _, isSandbox := sender.(*mta.SandboxSender); sender == nil || (opts.Sandbox && !isSandbox) {
		sender = mta.NewSandboxSender()
	}
	return &Service{
		repo:         repo,
		mailboxes:    mailboxes,
		domains:      domains,
		compliance:   compliance,
		filter:       filter,
		reputations:  reputations,
		unsubscribes: unsubscribes,
		sender:       sender,
		templates:    tmpl.New(),
		opts:         opts,
		now:          time.Now,
	}
}

// Send runs the gates and hands the message to the MTA.
func (s *Service) Send(ctx context.Context, rc domain.RequestContext, msg domain.OutboundMessage) domain.SendResult {
	res := s.send(ctx, rc, msg)
	switch {
	case res.Success && res.Sandbox:
		metricSend.WithLabelValues(resultSandbox).Inc()
	case res.Success:
		metricSend.WithLabelValues(resultSent).Inc()
	case res.MessageID != "" || strings.HasPrefix(res.Error, ErrInternal.Error()):
		metricSend.WithLabelValues(resultFailed).Inc()
	default:
		metricSend.WithLabelValues(resultBlocked).Inc()
	}
	return res
}

func (s *Service) send(ctx context.Context, rc domain.RequestContext, msg domain.OutboundMessage) domain.SendResult {
	from := strings.ToLower(strings.TrimSpace(msg.From))
	to := strings.ToLower(strings.TrimSpace(msg.To))
	emailType := domain.ParseEmailType(string(msg.Type))

	mb, err := s.mailboxes.GetByEmail(ctx, from)
	if errors.Is(err, mailbox.ErrNotFound) {
		return fail(ErrInvalidSender)
	}
	if err != nil {
		return s.internal("load mailbox", err)
	}
	if !s.mailboxes.CanSendEmail(mb) {
		return fail(ErrMailboxCannotSend)
	}

	d, err := s.domains.Get(ctx, mb.DomainID)
	if err != nil {
		return s.internal("load domain", err)
	}
	if !d.IsFullyVerified() {
		return fail(ErrDomainNotVerified)
	}

	decision, err := s.compliance.CanSendEmail(ctx, rc, to, from, emailType)
	if err != nil {
		return s.internal("compliance check", err)
	}
	if !decision.Allowed {
		res := fail(ErrComplianceBlocked)
		res.Reasons = decision.Reasons
		return res
	}

	verdict, err := s.filter.ShouldFilter(ctx, spamfilter.Message{
		To:       to,
		From:     from,
		Subject:  msg.Subject,
		Body:     msg.Body,
		SenderIP: s.opts.SendingIP,
	})
	if err != nil {
		return s.internal("spam filter", err)
	}
	if verdict.Recommendation == spamfilter.RecommendReject {
		res := fail(ErrSpamRejected)
		res.Reasons = verdict.Reasons
		score := verdict.SpamScore
		res.SpamScore = &score
		return res
	}

	if s.opts.SendingIP != "" {
		ok, err := s.reputations.CanSend(ctx, s.opts.SendingIP)
		if err != nil {
			return s.internal("ip reputation", err)
		}
		if !ok {
			return fail(ErrIPBlocked)
		}
	}

	v := content.Validate(msg.Subject, msg.Body, emailType)
	if !v.Compliant() {
		res := fail(ErrContentBlocked)
		res.Reasons = v.Blocking
		score := v.SpamScore
		res.SpamScore = &score
		return res
	}
	if len(v.Advisory) > 0 {
		log.Printf("[Sender] Content advisories for %s: %s", logger.RedactEmail(to), strings.Join(v.Advisory, "; "))
	}

	if err := s.mailboxes.ReserveSend(ctx, mb.ID); err != nil {
		if errors.Is(err, mailbox.ErrLimitReached) {
			return fail(ErrDailyLimit)
		}
		return s.internal("reserve send slot", err)
	}

	messageID := randstr.Alphanumeric(MessageIDLength) + "@" + d.Name
	out, err := s.compose(ctx, rc, msg, d, messageID, from, to)
	if err != nil {
		s.release(ctx, mb.ID)
		return s.internal("compose message", err)
	}

	sl := s.newSendLog(rc, msg, d, mb, out, emailType)
	if err := s.repo.Create(ctx, sl); err != nil {
		s.release(ctx, mb.ID)
		return s.internal("create send log", err)
	}

	receipt, err := s.sender.Send(ctx, out)
	if err != nil {
		return s.handoffFailed(ctx, mb.ID, messageID, err)
	}
	return s.handedOff(ctx, messageID, receipt)
}

// compose builds the MTA message with unsubscribe links, headers and footer.
func (s *Service) compose(ctx context.Context, rc domain.RequestContext, msg domain.OutboundMessage, d *domain.Domain, messageID, from, to string) (*domain.MTAMessage, error) {
	links, err := s.unsubscribes.LinksFor(ctx, rc, to, d.ID)
	if err != nil {
		return nil, err
	}

	body, err := withFooter(s.templates, msg.Body, msg.HTML, d.Name, links.Page)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(msg.Headers)+3)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	for k, v := range links.ListUnsubscribeHeaders() {
		headers[k] = v
	}
	headers["Precedence"] = "bulk"

	out := &domain.MTAMessage{
		MessageID: messageID,
		From:      from,
		To:        to,
		Subject:   msg.Subject,
		Headers:   headers,
	}
	if msg.HTML {
		out.HTMLBody = body
	} else {
		out.TextBody = body
	}
	return out, nil
}

func (s *Service) newSendLog(rc domain.RequestContext, msg domain.OutboundMessage, d *domain.Domain, mb *domain.Mailbox, out *domain.MTAMessage, emailType domain.EmailType) *domain.SendLog {
	meta := make(map[string]any, len(msg.Metadata)+2)
	for k, v := range msg.Metadata {
		meta[k] = v
	}
	meta["email_type"] = string(emailType)
	if s.opts.Sandbox {
		meta["sandbox"] = true
	}
	raw, _ := json.Marshal(meta)

	return &domain.SendLog{
		ID:          uuid.New().String(),
		DomainID:    d.ID,
		MailboxID:   mb.ID,
		MessageID:   out.MessageID,
		FromEmail:   out.From,
		ToEmail:     out.To,
		Subject:     out.Subject,
		BodyPreview: domain.Preview(content.PlainText(msg.Body)),
		Status:      domain.StatusQueued,
		Attempts:    1,
		ClientIP:    rc.IP,
		SendingIP:   s.opts.SendingIP,
		Headers:     out.Headers,
		Metadata:    raw,
		CreatedAt:   s.now(),
	}
}

func (s *Service) handedOff(ctx context.Context, messageID string, receipt *domain.MTAReceipt) domain.SendResult {
	u := domain.StatusUpdate{
		Status:       domain.StatusSent,
		SMTPCode:     receipt.Code,
		SMTPResponse: receipt.Response,
		QueueID:      receipt.QueueID,
		At:           s.now(),
	}
	if receipt.Sandbox {
		u.Status = domain.StatusDelivered
	}
	if _, err := s.repo.UpdateStatus(ctx, messageID, u); err != nil {
		log.Printf("[Sender] Failed to mark %s %s: %v", messageID, u.Status, err)
	}

	if ip := s.opts.SendingIP; ip != "" {
		if err := s.reputations.RecordSuccess(ctx, ip); err != nil {
			log.Printf("[Sender] Failed to record success for %s: %v", ip, err)
		}
	}

	logger.Info("email handed off", "message_id", messageID, "queue_id", receipt.QueueID, "sandbox", receipt.Sandbox)
	return domain.SendResult{Success: true, MessageID: messageID, Sandbox: receipt.Sandbox}
}

func (s *Service) handoffFailed(ctx context.Context, mailboxID, messageID string, cause error) domain.SendResult {
	log.Printf("[Sender] MTA handoff failed for %s: %v", messageID, cause)

	if _, err := s.repo.UpdateStatus(ctx, messageID, domain.StatusUpdate{
		Status:       domain.StatusFailed,
		ErrorMessage: cause.Error(),
		At:           s.now(),
	}); err != nil {
		log.Printf("[Sender] Failed to mark %s failed: %v", messageID, err)
	}
	s.release(ctx, mailboxID)

	if ip := s.opts.SendingIP; ip != "" {
		if err := s.reputations.RecordFailure(ctx, ip); err != nil {
			log.Printf("[Sender] Failed to record failure for %s: %v", ip, err)
		}
	}

	res := fail(ErrHandoff)
	res.MessageID = messageID
	res.Reasons = []string{cause.Error()}
	return res
}

func (s *Service) release(ctx context.Context, mailboxID string) {
	if err := s.mailboxes.ReleaseSend(ctx, mailboxID); err != nil {
		log.Printf("[Sender] Failed to release send slot for mailbox %s: %v", mailboxID, err)
	}
}

func (s *Service) internal(op string, err error) domain.SendResult {
	log.Printf("[Sender] %s: %v", op, err)
	return fail(fmt.Errorf("%w: %s", ErrInternal, op))
}

func fail(err error) domain.SendResult {
	return domain.SendResult{Success: false, Error: err.Error()}
}

// SendBulk sends each message independently and aggregates the outcomes.
func (s *Service) SendBulk(ctx context.Context, rc domain.RequestContext, msgs []domain.OutboundMessage) domain.BulkResult {
	out := domain.BulkResult{Errors: []domain.BulkError{}}
	for _, m := range msgs {
		if ctx.Err() != nil {
			out.Failed++
			out.Errors = append(out.Errors, domain.BulkError{Email: m.To, Error: ctx.Err().Error()})
			continue
		}
		res := s.Send(ctx, rc, m)
		if res.Success {
			out.Success++
			continue
		}
		out.Failed++
		out.Errors = append(out.Errors, domain.BulkError{Email: m.To, Error: res.Error})
	}
	return out
}
