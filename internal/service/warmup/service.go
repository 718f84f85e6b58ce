package warmup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/pkg/tmpl"
)

// DefaultBatchSize is the number of sends per schedule per run.
const DefaultBatchSize = 5

// Mailboxes loads sender mailboxes.
type Mailboxes interface {
	Get(ctx context.Context, id string) (*domain.Mailbox, error)
}

// Sender is the send pipeline warmup mail goes through.
type Sender interface {
	Send(ctx context.Context, rc domain.RequestContext, msg domain.OutboundMessage) domain.SendResult
}

// Options configure the scheduler.
type Options struct {
	BatchSize         int
	DefaultTargetDays int
	Recipients        []string
}

// Stats summarizes one processing run.
type Stats struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Errors    int `json:"errors"`
}

// Status is the warmup progress of a mailbox.
type Status struct {
	Status            domain.WarmupStatus `json:"status"`
	Day               int                 `json:"day"`
	TargetDay         int                 `json:"target_day"`
	Progress          float64             `json:"progress"`
	EmailsSentToday   int                 `json:"emails_sent_today"`
	EmailsTargetToday int                 `json:"emails_target_today"`
	StartedAt         time.Time           `json:"started_at"`
	CompletedAt       *time.Time          `json:"completed_at,omitempty"`
}

// Service manages warmup schedules.
type Service struct {
	repo      Repository
	mailboxes Mailboxes
	sender    Sender
	templates *tmpl.Renderer
	opts      Options
	next      atomic.Uint64
	now       func() time.Time
}

// NewService creates a warmup service.
func NewService(repo Repository, mailboxes Mailboxes, sender Sender, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.DefaultTargetDays <= 0 {
		opts.DefaultTargetDays = domain.DefaultWarmupDays
	}
	return &Service{
		repo:      repo,
		mailboxes: mailboxes,
		sender:    sender,
		templates: tmpl.New(),
		opts:      opts,
		now:       time.Now,
	}
}

// StartWarmup creates an active schedule for a mailbox. targetDays <= 0 uses
// the configured default.
func (s *Service) StartWarmup(ctx context.Context, mailboxID string, targetDays int) (*domain.WarmupSchedule, error) {
	if _, err := s.mailboxes.Get(ctx, mailboxID); err != nil {
		return nil, err
	}
	current, err := s.repo.Latest(ctx, mailboxID)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load schedule: %w", err)
	case current.Status == domain.WarmupActive:
		return nil, ErrAlreadyActive
	}

	if targetDays <= 0 {
		targetDays = s.opts.DefaultTargetDays
	}
	w := domain.NewWarmupSchedule(mailboxID, targetDays, s.now())
	if err := s.repo.Create(ctx, w); err != nil {
		return nil, err
	}
	log.Printf("[Warmup] Started %d-day warmup for mailbox %s", targetDays, mailboxID)
	return w, nil
}

// Pause stops sending for an active schedule.
func (s *Service) Pause(ctx context.Context, mailboxID string) (*domain.WarmupSchedule, error) {
	return s.transition(ctx, mailboxID, domain.WarmupActive, domain.WarmupPaused, ErrNotActive)
}

// Resume restarts a paused schedule where it left off.
func (s *Service) Resume(ctx context.Context, mailboxID string) (*domain.WarmupSchedule, error) {
	return s.transition(ctx, mailboxID, domain.WarmupPaused, domain.WarmupActive, ErrNotPaused)
}

func (s *Service) transition(ctx context.Context, mailboxID string, from, to domain.WarmupStatus, wrongState error) (*domain.WarmupSchedule, error) {
	w, err := s.repo.Latest(ctx, mailboxID)
	if err != nil {
		return nil, err
	}
	if w.Status != from {
		return nil, wrongState
	}
	w.Status = to
	if err := s.repo.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("save schedule: %w", err)
	}
	log.Printf("[Warmup] Mailbox %s warmup %s", mailboxID, to)
	return w, nil
}

// GetWarmupStatus reports the latest schedule of a mailbox.
func (s *Service) GetWarmupStatus(ctx context.Context, mailboxID string) (*Status, error) {
	w, err := s.repo.Latest(ctx, mailboxID)
	if err != nil {
		return nil, err
	}
	return &Status{
		Status:            w.Status,
		Day:               w.Day,
		TargetDay:         w.TargetDay,
		Progress:          w.Progress(),
		EmailsSentToday:   w.EmailsSentToday,
		EmailsTargetToday: w.EmailsTargetToday,
		StartedAt:         w.StartedAt,
		CompletedAt:       w.CompletedAt,
	}, nil
}

// List returns schedules, optionally filtered by status.
func (s *Service) List(ctx context.Context, status domain.WarmupStatus) ([]domain.WarmupSchedule, error) {
	return s.repo.List(ctx, status)
}

// ProcessWarmupEmails sends one batch for every active schedule. A failing
// mailbox is counted and skipped.
func (s *Service) ProcessWarmupEmails(ctx context.Context) (Stats, error) {
	var stats Stats
	if len(s.opts.Recipients) == 0 {
		return stats, ErrNoRecipients
	}

	schedules, err := s.repo.List(ctx, domain.WarmupActive)
	if err != nil {
		return stats, fmt.Errorf("list active schedules: %w", err)
	}

	for i := range schedules {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		w := &schedules[i]
		stats.Processed++
		sent, err := s.processSchedule(ctx, w)
		stats.Sent += sent
		if err != nil {
			stats.Errors++
			log.Printf("[Warmup] Warmup failed for mailbox %s: %v", w.MailboxID, err)
		}
	}
	return stats, nil
}

func (s *Service) processSchedule(ctx context.Context, w *domain.WarmupSchedule) (int, error) {
	mb, err := s.mailboxes.Get(ctx, w.MailboxID)
	if err != nil {
		return 0, fmt.Errorf("load mailbox: %w", err)
	}

	rc := domain.RequestContext{Actor: "warmup"}
	sent := 0
	for sent < s.opts.BatchSize && w.CanSendToday() {
		msg, err := s.compose(mb)
		if err != nil {
			return sent, err
		}
		res := s.sender.Send(ctx, rc, msg)
		if !res.Success {
			return sent, fmt.Errorf("send to %s: %s", msg.To, res.Error)
		}
		w.RecordSent(s.now())
		sent++
		if err := s.repo.Save(ctx, w); err != nil {
			return sent, fmt.Errorf("save schedule: %w", err)
		}
		if w.Status == domain.WarmupCompleted {
			log.Printf("[Warmup] Mailbox %s completed warmup", mb.Email)
			break
		}
	}
	return sent, nil
}

// compose renders the next rotating subject and body for the next recipient.
func (s *Service) compose(mb *domain.Mailbox) (domain.OutboundMessage, error) {
	n := s.next.Add(1) - 1
	to := s.opts.Recipients[n%uint64(len(s.opts.Recipients))]

	senderDomain := ""
	if at := strings.LastIndex(mb.Email, "@"); at >= 0 {
		senderDomain = mb.Email[at+1:]
	}
	vars := map[string]interface{}{
		"sender":         mb.Email,
		"sender_name":    mb.LocalPart,
		"sender_domain":  senderDomain,
		"recipient_name": localPart(to),
	}

	si := int(n % uint64(len(subjects)))
	subject, err := s.templates.Render(fmt.Sprintf("subject:%d", si), subjects[si], vars)
	if err != nil {
		return domain.OutboundMessage{}, err
	}
	bi := int(n % uint64(len(bodies)))
	body, err := s.templates.Render(fmt.Sprintf("body:%d", bi), bodies[bi], vars)
	if err != nil {
		return domain.OutboundMessage{}, err
	}

	return domain.OutboundMessage{
		From:    mb.Email,
		To:      to,
		Subject: subject,
		Body:    body,
		HTML:    true,
		Type:    domain.EmailTransactional,
		Headers: map[string]string{"X-Mailcore-Warmup": "1"},
	}, nil
}

func localPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return ""
}
