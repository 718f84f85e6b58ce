package spamfilter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/pkg/ratelimit"
	"github.com/ignite/mailcore/internal/service/audit"
	"github.com/ignite/mailcore/internal/service/reputation"
)

// Recommendation is the action suggested by the composite score.
type Recommendation string

const (
	RecommendAllow      Recommendation = "ALLOW"
	RecommendMarkAsSpam Recommendation = "MARK_AS_SPAM"
	RecommendQuarantine Recommendation = "QUARANTINE"
	RecommendReject     Recommendation = "REJECT"
)

// RejectScore is the composite score at which a send is rejected.
const RejectScore = 100

const (
	suppressedPts        = 100
	senderCountThreshold = 50
	ipCountThreshold     = 30
	contentThreshold     = 40
	rateLimitPts         = 50
	complaintRateLimit   = 0.1
	complaintRateFactor  = 500
	lowReputationScore   = 50
	blacklistedPts       = 100
)

// Recommend maps a composite score to a recommendation.
func Recommend(score int) Recommendation {
	switch {
	case score >= RejectScore:
		return RecommendReject
	case score >= 70:
		return RecommendQuarantine
	case score >= 40:
		return RecommendMarkAsSpam
	}
	return RecommendAllow
}

// Suppressions answers suppression lookups and adds entries.
type Suppressions interface {
	IsSuppressed(ctx context.Context, email string) (bool, error)
	Suppress(ctx context.Context, email string, reason domain.SuppressionReason, source domain.SuppressionSource, notes string, expiresAt *time.Time) error
}

// Reputations exposes IP reputation records.
type Reputations interface {
	Get(ctx context.Context, ip string) (*domain.IPReputation, error)
	RecordSpamReport(ctx context.Context, ip string) error
}

// Auditor records compliance audit entries.
type Auditor interface {
	Record(ctx context.Context, rc domain.RequestContext, e audit.Entry)
}

// Message is the input to ShouldFilter.
type Message struct {
	To       string
	From     string
	Subject  string
	Body     string
	SenderIP string
}

// Result is the composite filter verdict.
type Result struct {
	ShouldFilter   bool           `json:"should_filter"`
	SpamScore      int            `json:"spam_score"`
	Reasons        []string       `json:"reasons"`
	Recommendation Recommendation `json:"recommendation"`
}

// Service computes filter scores and records complaints.
type Service struct {
	repo         Repository
	suppressions Suppressions
	reputations  Reputations
	limiter      ratelimit.Limiter
	auditor      Auditor
	sendingIP    string
}

// NewService creates a spam filter. limiter may be nil to disable the
// per-sender rate check. sendingIP is used for complaints whose send log
// carries no client IP.
func NewService(repo Repository, suppressions Suppressions, reputations Reputations, limiter ratelimit.Limiter, auditor Auditor, sendingIP string) *Service {
	return &Service{
		repo:         repo,
		suppressions: suppressions,
		reputations:  reputations,
		limiter:      limiter,
		auditor:      auditor,
		sendingIP:    sendingIP,
	}
}

// ShouldFilter scores a message. Lookup failures are returned; the sub-score
// they feed is not guessed.
func (s *Service) ShouldFilter(ctx context.Context, msg Message) (*Result, error) {
	res := &Result{}

	suppressed, err := s.suppressions.IsSuppressed(ctx, msg.To)
	if err != nil {
		return nil, fmt.Errorf("suppression lookup: %w", err)
	}
	if suppressed {
		res.add(suppressedPts, "Recipient is suppressed")
	}

	complaints, sent, err := s.repo.SenderStats(ctx, strings.ToLower(msg.From))
	if err != nil {
		return nil, fmt.Errorf("sender stats: %w", err)
	}
	if rate := domain.ComplaintRate(complaints, sent); rate > complaintRateLimit {
		if pts := int(rate * complaintRateFactor); pts > senderCountThreshold {
			res.add(pts, fmt.Sprintf("High spam complaint rate: %.2f%%", rate))
		}
	}

	if pts, reason, err := s.ipScore(ctx, msg.SenderIP); err != nil {
		return nil, err
	} else if pts > ipCountThreshold {
		res.add(pts, reason)
	}

	if cs := AnalyzeContent(msg.Subject, msg.Body); cs.Score > contentThreshold {
		res.SpamScore += cs.Score
		res.Reasons = append(res.Reasons, cs.Reasons...)
	}

	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, strings.ToLower(msg.From))
		if err != nil {
			log.Printf("[SpamFilter] rate limit check failed for sender: %v", err)
		} else if !ok {
			res.add(rateLimitPts, fmt.Sprintf("Sender rate limit exceeded (%d/min)", s.limiter.Limit()))
		}
	}

	res.ShouldFilter = res.SpamScore >= RejectScore
	res.Recommendation = Recommend(res.SpamScore)
	return res, nil
}

func (r *Result) add(pts int, reason string) {
	r.SpamScore += pts
	r.Reasons = append(r.Reasons, reason)
}

func (s *Service) ipScore(ctx context.Context, ip string) (int, string, error) {
	if ip == "" {
		return 0, "", nil
	}
	rep, err := s.reputations.Get(ctx, ip)
	if errors.Is(err, reputation.ErrNotFound) {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("ip reputation lookup: %w", err)
	}
	if rep.IsBlacklisted {
		return blacklistedPts, "IP is blacklisted", nil
	}
	if rep.ReputationScore < lowReputationScore {
		return 100 - rep.ReputationScore, fmt.Sprintf("Low IP reputation score: %d/100", rep.ReputationScore), nil
	}
	return 0, "", nil
}

// Complaint is an incoming spam complaint.
type Complaint struct {
	Email         string
	MessageID     string
	ComplaintType string
	FeedbackType  string
	Provider      string
	RawReport     string
}

// RecordComplaint stores a complaint. Spam complaints suppress the
// complainant and count against the IP that sent the original message.
func (s *Service) RecordComplaint(ctx context.Context, rc domain.RequestContext, c Complaint) (*domain.SpamComplaint, error) {
	email := strings.ToLower(strings.TrimSpace(c.Email))
	if email == "" {
		return nil, ErrEmailRequired
	}
	if c.ComplaintType == "" {
		c.ComplaintType = domain.ComplaintTypeSpam
	}

	sc := &domain.SpamComplaint{
		Email:         email,
		ComplaintType: c.ComplaintType,
		FeedbackType:  c.FeedbackType,
		Provider:      c.Provider,
		RawReport:     c.RawReport,
	}

	ip := s.sendingIP
	if c.MessageID != "" {
		id, sentFrom, err := s.repo.FindSendLog(ctx, c.MessageID)
		switch {
		case errors.Is(err, ErrSendLogNotFound):
			log.Printf("[SpamFilter] complaint references unknown message %s", c.MessageID)
		case err != nil:
			return nil, fmt.Errorf("resolve send log: %w", err)
		default:
			sc.SendLogID = id
			if sentFrom != "" {
				ip = sentFrom
			}
		}
	}

	if err := s.repo.InsertComplaint(ctx, sc); err != nil {
		return nil, fmt.Errorf("insert complaint: %w", err)
	}

	if sc.ComplaintType == domain.ComplaintTypeSpam {
		notes := "complaint_id=" + sc.ID
		if sc.FeedbackType != "" {
			notes += " feedback_type=" + sc.FeedbackType
		}
		if err := s.suppressions.Suppress(ctx, email, domain.ReasonComplaint, domain.SourceFBLReport, notes, nil); err != nil {
			return nil, fmt.Errorf("suppress complainant: %w", err)
		}
		if ip != "" {
			if err := s.reputations.RecordSpamReport(ctx, ip); err != nil {
				log.Printf("[SpamFilter] failed to record spam report for %s: %v", ip, err)
			}
		}
	}

	s.auditor.Record(ctx, rc, audit.Entry{
		Action:      domain.ActionComplaint,
		Regulation:  domain.RegulationCANSPAM,
		Email:       email,
		Description: fmt.Sprintf("Spam complaint received (type: %s)", sc.ComplaintType),
		Metadata: map[string]any{
			"complaint_id":  sc.ID,
			"feedback_type": sc.FeedbackType,
			"provider":      sc.Provider,
		},
	})
	return sc, nil
}

// TrainFilter feeds a user verdict back. Spam verdicts are recorded as
// abuse complaints.
func (s *Service) TrainFilter(ctx context.Context, rc domain.RequestContext, email string, isSpam bool) error {
	if !isSpam {
		return nil
	}
	_, err := s.RecordComplaint(ctx, rc, Complaint{
		Email:         email,
		ComplaintType: domain.ComplaintTypeSpam,
		FeedbackType:  "abuse",
		Provider:      "system_training",
	})
	return err
}
