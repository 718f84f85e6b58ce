package domain

import (
	"strings"
	"time"
)

// BounceType classifies a bounce by SMTP code class.
type BounceType string

const (
	BounceHard      BounceType = "hard"
	BounceSoft      BounceType = "soft"
	BounceTransient BounceType = "transient"
	BouncePermanent BounceType = "permanent"
	BounceUnknown   BounceType = "unknown"
)

// IsHard reports whether the bounce is permanent.
func (t BounceType) IsHard() bool { return t == BounceHard || t == BouncePermanent }

// IsSoft reports whether the bounce is temporary.
func (t BounceType) IsSoft() bool { return t == BounceSoft || t == BounceTransient }

// BounceCategory classifies a bounce by response text.
type BounceCategory string

const (
	CategoryInvalidAddress  BounceCategory = "invalid_address"
	CategoryMailboxFull     BounceCategory = "mailbox_full"
	CategorySpamRelated     BounceCategory = "spam_related"
	CategoryDNSError        BounceCategory = "dns_error"
	CategoryConnectionError BounceCategory = "connection_error"
	CategoryPolicyRelated   BounceCategory = "policy_related"
	CategoryContentRejected BounceCategory = "content_rejected"
	CategoryOther           BounceCategory = "other"
)

// HardBounceThreshold is the number of hard bounces that suppresses a recipient.
const HardBounceThreshold = 3

// Bounce is the classified failure attached to at most one SendLog.
type Bounce struct {
	ID             string         `json:"id" db:"id"`
	SendLogID      string         `json:"send_log_id" db:"send_log_id"`
	RecipientEmail string         `json:"recipient_email" db:"recipient_email"`
	BounceType     BounceType     `json:"bounce_type" db:"bounce_type"`
	BounceCategory BounceCategory `json:"bounce_category" db:"bounce_category"`
	SMTPCode       int            `json:"smtp_code" db:"smtp_code"`
	SMTPResponse   string         `json:"smtp_response" db:"smtp_response"`
	DiagnosticCode string         `json:"diagnostic_code,omitempty" db:"diagnostic_code"`
	RawMessage     string         `json:"raw_message,omitempty" db:"raw_message"`
	IsSuppressed   bool           `json:"is_suppressed" db:"is_suppressed"`
	BouncedAt      time.Time      `json:"bounced_at" db:"bounced_at"`
}

// ClassifyBounceType maps an SMTP reply code to a bounce type.
func ClassifyBounceType(code int) BounceType {
	switch {
	case code >= 500 && code <= 599:
		return BounceHard
	case code >= 400 && code <= 499:
		return BounceSoft
	}
	return BounceUnknown
}

var categoryKeywords = []struct {
	category BounceCategory
	words    []string
}{
	{CategoryInvalidAddress, []string{"user unknown", "no such user", "invalid recipient"}},
	{CategoryMailboxFull, []string{"mailbox full", "quota exceeded"}},
	{CategorySpamRelated, []string{"spam", "blocked", "blacklist"}},
	{CategoryDNSError, []string{"dns", "domain not found"}},
	{CategoryConnectionError, []string{"connection", "timeout"}},
	{CategoryPolicyRelated, []string{"policy", "relay denied"}},
	{CategoryContentRejected, []string{"content", "message rejected"}},
}

// ClassifyBounceCategory maps response text to a category. The first matching
// group wins.
func ClassifyBounceCategory(response string) BounceCategory {
	lower := strings.ToLower(response)
	for _, group := range categoryKeywords {
		for _, w := range group.words {
			if strings.Contains(lower, w) {
				return group.category
			}
		}
	}
	return CategoryOther
}

// NewBounce classifies a bounce from its SMTP code and response.
func NewBounce(sendLogID, recipient string, code int, response, raw string, at time.Time) *Bounce {
	return &Bounce{
		SendLogID:      sendLogID,
		RecipientEmail: recipient,
		BounceType:     ClassifyBounceType(code),
		BounceCategory: ClassifyBounceCategory(response),
		SMTPCode:       code,
		SMTPResponse:   response,
		RawMessage:     raw,
		BouncedAt:      at,
	}
}
