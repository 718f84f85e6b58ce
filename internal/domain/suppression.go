package domain

import "time"

// SuppressionReason enumerates why an email was suppressed.
type SuppressionReason string

const (
	ReasonHardBounce      SuppressionReason = "hard_bounce"
	ReasonComplaint       SuppressionReason = "spam_complaint"
	ReasonUnsubscribe     SuppressionReason = "unsubscribe"
	ReasonManual          SuppressionReason = "manual"
	ReasonInvalidAddress  SuppressionReason = "invalid_address"
	ReasonPolicyViolation SuppressionReason = "policy_violation"
	ReasonGDPRRequest     SuppressionReason = "gdpr_request"
)

// Valid reports whether r is a known reason.
func (r SuppressionReason) Valid() bool {
	switch r {
	case ReasonHardBounce, ReasonComplaint, ReasonUnsubscribe, ReasonManual,
		ReasonInvalidAddress, ReasonPolicyViolation, ReasonGDPRRequest:
		return true
	}
	return false
}

// SuppressionSource indicates where the suppression signal originated.
type SuppressionSource string

const (
	SourceBounceSweep     SuppressionSource = "bounce_sweep"
	SourceFBLReport       SuppressionSource = "fbl_report"
	SourceUnsubscribeLink SuppressionSource = "unsubscribe_link"
	SourceOneClick        SuppressionSource = "one_click"
	SourceGDPR            SuppressionSource = "gdpr"
	SourceManual          SuppressionSource = "manual"
	SourceImport          SuppressionSource = "import"
)

// Suppression represents a single entry in the suppression list.
type Suppression struct {
	ID        string            `json:"id" db:"id"`
	Email     string            `json:"email" db:"email"`
	Reason    SuppressionReason `json:"reason" db:"reason"`
	Source    SuppressionSource `json:"source" db:"source"`
	Notes     string            `json:"notes,omitempty" db:"notes"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

// IsActive reports whether the entry blocks sends at now.
func (s *Suppression) IsActive(now time.Time) bool {
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}
