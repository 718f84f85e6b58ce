package domain

import (
	"encoding/json"
	"time"
)

// RequestContext carries the caller identity into compliance decisions and
// audit entries.
type RequestContext struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Actor     string `json:"actor,omitempty"`
}

// EmailType distinguishes marketing from transactional mail.
type EmailType string

const (
	EmailTransactional EmailType = "transactional"
	EmailMarketing     EmailType = "marketing"
)

// ParseEmailType defaults unknown or empty values to transactional.
func ParseEmailType(s string) EmailType {
	if EmailType(s) == EmailMarketing {
		return EmailMarketing
	}
	return EmailTransactional
}

// Compliance audit actions.
const (
	ActionSendCheck       = "email_send_check"
	ActionUnsubscribe     = "unsubscribe"
	ActionConsentGranted  = "consent_granted"
	ActionConsentVerified = "consent_verified"
	ActionConsentRevoked  = "consent_revoked"
	ActionDataExport      = "gdpr_export"
	ActionDataDeletion    = "gdpr_deletion"
	ActionComplaint       = "spam_complaint"
)

// Compliance regulations referenced by audit entries.
const (
	RegulationCANSPAM = "can_spam"
	RegulationGDPR    = "gdpr"
	RegulationRFC8058 = "rfc8058"
)

// ComplianceLog is one audit trail entry.
type ComplianceLog struct {
	ID          string          `json:"id" db:"id"`
	Action      string          `json:"action" db:"action"`
	Regulation  string          `json:"regulation,omitempty" db:"regulation"`
	Email       string          `json:"email,omitempty" db:"email"`
	Description string          `json:"description" db:"description"`
	Metadata    json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	IPAddress   string          `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent   string          `json:"user_agent,omitempty" db:"user_agent"`
	Actor       string          `json:"actor,omitempty" db:"actor"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// ComplianceDecision is the Compliance Gate verdict.
type ComplianceDecision struct {
	Allowed bool     `json:"allowed"`
	Reasons []string `json:"reasons"`
}
