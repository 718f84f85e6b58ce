package domain

import (
	"encoding/json"
	"time"
)

// ConsentType is the purpose a consent covers.
type ConsentType string

const (
	ConsentMarketing     ConsentType = "marketing"
	ConsentTransactional ConsentType = "transactional"
	ConsentNewsletter    ConsentType = "newsletter"
	ConsentPromotional   ConsentType = "promotional"
	// ConsentAll is accepted by revoke only.
	ConsentAll ConsentType = "all"
)

// ConsentMethod is how consent was obtained.
type ConsentMethod string

const (
	MethodOptIn              ConsentMethod = "opt_in"
	MethodDoubleOptIn        ConsentMethod = "double_opt_in"
	MethodImplicit           ConsentMethod = "implicit"
	MethodLegitimateInterest ConsentMethod = "legitimate_interest"
)

// Valid reports whether m is a known method.
func (m ConsentMethod) Valid() bool {
	switch m {
	case MethodOptIn, MethodDoubleOptIn, MethodImplicit, MethodLegitimateInterest:
		return true
	}
	return false
}

// ConsentRecord is a GDPR consent grant for one email and purpose.
type ConsentRecord struct {
	ID                string          `json:"id" db:"id"`
	Email             string          `json:"email" db:"email"`
	ConsentType       ConsentType     `json:"consent_type" db:"consent_type"`
	Granted           bool            `json:"granted" db:"granted"`
	ConsentMethod     ConsentMethod   `json:"consent_method" db:"consent_method"`
	VerificationToken string          `json:"-" db:"verification_token"`
	VerifiedAt        *time.Time      `json:"verified_at,omitempty" db:"verified_at"`
	ExpiresAt         *time.Time      `json:"expires_at,omitempty" db:"expires_at"`
	RevokedAt         *time.Time      `json:"revoked_at,omitempty" db:"revoked_at"`
	IPAddress         string          `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent         string          `json:"user_agent,omitempty" db:"user_agent"`
	Metadata          json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// IsValid reports whether the consent currently permits sending.
func (c *ConsentRecord) IsValid(now time.Time) bool {
	if !c.Granted || c.RevokedAt != nil {
		return false
	}
	if c.ConsentMethod == MethodDoubleOptIn && c.VerifiedAt == nil {
		return false
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return false
	}
	return true
}
