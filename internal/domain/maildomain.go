package domain

import (
	"encoding/json"
	"time"
)

// DefaultDKIMSelector is used when a domain is created without a selector.
const DefaultDKIMSelector = "default"

// Domain is a sending domain with its DKIM keys and DNS verification state.
type Domain struct {
	ID                  string          `json:"id" db:"id"`
	Name                string          `json:"name" db:"name"`
	DKIMSelector        string          `json:"dkim_selector" db:"dkim_selector"`
	DKIMPrivateKey      string          `json:"-" db:"dkim_private_key"`
	DKIMPublicKey       string          `json:"dkim_public_key,omitempty" db:"dkim_public_key"`
	SPFVerified         bool            `json:"spf_verified" db:"spf_verified"`
	DKIMVerified        bool            `json:"dkim_verified" db:"dkim_verified"`
	DMARCVerified       bool            `json:"dmarc_verified" db:"dmarc_verified"`
	IsActive            bool            `json:"is_active" db:"is_active"`
	VerificationResults json.RawMessage `json:"verification_results,omitempty" db:"verification_results"`
	LastVerificationAt  *time.Time      `json:"last_verification_at,omitempty" db:"last_verification_at"`
	VerifiedAt          *time.Time      `json:"verified_at,omitempty" db:"verified_at"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	DeletedAt           *time.Time      `json:"-" db:"deleted_at"`
}

// IsFullyVerified reports whether SPF, DKIM and DMARC are all verified.
func (d *Domain) IsFullyVerified() bool {
	return d.SPFVerified && d.DKIMVerified && d.DMARCVerified
}

// VerificationPercentage returns the share of verified records, rounded.
func (d *Domain) VerificationPercentage() int {
	n := 0
	for _, ok := range []bool{d.SPFVerified, d.DKIMVerified, d.DMARCVerified} {
		if ok {
			n++
		}
	}
	return (n*100 + 1) / 3
}

// Selector returns the DKIM selector, falling back to the default.
func (d *Domain) Selector() string {
	if d.DKIMSelector == "" {
		return DefaultDKIMSelector
	}
	return d.DKIMSelector
}

// RecordCheck is the outcome of one DNS TXT verification.
type RecordCheck struct {
	Verified bool    `json:"verified"`
	Record   *string `json:"record"`
}

// VerificationReport is the snapshot persisted after a DNS verification run.
type VerificationReport struct {
	SPF       RecordCheck `json:"spf"`
	DKIM      RecordCheck `json:"dkim"`
	DMARC     RecordCheck `json:"dmarc"`
	CheckedAt time.Time   `json:"checked_at"`
}

// AllVerified reports whether every record in the report verified.
func (r VerificationReport) AllVerified() bool {
	return r.SPF.Verified && r.DKIM.Verified && r.DMARC.Verified
}

// DNSRecord is one record a domain owner must publish.
type DNSRecord struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Value    string `json:"value"`
	Priority int    `json:"priority,omitempty"`
}
