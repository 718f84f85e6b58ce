package domain

import "time"

// ListType scopes an unsubscribe.
type ListType string

const (
	ListAll           ListType = "all"
	ListMarketing     ListType = "marketing"
	ListTransactional ListType = "transactional"
)

// Unsubscribe records an opt-out. Only marketing sends are blocked by it.
type Unsubscribe struct {
	ID             string     `json:"id" db:"id"`
	Email          string     `json:"email" db:"email"`
	DomainID       string     `json:"domain_id,omitempty" db:"domain_id"`
	ListType       ListType   `json:"list_type" db:"list_type"`
	Token          string     `json:"-" db:"unsubscribe_token"`
	Reason         string     `json:"reason,omitempty" db:"reason"`
	IPAddress      string     `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent      string     `json:"user_agent,omitempty" db:"user_agent"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at,omitempty" db:"unsubscribed_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// IsProcessed reports whether the recipient confirmed the opt-out.
func (u *Unsubscribe) IsProcessed() bool { return u.UnsubscribedAt != nil }
