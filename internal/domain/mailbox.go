package domain

import "time"

// Mailbox is a sending identity under a Domain.
type Mailbox struct {
	ID               string     `json:"id" db:"id"`
	DomainID         string     `json:"domain_id" db:"domain_id"`
	LocalPart        string     `json:"local_part" db:"local_part"`
	Email            string     `json:"email" db:"email"`
	PasswordHash     string     `json:"-" db:"password"`
	QuotaMB          int        `json:"quota_mb" db:"quota_mb"`
	UsedMB           int        `json:"used_mb" db:"used_mb"`
	IsActive         bool       `json:"is_active" db:"is_active"`
	CanSend          bool       `json:"can_send" db:"can_send"`
	CanReceive       bool       `json:"can_receive" db:"can_receive"`
	DailySendLimit   int        `json:"daily_send_limit" db:"daily_send_limit"`
	DailySendCount   int        `json:"daily_send_count" db:"daily_send_count"`
	DailySendResetAt *time.Time `json:"daily_send_reset_at,omitempty" db:"daily_send_reset_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

// SameDay reports whether a and b fall on the same calendar day in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ResetDailyCountIfNeeded zeroes the daily counter when the last reset was not
// today. It reports whether a reset happened.
func (m *Mailbox) ResetDailyCountIfNeeded(now time.Time) bool {
	if m.DailySendResetAt != nil && SameDay(now, *m.DailySendResetAt) {
		return false
	}
	m.DailySendCount = 0
	t := now
	m.DailySendResetAt = &t
	return true
}

// CanSendEmail applies the implicit daily reset and then checks eligibility.
func (m *Mailbox) CanSendEmail(now time.Time) bool {
	if !m.IsActive || !m.CanSend {
		return false
	}
	m.ResetDailyCountIfNeeded(now)
	return m.DailySendCount < m.DailySendLimit
}

// IncrementSendCount records one send against today's counter.
func (m *Mailbox) IncrementSendCount(now time.Time) {
	m.ResetDailyCountIfNeeded(now)
	m.DailySendCount++
}

// QuotaUsagePercent returns used storage as a percentage of quota.
func (m *Mailbox) QuotaUsagePercent() float64 {
	if m.QuotaMB <= 0 {
		return 0
	}
	return float64(m.UsedMB) / float64(m.QuotaMB) * 100
}

// IsQuotaExceeded reports whether storage use has reached the quota.
func (m *Mailbox) IsQuotaExceeded() bool {
	return m.QuotaMB > 0 && m.UsedMB >= m.QuotaMB
}
