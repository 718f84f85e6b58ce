package domain

import (
	"math"
	"time"
)

// MinSendScore is the lowest reputation score that still permits sending.
const MinSendScore = 30

// IPReputation tracks delivery outcomes for one sending IP.
type IPReputation struct {
	ID               string     `json:"id" db:"id"`
	IPAddress        string     `json:"ip_address" db:"ip_address"`
	ReputationScore  int        `json:"reputation_score" db:"reputation_score"`
	SpamReports      int        `json:"spam_reports" db:"spam_reports"`
	SuccessfulSends  int        `json:"successful_sends" db:"successful_sends"`
	FailedSends      int        `json:"failed_sends" db:"failed_sends"`
	BounceRate       float64    `json:"bounce_rate" db:"bounce_rate"`
	IsBlacklisted    bool       `json:"is_blacklisted" db:"is_blacklisted"`
	BlacklistSources []string   `json:"blacklist_sources,omitempty" db:"blacklist_sources"`
	LastCheckedAt    *time.Time `json:"last_checked_at,omitempty" db:"last_checked_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// NewIPReputation returns a fresh record with a perfect score.
func NewIPReputation(ip string) *IPReputation {
	return &IPReputation{IPAddress: ip, ReputationScore: 100}
}

// Total is the number of recorded send attempts.
func (r *IPReputation) Total() int { return r.SuccessfulSends + r.FailedSends }

// Recompute derives the score from the aggregate counters. With no sends the
// score is left alone.
func (r *IPReputation) Recompute() {
	total := r.Total()
	if total == 0 {
		return
	}
	successRate := float64(r.SuccessfulSends) / float64(total) * 100
	spamRate := float64(r.SpamReports) / float64(total) * 100
	score := successRate - spamRate*10 - r.BounceRate
	r.ReputationScore = int(math.Max(0, math.Min(100, score)))
}

// CanSend reports whether the IP may be used.
func (r *IPReputation) CanSend() bool {
	return !r.IsBlacklisted && r.ReputationScore >= MinSendScore
}

// Status buckets the score for display.
func (r *IPReputation) Status() string {
	if r.IsBlacklisted {
		return "blacklisted"
	}
	switch s := r.ReputationScore; {
	case s >= 80:
		return "excellent"
	case s >= 60:
		return "good"
	case s >= 40:
		return "fair"
	case s >= 20:
		return "poor"
	}
	return "very_poor"
}
