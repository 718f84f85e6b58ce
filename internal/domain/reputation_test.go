package domain

import "testing"

func TestIPReputation_Recompute(t *testing.T) {
	tests := []struct {
		name string
		r    IPReputation
		want int
	}{
		{"no sends keeps score", IPReputation{ReputationScore: 100}, 100},
		{"all successful", IPReputation{SuccessfulSends: 100}, 100},
		{"half failed", IPReputation{SuccessfulSends: 50, FailedSends: 50}, 50},
		{"spam heavy", IPReputation{SuccessfulSends: 90, FailedSends: 10, SpamReports: 5}, 40},
		{"bounce rate", IPReputation{SuccessfulSends: 100, BounceRate: 25}, 75},
		{"clamped at zero", IPReputation{SuccessfulSends: 10, SpamReports: 10}, 0},
	}

	for _, tt := range tests {
		r := tt.r
		r.Recompute()
		if r.ReputationScore != tt.want {
			t.Errorf("%s: score = %d, want %d", tt.name, r.ReputationScore, tt.want)
		}
	}
}

func TestIPReputation_CanSend(t *testing.T) {
	r := NewIPReputation("203.0.113.10")
	if !r.CanSend() {
		t.Error("fresh IP should send")
	}
	r.ReputationScore = 29
	if r.CanSend() {
		t.Error("score 29 should not send")
	}
	r.ReputationScore = 30
	if !r.CanSend() {
		t.Error("score 30 should send")
	}
	r.IsBlacklisted = true
	if r.CanSend() {
		t.Error("blacklisted IP should not send")
	}
}

func TestIPReputation_Status(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, "excellent"}, {80, "excellent"}, {79, "good"}, {60, "good"},
		{59, "fair"}, {40, "fair"}, {39, "poor"}, {20, "poor"}, {19, "very_poor"},
	}
	for _, tt := range tests {
		r := IPReputation{ReputationScore: tt.score}
		if got := r.Status(); got != tt.want {
			t.Errorf("Status(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
