package domain

import (
	"testing"
	"time"
)

func TestConsentRecord_IsValid(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		c    ConsentRecord
		want bool
	}{
		{"granted opt-in", ConsentRecord{Granted: true, ConsentMethod: MethodOptIn}, true},
		{"not granted", ConsentRecord{Granted: false, ConsentMethod: MethodOptIn}, false},
		{"revoked", ConsentRecord{Granted: true, ConsentMethod: MethodOptIn, RevokedAt: &past}, false},
		{"double opt-in unverified", ConsentRecord{Granted: true, ConsentMethod: MethodDoubleOptIn}, false},
		{"double opt-in verified", ConsentRecord{Granted: true, ConsentMethod: MethodDoubleOptIn, VerifiedAt: &past}, true},
		{"expired", ConsentRecord{Granted: true, ConsentMethod: MethodImplicit, ExpiresAt: &past}, false},
		{"expires later", ConsentRecord{Granted: true, ConsentMethod: MethodLegitimateInterest, ExpiresAt: &future}, true},
	}

	for _, tt := range tests {
		if got := tt.c.IsValid(now); got != tt.want {
			t.Errorf("%s: IsValid() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
