package domain

import (
	"testing"
	"time"
)

func TestClassifyBounceType(t *testing.T) {
	tests := []struct {
		code int
		want BounceType
	}{
		{550, BounceHard}, {500, BounceHard}, {599, BounceHard},
		{450, BounceSoft}, {400, BounceSoft}, {421, BounceSoft},
		{200, BounceUnknown}, {250, BounceUnknown}, {0, BounceUnknown}, {600, BounceUnknown},
	}

	for _, tt := range tests {
		got := ClassifyBounceType(tt.code)
		if got != tt.want {
			t.Errorf("ClassifyBounceType(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestClassifyBounceCategory(t *testing.T) {
	tests := []struct {
		response string
		want     BounceCategory
	}{
		{"550 5.1.1 User unknown", CategoryInvalidAddress},
		{"No such user here", CategoryInvalidAddress},
		{"452 Mailbox full", CategoryMailboxFull},
		{"quota exceeded for recipient", CategoryMailboxFull},
		{"554 Message blocked as spam", CategorySpamRelated},
		{"listed on blacklist", CategorySpamRelated},
		{"Domain not found", CategoryDNSError},
		{"connection timed out", CategoryConnectionError},
		{"Relay denied", CategoryPolicyRelated},
		{"message rejected by filter", CategoryContentRejected},
		{"something odd", CategoryOther},
		{"", CategoryOther},
	}

	for _, tt := range tests {
		got := ClassifyBounceCategory(tt.response)
		if got != tt.want {
			t.Errorf("ClassifyBounceCategory(%q) = %q, want %q", tt.response, got, tt.want)
		}
	}
}

func TestClassifyBounceCategory_MailboxFullIgnoresCode(t *testing.T) {
	for _, code := range []int{452, 552, 200} {
		b := NewBounce("log-1", "user@example.com", code, "mailbox full", "", time.Now())
		if b.BounceCategory != CategoryMailboxFull {
			t.Errorf("code %d: category = %q, want mailbox_full", code, b.BounceCategory)
		}
	}
}

func TestBounceTypeScopes(t *testing.T) {
	if !BounceHard.IsHard() || !BouncePermanent.IsHard() {
		t.Error("hard and permanent should be hard")
	}
	if !BounceSoft.IsSoft() || !BounceTransient.IsSoft() {
		t.Error("soft and transient should be soft")
	}
	if BounceUnknown.IsHard() || BounceUnknown.IsSoft() {
		t.Error("unknown should be neither hard nor soft")
	}
}
