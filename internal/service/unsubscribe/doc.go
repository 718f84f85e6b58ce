// Package unsubscribe manages per-recipient opt-out tokens and the
// unsubscribe state that blocks marketing mail.
//
// Every outbound message carries a link built from a pending token record.
// The record only blocks marketing sends once the recipient confirms it,
// either through the link or through an RFC 8058 one-click POST.
package unsubscribe
