// Package mailbox manages sending mailboxes and their daily send counters.
//
// The daily counter is reserved atomically in storage before a handoff and
// released if the handoff fails, so concurrent sends cannot exceed the
// limit. Creation provisions the on-disk maildir and optionally starts a
// warmup schedule; both steps are best effort.
package mailbox
