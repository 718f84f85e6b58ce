// Package sending is the send orchestrator.
//
// Send runs the pre-send gates in a fixed order and stops at the first one
// that fails:
//
//  1. sender mailbox exists
//  2. mailbox is active, may send and is under its daily limit
//  3. sending domain is fully verified
//  4. compliance gate (suppression, unsubscribe, consent, mailbox)
//  5. spam filter does not recommend REJECT
//  6. sending IP reputation allows sending
//  7. content validation has no blocking issues
//
// A passing message reserves a daily slot on the mailbox, gets a message ID,
// unsubscribe headers and footer, and a queued SendLog before it is handed to
// the MTA. Every outcome is reported as a domain.SendResult; Send never
// returns an error.
package sending
