package domain

import (
	"encoding/json"
	"time"
)

// SendStatus is the delivery state of a SendLog.
type SendStatus string

const (
	StatusQueued    SendStatus = "queued"
	StatusSent      SendStatus = "sent"
	StatusDelivered SendStatus = "delivered"
	StatusBounced   SendStatus = "bounced"
	StatusFailed    SendStatus = "failed"
	StatusRejected  SendStatus = "rejected"
	StatusDeferred  SendStatus = "deferred"
)

// Rank orders statuses for forward-only transitions. Terminal statuses share
// the highest rank.
func (s SendStatus) Rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusSent:
		return 1
	case StatusDeferred:
		return 2
	case StatusDelivered, StatusBounced, StatusFailed, StatusRejected:
		return 3
	}
	return -1
}

// IsTerminal reports whether no further transition is allowed.
func (s SendStatus) IsTerminal() bool { return s.Rank() == 3 }

// CanTransition reports whether a SendLog may move from s to next. Deferred may
// repeat so retries are counted.
func (s SendStatus) CanTransition(next SendStatus) bool {
	if next.Rank() < 0 {
		return false
	}
	if s == StatusDeferred && next == StatusDeferred {
		return true
	}
	return next.Rank() > s.Rank()
}

// SendLog records one outbound message and its delivery outcome.
type SendLog struct {
	ID           string            `json:"id" db:"id"`
	DomainID     string            `json:"domain_id,omitempty" db:"domain_id"`
	MailboxID    string            `json:"mailbox_id,omitempty" db:"mailbox_id"`
	MessageID    string            `json:"message_id" db:"message_id"`
	QueueID      string            `json:"queue_id,omitempty" db:"queue_id"`
	FromEmail    string            `json:"from_email" db:"from_email"`
	ToEmail      string            `json:"to_email" db:"to_email"`
	Subject      string            `json:"subject" db:"subject"`
	BodyPreview  string            `json:"body_preview,omitempty" db:"body_preview"`
	Status       SendStatus        `json:"status" db:"status"`
	SMTPCode     int               `json:"smtp_code,omitempty" db:"smtp_code"`
	SMTPResponse string            `json:"smtp_response,omitempty" db:"smtp_response"`
	Attempts     int               `json:"attempts" db:"attempts"`
	ClientIP     string            `json:"client_ip,omitempty" db:"client_ip"`
	SendingIP    string            `json:"sending_ip,omitempty" db:"sending_ip"`
	Headers      map[string]string `json:"headers,omitempty" db:"headers"`
	Metadata     json.RawMessage   `json:"metadata,omitempty" db:"metadata"`
	ErrorMessage string            `json:"error_message,omitempty" db:"error_message"`
	SentAt       *time.Time        `json:"sent_at,omitempty" db:"sent_at"`
	DeliveredAt  *time.Time        `json:"delivered_at,omitempty" db:"delivered_at"`
	BouncedAt    *time.Time        `json:"bounced_at,omitempty" db:"bounced_at"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
}

// StatusUpdate is a forward transition applied to a SendLog by message ID.
type StatusUpdate struct {
	Status       SendStatus
	SMTPCode     int
	SMTPResponse string
	ErrorMessage string
	QueueID      string
	At           time.Time
}

// PreviewLimit caps the stored body preview.
const PreviewLimit = 200

// Preview truncates body to PreviewLimit runes.
func Preview(body string) string {
	r := []rune(body)
	if len(r) <= PreviewLimit {
		return body
	}
	return string(r[:PreviewLimit])
}
