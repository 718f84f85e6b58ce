package domain

import "time"

// OutboundMessage is a send request as accepted by the orchestrator.
type OutboundMessage struct {
	From      string            `json:"from"`
	To        string            `json:"to"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	HTML      bool              `json:"html,omitempty"`
	Type      EmailType         `json:"type,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
	MessageID string            `json:"-"`
}

// MTAMessage is the fully-formed message handed to the MTA.
type MTAMessage struct {
	MessageID string
	From      string
	To        string
	Subject   string
	TextBody  string
	HTMLBody  string
	Headers   map[string]string
}

// MTAReceipt is what the MTA returned on handoff. Sandbox receipts mean the
// message never left the process.
type MTAReceipt struct {
	QueueID  string
	Code     int
	Response string
	Sandbox  bool
	At       time.Time
}

// SendResult is returned by the orchestrator for every send attempt.
type SendResult struct {
	Success   bool     `json:"success"`
	MessageID string   `json:"message_id,omitempty"`
	Sandbox   bool     `json:"sandbox,omitempty"`
	Error     string   `json:"error,omitempty"`
	Reasons   []string `json:"reasons,omitempty"`
	SpamScore *int     `json:"spam_score,omitempty"`
}

// BulkError reports one failed item of a bulk send.
type BulkError struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

// BulkResult aggregates a bulk send.
type BulkResult struct {
	Success int         `json:"success"`
	Failed  int         `json:"failed"`
	Errors  []BulkError `json:"errors"`
}
