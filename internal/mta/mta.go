// Package mta hands composed messages to the local mail transfer agent.
//
// SMTPSender relays to Postfix over SMTP and reports the queue ID Postfix
// assigned. SandboxSender reports an immediate
// sandbox receipt without any network traffic.
package mta

import (
	"context"
	"sync"
	"time"

	"github.com/ignite/mailcore/internal/domain"
)

// Sender hands one message to the MTA.
type Sender interface {
	Send(ctx context.Context, msg *domain.MTAMessage) (*domain.MTAReceipt, error)
}

// SandboxResponse is the response text recorded for sandbox sends.
const SandboxResponse = "Sandbox mode - email not actually sent"

// SandboxSender accepts every message without delivering it. A plain sandbox
// keeps nothing; a recording sandbox keeps the most recent messages.
type SandboxSender struct {
	mu    sync.Mutex
	keep  int
	ring  []domain.MTAMessage
	next  int
	total int
}

// NewSandboxSender creates a sandbox sender that only issues receipts.
func NewSandboxSender() *SandboxSender {
	return &SandboxSender{}
}

// NewRecordingSandboxSender creates a sandbox sender that retains the last n
// messages for inspection.
func NewRecordingSandboxSender(n int) *SandboxSender {
	if n < 1 {
		n = 1
	}
	return &SandboxSender{keep: n, ring: make([]domain.MTAMessage, 0, n)}
}

// Send implements Sender.
func (s *SandboxSender) Send(ctx context.Context, msg *domain.MTAMessage) (*domain.MTAReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.keep > 0 {
		s.mu.Lock()
		if len(s.ring) < s.keep {
			s.ring = append(s.ring, *msg)
		} else {
			s.ring[s.next] = *msg
		}
		s.next = (s.next + 1) % s.keep
		s.total++
		s.mu.Unlock()
	}
	return &domain.MTAReceipt{Code: 250, Response: SandboxResponse, Sandbox: true, At: time.Now()}, nil
}

// Sent returns the retained messages, oldest first. It is always empty for a
// plain sandbox.
func (s *SandboxSender) Sent() []domain.MTAMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ring) < s.keep {
		return append([]domain.MTAMessage(nil), s.ring...)
	}
	out := make([]domain.MTAMessage, 0, len(s.ring))
	out = append(out, s.ring[s.next:]...)
	return append(out, s.ring[:s.next]...)
}

// Recorded is the number of messages seen by a recording sandbox, including
// those already evicted.
func (s *SandboxSender) Recorded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}
