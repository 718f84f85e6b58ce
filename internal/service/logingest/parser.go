package logingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ignite/mailcore/internal/domain"
)

// Default codes when a status line carries none.
const (
	DefaultSentCode      = 250
	DefaultBounceCode    = 550
	DefaultBounceReason  = "Unknown bounce reason"
	defaultReaderBufSize = 64 * 1024
)

// Reputations is fed with bounces seen in the log.
type Reputations interface {
	RecordBounce(ctx context.Context, ip string) error
}

// AutoSuppressor suppresses recipients that keep hard bouncing.
type AutoSuppressor interface {
	CheckRecipient(ctx context.Context, email string) (bool, error)
}

// Stats summarizes one pass.
type Stats struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Bounced   int `json:"bounced"`
	Deferred  int `json:"deferred"`
	Skipped   int `json:"skipped"`
}

// Parser applies Postfix log lines to send logs.
type Parser struct {
	path        string
	repo        Repository
	offsets     OffsetStore
	reputations Reputations
	suppressor  AutoSuppressor
	sendingIP   string
	now         func() time.Time
}

// NewParser creates a parser for the log at path. Bounces count against
// sendingIP.
func NewParser(path string, repo Repository, offsets OffsetStore, reputations Reputations, suppressor AutoSuppressor, sendingIP string) *Parser {
	return &Parser{
		path:        path,
		repo:        repo,
		offsets:     offsets,
		reputations: reputations,
		suppressor:  suppressor,
		sendingIP:   sendingIP,
		now:         time.Now,
	}
}

// Parse reads new complete lines since the last committed offset. The offset
// advances only when every line was applied; a failed pass is retried from
// the same position.
func (p *Parser) Parse(ctx context.Context) (Stats, error) {
	var stats Stats
	if p.path == "" {
		return stats, ErrNoLogPath
	}

	f, err := os.Open(p.path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("[LogIngest] Postfix log file not found: %s", p.path)
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return stats, fmt.Errorf("stat log: %w", err)
	}
	offset, err := p.offsets.Load(ctx, p.path)
	if err != nil {
		return stats, fmt.Errorf("load offset: %w", err)
	}
	if fi.Size() < offset {
		log.Printf("[LogIngest] %s shrank from %d to %d bytes, assuming rotation", p.path, offset, fi.Size())
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return stats, fmt.Errorf("seek log: %w", err)
	}

	r := bufio.NewReaderSize(f, defaultReaderBufSize)
	pos := offset
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		raw, err := r.ReadString('\n')
		if errors.Is(err, io.EOF) {
			// A trailing partial line is picked up once it is complete.
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read log: %w", err)
		}
		if err := p.apply(ctx, strings.TrimRight(raw, "\r\n"), &stats); err != nil {
			return stats, err
		}
		pos += int64(len(raw))
		stats.Processed++
	}

	if pos != offset {
		if err := p.offsets.Save(ctx, p.path, pos); err != nil {
			return stats, fmt.Errorf("save offset: %w", err)
		}
	}
	return stats, nil
}

func (p *Parser) apply(ctx context.Context, raw string, stats *Stats) error {
	l := ParseLine(raw)
	switch l.Kind {
	case KindMessageID:
		if _, err := p.repo.LinkQueueID(ctx, l.QueueID, l.MessageID); err != nil {
			return fmt.Errorf("link queue id %s: %w", l.QueueID, err)
		}
		metricLines.WithLabelValues("message_id").Inc()
		return nil
	case KindFrom:
		if err := p.repo.EnsureSendLog(ctx, l.QueueID, l.From, p.sendingIP, p.now()); err != nil {
			return fmt.Errorf("ensure send log %s: %w", l.QueueID, err)
		}
		metricLines.WithLabelValues("from").Inc()
		return nil
	case KindDelivery:
		return p.applyDelivery(ctx, l, stats)
	}
	stats.Skipped++
	metricLines.WithLabelValues("skipped").Inc()
	return nil
}

func (p *Parser) applyDelivery(ctx context.Context, l Line, stats *Stats) error {
	now := p.now()
	d := Delivery{
		Hash:    l.Hash(),
		QueueID: l.QueueID,
		To:      l.To,
		Update: domain.StatusUpdate{
			SMTPCode:     l.Code,
			SMTPResponse: l.Response,
			At:           now,
		},
	}
	switch l.Status {
	case StatusSent:
		d.Update.Status = domain.StatusDelivered
		if d.Update.SMTPCode == 0 {
			d.Update.SMTPCode = DefaultSentCode
		}
	case StatusBounced:
		d.Update.Status = domain.StatusBounced
		if d.Update.SMTPCode == 0 {
			d.Update.SMTPCode = DefaultBounceCode
		}
		if d.Update.SMTPResponse == "" {
			d.Update.SMTPResponse = DefaultBounceReason
		}
	case StatusDeferred:
		d.Update.Status = domain.StatusDeferred
		d.Retry = true
	}

	sl, applied, err := p.repo.ApplyDelivery(ctx, d)
	if err != nil {
		return fmt.Errorf("apply %s for %s: %w", l.Status, l.QueueID, err)
	}
	if !applied {
		stats.Skipped++
		metricLines.WithLabelValues("duplicate").Inc()
		return nil
	}
	metricLines.WithLabelValues(l.Status).Inc()

	switch l.Status {
	case StatusSent:
		stats.Sent++
	case StatusDeferred:
		stats.Deferred++
	case StatusBounced:
		stats.Bounced++
		return p.bounced(ctx, sl, d.Update, l.Raw, now)
	}
	return nil
}

func (p *Parser) bounced(ctx context.Context, sl *domain.SendLog, u domain.StatusUpdate, raw string, at time.Time) error {
	b := domain.NewBounce(sl.ID, sl.ToEmail, u.SMTPCode, u.SMTPResponse, raw, at)
	if _, err := p.repo.CreateBounce(ctx, b); err != nil {
		return fmt.Errorf("create bounce for %s: %w", sl.ID, err)
	}

	if p.sendingIP != "" {
		if err := p.reputations.RecordBounce(ctx, p.sendingIP); err != nil {
			log.Printf("[LogIngest] Failed to record bounce for %s: %v", p.sendingIP, err)
		}
	}
	if b.BounceType.IsHard() && p.suppressor != nil {
		if _, err := p.suppressor.CheckRecipient(ctx, sl.ToEmail); err != nil {
			log.Printf("[LogIngest] Auto-suppression check failed: %v", err)
		}
	}
	return nil
}
