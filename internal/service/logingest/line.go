package logingest

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
)

// Kind is the type of information a log line carries.
type Kind int

const (
	KindUnknown Kind = iota
	KindMessageID
	KindFrom
	KindDelivery
)

var (
	queueIDRe   = regexp.MustCompile(`postfix/[\w-]+\[\d+\]: ([0-9A-Za-z]+):`)
	messageIDRe = regexp.MustCompile(`message-id=<([^>]+)>`)
	fromRe      = regexp.MustCompile(`from=<([^>]*)>`)
	toRe        = regexp.MustCompile(`to=<([^>]+)>`)
	statusRe    = regexp.MustCompile(`status=(sent|bounced|deferred)(?: \((.*)\))?`)
	dsnRe       = regexp.MustCompile(`dsn=([245])\.\d{1,3}\.\d{1,3}`)
	replyCodeRe = regexp.MustCompile(`\b([245]\d\d)[ -]`)
)

// Status values found in delivery lines.
const (
	StatusSent     = "sent"
	StatusBounced  = "bounced"
	StatusDeferred = "deferred"
)

// Line is one parsed log line.
type Line struct {
	Kind      Kind
	QueueID   string
	MessageID string
	From      string
	To        string
	Status    string
	Code      int
	Response  string
	Raw       string
}

// Hash is the idempotency key of the line.
func (l Line) Hash() string {
	sum := sha256.Sum256([]byte(l.Raw))
	return hex.EncodeToString(sum[:])
}

// ParseLine extracts queue-correlated information from a raw log line. Lines
// without a queue ID, including NOQUEUE rejections, yield KindUnknown.
func ParseLine(raw string) Line {
	l := Line{Raw: raw}
	loc := queueIDRe.FindStringSubmatchIndex(raw)
	if loc == nil || raw[loc[2]:loc[3]] == "NOQUEUE" {
		return l
	}
	l.QueueID = raw[loc[2]:loc[3]]
	rest := raw[loc[1]:]

	if sm := statusRe.FindStringSubmatch(rest); sm != nil {
		tm := toRe.FindStringSubmatch(rest)
		if tm == nil {
			return l
		}
		l.Kind = KindDelivery
		l.To = strings.ToLower(tm[1])
		l.Status = sm[1]
		l.Response = sm[2]
		l.Code = replyCode(rest, sm[2])
		return l
	}
	if mm := messageIDRe.FindStringSubmatch(rest); mm != nil {
		l.Kind = KindMessageID
		l.MessageID = mm[1]
		return l
	}
	if fm := fromRe.FindStringSubmatch(rest); fm != nil {
		l.Kind = KindFrom
		l.From = strings.ToLower(fm[1])
		return l
	}
	return l
}

// replyCode finds the SMTP reply code in the status response, falling back to
// the DSN class. Zero means none was present.
func replyCode(line, response string) int {
	if m := replyCodeRe.FindStringSubmatch(response + " "); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	if m := dsnRe.FindStringSubmatch(line); m != nil {
		class, _ := strconv.Atoi(m[1])
		return class*100 + 50
	}
	return 0
}
