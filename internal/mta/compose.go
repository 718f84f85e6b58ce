package mta

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"sort"
	"strings"
	"time"

	"github.com/jaytaylor/html2text"

	"github.com/ignite/mailcore/internal/domain"
)

// reserved headers are written by Compose and cannot be overridden.
var reserved = map[string]bool{
	"From":                      true,
	"To":                        true,
	"Subject":                   true,
	"Date":                      true,
	"Message-Id":                true,
	"Mime-Version":              true,
	"Content-Type":              true,
	"Content-Transfer-Encoding": true,
}

// ValidHeaderName reports whether k is an RFC 5322 field name: one or more
// printable ASCII characters other than colon.
func ValidHeaderName(k string) bool {
	if k == "" {
		return false
	}
	for i := 0; i < len(k); i++ {
		if c := k[i]; c < 33 || c > 126 || c == ':' {
			return false
		}
	}
	return true
}

// Compose renders msg as an RFC 5322 message. An HTML body produces a
// multipart/alternative message with a generated text part when none is
// given.
func Compose(msg *domain.MTAMessage, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	h := func(k, v string) {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, v)
	}

	h("From", msg.From)
	h("To", msg.To)
	h("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	h("Date", now.Format(time.RFC1123Z))
	h("Message-ID", "<"+msg.MessageID+">")
	h("MIME-Version", "1.0")

	keys := make([]string, 0, len(msg.Headers))
	for k := range msg.Headers {
		if !ValidHeaderName(k) {
			return nil, fmt.Errorf("compose: invalid header name %q", k)
		}
		if reserved[textproto.CanonicalMIMEHeaderKey(k)] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := strings.NewReplacer("\r", "", "\n", "").Replace(msg.Headers[k])
		h(k, v)
	}

	if msg.HTMLBody == "" {
		h("Content-Type", `text/plain; charset="utf-8"`)
		h("Content-Transfer-Encoding", "quoted-printable")
		buf.WriteString("\r\n")
		if err := writeQP(&buf, msg.TextBody); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	text := msg.TextBody
	if text == "" {
		var err error
		if text, err = html2text.FromString(msg.HTMLBody, html2text.Options{}); err != nil {
			text = msg.HTMLBody
		}
	}

	mw := multipart.NewWriter(&buf)
	h("Content-Type", `multipart/alternative; boundary="`+mw.Boundary()+`"`)
	buf.WriteString("\r\n")
	for _, part := range []struct{ ctype, body string }{
		{`text/plain; charset="utf-8"`, text},
		{`text/html; charset="utf-8"`, msg.HTMLBody},
	} {
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.ctype},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, err
		}
		if err := writeQP(pw, part.body); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type writer interface {
	Write(p []byte) (int, error)
}

func writeQP(w writer, body string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(body)); err != nil {
		return err
	}
	return qp.Close()
}
