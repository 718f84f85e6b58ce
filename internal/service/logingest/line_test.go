package logingest

import "testing"

const (
	lineCleanup  = "Oct 16 10:00:00 mx postfix/cleanup[2001]: 4F3A21C0D2: message-id=<abc123@example.com>"
	lineQmgr     = "Oct 16 10:00:00 mx postfix/qmgr[1999]: 4F3A21C0D2: from=<News@Example.com>, size=1820, nrcpt=1 (queue active)"
	lineSent     = "Oct 16 10:00:01 mx postfix/smtp[2002]: 4F3A21C0D2: to=<user@dest.test>, relay=mx.dest.test[192.0.2.25]:25, delay=0.9, dsn=2.0.0, status=sent (250 2.0.0 OK 1729072801 x12-v6si)"
	lineBounced  = "Oct 16 10:00:01 mx postfix/smtp[2002]: 4F3A21C0D2: to=<user@dest.test>, relay=mx.dest.test[192.0.2.25]:25, dsn=5.1.1, status=bounced (host mx.dest.test[192.0.2.25] said: 550 5.1.1 <user@dest.test>: Recipient address rejected: User unknown (in reply to RCPT TO command))"
	lineDeferred = "Oct 16 10:00:01 mx postfix/smtp[2002]: 4F3A21C0D2: to=<user@dest.test>, relay=none, delay=30, dsn=4.4.1, status=deferred (connect to mx.dest.test[192.0.2.25]:25: Connection timed out)"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		kind     Kind
		queueID  string
		status   string
		code     int
		response string
	}{
		{name: "message id", raw: lineCleanup, kind: KindMessageID, queueID: "4F3A21C0D2"},
		{name: "from", raw: lineQmgr, kind: KindFrom, queueID: "4F3A21C0D2"},
		{name: "sent", raw: lineSent, kind: KindDelivery, queueID: "4F3A21C0D2", status: StatusSent, code: 250, response: "250 2.0.0 OK 1729072801 x12-v6si"},
		{name: "bounced", raw: lineBounced, kind: KindDelivery, queueID: "4F3A21C0D2", status: StatusBounced, code: 550},
		{name: "deferred uses dsn class", raw: lineDeferred, kind: KindDelivery, queueID: "4F3A21C0D2", status: StatusDeferred, code: 450},
		{name: "long queue id", raw: "postfix/smtp[1]: 4Tb7Vh0Z3Nz9sqk: to=<a@b.test>, status=sent (250 ok)", kind: KindDelivery, queueID: "4Tb7Vh0Z3Nz9sqk", status: StatusSent, code: 250, response: "250 ok"},
		{name: "noqueue", raw: "postfix/smtpd[9]: NOQUEUE: reject: RCPT from unknown[192.0.2.1]: 554 5.7.1 Relay access denied", kind: KindUnknown},
		{name: "no queue id", raw: "postfix/anvil[77]: statistics: max connection rate 1/60s", kind: KindUnknown},
		{name: "garbage", raw: "not a postfix line", kind: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := ParseLine(tt.raw)
			if l.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", l.Kind, tt.kind)
			}
			if l.QueueID != tt.queueID {
				t.Errorf("QueueID = %q, want %q", l.QueueID, tt.queueID)
			}
			if l.Status != tt.status {
				t.Errorf("Status = %q, want %q", l.Status, tt.status)
			}
			if l.Code != tt.code {
				t.Errorf("Code = %d, want %d", l.Code, tt.code)
			}
			if tt.response != "" && l.Response != tt.response {
				t.Errorf("Response = %q, want %q", l.Response, tt.response)
			}
		})
	}
}

func TestParseLine_Fields(t *testing.T) {
	if got := ParseLine(lineCleanup).MessageID; got != "abc123@example.com" {
		t.Errorf("MessageID = %q", got)
	}
	if got := ParseLine(lineQmgr).From; got != "news@example.com" {
		t.Errorf("From = %q", got)
	}
	l := ParseLine(lineBounced)
	if l.To != "user@dest.test" {
		t.Errorf("To = %q", l.To)
	}
	want := "host mx.dest.test[192.0.2.25] said: 550 5.1.1 <user@dest.test>: Recipient address rejected: User unknown (in reply to RCPT TO command)"
	if l.Response != want {
		t.Errorf("Response = %q", l.Response)
	}
}

func TestLineHash(t *testing.T) {
	a, b := ParseLine(lineSent), ParseLine(lineSent)
	if a.Hash() != b.Hash() || len(a.Hash()) != 64 {
		t.Errorf("hash not stable: %q %q", a.Hash(), b.Hash())
	}
	if a.Hash() == ParseLine(lineBounced).Hash() {
		t.Error("distinct lines share a hash")
	}
}
