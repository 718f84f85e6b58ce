package logingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailcore/internal/domain"
)

type mockRepo struct {
	mu      sync.Mutex
	logs    []*domain.SendLog
	events  map[string]bool
	bounces map[string]*domain.Bounce
	failOn  string
}

func newMockRepo() *mockRepo {
	return &mockRepo{events: map[string]bool{}, bounces: map[string]*domain.Bounce{}}
}

func (m *mockRepo) byQueue(queueID string) *domain.SendLog {
	for _, l := range m.logs {
		if l.QueueID == queueID {
			return l
		}
	}
	return nil
}

func (m *mockRepo) LinkQueueID(_ context.Context, queueID, messageID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs {
		if l.MessageID == messageID {
			l.QueueID = queueID
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) EnsureSendLog(_ context.Context, queueID, from, sendingIP string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byQueue(queueID) != nil {
		return nil
	}
	m.logs = append(m.logs, &domain.SendLog{
		ID: fmt.Sprintf("sl-%d", len(m.logs)+1), MessageID: queueID, QueueID: queueID,
		FromEmail: from, SendingIP: sendingIP, Status: domain.StatusQueued, CreatedAt: at,
	})
	return nil
}

func (m *mockRepo) ApplyDelivery(_ context.Context, d Delivery) (*domain.SendLog, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.QueueID == m.failOn {
		return nil, false, fmt.Errorf("db down")
	}
	if m.events[d.Hash] {
		return nil, false, nil
	}
	l := m.byQueue(d.QueueID)
	if l == nil || !l.Status.CanTransition(d.Update.Status) {
		m.events[d.Hash] = true
		return nil, false, nil
	}
	m.events[d.Hash] = true
	l.Status = d.Update.Status
	l.SMTPCode = d.Update.SMTPCode
	l.SMTPResponse = d.Update.SMTPResponse
	if l.ToEmail == "" {
		l.ToEmail = d.To
	}
	if d.Retry {
		l.Attempts++
	}
	cp := *l
	return &cp, true, nil
}

func (m *mockRepo) CreateBounce(_ context.Context, b *domain.Bounce) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bounces[b.SendLogID]; ok {
		return false, nil
	}
	m.bounces[b.SendLogID] = b
	return true, nil
}

type memOffsets struct {
	mu  sync.Mutex
	off map[string]int64
}

func (o *memOffsets) Load(_ context.Context, path string) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.off[path], nil
}

func (o *memOffsets) Save(_ context.Context, path string, offset int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.off[path] = offset
	return nil
}

type fakeReputations struct{ bounces map[string]int }

func (f *fakeReputations) RecordBounce(_ context.Context, ip string) error {
	f.bounces[ip]++
	return nil
}

type fakeSuppressor struct{ checked []string }

func (f *fakeSuppressor) CheckRecipient(_ context.Context, email string) (bool, error) {
	f.checked = append(f.checked, email)
	return false, nil
}

type fixture struct {
	parser  *Parser
	path    string
	repo    *mockRepo
	offsets *memOffsets
	reps    *fakeReputations
	supp    *fakeSuppressor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		path:    filepath.Join(t.TempDir(), "mail.log"),
		repo:    newMockRepo(),
		offsets: &memOffsets{off: map[string]int64{}},
		reps:    &fakeReputations{bounces: map[string]int{}},
		supp:    &fakeSuppressor{},
	}
	f.parser = NewParser(f.path, f.repo, f.offsets, f.reps, f.supp, "203.0.113.10")
	return f
}

func (f *fixture) write(t *testing.T, lines ...string) {
	t.Helper()
	fh, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	defer fh.Close()
	for _, l := range lines {
		_, err := fh.WriteString(l + "\n")
		require.NoError(t, err)
	}
}

func (f *fixture) seed(messageID string) {
	f.repo.logs = append(f.repo.logs, &domain.SendLog{
		ID: "sl-api", MessageID: messageID, FromEmail: "news@example.com",
		ToEmail: "user@dest.test", Status: domain.StatusSent, Attempts: 1,
	})
}

func TestParse_MissingFile(t *testing.T) {
	f := newFixture(t)
	stats, err := f.parser.Parse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestParse_NoPath(t *testing.T) {
	p := NewParser("", newMockRepo(), &memOffsets{off: map[string]int64{}}, nil, nil, "")
	_, err := p.Parse(context.Background())
	assert.ErrorIs(t, err, ErrNoLogPath)
}

func TestParse_DeliveredLinksByMessageID(t *testing.T) {
	f := newFixture(t)
	f.seed("abc123@example.com")
	f.write(t, lineCleanup, lineQmgr, lineSent)

	stats, err := f.parser.Parse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Processed: 3, Sent: 1}, stats)

	require.Len(t, f.repo.logs, 1)
	l := f.repo.logs[0]
	assert.Equal(t, "4F3A21C0D2", l.QueueID)
	assert.Equal(t, domain.StatusDelivered, l.Status)
	assert.Equal(t, 250, l.SMTPCode)
}

func TestParse_StubForUnknownMessage(t *testing.T) {
	f := newFixture(t)
	f.write(t, lineQmgr, lineSent)

	_, err := f.parser.Parse(context.Background())
	require.NoError(t, err)
	require.Len(t, f.repo.logs, 1)
	l := f.repo.logs[0]
	assert.Equal(t, "news@example.com", l.FromEmail)
	assert.Equal(t, "user@dest.test", l.ToEmail)
	assert.Equal(t, domain.StatusDelivered, l.Status)
}

func TestParse_BounceCreatesRecordAndFeedsReputation(t *testing.T) {
	f := newFixture(t)
	f.seed("abc123@example.com")
	f.write(t, lineCleanup, lineBounced)

	stats, err := f.parser.Parse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Bounced)

	b := f.repo.bounces["sl-api"]
	require.NotNil(t, b)
	assert.Equal(t, domain.BounceHard, b.BounceType)
	assert.Equal(t, domain.CategoryInvalidAddress, b.BounceCategory)
	assert.Equal(t, 550, b.SMTPCode)
	assert.Equal(t, 1, f.reps.bounces["203.0.113.10"])
	assert.Equal(t, []string{"user@dest.test"}, f.supp.checked)
}

func TestParse_ReplayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seed("abc123@example.com")
	f.write(t, lineCleanup, lineDeferred, lineBounced)

	_, err := f.parser.Parse(context.Background())
	require.NoError(t, err)

	// Simulate a lost offset: the same region is read again.
	f.offsets.off = map[string]int64{}
	stats, err := f.parser.Parse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Bounced)
	assert.Equal(t, 0, stats.Deferred)
	assert.Equal(t, 2, stats.Skipped)

	l := f.repo.logs[0]
	assert.Equal(t, 2, l.Attempts)
	assert.Equal(t, domain.StatusBounced, l.Status)
	assert.Len(t, f.repo.bounces, 1)
	assert.Equal(t, 1, f.reps.bounces["203.0.113.10"])
}

func TestParse_DeferredRetriesCountAttempts(t *testing.T) {
	f := newFixture(t)
	f.seed("abc123@example.com")
	retry := "Oct 16 10:05:01 mx postfix/smtp[2009]: 4F3A21C0D2: to=<user@dest.test>, relay=none, delay=330, dsn=4.4.1, status=deferred (connect to mx.dest.test[192.0.2.25]:25: Connection timed out)"
	f.write(t, lineCleanup, lineDeferred, retry)

	stats, err := f.parser.Parse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Deferred)
	assert.Equal(t, 3, f.repo.logs[0].Attempts)
	assert.Equal(t, domain.StatusDeferred, f.repo.logs[0].Status)
}

func TestParse_ResumesFromOffset(t *testing.T) {
	f := newFixture(t)
	f.seed("abc123@example.com")
	f.write(t, lineCleanup)

	stats, err := f.parser.Parse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)

	f.write(t, lineSent)
	stats, err = f.parser.Parse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Processed: 1, Sent: 1}, stats)

	fi, err := os.Stat(f.path)
	require.NoError(t, err)
	assert.Equal(t, fi.Size(), f.offsets.off[f.path])
}

func TestParse_PartialLineWaits(t *testing.T) {
	f := newFixture(t)
	f.seed("abc123@example.com")
	f.write(t, lineCleanup)
	fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = fh.WriteString(lineSent[:40])
	require.NoError(t, err)
	fh.Close()

	stats, err := f.parser.Parse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, int64(len(lineCleanup)+1), f.offsets.off[f.path])
}

func TestParse_RotationRestartsAtZero(t *testing.T) {
	f := newFixture(t)
	f.offsets.off[f.path] = 1 << 20
	f.seed("abc123@example.com")
	f.write(t, lineCleanup, lineSent)

	stats, err := f.parser.Parse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Sent)
}

func TestParse_FailureKeepsOffset(t *testing.T) {
	f := newFixture(t)
	f.seed("abc123@example.com")
	f.repo.failOn = "4F3A21C0D2"
	f.write(t, lineCleanup, lineSent)

	_, err := f.parser.Parse(context.Background())
	require.Error(t, err)
	assert.Zero(t, f.offsets.off[f.path])

	f.repo.failOn = ""
	stats, err := f.parser.Parse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sent)
}

func TestParse_SkipsUnmatched(t *testing.T) {
	f := newFixture(t)
	f.write(t, "garbage", "postfix/anvil[77]: statistics: max connection rate 1/60s", lineSent)

	stats, err := f.parser.Parse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 3, stats.Skipped)
}

func TestBoltOffsetStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offsets.db")
	s, err := OpenBoltOffsetStore(path)
	require.NoError(t, err)

	ctx := context.Background()
	off, err := s.Load(ctx, "/var/log/mail.log")
	require.NoError(t, err)
	assert.Zero(t, off)

	require.NoError(t, s.Save(ctx, "/var/log/mail.log", 4096))
	require.NoError(t, s.Close())

	s, err = OpenBoltOffsetStore(path)
	require.NoError(t, err)
	defer s.Close()
	off, err = s.Load(ctx, "/var/log/mail.log")
	require.NoError(t, err)
	assert.Equal(t, int64(4096), off)
}
