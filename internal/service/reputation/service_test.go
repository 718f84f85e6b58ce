package reputation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ignite/mailcore/internal/dnsx"
	"github.com/ignite/mailcore/internal/domain"
)

type mockRepo struct {
	mu         sync.Mutex
	store      map[string]*domain.IPReputation
	bounceRate float64
	saves      int
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[string]*domain.IPReputation)}
}

func (m *mockRepo) Get(_ context.Context, ip string) (*domain.IPReputation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[ip]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) Increment(_ context.Context, ip string, d Delta) (*domain.IPReputation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[ip]
	if !ok {
		r = domain.NewIPReputation(ip)
		m.store[ip] = r
	}
	r.SuccessfulSends += d.Successful
	r.FailedSends += d.Failed
	r.SpamReports += d.Spam
	cp := *r
	return &cp, nil
}

func (m *mockRepo) SaveScore(_ context.Context, ip string, score int, bounceRate float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.store[ip].ReputationScore = score
	m.store[ip].BounceRate = bounceRate
	return nil
}

func (m *mockRepo) BounceRate(_ context.Context, _ string, _ time.Time) (float64, error) {
	return m.bounceRate, nil
}

func (m *mockRepo) SetBlacklist(_ context.Context, ip string, listed bool, sources []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.store[ip]
	r.IsBlacklisted = listed
	r.BlacklistSources = sources
	r.LastCheckedAt = &at
	return nil
}

func (m *mockRepo) List(_ context.Context) ([]domain.IPReputation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.IPReputation, 0, len(m.store))
	for _, r := range m.store {
		out = append(out, *r)
	}
	return out, nil
}

type stubBlacklister struct {
	listed []string
	calls  int
}

func (b *stubBlacklister) Check(_ context.Context, _ string) ([]dnsx.Listing, error) {
	b.calls++
	out := []dnsx.Listing{{Zone: "clean.example"}}
	for _, z := range b.listed {
		out = append(out, dnsx.Listing{Zone: z, Listed: true, Answer: "127.0.0.2"})
	}
	return out, nil
}

func TestUnknownIPCanSend(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	ok, err := svc.CanSend(context.Background(), "192.0.2.1")
	if err != nil {
		t.Fatalf("CanSend: %v", err)
	}
	if !ok {
		t.Error("unknown IP should be allowed to send")
	}
	status, _ := svc.Status(context.Background(), "192.0.2.1")
	if status != StatusUnknown {
		t.Errorf("status = %q, want unknown", status)
	}
}

func TestRecordOutcomesRecomputeScore(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	ip := "192.0.2.1"

	for i := 0; i < 8; i++ {
		if err := svc.RecordSuccess(ctx, ip); err != nil {
			t.Fatalf("RecordSuccess: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := svc.RecordFailure(ctx, ip); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	rep, _ := svc.Get(ctx, ip)
	if rep.ReputationScore != 80 {
		t.Errorf("score = %d, want 80", rep.ReputationScore)
	}

	if err := svc.RecordSpamReport(ctx, ip); err != nil {
		t.Fatalf("RecordSpamReport: %v", err)
	}
	rep, _ = svc.Get(ctx, ip)
	// success 80%, spam 10% * 10
	if rep.ReputationScore != 0 {
		t.Errorf("score = %d, want 0", rep.ReputationScore)
	}
	ok, _ := svc.CanSend(ctx, ip)
	if ok {
		t.Error("low score IP should be blocked")
	}
}

func TestRecordBounceUsesWindowedRate(t *testing.T) {
	repo := newMockRepo()
	repo.bounceRate = 25
	svc := NewService(repo, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = svc.RecordSuccess(ctx, "192.0.2.9")
	}
	if err := svc.RecordBounce(ctx, "192.0.2.9"); err != nil {
		t.Fatalf("RecordBounce: %v", err)
	}
	rep, _ := svc.Get(ctx, "192.0.2.9")
	if rep.BounceRate != 25 {
		t.Errorf("bounce rate = %v, want 25", rep.BounceRate)
	}
	// 75% success minus 25 bounce rate
	if rep.ReputationScore != 50 {
		t.Errorf("score = %d, want 50", rep.ReputationScore)
	}
}

func TestRecordRequiresIP(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	if err := svc.RecordSuccess(context.Background(), " "); !errors.Is(err, ErrIPRequired) {
		t.Errorf("err = %v, want ErrIPRequired", err)
	}
}

func TestCheckBlacklistsOncePerDay(t *testing.T) {
	repo := newMockRepo()
	bl := &stubBlacklister{listed: []string{"zen.example"}}
	svc := NewService(repo, bl)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.nowFn = func() time.Time { return now }
	ctx := context.Background()

	listed, err := svc.CheckBlacklists(ctx, "192.0.2.1", false)
	if err != nil {
		t.Fatalf("CheckBlacklists: %v", err)
	}
	if len(listed) != 1 || listed[0] != "zen.example" {
		t.Errorf("listed = %v", listed)
	}
	ok, _ := svc.CanSend(ctx, "192.0.2.1")
	if ok {
		t.Error("blacklisted IP should be blocked")
	}
	status, _ := svc.Status(ctx, "192.0.2.1")
	if status != "blacklisted" {
		t.Errorf("status = %q", status)
	}

	now = now.Add(3 * time.Hour)
	if _, err := svc.CheckBlacklists(ctx, "192.0.2.1", false); err != nil {
		t.Fatal(err)
	}
	if bl.calls != 1 {
		t.Errorf("second check same day should be skipped, calls = %d", bl.calls)
	}

	if _, err := svc.CheckBlacklists(ctx, "192.0.2.1", true); err != nil {
		t.Fatal(err)
	}
	if bl.calls != 2 {
		t.Errorf("forced check should query, calls = %d", bl.calls)
	}

	bl.listed = nil
	now = now.Add(24 * time.Hour)
	listed, _ = svc.CheckBlacklists(ctx, "192.0.2.1", false)
	if len(listed) != 0 {
		t.Errorf("listed = %v, want none", listed)
	}
	ok, _ = svc.CanSend(ctx, "192.0.2.1")
	if !ok {
		t.Error("delisted IP should be allowed again")
	}
}
