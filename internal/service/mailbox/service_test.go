package mailbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ignite/mailcore/internal/domain"
)

type mockRepo struct {
	mu    sync.Mutex
	store map[string]*domain.Mailbox
	seq   int
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[string]*domain.Mailbox)}
}

func (r *mockRepo) Create(_ context.Context, m *domain.Mailbox) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.store {
		if existing.Email == m.Email {
			return ErrDuplicate
		}
	}
	r.seq++
	m.ID = fmt.Sprintf("mb-%d", r.seq)
	cp := *m
	r.store[m.ID] = &cp
	return nil
}

func (r *mockRepo) Get(_ context.Context, id string) (*domain.Mailbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *mockRepo) GetByEmail(_ context.Context, email string) (*domain.Mailbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.store {
		if m.Email == email {
			cp := *m
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *mockRepo) List(_ context.Context, domainID string) ([]domain.Mailbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Mailbox
	for _, m := range r.store {
		if domainID == "" || m.DomainID == domainID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *mockRepo) SetFlags(_ context.Context, id string, isActive, canSend bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.store[id]
	if !ok {
		return ErrNotFound
	}
	m.IsActive, m.CanSend = isActive, canSend
	return nil
}

// ReserveSend mirrors the single-statement reset-and-increment.
func (r *mockRepo) ReserveSend(_ context.Context, id string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.store[id]
	if !ok {
		return false, ErrNotFound
	}
	m.ResetDailyCountIfNeeded(now)
	if m.DailySendCount >= m.DailySendLimit {
		return false, nil
	}
	m.DailySendCount++
	return true, nil
}

func (r *mockRepo) ReleaseSend(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.store[id]; ok && m.DailySendCount > 0 {
		m.DailySendCount--
	}
	return nil
}

type fakeDomains map[string]*domain.Domain

func (f fakeDomains) Get(_ context.Context, id string) (*domain.Domain, error) {
	d, ok := f[id]
	if !ok {
		return nil, errors.New("domain not found")
	}
	return d, nil
}

type fakeWarmup struct {
	started []string
	days    int
	err     error
}

func (f *fakeWarmup) StartWarmup(_ context.Context, mailboxID string, targetDays int) (*domain.WarmupSchedule, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.started = append(f.started, mailboxID)
	f.days = targetDays
	return &domain.WarmupSchedule{MailboxID: mailboxID}, nil
}

type failingProvisioner struct{}

func (failingProvisioner) Provision(string) (string, error) { return "", errors.New("permission denied") }

func newTestService(t *testing.T, warm *fakeWarmup, prov Provisioner) (*Service, *mockRepo) {
	t.Helper()
	repo := newMockRepo()
	domains := fakeDomains{
		"d1": {ID: "d1", Name: "Example.com", IsActive: true},
		"d2": {ID: "d2", Name: "inactive.test", IsActive: false},
	}
	var starter WarmupStarter
	if warm != nil {
		starter = warm
	}
	svc := NewService(repo, domains, prov, starter, Options{
		AutoWarmup:        true,
		WarmupDays:        30,
		DefaultQuotaMB:    1024,
		MaxQuotaMB:        5120,
		DefaultDailyLimit: 2,
	})
	return svc, repo
}

func TestCreate(t *testing.T) {
	warm := &fakeWarmup{}
	root := t.TempDir()
	svc, _ := newTestService(t, warm, MaildirProvisioner{Root: root})

	m, err := svc.Create(context.Background(), CreateRequest{
		DomainID:  "d1",
		LocalPart: " Sales ",
		Password:  "correct-horse",
		CanSend:   true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.Email != "sales@example.com" {
		t.Errorf("email = %q", m.Email)
	}
	if m.QuotaMB != 1024 || m.DailySendLimit != 2 {
		t.Errorf("defaults not applied: %+v", m)
	}
	if bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte("correct-horse")) != nil {
		t.Error("password should be stored as a bcrypt hash")
	}
	for _, sub := range []string{"cur", "new", "tmp"} {
		if _, err := os.Stat(filepath.Join(root, "example.com", "sales", sub)); err != nil {
			t.Errorf("maildir %s missing: %v", sub, err)
		}
	}
	if len(warm.started) != 1 || warm.days != 30 {
		t.Errorf("warmup not started: %+v", warm)
	}
}

func TestCreate_NoWarmupWhenCannotSend(t *testing.T) {
	warm := &fakeWarmup{}
	svc, _ := newTestService(t, warm, nil)
	if _, err := svc.Create(context.Background(), CreateRequest{DomainID: "d1", LocalPart: "inbox", Password: "password1"}); err != nil {
		t.Fatal(err)
	}
	if len(warm.started) != 0 {
		t.Error("receive-only mailbox should not start warmup")
	}
}

func TestCreate_BestEffortSteps(t *testing.T) {
	warm := &fakeWarmup{err: errors.New("boom")}
	svc, repo := newTestService(t, warm, failingProvisioner{})
	m, err := svc.Create(context.Background(), CreateRequest{DomainID: "d1", LocalPart: "ops", Password: "password1", CanSend: true})
	if err != nil {
		t.Fatalf("follow-up failures must not fail creation: %v", err)
	}
	if _, err := repo.Get(context.Background(), m.ID); err != nil {
		t.Errorf("mailbox should be stored: %v", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"bad local part", CreateRequest{DomainID: "d1", LocalPart: "a b", Password: "password1"}, ErrInvalidLocalPart},
		{"path traversal", CreateRequest{DomainID: "d1", LocalPart: "../x", Password: "password1"}, ErrInvalidLocalPart},
		{"short password", CreateRequest{DomainID: "d1", LocalPart: "a", Password: "short"}, ErrWeakPassword},
		{"inactive domain", CreateRequest{DomainID: "d2", LocalPart: "a", Password: "password1"}, ErrDomainInactive},
		{"quota", CreateRequest{DomainID: "d1", LocalPart: "a", Password: "password1", QuotaMB: 99999}, ErrQuotaTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := svc.Create(ctx, CreateRequest{DomainID: "d1", LocalPart: "dup", Password: "password1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, CreateRequest{DomainID: "d1", LocalPart: "DUP", Password: "password1"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
}

func TestReserveAndRelease(t *testing.T) {
	svc, repo := newTestService(t, nil, nil)
	ctx := context.Background()
	day := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return day }

	m, err := svc.Create(ctx, CreateRequest{DomainID: "d1", LocalPart: "a", Password: "password1", CanSend: true})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.ReserveSend(ctx, m.ID); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if err := svc.ReserveSend(ctx, m.ID); err != nil {
		t.Fatalf("second reserve: %v", err)
	}
	if err := svc.ReserveSend(ctx, m.ID); !errors.Is(err, ErrLimitReached) {
		t.Errorf("third reserve err = %v, want ErrLimitReached", err)
	}

	got, _ := repo.Get(ctx, m.ID)
	if svc.CanSendEmail(got) {
		t.Error("mailbox at limit should not be send-eligible")
	}

	if err := svc.ReleaseSend(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.ReserveSend(ctx, m.ID); err != nil {
		t.Errorf("released slot should be reusable: %v", err)
	}

	day = day.Add(24 * time.Hour)
	if err := svc.ReserveSend(ctx, m.ID); err != nil {
		t.Errorf("new day should reset the counter: %v", err)
	}
	got, _ = repo.Get(ctx, m.ID)
	if got.DailySendCount != 1 {
		t.Errorf("count = %d, want 1", got.DailySendCount)
	}
}

func TestSetFlags_ReactivationProvisions(t *testing.T) {
	root := t.TempDir()
	svc, _ := newTestService(t, nil, MaildirProvisioner{Root: root})
	ctx := context.Background()
	m, _ := svc.Create(ctx, CreateRequest{DomainID: "d1", LocalPart: "back", Password: "password1"})

	if err := os.RemoveAll(filepath.Join(root, "example.com", "back")); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetFlags(ctx, m.ID, false, false); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetFlags(ctx, m.ID, true, true); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "example.com", "back", "new")); err != nil {
		t.Errorf("maildir should be recreated: %v", err)
	}
}

func TestMaildirProvisioner_RejectsUnsafe(t *testing.T) {
	p := MaildirProvisioner{Root: t.TempDir()}
	for _, addr := range []string{"noatsign", "a/b@example.com", "a@ex/ample.com", "..@example.com"} {
		if _, err := p.Provision(addr); err == nil {
			t.Errorf("Provision(%q) should fail", addr)
		}
	}
}
