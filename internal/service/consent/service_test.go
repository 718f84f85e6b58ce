package consent

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/service/audit"
)

type mockRepo struct {
	mu      sync.RWMutex
	records []*domain.ConsentRecord
}

func (m *mockRepo) Create(_ context.Context, c *domain.ConsentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.New().String()
	cp := *c
	m.records = append(m.records, &cp)
	return nil
}

func (m *mockRepo) ListGranted(_ context.Context, email string, t domain.ConsentType) ([]domain.ConsentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.ConsentRecord
	for _, c := range m.records {
		if c.Email == email && c.Granted && (t == "" || c.ConsentType == t) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockRepo) GetByToken(_ context.Context, token string) (*domain.ConsentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.records {
		if token != "" && c.VerificationToken == token {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) find(id string) *domain.ConsentRecord {
	for _, c := range m.records {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (m *mockRepo) MarkVerified(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.find(id)
	c.Granted, c.VerifiedAt, c.VerificationToken = true, &at, ""
	return nil
}

func (m *mockRepo) Revoke(_ context.Context, id string, at time.Time, meta []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.find(id)
	c.Granted, c.RevokedAt, c.Metadata = false, &at, meta
	return nil
}

type nopAuditor struct{ n int }

func (a *nopAuditor) Record(context.Context, domain.RequestContext, audit.Entry) { a.n++ }

func TestGrant_OptInIsImmediatelyValid(t *testing.T) {
	repo := &mockRepo{}
	aud := &nopAuditor{}
	svc := NewService(repo, aud)
	ctx := context.Background()

	c, err := svc.Grant(ctx, domain.RequestContext{IP: "198.51.100.3"}, GrantRequest{
		Email: "Reader@Example.com",
		Type:  domain.ConsentMarketing,
	})
	require.NoError(t, err)
	assert.True(t, c.Granted)
	assert.Equal(t, domain.MethodOptIn, c.ConsentMethod)
	assert.Equal(t, "198.51.100.3", c.IPAddress)

	ok, err := svc.HasValidConsent(ctx, "reader@example.com", domain.ConsentMarketing)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, aud.n)
}

func TestGrant_DoubleOptInRequiresVerification(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, &nopAuditor{})
	ctx := context.Background()

	c, err := svc.Grant(ctx, domain.RequestContext{}, GrantRequest{
		Email:  "dbl@example.com",
		Type:   domain.ConsentMarketing,
		Method: domain.MethodDoubleOptIn,
	})
	require.NoError(t, err)
	assert.False(t, c.Granted)
	assert.Len(t, c.VerificationToken, TokenLength)

	ok, _ := svc.HasValidConsent(ctx, "dbl@example.com", domain.ConsentMarketing)
	assert.False(t, ok, "unverified double opt-in is not valid")

	v, err := svc.Verify(ctx, domain.RequestContext{}, c.VerificationToken)
	require.NoError(t, err)
	assert.True(t, v.Granted)
	assert.NotNil(t, v.VerifiedAt)

	ok, _ = svc.HasValidConsent(ctx, "dbl@example.com", domain.ConsentMarketing)
	assert.True(t, ok)

	_, err = svc.Verify(ctx, domain.RequestContext{}, c.VerificationToken)
	assert.ErrorIs(t, err, ErrNotFound, "token is cleared after verification")
}

func TestGrant_Validation(t *testing.T) {
	svc := NewService(&mockRepo{}, &nopAuditor{})
	ctx := context.Background()

	_, err := svc.Grant(ctx, domain.RequestContext{}, GrantRequest{Type: domain.ConsentMarketing})
	assert.ErrorIs(t, err, ErrEmailRequired)

	_, err = svc.Grant(ctx, domain.RequestContext{}, GrantRequest{Email: "a@example.com", Type: domain.ConsentAll})
	assert.ErrorIs(t, err, ErrInvalidType)

	_, err = svc.Grant(ctx, domain.RequestContext{}, GrantRequest{Email: "a@example.com", Type: domain.ConsentNewsletter, Method: "carrier_pigeon"})
	assert.ErrorIs(t, err, ErrInvalidMethod)
}

func TestRevoke_All(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, &nopAuditor{})
	ctx := context.Background()

	for _, typ := range []domain.ConsentType{domain.ConsentMarketing, domain.ConsentNewsletter} {
		_, err := svc.Grant(ctx, domain.RequestContext{}, GrantRequest{Email: "multi@example.com", Type: typ})
		require.NoError(t, err)
	}

	n, err := svc.Revoke(ctx, domain.RequestContext{IP: "203.0.113.5"}, "multi@example.com", domain.ConsentAll, "moved away")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, c := range repo.records {
		assert.False(t, c.Granted)
		assert.NotNil(t, c.RevokedAt)
		var meta map[string]any
		require.NoError(t, json.Unmarshal(c.Metadata, &meta))
		assert.Equal(t, "moved away", meta["revoke_reason"])
		assert.Equal(t, "203.0.113.5", meta["revoked_ip"])
	}

	ok, _ := svc.HasValidConsent(ctx, "multi@example.com", domain.ConsentMarketing)
	assert.False(t, ok)
}

func TestRevoke_SingleType(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, &nopAuditor{})
	ctx := context.Background()

	_, _ = svc.Grant(ctx, domain.RequestContext{}, GrantRequest{Email: "one@example.com", Type: domain.ConsentMarketing})
	_, _ = svc.Grant(ctx, domain.RequestContext{}, GrantRequest{Email: "one@example.com", Type: domain.ConsentNewsletter})

	n, err := svc.Revoke(ctx, domain.RequestContext{}, "one@example.com", domain.ConsentMarketing, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, _ := svc.HasValidConsent(ctx, "one@example.com", domain.ConsentNewsletter)
	assert.True(t, ok)
}

func TestHasValidConsent_Expired(t *testing.T) {
	svc := NewService(&mockRepo{}, &nopAuditor{})
	ctx := context.Background()
	past := time.Now().Add(-time.Minute)

	_, err := svc.Grant(ctx, domain.RequestContext{}, GrantRequest{Email: "exp@example.com", Type: domain.ConsentMarketing, ExpiresAt: &past})
	require.NoError(t, err)

	ok, _ := svc.HasValidConsent(ctx, "exp@example.com", domain.ConsentMarketing)
	assert.False(t, ok)
}
