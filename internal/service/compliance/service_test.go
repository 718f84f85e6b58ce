package compliance

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/service/audit"
	"github.com/ignite/mailcore/internal/service/mailbox"
)

type fakeSuppressions struct {
	set   map[string]domain.SuppressionReason
	fails bool
}

func (f *fakeSuppressions) IsSuppressed(_ context.Context, email string) (bool, error) {
	if f.fails {
		return false, errors.New("db down")
	}
	_, ok := f.set[email]
	return ok, nil
}

func (f *fakeSuppressions) Suppress(_ context.Context, email string, reason domain.SuppressionReason, _ domain.SuppressionSource, _ string, _ *time.Time) error {
	f.set[email] = reason
	return nil
}

type fakeUnsubscribes map[string]bool

func (f fakeUnsubscribes) IsUnsubscribed(_ context.Context, email, _ string, _ domain.ListType) (bool, error) {
	return f[email], nil
}

type fakeConsents map[string]bool

func (f fakeConsents) HasValidConsent(_ context.Context, email string, _ domain.ConsentType) (bool, error) {
	return f[email], nil
}

type fakeMailboxes map[string]*domain.Mailbox

func (f fakeMailboxes) GetByEmail(_ context.Context, email string) (*domain.Mailbox, error) {
	m, ok := f[email]
	if !ok {
		return nil, mailbox.ErrNotFound
	}
	return m, nil
}

func (f fakeMailboxes) CanSendEmail(m *domain.Mailbox) bool {
	cp := *m
	return cp.CanSendEmail(time.Now())
}

type recordingAuditor struct{ entries []audit.Entry }

func (a *recordingAuditor) Record(_ context.Context, _ domain.RequestContext, e audit.Entry) {
	a.entries = append(a.entries, e)
}

type mockRepo struct {
	sendLogs   []domain.SendLog
	deleted    string
	anonymized string
	metrics    ReportMetrics
	since      time.Time
}

func (m *mockRepo) SendLogsFor(context.Context, string) ([]domain.SendLog, error) {
	return m.sendLogs, nil
}
func (m *mockRepo) ConsentsFor(context.Context, string) ([]domain.ConsentRecord, error) {
	return []domain.ConsentRecord{{Email: "a@example.com"}}, nil
}
func (m *mockRepo) UnsubscribesFor(context.Context, string) ([]domain.Unsubscribe, error) {
	return nil, nil
}
func (m *mockRepo) SuppressionsFor(context.Context, string) ([]domain.Suppression, error) {
	return nil, nil
}
func (m *mockRepo) DeleteUserData(_ context.Context, email string) (DeletionCounts, error) {
	m.deleted = email
	return DeletionCounts{SendLogs: 3, ConsentRecords: 1}, nil
}
func (m *mockRepo) AnonymizeUserData(_ context.Context, email string) (int, error) {
	m.anonymized = email
	return 2, nil
}
func (m *mockRepo) ReportMetrics(_ context.Context, _ string, since time.Time) (ReportMetrics, error) {
	m.since = since
	return m.metrics, nil
}
func (m *mockRepo) BlockedChecks(context.Context, string, time.Time, int) ([]domain.ComplianceLog, error) {
	return nil, nil
}

type fixture struct {
	svc  *Service
	repo *mockRepo
	sup  *fakeSuppressions
	uns  fakeUnsubscribes
	con  fakeConsents
	mbx  fakeMailboxes
	aud  *recordingAuditor
}

func newFixture() *fixture {
	now := time.Now()
	f := &fixture{
		repo: &mockRepo{},
		sup:  &fakeSuppressions{set: map[string]domain.SuppressionReason{}},
		uns:  fakeUnsubscribes{},
		con:  fakeConsents{},
		mbx: fakeMailboxes{
			"sender@example.com": {ID: "mb1", DomainID: "d1", Email: "sender@example.com", IsActive: true, CanSend: true, DailySendLimit: 10, DailySendResetAt: &now},
		},
		aud: &recordingAuditor{},
	}
	f.svc = NewService(f.repo, f.sup, f.uns, f.con, f.mbx, f.aud)
	return f
}

func TestCanSendEmail_TransactionalAllowed(t *testing.T) {
	f := newFixture()
	d, err := f.svc.CanSendEmail(context.Background(), domain.RequestContext{}, "User@Example.com", "sender@example.com", domain.EmailTransactional)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Empty(t, d.Reasons)

	require.Len(t, f.aud.entries, 1)
	e := f.aud.entries[0]
	assert.Equal(t, domain.ActionSendCheck, e.Action)
	assert.Equal(t, "Compliance check for sending to user@example.com from sender@example.com (Type: transactional). Result: ALLOWED", e.Description)
	assert.Equal(t, "d1", e.Metadata["domain_id"])
}

func TestCanSendEmail_TransactionalIgnoresMarketingRules(t *testing.T) {
	f := newFixture()
	f.uns["user@example.com"] = true
	d, err := f.svc.CanSendEmail(context.Background(), domain.RequestContext{}, "user@example.com", "sender@example.com", domain.EmailTransactional)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "unsubscribe and consent only apply to marketing")
}

func TestCanSendEmail_CollectsAllReasons(t *testing.T) {
	f := newFixture()
	f.sup.set["user@example.com"] = domain.ReasonHardBounce
	f.uns["user@example.com"] = true
	f.mbx["sender@example.com"].DailySendCount = 10

	d, err := f.svc.CanSendEmail(context.Background(), domain.RequestContext{}, "user@example.com", "sender@example.com", domain.EmailMarketing)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, []string{ReasonSuppressed, ReasonUnsubscribed, ReasonNoConsent, ReasonSenderLimit}, d.Reasons)
	assert.True(t, strings.HasSuffix(f.aud.entries[0].Description, "Result: BLOCKED"))
}

func TestCanSendEmail_MarketingWithConsent(t *testing.T) {
	f := newFixture()
	f.con["user@example.com"] = true
	d, err := f.svc.CanSendEmail(context.Background(), domain.RequestContext{}, "user@example.com", "sender@example.com", domain.EmailMarketing)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestCanSendEmail_UnknownSenderSkipsMailboxCheck(t *testing.T) {
	f := newFixture()
	d, err := f.svc.CanSendEmail(context.Background(), domain.RequestContext{}, "user@example.com", "nobody@example.com", domain.EmailTransactional)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestCanSendEmail_InfrastructureError(t *testing.T) {
	f := newFixture()
	f.sup.fails = true
	d, err := f.svc.CanSendEmail(context.Background(), domain.RequestContext{}, "user@example.com", "sender@example.com", domain.EmailTransactional)
	require.Error(t, err)
	assert.False(t, d.Allowed)

	require.Len(t, f.aud.entries, 1)
	e := f.aud.entries[0]
	assert.Equal(t, domain.ActionSendCheck, e.Action)
	assert.True(t, strings.HasSuffix(e.Description, "Result: BLOCKED"))
	assert.Equal(t, false, e.Metadata["allowed"])
	assert.Contains(t, e.Metadata["error"], "suppression lookup")
}

func TestExportUserData(t *testing.T) {
	f := newFixture()
	f.repo.sendLogs = []domain.SendLog{{ID: "s1"}, {ID: "s2"}}

	exp, err := f.svc.ExportUserData(context.Background(), domain.RequestContext{}, " A@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", exp.Email)
	assert.Len(t, exp.Data.SendLogs, 2)
	assert.Len(t, exp.Data.ConsentRecords, 1)
	require.Len(t, f.aud.entries, 1)
	assert.Equal(t, domain.ActionDataExport, f.aud.entries[0].Action)
	assert.Equal(t, domain.RegulationGDPR, f.aud.entries[0].Regulation)

	_, err = f.svc.ExportUserData(context.Background(), domain.RequestContext{}, "")
	assert.ErrorIs(t, err, ErrEmailRequired)
}

func TestDeleteUserData(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.svc.DeleteUserData(ctx, domain.RequestContext{}, "a@example.com", true)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", f.repo.deleted)
	assert.Equal(t, 3, res.Deleted.SendLogs)
	assert.Equal(t, domain.ReasonGDPRRequest, f.sup.set["a@example.com"])

	res, err = f.svc.DeleteUserData(ctx, domain.RequestContext{}, "b@example.com", false)
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", f.repo.anonymized)
	assert.Equal(t, 2, res.Anonymized)
	assert.Nil(t, res.Deleted)
	assert.Equal(t, domain.ReasonGDPRRequest, f.sup.set["b@example.com"])

	require.Len(t, f.aud.entries, 2)
	assert.Equal(t, domain.ActionDataDeletion, f.aud.entries[1].Action)
}

func TestGenerateComplianceReport(t *testing.T) {
	f := newFixture()
	fixed := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return fixed }
	f.repo.metrics = ReportMetrics{TotalSent: 200, Bounces: 10, SpamComplaints: 1, Unsubscribes: 4}

	r, err := f.svc.GenerateComplianceReport(context.Background(), "d1", 0)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-31", r.Period.From)
	assert.Equal(t, "2024-06-30", r.Period.To)
	assert.InDelta(t, 5.0, r.BounceRate, 0.001)
	assert.InDelta(t, 0.5, r.ComplaintRate, 0.001)
	assert.NotNil(t, r.NonCompliantActions)

	_, err = f.svc.GenerateComplianceReport(context.Background(), "d1", 500)
	assert.ErrorIs(t, err, ErrInvalidDays)
}
