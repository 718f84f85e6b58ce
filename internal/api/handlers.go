// Package api exposes the mail gateway over HTTP: authenticated send and
// compliance endpoints under /api, and the public unsubscribe, consent and
// health routes used by recipients and probes.
package api

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/service/compliance"
	"github.com/ignite/mailcore/internal/service/consent"
	"github.com/ignite/mailcore/internal/service/spamfilter"
)

// Sender sends single and bulk messages.
type Sender interface {
	Send(ctx context.Context, rc domain.RequestContext, msg domain.OutboundMessage) domain.SendResult
	SendBulk(ctx context.Context, rc domain.RequestContext, msgs []domain.OutboundMessage) domain.BulkResult
}

// Unsubscribes resolves and confirms unsubscribe tokens.
type Unsubscribes interface {
	Lookup(ctx context.Context, token string) (*domain.Unsubscribe, error)
	Confirm(ctx context.Context, rc domain.RequestContext, token, reason string) (*domain.Unsubscribe, error)
	OneClick(ctx context.Context, rc domain.RequestContext, token string) (*domain.Unsubscribe, error)
}

// Consents manages consent records.
type Consents interface {
	Grant(ctx context.Context, rc domain.RequestContext, req consent.GrantRequest) (*domain.ConsentRecord, error)
	Verify(ctx context.Context, rc domain.RequestContext, token string) (*domain.ConsentRecord, error)
	Revoke(ctx context.Context, rc domain.RequestContext, email string, consentType domain.ConsentType, reason string) (int, error)
}

// Compliance serves the GDPR and reporting endpoints.
type Compliance interface {
	ExportUserData(ctx context.Context, rc domain.RequestContext, email string) (*compliance.Export, error)
	DeleteUserData(ctx context.Context, rc domain.RequestContext, email string, hard bool) (*compliance.Deletion, error)
	GenerateComplianceReport(ctx context.Context, domainID string, days int) (*compliance.Report, error)
}

// Complaints records feedback loop reports.
type Complaints interface {
	RecordComplaint(ctx context.Context, rc domain.RequestContext, c spamfilter.Complaint) (*domain.SpamComplaint, error)
}

// Settings reads and writes runtime settings.
type Settings interface {
	Get(ctx context.Context, key string) (*domain.Setting, error)
	Set(ctx context.Context, key string, kind domain.SettingKind, raw, description string, public bool) (*domain.Setting, error)
	List(ctx context.Context, publicOnly bool) ([]domain.Setting, error)
}

// Handlers holds the services behind the HTTP routes.
type Handlers struct {
	sender       Sender
	unsubscribes Unsubscribes
	consents     Consents
	compliance   Compliance
	complaints   Complaints
	settings     Settings
}

// NewHandlers creates the route handlers.
func NewHandlers(sender Sender, unsubscribes Unsubscribes, consents Consents, compliance Compliance, complaints Complaints, settings Settings) *Handlers {
	return &Handlers{
		sender:       sender,
		unsubscribes: unsubscribes,
		consents:     consents,
		compliance:   compliance,
		complaints:   complaints,
		settings:     settings,
	}
}

type ctxKey int

const actorKey ctxKey = 0

// withActor tags the request with the authenticated caller.
func withActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// requestContext captures the caller for audit entries. RemoteAddr is already
// rewritten by middleware.RealIP.
func requestContext(r *http.Request) domain.RequestContext {
	actor, _ := r.Context().Value(actorKey).(string)
	return domain.RequestContext{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		Actor:     actor,
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.Trim(r.RemoteAddr, "[]")
	}
	return host
}
