// Package app assembles the gateway's services from configuration. The
// server, worker and mailctl binaries share this wiring.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailcore/internal/api"
	"github.com/ignite/mailcore/internal/config"
	"github.com/ignite/mailcore/internal/dkim"
	"github.com/ignite/mailcore/internal/dnsx"
	"github.com/ignite/mailcore/internal/mta"
	"github.com/ignite/mailcore/internal/pkg/logger"
	"github.com/ignite/mailcore/internal/pkg/ratelimit"
	"github.com/ignite/mailcore/internal/repository/postgres"
	"github.com/ignite/mailcore/internal/service/audit"
	"github.com/ignite/mailcore/internal/service/bounce"
	"github.com/ignite/mailcore/internal/service/compliance"
	"github.com/ignite/mailcore/internal/service/consent"
	"github.com/ignite/mailcore/internal/service/logingest"
	"github.com/ignite/mailcore/internal/service/mailbox"
	"github.com/ignite/mailcore/internal/service/reputation"
	"github.com/ignite/mailcore/internal/service/sending"
	"github.com/ignite/mailcore/internal/service/settings"
	"github.com/ignite/mailcore/internal/service/spamfilter"
	"github.com/ignite/mailcore/internal/service/suppression"
	"github.com/ignite/mailcore/internal/service/unsubscribe"
	"github.com/ignite/mailcore/internal/service/verification"
	"github.com/ignite/mailcore/internal/service/warmup"
	"github.com/ignite/mailcore/internal/worker"
)

// App holds the connections and services built from one Config.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Redis  *redis.Client

	Audit        *audit.Logger
	Suppressions *suppression.Service
	Unsubscribes *unsubscribe.Service
	Consents     *consent.Service
	Compliance   *compliance.Service
	Reputation   *reputation.Service
	SpamFilter   *spamfilter.Service
	Verification *verification.Service
	Mailboxes    *mailbox.Service
	Sending      *sending.Service
	Warmup       *warmup.Service
	Bounces      *bounce.Service
	Settings     *settings.Service
	LogParser    *logingest.Parser
	Cleaner      *worker.CleanupWorker

	closers []func() error
}

// New connects to Postgres and Redis and builds every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, DB: db}
	a.closers = append(a.closers, db.Close)

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.Redis = redis.NewClient(opts)
		a.closers = append(a.closers, a.Redis.Close)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := a.Redis.Ping(pingCtx).Err(); err != nil {
			log.Printf("[App] Redis unreachable, limits and locks fall back to local: %v", err)
			a.Redis.Close()
			a.Redis = nil
			a.closers = a.closers[:1]
		}
		cancel()
	}

	if err := a.build(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	cfg := a.Config

	a.Settings = settings.NewService(postgres.NewSettingsRepo(a.DB))
	a.Audit = audit.NewLogger(postgres.NewAuditRepo(a.DB))
	a.Suppressions = suppression.NewService(postgres.NewSuppressionRepo(a.DB))
	a.Unsubscribes = unsubscribe.NewService(postgres.NewUnsubscribeRepo(a.DB), a.Suppressions, a.Audit, cfg.Mail.UnsubscribeBaseURL)
	a.Consents = consent.NewService(postgres.NewConsentRepo(a.DB), a.Audit)

	blacklists := dnsx.NewBlacklistChecker(cfg.DNS.Resolver, cfg.DNS.Blacklists, cfg.DNS.Timeout()).
		WithZoneSource(a.blacklistZones)
	a.Reputation = reputation.NewService(postgres.NewReputationRepo(a.DB), blacklists)

	senderLimiter := ratelimit.New(a.Redis, "mailcore:sender", cfg.RateLimit.SenderPerMinute, time.Minute)
	a.SpamFilter = spamfilter.NewService(postgres.NewComplaintRepo(a.DB), a.Suppressions, a.Reputation, senderLimiter, a.Audit, cfg.Mail.IP)

	resolver := dnsx.NewADNSResolver(cfg.DNS.Resolver, cfg.DNS.Timeout())
	keys := dkim.Tables{
		KeyPath:       cfg.DKIM.KeyPath,
		KeyTable:      cfg.DKIM.KeyTable,
		SigningTable:  cfg.DKIM.SigningTable,
		TrustedHosts:  cfg.DKIM.TrustedHosts,
		ReloadCommand: cfg.DKIM.ReloadCommand,
	}
	a.Verification = verification.NewService(postgres.NewDomainRepo(a.DB), resolver, dkim.RSAGenerator{}, keys, verification.Options{
		KeyBits:      cfg.DKIM.KeyBits,
		Selector:     cfg.DKIM.Selector,
		ManageTables: cfg.DKIM.ManageTables,
	})

	mailboxRepo := postgres.NewMailboxRepo(a.DB)
	a.Mailboxes = mailbox.NewService(mailboxRepo, a.Verification, mailbox.MaildirProvisioner{Root: cfg.Mail.MaildirRoot}, nil, mailbox.Options{
		AutoWarmup:        cfg.Mail.AutoWarmup,
		WarmupDays:        cfg.Warmup.DefaultTargetDays,
		DefaultQuotaMB:    cfg.Mail.DefaultQuotaMB,
		MaxQuotaMB:        cfg.Mail.MaxQuotaMB,
		DefaultDailyLimit: cfg.Mail.DefaultDailyLimit,
	})

	a.Compliance = compliance.NewService(postgres.NewComplianceRepo(a.DB), a.Suppressions, a.Unsubscribes, a.Consents, a.Mailboxes, a.Audit)

	var sender mta.Sender
	if !cfg.Mail.SandboxMode {
		sender = mta.NewSMTPSender(mta.SMTPConfig{
			Host:     cfg.MTA.Host,
			Port:     strconv.Itoa(cfg.MTA.Port),
			HeloName: cfg.MTA.HELO,
			Username: cfg.MTA.Username,
			Password: cfg.MTA.Password,
			StartTLS: cfg.MTA.StartTLS,
			Timeout:  cfg.MTA.Timeout(),
		})
	}
	a.Sending = sending.NewService(postgres.NewSendLogRepo(a.DB), a.Mailboxes, a.Verification, a.Compliance,
		a.SpamFilter, a.Reputation, a.Unsubscribes, sender, sending.Options{
			SendingIP: cfg.Mail.IP,
			Sandbox:   cfg.Mail.SandboxMode,
		})

	a.Warmup = warmup.NewService(postgres.NewWarmupRepo(a.DB), mailboxRepo, a.Sending, warmup.Options{
		BatchSize:         cfg.Warmup.BatchSize,
		DefaultTargetDays: cfg.Warmup.DefaultTargetDays,
		Recipients:        cfg.Warmup.Recipients,
	})
	a.Mailboxes.SetWarmup(a.Warmup)

	a.Bounces = bounce.NewService(postgres.NewBounceRepo(a.DB), a.Suppressions)

	var offsets logingest.OffsetStore = postgres.NewOffsetStore(a.DB)
	if cfg.Postfix.OffsetStore == "bolt" {
		bolt, err := logingest.OpenBoltOffsetStore(cfg.Postfix.BoltPath)
		if err != nil {
			return fmt.Errorf("open offset store: %w", err)
		}
		a.closers = append(a.closers, bolt.Close)
		offsets = bolt
	}
	a.LogParser = logingest.NewParser(cfg.Postfix.LogPath, postgres.NewLogIngestRepo(a.DB), offsets, a.Reputation, a.Bounces, cfg.Mail.IP)
	a.Cleaner = worker.NewCleanupWorker(a.DB)
	return nil
}

// blacklistZones lets operators change the DNSBL zones at runtime.
func (a *App) blacklistZones(ctx context.Context) []string {
	zones, err := a.Settings.Strings(ctx, settings.KeyBlacklistZones, nil)
	if err != nil {
		log.Printf("[App] Failed to read %s: %v", settings.KeyBlacklistZones, err)
		return nil
	}
	return zones
}

// Handlers returns the HTTP handlers backed by the app's services.
func (a *App) Handlers() *api.Handlers {
	return api.NewHandlers(a.Sending, a.Unsubscribes, a.Consents, a.Compliance, a.SpamFilter, a.Settings)
}

// Router builds the full HTTP router.
func (a *App) Router() http.Handler {
	mtaAddr := ""
	if !a.Config.Mail.SandboxMode {
		mtaAddr = a.Config.MTA.Addr()
	}
	hc := api.NewHealthChecker(a.DB, a.Redis, mtaAddr)
	return api.SetupRoutes(a.Handlers(), hc, api.RouterOptions{
		APIToken:    a.Config.Server.APIToken,
		CORSOrigins: a.Config.Server.CORSOrigins,
		Reputations: a.Reputation,
		Limiter:     ratelimit.New(a.Redis, "mailcore:api", a.Config.RateLimit.PerMinute, time.Minute),
	})
}

// Scheduler registers the periodic pipelines on a new scheduler.
func (a *App) Scheduler() *worker.Scheduler {
	s := worker.NewScheduler(a.Redis, a.DB)
	worker.Register(s, worker.Deps{
		Parser:     a.LogParser,
		Bounces:    a.Bounces,
		Verifier:   a.Verification,
		Warmup:     a.Warmup,
		Blacklist:  a.Reputation,
		Cleaner:    a.Cleaner,
		Settings:   a.Settings,
		SendingIP:  a.Config.Mail.IP,
		Jobs:       a.Config.Jobs,
		WarmupTick: a.Config.Warmup.Interval(),
	})
	return s
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("[App] close: %v", err)
		}
	}
	a.closers = nil
}
