package worker

import (
	"context"
	"log"
	"time"

	"github.com/ignite/mailcore/internal/config"
	"github.com/ignite/mailcore/internal/pkg/logger"
	"github.com/ignite/mailcore/internal/service/bounce"
	"github.com/ignite/mailcore/internal/service/logingest"
	"github.com/ignite/mailcore/internal/service/settings"
	"github.com/ignite/mailcore/internal/service/verification"
	"github.com/ignite/mailcore/internal/service/warmup"
)

// Job names.
const (
	JobLogParse  = "log_parse"
	JobBounces   = "bounce_check"
	JobVerify    = "domain_verify"
	JobWarmup    = "warmup"
	JobBlacklist = "blacklist_check"
	JobCleanup   = "cleanup"
)

// LogParser reads new MTA log lines.
type LogParser interface {
	Parse(ctx context.Context) (logingest.Stats, error)
}

// BounceChecker reconciles bounces and sweeps hard bouncers.
type BounceChecker interface {
	CheckBounces(ctx context.Context) (bounce.Stats, error)
}

// DomainVerifier re-checks DNS for every active domain.
type DomainVerifier interface {
	VerifyAll(ctx context.Context) (verification.VerifySummary, error)
}

// WarmupProcessor sends the next warmup batch.
type WarmupProcessor interface {
	ProcessWarmupEmails(ctx context.Context) (warmup.Stats, error)
}

// BlacklistChecker checks an IP against DNSBL zones.
type BlacklistChecker interface {
	CheckBlacklists(ctx context.Context, ip string, force bool) ([]string, error)
}

// Cleaner removes rows past retention.
type Cleaner interface {
	Run(ctx context.Context, days int) (CleanupStats, error)
}

// Settings provides runtime toggles.
type Settings interface {
	Bool(ctx context.Context, key string, def bool) (bool, error)
	Int(ctx context.Context, key string, def int64) (int64, error)
}

// Deps are the services the scheduled jobs drive. A nil dependency leaves
// its job unregistered.
type Deps struct {
	Parser     LogParser
	Bounces    BounceChecker
	Verifier   DomainVerifier
	Warmup     WarmupProcessor
	Blacklist  BlacklistChecker
	Cleaner    Cleaner
	Settings   Settings
	SendingIP  string
	Jobs       config.JobsConfig
	WarmupTick time.Duration
}

// Register adds the standard pipelines to s.
func Register(s *Scheduler, d Deps) {
	if d.Parser != nil {
		s.Add(Job{
			Name:       JobLogParse,
			Interval:   d.Jobs.LogParseInterval(),
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				stats, err := d.Parser.Parse(ctx)
				if err != nil {
					return err
				}
				if stats.Processed > 0 {
					logger.Info("log parse complete", "processed", stats.Processed, "sent", stats.Sent,
						"bounced", stats.Bounced, "deferred", stats.Deferred, "skipped", stats.Skipped)
				}
				return nil
			},
		})
	}
	if d.Bounces != nil {
		s.Add(Job{
			Name:     JobBounces,
			Interval: d.Jobs.BounceInterval(),
			Run: func(ctx context.Context) error {
				stats, err := d.Bounces.CheckBounces(ctx)
				if err != nil {
					return err
				}
				if stats.Reconciled > 0 || stats.Suppressed > 0 {
					logger.Info("bounce check complete", "reconciled", stats.Reconciled, "suppressed", stats.Suppressed)
				}
				return nil
			},
		})
	}
	if d.Verifier != nil {
		s.Add(Job{
			Name:     JobVerify,
			Interval: d.Jobs.VerifyInterval(),
			Timeout:  30 * time.Minute,
			Run: func(ctx context.Context) error {
				sum, err := d.Verifier.VerifyAll(ctx)
				if err != nil {
					return err
				}
				logger.Info("domain verification complete", "checked", sum.Checked, "verified", sum.Verified, "failed", sum.Failed)
				return nil
			},
		})
	}
	if d.Warmup != nil {
		s.Add(Job{
			Name:     JobWarmup,
			Interval: d.WarmupTick,
			Enabled:  settingEnabled(d.Settings, settings.KeyWarmupEnabled),
			Run: func(ctx context.Context) error {
				stats, err := d.Warmup.ProcessWarmupEmails(ctx)
				if err != nil {
					return err
				}
				if stats.Processed > 0 {
					logger.Info("warmup batch complete", "schedules", stats.Processed, "sent", stats.Sent, "errors", stats.Errors)
				}
				return nil
			},
		})
	}
	if d.Blacklist != nil && d.SendingIP != "" {
		s.Add(Job{
			Name:     JobBlacklist,
			Interval: d.Jobs.BlacklistInterval(),
			Timeout:  10 * time.Minute,
			Run: func(ctx context.Context) error {
				listed, err := d.Blacklist.CheckBlacklists(ctx, d.SendingIP, false)
				if err != nil {
					return err
				}
				if len(listed) > 0 {
					logger.Warn("sending ip is blacklisted", "ip", d.SendingIP, "zones", listed)
				}
				return nil
			},
		})
	}
	if d.Cleaner != nil {
		s.Add(Job{
			Name:     JobCleanup,
			Interval: d.Jobs.CleanupInterval(),
			Timeout:  time.Hour,
			Enabled:  settingEnabled(d.Settings, settings.KeyCleanupEnabled),
			Run: func(ctx context.Context) error {
				days := int64(d.Jobs.RetentionDays)
				if d.Settings != nil {
					v, err := d.Settings.Int(ctx, settings.KeyRetentionDays, days)
					if err != nil {
						log.Printf("[Worker] retention_days setting unreadable, using %d: %v", days, err)
					} else {
						days = v
					}
				}
				_, err := d.Cleaner.Run(ctx, int(days))
				return err
			},
		})
	}
}

// settingEnabled reads a boolean toggle. Missing settings and read errors
// leave the job enabled.
func settingEnabled(s Settings, key string) func(context.Context) bool {
	if s == nil {
		return nil
	}
	return func(ctx context.Context) bool {
		on, err := s.Bool(ctx, key, true)
		if err != nil {
			log.Printf("[Worker] setting %s unreadable: %v", key, err)
			return true
		}
		return on
	}
}
