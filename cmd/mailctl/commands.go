package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ignite/mailcore/internal/app"
	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/service/mailbox"
	"github.com/ignite/mailcore/internal/service/verification"
)

type cli struct {
	app *app.App
}

func (c *cli) dkim(ctx context.Context, args []string) error {
	if len(args) < 2 || args[0] != "generate" {
		return errors.New("usage: mailctl dkim generate <domain>")
	}
	d, err := c.app.Verification.GetByName(ctx, args[1])
	if err != nil {
		return err
	}
	keys, err := c.app.Verification.GenerateKeys(ctx, d.ID)
	if err != nil {
		return err
	}
	fmt.Printf("DKIM keys generated for %s\n\n", d.Name)
	fmt.Printf("Publish this TXT record:\n  %s  IN TXT  %q\n", keys.RecordName, keys.DNSValue)
	return nil
}

func (c *cli) domains(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: mailctl domains <add|verify>")
	}
	switch args[0] {
	case "add":
		name := positional(args[1:])
		if name == "" {
			return errors.New("usage: mailctl domains add <domain> [--selector <s>]")
		}
		d, err := c.app.Verification.Create(ctx, name, flagValue(args, "--selector"))
		if err != nil {
			return err
		}
		fmt.Printf("Domain %s registered (id %s, selector %s)\n", d.Name, d.ID, d.Selector())
		fmt.Println("Next: mailctl dkim generate " + d.Name)
		return nil

	case "verify":
		if len(args) > 1 {
			d, err := c.app.Verification.GetByName(ctx, args[1])
			if err != nil {
				return err
			}
			report, err := c.app.Verification.VerifyDNSRecords(ctx, d.ID)
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", d.Name)
			printCheck("SPF", report.SPF)
			printCheck("DKIM", report.DKIM)
			printCheck("DMARC", report.DMARC)
			return nil
		}
		sum, err := c.app.Verification.VerifyAll(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Checked %d domains: %d fully verified, %d failed\n", sum.Checked, sum.Verified, sum.Failed)
		return nil
	}
	return fmt.Errorf("unknown domains subcommand: %s", args[0])
}

func printCheck(name string, rc domain.RecordCheck) {
	state := "MISSING"
	if rc.Verified {
		state = "OK"
	}
	record := ""
	if rc.Record != nil {
		record = *rc.Record
	}
	fmt.Printf("  %-6s %-8s %s\n", name, state, record)
}

func (c *cli) dnsInstructions(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: mailctl dns-instructions <domain>")
	}
	d, err := c.app.Verification.GetByName(ctx, args[0])
	if err != nil {
		return err
	}
	cfg := c.app.Config.Mail
	if d.DKIMPublicKey == "" {
		fmt.Println("No DKIM key yet. Run: mailctl dkim generate " + d.Name)
	}
	fmt.Printf("DNS records for %s:\n\n", d.Name)
	for _, r := range verification.DNSInstructions(d, cfg.Hostname, cfg.IP) {
		if r.Priority > 0 {
			fmt.Printf("  %-5s %-28s %d %s\n", r.Type, r.Name, r.Priority, r.Value)
			continue
		}
		fmt.Printf("  %-5s %-28s %s\n", r.Type, r.Name, r.Value)
	}
	return nil
}

func (c *cli) warmup(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: mailctl warmup <start|stop|resume|status|list>")
	}
	w := c.app.Warmup
	if args[0] == "list" {
		schedules, err := w.List(ctx, domain.WarmupStatus(flagValue(args, "--status")))
		if err != nil {
			return err
		}
		if len(schedules) == 0 {
			fmt.Println("No warmup schedules")
			return nil
		}
		for _, s := range schedules {
			fmt.Printf("  %s  %-9s day %2d/%-2d  %d/%d today\n",
				s.MailboxID, s.Status, s.Day, s.TargetDay, s.EmailsSentToday, s.EmailsTargetToday)
		}
		return nil
	}

	email := positional(args[1:])
	if email == "" {
		return fmt.Errorf("usage: mailctl warmup %s <email>", args[0])
	}
	mb, err := c.app.Mailboxes.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return err
	}

	switch args[0] {
	case "start":
		days, err := intFlag(args, "--days", 0)
		if err != nil {
			return err
		}
		s, err := w.StartWarmup(ctx, mb.ID, days)
		if err != nil {
			return err
		}
		fmt.Printf("Warmup started for %s: %d days, %d emails today\n", mb.Email, s.TargetDay, s.EmailsTargetToday)
	case "stop":
		if _, err := w.Pause(ctx, mb.ID); err != nil {
			return err
		}
		fmt.Printf("Warmup paused for %s\n", mb.Email)
	case "resume":
		if _, err := w.Resume(ctx, mb.ID); err != nil {
			return err
		}
		fmt.Printf("Warmup resumed for %s\n", mb.Email)
	case "status":
		st, err := w.GetWarmupStatus(ctx, mb.ID)
		if err != nil {
			return err
		}
		return printJSON(st)
	default:
		return fmt.Errorf("unknown warmup subcommand: %s", args[0])
	}
	return nil
}

func (c *cli) mailbox(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] != "create" {
		return errors.New("usage: mailctl mailbox create <email> --password <p>")
	}
	rest := args[1:]
	local, host, ok := strings.Cut(positional(rest), "@")
	if !ok || local == "" || host == "" {
		return errors.New("mailbox address must be local@domain")
	}
	d, err := c.app.Verification.GetByName(ctx, host)
	if err != nil {
		return err
	}
	quota, err := intFlag(rest, "--quota", 0)
	if err != nil {
		return err
	}
	limit, err := intFlag(rest, "--daily-limit", 0)
	if err != nil {
		return err
	}
	mb, err := c.app.Mailboxes.Create(ctx, mailbox.CreateRequest{
		DomainID:       d.ID,
		LocalPart:      local,
		Password:       flagValue(rest, "--password"),
		QuotaMB:        quota,
		DailySendLimit: limit,
		CanSend:        !hasFlag(rest, "--no-send"),
		CanReceive:     !hasFlag(rest, "--no-receive"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("Mailbox %s created (id %s, quota %d MB, %d/day)\n", mb.Email, mb.ID, mb.QuotaMB, mb.DailySendLimit)
	return nil
}

func (c *cli) logs(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] != "parse" {
		return errors.New("usage: mailctl logs parse")
	}
	stats, err := c.app.LogParser.Parse(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Processed %d lines: %d sent, %d bounced, %d deferred, %d skipped\n",
		stats.Processed, stats.Sent, stats.Bounced, stats.Deferred, stats.Skipped)
	return nil
}

func (c *cli) bounces(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] != "check" {
		return errors.New("usage: mailctl bounces check")
	}
	stats, err := c.app.Bounces.CheckBounces(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Reconciled %d bounces, suppressed %d recipients\n", stats.Reconciled, stats.Suppressed)
	return nil
}

func (c *cli) cleanup(ctx context.Context, args []string) error {
	days, err := intFlag(args, "--days", c.app.Config.Jobs.RetentionDays)
	if err != nil {
		return err
	}
	if days == 0 {
		return errors.New("--days must be at least 1")
	}
	stats, err := c.app.Cleaner.Run(ctx, days)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d rows older than %d days\n", stats.Total(), days)
	return printJSON(stats)
}
