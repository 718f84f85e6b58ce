package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/ignite/mailcore/internal/app"
	"github.com/ignite/mailcore/internal/config"
)

func main() {
	args := os.Args[1:]
	configPath := "config/config.yaml"
	if v := flagValue(args, "--config"); v != "" {
		configPath = v
		args = dropFlag(args, "--config")
	}
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		fatal("load config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fatal("%v", err)
	}
	defer a.Close()

	c := &cli{app: a}
	switch args[0] {
	case "dkim":
		err = c.dkim(ctx, args[1:])
	case "domains":
		err = c.domains(ctx, args[1:])
	case "dns-instructions":
		err = c.dnsInstructions(ctx, args[1:])
	case "warmup":
		err = c.warmup(ctx, args[1:])
	case "mailbox":
		err = c.mailbox(ctx, args[1:])
	case "logs":
		err = c.logs(ctx, args[1:])
	case "bounces":
		err = c.bounces(ctx, args[1:])
	case "cleanup":
		err = c.cleanup(ctx, args[1:])
	default:
		printUsage()
		err = fmt.Errorf("unknown command: %s", args[0])
	}
	if err != nil {
		a.Close()
		fatal("%v", err)
	}
}

func printUsage() {
	fmt.Println(`mailctl: mail gateway administration

Usage:
  mailctl [--config <path>] <command> [args]

Commands:
  dkim generate <domain>                        Generate and install a DKIM key pair
  domains add <domain> [--selector <s>]         Register a sending domain
  domains verify [domain]                       Check SPF, DKIM and DMARC records
  dns-instructions <domain>                     Print the records to publish
  warmup start <email> [--days <n>]             Start a warmup schedule
  warmup stop|resume|status <email>             Pause, resume or inspect a schedule
  warmup list [--status <s>]                    List schedules
  mailbox create <email> --password <p>         Create a mailbox
         [--quota <mb>] [--daily-limit <n>] [--no-send] [--no-receive]
  logs parse                                    Ingest new Postfix log lines
  bounces check                                 Reconcile bounces and auto-suppress
  cleanup [--days <n>]                          Remove rows past retention`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func flagValue(args []string, name string) string {
	for i, a := range args {
		if a == name && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func hasFlag(args []string, name string) bool {
	for _, a := range args {
		if a == name {
			return true
		}
	}
	return false
}

func dropFlag(args []string, name string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] == name {
			i++
			continue
		}
		out = append(out, args[i])
	}
	return out
}

// positional returns the first argument that is neither a flag nor a flag value.
func positional(args []string) string {
	for i := 0; i < len(args); i++ {
		if strings.HasPrefix(args[i], "--") {
			if !strings.HasPrefix(args[i], "--no-") {
				i++
			}
			continue
		}
		return args[i]
	}
	return ""
}

func intFlag(args []string, name string, def int) (int, error) {
	v := flagValue(args, name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}
