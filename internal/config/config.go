// Package config loads the gateway configuration from a YAML file, an
// optional .env file, and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Mail      MailConfig      `yaml:"mail"`
	MTA       MTAConfig       `yaml:"mta"`
	DKIM      DKIMConfig      `yaml:"dkim"`
	DNS       DNSConfig       `yaml:"dns"`
	Postfix   PostfixConfig   `yaml:"postfix"`
	Warmup    WarmupConfig    `yaml:"warmup"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                int      `yaml:"port" env:"MAILCORE_PORT"`
	Host                string   `yaml:"host" env:"SERVER_HOST"`
	APIToken            string   `yaml:"api_token" env:"MAILCORE_API_TOKEN"`
	ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
	CORSOrigins         []string `yaml:"cors_origins" env:"MAILCORE_CORS_ORIGINS" envSeparator:","`
}

// ReadTimeout returns the configured read timeout as a duration
func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the configured write timeout as a duration
func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// Addr returns host:port for the listener.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL                    string `yaml:"url" env:"DATABASE_URL"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// ConnMaxLifetime returns the pool connection lifetime as a duration
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// RedisConfig holds the Redis URL. An empty URL disables Redis-backed
// rate limiting and locking.
type RedisConfig struct {
	URL string `yaml:"url" env:"REDIS_URL"`
}

// MailConfig holds gateway-wide mail settings
type MailConfig struct {
	Domain             string `yaml:"domain" env:"MAILCORE_DOMAIN"`
	Hostname           string `yaml:"hostname" env:"MAILCORE_HOSTNAME"`
	IP                 string `yaml:"ip" env:"MAILCORE_IP"`
	SandboxMode        bool   `yaml:"sandbox_mode" env:"MAILCORE_SANDBOX_MODE"`
	AutoWarmup         bool   `yaml:"auto_warmup" env:"MAILCORE_AUTO_WARMUP"`
	UnsubscribeBaseURL string `yaml:"unsubscribe_base_url" env:"MAILCORE_UNSUBSCRIBE_BASE_URL"`
	MaildirRoot        string `yaml:"maildir_root"`
	DefaultQuotaMB     int    `yaml:"default_quota_mb"`
	MaxQuotaMB         int    `yaml:"max_quota_mb"`
	DefaultDailyLimit  int    `yaml:"default_daily_limit"`
}

// MTAConfig holds the SMTP handoff target (the local Postfix)
type MTAConfig struct {
	Host           string `yaml:"host" env:"MAILCORE_MTA_HOST"`
	Port           int    `yaml:"port" env:"MAILCORE_MTA_PORT"`
	Username       string `yaml:"username" env:"MAILCORE_MTA_USERNAME"`
	Password       string `yaml:"password" env:"MAILCORE_MTA_PASSWORD"`
	HELO           string `yaml:"helo"`
	StartTLS       bool   `yaml:"starttls"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c MTAConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Addr returns host:port of the MTA.
func (c MTAConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DKIMConfig holds key storage and OpenDKIM table locations
type DKIMConfig struct {
	KeyPath       string `yaml:"key_path" env:"MAILCORE_DKIM_PATH"`
	Selector      string `yaml:"selector"`
	KeyBits       int    `yaml:"key_bits"`
	KeyTable      string `yaml:"key_table"`
	SigningTable  string `yaml:"signing_table"`
	TrustedHosts  string `yaml:"trusted_hosts"`
	ReloadCommand string `yaml:"reload_command"`
	ManageTables  bool   `yaml:"manage_tables"`
}

// DNSConfig holds resolver and blacklist settings
type DNSConfig struct {
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Resolver       string   `yaml:"resolver" env:"MAILCORE_DNS_RESOLVER"`
	Blacklists     []string `yaml:"blacklists"`
}

// Timeout returns the configured timeout as a duration
func (c DNSConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PostfixConfig holds log ingestion settings
type PostfixConfig struct {
	LogPath     string `yaml:"log_path" env:"MAILCORE_POSTFIX_LOG"`
	OffsetStore string `yaml:"offset_store"` // "postgres" or "bolt"
	BoltPath    string `yaml:"bolt_path"`
}

// WarmupConfig holds warmup scheduler settings
type WarmupConfig struct {
	BatchSize         int      `yaml:"batch_size"`
	IntervalSeconds   int      `yaml:"interval_seconds"`
	DefaultTargetDays int      `yaml:"default_target_days"`
	Recipients        []string `yaml:"recipients" env:"MAILCORE_WARMUP_RECIPIENTS" envSeparator:","`
}

// Interval returns the warmup tick interval as a duration
func (c WarmupConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// RateLimitConfig holds the per-IP API limit and the per-sender send limit
// used by the spam filter
type RateLimitConfig struct {
	PerMinute       int `yaml:"per_minute"`
	SenderPerMinute int `yaml:"sender_per_minute"`
}

// JobsConfig holds scheduled job intervals
type JobsConfig struct {
	LogParseSeconds  int `yaml:"log_parse_seconds"`
	BounceSeconds    int `yaml:"bounce_seconds"`
	VerifySeconds    int `yaml:"verify_seconds"`
	CleanupSeconds   int `yaml:"cleanup_seconds"`
	BlacklistSeconds int `yaml:"blacklist_seconds"`
	RetentionDays    int `yaml:"retention_days"`
}

// LogParseInterval returns the log parse interval as a duration
func (c JobsConfig) LogParseInterval() time.Duration { return seconds(c.LogParseSeconds) }

// BounceInterval returns the bounce reconciliation interval as a duration
func (c JobsConfig) BounceInterval() time.Duration { return seconds(c.BounceSeconds) }

// VerifyInterval returns the domain verification interval as a duration
func (c JobsConfig) VerifyInterval() time.Duration { return seconds(c.VerifySeconds) }

// CleanupInterval returns the retention cleanup interval as a duration
func (c JobsConfig) CleanupInterval() time.Duration { return seconds(c.CleanupSeconds) }

// BlacklistInterval returns the DNSBL check interval as a duration
func (c JobsConfig) BlacklistInterval() time.Duration { return seconds(c.BlacklistSeconds) }

// LogConfig holds structured logger settings
type LogConfig struct {
	Level     string `yaml:"level" env:"LOG_LEVEL"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on (default true).
func (c LogConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// DefaultBlacklists are the DNSBL zones checked when none are configured.
var DefaultBlacklists = []string{
	"zen.spamhaus.org",
	"bl.spamcop.net",
	"b.barracudacentral.org",
	"dnsbl.sorbs.net",
	"psbl.surriel.com",
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 30
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = 60
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = "postgres://localhost:5432/mailcore?sslmode=disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes == 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 5
	}
	if cfg.Mail.Hostname == "" && cfg.Mail.Domain != "" {
		cfg.Mail.Hostname = "mail." + cfg.Mail.Domain
	}
	if cfg.Mail.MaildirRoot == "" {
		cfg.Mail.MaildirRoot = "/var/mail/vhosts"
	}
	if cfg.Mail.DefaultQuotaMB == 0 {
		cfg.Mail.DefaultQuotaMB = 1024
	}
	if cfg.Mail.MaxQuotaMB == 0 {
		cfg.Mail.MaxQuotaMB = 5120
	}
	if cfg.Mail.DefaultDailyLimit == 0 {
		cfg.Mail.DefaultDailyLimit = 500
	}
	if cfg.MTA.Host == "" {
		cfg.MTA.Host = "127.0.0.1"
	}
	if cfg.MTA.Port == 0 {
		cfg.MTA.Port = 25
	}
	if cfg.MTA.TimeoutSeconds == 0 {
		cfg.MTA.TimeoutSeconds = 30
	}
	if cfg.MTA.HELO == "" {
		cfg.MTA.HELO = cfg.Mail.Hostname
	}
	if cfg.DKIM.KeyPath == "" {
		cfg.DKIM.KeyPath = "/etc/opendkim/keys"
	}
	if cfg.DKIM.Selector == "" {
		cfg.DKIM.Selector = "default"
	}
	if cfg.DKIM.KeyBits == 0 {
		cfg.DKIM.KeyBits = 2048
	}
	if cfg.DKIM.KeyTable == "" {
		cfg.DKIM.KeyTable = "/etc/opendkim/KeyTable"
	}
	if cfg.DKIM.SigningTable == "" {
		cfg.DKIM.SigningTable = "/etc/opendkim/SigningTable"
	}
	if cfg.DKIM.TrustedHosts == "" {
		cfg.DKIM.TrustedHosts = "/etc/opendkim/TrustedHosts"
	}
	if cfg.DKIM.ReloadCommand == "" {
		cfg.DKIM.ReloadCommand = "systemctl reload opendkim || service opendkim reload"
	}
	if cfg.DNS.TimeoutSeconds == 0 {
		cfg.DNS.TimeoutSeconds = 5
	}
	if cfg.DNS.Resolver == "" {
		cfg.DNS.Resolver = "127.0.0.1:53"
	}
	if len(cfg.DNS.Blacklists) == 0 {
		cfg.DNS.Blacklists = append([]string(nil), DefaultBlacklists...)
	}
	if cfg.Postfix.LogPath == "" {
		cfg.Postfix.LogPath = "/var/log/mail.log"
	}
	if cfg.Postfix.OffsetStore == "" {
		cfg.Postfix.OffsetStore = "postgres"
	}
	if cfg.Postfix.BoltPath == "" {
		cfg.Postfix.BoltPath = "/var/lib/mailcore/state.db"
	}
	if cfg.Warmup.BatchSize == 0 {
		cfg.Warmup.BatchSize = 5
	}
	if cfg.Warmup.IntervalSeconds == 0 {
		cfg.Warmup.IntervalSeconds = 300
	}
	if cfg.Warmup.DefaultTargetDays == 0 {
		cfg.Warmup.DefaultTargetDays = 30
	}
	if cfg.RateLimit.PerMinute == 0 {
		cfg.RateLimit.PerMinute = 60
	}
	if cfg.RateLimit.SenderPerMinute == 0 {
		cfg.RateLimit.SenderPerMinute = 120
	}
	if cfg.Jobs.LogParseSeconds == 0 {
		cfg.Jobs.LogParseSeconds = 300
	}
	if cfg.Jobs.BounceSeconds == 0 {
		cfg.Jobs.BounceSeconds = 600
	}
	if cfg.Jobs.VerifySeconds == 0 {
		cfg.Jobs.VerifySeconds = 86400
	}
	if cfg.Jobs.CleanupSeconds == 0 {
		cfg.Jobs.CleanupSeconds = 86400
	}
	if cfg.Jobs.BlacklistSeconds == 0 {
		cfg.Jobs.BlacklistSeconds = 86400
	}
	if cfg.Jobs.RetentionDays == 0 {
		cfg.Jobs.RetentionDays = 90
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file in the working directory is loaded first if present.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: env overrides: %w", err)
	}
	if cfg.MTA.HELO == "" {
		cfg.MTA.HELO = cfg.Mail.Hostname
	}
	return cfg, nil
}
