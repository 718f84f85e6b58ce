package dnsx

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// Exchanger sends a single DNS query. *dns.Client satisfies it.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, address string) (*dns.Msg, time.Duration, error)
}

// Listing is the result of one DNSBL zone lookup.
type Listing struct {
	Zone   string `json:"zone"`
	Listed bool   `json:"listed"`
	Answer string `json:"answer,omitempty"`
}

type cacheEntry struct {
	listing Listing
	expires time.Time
}

// BlacklistChecker queries DNSBL zones for an IP, caching answers per zone.
type BlacklistChecker struct {
	client   Exchanger
	server   string
	zones    []string
	timeout  time.Duration
	cacheTTL time.Duration
	now      func() time.Time
	source   func(ctx context.Context) []string

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewBlacklistChecker creates a checker sending queries to server ("host:port").
func NewBlacklistChecker(server string, zones []string, timeout time.Duration) *BlacklistChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BlacklistChecker{
		client:   &dns.Client{Net: "udp", Timeout: timeout},
		server:   server,
		zones:    zones,
		timeout:  timeout,
		cacheTTL: time.Hour,
		now:      time.Now,
		cache:    make(map[string]cacheEntry),
	}
}

// WithExchanger replaces the DNS client, mainly for tests.
func (c *BlacklistChecker) WithExchanger(ex Exchanger) *BlacklistChecker {
	c.client = ex
	return c
}

// WithZoneSource makes Check ask fn for the zones on every call. The
// configured zones apply when fn returns none.
func (c *BlacklistChecker) WithZoneSource(fn func(ctx context.Context) []string) *BlacklistChecker {
	c.source = fn
	return c
}

// Zones returns the configured DNSBL zones.
func (c *BlacklistChecker) Zones() []string {
	return c.zones
}

func (c *BlacklistChecker) zonesFor(ctx context.Context) []string {
	if c.source != nil {
		if zones := c.source(ctx); len(zones) > 0 {
			return zones
		}
	}
	return c.zones
}

// Check looks up ip on every zone. Zones that fail to answer are logged and
// reported as not listed.
func (c *BlacklistChecker) Check(ctx context.Context, ip string) ([]Listing, error) {
	rev, err := ReverseIP(ip)
	if err != nil {
		return nil, err
	}

	zones := c.zonesFor(ctx)
	results := make([]Listing, 0, len(zones))
	for _, zone := range zones {
		if l, ok := c.cached(ip, zone); ok {
			results = append(results, l)
			continue
		}
		l, err := c.query(ctx, rev, zone)
		if err != nil {
			log.Printf("[DNSBL] lookup %s on %s failed: %v", ip, zone, err)
			results = append(results, Listing{Zone: zone})
			continue
		}
		c.store(ip, l)
		results = append(results, l)
	}
	return results, nil
}

// Listed returns the zones from results that list the IP.
func Listed(results []Listing) []string {
	var zones []string
	for _, l := range results {
		if l.Listed {
			zones = append(zones, l.Zone)
		}
	}
	return zones
}

func (c *BlacklistChecker) query(ctx context.Context, rev, zone string) (Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(rev+"."+zone), dns.TypeA)
	m.RecursionDesired = true

	resp, _, err := c.client.ExchangeContext(ctx, m, c.server)
	if err != nil {
		return Listing{}, err
	}
	listing := Listing{Zone: zone}
	switch resp.Rcode {
	case dns.RcodeNameError:
		return listing, nil
	case dns.RcodeSuccess:
	default:
		return Listing{}, fmt.Errorf("rcode %s", dns.RcodeToString[resp.Rcode])
	}
	for _, rr := range resp.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		if v4 := a.A.To4(); v4 != nil && v4[0] == 127 {
			listing.Listed = true
			listing.Answer = v4.String()
			break
		}
	}
	return listing, nil
}

func (c *BlacklistChecker) cached(ip, zone string) (Listing, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[ip+"|"+zone]
	if !ok || c.now().After(e.expires) {
		return Listing{}, false
	}
	return e.listing, true
}

func (c *BlacklistChecker) store(ip string, l Listing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[ip+"|"+l.Zone] = cacheEntry{listing: l, expires: c.now().Add(c.cacheTTL)}
}

// ReverseIP returns the DNSBL query label for ip: reversed octets for IPv4,
// reversed nibbles for IPv6.
func ReverseIP(ip string) (string, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "", fmt.Errorf("invalid ip address %q", ip)
	}
	if v4 := parsed.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.%d.%d", v4[3], v4[2], v4[1], v4[0]), nil
	}
	const hexdigits = "0123456789abcdef"
	v6 := parsed.To16()
	labels := make([]string, 0, 32)
	for i := len(v6) - 1; i >= 0; i-- {
		labels = append(labels, string(hexdigits[v6[i]&0xf]), string(hexdigits[v6[i]>>4]))
	}
	return strings.Join(labels, "."), nil
}
