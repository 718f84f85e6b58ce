// Package dnsx holds the DNS collaborators: TXT lookups for SPF/DKIM/DMARC
// verification and DNSBL queries for IP reputation.
package dnsx

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/mjl-/adns"
	"golang.org/x/net/idna"
)

// TXTResolver looks up TXT records. A name without records yields an empty
// slice and a nil error.
type TXTResolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// IsNotFound reports whether err means the name or record type does not exist.
func IsNotFound(err error) bool {
	var dnsErr *adns.DNSError
	return err != nil && errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

// ADNSResolver resolves through github.com/mjl-/adns with a per-query timeout.
type ADNSResolver struct {
	resolver *adns.Resolver
	timeout  time.Duration
}

// NewADNSResolver creates a resolver. An empty server uses the system
// configuration; otherwise queries go to server ("host:port").
func NewADNSResolver(server string, timeout time.Duration) *ADNSResolver {
	r := &adns.Resolver{StrictErrors: true}
	if server != "" {
		r.PreferGo = true
		r.Dial = func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, server)
		}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ADNSResolver{resolver: r, timeout: timeout}
}

// LookupTXT implements TXTResolver.
func (r *ADNSResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	ascii, err := ToASCII(name)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	txts, _, err := r.resolver.LookupTXT(ctx, ascii+".")
	if IsNotFound(err) {
		return nil, nil
	}
	return txts, err
}

// ToASCII converts an internationalized domain name to its A-label form.
func ToASCII(name string) (string, error) {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".")
	return idna.Lookup.ToASCII(strings.ToLower(name))
}
