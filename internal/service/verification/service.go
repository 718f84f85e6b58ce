package verification

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/ignite/mailcore/internal/dkim"
	"github.com/ignite/mailcore/internal/dnsx"
	"github.com/ignite/mailcore/internal/domain"
)

// Record prefixes that mark a TXT value as the expected policy record.
const (
	PrefixSPF   = "v=spf1"
	PrefixDKIM  = "v=DKIM1"
	PrefixDMARC = "v=DMARC1"
)

var domainRe = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)

// KeyStore writes DKIM keys to disk and updates the signing milter.
type KeyStore interface {
	WriteKeys(domainName, selector string, pair *dkim.KeyPair) (string, error)
	Update(domainName, selector, privPath string) error
	Reload(ctx context.Context) error
}

// Options holds key generation settings.
type Options struct {
	KeyBits      int
	Selector     string
	ManageTables bool
}

// Service implements domain verification and DKIM key management.
type Service struct {
	repo     Repository
	resolver dnsx.TXTResolver
	keygen   dkim.KeyGenerator
	keys     KeyStore
	opts     Options
	now      func() time.Time
}

// NewService creates a verification service. keys may be nil to skip
// writing key files and milter tables.
func NewService(repo Repository, resolver dnsx.TXTResolver, keygen dkim.KeyGenerator, keys KeyStore, opts Options) *Service {
	if opts.Selector == "" {
		opts.Selector = domain.DefaultDKIMSelector
	}
	return &Service{repo: repo, resolver: resolver, keygen: keygen, keys: keys, opts: opts, now: time.Now}
}

// Create registers a sending domain. Internationalized names are stored in
// their A-label form.
func (s *Service) Create(ctx context.Context, name, selector string) (*domain.Domain, error) {
	ascii, err := dnsx.ToASCII(name)
	if err != nil || !domainRe.MatchString(ascii) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDomain, name)
	}
	if selector == "" {
		selector = s.opts.Selector
	}
	d := &domain.Domain{
		Name:         ascii,
		DKIMSelector: selector,
		IsActive:     true,
		CreatedAt:    s.now(),
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Get returns a domain by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Domain, error) {
	return s.repo.Get(ctx, id)
}

// GetByName returns a domain by name.
func (s *Service) GetByName(ctx context.Context, name string) (*domain.Domain, error) {
	ascii, err := dnsx.ToASCII(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDomain, name)
	}
	return s.repo.GetByName(ctx, ascii)
}

// List returns all domains, or only active ones.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]domain.Domain, error) {
	return s.repo.List(ctx, activeOnly)
}

// VerifyDNSRecords checks SPF, DKIM and DMARC for a domain and persists the
// outcome. Only repository errors are returned.
func (s *Service) VerifyDNSRecords(ctx context.Context, domainID string) (*domain.VerificationReport, error) {
	d, err := s.repo.Get(ctx, domainID)
	if err != nil {
		return nil, err
	}
	return s.verify(ctx, d)
}

func (s *Service) verify(ctx context.Context, d *domain.Domain) (*domain.VerificationReport, error) {
	now := s.now()
	report := domain.VerificationReport{
		SPF:       s.check(ctx, d.Name, PrefixSPF),
		DKIM:      s.check(ctx, dkim.RecordName(d.Selector(), d.Name), PrefixDKIM),
		DMARC:     s.check(ctx, "_dmarc."+d.Name, PrefixDMARC),
		CheckedAt: now,
	}

	var verifiedAt *time.Time
	if report.AllVerified() {
		verifiedAt = &now
	}
	if err := s.repo.SaveVerification(ctx, d.ID, report, verifiedAt); err != nil {
		return nil, fmt.Errorf("save verification: %w", err)
	}
	return &report, nil
}

// check looks up name and returns the first TXT value with prefix.
func (s *Service) check(ctx context.Context, name, prefix string) domain.RecordCheck {
	txts, err := s.resolver.LookupTXT(ctx, name)
	if err != nil {
		log.Printf("[Verification] TXT lookup for %s failed: %v", name, err)
		return domain.RecordCheck{}
	}
	for _, txt := range txts {
		if strings.HasPrefix(strings.TrimSpace(txt), prefix) {
			record := txt
			return domain.RecordCheck{Verified: true, Record: &record}
		}
	}
	return domain.RecordCheck{}
}

// VerifySummary counts the outcome of VerifyAll.
type VerifySummary struct {
	Checked  int `json:"checked"`
	Verified int `json:"verified"`
	Failed   int `json:"failed"`
}

// VerifyAll verifies every active domain. A domain whose result cannot be
// saved is counted as failed and the run continues.
func (s *Service) VerifyAll(ctx context.Context) (VerifySummary, error) {
	var sum VerifySummary
	domains, err := s.repo.List(ctx, true)
	if err != nil {
		return sum, err
	}
	for i := range domains {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Checked++
		report, err := s.verify(ctx, &domains[i])
		if err != nil {
			log.Printf("[Verification] %s: %v", domains[i].Name, err)
			sum.Failed++
			continue
		}
		if report.AllVerified() {
			sum.Verified++
		}
	}
	return sum, nil
}

// Keys is the result of GenerateKeys.
type Keys struct {
	Selector   string `json:"selector"`
	RecordName string `json:"record_name"`
	DNSValue   string `json:"dns_value"`
}

// GenerateKeys creates and stores a new DKIM key pair for a domain.
func (s *Service) GenerateKeys(ctx context.Context, domainID string) (*Keys, error) {
	d, err := s.repo.Get(ctx, domainID)
	if err != nil {
		return nil, err
	}
	pair, err := s.keygen.Generate(s.opts.KeyBits)
	if err != nil {
		return nil, err
	}
	value := dkim.DNSValue(pair.PublicPEM)
	if err := s.repo.SaveKeys(ctx, d.ID, pair.PrivatePEM, value); err != nil {
		return nil, fmt.Errorf("save keys: %w", err)
	}
	log.Printf("[Verification] generated DKIM keys for %s (selector %s)", d.Name, d.Selector())

	if s.keys != nil {
		s.installKeys(ctx, d, pair)
	}
	return &Keys{
		Selector:   d.Selector(),
		RecordName: dkim.RecordName(d.Selector(), d.Name),
		DNSValue:   value,
	}, nil
}

func (s *Service) installKeys(ctx context.Context, d *domain.Domain, pair *dkim.KeyPair) {
	privPath, err := s.keys.WriteKeys(d.Name, d.Selector(), pair)
	if err != nil {
		log.Printf("[Verification] WARN: could not write key files for %s: %v", d.Name, err)
		return
	}
	if !s.opts.ManageTables {
		return
	}
	if err := s.keys.Update(d.Name, d.Selector(), privPath); err != nil {
		log.Printf("[Verification] WARN: could not update OpenDKIM tables for %s: %v", d.Name, err)
		return
	}
	if err := s.keys.Reload(ctx); err != nil {
		log.Printf("[Verification] WARN: could not reload OpenDKIM: %v", err)
	}
}

// DNSInstructions lists the records the owner of d must publish for mail
// relayed through hostname at ip.
func DNSInstructions(d *domain.Domain, hostname, ip string) []domain.DNSRecord {
	return []domain.DNSRecord{
		{Type: "MX", Name: "@", Value: hostname, Priority: 10},
		{Type: "A", Name: "mail", Value: ip},
		{Type: "TXT", Name: "@", Value: fmt.Sprintf("v=spf1 a mx ip4:%s -all", ip)},
		{Type: "TXT", Name: d.Selector() + "._domainkey", Value: d.DKIMPublicKey},
		{Type: "TXT", Name: "_dmarc", Value: "v=DMARC1; p=none; rua=mailto:dmarc@" + d.Name},
	}
}
