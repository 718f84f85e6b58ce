// Package dkim generates DKIM signing keys and maintains the OpenDKIM key,
// signing and trusted-host tables.
package dkim

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"
)

// DefaultBits is the RSA modulus size used when none is configured.
const DefaultBits = 2048

// KeyPair is a PEM-encoded RSA key pair.
type KeyPair struct {
	PrivatePEM string
	PublicPEM  string
}

// KeyGenerator creates DKIM key pairs.
type KeyGenerator interface {
	Generate(bits int) (*KeyPair, error)
}

// RSAGenerator generates RSA keys in process.
type RSAGenerator struct{}

// Generate implements KeyGenerator.
func (RSAGenerator) Generate(bits int) (*KeyPair, error) {
	if bits == 0 {
		bits = DefaultBits
	}
	if bits < 1024 {
		return nil, fmt.Errorf("dkim: key size %d too small", bits)
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("dkim: generate key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("dkim: marshal public key: %w", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubDER,
	})
	return &KeyPair{PrivatePEM: string(privPEM), PublicPEM: string(pubPEM)}, nil
}

// DNSValue formats a PEM public key as a DKIM TXT record value.
func DNSValue(publicPEM string) string {
	p := strings.ReplaceAll(publicPEM, "-----BEGIN PUBLIC KEY-----", "")
	p = strings.ReplaceAll(p, "-----END PUBLIC KEY-----", "")
	p = strings.NewReplacer("\n", "", "\r", "", " ", "").Replace(p)
	return "v=DKIM1; k=rsa; p=" + p
}

// RecordName is the DNS name of the DKIM record for selector and domain.
func RecordName(selector, domainName string) string {
	return selector + "._domainkey." + domainName
}
