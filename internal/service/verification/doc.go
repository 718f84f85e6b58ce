// Package verification manages sending domains: DNS verification of SPF,
// DKIM and DMARC, DKIM key generation and the DNS instructions shown to
// domain owners.
//
// DNS lookups fail soft. A timeout, SERVFAIL or NXDOMAIN marks the record
// unverified and never surfaces as an error. Key generation persists the
// keys first; writing key files, rewriting the OpenDKIM tables and reloading
// the milter are best effort and only logged.
package verification
