// Package consent records GDPR consent grants, double opt-in verification
// and revocation, and answers whether an address holds valid consent for a
// purpose.
package consent
