package domain

import (
	"crypto/rsa"
	"crypto/x509"
	"time"
)

// CredentialUsage tags what a credential may be used for.
type CredentialUsage string

const (
	UsageSigning    CredentialUsage = "signing"
	UsageDecryption CredentialUsage = "decryption"
)

// Credential is a private key / certificate pair loaded from a keystore
// source. Multiple credentials of the same usage may be active at once
// to support key-rotation overlap.
type Credential struct {
	Usage       CredentialUsage
	PrivateKey  *rsa.PrivateKey
	Certificate *x509.Certificate

	// Source is the keystore path the credential was loaded from,
	// carried for logging and expiry warnings.
	Source string
}

// Expired reports whether the certificate is past its notAfter.
func (c Credential) Expired(now time.Time) bool {
	return c.Certificate != nil && now.After(c.Certificate.NotAfter)
}

// ExpiresWithin reports whether the certificate expires within d.
func (c Credential) ExpiresWithin(now time.Time, d time.Duration) bool {
	return c.Certificate != nil && now.Add(d).After(c.Certificate.NotAfter)
}

// FilterCredentials returns the credentials matching the given usage.
func FilterCredentials(creds []Credential, usage CredentialUsage) []Credential {
	var out []Credential
	for _, c := range creds {
		if c.Usage == usage {
			out = append(out, c)
		}
	}
	return out
}
