package domain

import "crypto/x509"

// AssertingParty describes the Identity Provider side of a trust
// relationship, extracted from its metadata document.
type AssertingParty struct {
	EntityID                string
	SingleSignOnURL         string
	SingleSignOnBinding     string
	WantAuthnRequestsSigned bool

	// VerificationCertificates are every signing-use or use-less
	// certificate from the IdP metadata. Use-less keys are deliberately
	// accepted as signing keys; some IdPs omit the use attribute.
	VerificationCertificates []*x509.Certificate
}

// TrustConfiguration is the immutable snapshot a request thread works
// with: the relying party's own registration plus the asserting party
// details. Rebuilt wholesale on metadata or credential changes; readers
// never observe a partially updated snapshot.
type TrustConfiguration struct {
	RegistrationID              string
	EntityID                    string
	AssertionConsumerServiceURL string
	AssertionConsumerBinding    string

	SigningCredentials    []Credential
	DecryptionCredentials []Credential

	AssertingParty AssertingParty
}
