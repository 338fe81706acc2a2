// Package pnetidp is a relying-party client for the Partner.Net
// identity provider. It implements the SAML 2.0 web browser SSO profile
// with the Partner.Net protocol extensions, an OpenID Connect peer
// producing the same normalized principal, and the credential and
// metadata lifecycle around them.
package pnetidp

import (
	"github.com/porscheinformatik/pnet-idp-client-go/internal/adapters/driven/credentials"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/adapters/driven/metadata"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/ports"
)

// Normalized identity types.
type (
	Principal        = domain.Principal
	Company          = domain.Company
	CompanyAddress   = domain.CompanyAddress
	Role             = domain.Role
	Contract         = domain.Contract
	FunctionalNumber = domain.FunctionalNumber
	Gender           = domain.Gender
	Saml2Data        = domain.Saml2Data
)

// Gender codes per ISO/IEC 5218.
const (
	GenderUnknown       = domain.GenderUnknown
	GenderMale          = domain.GenderMale
	GenderFemale        = domain.GenderFemale
	GenderNotApplicable = domain.GenderNotApplicable
)

// Authentication context types and the class catalog.
type AuthnContextClass = domain.AuthnContextClass

var (
	AuthnContextClasses          = domain.AuthnContextClasses
	AuthnContextClassesAtOrAbove = domain.AuthnContextClassesAtOrAbove
	AuthnContextClassByReference = domain.AuthnContextClassByReference
)

// Request context and helpers for its optional fields.
type AuthnRequestContext = domain.AuthnRequestContext

var (
	IntPtr    = domain.IntPtr
	StringPtr = domain.StringPtr
)

// Credential and trust types.
type (
	Credential         = domain.Credential
	CredentialUsage    = domain.CredentialUsage
	TrustConfiguration = domain.TrustConfiguration
	AssertingParty     = domain.AssertingParty
	AlgorithmPolicy    = domain.AlgorithmPolicy
	CredentialSource   = credentials.Source
	Registration       = metadata.Registration
)

const (
	UsageSigning    = domain.UsageSigning
	UsageDecryption = domain.UsageDecryption
)

var (
	NewAlgorithmPolicy     = domain.NewAlgorithmPolicy
	DefaultAlgorithmPolicy = domain.DefaultAlgorithmPolicy
)

// Session is the session-attribute capability the hosting application
// supplies; the library stores per-authentication-attempt state through
// it and never manages cookies itself.
type Session = ports.Session

// MetricsRecorder is the metrics port. The metrics adapters in this
// module provide Prometheus and no-op implementations.
type MetricsRecorder = ports.MetricsRecorder

// State parameter helpers shared by the OIDC flow and relay-state
// round-tripping.
var (
	BuildState  = domain.BuildState
	CustomState = domain.CustomState
)
