package saml2

import (
	"bytes"
	"compress/flate"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"github.com/jonboulle/clockwork"

	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"
)

// AuthnRequestBuilder constructs outbound AuthnRequest messages for the
// HTTP-Redirect binding, including the Partner.Net protocol extensions.
type AuthnRequestBuilder struct {
	clock clockwork.Clock
}

// NewAuthnRequestBuilder creates a builder using the given clock for
// issue instants.
func NewAuthnRequestBuilder(clock clockwork.Clock) *AuthnRequestBuilder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AuthnRequestBuilder{clock: clock}
}

// GenerateRequestID returns a fresh message id: an underscore followed
// by 160 bits of entropy in hex, so the value is a valid XML NCName.
func GenerateRequestID() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate request id: %w", err)
	}
	return fmt.Sprintf("_%x", buf), nil
}

// BuildRedirectURL builds the AuthnRequest described by the request
// context and encodes it for the HTTP-Redirect binding. When the
// asserting party wants signed requests the query is signed with the
// given signing credential (RSA-SHA256 over the deflated request).
func (b *AuthnRequestBuilder) BuildRedirectURL(trust *domain.TrustConfiguration, reqCtx domain.AuthnRequestContext, relayState string) (*url.URL, error) {
	if trust == nil {
		return nil, domain.ErrNoTrustConfiguration
	}
	if reqCtx.AuthnRequestID == "" {
		return nil, fmt.Errorf("build authn request: request context has no request id")
	}

	doc := b.buildDocument(trust, reqCtx)
	encoded, err := deflateAndEncode(doc)
	if err != nil {
		return nil, err
	}

	destination, err := url.Parse(trust.AssertingParty.SingleSignOnURL)
	if err != nil {
		return nil, fmt.Errorf("parse single sign-on URL: %w", err)
	}

	query := url.Values{}
	query.Set("SAMLRequest", encoded)
	if relayState != "" {
		query.Set("RelayState", relayState)
	}

	if trust.AssertingParty.WantAuthnRequestsSigned {
		signed, err := signRedirectQuery(query, trust.SigningCredentials)
		if err != nil {
			return nil, err
		}
		query = signed
	}

	destination.RawQuery = query.Encode()
	return destination, nil
}

// buildDocument assembles the AuthnRequest element tree. Extension
// elements are emitted only for values present in the request context;
// an absent value produces no element at all.
func (b *AuthnRequestBuilder) buildDocument(trust *domain.TrustConfiguration, reqCtx domain.AuthnRequestContext) *etree.Document {
	doc := etree.NewDocument()

	request := doc.CreateElement("samlp:AuthnRequest")
	request.CreateAttr("xmlns:samlp", ProtocolNamespace)
	request.CreateAttr("xmlns:saml", AssertionNamespace)
	request.CreateAttr("ID", reqCtx.AuthnRequestID)
	request.CreateAttr("Version", SAMLVersion)
	request.CreateAttr("IssueInstant", b.clock.Now().UTC().Format(time.RFC3339))
	request.CreateAttr("Destination", trust.AssertingParty.SingleSignOnURL)
	request.CreateAttr("AssertionConsumerServiceURL", trust.AssertionConsumerServiceURL)
	request.CreateAttr("ProtocolBinding", HTTPPostBinding)
	if reqCtx.ForceAuthn {
		request.CreateAttr("ForceAuthn", "true")
	}

	issuer := request.CreateElement("saml:Issuer")
	issuer.SetText(trust.EntityID)

	if extensions := buildExtensions(reqCtx); extensions != nil {
		request.AddChild(extensions)
	}

	nameIDPolicy := request.CreateElement("samlp:NameIDPolicy")
	nameIDPolicy.CreateAttr("Format", NameIDFormatTransient)

	if reqCtx.NistLevel != nil {
		requested := request.CreateElement("samlp:RequestedAuthnContext")
		requested.CreateAttr("Comparison", "minimum")
		for _, class := range domain.AuthnContextClassesAtOrAbove(*reqCtx.NistLevel) {
			ref := requested.CreateElement("saml:AuthnContextClassRef")
			ref.SetText(class.Reference)
		}
	}

	return doc
}

// buildExtensions emits the pnet extension block, or nil when no
// extension value is present.
func buildExtensions(reqCtx domain.AuthnRequestContext) *etree.Element {
	type extension struct {
		name  string
		value *string
	}

	var values []extension
	if reqCtx.MaxSessionAge != nil {
		v := strconv.Itoa(*reqCtx.MaxSessionAge)
		values = append(values, extension{"MaxSessionAge", &v})
	}
	if reqCtx.MaxAgeMfa != nil {
		v := strconv.Itoa(*reqCtx.MaxAgeMfa)
		values = append(values, extension{"MaxAgeMfa", &v})
	}
	if reqCtx.Tenant != nil {
		v := strconv.Itoa(*reqCtx.Tenant)
		values = append(values, extension{"Tenant", &v})
	}
	if reqCtx.Prompt != nil {
		values = append(values, extension{"Prompt", reqCtx.Prompt})
	}
	if reqCtx.LoginHint != nil {
		values = append(values, extension{"LoginHint", reqCtx.LoginHint})
	}
	if len(values) == 0 {
		return nil
	}

	extensions := etree.NewElement("samlp:Extensions")
	for _, ext := range values {
		el := extensions.CreateElement(ExtensionNamespacePrefix + ":" + ext.name)
		el.CreateAttr("xmlns:"+ExtensionNamespacePrefix, ExtensionNamespace)
		el.SetText(*ext.value)
	}
	return extensions
}

// deflateAndEncode applies the HTTP-Redirect binding encoding: raw
// deflate, then base64.
func deflateAndEncode(doc *etree.Document) (string, error) {
	raw, err := doc.WriteToBytes()
	if err != nil {
		return "", fmt.Errorf("serialize authn request: %w", err)
	}

	var deflated bytes.Buffer
	writer, err := flate.NewWriter(&deflated, flate.DefaultCompression)
	if err != nil {
		return "", fmt.Errorf("deflate authn request: %w", err)
	}
	if _, err := writer.Write(raw); err != nil {
		return "", fmt.Errorf("deflate authn request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("deflate authn request: %w", err)
	}
	return base64.StdEncoding.EncodeToString(deflated.Bytes()), nil
}

// signRedirectQuery signs the redirect binding query per the SAML
// DEFLATE encoding rules: the signature covers
// SAMLRequest=...&RelayState=...&SigAlg=... in exactly that order.
func signRedirectQuery(query url.Values, credentials []domain.Credential) (url.Values, error) {
	signing := domain.FilterCredentials(credentials, domain.UsageSigning)
	if len(signing) == 0 {
		return nil, fmt.Errorf("sign authn request: no signing credential available")
	}
	key := signing[0].PrivateKey

	query.Set("SigAlg", domain.AlgSigningRSASHA256)

	toSign := "SAMLRequest=" + url.QueryEscape(query.Get("SAMLRequest"))
	if relayState := query.Get("RelayState"); relayState != "" {
		toSign += "&RelayState=" + url.QueryEscape(relayState)
	}
	toSign += "&SigAlg=" + url.QueryEscape(query.Get("SigAlg"))

	digest := sha256.Sum256([]byte(toSign))
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign authn request: %w", err)
	}
	query.Set("Signature", base64.StdEncoding.EncodeToString(signature))
	return query, nil
}
