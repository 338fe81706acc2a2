// Package saml2 implements the SAML 2.0 protocol engine of the relying
// party: AuthnRequest construction, the response validation pipeline,
// assertion decryption, the response-to-principal mapper and the SP
// metadata document builder.
package saml2

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/beevik/etree"
)

// SAML 2.0 constants used on the wire.
const (
	ProtocolNamespace  = "urn:oasis:names:tc:SAML:2.0:protocol"
	AssertionNamespace = "urn:oasis:names:tc:SAML:2.0:assertion"

	HTTPPostBinding     = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"
	HTTPRedirectBinding = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect"

	StatusSuccess = "urn:oasis:names:tc:SAML:2.0:status:Success"

	NameIDFormatEntity    = "urn:oasis:names:tc:SAML:2.0:nameid-format:entity"
	NameIDFormatTransient = "urn:oasis:names:tc:SAML:2.0:nameid-format:transient"

	BearerConfirmationMethod = "urn:oasis:names:tc:SAML:2.0:cm:bearer"

	SAMLVersion = "2.0"
)

// The vendor extension namespace for Partner.Net protocol extensions
// and the attribute name prefix for all business claims.
const (
	ExtensionNamespace       = "https://identity.auto-partner.net/identity/saml2"
	AttributeNamePrefix      = "https://identity.auto-partner.net/identity/saml2/attributes/"
	ExtensionNamespacePrefix = "pnet"
)

// Subject identifier attributes per the SAML subject identifier
// attributes profile. Exactly one of the two must be asserted.
const (
	AttributeSubjectID  = "urn:oasis:names:tc:SAML:attribute:subject-id"
	AttributePairwiseID = "urn:oasis:names:tc:SAML:attribute:pairwise-id"
)

// Response is the inbound samlp:Response message. Unlike a single
// bearer-assertion happy path, the struct keeps every assertion so the
// pipeline can enforce the exactly-one invariant itself.
type Response struct {
	XMLName      xml.Name  `xml:"urn:oasis:names:tc:SAML:2.0:protocol Response"`
	ID           string    `xml:"ID,attr"`
	InResponseTo string    `xml:"InResponseTo,attr"`
	Version      string    `xml:"Version,attr"`
	IssueInstant time.Time `xml:"IssueInstant,attr"`
	Destination  string    `xml:"Destination,attr"`

	Issuer              *Issuer              `xml:"urn:oasis:names:tc:SAML:2.0:assertion Issuer"`
	Status              *Status              `xml:"Status"`
	Assertions          []Assertion          `xml:"urn:oasis:names:tc:SAML:2.0:assertion Assertion"`
	EncryptedAssertions []EncryptedAssertion `xml:"urn:oasis:names:tc:SAML:2.0:assertion EncryptedAssertion"`
}

// Issuer identifies the message originator.
type Issuer struct {
	Format string `xml:"Format,attr"`
	Value  string `xml:",chardata"`
}

// Status carries the protocol-level outcome.
type Status struct {
	StatusCode StatusCode `xml:"StatusCode"`
}

// StatusCode is the top-level status code of a response.
type StatusCode struct {
	Value string `xml:"Value,attr"`
}

// Success reports whether the response status is exactly the success
// code.
func (r *Response) Success() bool {
	return r.Status != nil && r.Status.StatusCode.Value == StatusSuccess
}

// EncryptedAssertion carries the raw EncryptedData for decryption.
type EncryptedAssertion struct {
	EncryptedData []byte `xml:",innerxml"`
}

// Assertion is one saml:Assertion.
type Assertion struct {
	XMLName      xml.Name  `xml:"urn:oasis:names:tc:SAML:2.0:assertion Assertion"`
	ID           string    `xml:"ID,attr"`
	Version      string    `xml:"Version,attr"`
	IssueInstant time.Time `xml:"IssueInstant,attr"`

	Issuer              *Issuer              `xml:"Issuer"`
	Subject             *Subject             `xml:"Subject"`
	Conditions          *Conditions          `xml:"Conditions"`
	AuthnStatements     []AuthnStatement     `xml:"AuthnStatement"`
	AttributeStatements []AttributeStatement `xml:"AttributeStatement"`
}

// Subject holds the name identifier and its confirmations.
type Subject struct {
	NameID               *NameID               `xml:"NameID"`
	SubjectConfirmations []SubjectConfirmation `xml:"SubjectConfirmation"`
}

// NameID is the opaque subject name identifier.
type NameID struct {
	Format string `xml:"Format,attr"`
	Value  string `xml:",chardata"`
}

// SubjectConfirmation states how the subject may be confirmed.
type SubjectConfirmation struct {
	Method                  string                   `xml:"Method,attr"`
	SubjectConfirmationData *SubjectConfirmationData `xml:"SubjectConfirmationData"`
}

// SubjectConfirmationData restricts a subject confirmation. Zero time
// values mean the attribute was absent.
type SubjectConfirmationData struct {
	NotBefore    time.Time `xml:"NotBefore,attr"`
	NotOnOrAfter time.Time `xml:"NotOnOrAfter,attr"`
	Recipient    string    `xml:"Recipient,attr"`
	InResponseTo string    `xml:"InResponseTo,attr"`
	Address      string    `xml:"Address,attr"`
}

// Conditions restricts the validity of an assertion.
type Conditions struct {
	NotBefore            time.Time             `xml:"NotBefore,attr"`
	NotOnOrAfter         time.Time             `xml:"NotOnOrAfter,attr"`
	AudienceRestrictions []AudienceRestriction `xml:"AudienceRestriction"`
}

// AudienceRestriction lists the intended audiences.
type AudienceRestriction struct {
	Audiences []Audience `xml:"Audience"`
}

// Audience is one intended audience entity id.
type Audience struct {
	Value string `xml:",chardata"`
}

// AuthnStatement describes the act of authentication.
type AuthnStatement struct {
	AuthnInstant time.Time     `xml:"AuthnInstant,attr"`
	SessionIndex string        `xml:"SessionIndex,attr"`
	AuthnContext *AuthnContext `xml:"AuthnContext"`
}

// AuthnContext carries the authentication context class reference.
type AuthnContext struct {
	AuthnContextClassRef string `xml:"AuthnContextClassRef"`
}

// AttributeStatement lists asserted attributes.
type AttributeStatement struct {
	Attributes []Attribute `xml:"Attribute"`
}

// Attribute is one asserted attribute with its values.
type Attribute struct {
	Name         string           `xml:"Name,attr"`
	NameFormat   string           `xml:"NameFormat,attr"`
	FriendlyName string           `xml:"FriendlyName,attr"`
	Values       []AttributeValue `xml:"AttributeValue"`
}

// AttributeValue is one attribute value with its declared XML schema
// type.
type AttributeValue struct {
	Type  string `xml:"http://www.w3.org/2001/XMLSchema-instance type,attr"`
	Value string `xml:",chardata"`
}

// ParseResponse decodes a base64 SAMLResponse form parameter into both
// an etree document (for signature validation and decryption) and the
// typed Response.
func ParseResponse(encoded string) (*Response, *etree.Document, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, nil, fmt.Errorf("decode SAMLResponse: %w", err)
	}
	return parseResponseXML(raw)
}

func parseResponseXML(raw []byte) (*Response, *etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, nil, fmt.Errorf("parse response XML: %w", err)
	}
	if doc.Root() == nil {
		return nil, nil, fmt.Errorf("parse response XML: empty document")
	}

	var resp Response
	if err := xml.Unmarshal(raw, &resp); err != nil {
		return nil, nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, doc, nil
}
