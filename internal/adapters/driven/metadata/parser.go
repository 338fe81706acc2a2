package metadata

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/crewjam/saml"

	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"
)

const redirectBinding = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect"

// parseAssertingParty extracts the trust-relevant facts from an IdP
// metadata document: entity id, the redirect-binding single sign-on
// endpoint, the request-signing policy and the verification
// certificates.
func parseAssertingParty(raw []byte) (*domain.AssertingParty, error) {
	var descriptor saml.EntityDescriptor
	if err := xml.Unmarshal(raw, &descriptor); err != nil {
		// Some federations wrap single descriptors in EntitiesDescriptor.
		var entities saml.EntitiesDescriptor
		if err2 := xml.Unmarshal(raw, &entities); err2 != nil || len(entities.EntityDescriptors) == 0 {
			return nil, fmt.Errorf("parse IdP metadata: %w", err)
		}
		descriptor = entities.EntityDescriptors[0]
	}

	if len(descriptor.IDPSSODescriptors) == 0 {
		return nil, fmt.Errorf("IdP metadata for %s has no IDPSSODescriptor", descriptor.EntityID)
	}
	idp := descriptor.IDPSSODescriptors[0]

	party := &domain.AssertingParty{
		EntityID: descriptor.EntityID,
	}
	if idp.WantAuthnRequestsSigned != nil {
		party.WantAuthnRequestsSigned = *idp.WantAuthnRequestsSigned
	}

	for _, endpoint := range idp.SingleSignOnServices {
		if endpoint.Binding == redirectBinding {
			party.SingleSignOnURL = endpoint.Location
			party.SingleSignOnBinding = endpoint.Binding
			break
		}
	}
	if party.SingleSignOnURL == "" {
		return nil, fmt.Errorf("IdP metadata for %s has no redirect-binding single sign-on endpoint", descriptor.EntityID)
	}

	certs, err := verificationCertificates(idp)
	if err != nil {
		return nil, err
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("IdP metadata for %s has no signing certificate", descriptor.EntityID)
	}
	party.VerificationCertificates = certs

	return party, nil
}

// verificationCertificates collects the certificates usable for
// signature verification. A KeyDescriptor without a use attribute
// applies to every use and is accepted as a signing certificate.
func verificationCertificates(idp saml.IDPSSODescriptor) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for _, descriptor := range idp.KeyDescriptors {
		if descriptor.Use != "" && descriptor.Use != "signing" {
			continue
		}
		for _, certData := range descriptor.KeyInfo.X509Data.X509Certificates {
			cert, err := decodeCertificate(certData.Data)
			if err != nil {
				return nil, err
			}
			certs = append(certs, cert)
		}
	}
	return certs, nil
}

func decodeCertificate(encoded string) (*x509.Certificate, error) {
	// Certificate data in metadata is base64 with arbitrary whitespace.
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, encoded)

	der, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("decode metadata certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse metadata certificate: %w", err)
	}
	return cert, nil
}
