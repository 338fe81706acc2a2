//go:build unit

package saml2

import (
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/jonboulle/clockwork"

	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"
)

func TestMetadataBuilder_Build(t *testing.T) {
	key, cert := testKeyPair(t)
	trust := testTrust(cert)
	trust.SigningCredentials = []domain.Credential{{
		Usage: domain.UsageSigning, PrivateKey: key, Certificate: cert,
	}}
	trust.DecryptionCredentials = []domain.Credential{{
		Usage: domain.UsageDecryption, PrivateKey: key, Certificate: cert,
	}}

	builder := NewMetadataBuilder(nil, clockwork.NewFakeClockAt(testNow))
	raw, err := builder.Build(trust)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	root := doc.Root()

	if got := root.SelectAttrValue("entityID", ""); got != testSPEntityID {
		t.Errorf("entityID = %q", got)
	}

	acs := root.FindElement("./SPSSODescriptor/AssertionConsumerService")
	if acs == nil {
		t.Fatal("no AssertionConsumerService element")
	}
	if acs.SelectAttrValue("Location", "") != testACSURL {
		t.Errorf("ACS location = %q", acs.SelectAttrValue("Location", ""))
	}
	if acs.SelectAttrValue("Binding", "") != HTTPPostBinding {
		t.Errorf("ACS binding = %q", acs.SelectAttrValue("Binding", ""))
	}

	keyDescriptors := root.FindElements("./SPSSODescriptor/KeyDescriptor")
	if len(keyDescriptors) != 2 {
		t.Fatalf("found %d key descriptors, want 2", len(keyDescriptors))
	}
	uses := map[string]bool{}
	for _, descriptor := range keyDescriptors {
		uses[descriptor.SelectAttrValue("use", "")] = true
	}
	if !uses["signing"] || !uses["encryption"] {
		t.Errorf("key descriptor uses = %v", uses)
	}

	nameIDFormat := root.FindElement("./SPSSODescriptor/NameIDFormat")
	if nameIDFormat == nil || nameIDFormat.Text() != NameIDFormatTransient {
		t.Error("metadata must advertise the transient NameID format")
	}
}

func TestMetadataBuilder_Extensions(t *testing.T) {
	key, cert := testKeyPair(t)
	trust := testTrust(cert)
	trust.SigningCredentials = []domain.Credential{{
		Usage: domain.UsageSigning, PrivateKey: key, Certificate: cert,
	}}
	trust.DecryptionCredentials = []domain.Credential{{
		Usage: domain.UsageDecryption, PrivateKey: key, Certificate: cert,
	}}

	builder := NewMetadataBuilder(nil, clockwork.NewFakeClockAt(testNow))
	raw, err := builder.Build(trust)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	root := doc.Root()

	extensions := root.FindElement("./Extensions")
	if extensions == nil {
		t.Fatal("no Extensions element")
	}
	// Extensions must precede the role descriptors.
	if root.ChildElements()[0].Tag != "Extensions" {
		t.Error("Extensions must be the first child of the entity descriptor")
	}

	subjectIDValue := extensions.FindElement("./EntityAttributes/Attribute/AttributeValue")
	if subjectIDValue == nil || subjectIDValue.Text() != "subject-id" {
		t.Error("metadata must require the subject-id attribute")
	}

	signingMethods := extensions.FindElements("./SigningMethod")
	if len(signingMethods) != 2 {
		t.Errorf("found %d signing methods, want 2", len(signingMethods))
	}
	if strings.Contains(string(raw), domain.AlgSigningRSASHA1) {
		t.Error("SHA-1 signing must never be advertised")
	}
	if strings.Contains(string(raw), domain.AlgDigestSHA1) {
		t.Error("SHA-1 digests must never be advertised")
	}
}

func TestMetadataBuilder_NilTrust(t *testing.T) {
	builder := NewMetadataBuilder(nil, nil)
	if _, err := builder.Build(nil); err != domain.ErrNoTrustConfiguration {
		t.Fatalf("expected ErrNoTrustConfiguration, got %v", err)
	}
}
