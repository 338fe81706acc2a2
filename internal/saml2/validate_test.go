//go:build unit

package saml2

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"errors"
	"math/big"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/jonboulle/clockwork"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/ports"
)

const (
	testSPEntityID  = "https://sp.example.com/saml2"
	testIdPEntityID = "https://idp.example.com"
	testACSURL      = "https://sp.example.com/saml2/sso/post/pnet"
	testRequestID   = "_req123"
	testSubjectID   = "pnet-user-1"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func testKeyPair(t *testing.T) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test IdP"},
		NotBefore:             testNow.Add(-24 * time.Hour),
		NotAfter:              testNow.Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return key, cert
}

func testTrust(cert *x509.Certificate) *domain.TrustConfiguration {
	return &domain.TrustConfiguration{
		RegistrationID:              "pnet",
		EntityID:                    testSPEntityID,
		AssertionConsumerServiceURL: testACSURL,
		AssertionConsumerBinding:    HTTPPostBinding,
		AssertingParty: domain.AssertingParty{
			EntityID:                 testIdPEntityID,
			SingleSignOnURL:          testIdPEntityID + "/sso",
			SingleSignOnBinding:      HTTPRedirectBinding,
			VerificationCertificates: []*x509.Certificate{cert},
		},
	}
}

func testRequestInfo() ports.RequestInfo {
	return ports.RequestInfo{
		Method:        http.MethodPost,
		URL:           testACSURL,
		ClientAddress: "203.0.113.7",
	}
}

// buildResponseDoc assembles the canonical valid success response.
// Tests mutate the document before encoding to provoke specific
// failures.
func buildResponseDoc(now time.Time) *etree.Document {
	instant := now.Format(time.RFC3339)

	doc := etree.NewDocument()
	resp := doc.CreateElement("samlp:Response")
	resp.CreateAttr("xmlns:samlp", ProtocolNamespace)
	resp.CreateAttr("xmlns:saml", AssertionNamespace)
	resp.CreateAttr("ID", "_resp1")
	resp.CreateAttr("Version", SAMLVersion)
	resp.CreateAttr("IssueInstant", instant)
	resp.CreateAttr("InResponseTo", testRequestID)
	resp.CreateAttr("Destination", testACSURL)

	issuer := resp.CreateElement("saml:Issuer")
	issuer.SetText(testIdPEntityID)

	status := resp.CreateElement("samlp:Status")
	statusCode := status.CreateElement("samlp:StatusCode")
	statusCode.CreateAttr("Value", StatusSuccess)

	resp.AddChild(buildAssertionElement(now, "_a1"))
	return doc
}

func buildAssertionElement(now time.Time, id string) *etree.Element {
	instant := now.Format(time.RFC3339)

	assertion := etree.NewElement("saml:Assertion")
	assertion.CreateAttr("ID", id)
	assertion.CreateAttr("Version", SAMLVersion)
	assertion.CreateAttr("IssueInstant", instant)

	issuer := assertion.CreateElement("saml:Issuer")
	issuer.SetText(testIdPEntityID)

	subject := assertion.CreateElement("saml:Subject")
	nameID := subject.CreateElement("saml:NameID")
	nameID.CreateAttr("Format", NameIDFormatTransient)
	nameID.SetText("transient-abc")
	confirmation := subject.CreateElement("saml:SubjectConfirmation")
	confirmation.CreateAttr("Method", BearerConfirmationMethod)
	data := confirmation.CreateElement("saml:SubjectConfirmationData")
	data.CreateAttr("Recipient", testACSURL)
	data.CreateAttr("NotOnOrAfter", now.Add(5*time.Minute).Format(time.RFC3339))
	data.CreateAttr("InResponseTo", testRequestID)

	conditions := assertion.CreateElement("saml:Conditions")
	conditions.CreateAttr("NotBefore", now.Add(-time.Minute).Format(time.RFC3339))
	conditions.CreateAttr("NotOnOrAfter", now.Add(5*time.Minute).Format(time.RFC3339))
	restriction := conditions.CreateElement("saml:AudienceRestriction")
	audience := restriction.CreateElement("saml:Audience")
	audience.SetText(testSPEntityID)

	authnStatement := assertion.CreateElement("saml:AuthnStatement")
	authnStatement.CreateAttr("AuthnInstant", instant)
	authnStatement.CreateAttr("SessionIndex", "idx1")
	authnContext := authnStatement.CreateElement("saml:AuthnContext")
	classRef := authnContext.CreateElement("saml:AuthnContextClassRef")
	classRef.SetText(domain.AuthnContextPasswordProtectedTransport.Reference)

	attributeStatement := assertion.CreateElement("saml:AttributeStatement")
	attribute := attributeStatement.CreateElement("saml:Attribute")
	attribute.CreateAttr("Name", AttributeSubjectID)
	value := attribute.CreateElement("saml:AttributeValue")
	value.SetText(testSubjectID)

	return assertion
}

func encodeDoc(t *testing.T, doc *etree.Document) string {
	t.Helper()
	raw, err := doc.WriteToBytes()
	if err != nil {
		t.Fatalf("serialize response: %v", err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func signDoc(t *testing.T, doc *etree.Document, key *rsa.PrivateKey, cert *x509.Certificate) *etree.Document {
	t.Helper()
	keyStore := dsig.TLSCertKeyStore(tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  key,
	})
	ctx := dsig.NewDefaultSigningContext(keyStore)
	ctx.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")

	signed, err := ctx.SignEnveloped(doc.Root())
	if err != nil {
		t.Fatalf("sign response: %v", err)
	}
	signedDoc := etree.NewDocument()
	signedDoc.SetRoot(signed)
	return signedDoc
}

func newTestValidator(opts ...ValidatorOption) *Validator {
	opts = append([]ValidatorOption{
		WithValidatorClock(clockwork.NewFakeClockAt(testNow)),
	}, opts...)
	return NewValidator(opts...)
}

func wantValidationError(t *testing.T, err error, wantMessage string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected validation error containing %q, got nil", wantMessage)
	}
	if !domain.IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), wantMessage) {
		t.Errorf("error %q does not contain %q", err.Error(), wantMessage)
	}
}

func TestValidate_SignedResponseSucceeds(t *testing.T) {
	key, cert := testKeyPair(t)
	doc := signDoc(t, buildResponseDoc(testNow), key, cert)

	validator := newTestValidator()
	validated, err := validator.Validate(encodeDoc(t, doc), "relay-1", testRequestInfo(),
		domain.AuthnRequestContext{AuthnRequestID: testRequestID}, testTrust(cert))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !validated.Success {
		t.Fatal("expected success")
	}
	if validated.StatusCode != StatusSuccess {
		t.Errorf("status code = %q", validated.StatusCode)
	}
	if validated.RelayState != "relay-1" {
		t.Errorf("relay state = %q", validated.RelayState)
	}
	if validated.Assertion == nil {
		t.Fatal("expected assertion")
	}
	if got := validated.Assertion.Subject.NameID.Value; got != "transient-abc" {
		t.Errorf("name id = %q", got)
	}
}

func TestValidate_UnsignedSuccessResponseFails(t *testing.T) {
	_, cert := testKeyPair(t)
	doc := buildResponseDoc(testNow)

	validator := newTestValidator()
	_, err := validator.Validate(encodeDoc(t, doc), "", testRequestInfo(),
		domain.AuthnRequestContext{AuthnRequestID: testRequestID}, testTrust(cert))
	wantValidationError(t, err, "Response must be signed but no signature present")
}

func TestValidate_UnsignedErrorResponseTerminatesWithoutError(t *testing.T) {
	_, cert := testKeyPair(t)
	doc := buildResponseDoc(testNow)
	responderCode := "urn:oasis:names:tc:SAML:2.0:status:Responder"
	doc.Root().FindElement("./Status/StatusCode").
		CreateAttr("Value", responderCode)

	validator := newTestValidator()
	validated, err := validator.Validate(encodeDoc(t, doc), "relay-2", testRequestInfo(),
		domain.AuthnRequestContext{AuthnRequestID: testRequestID}, testTrust(cert))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if validated.Success {
		t.Fatal("expected non-success")
	}
	if validated.StatusCode != responderCode {
		t.Errorf("status code = %q", validated.StatusCode)
	}
	if validated.Assertion != nil {
		t.Error("non-success response must carry no assertion")
	}
	if validated.RelayState != "relay-2" {
		t.Errorf("relay state = %q", validated.RelayState)
	}
}

func TestValidate_StaleIssueInstant(t *testing.T) {
	_, cert := testKeyPair(t)
	doc := buildResponseDoc(testNow.Add(-10 * time.Minute))

	validator := newTestValidator()
	_, err := validator.Validate(encodeDoc(t, doc), "", testRequestInfo(),
		domain.AuthnRequestContext{AuthnRequestID: testRequestID}, testTrust(cert))
	wantValidationError(t, err, "outside the acceptable clock skew window")
}

func TestValidate_WrongIssuer(t *testing.T) {
	_, cert := testKeyPair(t)
	doc := buildResponseDoc(testNow)
	doc.Root().FindElement("./Issuer").SetText("https://evil.example.com")

	validator := newTestValidator()
	_, err := validator.Validate(encodeDoc(t, doc), "", testRequestInfo(),
		domain.AuthnRequestContext{AuthnRequestID: testRequestID}, testTrust(cert))
	wantValidationError(t, err, `Invalid issuer "https://evil.example.com"`)
}

func TestValidate_TwoAssertions(t *testing.T) {
	key, cert := testKeyPair(t)
	doc := buildResponseDoc(testNow)
	doc.Root().AddChild(buildAssertionElement(testNow, "_a2"))
	doc = signDoc(t, doc, key, cert)

	validator := newTestValidator()
	_, err := validator.Validate(encodeDoc(t, doc), "", testRequestInfo(),
		domain.AuthnRequestContext{AuthnRequestID: testRequestID}, testTrust(cert))
	wantValidationError(t, err, "Response must have exactly one Assertion but has 2")
}

func TestValidate_OutdatedSubjectConfirmation(t *testing.T) {
	key, cert := testKeyPair(t)
	doc := buildResponseDoc(testNow)
	doc.Root().FindElement("./Assertion/Subject/SubjectConfirmation/SubjectConfirmationData").
		CreateAttr("NotOnOrAfter", testNow.Add(-10*time.Minute).Format(time.RFC3339))
	doc = signDoc(t, doc, key, cert)

	validator := newTestValidator()
	_, err := validator.Validate(encodeDoc(t, doc), "", testRequestInfo(),
		domain.AuthnRequestContext{AuthnRequestID: testRequestID}, testTrust(cert))
	wantValidationError(t, err, "SubjectConfirmationData already outdated")
}

func TestValidate_InResponseToMismatch(t *testing.T) {
	key, cert := testKeyPair(t)
	doc := buildResponseDoc(testNow)
	doc.Root().FindElement("./Assertion/Subject/SubjectConfirmation/SubjectConfirmationData").
		CreateAttr("InResponseTo", "_other")
	doc = signDoc(t, doc, key, cert)

	validator := newTestValidator()
	_, err := validator.Validate(encodeDoc(t, doc), "", testRequestInfo(),
		domain.AuthnRequestContext{AuthnRequestID: testRequestID}, testTrust(cert))
	wantValidationError(t, err, "does not match the authentication request id")
}

func TestValidate_WrongAudience(t *testing.T) {
	key, cert := testKeyPair(t)
	doc := buildResponseDoc(testNow)
	doc.Root().FindElement("./Assertion/Conditions/AudienceRestriction/Audience").
		SetText("https://other-sp.example.com")
	doc = signDoc(t, doc, key, cert)

	validator := newTestValidator()
	_, err := validator.Validate(encodeDoc(t, doc), "", testRequestInfo(),
		domain.AuthnRequestContext{AuthnRequestID: testRequestID}, testTrust(cert))
	wantValidationError(t, err, "Audience restriction does not contain entity id")
}

func TestValidate_MissingSubjectIdentifier(t *testing.T) {
	key, cert := testKeyPair(t)
	doc := buildResponseDoc(testNow)
	doc.Root().FindElement("./Assertion/AttributeStatement/Attribute").
		CreateAttr("Name", "https://example.com/some-attribute")
	doc = signDoc(t, doc, key, cert)

	validator := newTestValidator()
	_, err := validator.Validate(encodeDoc(t, doc), "", testRequestInfo(),
		domain.AuthnRequestContext{AuthnRequestID: testRequestID}, testTrust(cert))
	wantValidationError(t, err, "Expected exactly one subject identifier attribute but found 0")
}

func TestValidate_AuthnStrengthWeakerThanRequested(t *testing.T) {
	key, cert := testKeyPair(t)
	doc := signDoc(t, buildResponseDoc(testNow), key, cert)

	validator := newTestValidator()
	_, err := validator.Validate(encodeDoc(t, doc), "", testRequestInfo(),
		domain.AuthnRequestContext{AuthnRequestID: testRequestID, NistLevel: domain.IntPtr(3)}, testTrust(cert))
	wantValidationError(t, err, "Authentication strength 2 is weaker than requested 3")
}

func TestValidate_UnknownAuthnContextClass(t *testing.T) {
	key, cert := testKeyPair(t)
	doc := buildResponseDoc(testNow)
	doc.Root().FindElement("./Assertion/AuthnStatement/AuthnContext/AuthnContextClassRef").
		SetText("urn:example:custom-class")
	doc = signDoc(t, doc, key, cert)

	validator := newTestValidator()
	_, err := validator.Validate(encodeDoc(t, doc), "", testRequestInfo(),
		domain.AuthnRequestContext{AuthnRequestID: testRequestID, NistLevel: domain.IntPtr(1)}, testTrust(cert))
	wantValidationError(t, err, `Unknown authentication context class reference "urn:example:custom-class"`)
}

func TestValidate_UnknownAuthnContextClassLenient(t *testing.T) {
	key, cert := testKeyPair(t)
	doc := buildResponseDoc(testNow)
	doc.Root().FindElement("./Assertion/AuthnStatement/AuthnContext/AuthnContextClassRef").
		SetText("urn:example:custom-class")
	doc = signDoc(t, doc, key, cert)

	validator := newTestValidator(WithLenientAuthnContext())
	validated, err := validator.Validate(encodeDoc(t, doc), "", testRequestInfo(),
		domain.AuthnRequestContext{AuthnRequestID: testRequestID, NistLevel: domain.IntPtr(0)}, testTrust(cert))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !validated.Success {
		t.Fatal("expected success")
	}
}

func TestValidate_WrongMethod(t *testing.T) {
	key, cert := testKeyPair(t)
	doc := signDoc(t, buildResponseDoc(testNow), key, cert)

	request := testRequestInfo()
	request.Method = http.MethodGet

	validator := newTestValidator()
	_, err := validator.Validate(encodeDoc(t, doc), "", request,
		domain.AuthnRequestContext{AuthnRequestID: testRequestID}, testTrust(cert))
	wantValidationError(t, err, "Response must arrive via POST")
}

type rejectingVerifier struct {
	err error
}

func (v rejectingVerifier) Verify(el *etree.Element) (*etree.Element, error) {
	return nil, v.err
}

func TestValidate_CustomSignatureVerifier(t *testing.T) {
	key, cert := testKeyPair(t)
	doc := signDoc(t, buildResponseDoc(testNow), key, cert)

	var gotCerts []*x509.Certificate
	validator := newTestValidator(WithSignatureVerifierFactory(
		func(certs []*x509.Certificate) ports.SignatureVerifier {
			gotCerts = certs
			return rejectingVerifier{err: errors.New("rejected by policy")}
		}))
	_, err := validator.Validate(encodeDoc(t, doc), "", testRequestInfo(),
		domain.AuthnRequestContext{AuthnRequestID: testRequestID}, testTrust(cert))
	wantValidationError(t, err, "rejected by policy")
	if len(gotCerts) != 1 || !gotCerts[0].Equal(cert) {
		t.Error("verifier was not built from the trust anchors")
	}
}

func TestValidate_WrongArrivalEndpoint(t *testing.T) {
	key, cert := testKeyPair(t)
	doc := signDoc(t, buildResponseDoc(testNow), key, cert)

	request := testRequestInfo()
	request.URL = "https://sp.example.com/saml2/sso/post/other"

	validator := newTestValidator()
	_, err := validator.Validate(encodeDoc(t, doc), "", request,
		domain.AuthnRequestContext{AuthnRequestID: testRequestID}, testTrust(cert))
	wantValidationError(t, err, "instead of the assertion consumer service")
}

func TestCheckAuthnInstant(t *testing.T) {
	tests := []struct {
		name    string
		reqCtx  domain.AuthnRequestContext
		instant time.Time
		wantErr string
	}{
		{
			name:    "no constraint ignores old instant",
			reqCtx:  domain.AuthnRequestContext{},
			instant: testNow.Add(-24 * time.Hour),
		},
		{
			name:    "forced authentication fresh",
			reqCtx:  domain.AuthnRequestContext{ForceAuthn: true},
			instant: testNow.Add(-time.Minute),
		},
		{
			name:    "forced authentication stale",
			reqCtx:  domain.AuthnRequestContext{ForceAuthn: true},
			instant: testNow.Add(-10 * time.Minute),
			wantErr: "older than the allowed maximum age",
		},
		{
			name:    "forced authentication missing instant",
			reqCtx:  domain.AuthnRequestContext{ForceAuthn: true},
			wantErr: "AuthnStatement has no AuthnInstant",
		},
		{
			name:    "session age within limit",
			reqCtx:  domain.AuthnRequestContext{MaxSessionAge: domain.IntPtr(3600)},
			instant: testNow.Add(-30 * time.Minute),
		},
		{
			name:    "session age exceeded",
			reqCtx:  domain.AuthnRequestContext{MaxSessionAge: domain.IntPtr(3600)},
			instant: testNow.Add(-2 * time.Hour),
			wantErr: "older than the allowed maximum age",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			vc := &validationContext{
				assertions: []Assertion{{AuthnStatements: []AuthnStatement{{AuthnInstant: tc.instant}}}},
				reqCtx:     tc.reqCtx,
				now:        testNow,
				skew:       ClockSkew,
			}
			err := checkAuthnInstant(vc)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("checkAuthnInstant: %v", err)
				}
				return
			}
			wantValidationError(t, err, tc.wantErr)
		})
	}
}

func TestValidate_TamperedSignature(t *testing.T) {
	key, cert := testKeyPair(t)
	doc := signDoc(t, buildResponseDoc(testNow), key, cert)
	// Modify signed content after signing.
	doc.Root().FindElement("./Assertion/Subject/NameID").SetText("tampered")

	validator := newTestValidator()
	_, err := validator.Validate(encodeDoc(t, doc), "", testRequestInfo(),
		domain.AuthnRequestContext{AuthnRequestID: testRequestID}, testTrust(cert))
	wantValidationError(t, err, "signature validation failed")
}

func TestValidate_NilTrustConfiguration(t *testing.T) {
	validator := newTestValidator()
	_, err := validator.Validate("", "", testRequestInfo(), domain.AuthnRequestContext{}, nil)
	if err != domain.ErrNoTrustConfiguration {
		t.Fatalf("expected ErrNoTrustConfiguration, got %v", err)
	}
}
