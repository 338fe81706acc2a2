//go:build unit

package httpapi

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/porscheinformatik/pnet-idp-client-go/internal/adapters/driven/requestctx"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/ports"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/saml2"
)

// fakeTrust serves a fixed trust configuration for one registration id.
type fakeTrust struct {
	registrationID string
	trust          *domain.TrustConfiguration
}

func (f *fakeTrust) FindTrustConfiguration(registrationID string) *domain.TrustConfiguration {
	if registrationID != f.registrationID {
		return nil
	}
	return f.trust
}

// mapSession is an in-memory ports.Session.
type mapSession map[string]string

func (m mapSession) Get(name string) (string, bool) {
	value, ok := m[name]
	return value, ok
}

func (m mapSession) Set(name, value string) { m[name] = value }
func (m mapSession) Delete(name string)     { delete(m, name) }

func testCredential(t *testing.T, usage domain.CredentialUsage) domain.Credential {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Test SP"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return domain.Credential{Usage: usage, PrivateKey: key, Certificate: cert}
}

func testTrustConfiguration(t *testing.T) *domain.TrustConfiguration {
	t.Helper()
	return &domain.TrustConfiguration{
		RegistrationID:              "pnet",
		EntityID:                    "https://sp.example.com/saml2",
		AssertionConsumerServiceURL: "https://sp.example.com/saml2/sso/post/pnet",
		AssertionConsumerBinding:    saml2.HTTPPostBinding,
		AssertingParty: domain.AssertingParty{
			EntityID:            "https://idp.example.com",
			SingleSignOnURL:     "https://idp.example.com/sso",
			SingleSignOnBinding: "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect",
		},
		SigningCredentials:    []domain.Credential{testCredential(t, domain.UsageSigning)},
		DecryptionCredentials: []domain.Credential{testCredential(t, domain.UsageDecryption)},
	}
}

type handlerFixture struct {
	handlers *Handlers
	mux      *http.ServeMux
	session  mapSession
	store    ports.RequestContextStore

	succeededWith *domain.Principal
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	fixture := &handlerFixture{
		session: mapSession{},
		store:   requestctx.NewSessionRequestContextStore(),
	}

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC))
	handlers, err := NewHandlers(HandlersConfig{
		Trust:           &fakeTrust{registrationID: "pnet", trust: testTrustConfiguration(t)},
		Validator:       saml2.NewValidator(saml2.WithValidatorClock(clock)),
		Mapper:          saml2.NewResponseMapper(false),
		RequestContexts: fixture.store,
		MetadataBuilder: saml2.NewMetadataBuilder(nil, clock),
		RequestBuilder:  saml2.NewAuthnRequestBuilder(clock),
		Sessions:        func(*http.Request) ports.Session { return fixture.session },
		OnSuccess: func(w http.ResponseWriter, r *http.Request, principal *domain.Principal) {
			fixture.succeededWith = principal
			w.WriteHeader(http.StatusNoContent)
		},
	})
	if err != nil {
		t.Fatalf("NewHandlers: %v", err)
	}
	fixture.handlers = handlers
	fixture.mux = http.NewServeMux()
	handlers.Register(fixture.mux)
	return fixture
}

func TestNewHandlers_RequiredFields(t *testing.T) {
	if _, err := NewHandlers(HandlersConfig{}); err == nil {
		t.Fatal("empty config must fail")
	}
}

func TestMetadata(t *testing.T) {
	fixture := newHandlerFixture(t)

	recorder := httptest.NewRecorder()
	fixture.mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/saml2/pnet", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	if got := recorder.Header().Get("Content-Type"); got != "application/samlmetadata+xml" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := recorder.Header().Get("Content-Disposition"); got != `attachment; filename="saml-metadata.xml"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if !strings.Contains(recorder.Body.String(), "https://sp.example.com/saml2") {
		t.Error("metadata body does not carry the SP entity id")
	}
}

func TestMetadata_UnknownRegistration(t *testing.T) {
	fixture := newHandlerFixture(t)

	recorder := httptest.NewRecorder()
	fixture.mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/saml2/unknown", nil))

	if recorder.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", recorder.Code)
	}
}

func TestLogin(t *testing.T) {
	fixture := newHandlerFixture(t)

	recorder := httptest.NewRecorder()
	fixture.mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet,
		"/saml2/login/pnet?forceAuthn=true&nistLevel=2&loginHint=someone@example.com&relayState=after-login", nil))

	if recorder.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", recorder.Code)
	}
	location, err := url.Parse(recorder.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse Location: %v", err)
	}
	if location.Scheme+"://"+location.Host+location.Path != "https://idp.example.com/sso" {
		t.Errorf("redirect target = %q", location.String())
	}
	if location.Query().Get("SAMLRequest") == "" {
		t.Error("redirect carries no SAMLRequest")
	}
	if location.Query().Get("RelayState") != "after-login" {
		t.Errorf("RelayState = %q", location.Query().Get("RelayState"))
	}

	saved, ok := fixture.store.Load(fixture.session)
	if !ok {
		t.Fatal("login must persist the request context")
	}
	if saved.AuthnRequestID == "" {
		t.Error("saved context has no request id")
	}
	if !saved.ForceAuthn {
		t.Error("forceAuthn parameter not carried into the context")
	}
	if saved.NistLevel == nil || *saved.NistLevel != 2 {
		t.Errorf("NistLevel = %v", saved.NistLevel)
	}
	if saved.LoginHint == nil || *saved.LoginHint != "someone@example.com" {
		t.Errorf("LoginHint = %v", saved.LoginHint)
	}
	if saved.MaxSessionAge != nil {
		t.Error("absent maxSessionAge must stay absent")
	}
}

func TestLogin_UnknownRegistration(t *testing.T) {
	fixture := newHandlerFixture(t)

	recorder := httptest.NewRecorder()
	fixture.mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/saml2/login/unknown", nil))

	if recorder.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", recorder.Code)
	}
}

func TestAssertionConsumer_MissingResponse(t *testing.T) {
	fixture := newHandlerFixture(t)

	request := httptest.NewRequest(http.MethodPost, "/saml2/sso/post/pnet", strings.NewReader("RelayState=x"))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder := httptest.NewRecorder()
	fixture.mux.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", recorder.Code)
	}
}

func TestAssertionConsumer_NoRequestContext(t *testing.T) {
	fixture := newHandlerFixture(t)

	form := url.Values{"SAMLResponse": {"PHNhbWxwOlJlc3BvbnNlLz4="}}
	request := httptest.NewRequest(http.MethodPost, "/saml2/sso/post/pnet", strings.NewReader(form.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder := httptest.NewRecorder()
	fixture.mux.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", recorder.Code)
	}
	if fixture.succeededWith != nil {
		t.Error("success handler must not run without a request context")
	}
}

func TestAssertionConsumer_InvalidResponseClearsContext(t *testing.T) {
	fixture := newHandlerFixture(t)

	if err := fixture.store.Save(fixture.session, domain.AuthnRequestContext{AuthnRequestID: "_req123"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	form := url.Values{"SAMLResponse": {"bm90IHhtbA=="}}
	request := httptest.NewRequest(http.MethodPost, "/saml2/sso/post/pnet", strings.NewReader(form.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder := httptest.NewRecorder()
	fixture.mux.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", recorder.Code)
	}
	if _, ok := fixture.store.Load(fixture.session); ok {
		t.Error("request context must be cleared after a failed attempt")
	}
	if fixture.succeededWith != nil {
		t.Error("success handler must not run for an invalid response")
	}
}

func TestRequestURL(t *testing.T) {
	request := httptest.NewRequest(http.MethodPost, "http://internal:8080/saml2/sso/post/pnet", nil)
	request.Header.Set("X-Forwarded-Proto", "https")
	request.Header.Set("X-Forwarded-Host", "sp.example.com")

	if got := requestURL(request); got != "https://sp.example.com/saml2/sso/post/pnet" {
		t.Errorf("requestURL = %q", got)
	}
}
