// Package requestctx persists the per-authentication-attempt request
// context between issuing an AuthnRequest and processing the matching
// response.
package requestctx

import (
	"strconv"

	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/ports"
)

// Session attribute names. The canonical key set: every writer and
// reader of authentication-attempt state goes through these.
const (
	keyRequestID     = "pnet.saml2.authn_request_id"
	keyForceAuthn    = "pnet.saml2.force_authn"
	keyNistLevel     = "pnet.saml2.nist_level"
	keyMaxSessionAge = "pnet.saml2.max_session_age"
	keyMaxAgeMfa     = "pnet.saml2.max_age_mfa"
	keyTenant        = "pnet.saml2.tenant"
	keyLoginHint     = "pnet.saml2.login_hint"
	keyPrompt        = "pnet.saml2.prompt"
)

var allKeys = []string{
	keyRequestID, keyForceAuthn, keyNistLevel, keyMaxSessionAge,
	keyMaxAgeMfa, keyTenant, keyLoginHint, keyPrompt,
}

// SessionRequestContextStore keeps the request context in the hosting
// application's session. Absent attributes stay absent: a value that
// was never set round-trips as nil, never as a zero.
type SessionRequestContextStore struct{}

// NewSessionRequestContextStore creates the store.
func NewSessionRequestContextStore() *SessionRequestContextStore {
	return &SessionRequestContextStore{}
}

// Save records the context, replacing any previous one. Only present
// values produce session attributes.
func (s *SessionRequestContextStore) Save(session ports.Session, ctx domain.AuthnRequestContext) error {
	s.Clear(session)

	session.Set(keyRequestID, ctx.AuthnRequestID)
	if ctx.ForceAuthn {
		session.Set(keyForceAuthn, "true")
	}
	setInt(session, keyNistLevel, ctx.NistLevel)
	setInt(session, keyMaxSessionAge, ctx.MaxSessionAge)
	setInt(session, keyMaxAgeMfa, ctx.MaxAgeMfa)
	setInt(session, keyTenant, ctx.Tenant)
	setString(session, keyLoginHint, ctx.LoginHint)
	setString(session, keyPrompt, ctx.Prompt)
	return nil
}

// Load returns the recorded context. ok is false when no authentication
// attempt is in flight for this session.
func (s *SessionRequestContextStore) Load(session ports.Session) (domain.AuthnRequestContext, bool) {
	requestID, ok := session.Get(keyRequestID)
	if !ok {
		return domain.AuthnRequestContext{}, false
	}

	ctx := domain.AuthnRequestContext{AuthnRequestID: requestID}
	if v, ok := session.Get(keyForceAuthn); ok {
		ctx.ForceAuthn = v == "true"
	}
	ctx.NistLevel = getInt(session, keyNistLevel)
	ctx.MaxSessionAge = getInt(session, keyMaxSessionAge)
	ctx.MaxAgeMfa = getInt(session, keyMaxAgeMfa)
	ctx.Tenant = getInt(session, keyTenant)
	ctx.LoginHint = getString(session, keyLoginHint)
	ctx.Prompt = getString(session, keyPrompt)
	return ctx, true
}

// Clear removes every request-context attribute.
func (s *SessionRequestContextStore) Clear(session ports.Session) {
	for _, key := range allKeys {
		session.Delete(key)
	}
}

func setInt(session ports.Session, key string, value *int) {
	if value != nil {
		session.Set(key, strconv.Itoa(*value))
	}
}

func setString(session ports.Session, key string, value *string) {
	if value != nil {
		session.Set(key, *value)
	}
}

func getInt(session ports.Session, key string) *int {
	raw, ok := session.Get(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &value
}

func getString(session ports.Session, key string) *string {
	raw, ok := session.Get(key)
	if !ok {
		return nil
	}
	return &raw
}

var _ ports.RequestContextStore = (*SessionRequestContextStore)(nil)
