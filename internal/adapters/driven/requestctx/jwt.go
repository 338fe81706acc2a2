package requestctx

import (
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/ports"
)

const tokenKey = "pnet.saml2.request_context"

// DefaultTokenLifetime bounds how long an authentication attempt may
// stay in flight before its stored context expires.
const DefaultTokenLifetime = 15 * time.Minute

// contextClaims is the JWT claims layout for a stored request context.
type contextClaims struct {
	jwt.RegisteredClaims
	ForceAuthn    bool    `json:"force_authn,omitempty"`
	NistLevel     *int    `json:"nist_level,omitempty"`
	MaxSessionAge *int    `json:"max_session_age,omitempty"`
	MaxAgeMfa     *int    `json:"max_age_mfa,omitempty"`
	Tenant        *int    `json:"tenant,omitempty"`
	LoginHint     *string `json:"login_hint,omitempty"`
	Prompt        *string `json:"prompt,omitempty"`
}

// JWTRequestContextStore stores the whole request context as a single
// RS256-signed token in one session attribute. Useful when the hosting
// session lives client-side: the token is tamper-evident and carries
// its own expiry.
type JWTRequestContextStore struct {
	privateKey *rsa.PrivateKey
	lifetime   time.Duration
	clock      clockwork.Clock
}

// NewJWTRequestContextStore creates the store signing with the given
// key. A zero lifetime uses DefaultTokenLifetime; a nil clock uses the
// real clock.
func NewJWTRequestContextStore(privateKey *rsa.PrivateKey, lifetime time.Duration, clock clockwork.Clock) *JWTRequestContextStore {
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &JWTRequestContextStore{privateKey: privateKey, lifetime: lifetime, clock: clock}
}

// Save signs the context into a token and stores it.
func (s *JWTRequestContextStore) Save(session ports.Session, ctx domain.AuthnRequestContext) error {
	now := s.clock.Now()
	claims := contextClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ctx.AuthnRequestID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
		ForceAuthn:    ctx.ForceAuthn,
		NistLevel:     ctx.NistLevel,
		MaxSessionAge: ctx.MaxSessionAge,
		MaxAgeMfa:     ctx.MaxAgeMfa,
		Tenant:        ctx.Tenant,
		LoginHint:     ctx.LoginHint,
		Prompt:        ctx.Prompt,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.privateKey)
	if err != nil {
		return err
	}
	session.Set(tokenKey, token)
	return nil
}

// Load verifies the stored token and returns the context. An absent,
// tampered or expired token loads as not-present.
func (s *JWTRequestContextStore) Load(session ports.Session) (domain.AuthnRequestContext, bool) {
	token, ok := session.Get(tokenKey)
	if !ok {
		return domain.AuthnRequestContext{}, false
	}

	parsed, err := jwt.ParseWithClaims(token, &contextClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return &s.privateKey.PublicKey, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil || !parsed.Valid {
		return domain.AuthnRequestContext{}, false
	}
	claims, ok := parsed.Claims.(*contextClaims)
	if !ok {
		return domain.AuthnRequestContext{}, false
	}

	return domain.AuthnRequestContext{
		AuthnRequestID: claims.Subject,
		ForceAuthn:     claims.ForceAuthn,
		NistLevel:      claims.NistLevel,
		MaxSessionAge:  claims.MaxSessionAge,
		MaxAgeMfa:      claims.MaxAgeMfa,
		Tenant:         claims.Tenant,
		LoginHint:      claims.LoginHint,
		Prompt:         claims.Prompt,
	}, true
}

// Clear removes the stored token.
func (s *JWTRequestContextStore) Clear(session ports.Session) {
	session.Delete(tokenKey)
}

var _ ports.RequestContextStore = (*JWTRequestContextStore)(nil)
