// Package oidc implements the OpenID Connect peer of the SAML flow:
// authorization code flow against the Partner.Net identity provider,
// ID-token verification and conversion of the pnet_* claims into the
// same normalized principal the SAML mapper produces.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"
)

// Config holds the OIDC client configuration for one registration.
type Config struct {
	RegistrationID string
	IssuerURL      string
	ClientID       string
	ClientSecret   string
	RedirectURL    string
	// Scopes beyond openid; openid is always requested.
	Scopes []string
}

// RelyingParty drives the authorization code flow for one registration.
type RelyingParty struct {
	registrationID string
	provider       *gooidc.Provider
	oauth2Config   oauth2.Config
	verifier       *gooidc.IDTokenVerifier
	logger         *zap.Logger
}

// RelyingPartyOption configures a RelyingParty.
type RelyingPartyOption func(*RelyingParty)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) RelyingPartyOption {
	return func(rp *RelyingParty) { rp.logger = logger }
}

// NewRelyingParty discovers the issuer configuration and builds the
// relying party. Discovery is a network call; pass a context with an
// appropriate deadline.
func NewRelyingParty(ctx context.Context, cfg Config, opts ...RelyingPartyOption) (*RelyingParty, error) {
	provider, err := gooidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover OIDC issuer %s: %w", cfg.IssuerURL, err)
	}

	scopes := append([]string{gooidc.ScopeOpenID}, cfg.Scopes...)
	rp := &RelyingParty{
		registrationID: cfg.RegistrationID,
		provider:       provider,
		oauth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
		verifier: provider.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
	}
	for _, opt := range opts {
		opt(rp)
	}
	return rp, nil
}

// RegistrationID returns the registration this relying party serves.
func (rp *RelyingParty) RegistrationID() string {
	return rp.registrationID
}

// AuthCodeURL builds the authorization redirect. The custom part is
// embedded in the state parameter and recoverable on the callback; the
// request context translates into standard and Partner.Net
// authorization parameters.
func (rp *RelyingParty) AuthCodeURL(reqCtx domain.AuthnRequestContext, customState string) (authURL, state string) {
	state = domain.BuildState(customState)
	return rp.oauth2Config.AuthCodeURL(state, authorizationParameters(reqCtx)...), state
}

// authorizationParameters maps the request context onto authorization
// request parameters. Absent values produce no parameter.
func authorizationParameters(reqCtx domain.AuthnRequestContext) []oauth2.AuthCodeOption {
	var params []oauth2.AuthCodeOption
	if reqCtx.ForceAuthn {
		params = append(params, oauth2.SetAuthURLParam("prompt", "login"))
	} else if reqCtx.Prompt != nil {
		params = append(params, oauth2.SetAuthURLParam("prompt", *reqCtx.Prompt))
	}
	if reqCtx.NistLevel != nil {
		var refs []string
		for _, class := range domain.AuthnContextClassesAtOrAbove(*reqCtx.NistLevel) {
			refs = append(refs, class.Reference)
		}
		params = append(params, oauth2.SetAuthURLParam("acr_values", strings.Join(refs, " ")))
	}
	if reqCtx.MaxSessionAge != nil {
		params = append(params, oauth2.SetAuthURLParam("max_age", strconv.Itoa(*reqCtx.MaxSessionAge)))
	}
	if reqCtx.MaxAgeMfa != nil {
		params = append(params, oauth2.SetAuthURLParam("max_age_mfa", strconv.Itoa(*reqCtx.MaxAgeMfa)))
	}
	if reqCtx.Tenant != nil {
		params = append(params, oauth2.SetAuthURLParam("tenant", strconv.Itoa(*reqCtx.Tenant)))
	}
	if reqCtx.LoginHint != nil {
		params = append(params, oauth2.SetAuthURLParam("login_hint", *reqCtx.LoginHint))
	}
	return params
}

// Authenticate redeems an authorization code, verifies the ID token and
// converts its claims into the normalized principal.
func (rp *RelyingParty) Authenticate(ctx context.Context, code, state string) (*domain.Principal, error) {
	custom, err := domain.CustomState(state)
	if err != nil {
		return nil, domain.AuthError("Malformed state parameter", err)
	}

	token, err := rp.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, domain.AuthError("Token exchange failed", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, domain.AuthError("Token response carries no ID token", errors.New("missing id_token"))
	}

	idToken, err := rp.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, domain.AuthError("ID token verification failed", err)
	}

	var claims tokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, domain.MappingError("Malformed ID token claims", err)
	}
	if err := validateClaims(&claims); err != nil {
		return nil, err
	}

	principal, err := claims.toPrincipal()
	if err != nil {
		return nil, err
	}
	principal.RelayState = custom

	if rp.logger != nil {
		rp.logger.Info("OIDC authentication succeeded",
			zap.String("registration_id", rp.registrationID),
			zap.String("subject", principal.Subject))
	}
	return principal, nil
}
