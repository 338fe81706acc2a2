package pnetidp

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/porscheinformatik/pnet-idp-client-go/internal/adapters/driven/credentials"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/adapters/driven/metadata"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/adapters/driven/metrics"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/adapters/driven/requestctx"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/adapters/driven/signature"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/adapters/driving/httpapi"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/ports"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/oidc"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/saml2"
)

// SessionProvider returns the caller's session for a request.
type SessionProvider = httpapi.SessionProvider

// SuccessHandler consumes the authenticated principal.
type SuccessHandler = httpapi.SuccessHandler

// ErrorHandler renders an authentication or service error.
type ErrorHandler = httpapi.ErrorHandler

// Config configures a Client.
type Config struct {
	// Registrations lists the configured IdP relationships.
	Registrations []Registration

	// CredentialSources lists the PEM keystore files. At least one
	// decryption credential must load or construction fails.
	CredentialSources []CredentialSource

	// Sessions supplies the caller's session; required.
	Sessions SessionProvider

	// OnSuccess consumes the authenticated principal; required.
	OnSuccess SuccessHandler

	// OnError renders failures. Defaults to a plain-text error response
	// with the status derived from the error code.
	OnError ErrorHandler

	// Logger enables structured logging. Nil disables logging.
	Logger *zap.Logger

	// EnableMetrics registers Prometheus metrics with the default
	// registry.
	EnableMetrics bool

	// LenientAuthnContext downgrades unknown AuthnContextClassRef
	// values to no attributed strength instead of rejecting the
	// response.
	LenientAuthnContext bool

	// FailOnStartup eagerly resolves every registration's metadata
	// during construction, with retries, and fails when one stays
	// unreachable. Without it metadata loads lazily on first use.
	FailOnStartup bool

	// WatchCredentialFiles reloads credentials on file-change events in
	// addition to the periodic reload.
	WatchCredentialFiles bool

	// SignMetadata signs the published SP metadata document with the
	// active signing credential.
	SignMetadata bool

	// AlgorithmPolicy overrides the advertised algorithm set. Nil uses
	// the default policy (SHA-1 excluded).
	AlgorithmPolicy *AlgorithmPolicy

	// Clock overrides the time source; for tests.
	Clock clockwork.Clock
}

// Client is the assembled relying party: credential store, trust
// resolver, validation pipeline and HTTP endpoints.
type Client struct {
	credentials *credentials.FileCredentialStore
	trust       *metadata.IdPMetadataResolver
	handlers    *httpapi.Handlers
	logger      *zap.Logger
}

// New builds a Client from the configuration. Background reload
// goroutines start immediately; call Close to stop them.
func New(cfg Config) (*Client, error) {
	if len(cfg.Registrations) == 0 {
		return nil, domain.ConfigError("at least one registration is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	var recorder ports.MetricsRecorder = metrics.NewNoopMetricsRecorder()
	if cfg.EnableMetrics {
		recorder = metrics.NewPrometheusMetricsRecorder()
	}

	credentialStore, err := credentials.NewFileCredentialStore(cfg.CredentialSources,
		credentialOptions(cfg, clock, recorder)...)
	if err != nil {
		return nil, err
	}

	resolverOptions := []metadata.ResolverOption{
		metadata.WithLogger(cfg.Logger),
		metadata.WithClock(clock),
		metadata.WithMetrics(recorder),
	}
	if cfg.FailOnStartup {
		resolverOptions = append(resolverOptions, metadata.WithFailOnStartup())
	}
	trustResolver, err := metadata.NewIdPMetadataResolver(cfg.Registrations, credentialStore, resolverOptions...)
	if err != nil {
		credentialStore.Close()
		return nil, err
	}

	validatorOptions := []saml2.ValidatorOption{
		saml2.WithValidatorClock(clock),
		saml2.WithValidatorLogger(cfg.Logger),
		saml2.WithValidatorMetrics(recorder),
	}
	if cfg.LenientAuthnContext {
		validatorOptions = append(validatorOptions, saml2.WithLenientAuthnContext())
	}

	var metadataSigner ports.DocumentSigner
	if cfg.SignMetadata {
		signing := credentialStore.CredentialsByUsage(domain.UsageSigning)
		if len(signing) == 0 {
			trustResolver.Close()
			credentialStore.Close()
			return nil, domain.ConfigError("metadata signing requires a signing credential")
		}
		metadataSigner = signature.NewXMLDsigSigner(signing[0].PrivateKey, signing[0].Certificate)
	}

	handlers, err := httpapi.NewHandlers(httpapi.HandlersConfig{
		Trust:           trustResolver,
		Validator:       saml2.NewValidator(validatorOptions...),
		Mapper:          saml2.NewResponseMapper(cfg.LenientAuthnContext),
		RequestContexts: requestctx.NewSessionRequestContextStore(),
		MetadataBuilder: saml2.NewMetadataBuilder(cfg.AlgorithmPolicy, clock),
		RequestBuilder:  saml2.NewAuthnRequestBuilder(clock),
		MetadataSigner:  metadataSigner,
		Sessions:        cfg.Sessions,
		OnSuccess:       cfg.OnSuccess,
		OnError:         cfg.OnError,
		Logger:          cfg.Logger,
		Metrics:         recorder,
	})
	if err != nil {
		trustResolver.Close()
		credentialStore.Close()
		return nil, err
	}

	return &Client{
		credentials: credentialStore,
		trust:       trustResolver,
		handlers:    handlers,
		logger:      cfg.Logger,
	}, nil
}

func credentialOptions(cfg Config, clock clockwork.Clock, recorder ports.MetricsRecorder) []credentials.Option {
	options := []credentials.Option{
		credentials.WithLogger(cfg.Logger),
		credentials.WithClock(clock),
		credentials.WithMetrics(recorder),
	}
	if cfg.WatchCredentialFiles {
		options = append(options, credentials.WithFileWatcher())
	}
	return options
}

// Register mounts the SAML endpoints on the mux.
func (c *Client) Register(mux *http.ServeMux) {
	c.handlers.Register(mux)
}

// Handlers returns the endpoint bundle for custom routing.
func (c *Client) Handlers() *httpapi.Handlers {
	return c.handlers
}

// FindTrustConfiguration exposes the resolved trust configuration for a
// registration id, nil when not resolvable.
func (c *Client) FindTrustConfiguration(registrationID string) *TrustConfiguration {
	return c.trust.FindTrustConfiguration(registrationID)
}

// Credentials returns the active credential snapshot.
func (c *Client) Credentials() []Credential {
	return c.credentials.Credentials()
}

// HealthHandler returns a readiness endpoint covering the credential
// store and the metadata resolver.
func (c *Client) HealthHandler() http.Handler {
	return httpapi.NewHealthHandler(map[string]httpapi.HealthChecker{
		"credentials": c.credentials,
		"metadata":    c.trust,
	})
}

// Close stops the background reload goroutines. Idempotent.
func (c *Client) Close() error {
	c.trust.Close()
	c.credentials.Close()
	return nil
}

// OIDCConfig configures the OpenID Connect peer.
type OIDCConfig = oidc.Config

// OIDCRelyingParty drives the authorization code flow against the
// Partner.Net identity provider and produces the same normalized
// principal as the SAML pipeline.
type OIDCRelyingParty = oidc.RelyingParty

// NewOIDCRelyingParty discovers the issuer and builds the OIDC peer.
func NewOIDCRelyingParty(ctx context.Context, cfg OIDCConfig, logger *zap.Logger) (*OIDCRelyingParty, error) {
	if logger != nil {
		return oidc.NewRelyingParty(ctx, cfg, oidc.WithLogger(logger))
	}
	return oidc.NewRelyingParty(ctx, cfg)
}
