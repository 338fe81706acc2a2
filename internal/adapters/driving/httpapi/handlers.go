// Package httpapi exposes the SAML endpoints as net/http handlers: the
// SP metadata document, the login redirect and the assertion consumer
// service. The hosting application mounts them on its own mux and
// supplies the session and the success continuation.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/ports"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/saml2"
)

// SessionProvider returns the caller's session for a request. Supplied
// by the hosting application; the library never manages cookies itself.
type SessionProvider func(*http.Request) ports.Session

// SuccessHandler consumes the authenticated principal. Typically it
// establishes the application session and redirects.
type SuccessHandler func(http.ResponseWriter, *http.Request, *domain.Principal)

// ErrorHandler renders an authentication or service error.
type ErrorHandler func(http.ResponseWriter, *http.Request, error)

// Handlers bundles the HTTP endpoints of the relying party.
type Handlers struct {
	trust           ports.TrustResolver
	validator       *saml2.Validator
	mapper          *saml2.ResponseMapper
	requestContexts ports.RequestContextStore
	metadataBuilder *saml2.MetadataBuilder
	requestBuilder  *saml2.AuthnRequestBuilder
	metadataSigner  ports.DocumentSigner

	sessions  SessionProvider
	onSuccess SuccessHandler
	onError   ErrorHandler

	logger  *zap.Logger
	metrics ports.MetricsRecorder
}

// HandlersConfig wires the handlers. Trust, Validator, Mapper,
// RequestContexts, MetadataBuilder, RequestBuilder, Sessions and
// OnSuccess are required; the rest is optional.
type HandlersConfig struct {
	Trust           ports.TrustResolver
	Validator       *saml2.Validator
	Mapper          *saml2.ResponseMapper
	RequestContexts ports.RequestContextStore
	MetadataBuilder *saml2.MetadataBuilder
	RequestBuilder  *saml2.AuthnRequestBuilder
	MetadataSigner  ports.DocumentSigner
	Sessions        SessionProvider
	OnSuccess       SuccessHandler
	OnError         ErrorHandler
	Logger          *zap.Logger
	Metrics         ports.MetricsRecorder
}

// NewHandlers creates the endpoint bundle.
func NewHandlers(cfg HandlersConfig) (*Handlers, error) {
	switch {
	case cfg.Trust == nil:
		return nil, domain.ConfigError("trust resolver is required")
	case cfg.Validator == nil:
		return nil, domain.ConfigError("validator is required")
	case cfg.Mapper == nil:
		return nil, domain.ConfigError("response mapper is required")
	case cfg.RequestContexts == nil:
		return nil, domain.ConfigError("request context store is required")
	case cfg.MetadataBuilder == nil:
		return nil, domain.ConfigError("metadata builder is required")
	case cfg.RequestBuilder == nil:
		return nil, domain.ConfigError("authn request builder is required")
	case cfg.Sessions == nil:
		return nil, domain.ConfigError("session provider is required")
	case cfg.OnSuccess == nil:
		return nil, domain.ConfigError("success handler is required")
	}

	h := &Handlers{
		trust:           cfg.Trust,
		validator:       cfg.Validator,
		mapper:          cfg.Mapper,
		requestContexts: cfg.RequestContexts,
		metadataBuilder: cfg.MetadataBuilder,
		requestBuilder:  cfg.RequestBuilder,
		metadataSigner:  cfg.MetadataSigner,
		sessions:        cfg.Sessions,
		onSuccess:       cfg.OnSuccess,
		onError:         cfg.OnError,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
	}
	if h.onError == nil {
		h.onError = h.defaultErrorHandler
	}
	return h, nil
}

// Register mounts the endpoints on a mux:
//
//	GET  /saml2/{registrationId}           SP metadata
//	GET  /saml2/login/{registrationId}     login redirect
//	POST /saml2/sso/post/{registrationId}  assertion consumer service
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /saml2/{registrationId}", h.Metadata)
	mux.HandleFunc("GET /saml2/login/{registrationId}", h.Login)
	mux.HandleFunc("POST /saml2/sso/post/{registrationId}", h.AssertionConsumer)
}

// Metadata serves the SP metadata document for a registration.
func (h *Handlers) Metadata(w http.ResponseWriter, r *http.Request) {
	registrationID := r.PathValue("registrationId")
	trust := h.trust.FindTrustConfiguration(registrationID)
	if trust == nil {
		http.NotFound(w, r)
		return
	}

	document, err := h.metadataBuilder.Build(trust)
	if err != nil {
		h.onError(w, r, err)
		return
	}
	if h.metadataSigner != nil {
		if document, err = h.metadataSigner.Sign(document); err != nil {
			h.onError(w, r, err)
			return
		}
	}

	w.Header().Set("Content-Type", "application/samlmetadata+xml")
	w.Header().Set("Content-Disposition", `attachment; filename="saml-metadata.xml"`)
	w.Write(document)
}

// Login starts the SSO flow: builds the request context from the query
// parameters, persists it for the response round-trip and redirects to
// the asserting party.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	registrationID := r.PathValue("registrationId")
	trust := h.trust.FindTrustConfiguration(registrationID)
	if trust == nil {
		h.onError(w, r, domain.ConfigError("no trust configuration for registration "+registrationID))
		return
	}

	requestID, err := saml2.GenerateRequestID()
	if err != nil {
		h.onError(w, r, err)
		return
	}
	reqCtx := requestContextFromQuery(r)
	reqCtx.AuthnRequestID = requestID

	session := h.sessions(r)
	if err := h.requestContexts.Save(session, reqCtx); err != nil {
		h.onError(w, r, err)
		return
	}

	redirectURL, err := h.requestBuilder.BuildRedirectURL(trust, reqCtx, r.URL.Query().Get("relayState"))
	if err != nil {
		h.onError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordAuthnRequest(registrationID)
	}
	if h.logger != nil {
		h.logger.Info("issuing authentication request",
			zap.String("registration_id", registrationID),
			zap.String("authn_request_id", requestID))
	}
	http.Redirect(w, r, redirectURL.String(), http.StatusFound)
}

// AssertionConsumer processes the SAML response of the POST binding.
func (h *Handlers) AssertionConsumer(w http.ResponseWriter, r *http.Request) {
	registrationID := r.PathValue("registrationId")
	trust := h.trust.FindTrustConfiguration(registrationID)
	if trust == nil {
		h.onError(w, r, domain.ConfigError("no trust configuration for registration "+registrationID))
		return
	}

	if err := r.ParseForm(); err != nil {
		h.onError(w, r, domain.AuthError("Malformed form body", err))
		return
	}
	encodedResponse := r.PostFormValue("SAMLResponse")
	if encodedResponse == "" {
		h.onError(w, r, domain.AuthError("Request carries no SAMLResponse", errors.New("missing SAMLResponse parameter")))
		return
	}
	relayState := r.PostFormValue("RelayState")

	session := h.sessions(r)
	reqCtx, ok := h.requestContexts.Load(session)
	if !ok {
		h.onError(w, r, domain.AuthError("No authentication attempt in flight", errors.New("request context not found")))
		return
	}
	// One-shot: the context never survives its response, success or not.
	defer h.requestContexts.Clear(session)

	request := ports.RequestInfo{
		Method:        r.Method,
		URL:           requestURL(r),
		ClientAddress: r.RemoteAddr,
	}

	validated, err := h.validator.Validate(encodedResponse, relayState, request, reqCtx, trust)
	if err != nil {
		h.onError(w, r, domain.AuthError("SAML response validation failed", err))
		return
	}
	if !validated.Success {
		h.onError(w, r, domain.AuthError("Authentication rejected with status "+validated.StatusCode, nil))
		return
	}

	data, err := h.mapper.MapToData(validated)
	if err != nil {
		h.onError(w, r, err)
		return
	}
	principal, err := h.mapper.MapToPrincipal(data)
	if err != nil {
		h.onError(w, r, err)
		return
	}

	if h.logger != nil {
		h.logger.Info("authentication succeeded",
			zap.String("registration_id", registrationID),
			zap.String("subject", principal.Subject))
	}
	h.onSuccess(w, r, principal)
}

// requestContextFromQuery reads the optional login parameters. Absent
// parameters stay absent in the context.
func requestContextFromQuery(r *http.Request) domain.AuthnRequestContext {
	query := r.URL.Query()
	ctx := domain.AuthnRequestContext{
		ForceAuthn: query.Get("forceAuthn") == "true",
	}
	ctx.NistLevel = queryInt(query.Get("nistLevel"))
	ctx.MaxSessionAge = queryInt(query.Get("maxSessionAge"))
	ctx.MaxAgeMfa = queryInt(query.Get("maxAgeMfa"))
	ctx.Tenant = queryInt(query.Get("tenant"))
	if v := query.Get("loginHint"); v != "" {
		ctx.LoginHint = &v
	}
	if v := query.Get("prompt"); v != "" {
		ctx.Prompt = &v
	}
	return ctx
}

func queryInt(raw string) *int {
	if raw == "" {
		return nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &value
}

// requestURL reconstructs the absolute URL the message arrived at, as
// needed for destination matching behind a proxy.
func requestURL(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	host := r.Host
	if forwarded := r.Header.Get("X-Forwarded-Host"); forwarded != "" {
		host = forwarded
	}
	return scheme + "://" + host + r.URL.Path
}

func (h *Handlers) defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	if h.logger != nil {
		h.logger.Warn("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}

	status := http.StatusInternalServerError
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		status = appErr.Code.HTTPStatus()
	}
	http.Error(w, http.StatusText(status), status)
}
