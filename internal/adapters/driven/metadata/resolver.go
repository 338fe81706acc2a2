// Package metadata resolves trust configurations from remote IdP
// metadata documents. Documents are fetched lazily on first use,
// refreshed in the background and combined with the active credentials
// into immutable trust-configuration snapshots.
package metadata

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/ports"
)

// Timeouts and refresh defaults for metadata fetching.
const (
	DefaultRefreshInterval = 15 * time.Minute
	connectTimeout         = 5 * time.Second
	requestTimeout         = 10 * time.Second
	maxMetadataSize        = 10 << 20 // 10 MiB
)

// Registration describes one configured IdP relationship: the local SP
// identity and where to fetch the asserting party's metadata.
type Registration struct {
	RegistrationID              string
	EntityID                    string
	AssertionConsumerServiceURL string
	MetadataURL                 string
}

// remoteState is the cached fetch result for one registration.
type remoteState struct {
	party       *domain.AssertingParty
	lastSuccess time.Time
	lastError   error
	isFresh     bool
}

// IdPMetadataResolver implements ports.TrustResolver on top of remote
// metadata documents. A fetch failure never discards a previously
// resolved asserting party; the stale snapshot stays authoritative
// until a refresh succeeds.
type IdPMetadataResolver struct {
	registrations map[string]Registration
	credentials   ports.CredentialStore
	httpClient    *http.Client
	clock         clockwork.Clock
	logger        *zap.Logger
	metrics       ports.MetricsRecorder

	refreshInterval time.Duration
	failOnStartup   bool

	mu        sync.RWMutex
	snapshots map[string]*domain.TrustConfiguration
	remote    map[string]*remoteState

	stopCh  chan struct{}
	stopped sync.Once
}

// ResolverOption configures an IdPMetadataResolver.
type ResolverOption func(*IdPMetadataResolver)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ResolverOption {
	return func(r *IdPMetadataResolver) { r.logger = logger }
}

// WithClock injects the clock used for refresh timing.
func WithClock(clock clockwork.Clock) ResolverOption {
	return func(r *IdPMetadataResolver) { r.clock = clock }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m ports.MetricsRecorder) ResolverOption {
	return func(r *IdPMetadataResolver) { r.metrics = m }
}

// WithRefreshInterval overrides the background refresh interval.
func WithRefreshInterval(interval time.Duration) ResolverOption {
	return func(r *IdPMetadataResolver) { r.refreshInterval = interval }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) ResolverOption {
	return func(r *IdPMetadataResolver) { r.httpClient = client }
}

// WithFailOnStartup makes construction fetch every registration's
// metadata eagerly, retrying with exponential backoff, and fail when
// any registration stays unreachable. Without it the first fetch
// happens lazily on first use.
func WithFailOnStartup() ResolverOption {
	return func(r *IdPMetadataResolver) { r.failOnStartup = true }
}

// NewIdPMetadataResolver creates the resolver and starts the background
// refresh goroutine. Call Close to stop it. Credential updates rebuild
// the trust snapshots immediately so rotated keys apply without waiting
// for a metadata refresh.
func NewIdPMetadataResolver(registrations []Registration, credentials ports.CredentialStore, opts ...ResolverOption) (*IdPMetadataResolver, error) {
	r := &IdPMetadataResolver{
		registrations:   make(map[string]Registration, len(registrations)),
		credentials:     credentials,
		clock:           clockwork.NewRealClock(),
		refreshInterval: DefaultRefreshInterval,
		snapshots:       make(map[string]*domain.TrustConfiguration),
		remote:          make(map[string]*remoteState),
		stopCh:          make(chan struct{}),
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
	}
	for _, registration := range registrations {
		r.registrations[registration.RegistrationID] = registration
		r.remote[registration.RegistrationID] = &remoteState{}
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.failOnStartup {
		if err := r.fetchAllWithBackoff(); err != nil {
			return nil, err
		}
	}

	if credentials != nil {
		credentials.OnUpdate(r.rebuildSnapshots)
	}
	go r.refreshLoop()
	return r, nil
}

// FindTrustConfiguration returns the trust configuration snapshot for a
// registration id. The first call for a registration blocks on the
// initial metadata fetch; a nil return means the registration is
// unknown or its metadata is not resolvable yet.
func (r *IdPMetadataResolver) FindTrustConfiguration(registrationID string) *domain.TrustConfiguration {
	registration, known := r.registrations[registrationID]
	if !known {
		return nil
	}

	r.mu.RLock()
	snapshot := r.snapshots[registrationID]
	r.mu.RUnlock()
	if snapshot != nil {
		return snapshot
	}

	// Lazy initial fetch. On failure the registration stays unresolved
	// and the next request retries.
	if err := r.refreshRegistration(registration); err != nil {
		if r.logger != nil {
			r.logger.Error("initial metadata fetch failed",
				zap.String("registration_id", registrationID),
				zap.Error(err))
		}
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshots[registrationID]
}

// Refresh re-fetches every registration's metadata immediately.
func (r *IdPMetadataResolver) Refresh() error {
	var firstErr error
	for _, registration := range r.registrations {
		if err := r.refreshRegistration(registration); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Health reports per-registration freshness: whether the last fetch
// succeeded and the error when it did not.
func (r *IdPMetadataResolver) Health() map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make(map[string]error, len(r.remote))
	for registrationID, state := range r.remote {
		if state.isFresh {
			health[registrationID] = nil
		} else if state.lastError != nil {
			health[registrationID] = state.lastError
		} else {
			health[registrationID] = fmt.Errorf("metadata not loaded yet")
		}
	}
	return health
}

// Close stops the background refresh goroutine. Idempotent.
func (r *IdPMetadataResolver) Close() error {
	r.stopped.Do(func() { close(r.stopCh) })
	return nil
}

func (r *IdPMetadataResolver) refreshLoop() {
	ticker := r.clock.NewTicker(r.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			for _, registration := range r.registrations {
				// Skip registrations never requested yet; their first
				// fetch stays lazy.
				r.mu.RLock()
				touched := r.remote[registration.RegistrationID].party != nil ||
					r.remote[registration.RegistrationID].lastError != nil
				r.mu.RUnlock()
				if !touched {
					continue
				}
				if err := r.refreshRegistration(registration); err != nil && r.logger != nil {
					r.logger.Warn("background metadata refresh failed, previous trust configuration remains active",
						zap.String("registration_id", registration.RegistrationID),
						zap.Error(err))
				}
			}
		case <-r.stopCh:
			return
		}
	}
}

// fetchAllWithBackoff eagerly resolves every registration, retrying
// transient failures with exponential backoff for a bounded time.
func (r *IdPMetadataResolver) fetchAllWithBackoff() error {
	for _, registration := range r.registrations {
		registration := registration
		policy := backoff.NewExponentialBackOff()
		policy.MaxElapsedTime = 2 * time.Minute

		err := backoff.Retry(func() error {
			return r.refreshRegistration(registration)
		}, policy)
		if err != nil {
			return fmt.Errorf("resolve metadata for registration %s: %w", registration.RegistrationID, err)
		}
	}
	return nil
}

// refreshRegistration fetches and parses one registration's metadata
// and publishes a rebuilt snapshot. Failures preserve the previous
// asserting party.
func (r *IdPMetadataResolver) refreshRegistration(registration Registration) error {
	raw, err := r.fetch(registration.MetadataURL)
	if err != nil {
		r.markFailed(registration.RegistrationID, err)
		return err
	}
	party, err := parseAssertingParty(raw)
	if err != nil {
		r.markFailed(registration.RegistrationID, err)
		return err
	}

	r.mu.Lock()
	state := r.remote[registration.RegistrationID]
	state.party = party
	state.lastSuccess = r.clock.Now()
	state.lastError = nil
	state.isFresh = true
	r.snapshots[registration.RegistrationID] = r.buildSnapshot(registration, party)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordMetadataRefresh(registration.RegistrationID, true)
	}
	if r.logger != nil {
		r.logger.Info("trust configuration refreshed",
			zap.String("registration_id", registration.RegistrationID),
			zap.String("idp_entity_id", party.EntityID))
	}
	return nil
}

func (r *IdPMetadataResolver) fetch(metadataURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build metadata request: %w", err)
	}
	request.Header.Set("Accept", "application/samlmetadata+xml, application/xml, text/xml")

	response, err := r.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata from %s: %w", metadataURL, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch metadata from %s: unexpected status %d", metadataURL, response.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(response.Body, maxMetadataSize))
	if err != nil {
		return nil, fmt.Errorf("read metadata from %s: %w", metadataURL, err)
	}
	return raw, nil
}

// buildSnapshot combines a registration, the fetched asserting party
// and the active credentials into an immutable trust configuration.
// Caller holds r.mu.
func (r *IdPMetadataResolver) buildSnapshot(registration Registration, party *domain.AssertingParty) *domain.TrustConfiguration {
	snapshot := &domain.TrustConfiguration{
		RegistrationID:              registration.RegistrationID,
		EntityID:                    registration.EntityID,
		AssertionConsumerServiceURL: registration.AssertionConsumerServiceURL,
		AssertionConsumerBinding:    "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST",
		AssertingParty:              *party,
	}
	if r.credentials != nil {
		snapshot.SigningCredentials = r.credentials.CredentialsByUsage(domain.UsageSigning)
		snapshot.DecryptionCredentials = r.credentials.CredentialsByUsage(domain.UsageDecryption)
	}
	return snapshot
}

// rebuildSnapshots republishes every resolved snapshot with the current
// credential set. Runs as a credential-store update listener.
func (r *IdPMetadataResolver) rebuildSnapshots() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for registrationID, state := range r.remote {
		if state.party == nil {
			continue
		}
		r.snapshots[registrationID] = r.buildSnapshot(r.registrations[registrationID], state.party)
	}
}

func (r *IdPMetadataResolver) markFailed(registrationID string, err error) {
	r.mu.Lock()
	state := r.remote[registrationID]
	state.lastError = err
	state.isFresh = false
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordMetadataRefresh(registrationID, false)
	}
}

// Ensure IdPMetadataResolver implements ports.TrustResolver.
var _ ports.TrustResolver = (*IdPMetadataResolver)(nil)
