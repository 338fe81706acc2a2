// Package credentials implements the file-based credential store: key
// material loaded from PEM keystore files, hot-reloaded on a timer or
// file-change events, with expiry housekeeping and update listeners.
package credentials

import (
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/ports"
)

// Defaults for the reload and expiry housekeeping behavior.
const (
	DefaultReloadInterval      = 60 * time.Second
	DefaultExpiryWarnThreshold = 60 * 24 * time.Hour
	DefaultExpiryWarnInterval  = 24 * time.Hour
)

// Source is one configured keystore file and the usage of the
// credential it holds.
type Source struct {
	Path  string
	Usage domain.CredentialUsage
}

// FileCredentialStore loads credentials from PEM keystore files and
// reloads them when a source changes. Reads never block on reloads:
// the credential list is an atomically swapped snapshot.
type FileCredentialStore struct {
	sources []Source
	clock   clockwork.Clock
	logger  *zap.Logger
	metrics ports.MetricsRecorder

	reloadInterval      time.Duration
	expiryWarnThreshold time.Duration
	expiryWarnInterval  time.Duration
	watchFiles          bool

	// reloadMu serializes reloads; two concurrent reloads must never
	// interleave partial state.
	reloadMu sync.Mutex

	mu          sync.RWMutex
	credentials []domain.Credential
	modTimes    map[string]time.Time
	sourceCount int
	loaded      bool
	lastError   error
	lastWarned  map[string]time.Time

	listenersMu sync.Mutex
	listeners   []func()

	stopCh  chan struct{}
	stopped sync.Once
	watcher *fsnotify.Watcher
}

// Option configures a FileCredentialStore.
type Option func(*FileCredentialStore)

// WithClock injects the clock used for reload timing and expiry checks.
func WithClock(clock clockwork.Clock) Option {
	return func(s *FileCredentialStore) { s.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *FileCredentialStore) { s.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m ports.MetricsRecorder) Option {
	return func(s *FileCredentialStore) { s.metrics = m }
}

// WithReloadInterval overrides the periodic reload interval.
func WithReloadInterval(interval time.Duration) Option {
	return func(s *FileCredentialStore) { s.reloadInterval = interval }
}

// WithExpiryWarning overrides the expiry warning threshold and the
// minimum interval between repeated warnings for the same source.
func WithExpiryWarning(threshold, interval time.Duration) Option {
	return func(s *FileCredentialStore) {
		s.expiryWarnThreshold = threshold
		s.expiryWarnInterval = interval
	}
}

// WithFileWatcher additionally triggers reloads from file-system write
// events on the keystore files, so rotations apply without waiting for
// the next timer tick.
func WithFileWatcher() Option {
	return func(s *FileCredentialStore) { s.watchFiles = true }
}

// NewFileCredentialStore creates the store and performs the initial
// load. A missing decryption credential is a fatal misconfiguration and
// fails construction. The periodic reload goroutine starts immediately;
// call Close to stop it.
func NewFileCredentialStore(sources []Source, opts ...Option) (*FileCredentialStore, error) {
	s := &FileCredentialStore{
		sources:             sources,
		clock:               clockwork.NewRealClock(),
		reloadInterval:      DefaultReloadInterval,
		expiryWarnThreshold: DefaultExpiryWarnThreshold,
		expiryWarnInterval:  DefaultExpiryWarnInterval,
		modTimes:            make(map[string]time.Time),
		lastWarned:          make(map[string]time.Time),
		stopCh:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.Reload(); err != nil {
		return nil, err
	}

	if s.watchFiles {
		if err := s.startWatcher(); err != nil && s.logger != nil {
			s.logger.Warn("keystore file watcher unavailable, relying on periodic reload", zap.Error(err))
		}
	}
	go s.reloadLoop()
	return s, nil
}

// Credentials returns the active credential snapshot.
func (s *FileCredentialStore) Credentials() []domain.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credentials
}

// CredentialsByUsage returns the active credentials with the given
// usage.
func (s *FileCredentialStore) CredentialsByUsage(usage domain.CredentialUsage) []domain.Credential {
	return domain.FilterCredentials(s.Credentials(), usage)
}

// OnUpdate registers a listener fired after every successful reload
// that replaced the credential set.
func (s *FileCredentialStore) OnUpdate(listener func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// LastError returns the error of the most recent failed reload, nil
// when the last reload succeeded.
func (s *FileCredentialStore) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// Health reports per-source load status: nil when the last reload
// succeeded, the reload error otherwise.
func (s *FileCredentialStore) Health() map[string]error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	health := make(map[string]error, len(s.sources))
	for _, source := range s.sources {
		health[source.Path] = s.lastError
	}
	return health
}

// Close stops the reload goroutine and the file watcher. Idempotent.
func (s *FileCredentialStore) Close() error {
	s.stopped.Do(func() {
		close(s.stopCh)
		if s.watcher != nil {
			s.watcher.Close()
		}
	})
	return nil
}

func (s *FileCredentialStore) reloadLoop() {
	ticker := s.clock.NewTicker(s.reloadInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			if err := s.Reload(); err != nil && s.logger != nil {
				s.logger.Error("credential reload failed, previous credentials remain active", zap.Error(err))
			}
		case <-s.stopCh:
			return
		}
	}
}

func (s *FileCredentialStore) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, source := range s.sources {
		if err := watcher.Add(source.Path); err != nil {
			watcher.Close()
			return err
		}
	}
	s.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if err := s.Reload(); err != nil && s.logger != nil {
						s.logger.Error("credential reload after file change failed", zap.Error(err))
					}
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-s.stopCh:
				return
			}
		}
	}()
	return nil
}

// Reload re-reads every keystore source if anything changed since the
// last successful load. A read failure on any single source aborts the
// whole reload and keeps the previous credential set authoritative.
func (s *FileCredentialStore) Reload() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	modTimes, changed, err := s.detectChanges()
	if err != nil {
		s.markFailed(err)
		return err
	}
	if !changed {
		return nil
	}

	now := s.clock.Now()
	var loaded []domain.Credential
	for _, source := range s.sources {
		key, cert, err := loadKeyPair(source.Path)
		if err != nil {
			s.markFailed(err)
			return err
		}
		credential := domain.Credential{
			Usage:       source.Usage,
			PrivateKey:  key,
			Certificate: cert,
			Source:      source.Path,
		}
		if credential.Expired(now) {
			if s.logger != nil {
				s.logger.Warn("dropping expired certificate",
					zap.String("source", source.Path),
					zap.Time("not_after", cert.NotAfter))
			}
			continue
		}
		s.warnIfExpiringSoon(credential, now)
		loaded = append(loaded, credential)
	}

	if len(domain.FilterCredentials(loaded, domain.UsageDecryption)) == 0 {
		s.markFailed(domain.ErrNoDecryptionCredential)
		return domain.ErrNoDecryptionCredential
	}

	s.mu.Lock()
	s.credentials = loaded
	s.modTimes = modTimes
	s.sourceCount = len(s.sources)
	s.loaded = true
	s.lastError = nil
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordCredentialReload(true, len(loaded))
	}
	if s.logger != nil {
		s.logger.Info("credentials reloaded", zap.Int("credential_count", len(loaded)))
	}

	s.fireListeners()
	return nil
}

// detectChanges stats every source and reports whether a reload is due:
// first load, source count changed, or any modification time moved.
func (s *FileCredentialStore) detectChanges() (map[string]time.Time, bool, error) {
	modTimes := make(map[string]time.Time, len(s.sources))
	for _, source := range s.sources {
		info, err := os.Stat(source.Path)
		if err != nil {
			return nil, false, err
		}
		modTimes[source.Path] = info.ModTime()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded || len(s.sources) != s.sourceCount {
		return modTimes, true, nil
	}
	for path, modTime := range modTimes {
		if previous, ok := s.modTimes[path]; !ok || !modTime.Equal(previous) {
			return modTimes, true, nil
		}
	}
	return modTimes, false, nil
}

// warnIfExpiringSoon logs a rate-limited warning for certificates
// nearing expiry. Warnings repeat at most once per configured interval
// per source.
func (s *FileCredentialStore) warnIfExpiringSoon(credential domain.Credential, now time.Time) {
	if !credential.ExpiresWithin(now, s.expiryWarnThreshold) {
		return
	}
	s.mu.Lock()
	last, warned := s.lastWarned[credential.Source]
	if warned && now.Sub(last) < s.expiryWarnInterval {
		s.mu.Unlock()
		return
	}
	s.lastWarned[credential.Source] = now
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Warn("certificate expires soon",
			zap.String("source", credential.Source),
			zap.Time("not_after", credential.Certificate.NotAfter))
	}
}

// fireListeners invokes every update listener. A panicking listener is
// caught and logged; the remaining listeners still run.
func (s *FileCredentialStore) fireListeners() {
	s.listenersMu.Lock()
	listeners := append([]func(){}, s.listeners...)
	s.listenersMu.Unlock()

	for _, listener := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil && s.logger != nil {
					s.logger.Error("credential update listener panicked", zap.Any("panic", r))
				}
			}()
			listener()
		}()
	}
}

func (s *FileCredentialStore) markFailed(err error) {
	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.RecordCredentialReload(false, 0)
	}
}

// Ensure FileCredentialStore implements ports.CredentialStore.
var _ ports.CredentialStore = (*FileCredentialStore)(nil)
