package ports

import "github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"

// TrustResolver is the port interface for trust configuration lookup.
type TrustResolver interface {
	// FindTrustConfiguration returns the current trust configuration
	// snapshot for a registration id, or nil when none is resolvable
	// (unknown registration, or metadata not loaded yet). Returning nil
	// is the lazy "not ready" signal; callers may retry on the next
	// request.
	FindTrustConfiguration(registrationID string) *domain.TrustConfiguration
}
