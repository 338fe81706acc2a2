package metadata

import (
	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/ports"
)

// StaticTrustResolver serves fixed trust configurations. Used when the
// asserting party's endpoints and certificates are configured directly
// instead of fetched from metadata, and in tests.
type StaticTrustResolver struct {
	configurations map[string]*domain.TrustConfiguration
}

// NewStaticTrustResolver creates a resolver over the given
// configurations, keyed by registration id.
func NewStaticTrustResolver(configurations ...*domain.TrustConfiguration) *StaticTrustResolver {
	r := &StaticTrustResolver{
		configurations: make(map[string]*domain.TrustConfiguration, len(configurations)),
	}
	for _, configuration := range configurations {
		r.configurations[configuration.RegistrationID] = configuration
	}
	return r
}

// FindTrustConfiguration returns the configuration for a registration
// id, nil when unknown.
func (r *StaticTrustResolver) FindTrustConfiguration(registrationID string) *domain.TrustConfiguration {
	return r.configurations[registrationID]
}

var _ ports.TrustResolver = (*StaticTrustResolver)(nil)
