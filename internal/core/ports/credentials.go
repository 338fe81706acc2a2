package ports

import "github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"

// CredentialStore is the port interface for key material access.
// Implementations must be safe for concurrent use; reads return
// fully-formed snapshots and never block on reloads.
type CredentialStore interface {
	// Credentials returns every active credential.
	Credentials() []domain.Credential

	// CredentialsByUsage returns the active credentials with the given
	// usage. Several credentials of one usage may be active at once
	// during key-rotation overlap.
	CredentialsByUsage(usage domain.CredentialUsage) []domain.Credential

	// OnUpdate registers a callback invoked after every successful
	// reload. A callback that panics is caught and logged; it never
	// prevents the remaining callbacks from running.
	OnUpdate(func())
}
