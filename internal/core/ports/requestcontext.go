package ports

import "github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"

// RequestContextStore persists the per-authentication-attempt state
// between issuing an AuthnRequest and validating the matching response.
// State never outlives one authentication round-trip.
type RequestContextStore interface {
	// Save records the context for the caller's session.
	Save(session Session, ctx domain.AuthnRequestContext) error

	// Load returns the context recorded for the caller's session, with
	// ok=false when none was recorded.
	Load(session Session) (ctx domain.AuthnRequestContext, ok bool)

	// Clear removes the recorded context.
	Clear(session Session)
}
