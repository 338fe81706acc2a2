package domain

// AuthnRequestContext is the per-authentication-attempt state recorded
// when an AuthnRequest is issued and consumed when the matching
// response arrives. Pointer fields distinguish "absent" (skip the
// corresponding validation) from an explicit value.
type AuthnRequestContext struct {
	// AuthnRequestID is the outgoing request's unique id, matched
	// against the response's InResponseTo.
	AuthnRequestID string

	ForceAuthn    bool
	NistLevel     *int
	MaxSessionAge *int
	MaxAgeMfa     *int
	Tenant        *int
	LoginHint     *string
	Prompt        *string
}

// IntPtr is a convenience for building optional int fields.
func IntPtr(v int) *int { return &v }

// StringPtr is a convenience for building optional string fields.
func StringPtr(v string) *string { return &v }
