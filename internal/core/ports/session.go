package ports

// Session is the abstract session-attribute capability consumed from
// the hosting HTTP layer. The library never manages cookies or session
// lifecycles itself; it only reads and writes attributes scoped to the
// caller's browser session.
type Session interface {
	// Get returns the named attribute, with ok=false when absent.
	// Absence is distinct from an empty value.
	Get(name string) (value string, ok bool)

	// Set stores the named attribute.
	Set(name, value string)

	// Delete removes the named attribute.
	Delete(name string)
}

// RequestInfo is the abstract view of the inbound HTTP request the
// validation pipeline needs: the observed client address, the HTTP
// method and the URL the message arrived at.
type RequestInfo struct {
	Method        string
	URL           string
	ClientAddress string
}
