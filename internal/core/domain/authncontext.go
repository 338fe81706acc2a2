package domain

// AuthnContextClass pairs a SAML AuthnContextClassRef URI with its NIST
// authentication strength level. The catalog is static; multiple URIs
// may share a level.
type AuthnContextClass struct {
	NistLevel int
	Reference string
}

// The SAML 2.0 authentication context classes recognized by the
// federation, ordered by NIST level.
var (
	AuthnContextNone = AuthnContextClass{NistLevel: 0, Reference: ""}

	AuthnContextUnspecified = AuthnContextClass{
		NistLevel: 1,
		Reference: "urn:oasis:names:tc:SAML:2.0:ac:classes:unspecified",
	}
	AuthnContextPassword = AuthnContextClass{
		NistLevel: 1,
		Reference: "urn:oasis:names:tc:SAML:2.0:ac:classes:Password",
	}
	AuthnContextPasswordProtectedTransport = AuthnContextClass{
		NistLevel: 2,
		Reference: "urn:oasis:names:tc:SAML:2.0:ac:classes:PasswordProtectedTransport",
	}
	AuthnContextSmartcard = AuthnContextClass{
		NistLevel: 2,
		Reference: "urn:oasis:names:tc:SAML:2.0:ac:classes:Smartcard",
	}
	AuthnContextSmartcardPKI = AuthnContextClass{
		NistLevel: 3,
		Reference: "urn:oasis:names:tc:SAML:2.0:ac:classes:SmartcardPKI",
	}
	AuthnContextTimeSyncToken = AuthnContextClass{
		NistLevel: 3,
		Reference: "urn:oasis:names:tc:SAML:2.0:ac:classes:TimeSyncToken",
	}
	AuthnContextMobileTwoFactor = AuthnContextClass{
		NistLevel: 3,
		Reference: "urn:oasis:names:tc:SAML:2.0:ac:classes:MobileTwoFactorContract",
	}
)

// authnContextCatalog lists every class with a wire reference, ordered
// by NIST level.
var authnContextCatalog = []AuthnContextClass{
	AuthnContextUnspecified,
	AuthnContextPassword,
	AuthnContextPasswordProtectedTransport,
	AuthnContextSmartcard,
	AuthnContextSmartcardPKI,
	AuthnContextTimeSyncToken,
	AuthnContextMobileTwoFactor,
}

// AuthnContextClasses returns a copy of the full catalog.
func AuthnContextClasses() []AuthnContextClass {
	out := make([]AuthnContextClass, len(authnContextCatalog))
	copy(out, authnContextCatalog)
	return out
}

// AuthnContextClassesAtOrAbove returns every catalog entry whose NIST
// level is at least the given level. Used to build the minimum
// RequestedAuthnContext of an AuthnRequest.
func AuthnContextClassesAtOrAbove(nistLevel int) []AuthnContextClass {
	var out []AuthnContextClass
	for _, c := range authnContextCatalog {
		if c.NistLevel >= nistLevel {
			out = append(out, c)
		}
	}
	return out
}

// AuthnContextClassByReference resolves a class reference URI against
// the catalog. The second return is false for unknown references; the
// caller decides whether that is an error (strict, the default) or
// falls back to AuthnContextNone (lenient).
func AuthnContextClassByReference(reference string) (AuthnContextClass, bool) {
	for _, c := range authnContextCatalog {
		if c.Reference == reference {
			return c, true
		}
	}
	return AuthnContextNone, false
}
