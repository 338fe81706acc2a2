package oidc

import (
	"errors"

	"golang.org/x/text/language"

	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"
)

// tokenClaims is the ID-token claim layout. Standard OIDC claims carry
// the person profile; the pnet_ claims carry the business data in the
// same delimited encoding the SAML attributes use.
type tokenClaims struct {
	Subject            string `json:"sub"`
	TransientSessionID string `json:"transient_session_id"`
	ACR                string `json:"acr"`

	GUID                string   `json:"pnet_guid"`
	AcademicTitle       string   `json:"pnet_academic_title"`
	AcademicTitleSuffix string   `json:"pnet_academic_title_suffix"`
	GivenName           string   `json:"given_name"`
	FamilyName          string   `json:"family_name"`
	Email               string   `json:"email"`
	PhoneNumber         string   `json:"phone_number"`
	Gender              string   `json:"gender"`
	Locale              string   `json:"locale"`
	AdditionalLocales   []string `json:"pnet_additional_locales"`
	UpdatedAt           *int64   `json:"updated_at"`

	Companies         []string `json:"pnet_companies"`
	CompanyAddresses  []string `json:"pnet_company_addresses"`
	Roles             []string `json:"pnet_roles"`
	Contracts         []string `json:"pnet_contracts"`
	FunctionalNumbers []string `json:"pnet_functional_numbers"`

	SupportAvailable bool     `json:"pnet_support_available"`
	SupportCompanies []string `json:"pnet_support_companies"`
	SupportRoles     []string `json:"pnet_support_roles"`
	SupportContracts []string `json:"pnet_support_contracts"`
}

// validateClaims enforces the claims every Partner.Net ID token must
// carry beyond what standard verification covers.
func validateClaims(claims *tokenClaims) error {
	if claims.TransientSessionID == "" {
		return domain.AuthError("ID token carries no transient session id", errors.New("missing transient_session_id"))
	}
	return nil
}

// toPrincipal converts the claims into the normalized principal, using
// the same business-claim decoders as the SAML mapper.
func (c *tokenClaims) toPrincipal() (*domain.Principal, error) {
	principal := &domain.Principal{
		Subject:             c.Subject,
		TransientID:         c.TransientSessionID,
		GUID:                c.GUID,
		AcademicTitle:       optional(c.AcademicTitle),
		AcademicTitleSuffix: optional(c.AcademicTitleSuffix),
		FirstName:           optional(c.GivenName),
		LastName:            optional(c.FamilyName),
		Email:               optional(c.Email),
		PhoneNumber:         optional(c.PhoneNumber),
		Gender:              domain.GenderFromString(c.Gender),
		Language:            language.Und,
		UpdatedAt:           c.UpdatedAt,
	}

	if c.Locale != "" {
		parsed, err := language.Parse(c.Locale)
		if err != nil {
			return nil, domain.MappingError("Malformed locale claim "+c.Locale, err)
		}
		principal.Language = parsed
	}
	for _, locale := range c.AdditionalLocales {
		parsed, err := language.Parse(locale)
		if err != nil {
			return nil, domain.MappingError("Malformed locale claim "+locale, err)
		}
		principal.AdditionalLanguages = append(principal.AdditionalLanguages, parsed)
	}

	if class, ok := domain.AuthnContextClassByReference(c.ACR); ok {
		principal.AuthnContextClass = class
	} else {
		// Unknown acr values pass through with no strength attributed.
		principal.AuthnContextClass = domain.AuthnContextClass{Reference: c.ACR}
	}

	var err error
	if principal.Companies, err = domain.DecodeCompanies(c.Companies); err != nil {
		return nil, domain.MappingError("Malformed company claim", err)
	}
	if principal.CompanyAddresses, err = domain.DecodeCompanyAddresses(c.CompanyAddresses); err != nil {
		return nil, domain.MappingError("Malformed company address claim", err)
	}
	if principal.Roles, err = domain.DecodeRoles(c.Roles); err != nil {
		return nil, domain.MappingError("Malformed role claim", err)
	}
	if principal.Contracts, err = domain.DecodeContracts(c.Contracts); err != nil {
		return nil, domain.MappingError("Malformed contract claim", err)
	}
	if principal.FunctionalNumbers, err = domain.DecodeFunctionalNumbers(c.FunctionalNumbers); err != nil {
		return nil, domain.MappingError("Malformed functional number claim", err)
	}

	if c.SupportAvailable {
		principal.SupportAvailable = true
		if principal.SupportCompanies, err = domain.DecodeCompanies(c.SupportCompanies); err != nil {
			return nil, domain.MappingError("Malformed support company claim", err)
		}
		if principal.SupportRoles, err = domain.DecodeRoles(c.SupportRoles); err != nil {
			return nil, domain.MappingError("Malformed support role claim", err)
		}
		if principal.SupportContracts, err = domain.DecodeContracts(c.SupportContracts); err != nil {
			return nil, domain.MappingError("Malformed support contract claim", err)
		}
	}

	return principal, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
