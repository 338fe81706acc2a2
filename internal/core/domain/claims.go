package domain

import (
	"strings"

	"golang.org/x/text/language"
)

// Gender is the enumerated gender claim. The numeric codes follow
// ISO/IEC 5218, the string forms follow the OIDC standard claim.
type Gender int

const (
	GenderUnknown       Gender = 0
	GenderMale          Gender = 1
	GenderFemale        Gender = 2
	GenderNotApplicable Gender = 9
)

// GenderFromCode decodes a numeric gender code. Unknown codes map to
// GenderUnknown rather than failing; a misbehaving IdP must not be able
// to abort authentication over a cosmetic claim.
func GenderFromCode(code int) Gender {
	switch code {
	case 1:
		return GenderMale
	case 2:
		return GenderFemale
	case 9:
		return GenderNotApplicable
	default:
		return GenderUnknown
	}
}

// GenderFromString decodes the OIDC string form. Unknown values map to
// GenderUnknown, like unknown numeric codes.
func GenderFromString(s string) Gender {
	switch strings.ToLower(s) {
	case "male":
		return GenderMale
	case "female":
		return GenderFemale
	case "not_applicable":
		return GenderNotApplicable
	default:
		return GenderUnknown
	}
}

// Code returns the ISO 5218 numeric code.
func (g Gender) Code() int {
	return int(g)
}

// String returns the OIDC string form of the gender claim.
func (g Gender) String() string {
	switch g {
	case GenderMale:
		return "male"
	case GenderFemale:
		return "female"
	case GenderNotApplicable:
		return "not_applicable"
	default:
		return "unknown"
	}
}

// Company is one company the subject belongs to.
type Company struct {
	ID     int
	Number *string
	Name   *string
}

// CompanyAddress is the postal address of a company. The CompanyID is a
// foreign key into the principal's company list; referential integrity
// is not enforced (consumers tolerate orphaned references).
type CompanyAddress struct {
	CompanyID  int
	Street     *string
	PostalCode *string
	City       *string
	Country    *string
}

// Role is a company- and brand-scoped role assignment.
type Role struct {
	CompanyID int
	Brand     *string
	Role      string
}

// Contract is a company- and brand-scoped contract assignment.
type Contract struct {
	CompanyID int
	Brand     *string
	Contract  string
}

// FunctionalNumber is a company-scoped functional phone number.
type FunctionalNumber struct {
	CompanyID int
	Matchcode string
	Number    int
}

// Principal is the normalized user identity produced by the SAML mapper
// and the OIDC claim-normalization layer. It is built once per
// authentication and never mutated afterward.
type Principal struct {
	Subject             string
	TransientID         string
	GUID                string
	AcademicTitle       *string
	AcademicTitleSuffix *string
	FirstName           *string
	LastName            *string
	Email               *string
	PhoneNumber         *string
	Gender              Gender
	Language            language.Tag
	AdditionalLanguages []language.Tag
	UpdatedAt           *int64

	Companies         []Company
	CompanyAddresses  []CompanyAddress
	Roles             []Role
	Contracts         []Contract
	FunctionalNumbers []FunctionalNumber

	// Support data mirrors the business claims for delegated support
	// staff access. Present only when the IdP flags support data.
	SupportAvailable bool
	SupportCompanies []Company
	SupportRoles     []Role
	SupportContracts []Contract

	// Authentication context resolved by the validation pipeline.
	AuthnContextClass AuthnContextClass
	RelayState        string
}

// DisplayName is computed, not stored: first and last name joined by a
// space when both are present, otherwise the subject identifier.
func (p *Principal) DisplayName() string {
	var parts []string
	if p.FirstName != nil && *p.FirstName != "" {
		parts = append(parts, *p.FirstName)
	}
	if p.LastName != nil && *p.LastName != "" {
		parts = append(parts, *p.LastName)
	}
	if len(parts) == 2 {
		return strings.Join(parts, " ")
	}
	return p.Subject
}
