package saml2

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"
)

// Business claim attribute names, all under the Partner.Net attribute
// namespace prefix.
const (
	AttrGUID                = AttributeNamePrefix + "guid"
	AttrAcademicTitle       = AttributeNamePrefix + "academic_title"
	AttrAcademicTitleSuffix = AttributeNamePrefix + "academic_title_suffix"
	AttrFirstName           = AttributeNamePrefix + "first_name"
	AttrLastName            = AttributeNamePrefix + "last_name"
	AttrEmail               = AttributeNamePrefix + "email"
	AttrPhoneNumber         = AttributeNamePrefix + "phone_number"
	AttrGender              = AttributeNamePrefix + "gender"
	AttrLanguage            = AttributeNamePrefix + "language"
	AttrAdditionalLanguages = AttributeNamePrefix + "additional_languages"
	AttrUpdatedAt           = AttributeNamePrefix + "updated_at"

	AttrCompanies         = AttributeNamePrefix + "companies"
	AttrCompanyAddresses  = AttributeNamePrefix + "company_addresses"
	AttrRoles             = AttributeNamePrefix + "roles"
	AttrContracts         = AttributeNamePrefix + "contracts"
	AttrFunctionalNumbers = AttributeNamePrefix + "functional_numbers"

	AttrSupportAvailable = AttributeNamePrefix + "support_available"
	AttrSupportCompanies = AttributeNamePrefix + "support_companies"
	AttrSupportRoles     = AttributeNamePrefix + "support_roles"
	AttrSupportContracts = AttributeNamePrefix + "support_contracts"
)

// ResponseMapper converts a validated assertion into the flattened
// Saml2Data and from there into the normalized Principal. Mapping
// failures are trust-boundary violations and surface as authentication
// failures, never as half-populated principals.
type ResponseMapper struct {
	lenientAuthnContext bool
}

// NewResponseMapper creates a mapper. The lenient flag mirrors the
// validator's handling of unknown AuthnContextClassRef values.
func NewResponseMapper(lenientAuthnContext bool) *ResponseMapper {
	return &ResponseMapper{lenientAuthnContext: lenientAuthnContext}
}

// MapToData flattens a validated assertion into Saml2Data.
func (m *ResponseMapper) MapToData(validated *ValidatedResponse) (*domain.Saml2Data, error) {
	assertion := validated.Assertion

	data := &domain.Saml2Data{
		RelayState: validated.RelayState,
		Attributes: make(map[string][]domain.AttributeValue),
	}
	if assertion.Subject != nil && assertion.Subject.NameID != nil {
		data.NameID = assertion.Subject.NameID.Value
		data.NameIDFormat = assertion.Subject.NameID.Format
	}
	if len(assertion.AuthnStatements) > 0 {
		statement := assertion.AuthnStatements[0]
		data.AuthnInstant = statement.AuthnInstant
		data.SessionIndex = statement.SessionIndex
	}

	class, err := resolveAuthnContextClass(assertion, m.lenientAuthnContext)
	if err != nil {
		return nil, err
	}
	data.AuthnContextClass = class

	for _, statement := range assertion.AttributeStatements {
		for _, attr := range statement.Attributes {
			values := make([]domain.AttributeValue, 0, len(attr.Values))
			for _, value := range attr.Values {
				typed, err := typedAttributeValue(value)
				if err != nil {
					return nil, domain.MappingError("Attribute "+attr.Name+" has a malformed value", err)
				}
				values = append(values, typed)
			}
			data.Attributes[attr.Name] = values

			if attr.Name == AttributeSubjectID || attr.Name == AttributePairwiseID {
				if len(values) > 0 {
					if s, ok := values[0].(string); ok {
						data.SubjectID = s
					}
				}
			}
		}
	}
	return data, nil
}

// typedAttributeValue converts a wire attribute value according to its
// declared xsi:type. Undeclared types pass through as strings.
func typedAttributeValue(value AttributeValue) (domain.AttributeValue, error) {
	_, localType, _ := strings.Cut(value.Type, ":")
	switch localType {
	case "integer", "int", "long", "short":
		return strconv.Atoi(value.Value)
	case "boolean":
		return strconv.ParseBool(value.Value)
	case "dateTime":
		return time.Parse(time.RFC3339, value.Value)
	case "base64Binary":
		return base64.StdEncoding.DecodeString(value.Value)
	default:
		// string, anyURI and undeclared types stay strings.
		return value.Value, nil
	}
}

// MapToPrincipal decodes the business claims of the flattened data into
// the typed Principal.
func (m *ResponseMapper) MapToPrincipal(data *domain.Saml2Data) (*domain.Principal, error) {
	principal := &domain.Principal{
		Subject:           data.SubjectID,
		TransientID:       data.NameID,
		Gender:            domain.GenderUnknown,
		Language:          language.Und,
		AuthnContextClass: data.AuthnContextClass,
		RelayState:        data.RelayState,
	}

	if guid, ok := data.StringValue(AttrGUID); ok {
		principal.GUID = guid
	}
	principal.AcademicTitle = optionalString(data, AttrAcademicTitle)
	principal.AcademicTitleSuffix = optionalString(data, AttrAcademicTitleSuffix)
	principal.FirstName = optionalString(data, AttrFirstName)
	principal.LastName = optionalString(data, AttrLastName)
	principal.Email = optionalString(data, AttrEmail)
	principal.PhoneNumber = optionalString(data, AttrPhoneNumber)

	if code, ok := data.IntValue(AttrGender); ok {
		principal.Gender = domain.GenderFromCode(code)
	}
	if tag, ok := data.StringValue(AttrLanguage); ok {
		parsed, err := language.Parse(tag)
		if err != nil {
			return nil, domain.MappingError("Malformed language tag "+tag, err)
		}
		principal.Language = parsed
	}
	for _, tag := range data.StringValues(AttrAdditionalLanguages) {
		parsed, err := language.Parse(tag)
		if err != nil {
			return nil, domain.MappingError("Malformed language tag "+tag, err)
		}
		principal.AdditionalLanguages = append(principal.AdditionalLanguages, parsed)
	}
	if updatedAt, ok := data.IntValue(AttrUpdatedAt); ok {
		v := int64(updatedAt)
		principal.UpdatedAt = &v
	}

	var err error
	if principal.Companies, err = domain.DecodeCompanies(data.StringValues(AttrCompanies)); err != nil {
		return nil, domain.MappingError("Malformed company attribute", err)
	}
	if principal.CompanyAddresses, err = domain.DecodeCompanyAddresses(data.StringValues(AttrCompanyAddresses)); err != nil {
		return nil, domain.MappingError("Malformed company address attribute", err)
	}
	if principal.Roles, err = domain.DecodeRoles(data.StringValues(AttrRoles)); err != nil {
		return nil, domain.MappingError("Malformed role attribute", err)
	}
	if principal.Contracts, err = domain.DecodeContracts(data.StringValues(AttrContracts)); err != nil {
		return nil, domain.MappingError("Malformed contract attribute", err)
	}
	if principal.FunctionalNumbers, err = domain.DecodeFunctionalNumbers(data.StringValues(AttrFunctionalNumbers)); err != nil {
		return nil, domain.MappingError("Malformed functional number attribute", err)
	}

	// Support data is a shadow set of the business claims, decoded only
	// when the IdP flags it as available.
	if available, ok := data.BoolValue(AttrSupportAvailable); ok && available {
		principal.SupportAvailable = true
		if principal.SupportCompanies, err = domain.DecodeCompanies(data.StringValues(AttrSupportCompanies)); err != nil {
			return nil, domain.MappingError("Malformed support company attribute", err)
		}
		if principal.SupportRoles, err = domain.DecodeRoles(data.StringValues(AttrSupportRoles)); err != nil {
			return nil, domain.MappingError("Malformed support role attribute", err)
		}
		if principal.SupportContracts, err = domain.DecodeContracts(data.StringValues(AttrSupportContracts)); err != nil {
			return nil, domain.MappingError("Malformed support contract attribute", err)
		}
	}

	return principal, nil
}

func optionalString(data *domain.Saml2Data, name string) *string {
	if value, ok := data.StringValue(name); ok && value != "" {
		v := value
		return &v
	}
	return nil
}
