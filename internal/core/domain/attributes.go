package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// The IdP serializes structured multi-valued attributes as delimited
// strings. The default delimiter is ";"; addresses use ";;" so street
// values may contain an embedded ";".
const (
	AttributeSeparator        = ";"
	AddressAttributeSeparator = ";;"
)

// optionalText maps an empty segment to nil; delimited encodings cannot
// distinguish empty from absent, so empty means absent.
func optionalText(s string) *string {
	if s == "" {
		return nil
	}
	v := s
	return &v
}

// splitExactly splits s on sep and enforces the fixed arity of the
// encoded tuple.
func splitExactly(s, sep string, arity int) ([]string, error) {
	parts := strings.Split(s, sep)
	if len(parts) != arity {
		return nil, fmt.Errorf("expected %d segments separated by %q but got %d in %q", arity, sep, len(parts), s)
	}
	return parts, nil
}

// DecodeCompany parses "id;number;name".
func DecodeCompany(s string) (Company, error) {
	parts, err := splitExactly(s, AttributeSeparator, 3)
	if err != nil {
		return Company{}, fmt.Errorf("decode company: %w", err)
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return Company{}, fmt.Errorf("decode company id %q: %w", parts[0], err)
	}
	return Company{ID: id, Number: optionalText(parts[1]), Name: optionalText(parts[2])}, nil
}

// DecodeCompanyAddress parses "id;street;;postalCode;;city;;country".
// The outer separator is ";;"; the first segment additionally carries
// the company id split off at its first ";". Empty segments map to nil.
func DecodeCompanyAddress(s string) (CompanyAddress, error) {
	parts, err := splitExactly(s, AddressAttributeSeparator, 4)
	if err != nil {
		return CompanyAddress{}, fmt.Errorf("decode company address: %w", err)
	}
	idAndStreet := strings.SplitN(parts[0], AttributeSeparator, 2)
	if len(idAndStreet) != 2 {
		return CompanyAddress{}, fmt.Errorf("decode company address: missing company id in %q", parts[0])
	}
	id, err := strconv.Atoi(idAndStreet[0])
	if err != nil {
		return CompanyAddress{}, fmt.Errorf("decode company address id %q: %w", idAndStreet[0], err)
	}
	return CompanyAddress{
		CompanyID:  id,
		Street:     optionalText(idAndStreet[1]),
		PostalCode: optionalText(parts[1]),
		City:       optionalText(parts[2]),
		Country:    optionalText(parts[3]),
	}, nil
}

// DecodeRole parses "companyId;brand;role".
func DecodeRole(s string) (Role, error) {
	parts, err := splitExactly(s, AttributeSeparator, 3)
	if err != nil {
		return Role{}, fmt.Errorf("decode role: %w", err)
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return Role{}, fmt.Errorf("decode role company id %q: %w", parts[0], err)
	}
	if parts[2] == "" {
		return Role{}, fmt.Errorf("decode role: empty role code in %q", s)
	}
	return Role{CompanyID: id, Brand: optionalText(parts[1]), Role: parts[2]}, nil
}

// DecodeContract parses "companyId;brand;contract".
func DecodeContract(s string) (Contract, error) {
	parts, err := splitExactly(s, AttributeSeparator, 3)
	if err != nil {
		return Contract{}, fmt.Errorf("decode contract: %w", err)
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return Contract{}, fmt.Errorf("decode contract company id %q: %w", parts[0], err)
	}
	if parts[2] == "" {
		return Contract{}, fmt.Errorf("decode contract: empty contract code in %q", s)
	}
	return Contract{CompanyID: id, Brand: optionalText(parts[1]), Contract: parts[2]}, nil
}

// DecodeFunctionalNumber parses "companyId;matchcode;number".
func DecodeFunctionalNumber(s string) (FunctionalNumber, error) {
	parts, err := splitExactly(s, AttributeSeparator, 3)
	if err != nil {
		return FunctionalNumber{}, fmt.Errorf("decode functional number: %w", err)
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return FunctionalNumber{}, fmt.Errorf("decode functional number company id %q: %w", parts[0], err)
	}
	number, err := strconv.Atoi(parts[2])
	if err != nil {
		return FunctionalNumber{}, fmt.Errorf("decode functional number %q: %w", parts[2], err)
	}
	return FunctionalNumber{CompanyID: id, Matchcode: parts[1], Number: number}, nil
}

// DecodeCompanies applies DecodeCompany to every value.
func DecodeCompanies(values []string) ([]Company, error) {
	out := make([]Company, 0, len(values))
	for _, v := range values {
		c, err := DecodeCompany(v)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// DecodeCompanyAddresses applies DecodeCompanyAddress to every value.
func DecodeCompanyAddresses(values []string) ([]CompanyAddress, error) {
	out := make([]CompanyAddress, 0, len(values))
	for _, v := range values {
		a, err := DecodeCompanyAddress(v)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// DecodeRoles applies DecodeRole to every value.
func DecodeRoles(values []string) ([]Role, error) {
	out := make([]Role, 0, len(values))
	for _, v := range values {
		r, err := DecodeRole(v)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// DecodeContracts applies DecodeContract to every value.
func DecodeContracts(values []string) ([]Contract, error) {
	out := make([]Contract, 0, len(values))
	for _, v := range values {
		c, err := DecodeContract(v)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// DecodeFunctionalNumbers applies DecodeFunctionalNumber to every value.
func DecodeFunctionalNumbers(values []string) ([]FunctionalNumber, error) {
	out := make([]FunctionalNumber, 0, len(values))
	for _, v := range values {
		n, err := DecodeFunctionalNumber(v)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
