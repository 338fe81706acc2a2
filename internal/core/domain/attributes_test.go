//go:build unit

package domain

import "testing"

func TestDecodeCompany(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    Company
		wantErr bool
	}{
		{"full", "7;K100;Example Motors", Company{ID: 7, Number: StringPtr("K100"), Name: StringPtr("Example Motors")}, false},
		{"empty optionals", "7;;", Company{ID: 7}, false},
		{"missing segments", "7;K100", Company{}, true},
		{"too many segments", "7;K100;Name;extra", Company{}, true},
		{"non-numeric id", "x;K100;Name", Company{}, true},
		{"empty", "", Company{}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeCompany(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeCompany(%q): %v", tc.input, err)
			}
			if got.ID != tc.want.ID {
				t.Errorf("ID = %d, want %d", got.ID, tc.want.ID)
			}
			if !equalOptional(got.Number, tc.want.Number) {
				t.Errorf("Number = %v, want %v", got.Number, tc.want.Number)
			}
			if !equalOptional(got.Name, tc.want.Name) {
				t.Errorf("Name = %v, want %v", got.Name, tc.want.Name)
			}
		})
	}
}

func TestDecodeCompanyAddress(t *testing.T) {
	got, err := DecodeCompanyAddress("7;Main St;;1010;;Vienna;;AT")
	if err != nil {
		t.Fatalf("DecodeCompanyAddress: %v", err)
	}
	if got.CompanyID != 7 {
		t.Errorf("CompanyID = %d", got.CompanyID)
	}
	if got.Street == nil || *got.Street != "Main St" {
		t.Errorf("Street = %v", got.Street)
	}
	if got.PostalCode == nil || *got.PostalCode != "1010" {
		t.Errorf("PostalCode = %v", got.PostalCode)
	}
	if got.City == nil || *got.City != "Vienna" {
		t.Errorf("City = %v", got.City)
	}
	if got.Country == nil || *got.Country != "AT" {
		t.Errorf("Country = %v", got.Country)
	}
}

func TestDecodeCompanyAddress_StreetWithEmbeddedSeparator(t *testing.T) {
	// The street may contain a single ";": only the first one splits off
	// the company id.
	got, err := DecodeCompanyAddress("7;Main St; Block 2;;1010;;Vienna;;AT")
	if err != nil {
		t.Fatalf("DecodeCompanyAddress: %v", err)
	}
	if got.Street == nil || *got.Street != "Main St; Block 2" {
		t.Errorf("Street = %v", got.Street)
	}
}

func TestDecodeCompanyAddress_EmptySegmentsAbsent(t *testing.T) {
	got, err := DecodeCompanyAddress("7;Main St;;1010;;;;")
	if err != nil {
		t.Fatalf("DecodeCompanyAddress: %v", err)
	}
	if got.Street == nil || *got.Street != "Main St" {
		t.Errorf("Street = %v", got.Street)
	}
	if got.PostalCode == nil || *got.PostalCode != "1010" {
		t.Errorf("PostalCode = %v", got.PostalCode)
	}
	if got.City != nil || got.Country != nil {
		t.Errorf("City/Country = %v/%v, want nil", got.City, got.Country)
	}
}

func TestDecodeCompanyAddress_Malformed(t *testing.T) {
	for _, input := range []string{"", "7;street", "7;street;;1010;;Vienna", "nostreet;;1010;;Vienna;;AT"} {
		if _, err := DecodeCompanyAddress(input); err == nil {
			t.Errorf("expected error for %q", input)
		}
	}
}

func TestDecodeRole(t *testing.T) {
	got, err := DecodeRole("7;VW;SALES")
	if err != nil {
		t.Fatalf("DecodeRole: %v", err)
	}
	if got.CompanyID != 7 || got.Brand == nil || *got.Brand != "VW" || got.Role != "SALES" {
		t.Errorf("role = %+v", got)
	}

	brandless, err := DecodeRole("7;;ADMIN")
	if err != nil {
		t.Fatalf("DecodeRole: %v", err)
	}
	if brandless.Brand != nil {
		t.Errorf("Brand = %v, want nil", brandless.Brand)
	}

	if _, err := DecodeRole("7;VW;"); err == nil {
		t.Error("expected error for empty role code")
	}
}

func TestDecodeContract(t *testing.T) {
	got, err := DecodeContract("7;VW;DEALER")
	if err != nil {
		t.Fatalf("DecodeContract: %v", err)
	}
	if got.CompanyID != 7 || got.Contract != "DEALER" {
		t.Errorf("contract = %+v", got)
	}
	if _, err := DecodeContract("7;VW;"); err == nil {
		t.Error("expected error for empty contract code")
	}
}

func TestDecodeFunctionalNumber(t *testing.T) {
	got, err := DecodeFunctionalNumber("7;SRV;42")
	if err != nil {
		t.Fatalf("DecodeFunctionalNumber: %v", err)
	}
	if got.CompanyID != 7 || got.Matchcode != "SRV" || got.Number != 42 {
		t.Errorf("functional number = %+v", got)
	}
	if _, err := DecodeFunctionalNumber("7;SRV;x"); err == nil {
		t.Error("expected error for non-numeric number")
	}
}

func TestDecodeCompanies_FailsOnFirstMalformed(t *testing.T) {
	if _, err := DecodeCompanies([]string{"7;;", "broken"}); err == nil {
		t.Fatal("expected error")
	}
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
