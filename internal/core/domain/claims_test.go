//go:build unit

package domain

import "testing"

func TestDisplayName(t *testing.T) {
	testCases := []struct {
		name      string
		principal Principal
		want      string
	}{
		{"both names", Principal{Subject: "s1", FirstName: StringPtr("Max"), LastName: StringPtr("Muster")}, "Max Muster"},
		{"first only", Principal{Subject: "s1", FirstName: StringPtr("Max")}, "s1"},
		{"last only", Principal{Subject: "s1", LastName: StringPtr("Muster")}, "s1"},
		{"no names", Principal{Subject: "s1"}, "s1"},
		{"empty strings", Principal{Subject: "s1", FirstName: StringPtr(""), LastName: StringPtr("Muster")}, "s1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.principal.DisplayName(); got != tc.want {
				t.Errorf("DisplayName() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGenderFromCode(t *testing.T) {
	testCases := []struct {
		code int
		want Gender
	}{
		{0, GenderUnknown},
		{1, GenderMale},
		{2, GenderFemale},
		{9, GenderNotApplicable},
		{42, GenderUnknown},
		{-1, GenderUnknown},
	}
	for _, tc := range testCases {
		if got := GenderFromCode(tc.code); got != tc.want {
			t.Errorf("GenderFromCode(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestGenderFromString(t *testing.T) {
	testCases := []struct {
		input string
		want  Gender
	}{
		{"male", GenderMale},
		{"Female", GenderFemale},
		{"not_applicable", GenderNotApplicable},
		{"", GenderUnknown},
		{"other", GenderUnknown},
	}
	for _, tc := range testCases {
		if got := GenderFromString(tc.input); got != tc.want {
			t.Errorf("GenderFromString(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestGenderString(t *testing.T) {
	if GenderMale.String() != "male" || GenderUnknown.String() != "unknown" {
		t.Error("unexpected gender string forms")
	}
	if GenderFemale.Code() != 2 {
		t.Errorf("GenderFemale.Code() = %d", GenderFemale.Code())
	}
}
