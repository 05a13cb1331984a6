package extraction

import "testing"

func TestValidatorCheck(t *testing.T) {
	v := NewValidator(nil)

	cases := []struct {
		name      string
		applicant Applicant
		wantOK    bool
	}{
		{
			name:      "name with valid email",
			applicant: Applicant{Name: "Jane Okoro", Email: "jane.okoro@mail.com"},
			wantOK:    true,
		},
		{
			name:      "name with valid phone only",
			applicant: Applicant{Name: "Jane Okoro", Phone: "+2348012345678"},
			wantOK:    true,
		},
		{
			name:      "single token name",
			applicant: Applicant{Name: "Jane", Email: "jane@mail.com"},
			wantOK:    false,
		},
		{
			name:      "section header as name",
			applicant: Applicant{Name: "Team Leadership", Email: "jane@mail.com"},
			wantOK:    false,
		},
		{
			name:      "job title as name",
			applicant: Applicant{Name: "Senior Accountant", Email: "jane@mail.com"},
			wantOK:    false,
		},
		{
			name:      "no contact details",
			applicant: Applicant{Name: "Jane Okoro"},
			wantOK:    false,
		},
		{
			name:      "placeholder email domain",
			applicant: Applicant{Name: "Jane Okoro", Email: "jane@example.com"},
			wantOK:    false,
		},
		{
			name:      "placeholder email but valid phone",
			applicant: Applicant{Name: "Jane Okoro", Email: "jane@example.com", Phone: "08012345678"},
			wantOK:    true,
		},
		{
			name:      "hyphenated and apostrophe name",
			applicant: Applicant{Name: "Mary-Anne O'Brien", Email: "mab@corp.io"},
			wantOK:    true,
		},
		{
			name:      "name with digits",
			applicant: Applicant{Name: "Jane Okoro123", Email: "jane@mail.com"},
			wantOK:    false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Check(&tc.applicant)
			if tc.wantOK && err != nil {
				t.Fatalf("expected valid, got: %v", err)
			}
			if !tc.wantOK && err == nil {
				t.Fatalf("expected rejection, got nil error")
			}
		})
	}
}

func TestValidatorExtraDisallowedTokens(t *testing.T) {
	v := NewValidator([]string{"Volunteer"})

	if v.ValidName("Volunteer Coordinator") {
		t.Fatal("expected extra disallowed token to reject the name")
	}
	if !v.ValidName("Jane Okoro") {
		t.Fatal("expected a plain name to stay valid")
	}
}

func TestValidPhone(t *testing.T) {
	cases := map[string]bool{
		"+2348012345678":   true,
		"08012345678":      true,
		"+234 801 234 5678": true,
		"12345":            false,
		"":                 false,
		"phone":            false,
	}

	for input, want := range cases {
		if got := ValidPhone(input); got != want {
			t.Errorf("ValidPhone(%q) = %v, want %v", input, got, want)
		}
	}
}
