package extraction

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	minNameTokens = 2
	maxNameTokens = 5
	maxNameLength = 60
)

var (
	namePattern  = regexp.MustCompile(`^[\p{L}][\p{L}'.-]*(?: [\p{L}][\p{L}'.-]*)+$`)
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	// International form with country code, or a local 11-digit number
	// starting with zero.
	phonePattern = regexp.MustCompile(`^(?:\+[0-9]{8,15}|0[0-9]{10})$`)
)

// defaultDisallowedTokens rejects name candidates that are really job titles
// or CV section headers. Observed false positives; extended via config since
// the list is certainly incomplete.
var defaultDisallowedTokens = []string{
	"curriculum", "vitae", "resume", "cv",
	"experience", "education", "skills", "summary", "objective",
	"profile", "references", "certifications", "qualifications",
	"leadership", "management", "professional", "career",
	"engineer", "developer", "manager", "analyst", "officer",
	"accountant", "assistant", "consultant", "specialist",
	"team", "senior", "junior",
}

// placeholderDomains are addresses that cannot belong to a real applicant.
var placeholderDomains = []string{
	"example.com", "example.org", "test.com", "email.com",
	"mailinator.com", "tempmail.com", "guerrillamail.com",
	"yopmail.com", "sharklasers.com", "trashmail.com",
}

// Validator implements the validity predicate an extracted applicant must
// satisfy before anything downstream may proceed.
type Validator struct {
	disallowed map[string]struct{}
}

// NewValidator builds a Validator. extraDisallowed extends the built-in
// blacklist of name tokens.
func NewValidator(extraDisallowed []string) *Validator {
	disallowed := make(map[string]struct{}, len(defaultDisallowedTokens)+len(extraDisallowed))
	for _, tok := range defaultDisallowedTokens {
		disallowed[tok] = struct{}{}
	}
	for _, tok := range extraDisallowed {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok != "" {
			disallowed[tok] = struct{}{}
		}
	}
	return &Validator{disallowed: disallowed}
}

// Check returns nil when the applicant satisfies the predicate: a plausible
// name AND at least one usable contact detail.
func (v *Validator) Check(a *Applicant) error {
	if a == nil {
		return errors.New("applicant is nil")
	}

	if err := v.checkName(a.Name); err != nil {
		return err
	}

	emailOK := v.ValidEmail(a.Email)
	phoneOK := ValidPhone(a.Phone)
	if !emailOK && !phoneOK {
		return errors.New("no valid email or phone found")
	}

	return nil
}

// ValidName reports whether the candidate passes the name rules alone.
func (v *Validator) ValidName(name string) bool {
	return v.checkName(name) == nil
}

func (v *Validator) checkName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name is empty")
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("name longer than %d characters", maxNameLength)
	}

	tokens := strings.Fields(name)
	if len(tokens) < minNameTokens {
		return fmt.Errorf("name has fewer than %d tokens", minNameTokens)
	}
	if len(tokens) > maxNameTokens {
		return fmt.Errorf("name has more than %d tokens", maxNameTokens)
	}

	for _, tok := range tokens {
		if _, bad := v.disallowed[strings.ToLower(strings.Trim(tok, ".,"))]; bad {
			return fmt.Errorf("name contains disallowed token %q", tok)
		}
	}

	if !namePattern.MatchString(name) {
		return errors.New("name does not match the letters/hyphen/apostrophe pattern")
	}

	return nil
}

// ValidEmail reports whether the address matches a standard pattern and is
// not on the placeholder/disposable domain list.
func (v *Validator) ValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if !emailPattern.MatchString(email) {
		return false
	}

	at := strings.LastIndex(email, "@")
	domain := strings.ToLower(email[at+1:])
	for _, blocked := range placeholderDomains {
		if domain == blocked {
			return false
		}
	}

	return true
}

// ValidPhone reports whether the number matches a recognized pattern after
// stripping common separators.
func ValidPhone(phone string) bool {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))

	return phonePattern.MatchString(cleaned)
}
