package extraction

import (
	"strings"
)

// Merge combines partial results from earlier strategies into one candidate.
// Field preference follows partial order (AI-derived fields before heuristic
// ones, matching cascade order), but only fields that pass the validity rules
// are preferred: an invalid AI name must not shadow a valid heuristic one.
// When no partial carried a usable name, one is derived from the local part
// of a found email address.
func Merge(v *Validator, partials []*Applicant) *Applicant {
	if len(partials) == 0 {
		return nil
	}
	if v == nil {
		v = NewValidator(nil)
	}

	merged := &Applicant{Source: SourceMerged, Confidence: 0.4}

	for _, p := range partials {
		if p == nil {
			continue
		}
		if merged.Name == "" && v.ValidName(p.Name) {
			merged.Name = strings.TrimSpace(p.Name)
		}
		if merged.Email == "" && v.ValidEmail(p.Email) {
			merged.Email = strings.TrimSpace(p.Email)
		}
		if merged.Phone == "" && ValidPhone(p.Phone) {
			merged.Phone = strings.TrimSpace(p.Phone)
		}
	}

	if merged.Name == "" && merged.Email != "" {
		merged.Name = nameFromEmail(merged.Email)
	}

	// Fill remaining blanks with the first non-empty raw values so the final
	// validity check rejects with a concrete reason instead of "empty".
	for _, p := range partials {
		if p == nil {
			continue
		}
		if merged.Name == "" && strings.TrimSpace(p.Name) != "" {
			merged.Name = strings.TrimSpace(p.Name)
		}
		if merged.Email == "" && strings.TrimSpace(p.Email) != "" {
			merged.Email = strings.TrimSpace(p.Email)
		}
		if merged.Phone == "" && strings.TrimSpace(p.Phone) != "" {
			merged.Phone = strings.TrimSpace(p.Phone)
		}
	}

	if merged.Name == "" && merged.Email == "" && merged.Phone == "" {
		return nil
	}

	return merged
}

// nameFromEmail turns "jane.okoro@mail.com" into "Jane Okoro". Digits are
// stripped; single-token local parts produce no name since the validity check
// requires at least two tokens.
func nameFromEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return ""
	}

	local := email[:at]
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		cleaned := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return -1
			}
			return r
		}, part)
		if cleaned == "" {
			continue
		}
		tokens = append(tokens, strings.ToUpper(cleaned[:1])+strings.ToLower(cleaned[1:]))
	}

	if len(tokens) < minNameTokens {
		return ""
	}

	return strings.Join(tokens, " ")
}
