package extraction

import (
	"context"
	"regexp"
	"strings"
)

const headLineLimit = 15

var (
	anyEmailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	anyPhonePattern = regexp.MustCompile(`(?:\+[0-9][0-9 ().-]{7,18}[0-9]|0[0-9][0-9 ().-]{8,12}[0-9])`)

	nameLabelPattern  = regexp.MustCompile(`(?im)^\s*(?:full\s+)?name\s*[:\-]\s*(.+)$`)
	emailLabelPattern = regexp.MustCompile(`(?im)^\s*e-?mail\s*[:\-]\s*(\S+)`)
	phoneLabelPattern = regexp.MustCompile(`(?im)^\s*(?:phone|mobile|tel(?:ephone)?)\s*[:\-]\s*([+0-9][0-9 ().-]*)`)

	capitalizedLine = regexp.MustCompile(`^\p{Lu}[\p{L}'.-]*(?: \p{Lu}[\p{L}'.-]*){1,3}$`)
)

// heuristicStrategy extracts identity fields with pattern matching only:
// labeled fields, contact-detail anchors and name-like capitalized lines near
// the document head. No network calls, bounded cost.
type heuristicStrategy struct {
	validator *Validator
}

// NewHeuristic creates the pattern-based extraction strategy.
func NewHeuristic(validator *Validator) Strategy {
	if validator == nil {
		validator = NewValidator(nil)
	}
	return &heuristicStrategy{validator: validator}
}

func (s *heuristicStrategy) Name() string { return "heuristic" }

func (s *heuristicStrategy) Extract(_ context.Context, in Input) (*Applicant, error) {
	text := in.Text

	applicant := &Applicant{
		Source:     SourceHeuristic,
		Confidence: 0.5,
		Email:      findEmail(text),
		Phone:      findPhone(text),
	}

	if m := nameLabelPattern.FindStringSubmatch(text); len(m) > 1 {
		candidate := strings.TrimSpace(m[1])
		if s.validator.ValidName(candidate) {
			applicant.Name = candidate
		}
	}

	if applicant.Name == "" {
		applicant.Name = s.nameFromHead(text)
	}

	if applicant.Name != "" && (applicant.Email != "" || applicant.Phone != "") {
		applicant.Confidence = 0.7
	}

	return applicant, nil
}

// nameFromHead scans the first lines of the document for a plausible
// two-to-four-word capitalized line.
func (s *heuristicStrategy) nameFromHead(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > headLineLimit {
		lines = lines[:headLineLimit]
	}

	for _, line := range lines {
		candidate := strings.TrimSpace(line)
		// Contact lines sometimes share the name line; cut at separators.
		if idx := strings.IndexAny(candidate, ",|•"); idx > 0 {
			candidate = strings.TrimSpace(candidate[:idx])
		}
		if candidate == "" || !capitalizedLine.MatchString(candidate) {
			continue
		}
		if s.validator.ValidName(candidate) {
			return candidate
		}
	}

	return ""
}

func findEmail(text string) string {
	if m := emailLabelPattern.FindStringSubmatch(text); len(m) > 1 {
		return strings.Trim(m[1], ".,;")
	}
	return anyEmailPattern.FindString(text)
}

func findPhone(text string) string {
	raw := ""
	if m := phoneLabelPattern.FindStringSubmatch(text); len(m) > 1 {
		raw = m[1]
	} else {
		raw = anyPhonePattern.FindString(text)
	}

	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	if !ValidPhone(cleaned) {
		return ""
	}
	return cleaned
}
