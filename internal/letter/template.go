package letter

import (
	"fmt"
	"regexp"
	"strings"
)

// Signals are the coarse CV traits the fallback template interpolates.
type Signals struct {
	YearsOfExperience int
	EducationLevel    string
	Category          string
}

var yearsPattern = regexp.MustCompile(`(?i)\b([0-9]{1,2})\+?\s*(?:years?|yrs?)\b`)

// educationLevels in descending rank; the first keyword hit wins.
var educationLevels = []struct {
	level    string
	keywords []string
}{
	{"a doctorate degree", []string{"phd", "ph.d", "doctorate"}},
	{"a master's degree", []string{"msc", "m.sc", "mba", "master of", "master's"}},
	{"a bachelor's degree", []string{"bsc", "b.sc", "b.eng", "beng", "ba ", "bachelor"}},
	{"a higher national diploma", []string{"hnd", "higher national diploma"}},
	{"a diploma", []string{"ond", "nce", "diploma"}},
}

var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"finance and accounting", []string{"accountant", "accounting", "bookkeeping", "audit", "financial reporting"}},
	{"software and IT", []string{"software", "developer", "programming", "devops", "database"}},
	{"sales and marketing", []string{"sales", "marketing", "business development", "customer acquisition"}},
	{"administration and operations", []string{"administrative", "office management", "operations", "logistics"}},
	{"customer service", []string{"customer service", "customer support", "call center", "front desk"}},
	{"engineering", []string{"mechanical", "electrical", "civil engineering", "maintenance"}},
	{"healthcare", []string{"nurse", "clinical", "medical", "pharmacy"}},
	{"education", []string{"teacher", "teaching", "tutor", "lecturer"}},
}

// ExtractSignals derives template inputs from the raw document text. The
// extraction is deterministic for a given text.
func ExtractSignals(text string) Signals {
	lower := strings.ToLower(text)

	signals := Signals{Category: "my field"}

	if m := yearsPattern.FindStringSubmatch(text); len(m) > 1 {
		var years int
		fmt.Sscanf(m[1], "%d", &years)
		if years > 0 && years < 50 {
			signals.YearsOfExperience = years
		}
	}

	for _, edu := range educationLevels {
		for _, kw := range edu.keywords {
			if strings.Contains(lower, kw) {
				signals.EducationLevel = edu.level
				break
			}
		}
		if signals.EducationLevel != "" {
			break
		}
	}

	for _, cat := range categoryKeywords {
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				signals.Category = cat.category
				break
			}
		}
		if signals.Category != "my field" {
			break
		}
	}

	return signals
}

// RenderTemplate fills the fixed letter skeleton with the applicant's name,
// the posting details and the extracted CV signals.
func RenderTemplate(applicantName, title, company string, signals Signals) string {
	if strings.TrimSpace(applicantName) == "" {
		applicantName = "The Applicant"
	}

	experience := "relevant hands-on experience"
	if signals.YearsOfExperience > 0 {
		experience = fmt.Sprintf("%d years of experience", signals.YearsOfExperience)
	}

	education := ""
	if signals.EducationLevel != "" {
		education = fmt.Sprintf(" I hold %s, and", signals.EducationLevel)
	}

	return fmt.Sprintf(`Dear Hiring Manager,

I am writing to express my strong interest in the %s position at %s. With %s in %s, I am confident I can contribute to your team from day one.%s my background has equipped me with the practical skills your posting calls for.

I have attached my CV for your review and would welcome the opportunity to discuss how my experience aligns with your needs.

Thank you for your time and consideration.

Sincerely,
%s`, title, company, experience, signals.Category, education, applicantName)
}
