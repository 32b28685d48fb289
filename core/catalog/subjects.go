package catalog

import (
	"strings"
	"unicode"
)

// subjectSep joins the subjects of a combo package.
const subjectSep = "/"

// canonicalSubjects maps a subject key to its display form.
var canonicalSubjects = map[string]string{
	"science":          "Science",
	"maths":            "Maths",
	"math":             "Maths",
	"mathematics":      "Maths",
	"physics":          "Physics",
	"chemistry":        "Chemistry",
	"biology":          "Biology",
	"english":          "English",
	"hindi":            "Hindi",
	"sst":              "Social Science",
	"socialscience":    "Social Science",
	"socialstudies":    "Social Science",
	"computer":         "Computer Science",
	"computerscience":  "Computer Science",
	"cs":               "Computer Science",
	"accountancy":      "Accountancy",
	"accounts":         "Accountancy",
	"economics":        "Economics",
	"businessstudies":  "Business Studies",
	"evs":              "Environmental Studies",
	"generalknowledge": "General Knowledge",
	"gk":               "General Knowledge",
}

// SubjectKey is the comparison form of a subject: lower-cased with all whitespace removed.
func SubjectKey(s string) string {
	var b strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// NormalizeSubject returns the display form of a single subject token.
// Known subjects use their canonical spelling, anything else is title-cased.
func NormalizeSubject(s string) string {
	key := SubjectKey(s)
	if key == "" {
		return ""
	}
	if display, ok := canonicalSubjects[key]; ok {
		return display
	}
	return titleCase(s)
}

func SubjectsEqual(a, b string) bool {
	return SubjectKey(NormalizeSubject(a)) == SubjectKey(NormalizeSubject(b))
}

// SplitSubjects splits a slash-joined subject list, normalizing each token and
// dropping blanks and duplicates. Order of first appearance is kept.
func SplitSubjects(s string) []string {
	seen := make(map[string]bool)
	subjects := make([]string, 0)
	for _, tok := range strings.Split(s, subjectSep) {
		norm := NormalizeSubject(tok)
		key := SubjectKey(norm)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		subjects = append(subjects, norm)
	}
	return subjects
}

// JoinSubjects is the stored form of a combo's subjects.
func JoinSubjects(subjects []string) string {
	return strings.Join(SplitSubjects(strings.Join(subjects, subjectSep)), subjectSep)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
