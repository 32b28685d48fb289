package catalog

import (
	"sort"
	"strings"
)

// Level is a step of the browsing filter chain:
// classGrade → syllabus → packageType → packageName → [subject → subtopic → chapter].
// Syllabus is skipped for the Professional class grade; the bracketed levels only apply
// to Concept Based packages.
type Level int

const (
	LevelClassGrade Level = iota
	LevelSyllabus
	LevelPackageType
	LevelPackageName
	LevelSubject
	LevelSubtopic
	LevelChapter
)

var levelNames = [...]string{"classGrade", "syllabus", "packageType", "packageName", "subject", "subtopic", "chapter"}

// Levels lists every level in chain order.
var Levels = []Level{LevelClassGrade, LevelSyllabus, LevelPackageType, LevelPackageName, LevelSubject, LevelSubtopic, LevelChapter}

func (l Level) String() string {
	if l < LevelClassGrade || l > LevelChapter {
		return ""
	}
	return levelNames[l]
}

func ParseLevel(s string) (Level, bool) {
	for i, name := range levelNames {
		if name == s {
			return Level(i), true
		}
	}
	return 0, false
}

// vocabulary returns the closed vocabulary of l, or nil if its values are data-driven.
func (l Level) vocabulary() []string {
	switch l {
	case LevelClassGrade:
		return ClassGrades
	case LevelSyllabus:
		return Syllabi
	case LevelPackageType:
		return PackageTypes
	case LevelPackageName:
		return PackageNames
	}
	return nil
}

// Filter holds the selected value of each level; "" means not selected.
type Filter struct {
	ClassGrade  string `json:"classGrade,omitempty" query:"classGrade"`
	Syllabus    string `json:"syllabus,omitempty" query:"syllabus"`
	PackageType string `json:"packageType,omitempty" query:"packageType"`
	PackageName string `json:"packageName,omitempty" query:"packageName"`
	Subject     string `json:"subject,omitempty" query:"subject"`
	Subtopic    string `json:"subtopic,omitempty" query:"subtopic"`
	Chapter     string `json:"chapter,omitempty" query:"chapter"`
}

func (f *Filter) field(l Level) *string {
	switch l {
	case LevelClassGrade:
		return &f.ClassGrade
	case LevelSyllabus:
		return &f.Syllabus
	case LevelPackageType:
		return &f.PackageType
	case LevelPackageName:
		return &f.PackageName
	case LevelSubject:
		return &f.Subject
	case LevelSubtopic:
		return &f.Subtopic
	case LevelChapter:
		return &f.Chapter
	}
	return nil
}

func (f Filter) Get(l Level) string {
	if p := f.field(l); p != nil {
		return *p
	}
	return ""
}

// Set selects value at level l and resets every deeper level.
func (f Filter) Set(l Level, value string) Filter {
	p := f.field(l)
	if p == nil {
		return f
	}
	*p = cleanLevelValue(l, value)
	for _, deeper := range Levels[l+1:] {
		*f.field(deeper) = ""
	}
	return f
}

// Applies reports whether l is part of the chain given the values selected above it.
func (f Filter) Applies(l Level) bool {
	switch l {
	case LevelSyllabus:
		return f.ClassGrade != Professional
	case LevelSubject, LevelSubtopic, LevelChapter:
		return f.PackageName == NameConceptBased
	}
	return l >= LevelClassGrade && l <= LevelChapter
}

// Chain returns the levels that apply to f, in order.
func (f Filter) Chain() []Level {
	chain := make([]Level, 0, len(Levels))
	for _, l := range Levels {
		if f.Applies(l) {
			chain = append(chain, l)
		}
	}
	return chain
}

// Next returns the first level of the chain still to be selected.
func (f Filter) Next() (Level, bool) {
	for _, l := range f.Chain() {
		if f.Get(l) == "" {
			return l, true
		}
	}
	return 0, false
}

// Complete reports whether every level of the chain is selected.
func (f Filter) Complete() bool {
	_, pending := f.Next()
	return !pending
}

// Clean normalizes the selected values and drops anything selected below the first gap
// of the chain or on a level that does not apply.
func (f Filter) Clean() Filter {
	var clean Filter
	for _, l := range Levels {
		if !clean.Applies(l) {
			continue
		}
		v := cleanLevelValue(l, f.Get(l))
		if v == "" {
			break
		}
		*clean.field(l) = v
	}
	return clean
}

func cleanLevelValue(l Level, v string) string {
	switch l {
	case LevelSubject:
		return NormalizeSubject(v)
	default:
		if vocab := l.vocabulary(); vocab != nil {
			return canonical(vocab, v)
		}
		return strings.TrimSpace(v)
	}
}

// packageValues returns the values p holds at level l.
func packageValues(p Package, l Level) []string {
	switch l {
	case LevelClassGrade:
		return []string{p.ClassGrade}
	case LevelSyllabus:
		return []string{p.Syllabus}
	case LevelPackageType:
		return []string{p.PackageType}
	case LevelPackageName:
		return []string{p.PackageName}
	case LevelSubject:
		return p.Subjects()
	case LevelSubtopic:
		return []string{p.Subtopic}
	case LevelChapter:
		return []string{p.Chapter}
	}
	return nil
}

func valueKey(l Level, v string) string {
	if l == LevelSubject {
		return SubjectKey(NormalizeSubject(v))
	}
	return strings.ToLower(strings.TrimSpace(v))
}

func matchesLevel(p Package, l Level, want string) bool {
	key := valueKey(l, want)
	for _, v := range packageValues(p, l) {
		if valueKey(l, v) == key {
			return true
		}
	}
	return false
}

// matchesAbove reports whether p matches every selected level of f above l.
func (f Filter) matchesAbove(p Package, l Level) bool {
	for _, lvl := range f.Chain() {
		if lvl >= l {
			break
		}
		if v := f.Get(lvl); v != "" && !matchesLevel(p, lvl, v) {
			return false
		}
	}
	return true
}

// Matches reports whether p matches every selected level of f.
func (f Filter) Matches(p Package) bool {
	return f.matchesAbove(p, LevelChapter+1)
}

// Options returns the selectable values of level l. The class, syllabus, type and name
// levels offer their whole closed vocabulary, in vocabulary order. Deeper levels offer the
// distinct non-empty values, sorted, among the packages matching every level selected above l.
func Options(pkgs []Package, f Filter, l Level) []string {
	options := make([]string, 0)
	if !f.Applies(l) {
		return options
	}
	if vocab := l.vocabulary(); vocab != nil {
		return append(options, vocab...)
	}

	seen := make(map[string]bool)
	for _, p := range pkgs {
		if !f.matchesAbove(p, l) {
			continue
		}
		for _, v := range packageValues(p, l) {
			v = cleanLevelValue(l, v)
			key := valueKey(l, v)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			options = append(options, v)
		}
	}

	sort.Strings(options)
	return options
}

// Results returns the packages matching f; it is empty until every level of the chain is selected.
func Results(pkgs []Package, f Filter) []Package {
	results := make([]Package, 0)
	if !f.Complete() {
		return results
	}
	for _, p := range pkgs {
		if f.Matches(p) {
			results = append(results, p)
		}
	}
	return results
}
