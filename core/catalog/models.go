package catalog

import (
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/edumart/core"
	"github.com/trezcool/edumart/core/pricing"
)

// Collection is the document collection holding packages.
const Collection = "packages"

// Closed vocabularies of the top filter levels.
const (
	Professional = "Professional" // class grade without a syllabus

	SyllabusCBSE       = "CBSE"
	SyllabusICSE       = "ICSE"
	SyllabusStateBoard = "State Board"

	TypeRegular     = "Regular"
	TypeCrashCourse = "Crash Course"
	TypeTestSeries  = "Test Series"

	NameFullCourse   = "Full Course"
	NameCombo        = "Combo"
	NameConceptBased = "Concept Based"
)

var (
	ClassGrades  = []string{"6", "7", "8", "9", "10", "11", "12", Professional}
	Syllabi      = []string{SyllabusCBSE, SyllabusICSE, SyllabusStateBoard}
	PackageTypes = []string{TypeRegular, TypeCrashCourse, TypeTestSeries}
	PackageNames = []string{NameFullCourse, NameCombo, NameConceptBased}

	ErrNotFound = errors.New("package not found")
)

// Package is a sellable catalog entry.
type Package struct {
	ID                    string    `json:"id"`
	ClassGrade            string    `json:"classGrade"`
	Syllabus              string    `json:"syllabus,omitempty"`
	PackageType           string    `json:"packageType"`
	PackageName           string    `json:"packageName"`
	Subject               string    `json:"subject"`
	Subtopic              string    `json:"subtopic,omitempty"`
	Chapter               string    `json:"chapter,omitempty"`
	Concept               string    `json:"concept,omitempty"`
	Duration              float64   `json:"duration"` // hours
	Price                 float64   `json:"price"`
	RegularDiscountPct    float64   `json:"regularDiscountPct"`
	AdditionalDiscountPct float64   `json:"additionalDiscountPct"`
	TotalPayable          *float64  `json:"totalPayable"`
	CommissionPct         float64   `json:"commissionPct"`
	CourseDetails         string    `json:"courseDetails,omitempty"`
	Freebies              string    `json:"freebies,omitempty"`
	CreatedAt             time.Time `json:"createdAt"` // UTC
	UpdatedAt             time.Time `json:"updatedAt"` // UTC
}

func (p Package) Terms() pricing.Terms {
	return pricing.Terms{
		Price:                 p.Price,
		RegularDiscountPct:    p.RegularDiscountPct,
		AdditionalDiscountPct: p.AdditionalDiscountPct,
		TotalPayable:          p.TotalPayable,
		CommissionPct:         p.CommissionPct,
		Duration:              p.Duration,
	}
}

func (p Package) Item() pricing.Item {
	return pricing.Item{ID: p.ID, Terms: p.Terms()}
}

// DisplayPrice is the price every view shows and checkout charges.
func (p Package) DisplayPrice() float64 {
	return pricing.Amount(pricing.DisplayPrice(p.Terms()))
}

func (p Package) IsConceptBased() bool { return p.PackageName == NameConceptBased }
func (p Package) IsCombo() bool        { return p.PackageName == NameCombo }

// Subjects returns the package's subject tokens; a combo carries several.
func (p Package) Subjects() []string {
	if p.IsCombo() {
		return SplitSubjects(p.Subject)
	}
	if s := NormalizeSubject(p.Subject); s != "" {
		return []string{s}
	}
	return nil
}

// ToDocument is the stored form of p. totalPayable is always present.
func (p Package) ToDocument() core.Document {
	doc := core.Document{
		"classGrade":            p.ClassGrade,
		"syllabus":              p.Syllabus,
		"packageType":           p.PackageType,
		"packageName":           p.PackageName,
		"subject":               p.Subject,
		"subtopic":              p.Subtopic,
		"chapter":               p.Chapter,
		"concept":               p.Concept,
		"duration":              p.Duration,
		"price":                 p.Price,
		"regularDiscountPct":    p.RegularDiscountPct,
		"additionalDiscountPct": p.AdditionalDiscountPct,
		"commissionPct":         p.CommissionPct,
		"courseDetails":         p.CourseDetails,
		"freebies":              p.Freebies,
		"createdAt":             p.CreatedAt.UTC(),
		"updatedAt":             p.UpdatedAt.UTC(),
	}
	if p.TotalPayable != nil {
		doc["totalPayable"] = *p.TotalPayable
	} else {
		doc["totalPayable"] = pricing.Amount(pricing.ComputeTotalPayable(p.Price, p.RegularDiscountPct, p.AdditionalDiscountPct))
	}
	return doc
}

// FromDocument coerces a stored document into a Package.
// Vocabulary fields take their canonical spelling whatever casing they were stored with.
// Numbers may be stored as numbers or numeric strings; an unparsable or missing required
// field yields core.ErrMalformedRecord.
func FromDocument(doc core.Document) (Package, error) {
	malformed := func(field string) error {
		return errors.Wrapf(core.ErrMalformedRecord, "package %q: field %q", doc.ID(), field)
	}

	p := Package{
		ID:            doc.ID(),
		ClassGrade:    canonical(ClassGrades, doc.GetString("classGrade")),
		Syllabus:      canonical(Syllabi, doc.GetString("syllabus")),
		PackageType:   canonical(PackageTypes, doc.GetString("packageType")),
		PackageName:   canonical(PackageNames, doc.GetString("packageName")),
		Subject:       core.CleanString(doc.GetString("subject")),
		Subtopic:      core.CleanString(doc.GetString("subtopic")),
		Chapter:       core.CleanString(doc.GetString("chapter")),
		Concept:       core.CleanString(doc.GetString("concept")),
		CourseDetails: doc.GetString("courseDetails"),
		Freebies:      doc.GetString("freebies"),
		CreatedAt:     doc.GetTime("createdAt"),
		UpdatedAt:     doc.GetTime("updatedAt"),
	}
	for field, val := range map[string]string{
		core.DocIDField: p.ID,
		"classGrade":    p.ClassGrade,
		"packageType":   p.PackageType,
		"packageName":   p.PackageName,
	} {
		if val == "" {
			return Package{}, malformed(field)
		}
	}

	numbers := []struct {
		field    string
		dst      *float64
		required bool
	}{
		{"price", &p.Price, true},
		{"duration", &p.Duration, false},
		{"regularDiscountPct", &p.RegularDiscountPct, false},
		{"additionalDiscountPct", &p.AdditionalDiscountPct, false},
		{"commissionPct", &p.CommissionPct, false},
	}
	for _, n := range numbers {
		if !doc.Has(n.field) || doc.GetString(n.field) == "" {
			if n.required {
				return Package{}, malformed(n.field)
			}
			continue
		}
		f, ok := doc.GetFloat(n.field)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return Package{}, malformed(n.field)
		}
		*n.dst = f
	}

	// an unusable stored total is treated as absent and recomputed at display
	if doc.Has("totalPayable") {
		if f, ok := doc.GetFloat("totalPayable"); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
			p.TotalPayable = &f
		}
	}

	if p.IsCombo() {
		p.Subject = JoinSubjects(SplitSubjects(p.Subject))
	} else {
		p.Subject = NormalizeSubject(p.Subject)
	}
	return p, nil
}

// NewPackage contains the information needed to create or replace a Package.
type NewPackage struct {
	ClassGrade            string  `json:"classGrade" validate:"required,classgrade"`
	Syllabus              string  `json:"syllabus" validate:"omitempty,syllabus"`
	PackageType           string  `json:"packageType" validate:"required,pkgtype"`
	PackageName           string  `json:"packageName" validate:"required,pkgname"`
	Subject               string  `json:"subject" validate:"notblank"`
	Subtopic              string  `json:"subtopic"`
	Chapter               string  `json:"chapter"`
	Concept               string  `json:"concept"`
	Duration              float64 `json:"duration" validate:"gte=0"`
	Price                 float64 `json:"price" validate:"gte=0"`
	RegularDiscountPct    float64 `json:"regularDiscountPct" validate:"pct"`
	AdditionalDiscountPct float64 `json:"additionalDiscountPct" validate:"pct"`
	CommissionPct         float64 `json:"commissionPct" validate:"pct"`
	CourseDetails         string  `json:"courseDetails"`
	Freebies              string  `json:"freebies"`
}

// Clean trims every text field and normalizes vocabulary casing and subjects.
func (np *NewPackage) Clean() {
	np.ClassGrade = canonical(ClassGrades, np.ClassGrade)
	np.Syllabus = canonical(Syllabi, np.Syllabus)
	np.PackageType = canonical(PackageTypes, np.PackageType)
	np.PackageName = canonical(PackageNames, np.PackageName)
	if np.PackageName == NameCombo {
		np.Subject = JoinSubjects(SplitSubjects(np.Subject))
	} else {
		np.Subject = NormalizeSubject(np.Subject)
	}
	np.Subtopic = core.CleanString(np.Subtopic)
	np.Chapter = core.CleanString(np.Chapter)
	np.Concept = core.CleanString(np.Concept)
	np.CourseDetails = strings.TrimSpace(np.CourseDetails)
	np.Freebies = strings.TrimSpace(np.Freebies)
	if np.ClassGrade == Professional {
		np.Syllabus = ""
	}
}

func (np *NewPackage) Validate(validate *validator.Validate) error {
	np.Clean()
	return validate.Struct(np)
}

// canonical returns the vocabulary spelling of val, compared case-insensitively; unknown values
// are returned cleaned but otherwise untouched (validation rejects them).
func canonical(vocab []string, val string) string {
	val = core.CleanString(val)
	for _, v := range vocab {
		if strings.EqualFold(v, val) {
			return v
		}
	}
	return val
}

func inVocabulary(vocab []string, val string) bool {
	for _, v := range vocab {
		if v == val {
			return true
		}
	}
	return false
}

// QueryFilter narrows List; empty fields match everything.
type QueryFilter struct {
	ClassGrade  string `query:"classGrade"`
	Syllabus    string `query:"syllabus"`
	PackageType string `query:"packageType"`
	PackageName string `query:"packageName"`
}

func (qf *QueryFilter) Clean() {
	qf.ClassGrade = canonical(ClassGrades, qf.ClassGrade)
	qf.Syllabus = canonical(Syllabi, qf.Syllabus)
	qf.PackageType = canonical(PackageTypes, qf.PackageType)
	qf.PackageName = canonical(PackageNames, qf.PackageName)
}

// Matches reports whether p has every non-empty field of qf, compared case-insensitively.
func (qf QueryFilter) Matches(p Package) bool {
	for _, f := range [...]struct{ want, got string }{
		{qf.ClassGrade, p.ClassGrade},
		{qf.Syllabus, p.Syllabus},
		{qf.PackageType, p.PackageType},
		{qf.PackageName, p.PackageName},
	} {
		if f.want != "" && !strings.EqualFold(core.CleanString(f.want), f.got) {
			return false
		}
	}
	return true
}
