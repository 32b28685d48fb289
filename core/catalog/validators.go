package catalog

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edumart/core"
)

var (
	classGradeTag  = "classgrade"
	classGradeText = "unknown class grade"

	syllabusTag  = "syllabus"
	syllabusText = "unknown syllabus"

	pkgTypeTag  = "pkgtype"
	pkgTypeText = "unknown package type"

	pkgNameTag  = "pkgname"
	pkgNameText = "unknown package name"

	syllabusRequiredTag  = "syllabus_required"
	syllabusRequiredText = "a syllabus is required for this class grade"

	singleSubjectTag  = "single_subject"
	singleSubjectText = "only combo packages can have several subjects"

	conceptLevelTag  = "concept_level"
	conceptLevelText = "this field is required for concept based packages"
)

// InitValidators registers the catalog validations on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	vocabularies := map[string][]string{
		classGradeTag: ClassGrades,
		syllabusTag:   Syllabi,
		pkgTypeTag:    PackageTypes,
		pkgNameTag:    PackageNames,
	}
	for tag, vocab := range vocabularies {
		vocab := vocab
		_ = validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return inVocabulary(vocab, fl.Field().String())
		})
	}
	core.RegisterCustomTranslation(validate, translator, classGradeTag, classGradeText)
	core.RegisterCustomTranslation(validate, translator, syllabusTag, syllabusText)
	core.RegisterCustomTranslation(validate, translator, pkgTypeTag, pkgTypeText)
	core.RegisterCustomTranslation(validate, translator, pkgNameTag, pkgNameText)

	validate.RegisterStructValidation(packageStructValidation, NewPackage{})
	core.RegisterCustomTranslation(validate, translator, syllabusRequiredTag, syllabusRequiredText)
	core.RegisterCustomTranslation(validate, translator, singleSubjectTag, singleSubjectText)
	core.RegisterCustomTranslation(validate, translator, conceptLevelTag, conceptLevelText)
}

// packageStructValidation checks the fields whose rules depend on the class grade and package name.
func packageStructValidation(sl validator.StructLevel) {
	np, ok := sl.Current().Interface().(NewPackage)
	if !ok {
		return
	}
	if np.ClassGrade != Professional && np.ClassGrade != "" && np.Syllabus == "" {
		sl.ReportError(np.Syllabus, "syllabus", "Syllabus", syllabusRequiredTag, "")
	}
	if np.PackageName != NameCombo && len(SplitSubjects(np.Subject)) > 1 {
		sl.ReportError(np.Subject, "subject", "Subject", singleSubjectTag, "")
	}
	if np.PackageName == NameConceptBased {
		if np.Subtopic == "" {
			sl.ReportError(np.Subtopic, "subtopic", "Subtopic", conceptLevelTag, "")
		}
		if np.Chapter == "" {
			sl.ReportError(np.Chapter, "chapter", "Chapter", conceptLevelTag, "")
		}
	}
}
