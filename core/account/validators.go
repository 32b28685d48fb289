package account

import (
	"regexp"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/edumart/core"
)

var (
	roleTag  = "role"
	roleText = "role must be one of: student, promoter"

	phoneTag   = "phone"
	phoneText  = "enter a valid phone number"
	phoneRegex = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

	businessAreaTag  = "business_area"
	businessAreaText = "promoters must provide their business area"

	phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

	// password policy, on top of the min length tag
	pwdMinLen = 8

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to your name or email"
)

// InitValidators registers the account validations on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)

	_ = validate.RegisterValidation(phoneTag, phoneValidation)
	core.RegisterCustomTranslation(validate, translator, phoneTag, phoneText)

	validate.RegisterStructValidation(newAccountStructValidation, NewAccount{})
	core.RegisterCustomTranslation(validate, translator, businessAreaTag, businessAreaText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
}

func cleanPhone(phone string) string {
	return phoneSeparators.Replace(strings.TrimSpace(phone))
}

func roleValidation(fl validator.FieldLevel) bool {
	_, ok := ParseRole(fl.Field().String())
	return ok
}

func phoneValidation(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(fl.Field().String())
}

// newAccountStructValidation requires promoters to tell where they operate
// and applies the password policy.
func newAccountStructValidation(sl validator.StructLevel) {
	na, ok := sl.Current().Interface().(NewAccount)
	if !ok {
		return
	}
	if na.Role == RolePromoter && na.BusinessArea == "" {
		sl.ReportError(na.BusinessArea, "businessArea", "BusinessArea", businessAreaTag, "")
	}
	if tag := passwordPolicy(na.Password, na.DisplayName, na.Email); tag != "" {
		sl.ReportError(na.Password, "password", "Password", tag, "")
	}
}

// passwordPolicy returns the tag of the first rule pwd breaks, or "".
// Passwords shorter than pwdMinLen are left to the min tag.
func passwordPolicy(pwd string, attrs ...string) string {
	if len(pwd) < pwdMinLen {
		return ""
	}

	digits := 0
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			return pwdNoSpaceTag
		}
		if unicode.IsDigit(char) {
			digits++
		}
	}
	if digits == len(pwd) {
		return pwdNotAllNumTag
	}

	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		if attr == "" {
			continue
		}
		m := difflib.NewMatcher(strings.Split(lpwd, ""), strings.Split(strings.ToLower(attr), ""))
		if m.QuickRatio() >= pwdMaxSim {
			return pwdAttrSimTag
		}
	}
	return ""
}
