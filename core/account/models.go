package account

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/edumart/core"
)

const (
	// Collection is the document collection holding accounts.
	Collection = "users"
	// UniqueIDField is the stored field of the unique id; backends keep it unique.
	UniqueIDField = "uniqueId"
)

type Role string

const (
	RoleStudent  Role = "student"
	RolePromoter Role = "promoter"
)

var Roles = []Role{RoleStudent, RolePromoter}

func ParseRole(s string) (Role, bool) {
	r := Role(core.CleanString(s, true /* lower */))
	for _, role := range Roles {
		if r == role {
			return r, true
		}
	}
	return "", false
}

type Account struct {
	ID       string `json:"id"`       // issued by the identity provider
	UniqueID string `json:"uniqueId"` // issued by the allocator, never changes
	// UniqueIDDegraded flags an identifier issued while the counter was unavailable.
	UniqueIDDegraded bool      `json:"uniqueIdDegraded,omitempty"`
	DisplayName      string    `json:"displayName"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	Role             Role      `json:"role"`
	AlsoPromoter     bool      `json:"alsoPromoter"`
	PromoterApproved bool      `json:"promoterApproved"`
	ReferralID       string    `json:"referralId,omitempty"` // UniqueID of the referring promoter
	BusinessArea     string    `json:"businessArea,omitempty"`
	ClassGrade       string    `json:"classGrade,omitempty"`
	Syllabus         string    `json:"syllabus,omitempty"`
	CreatedAt        time.Time `json:"createdAt"` // UTC
	UpdatedAt        time.Time `json:"updatedAt"` // UTC
}

// IsPromoterEligible reports whether the account may ever reach the promoter dashboard.
func (a Account) IsPromoterEligible() bool {
	return a.Role == RolePromoter || a.AlsoPromoter
}

// PendingApproval reports whether the account waits for an admin to approve it as a promoter.
func (a Account) PendingApproval() bool {
	return a.IsPromoterEligible() && !a.PromoterApproved
}

func (a Account) LogPerson() (id, username, email string) {
	return a.ID, a.UniqueID, a.Email
}

func (a Account) ToDocument() core.Document {
	doc := core.Document{
		UniqueIDField:      a.UniqueID,
		"uniqueIdDegraded": a.UniqueIDDegraded,
		"displayName":      a.DisplayName,
		"email":            a.Email,
		"phone":            a.Phone,
		"role":             string(a.Role),
		"alsoPromoter":     a.AlsoPromoter,
		"promoterApproved": a.PromoterApproved,
		"referralId":       nil,
		"businessArea":     a.BusinessArea,
		"classGrade":       a.ClassGrade,
		"syllabus":         a.Syllabus,
		"createdAt":        a.CreatedAt.UTC(),
		"updatedAt":        a.UpdatedAt.UTC(),
	}
	if a.ReferralID != "" {
		doc["referralId"] = a.ReferralID
	}
	return doc
}

// FromDocument coerces a stored document into an Account.
// Records without a unique id, an email or a known role are malformed.
func FromDocument(doc core.Document) (Account, error) {
	a := Account{
		ID:               doc.ID(),
		UniqueID:         core.CleanString(doc.GetString(UniqueIDField)),
		UniqueIDDegraded: doc.GetBool("uniqueIdDegraded"),
		DisplayName:      core.CleanString(doc.GetString("displayName")),
		Email:            core.CleanString(doc.GetString("email"), true /* lower */),
		Phone:            core.CleanString(doc.GetString("phone")),
		AlsoPromoter:     doc.GetBool("alsoPromoter"),
		PromoterApproved: doc.GetBool("promoterApproved"),
		ReferralID:       core.CleanString(doc.GetString("referralId")),
		BusinessArea:     core.CleanString(doc.GetString("businessArea")),
		ClassGrade:       core.CleanString(doc.GetString("classGrade")),
		Syllabus:         core.CleanString(doc.GetString("syllabus")),
		CreatedAt:        doc.GetTime("createdAt"),
		UpdatedAt:        doc.GetTime("updatedAt"),
	}

	role, ok := ParseRole(doc.GetString("role"))
	switch {
	case !ok:
		return Account{}, errors.Wrapf(core.ErrMalformedRecord, "account %q: role %q", a.ID, doc.GetString("role"))
	case a.ID == "", a.UniqueID == "", a.Email == "":
		return Account{}, errors.Wrapf(core.ErrMalformedRecord, "account %q: missing id, uniqueId or email", a.ID)
	}
	a.Role = role
	return a, nil
}

// NewAccount contains information needed to register an Account.
type NewAccount struct {
	DisplayName     string `json:"displayName" validate:"notblank"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
	Phone           string `json:"phone" validate:"required,phone"`
	Role            Role   `json:"role" validate:"required,role"`
	ReferralID      string `json:"referralId" validate:"omitempty,alphanum"`
	BusinessArea    string `json:"businessArea"`
	ClassGrade      string `json:"classGrade"`
	Syllabus        string `json:"syllabus"`
}

func (na *NewAccount) Validate(validate *validator.Validate) error {
	na.DisplayName = core.CleanString(na.DisplayName)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Phone = cleanPhone(na.Phone)
	na.Role = Role(core.CleanString(string(na.Role), true /* lower */))
	na.ReferralID = core.CleanString(na.ReferralID)
	na.BusinessArea = core.CleanString(na.BusinessArea)
	na.ClassGrade = core.CleanString(na.ClassGrade)
	na.Syllabus = core.CleanString(na.Syllabus)
	return validate.Struct(na)
}

// UpdateAccount defines the self-service profile fields; empty fields are left unchanged.
// uniqueId, role and promoterApproved can never be changed here.
type UpdateAccount struct {
	DisplayName  string `json:"displayName"`
	Phone        string `json:"phone" validate:"omitempty,phone"`
	BusinessArea string `json:"businessArea"`
	ClassGrade   string `json:"classGrade"`
	Syllabus     string `json:"syllabus"`
}

func (ua *UpdateAccount) Validate(validate *validator.Validate) error {
	ua.DisplayName = core.CleanString(ua.DisplayName)
	ua.Phone = cleanPhone(ua.Phone)
	ua.BusinessArea = core.CleanString(ua.BusinessArea)
	ua.ClassGrade = core.CleanString(ua.ClassGrade)
	ua.Syllabus = core.CleanString(ua.Syllabus)
	return validate.Struct(ua)
}

func (ua UpdateAccount) IsEmpty() bool {
	return ua == UpdateAccount{}
}

type QueryFilter struct {
	Role            Role   `query:"role"`
	PendingApproval bool   `query:"pending"`
	ReferralID      string `query:"referralId"`
}

func (qf *QueryFilter) Clean() {
	qf.Role = Role(core.CleanString(string(qf.Role), true /* lower */))
	qf.ReferralID = core.CleanString(qf.ReferralID)
}

// Matches applies the filters that cannot be pushed down to the repository.
func (qf QueryFilter) Matches(a Account) bool {
	if qf.PendingApproval && !a.PendingApproval() {
		return false
	}
	return true
}
