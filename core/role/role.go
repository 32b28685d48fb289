// Package role decides, at sign-in, which dashboard a principal may reach.
package role

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/edumart/core"
	"github.com/trezcool/edumart/core/account"
)

type State string

const (
	Unauthenticated State = "unauthenticated"
	Admin           State = "admin"
	Student         State = "student"
	// PromoterPendingApproval is never routed to; it collapses into Student with NoticePromoterPending.
	PromoterPendingApproval State = "promoterPendingApproval"
	PromoterApproved        State = "promoterApproved"
	DualRolePendingChoice   State = "dualRolePendingChoice"
)

var States = []State{Unauthenticated, Admin, Student, PromoterPendingApproval, PromoterApproved, DualRolePendingChoice}

type Choice string

const (
	ChooseStudent  Choice = "student"
	ChoosePromoter Choice = "promoter"
)

const NoticePromoterPending = "Your promoter access is pending admin approval. You can use the student dashboard meanwhile."

var (
	ErrInvalidTransition = errors.New("no role choice is pending")
	ErrInvalidChoice     = errors.New("choice must be one of: student, promoter")
)

// Decision is where a principal is routed, with an optional notice to display.
type Decision struct {
	State  State  `json:"state"`
	Notice string `json:"notice,omitempty"`
}

func ParseState(s string) (State, bool) {
	for _, st := range States {
		if State(s) == st {
			return st, true
		}
	}
	return "", false
}

func ParseChoice(s string) (Choice, bool) {
	switch c := Choice(core.CleanString(s, true /* lower */)); c {
	case ChooseStudent, ChoosePromoter:
		return c, true
	}
	return "", false
}

// IsTerminal reports whether a session in state s has a dashboard.
func (s State) IsTerminal() bool {
	return s == Admin || s == Student || s == PromoterApproved
}

// Resolve routes a signed-in identity. The admin identity wins over any account field.
// An unapproved promoter is always routed to Student.
func Resolve(identityUID string, acct account.Account, adminUID string) Decision {
	switch {
	case identityUID == "":
		return Decision{State: Unauthenticated}
	case adminUID != "" && identityUID == adminUID:
		return Decision{State: Admin}
	case acct.AlsoPromoter:
		if acct.PromoterApproved {
			return Decision{State: DualRolePendingChoice}
		}
		return Decision{State: Student, Notice: NoticePromoterPending}
	case acct.Role == account.RolePromoter:
		if acct.PromoterApproved {
			return Decision{State: PromoterApproved}
		}
		return Decision{State: Student, Notice: NoticePromoterPending}
	default:
		return Decision{State: Student}
	}
}

// Choose applies the explicit choice of a dual-role principal.
// Choosing Promoter reloads the account, since the approval may have changed since sign-in.
func Choose(ctx context.Context, current State, choice Choice, reload func(ctx context.Context) (account.Account, error)) (Decision, error) {
	if current != DualRolePendingChoice {
		return Decision{State: current}, ErrInvalidTransition
	}
	switch choice {
	case ChooseStudent:
		return Decision{State: Student}, nil
	case ChoosePromoter:
		acct, err := reload(ctx)
		if err != nil {
			return Decision{State: current}, errors.Wrap(err, "reloading account")
		}
		if acct.IsPromoterEligible() && acct.PromoterApproved {
			return Decision{State: PromoterApproved}, nil
		}
		return Decision{State: Student, Notice: NoticePromoterPending}, nil
	}
	return Decision{State: current}, core.NewValidationError(ErrInvalidChoice,
		core.FieldError{Field: "choice", Error: ErrInvalidChoice.Error()})
}

// Dashboard is the route of the view a state leads to.
func Dashboard(s State) string {
	switch s {
	case Admin:
		return "/admin"
	case Student, PromoterPendingApproval:
		return "/student"
	case PromoterApproved:
		return "/promoter"
	case DualRolePendingChoice:
		return "/choose-role"
	}
	return "/login"
}
