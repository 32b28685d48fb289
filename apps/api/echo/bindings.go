package echoapi

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edumart/core"
	"github.com/trezcool/edumart/core/account"
	"github.com/trezcool/edumart/core/catalog"
	"github.com/trezcool/edumart/core/checkout"
	"github.com/trezcool/edumart/core/role"
)

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	// LoginResponse tells the client which dashboard to open.
	LoginResponse struct {
		Token     string           `json:"token"`
		State     role.State       `json:"state"`
		Notice    string           `json:"notice,omitempty"`
		Dashboard string           `json:"dashboard"`
		Account   *account.Account `json:"account,omitempty"`
	}

	ChooseRoleRequest struct {
		Choice string `json:"choice" validate:"required"`
	}

	RedirectResponse struct {
		Redirect string     `json:"redirect"`
		State    role.State `json:"state"`
	}

	CartResponse struct {
		Items      []catalog.Listing `json:"items"`
		Total      float64          `json:"total"`
		Commission float64          `json:"commission,omitempty"`
		// Removed lists cart packages deleted from the catalog since they were added.
		Removed []string `json:"removed,omitempty"`
	}

	CheckoutRequest struct {
		PaymentID string `json:"paymentId" validate:"notblank"`
	}

	CheckoutResponse struct {
		checkout.Result
		Message string `json:"message,omitempty"`
	}

	QuoteRequest struct {
		PackageIDs []string `json:"packageIds" validate:"required,min=1,dive,notblank"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (cr *ChooseRoleRequest) Validate(validate *validator.Validate) error {
	cr.Choice = core.CleanString(cr.Choice, true /* lower */)
	return validate.Struct(cr)
}

func (cr *CheckoutRequest) Validate(validate *validator.Validate) error {
	cr.PaymentID = core.CleanString(cr.PaymentID)
	return validate.Struct(cr)
}

func (qr *QuoteRequest) Validate(validate *validator.Validate) error {
	for i, id := range qr.PackageIDs {
		qr.PackageIDs[i] = core.CleanString(id)
	}
	return validate.Struct(qr)
}
