package checkout

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Facets of a purchase, in write order. FacetPackage marks a paid package that could not be
// loaded, so neither record was attempted.
const (
	FacetPackage = "package"
	FacetLedger  = "ledger"
	FacetReport  = "report"
)

// Failure is one purchase record that could not be written after the payment was captured.
type Failure struct {
	PackageID string `json:"packageId"`
	Facet     string `json:"facet"`
	Err       error  `json:"-"`
}

// PartialFailureError reports records missing for a payment that did succeed.
// It must never be presented as a failed payment.
type PartialFailureError struct {
	PaymentID string
	Failures  []Failure
}

func (err *PartialFailureError) Error() string {
	parts := make([]string, 0, len(err.Failures))
	for _, f := range err.Failures {
		parts = append(parts, fmt.Sprintf("%s/%s: %v", f.PackageID, f.Facet, f.Err))
	}
	return fmt.Sprintf("payment %s captured but %d purchase record(s) were not saved (%s)",
		err.PaymentID, len(err.Failures), strings.Join(parts, "; "))
}

// SupportMessage is what the student is told to do.
func (err *PartialFailureError) SupportMessage() string {
	return fmt.Sprintf(
		"Your payment was received but part of your purchase could not be saved. "+
			"Do not pay again: contact support with your payment id %s.", err.PaymentID)
}

func IsPartialFailure(err error) bool {
	_, ok := errors.Cause(err).(*PartialFailureError)
	return ok
}
