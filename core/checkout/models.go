package checkout

import (
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edumart/core"
)

// Collections of the two facets of a purchase. A report shares its purchase's id.
const (
	LedgerCollection = "purchases"
	ReportCollection = "studentReports"
)

type SettlementStatus string

const (
	SettlementPending SettlementStatus = "Pending" // paid, commission not yet paid out
	SettlementSettled SettlementStatus = "Settled"
)

const PaymentPaid = "Paid"

var ErrNotFound = errors.New("purchase not found")

// Purchase is the ledger facet of one purchased package.
type Purchase struct {
	ID               string           `json:"id"`
	StudentID        string           `json:"studentId"`
	PackageID        string           `json:"packageId"`
	PackageName      string           `json:"packageName"`
	Subject          string           `json:"subject"`
	Amount           float64          `json:"amount"`
	Commission       float64          `json:"commission"`
	PaymentID        string           `json:"paymentId"`
	PromoterID       string           `json:"promoterId,omitempty"` // UniqueID of the referring promoter
	SettlementStatus SettlementStatus `json:"settlementStatus"`
	CreatedAt        time.Time        `json:"createdAt"` // UTC
	SettledAt        *time.Time       `json:"settledAt,omitempty"`
}

// Report is the student-facing facet of a Purchase.
type Report struct {
	ID               string    `json:"id"`
	StudentID        string    `json:"studentId"`
	PackageID        string    `json:"packageId"`
	PackageName      string    `json:"packageName"`
	Subject          string    `json:"subject"`
	Amount           float64   `json:"amount"`
	PaymentID        string    `json:"paymentId"`
	PaymentStatus    string    `json:"paymentStatus"`
	PaymentDate      time.Time `json:"paymentDate"`
	PromoterApproved bool      `json:"promoterApproved"`
}

func (p Purchase) IsSettled() bool { return p.SettlementStatus == SettlementSettled }

func (p Purchase) ToDocument() core.Document {
	doc := core.Document{
		"studentId":        p.StudentID,
		"packageId":        p.PackageID,
		"packageName":      p.PackageName,
		"subject":          p.Subject,
		"amount":           p.Amount,
		"commission":       p.Commission,
		"paymentId":        p.PaymentID,
		"promoterId":       nil,
		"settlementStatus": string(p.SettlementStatus),
		"createdAt":        p.CreatedAt.UTC(),
	}
	if p.PromoterID != "" {
		doc["promoterId"] = p.PromoterID
	}
	if p.SettledAt != nil {
		doc["settledAt"] = p.SettledAt.UTC()
	}
	return doc
}

func PurchaseFromDocument(doc core.Document) (Purchase, error) {
	p := Purchase{
		ID:          doc.ID(),
		StudentID:   doc.GetString("studentId"),
		PackageID:   doc.GetString("packageId"),
		PackageName: doc.GetString("packageName"),
		Subject:     doc.GetString("subject"),
		PaymentID:   doc.GetString("paymentId"),
		PromoterID:  doc.GetString("promoterId"),
		CreatedAt:   doc.GetTime("createdAt"),
	}
	var ok bool
	if p.Amount, ok = doc.GetFloat("amount"); !ok {
		return Purchase{}, errors.Wrapf(core.ErrMalformedRecord, "purchase %q: amount", p.ID)
	}
	p.Commission, _ = doc.GetFloat("commission")

	switch status := SettlementStatus(doc.GetString("settlementStatus")); status {
	case SettlementPending, SettlementSettled:
		p.SettlementStatus = status
	case "":
		p.SettlementStatus = SettlementPending
	default:
		return Purchase{}, errors.Wrapf(core.ErrMalformedRecord, "purchase %q: settlementStatus %q", p.ID, status)
	}
	if t := doc.GetTime("settledAt"); !t.IsZero() {
		p.SettledAt = &t
	}
	if p.ID == "" || p.PaymentID == "" || p.StudentID == "" {
		return Purchase{}, errors.Wrapf(core.ErrMalformedRecord, "purchase %q: missing id, paymentId or studentId", p.ID)
	}
	return p, nil
}

func (r Report) ToDocument() core.Document {
	return core.Document{
		"studentId":        r.StudentID,
		"packageId":        r.PackageID,
		"packageName":      r.PackageName,
		"subject":          r.Subject,
		"amount":           r.Amount,
		"paymentId":        r.PaymentID,
		"paymentStatus":    r.PaymentStatus,
		"paymentDate":      r.PaymentDate.UTC(),
		"promoterApproved": r.PromoterApproved,
	}
}

func ReportFromDocument(doc core.Document) (Report, error) {
	r := Report{
		ID:               doc.ID(),
		StudentID:        doc.GetString("studentId"),
		PackageID:        doc.GetString("packageId"),
		PackageName:      doc.GetString("packageName"),
		Subject:          doc.GetString("subject"),
		PaymentID:        doc.GetString("paymentId"),
		PaymentStatus:    doc.GetString("paymentStatus"),
		PaymentDate:      doc.GetTime("paymentDate"),
		PromoterApproved: doc.GetBool("promoterApproved"),
	}
	var ok bool
	if r.Amount, ok = doc.GetFloat("amount"); !ok || r.ID == "" || r.PaymentID == "" {
		return Report{}, errors.Wrapf(core.ErrMalformedRecord, "report %q", r.ID)
	}
	return r, nil
}

// QueryFilter filters the ledger; empty fields match everything.
type QueryFilter struct {
	StudentID        string           `query:"studentId"`
	PromoterID       string           `query:"promoterId"`
	PaymentID        string           `query:"paymentId"`
	SettlementStatus SettlementStatus `query:"status"`
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.PromoterID = core.CleanString(qf.PromoterID)
	qf.PaymentID = core.CleanString(qf.PaymentID)
	switch s := SettlementStatus(core.CleanString(string(qf.SettlementStatus), true /* lower */)); s {
	case "pending":
		qf.SettlementStatus = SettlementPending
	case "settled":
		qf.SettlementStatus = SettlementSettled
	default:
		qf.SettlementStatus = ""
	}
}
