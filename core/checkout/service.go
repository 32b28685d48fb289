// Package checkout records paid purchases and tracks the settlement of promoter commissions.
package checkout

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/edumart/core"
	"github.com/trezcool/edumart/core/catalog"
	"github.com/trezcool/edumart/core/metrics"
	"github.com/trezcool/edumart/core/pricing"
)

var (
	ErrEmptySelection = errors.New("select at least one package")
	ErrNoPayment      = errors.New("payment id is required")
	ErrNoStudent      = errors.New("student id is required")
)

type (
	Repository interface {
		CreatePurchase(ctx context.Context, p Purchase) error
		CreateReport(ctx context.Context, r Report) error
		// GetPurchase and GetReport return ErrNotFound when there is no match.
		GetPurchase(ctx context.Context, id string) (Purchase, error)
		GetReport(ctx context.Context, id string) (Report, error)
		QueryPurchases(ctx context.Context, filter QueryFilter) ([]Purchase, error)
		QueryReports(ctx context.Context, studentID string) ([]Report, error)
		// SettlePurchase atomically marks a purchase Settled; changed is false if it already was.
		SettlePurchase(ctx context.Context, id string, at time.Time) (p Purchase, changed bool, err error)
	}

	// Checkout is one successful payment callback for a cart.
	Checkout struct {
		StudentID string
		// PromoterID is the referral id captured at the student's registration.
		PromoterID       string
		PromoterApproved bool
		PaymentID        string
		Packages         []catalog.Package // cart order
		// Unresolved are paid cart entries whose package could not be loaded.
		Unresolved []catalog.Unresolved
	}

	Result struct {
		PaymentID string     `json:"paymentId"`
		Recorded  []Purchase `json:"recorded"`
		Failures  []Failure  `json:"failures,omitempty"`
	}

	Earnings struct {
		PromoterID string  `json:"promoterId"`
		Sales      int     `json:"sales"`
		Pending    float64 `json:"pending"`
		Settled    float64 `json:"settled"`
		Total      float64 `json:"total"`
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		log     core.Logger
		conf    *core.Config
		metrics *metrics.Metrics
	}
)

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger, conf *core.Config, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		log:     logger,
		conf:    conf,
		metrics: m,
	}
}

func (co *Checkout) validate() error {
	co.StudentID = core.CleanString(co.StudentID)
	co.PaymentID = core.CleanString(co.PaymentID)
	co.PromoterID = core.CleanString(co.PromoterID)

	var flds []core.FieldError
	if co.StudentID == "" {
		flds = append(flds, core.FieldError{Field: "studentId", Error: ErrNoStudent.Error()})
	}
	if co.PaymentID == "" {
		flds = append(flds, core.FieldError{Field: "paymentId", Error: ErrNoPayment.Error()})
	}
	if len(co.Packages) == 0 && len(co.Unresolved) == 0 {
		flds = append(flds, core.FieldError{Field: "packages", Error: ErrEmptySelection.Error()})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

// Record writes, for each package in cart order, the ledger facet and then the student-facing
// facet of its purchase. Packages are independent: a failed write never undoes another one.
// Unresolved packages are reported as failures without any write.
// When anything failed, the returned error is a *PartialFailureError and Result still lists
// what was recorded. Repeated callbacks for the same payment id are not deduplicated.
func (svc *Service) Record(ctx context.Context, co Checkout) (Result, error) {
	if err := co.validate(); err != nil {
		return Result{}, err
	}

	now := time.Now().UTC()
	res := Result{PaymentID: co.PaymentID, Recorded: make([]Purchase, 0, len(co.Packages))}
	for _, u := range co.Unresolved {
		res.Failures = append(res.Failures, Failure{PackageID: u.ID, Facet: FacetPackage, Err: u.Err})
	}

	for _, pkg := range co.Packages {
		p := Purchase{
			ID:               uuid.NewString(),
			StudentID:        co.StudentID,
			PackageID:        pkg.ID,
			PackageName:      pkg.PackageName,
			Subject:          pkg.Subject,
			Amount:           pkg.DisplayPrice(),
			PaymentID:        co.PaymentID,
			PromoterID:       co.PromoterID,
			SettlementStatus: SettlementPending,
			CreatedAt:        now,
		}
		if co.PromoterID != "" {
			p.Commission = pricing.Amount(pricing.CommissionOnSale(pkg.Terms()))
		}

		err := svc.repo.CreatePurchase(ctx, p)
		svc.metrics.CheckoutWrite(FacetLedger, err)
		if err != nil {
			res.Failures = append(res.Failures, Failure{PackageID: pkg.ID, Facet: FacetLedger, Err: err})
			continue
		}
		res.Recorded = append(res.Recorded, p)

		err = svc.repo.CreateReport(ctx, Report{
			ID:               p.ID,
			StudentID:        p.StudentID,
			PackageID:        p.PackageID,
			PackageName:      p.PackageName,
			Subject:          p.Subject,
			Amount:           p.Amount,
			PaymentID:        p.PaymentID,
			PaymentStatus:    PaymentPaid,
			PaymentDate:      now,
			PromoterApproved: co.PromoterApproved,
		})
		svc.metrics.CheckoutWrite(FacetReport, err)
		if err != nil {
			res.Failures = append(res.Failures, Failure{PackageID: pkg.ID, Facet: FacetReport, Err: err})
		}
	}

	if len(res.Failures) == 0 {
		return res, nil
	}
	pfErr := &PartialFailureError{PaymentID: co.PaymentID, Failures: res.Failures}
	svc.log.Error("purchase records missing for a captured payment", pfErr, map[string]interface{}{
		"paymentId": co.PaymentID,
		"studentId": co.StudentID,
		"failed":    len(res.Failures),
		"recorded":  len(res.Recorded),
	})
	svc.mailSvc.SendMessages(svc.supportMessage(co, pfErr))
	return res, pfErr
}

func (svc *Service) supportMessage(co Checkout, pfErr *PartialFailureError) *core.EmailMessage {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "Payment %s of student %s was captured but these records were not saved:\n\n",
		co.PaymentID, co.StudentID)
	for _, f := range pfErr.Failures {
		_, _ = fmt.Fprintf(&b, "- package %s, %s record: %v\n", f.PackageID, f.Facet, f.Err)
	}
	return &core.EmailMessage{
		To:          []mail.Address{svc.conf.SupportEmail},
		Subject:     "Purchase records missing for payment " + co.PaymentID,
		TextContent: b.String(),
	}
}

func (svc *Service) Get(ctx context.Context, id string) (Purchase, error) {
	return svc.repo.GetPurchase(ctx, id)
}

func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]Purchase, error) {
	filter.Clean()
	return svc.repo.QueryPurchases(ctx, filter)
}

// ListByStudent returns the student-facing records of a student.
func (svc *Service) ListByStudent(ctx context.Context, studentID string) ([]Report, error) {
	return svc.repo.QueryReports(ctx, studentID)
}

// ListByPromoter returns the ledger entries referred by a promoter.
func (svc *Service) ListByPromoter(ctx context.Context, promoterUniqueID string) ([]Purchase, error) {
	if promoterUniqueID == "" {
		return []Purchase{}, nil
	}
	return svc.repo.QueryPurchases(ctx, QueryFilter{PromoterID: promoterUniqueID})
}

func (svc *Service) PromoterEarnings(ctx context.Context, promoterUniqueID string) (Earnings, error) {
	purchases, err := svc.ListByPromoter(ctx, promoterUniqueID)
	if err != nil {
		return Earnings{}, err
	}
	pending, settled := decimal.Zero, decimal.Zero
	for _, p := range purchases {
		c := decimal.NewFromFloat(p.Commission)
		if p.IsSettled() {
			settled = settled.Add(c)
		} else {
			pending = pending.Add(c)
		}
	}
	return Earnings{
		PromoterID: promoterUniqueID,
		Sales:      len(purchases),
		Pending:    pricing.Amount(pending),
		Settled:    pricing.Amount(settled),
		Total:      pricing.Amount(pending.Add(settled)),
	}, nil
}

// Settle marks the commission of a purchase as paid out. Settling twice changes nothing.
func (svc *Service) Settle(ctx context.Context, id string) (Purchase, error) {
	p, changed, err := svc.repo.SettlePurchase(ctx, id, time.Now().UTC())
	if err != nil {
		return Purchase{}, err
	}
	if changed {
		svc.log.Info("purchase settled", map[string]interface{}{"id": p.ID, "promoterId": p.PromoterID, "commission": p.Commission})
	}
	return p, nil
}

// FindOrphans lists the ledger entries without a student-facing twin. It does not repair them.
func (svc *Service) FindOrphans(ctx context.Context) ([]Purchase, error) {
	purchases, err := svc.repo.QueryPurchases(ctx, QueryFilter{})
	if err != nil {
		return nil, err
	}
	orphans := make([]Purchase, 0)
	for _, p := range purchases {
		_, err := svc.repo.GetReport(ctx, p.ID)
		switch {
		case errors.Is(err, ErrNotFound):
			orphans = append(orphans, p)
		case err != nil:
			return nil, errors.Wrap(err, "looking up report")
		}
	}
	return orphans, nil
}
