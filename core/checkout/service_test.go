package checkout_test

import (
	"context"
	"net/mail"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edumart/core"
	"github.com/trezcool/edumart/core/catalog"
	"github.com/trezcool/edumart/core/checkout"
	emailsvc "github.com/trezcool/edumart/services/email"
	logsvc "github.com/trezcool/edumart/services/logger"
	inmemstore "github.com/trezcool/edumart/storage/docstore/inmem"
	docrepos "github.com/trezcool/edumart/storage/repos"
)

var testConf = &core.Config{
	AppName:          "Edumart",
	DefaultFromEmail: mail.Address{Name: "Edumart", Address: "noreply@edumart.test"},
	SupportEmail:     mail.Address{Name: "Edumart Support", Address: "support@edumart.test"},
}

type errorLogger struct {
	logsvc.NopLogger
	mu     sync.Mutex
	errors []string
}

func (l *errorLogger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

type env struct {
	svc    *checkout.Service
	store  *inmemstore.Store
	mail   *emailsvc.ConsoleService
	logger *errorLogger
}

func setup(t *testing.T) env {
	t.Helper()
	store := inmemstore.New(5)
	mailSvc := emailsvc.NewConsoleServiceMock(testConf)
	logger := new(errorLogger)
	repo := docrepos.NewPurchaseRepository(store, logsvc.NewNopLogger())
	return env{
		svc:    checkout.NewService(repo, mailSvc, logger, testConf, nil),
		store:  store,
		mail:   mailSvc,
		logger: logger,
	}
}

func fPtr(f float64) *float64 { return &f }

var (
	physics = catalog.Package{
		ID: "pkg-a", ClassGrade: "10", Syllabus: "CBSE", PackageType: "Regular", PackageName: "Full Course",
		Subject: "Physics", Price: 1000, RegularDiscountPct: 10, AdditionalDiscountPct: 5, CommissionPct: 10,
	}
	maths = catalog.Package{
		ID: "pkg-b", ClassGrade: "10", Syllabus: "CBSE", PackageType: "Regular", PackageName: "Full Course",
		Subject: "Maths", Price: 500, TotalPayable: fPtr(400), CommissionPct: 12.5,
	}
)

func TestService_Record(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	res, err := e.svc.Record(ctx, checkout.Checkout{
		StudentID:        "student-1",
		PromoterID:       "ISPPRA001",
		PromoterApproved: true,
		PaymentID:        "pay_123",
		Packages:         []catalog.Package{physics, maths},
	})
	require.NoError(t, err)
	require.Len(t, res.Recorded, 2)
	assert.Empty(t, res.Failures)

	for i, want := range []struct {
		pkg        string
		amount     float64
		commission float64
	}{{"pkg-a", 850, 85}, {"pkg-b", 400, 50}} {
		p := res.Recorded[i]
		assert.Equal(t, want.pkg, p.PackageID)
		assert.Equal(t, want.amount, p.Amount)
		assert.Equal(t, want.commission, p.Commission)
		assert.Equal(t, "pay_123", p.PaymentID)
		assert.Equal(t, checkout.SettlementPending, p.SettlementStatus)

		stored, err := e.svc.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.Amount, stored.Amount)
	}

	reports, err := e.svc.ListByStudent(ctx, "student-1")
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for _, r := range reports {
		assert.Equal(t, "pay_123", r.PaymentID)
		assert.Equal(t, checkout.PaymentPaid, r.PaymentStatus)
		assert.True(t, r.PromoterApproved)
	}
	assert.Empty(t, e.mail.Sent())
}

func TestService_Record_noPromoter(t *testing.T) {
	e := setup(t)
	res, err := e.svc.Record(context.Background(), checkout.Checkout{
		StudentID: "student-1", PaymentID: "pay_1", Packages: []catalog.Package{physics},
	})
	require.NoError(t, err)
	assert.Zero(t, res.Recorded[0].Commission)
	assert.Empty(t, res.Recorded[0].PromoterID)
}

func TestService_Record_unresolvedPackage(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	res, err := e.svc.Record(ctx, checkout.Checkout{
		StudentID:  "student-1",
		PaymentID:  "pay_9",
		Packages:   []catalog.Package{physics},
		Unresolved: []catalog.Unresolved{{ID: "pkg-gone", Err: catalog.ErrNotFound}},
	})
	var pfErr *checkout.PartialFailureError
	require.True(t, errors.As(err, &pfErr), "got %v", err)
	assert.Equal(t, "pay_9", pfErr.PaymentID)

	require.Len(t, res.Recorded, 1)
	assert.Equal(t, physics.ID, res.Recorded[0].PackageID)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "pkg-gone", res.Failures[0].PackageID)
	assert.Equal(t, checkout.FacetPackage, res.Failures[0].Facet)

	sent := e.mail.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "pkg-gone")

	// nothing readable at all is still a captured payment, not a validation error
	res, err = e.svc.Record(ctx, checkout.Checkout{
		StudentID:  "student-1",
		PaymentID:  "pay_10",
		Unresolved: []catalog.Unresolved{{ID: "pkg-gone", Err: catalog.ErrNotFound}},
	})
	assert.True(t, checkout.IsPartialFailure(err), "got %v", err)
	assert.Empty(t, res.Recorded)
}

func TestService_Record_validation(t *testing.T) {
	tests := []struct {
		name  string
		co    checkout.Checkout
		field string
	}{
		{name: "empty selection", co: checkout.Checkout{StudentID: "s", PaymentID: "p"}, field: "packages"},
		{name: "no payment id", co: checkout.Checkout{StudentID: "s", PaymentID: "  ", Packages: []catalog.Package{physics}}, field: "paymentId"},
		{name: "no student", co: checkout.Checkout{PaymentID: "p", Packages: []catalog.Package{physics}}, field: "studentId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setup(t)
			_, err := e.svc.Record(context.Background(), tt.co)
			require.Error(t, err)
			vErr, ok := errors.Cause(err).(*core.ValidationError)
			require.True(t, ok, "got %T", err)
			require.Len(t, vErr.Fields, 1)
			assert.Equal(t, tt.field, vErr.Fields[0].Field)

			purchases, err := e.svc.List(context.Background(), checkout.QueryFilter{})
			require.NoError(t, err)
			assert.Empty(t, purchases, "no write may happen on invalid input")
		})
	}
}

func TestService_Record_secondWriteFails(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	var ledgerWrites int
	e.store.InjectFault(func(op inmemstore.Op, collection, _ string) error {
		if op == inmemstore.OpSet && collection == checkout.LedgerCollection {
			ledgerWrites++
			if ledgerWrites == 2 {
				return errors.New("connection reset")
			}
		}
		return nil
	})

	res, err := e.svc.Record(ctx, checkout.Checkout{
		StudentID: "student-1", PaymentID: "pay_9", Packages: []catalog.Package{physics, maths},
	})
	require.Error(t, err)
	require.True(t, checkout.IsPartialFailure(err))
	pfErr := errors.Cause(err).(*checkout.PartialFailureError)
	assert.Equal(t, "pay_9", pfErr.PaymentID)
	assert.Contains(t, pfErr.SupportMessage(), "pay_9")
	require.Len(t, pfErr.Failures, 1)
	assert.Equal(t, "pkg-b", pfErr.Failures[0].PackageID)
	assert.Equal(t, checkout.FacetLedger, pfErr.Failures[0].Facet)
	assert.True(t, core.IsBackendUnavailable(pfErr.Failures[0].Err))

	// the first package stays recorded
	require.Len(t, res.Recorded, 1)
	e.store.InjectFault(nil)
	p, err := e.svc.Get(ctx, res.Recorded[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "pkg-a", p.PackageID)

	assert.Len(t, e.logger.errors, 1)
	sent := e.mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, testConf.SupportEmail, sent[0].To[0])
	assert.Contains(t, sent[0].TextContent, "pay_9")
}

func TestService_FindOrphans(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	e.store.InjectFault(func(op inmemstore.Op, collection, _ string) error {
		if op == inmemstore.OpSet && collection == checkout.ReportCollection {
			return errors.New("timeout")
		}
		return nil
	})
	res, err := e.svc.Record(ctx, checkout.Checkout{
		StudentID: "student-1", PaymentID: "pay_7", Packages: []catalog.Package{physics},
	})
	require.True(t, checkout.IsPartialFailure(err))
	require.Len(t, res.Recorded, 1, "a ledger entry without its report is still recorded")
	e.store.InjectFault(nil)

	_, err = e.svc.Record(ctx, checkout.Checkout{
		StudentID: "student-2", PaymentID: "pay_8", Packages: []catalog.Package{maths},
	})
	require.NoError(t, err)

	orphans, err := e.svc.FindOrphans(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, res.Recorded[0].ID, orphans[0].ID)
}

func TestService_SettleAndEarnings(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	res, err := e.svc.Record(ctx, checkout.Checkout{
		StudentID: "student-1", PromoterID: "ISPPRA001", PaymentID: "pay_1",
		Packages: []catalog.Package{physics, maths},
	})
	require.NoError(t, err)
	_, err = e.svc.Record(ctx, checkout.Checkout{
		StudentID: "student-2", PromoterID: "ISPOTH001", PaymentID: "pay_2",
		Packages: []catalog.Package{physics},
	})
	require.NoError(t, err)

	earnings, err := e.svc.PromoterEarnings(ctx, "ISPPRA001")
	require.NoError(t, err)
	assert.Equal(t, checkout.Earnings{PromoterID: "ISPPRA001", Sales: 2, Pending: 135, Total: 135}, earnings)

	settled, err := e.svc.Settle(ctx, res.Recorded[0].ID)
	require.NoError(t, err)
	assert.True(t, settled.IsSettled())
	require.NotNil(t, settled.SettledAt)

	again, err := e.svc.Settle(ctx, res.Recorded[0].ID)
	require.NoError(t, err)
	assert.True(t, settled.SettledAt.Equal(*again.SettledAt), "settling twice changes nothing")

	earnings, err = e.svc.PromoterEarnings(ctx, "ISPPRA001")
	require.NoError(t, err)
	assert.Equal(t, 85.0, earnings.Settled)
	assert.Equal(t, 50.0, earnings.Pending)
	assert.Equal(t, 135.0, earnings.Total)

	pending, err := e.svc.List(ctx, checkout.QueryFilter{SettlementStatus: "pending"})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	_, err = e.svc.Settle(ctx, "missing")
	assert.True(t, errors.Is(err, checkout.ErrNotFound))
}

func TestPurchaseFromDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     core.Document
		want    checkout.SettlementStatus
		wantErr bool
	}{
		{name: "valid", doc: core.Document{"id": "p1", "studentId": "s", "paymentId": "pay", "amount": 10.0, "settlementStatus": "Settled"}, want: checkout.SettlementSettled},
		{name: "string amount", doc: core.Document{"id": "p1", "studentId": "s", "paymentId": "pay", "amount": "10"}, want: checkout.SettlementPending},
		{name: "missing amount", doc: core.Document{"id": "p1", "studentId": "s", "paymentId": "pay"}, wantErr: true},
		{name: "unknown status", doc: core.Document{"id": "p1", "studentId": "s", "paymentId": "pay", "amount": 1.0, "settlementStatus": "Refunded"}, wantErr: true},
		{name: "missing payment id", doc: core.Document{"id": "p1", "studentId": "s", "amount": 1.0}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := checkout.PurchaseFromDocument(tt.doc)
			if tt.wantErr {
				assert.True(t, errors.Is(err, core.ErrMalformedRecord))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.SettlementStatus)
		})
	}
}
