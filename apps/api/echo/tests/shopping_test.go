package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/edumart/apps/api/echo"
	"github.com/trezcool/edumart/core/account"
	"github.com/trezcool/edumart/core/catalog"
	"github.com/trezcool/edumart/core/checkout"
	inmemstore "github.com/trezcool/edumart/storage/docstore/inmem"
	testutil "github.com/trezcool/edumart/tests"
)

type shop struct {
	*env
	promoter account.Account
	student  account.Account
	maths    catalog.Package // 850, commission 85
	physics  catalog.Package // 400, commission 50
	token    string
}

func setupShop(t *testing.T) *shop {
	e := setup(t)
	s := &shop{env: e}
	s.promoter = e.app.CreateApprovedPromoter(t, "Asha Rao", "promoter@edumart.test")
	s.student = e.app.CreateAccount(t, "Ravi Kumar", "student@edumart.test", account.RoleStudent, s.promoter.UniqueID)
	s.maths = e.app.CreatePackage(t, "Maths", 1000, 10, 5, 10)
	s.physics = e.app.CreatePackage(t, "Physics", 500, 20, 0, 12.5)
	s.token = e.login(t, "student@edumart.test", testutil.Password).Token
	return s
}

func (s *shop) cart(t *testing.T, method, path string) echoapi.CartResponse {
	t.Helper()
	rec := s.do(method, path, s.token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res echoapi.CartResponse
	unmarchall(t, rec, &res)
	return res
}

func TestCatalog(t *testing.T) {
	s := setupShop(t)

	rec := s.do(http.MethodGet, "/v1/catalog", s.token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res catalog.BrowseResult
	unmarchall(t, rec, &res)
	assert.Equal(t, "classGrade", res.Next)
	assert.Equal(t, catalog.ClassGrades, res.Options)
	assert.False(t, res.Complete)

	rec = s.do(http.MethodGet, "/v1/catalog/"+s.maths.ID, s.token)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing catalog.Listing
	unmarchall(t, rec, &listing)
	assert.Equal(t, 850.0, listing.DisplayPrice)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/catalog/nope", s.token).Code)
}

func TestCart(t *testing.T) {
	s := setupShop(t)

	res := s.cart(t, http.MethodGet, "/v1/cart")
	assert.Empty(t, res.Items)
	assert.Zero(t, res.Total)

	s.cart(t, http.MethodPost, "/v1/cart/"+s.maths.ID)
	s.cart(t, http.MethodPost, "/v1/cart/"+s.physics.ID)
	res = s.cart(t, http.MethodPost, "/v1/cart/"+s.maths.ID)
	require.Len(t, res.Items, 2, "adding twice is a no-op")
	assert.Equal(t, 1250.0, res.Total)
	assert.Zero(t, res.Commission, "students never see commissions on their cart")

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/v1/cart/nope", s.token).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/v1/cart/nope", s.token).Code)

	res = s.cart(t, http.MethodDelete, "/v1/cart/"+s.maths.ID)
	require.Len(t, res.Items, 1)
	assert.Equal(t, s.physics.ID, res.Items[0].ID)
	assert.Equal(t, 400.0, res.Total)
}

// reprice is an admin price edit that keeps every other field of pkg.
func (s *shop) reprice(t *testing.T, pkg catalog.Package, price float64) {
	t.Helper()
	_, err := s.app.Catalog.Update(context.Background(), pkg.ID, catalog.NewPackage{
		ClassGrade:            pkg.ClassGrade,
		Syllabus:              pkg.Syllabus,
		PackageType:           pkg.PackageType,
		PackageName:           pkg.PackageName,
		Subject:               pkg.Subject,
		Duration:              pkg.Duration,
		Price:                 price,
		RegularDiscountPct:    pkg.RegularDiscountPct,
		AdditionalDiscountPct: pkg.AdditionalDiscountPct,
		CommissionPct:         pkg.CommissionPct,
	})
	require.NoError(t, err)
}

func TestCart_catalogChanges(t *testing.T) {
	s := setupShop(t)
	s.cart(t, http.MethodPost, "/v1/cart/"+s.maths.ID)
	s.cart(t, http.MethodPost, "/v1/cart/"+s.physics.ID)

	s.reprice(t, s.maths, 2000) // 1700 after discounts
	res := s.cart(t, http.MethodGet, "/v1/cart")
	require.Len(t, res.Items, 2)
	assert.Equal(t, 1700.0, res.Items[0].DisplayPrice)
	assert.Equal(t, 2100.0, res.Total, "total follows the listed prices")

	require.NoError(t, s.app.Catalog.Delete(context.Background(), s.physics.ID))
	res = s.cart(t, http.MethodGet, "/v1/cart")
	require.Len(t, res.Items, 1)
	assert.Equal(t, s.maths.ID, res.Items[0].ID)
	assert.Equal(t, []string{s.physics.ID}, res.Removed)
	assert.Equal(t, 1700.0, res.Total)
	assert.Empty(t, s.cart(t, http.MethodGet, "/v1/cart").Removed, "a deleted package leaves the cart once")

	rec := s.do(http.MethodPost, "/v1/checkout", s.token, []byte(`{"paymentId":"pay_3"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var co echoapi.CheckoutResponse
	unmarchall(t, rec, &co)
	require.Len(t, co.Recorded, 1)
	assert.Equal(t, res.Total, co.Recorded[0].Amount, "checkout charges what the cart showed")
}

func TestCheckout_packageUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		breakIt func(t *testing.T, s *shop)
	}{
		{
			name: "deleted after add",
			breakIt: func(t *testing.T, s *shop) {
				require.NoError(t, s.app.Catalog.Delete(context.Background(), s.physics.ID))
			},
		},
		{
			name: "unreadable",
			breakIt: func(t *testing.T, s *shop) {
				s.app.Store.InjectFault(func(op inmemstore.Op, collection, id string) error {
					if op == inmemstore.OpGet && collection == catalog.Collection && id == s.physics.ID {
						return errors.New("i/o timeout")
					}
					return nil
				})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupShop(t)
			s.cart(t, http.MethodPost, "/v1/cart/"+s.maths.ID)
			s.cart(t, http.MethodPost, "/v1/cart/"+s.physics.ID)

			tt.breakIt(t, s)
			rec := s.do(http.MethodPost, "/v1/checkout", s.token, []byte(`{"paymentId":"pay_4"}`))
			s.app.Store.InjectFault(nil)

			require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())
			var res echoapi.CheckoutResponse
			unmarchall(t, rec, &res)
			require.Len(t, res.Recorded, 1, "the readable package is still recorded")
			assert.Equal(t, s.maths.ID, res.Recorded[0].PackageID)
			require.Len(t, res.Failures, 1)
			assert.Equal(t, s.physics.ID, res.Failures[0].PackageID)
			assert.Equal(t, checkout.FacetPackage, res.Failures[0].Facet)
			assert.Contains(t, res.Message, "pay_4")

			assert.Empty(t, s.cart(t, http.MethodGet, "/v1/cart").Items, "the payment went through")
			sent := s.app.Mail.Sent()
			require.NotEmpty(t, sent)
			support := sent[len(sent)-1]
			assert.Equal(t, s.app.Conf.SupportEmail.Address, support.To[0].Address)
			assert.Contains(t, support.TextContent, s.physics.ID)
		})
	}
}

func TestCheckout(t *testing.T) {
	s := setupShop(t)

	rec := s.do(http.MethodPost, "/v1/checkout", s.token, []byte(`{"paymentId":"pay_1"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty cart")

	s.cart(t, http.MethodPost, "/v1/cart/"+s.maths.ID)
	s.cart(t, http.MethodPost, "/v1/cart/"+s.physics.ID)

	rec = s.do(http.MethodPost, "/v1/checkout", s.token, []byte(`{"paymentId":"  "}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, s.cart(t, http.MethodGet, "/v1/cart").Items, 2, "cart kept on a rejected callback")

	rec = s.do(http.MethodPost, "/v1/checkout", s.token, []byte(`{"paymentId":"pay_1"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res echoapi.CheckoutResponse
	unmarchall(t, rec, &res)
	assert.Equal(t, "pay_1", res.PaymentID)
	require.Len(t, res.Recorded, 2)
	assert.Empty(t, res.Failures)
	assert.Empty(t, res.Message)
	for _, p := range res.Recorded {
		assert.Equal(t, s.promoter.UniqueID, p.PromoterID)
		assert.Equal(t, checkout.SettlementPending, p.SettlementStatus)
	}

	assert.Empty(t, s.cart(t, http.MethodGet, "/v1/cart").Items)

	rec = s.do(http.MethodGet, "/v1/student/purchases", s.token)
	require.Equal(t, http.StatusOK, rec.Code)
	var reports []checkout.Report
	unmarchall(t, rec, &reports)
	require.Len(t, reports, 2)
	for _, r := range reports {
		assert.Equal(t, checkout.PaymentPaid, r.PaymentStatus)
		assert.True(t, r.PromoterApproved)
	}

	// the promoter side of the same sale
	promoterToken := s.login(t, "promoter@edumart.test", testutil.Password).Token
	rec = s.do(http.MethodGet, "/v1/promoter/earnings", promoterToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var earnings checkout.Earnings
	unmarchall(t, rec, &earnings)
	assert.Equal(t, 2, earnings.Sales)
	assert.Equal(t, 135.0, earnings.Pending)
	assert.Equal(t, 135.0, earnings.Total)
	assert.Zero(t, earnings.Settled)

	adminToken := s.login(t, testutil.AdminEmail, testutil.AdminPassword).Token
	rec = s.do(http.MethodPost, "/v1/admin/purchases/"+res.Recorded[0].ID+"/settle", adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/v1/admin/purchases?status=settled", adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var settled []checkout.Purchase
	unmarchall(t, rec, &settled)
	require.Len(t, settled, 1)
	assert.Equal(t, res.Recorded[0].ID, settled[0].ID)
	assert.NotNil(t, settled[0].SettledAt)
}

func TestCheckout_partialFailure(t *testing.T) {
	s := setupShop(t)
	s.cart(t, http.MethodPost, "/v1/cart/"+s.maths.ID)
	s.cart(t, http.MethodPost, "/v1/cart/"+s.physics.ID)

	s.app.Store.InjectFault(func(op inmemstore.Op, collection, _ string) error {
		if op == inmemstore.OpSet && collection == checkout.ReportCollection {
			return errors.New("connection reset")
		}
		return nil
	})
	rec := s.do(http.MethodPost, "/v1/checkout", s.token, []byte(`{"paymentId":"pay_2"}`))
	s.app.Store.InjectFault(nil)

	require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())
	var res echoapi.CheckoutResponse
	unmarchall(t, rec, &res)
	assert.Len(t, res.Recorded, 2, "ledger entries were written")
	require.Len(t, res.Failures, 2)
	assert.Equal(t, checkout.FacetReport, res.Failures[0].Facet)
	assert.Contains(t, res.Message, "pay_2")
	assert.Contains(t, res.Message, "Do not pay again")

	assert.Empty(t, s.cart(t, http.MethodGet, "/v1/cart").Items, "the payment went through")
	sent := s.app.Mail.Sent()
	require.Len(t, sent, 2, "promoter approval, then support")
	assert.Equal(t, s.app.Conf.SupportEmail.Address, sent[1].To[0].Address)
	assert.Contains(t, sent[1].TextContent, "pay_2")

	adminToken := s.login(t, testutil.AdminEmail, testutil.AdminPassword).Token
	rec = s.do(http.MethodGet, "/v1/admin/purchases/orphans", adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var orphans []checkout.Purchase
	unmarchall(t, rec, &orphans)
	assert.Len(t, orphans, 2)
}

func TestPromoter(t *testing.T) {
	s := setupShop(t)
	token := s.login(t, "promoter@edumart.test", testutil.Password).Token

	rec := s.do(http.MethodGet, "/v1/promoter/referrals", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var referrals []account.Account
	unmarchall(t, rec, &referrals)
	require.Len(t, referrals, 1)
	assert.Equal(t, s.student.ID, referrals[0].ID)

	body := marchallObj(t, echoapi.QuoteRequest{PackageIDs: []string{s.maths.ID, s.physics.ID, s.maths.ID}})
	rec = s.do(http.MethodPost, "/v1/promoter/quote", token, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var quote echoapi.CartResponse
	unmarchall(t, rec, &quote)
	assert.Len(t, quote.Items, 2)
	assert.Equal(t, 1250.0, quote.Total)
	assert.Equal(t, 135.0, quote.Commission)

	rec = s.do(http.MethodPost, "/v1/promoter/quote", token, []byte(`{"packageIds":[]}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/v1/promoter/sales", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	// students are sent back to their own dashboard
	rec = s.do(http.MethodGet, "/v1/promoter/earnings", s.token)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	var redirect echoapi.RedirectResponse
	unmarchall(t, rec, &redirect)
	assert.Equal(t, "/student", redirect.Redirect)
}
