package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edumart/core/account"
	"github.com/trezcool/edumart/core/catalog"
	"github.com/trezcool/edumart/core/role"
	testutil "github.com/trezcool/edumart/tests"
)

func TestAdmin_accounts(t *testing.T) {
	e := setup(t)
	student := e.app.CreateAccount(t, "Ravi Kumar", "student@edumart.test", account.RoleStudent, "")
	promoter := e.app.CreateAccount(t, "Meena Iyer", "promoter@edumart.test", account.RolePromoter, "")
	token := e.login(t, testutil.AdminEmail, testutil.AdminPassword).Token

	rec := e.do(http.MethodGet, "/v1/admin/accounts?pending=true", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var accts []account.Account
	unmarchall(t, rec, &accts)
	require.Len(t, accts, 1)
	assert.Equal(t, promoter.ID, accts[0].ID)

	// the promoter is a student until approved
	assert.Equal(t, role.Student, e.login(t, "promoter@edumart.test", testutil.Password).State)

	tests := []httpTest{
		{name: "student", path: "/v1/admin/accounts/" + student.ID + "/approve", wantCode: http.StatusBadRequest},
		{name: "unknown account", path: "/v1/admin/accounts/nope/approve", wantCode: http.StatusNotFound},
		{name: "promoter", path: "/v1/admin/accounts/" + promoter.ID + "/approve", wantCode: http.StatusOK},
		{name: "already approved", path: "/v1/admin/accounts/" + promoter.ID + "/approve", wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodPost, tt.path, token)
			checkCodeAndData(t, tt, rec)
		})
	}

	assert.Len(t, e.app.Mail.Sent(), 1, "one approval email")
	assert.Equal(t, role.PromoterApproved, e.login(t, "promoter@edumart.test", testutil.Password).State)
}

func TestAdmin_packages(t *testing.T) {
	e := setup(t)
	token := e.login(t, testutil.AdminEmail, testutil.AdminPassword).Token

	np := catalog.NewPackage{
		ClassGrade:            "10",
		Syllabus:              "cbse",
		PackageType:           "regular",
		PackageName:           "full course",
		Subject:               "Maths",
		Duration:              40,
		Price:                 1000,
		RegularDiscountPct:    10,
		AdditionalDiscountPct: 5,
		CommissionPct:         10,
	}
	rec := e.do(http.MethodPost, "/v1/admin/packages", token, marchallObj(t, np))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var listing catalog.Listing
	unmarchall(t, rec, &listing)
	assert.Equal(t, catalog.SyllabusCBSE, listing.Syllabus)
	assert.Equal(t, 850.0, listing.DisplayPrice)
	assert.Equal(t, 85.0, listing.Commission)
	require.NotNil(t, listing.PerHourRate)
	assert.Equal(t, 21.25, *listing.PerHourRate)

	np.Price = 2000
	rec = e.do(http.MethodPut, "/v1/admin/packages/"+listing.ID, token, marchallObj(t, np))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarchall(t, rec, &listing)
	assert.Equal(t, 1700.0, listing.DisplayPrice, "stored total payable is recomputed")

	bad := np
	bad.RegularDiscountPct = 120
	rec = e.do(http.MethodPost, "/v1/admin/packages", token, marchallObj(t, bad))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodDelete, "/v1/admin/packages/"+listing.ID, token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(http.MethodGet, "/v1/catalog/"+listing.ID, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_forbiddenToOthers(t *testing.T) {
	e := setup(t)
	e.app.CreateAccount(t, "Ravi Kumar", "student@edumart.test", account.RoleStudent, "")
	e.app.CreateApprovedPromoter(t, "Asha Rao", "promoter@edumart.test")

	tests := []struct {
		email        string
		wantLocation string
	}{
		{"student@edumart.test", "/student"},
		{"promoter@edumart.test", "/promoter"},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			token := e.login(t, tt.email, testutil.Password).Token
			rec := e.do(http.MethodGet, "/v1/admin/accounts", token)
			require.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
		})
	}

	rec := e.do(http.MethodGet, "/v1/admin/accounts", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
