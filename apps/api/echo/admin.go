package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edumart/core/account"
	"github.com/trezcool/edumart/core/catalog"
	"github.com/trezcool/edumart/core/checkout"
	"github.com/trezcool/edumart/core/role"
)

type adminApi struct {
	accounts  *account.Service
	catalog   *catalog.Service
	purchases *checkout.Service
	validate  *validator.Validate
}

func registerAdminAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := adminApi{
		accounts:  deps.Accounts,
		catalog:   deps.Catalog,
		purchases: deps.Checkout,
		validate:  deps.Validate,
	}

	mw := withMiddleware(authed, stateMiddleware(deps.Logger, role.Admin))
	ag := g.Group("/admin", mw...)

	ag.GET("/accounts", api.queryAccounts)
	ag.POST("/accounts/:id/approve", api.approvePromoter)

	ag.POST("/packages", api.createPackage)
	ag.PUT("/packages/:id", api.updatePackage)
	ag.DELETE("/packages/:id", api.deletePackage)

	ag.GET("/purchases", api.queryPurchases)
	ag.GET("/purchases/orphans", api.orphanPurchases)
	ag.POST("/purchases/:id/settle", api.settlePurchase)
}

// Handlers

func (api *adminApi) queryAccounts(ctx echo.Context) error {
	var filter account.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []account.Account{})
	}
	accts, err := api.accounts.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying accounts")
	}
	return ctx.JSON(http.StatusOK, accts)
}

func (api *adminApi) approvePromoter(ctx echo.Context) error {
	acct, err := api.accounts.ApprovePromoter(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "approving promoter")
	}
	return ctx.JSON(http.StatusOK, acct)
}

func (api *adminApi) createPackage(ctx echo.Context) error {
	var data catalog.NewPackage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPackage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	pkg, err := api.catalog.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating package")
	}
	return ctx.JSON(http.StatusCreated, catalog.NewListing(pkg))
}

func (api *adminApi) updatePackage(ctx echo.Context) error {
	var data catalog.NewPackage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPackage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	pkg, err := api.catalog.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating package")
	}
	return ctx.JSON(http.StatusOK, catalog.NewListing(pkg))
}

func (api *adminApi) deletePackage(ctx echo.Context) error {
	if err := api.catalog.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting package")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) queryPurchases(ctx echo.Context) error {
	var filter checkout.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []checkout.Purchase{})
	}
	purchases, err := api.purchases.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying purchases")
	}
	return ctx.JSON(http.StatusOK, purchases)
}

func (api *adminApi) orphanPurchases(ctx echo.Context) error {
	orphans, err := api.purchases.FindOrphans(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "finding orphan purchases")
	}
	return ctx.JSON(http.StatusOK, orphans)
}

func (api *adminApi) settlePurchase(ctx echo.Context) error {
	p, err := api.purchases.Settle(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "settling purchase")
	}
	return ctx.JSON(http.StatusOK, p)
}
