package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edumart/core/account"
	"github.com/trezcool/edumart/core/catalog"
	"github.com/trezcool/edumart/core/checkout"
	"github.com/trezcool/edumart/core/pricing"
	"github.com/trezcool/edumart/core/role"
)

type promoterApi struct {
	accounts  *account.Service
	catalog   *catalog.Service
	purchases *checkout.Service
	validate  *validator.Validate
}

func registerPromoterAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := promoterApi{
		accounts:  deps.Accounts,
		catalog:   deps.Catalog,
		purchases: deps.Checkout,
		validate:  deps.Validate,
	}

	mw := withMiddleware(authed, stateMiddleware(deps.Logger, role.PromoterApproved))
	pg := g.Group("/promoter", mw...)

	pg.GET("/referrals", api.referrals)
	pg.GET("/sales", api.sales)
	pg.GET("/earnings", api.earnings)
	pg.POST("/quote", api.quote)
}

func (api *promoterApi) contextPromoter(ctx echo.Context) (account.Account, error) {
	sess, err := getContextSession(ctx)
	if err != nil {
		return account.Account{}, err
	}
	acct, err := api.accounts.Get(ctx.Request().Context(), sess.AccountID())
	if err != nil {
		return account.Account{}, errors.Wrap(err, "getting context account")
	}
	return acct, nil
}

func (api *promoterApi) referrals(ctx echo.Context) error {
	promoter, err := api.contextPromoter(ctx)
	if err != nil {
		return err
	}
	accts, err := api.accounts.Referrals(ctx.Request().Context(), promoter.UniqueID)
	if err != nil {
		return errors.Wrap(err, "querying referrals")
	}
	return ctx.JSON(http.StatusOK, accts)
}

func (api *promoterApi) sales(ctx echo.Context) error {
	promoter, err := api.contextPromoter(ctx)
	if err != nil {
		return err
	}
	purchases, err := api.purchases.ListByPromoter(ctx.Request().Context(), promoter.UniqueID)
	if err != nil {
		return errors.Wrap(err, "querying sales")
	}
	return ctx.JSON(http.StatusOK, purchases)
}

func (api *promoterApi) earnings(ctx echo.Context) error {
	promoter, err := api.contextPromoter(ctx)
	if err != nil {
		return err
	}
	earnings, err := api.purchases.PromoterEarnings(ctx.Request().Context(), promoter.UniqueID)
	if err != nil {
		return errors.Wrap(err, "computing earnings")
	}
	return ctx.JSON(http.StatusOK, earnings)
}

// quote prices a selection the promoter is putting together for a student.
func (api *promoterApi) quote(ctx echo.Context) error {
	var data QuoteRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to QuoteRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	pkgs, err := api.catalog.GetMany(ctx.Request().Context(), data.PackageIDs...)
	if err != nil {
		return errors.Wrap(err, "loading packages")
	}
	sel := pricing.NewSelection()
	listings := make([]catalog.Listing, 0, len(pkgs))
	for _, p := range pkgs {
		if sel.Add(p.Item()) {
			listings = append(listings, catalog.NewListing(p))
		}
	}
	return ctx.JSON(http.StatusOK, CartResponse{
		Items:      listings,
		Total:      pricing.Amount(sel.Total()),
		Commission: pricing.Amount(sel.Commission()),
	})
}
