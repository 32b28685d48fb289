package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edumart/core/catalog"
	"github.com/trezcool/edumart/core/role"
)

type catalogApi struct {
	svc *catalog.Service
}

// registerCatalogAPI serves the same catalog to every dashboard.
func registerCatalogAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := catalogApi{svc: deps.Catalog}

	mw := withMiddleware(authed, stateMiddleware(deps.Logger, role.Admin, role.Student, role.PromoterApproved))
	cg := g.Group("/catalog", mw...)
	cg.GET("", api.browse)
	cg.GET("/:id", api.retrieve)
}

// browse resolves one step of the filter chain given as query params.
func (api *catalogApi) browse(ctx echo.Context) error {
	var filter catalog.Filter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to Filter")
	}
	res, err := api.svc.Browse(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "browsing catalog")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *catalogApi) retrieve(ctx echo.Context) error {
	pkg, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting package")
	}
	return ctx.JSON(http.StatusOK, catalog.NewListing(pkg))
}
