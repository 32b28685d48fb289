package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edumart/core"
	"github.com/trezcool/edumart/core/account"
	"github.com/trezcool/edumart/core/catalog"
	"github.com/trezcool/edumart/core/checkout"
	"github.com/trezcool/edumart/core/pricing"
	"github.com/trezcool/edumart/core/role"
	"github.com/trezcool/edumart/core/session"
)

type studentApi struct {
	accounts  *account.Service
	catalog   *catalog.Service
	purchases *checkout.Service
	validate  *validator.Validate
	log       core.Logger
}

func registerStudentAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := studentApi{
		accounts:  deps.Accounts,
		catalog:   deps.Catalog,
		purchases: deps.Checkout,
		validate:  deps.Validate,
		log:       deps.Logger,
	}

	mw := withMiddleware(authed, stateMiddleware(deps.Logger, role.Student))
	g.GET("/cart", api.getCart, mw...)
	g.POST("/cart/:packageId", api.addToCart, mw...)
	g.DELETE("/cart/:packageId", api.removeFromCart, mw...)
	g.POST("/checkout", api.checkout, mw...)
	g.GET("/student/purchases", api.queryPurchases, mw...)
}

// cartResponse reloads the cart packages so items and total use the stored prices, and
// refreshes the session cart with them. Deleted packages leave the cart.
func (api *studentApi) cartResponse(ctx echo.Context, sess *session.Session) (CartResponse, error) {
	pkgs, failed := api.catalog.Lookup(ctx.Request().Context(), cartIDs(sess.Cart())...)
	var gone []string
	for _, u := range failed {
		if !errors.Is(u.Err, catalog.ErrNotFound) {
			return CartResponse{}, errors.Wrapf(u.Err, "loading cart package %q", u.ID)
		}
		gone = append(gone, u.ID)
	}

	items := catalog.Items(pkgs)
	sess.RefreshCart(items, gone...)
	return CartResponse{
		Items:   catalog.NewListings(pkgs),
		Total:   pricing.Amount(pricing.TotalPrice(items)),
		Removed: gone,
	}, nil
}

func cartIDs(cart *pricing.Selection) []string {
	items := cart.Items()
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}

func (api *studentApi) getCart(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	res, err := api.cartResponse(ctx, sess)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *studentApi) addToCart(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	pkg, err := api.catalog.Get(ctx.Request().Context(), ctx.Param("packageId"))
	if err != nil {
		return errors.Wrap(err, "getting package")
	}
	sess.AddToCart(pkg.Item())

	res, err := api.cartResponse(ctx, sess)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *studentApi) removeFromCart(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	if !sess.RemoveFromCart(ctx.Param("packageId")) {
		return errHttpNotFound
	}
	res, err := api.cartResponse(ctx, sess)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

// checkout runs on the payment gateway success callback. The cart is cleared once every
// write was attempted, even if some of them failed: the payment is already captured.
// A cart package that cannot be loaded any more is reported, never allowed to block the others.
func (api *studentApi) checkout(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	var data CheckoutRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckoutRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	cart := sess.Cart()
	if cart.IsEmpty() {
		return core.NewValidationError(nil, core.FieldError{Field: "cart", Error: checkout.ErrEmptySelection.Error()})
	}
	pkgs, unresolved := api.catalog.Lookup(rctx, cartIDs(cart)...)
	acct, err := api.accounts.Get(rctx, sess.AccountID())
	if err != nil {
		return errors.Wrap(err, "getting account")
	}

	res, err := api.purchases.Record(rctx, checkout.Checkout{
		StudentID:        acct.ID,
		PromoterID:       acct.ReferralID,
		PromoterApproved: api.promoterApproved(ctx, acct.ReferralID),
		PaymentID:        data.PaymentID,
		Packages:         pkgs,
		Unresolved:       unresolved,
	})
	var pfErr *checkout.PartialFailureError
	switch {
	case err == nil:
		sess.ClearCart()
		return ctx.JSON(http.StatusCreated, CheckoutResponse{Result: res})
	case errors.As(err, &pfErr):
		sess.ClearCart()
		return ctx.JSON(http.StatusMultiStatus, CheckoutResponse{Result: res, Message: pfErr.SupportMessage()})
	default:
		return errors.Wrap(err, "recording checkout")
	}
}

// promoterApproved is copied on the student-facing records; a lookup failure is not worth failing a paid checkout.
func (api *studentApi) promoterApproved(ctx echo.Context, referralID string) bool {
	if referralID == "" {
		return false
	}
	promoter, err := api.accounts.GetByUniqueID(ctx.Request().Context(), referralID)
	if err != nil {
		api.log.Warn("could not look up referring promoter", err, map[string]interface{}{"referralId": referralID})
		return false
	}
	return promoter.PromoterApproved
}

func (api *studentApi) queryPurchases(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	reports, err := api.purchases.ListByStudent(ctx.Request().Context(), sess.AccountID())
	if err != nil {
		return errors.Wrap(err, "querying purchases")
	}
	return ctx.JSON(http.StatusOK, reports)
}
