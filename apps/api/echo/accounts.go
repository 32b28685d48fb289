package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edumart/core"
	"github.com/trezcool/edumart/core/account"
	"github.com/trezcool/edumart/core/metrics"
	"github.com/trezcool/edumart/core/role"
	"github.com/trezcool/edumart/core/session"
)

type accountApi struct {
	conf       *core.Config
	identities core.IdentityProvider
	svc        *account.Service
	sessions   *session.Manager
	auth       *authenticator
	validate   *validator.Validate
	metrics    *metrics.Metrics
}

func registerAccountAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps, auth *authenticator) {
	api := accountApi{
		conf:       deps.Conf,
		identities: deps.Identities,
		svc:        deps.Accounts,
		sessions:   deps.Sessions,
		auth:       auth,
		validate:   deps.Validate,
		metrics:    deps.Metrics,
	}

	ag := g.Group("/accounts")

	// un-authed endpoints
	ag.POST("/register", api.register)
	ag.POST("/login", api.login)

	// authed endpoints
	sg := ag.Group("", authed...)
	sg.POST("/logout", api.logout)
	sg.POST("/choose-role", api.chooseRole)
	sg.GET("/me", api.me)
	sg.PUT("/me", api.updateMe)
	sg.POST("/me/promoter", api.enablePromoter, stateMiddleware(deps.Logger, role.Student))
}

// Handlers

func (api *accountApi) register(ctx echo.Context) error {
	var data account.NewAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAccount")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	acct, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering account")
	}
	return ctx.JSON(http.StatusCreated, acct)
}

func (api *accountApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	ident, err := api.identities.SignIn(rctx, data.Email, data.Password)
	if err != nil {
		if errors.Is(err, core.ErrInvalidCredentials) {
			return errAuthenticationFailed
		}
		return errors.Wrap(err, "signing in")
	}

	var acct *account.Account
	decision := role.Resolve(ident.UID, account.Account{}, api.conf.AdminUID)
	if decision.State != role.Admin {
		a, err := api.svc.Get(rctx, ident.UID)
		if err != nil {
			if errors.Is(err, account.ErrNotFound) {
				return errNoAccount
			}
			return errors.Wrap(err, "getting account")
		}
		acct = &a
		decision = role.Resolve(ident.UID, a, api.conf.AdminUID)
	}
	api.metrics.SignedIn(string(decision.State))

	var accountID string
	if acct != nil {
		accountID = acct.ID
	}
	sess := api.sessions.Create(ident, accountID, decision)
	token, err := api.auth.sessionToken(sess)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		State:     decision.State,
		Notice:    decision.Notice,
		Dashboard: role.Dashboard(decision.State),
		Account:   acct,
	})
}

func (api *accountApi) logout(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	api.sessions.End(sess.ID())
	if err := api.identities.SignOut(ctx.Request().Context(), sess.Identity().UID); err != nil {
		return errors.Wrap(err, "signing out")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *accountApi) chooseRole(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	var data ChooseRoleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChooseRoleRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	decision, err := role.Choose(ctx.Request().Context(), sess.State(), role.Choice(data.Choice),
		func(c context.Context) (account.Account, error) {
			return api.svc.Get(c, sess.AccountID())
		})
	if err != nil {
		if err == role.ErrInvalidTransition {
			return errNoChoicePending
		}
		return err
	}
	sess.SetDecision(decision)

	token, err := api.auth.sessionToken(sess)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		State:     decision.State,
		Notice:    decision.Notice,
		Dashboard: role.Dashboard(decision.State),
	})
}

func (api *accountApi) contextAccount(ctx echo.Context) (account.Account, error) {
	sess, err := getContextSession(ctx)
	if err != nil {
		return account.Account{}, err
	}
	if sess.AccountID() == "" {
		return account.Account{}, errHttpNotFound
	}
	return api.svc.Get(ctx.Request().Context(), sess.AccountID())
}

func (api *accountApi) me(ctx echo.Context) error {
	acct, err := api.contextAccount(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	return ctx.JSON(http.StatusOK, acct)
}

func (api *accountApi) updateMe(ctx echo.Context) error {
	acct, err := api.contextAccount(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}

	var data account.UpdateAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAccount")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	acct, err = api.svc.UpdateProfile(ctx.Request().Context(), acct.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating account")
	}
	return ctx.JSON(http.StatusOK, acct)
}

// enablePromoter takes effect at the next sign-in, once an admin approves the account.
func (api *accountApi) enablePromoter(ctx echo.Context) error {
	acct, err := api.contextAccount(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	acct, err = api.svc.EnablePromoter(ctx.Request().Context(), acct.ID)
	if err != nil {
		return errors.Wrap(err, "enabling promoter")
	}
	return ctx.JSON(http.StatusOK, acct)
}
