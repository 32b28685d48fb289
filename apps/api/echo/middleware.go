package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edumart/core"
	"github.com/trezcool/edumart/core/role"
)

// withMiddleware returns base followed by extra in a new slice, so route groups built from
// the same base never share a backing array.
func withMiddleware(base []echo.MiddlewareFunc, extra ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	mw := make([]echo.MiddlewareFunc, 0, len(base)+len(extra))
	mw = append(mw, base...)
	return append(mw, extra...)
}

// stateMiddleware only lets sessions in one of states through. Any other session is
// redirected to its own dashboard rather than refused.
func stateMiddleware(logger core.Logger, states ...role.State) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, err := getContextSession(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context session")
			}
			current := sess.State()
			for _, s := range states {
				if current == s {
					return next(ctx)
				}
			}

			dashboard := role.Dashboard(current)
			logger.Warn("redirecting session away from a route of another role", map[string]interface{}{
				"path":  ctx.Path(),
				"state": current,
				"uid":   sess.Identity().UID,
			})
			ctx.Response().Header().Set(echo.HeaderLocation, dashboard)
			return ctx.JSON(http.StatusSeeOther, RedirectResponse{Redirect: dashboard, State: current})
		}
	}
}
