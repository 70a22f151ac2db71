package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/user"
)

// actorMiddleware puts the authenticated caller in the request context, for the audit log.
func actorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		req := ctx.Request()
		actor := core.Actor{UserID: claims.Subject, Username: claims.Username, IP: ctx.RealIP()}
		ctx.SetRequest(req.WithContext(core.WithActor(req.Context(), actor)))
		return next(ctx)
	}
}

// permissionMiddleware lets through the active users allowed to do op on module.
func permissionMiddleware(svc *user.Service, module core.Module, op string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			ok, err := svc.Allowed(ctx.Request().Context(), claims.Subject, module, op)
			if err != nil {
				if core.IsNotFound(err) {
					return errUnauthorized
				}
				return errors.Wrap(err, "checking permission")
			}
			if !ok {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
