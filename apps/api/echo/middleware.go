package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shala/core/identity"
)

// roleMiddleware resolves the caller from the token claims and checks their role.
// With no roles, any valid principal passes.
func roleMiddleware(roles ...identity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, err := getContextPrincipal(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context principal")
			}
			if len(roles) == 0 {
				return next(ctx)
			}
			for _, role := range roles {
				if p.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}
