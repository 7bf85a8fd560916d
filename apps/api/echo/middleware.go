package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-results/core"
)

// actorMiddleware makes the authenticated actor available to the services, through the request context.
func actorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		req := ctx.Request()
		ctx.SetRequest(req.WithContext(core.WithActor(req.Context(), claims.Actor())))
		return next(ctx)
	}
}

// roleMiddleware lets through actors having any of roles.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.HasAnyRole(roles...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func staffMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(RoleTeacher, RoleAdmin)
}
