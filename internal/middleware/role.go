package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-ticketing/internal/model"
)

// RequireRole returns a middleware that enforces that the authenticated
// user has one of the specified roles.  It must run after JWTAuth.  If
// the role is missing or not allowed, the request is aborted with a 403
// Forbidden response.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allowed[Role(c)] {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// RequireStaff admits admins and cashiers.
func RequireStaff() echo.MiddlewareFunc {
	return RequireRole(model.RoleAdmin, model.RoleCashier)
}
