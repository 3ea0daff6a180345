package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/customersms/customer-service/internal/api/metrics"
	"github.com/customersms/customer-service/internal/core/domain"
)

// RequireRoles lets the request through only when the authenticated
// principal holds at least one of roles. It must run after Authenticate.
func RequireRoles(roles ...domain.RoleName) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := authorize(c, roles); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// authorize applies one access requirement. A nil roles slice means any
// authenticated principal is enough.
func authorize(c echo.Context, roles []domain.RoleName) error {
	p, ok := PrincipalFrom(c)
	if !ok {
		metrics.AccessDeniedTotal.WithLabelValues("unauthenticated").Inc()
		return domain.ErrUnauthenticated
	}
	if len(roles) > 0 && !p.HasAnyRole(roles...) {
		metrics.AccessDeniedTotal.WithLabelValues("forbidden").Inc()
		return domain.ErrForbidden
	}
	return nil
}
