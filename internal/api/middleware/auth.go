package middleware

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/customersms/customer-service/internal/api/metrics"
	"github.com/customersms/customer-service/internal/core/domain"
)

// PrincipalKey is the echo context key the verified principal is stored under.
const PrincipalKey = "principal"

// TokenVerifier decodes a raw bearer token into the principal it was issued for.
type TokenVerifier interface {
	Verify(raw string) (*domain.Principal, error)
}

// Authenticate verifies the bearer token when one is presented. Requests
// without an Authorization header continue anonymously; whether that is
// acceptable is decided by Policy. A header that is present but malformed,
// badly signed or expired is rejected with domain.ErrUnauthenticated.
func Authenticate(verifier TokenVerifier) echo.MiddlewareFunc {
	return AuthenticateWithSkipper(verifier, echomiddleware.DefaultSkipper)
}

// AuthenticateWithSkipper is Authenticate for the requests skipper rejects.
// Skipped requests are never rejected, even with a stale token.
func AuthenticateWithSkipper(verifier TokenVerifier, skipper echomiddleware.Skipper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper(c) {
				return next(c)
			}
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return next(c)
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				metrics.TokenRejectionsTotal.WithLabelValues("invalid").Inc()
				return domain.ErrUnauthenticated
			}

			p, err := verifier.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				reason := "invalid"
				if errors.Is(err, jwt.ErrTokenExpired) {
					reason = "expired"
				}
				metrics.TokenRejectionsTotal.WithLabelValues(reason).Inc()
				if !errors.Is(err, domain.ErrUnauthenticated) {
					err = errors.Join(domain.ErrUnauthenticated, err)
				}
				return err
			}

			c.Set(PrincipalKey, p)
			req := c.Request()
			c.SetRequest(req.WithContext(domain.WithPrincipal(req.Context(), p)))
			return next(c)
		}
	}
}

// PrincipalFrom returns the principal Authenticate stored on c.
func PrincipalFrom(c echo.Context) (*domain.Principal, bool) {
	p, ok := c.Get(PrincipalKey).(*domain.Principal)
	return p, ok && p != nil
}
