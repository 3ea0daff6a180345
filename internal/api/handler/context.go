package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/customersms/customer-service/internal/core/domain"
	"github.com/customersms/customer-service/internal/core/ports"
)

// currentPrincipal returns the identity the Authenticate middleware attached
// to the request. Handlers behind the route policy always have one; the
// check only guards handlers mounted without it.
func currentPrincipal(c echo.Context) (*domain.Principal, error) {
	p, ok := domain.PrincipalFrom(c.Request().Context())
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return p, nil
}

// bindAndValidate decodes the request into req and runs the registered
// validator over it.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domain.NewValidationError("body", "malformed request body")
	}
	return c.Validate(req)
}

// pageParams reads the 0-based page and the page size from the query string.
func pageParams(c echo.Context) (ports.PageRequest, error) {
	var page ports.PageRequest
	err := echo.QueryParamsBinder(c).
		Int("page", &page.Page).
		Int("size", &page.Size).
		BindError()
	if err != nil {
		return page, domain.NewValidationError("page", "page and size must be integers")
	}
	if page.Page < 0 {
		return page, domain.NewValidationError("page", "page must not be negative")
	}
	return page.Normalize(), nil
}
