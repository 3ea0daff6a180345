package middleware

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/customersms/customer-service/internal/core/domain"
)

func TestRequireRoles_Allows(t *testing.T) {
	c, rec := newContext("/", "")
	c.Set(PrincipalKey, &domain.Principal{Username: "bob", Roles: []domain.RoleName{domain.RoleStaff}})

	called := false
	handler := RequireRoles(domain.RoleAdmin, domain.RoleStaff)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next handler not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRequireRoles_Forbids(t *testing.T) {
	c, _ := newContext("/", "")
	c.Set(PrincipalKey, &domain.Principal{Username: "carol", Roles: []domain.RoleName{domain.RoleCustomer}})

	handler := RequireRoles(domain.RoleAdmin)(func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	if err := handler(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRequireRoles_Anonymous(t *testing.T) {
	c, _ := newContext("/", "")

	handler := RequireRoles(domain.RoleAdmin)(func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	if err := handler(c); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
