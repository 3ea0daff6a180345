package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/customersms/customer-service/internal/core/domain"
)

// Access is what a rule demands of the caller.
type Access int

const (
	// Authenticated accepts any verified principal.
	Authenticated Access = iota
	// Public skips the check entirely.
	Public
	// AnyRole requires one of the rule's roles.
	AnyRole
)

// Rule binds a path prefix to an access requirement.
type Rule struct {
	Prefix string
	Access Access
	Roles  []domain.RoleName
}

// DefaultRules is the route access table of the service. Rules are matched
// in order and the first prefix that matches wins.
func DefaultRules() []Rule {
	return []Rule{
		{Prefix: "/health", Access: Public},
		{Prefix: "/metrics", Access: Public},
		{Prefix: "/swagger/", Access: Public},
		{Prefix: "/api/v1/auth/login", Access: Public},
		{Prefix: "/api/v1/auth/register", Access: Public},
		{Prefix: "/api/v1/admin/", Access: AnyRole, Roles: []domain.RoleName{domain.RoleAdmin}},
		{Prefix: "/api/v1/user-roles", Access: AnyRole, Roles: []domain.RoleName{domain.RoleAdmin}},
		{Prefix: "/api/v1/customer/", Access: AnyRole, Roles: []domain.RoleName{domain.RoleCustomer, domain.RoleAdmin}},
		{Prefix: "/api/v1/staff/", Access: AnyRole, Roles: []domain.RoleName{domain.RoleStaff, domain.RoleAdmin}},
		{Prefix: "/api/v1/auth/profile", Access: Authenticated},
	}
}

// Policy enforces rules on the request path before the handler runs. Paths
// no rule matches require an authenticated principal.
func Policy(rules []Rule) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rule := match(rules, c.Request().URL.Path)
			switch rule.Access {
			case Public:
				return next(c)
			case AnyRole:
				if err := authorize(c, rule.Roles); err != nil {
					return err
				}
			default:
				if err := authorize(c, nil); err != nil {
					return err
				}
			}
			return next(c)
		}
	}
}

// PublicSkipper reports whether the request path is Public under rules. It
// lets Authenticate ignore tokens on routes that do not need one.
func PublicSkipper(rules []Rule) func(echo.Context) bool {
	return func(c echo.Context) bool {
		return match(rules, c.Request().URL.Path).Access == Public
	}
}

func match(rules []Rule, path string) Rule {
	for _, r := range rules {
		if strings.HasPrefix(path, r.Prefix) {
			return r
		}
	}
	return Rule{Access: Authenticated}
}
