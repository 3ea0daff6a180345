package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/customersms/customer-service/docs"
	"github.com/customersms/customer-service/internal/api/handler"
	"github.com/customersms/customer-service/internal/api/middleware"
	"github.com/customersms/customer-service/internal/core/ports"
	"github.com/customersms/customer-service/internal/infrastructure/http/handlers"
)

const metricsSubsystem = "customersms"

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Auth      ports.AuthService
	Users     ports.UserService
	Roles     ports.RoleService
	Grants    ports.RoleAssignmentService
	Verifier  middleware.TokenVerifier
	Readiness map[string]handlers.Check
	Logger    zerolog.Logger

	// Registerer and Gatherer default to the prometheus default registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Logger))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  metricsSubsystem,
		Registerer: d.Registerer,
	}))
	rules := middleware.DefaultRules()
	e.Use(middleware.AuthenticateWithSkipper(d.Verifier, middleware.PublicSkipper(rules)))
	e.Use(middleware.Policy(rules))

	// --- Operational endpoints (public in the policy table) ---
	e.GET("/health", handlers.NewHealthHandler().Liveness)
	e.GET("/health/ready", handlers.NewReadinessHandler(d.Readiness).Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: d.Gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	authHandler := handler.NewAuthHandler(d.Auth, d.Users)
	userHandler := handler.NewUserHandler(d.Users)
	roleHandler := handler.NewRoleHandler(d.Roles)
	grantHandler := handler.NewUserRoleHandler(d.Grants)

	v1 := e.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/register", authHandler.Register)
	auth.GET("/profile", authHandler.Profile)
	auth.PUT("/profile", authHandler.UpdateProfile)
	auth.PUT("/profile/change-password", authHandler.ChangePassword)

	admin := v1.Group("/admin")
	admin.GET("/users", userHandler.List)
	admin.GET("/users/:id", userHandler.Get)
	admin.PUT("/users/:id", userHandler.Update)
	admin.DELETE("/users/:id", userHandler.Delete)
	admin.PUT("/users/:id/status", userHandler.UpdateStatus)
	admin.GET("/roles", roleHandler.List)
	admin.GET("/roles/search", roleHandler.Search)
	admin.GET("/roles/:id", roleHandler.Get)
	admin.PUT("/roles/:id", roleHandler.UpdateDescription)

	staff := v1.Group("/staff")
	staff.GET("/users", userHandler.List)
	staff.GET("/users/:id", userHandler.Get)

	v1.GET("/customer/profile", authHandler.Profile)

	grants := v1.Group("/user-roles")
	grants.GET("", grantHandler.List)
	grants.POST("", grantHandler.Assign)
	grants.GET("/user/:userId", grantHandler.ListByUser)
	grants.GET("/role/:roleId", grantHandler.ListByRole)
	grants.GET("/user/:userId/role/:roleId", grantHandler.Get)
	grants.PUT("/user/:userId/role/:oldRoleId", grantHandler.Replace)
	grants.DELETE("/user/:userId/role/:roleId", grantHandler.Revoke)

	return e
}

// requestLogger writes one structured access log line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Status >= 500 {
				evt = log.Error()
			} else if v.Status >= 400 {
				evt = log.Warn()
			}
			if p, ok := middleware.PrincipalFrom(c); ok {
				evt = evt.Str("user", p.Username)
			}
			evt.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
