package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/customersms/customer-service/internal/api/handler"
	"github.com/customersms/customer-service/internal/core/domain"
)

// errorStatus maps the domain taxonomy onto HTTP codes. Order does not
// matter: a domain error matches at most one entry.
var errorStatus = []struct {
	err    error
	status int
}{
	{domain.ErrInvalidCredentials, http.StatusUnauthorized},
	{domain.ErrUnauthenticated, http.StatusUnauthorized},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrTooManyAttempts, http.StatusTooManyRequests},

	{domain.ErrDuplicateUsername, http.StatusBadRequest},
	{domain.ErrDuplicateEmail, http.StatusBadRequest},
	{domain.ErrPasswordMismatch, http.StatusBadRequest},
	{domain.ErrIncorrectPassword, http.StatusBadRequest},
	{domain.ErrInvalidRoleName, http.StatusBadRequest},
	{domain.ErrInvalidStatus, http.StatusBadRequest},

	{domain.ErrUserNotFound, http.StatusNotFound},
	{domain.ErrRoleNotFound, http.StatusNotFound},
	{domain.ErrUserDeleted, http.StatusNotFound},
	{domain.ErrMissingGrant, http.StatusNotFound},
	{domain.ErrMissingOldGrant, http.StatusNotFound},

	{domain.ErrDuplicateGrant, http.StatusConflict},
	{domain.ErrLastAdminProtected, http.StatusConflict},
	{domain.ErrAdminDeletion, http.StatusConflict},
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that renders every
// failure in the response envelope. Known domain errors keep their own
// message; anything else is logged and reported as a generic 500.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, handler.Envelope) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, handler.ErrorEnvelope(domain.ErrValidationFailed.Error(), ve.Fields)
	}

	// Router 404/405, body size limits and the like.
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, handler.ErrorEnvelope(fmt.Sprintf("%v", he.Message), nil)
	}

	// The registry error is a misconfiguration, so it falls through to 500.
	if !errors.Is(err, domain.ErrRoleRegistry) {
		for _, m := range errorStatus {
			if errors.Is(err, m.err) {
				return m.status, handler.ErrorEnvelope(m.err.Error(), nil)
			}
		}
	}

	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("unhandled error")

	return http.StatusInternalServerError, handler.ErrorEnvelope("internal server error", nil)
}
