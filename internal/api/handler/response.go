package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/customersms/customer-service/internal/core/domain"
	"github.com/customersms/customer-service/internal/core/ports"
)

// DisplayTimeLayout renders timestamps as dd/MM/yyyy HH:mm:ss.
const DisplayTimeLayout = "02/01/2006 15:04:05"

// Envelope is the body of every API response, success or failure.
type Envelope struct {
	Success   bool                    `json:"success"`
	Message   string                  `json:"message"`
	Data      any                     `json:"data,omitempty"`
	Errors    []domain.FieldViolation `json:"errors,omitempty"`
	Timestamp string                  `json:"timestamp"`
}

// ErrorEnvelope builds the failure envelope rendered by the error handler.
func ErrorEnvelope(message string, fields []domain.FieldViolation) Envelope {
	return Envelope{Success: false, Message: message, Errors: fields, Timestamp: FormatTime(time.Now())}
}

func respond(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, Envelope{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: FormatTime(time.Now()),
	})
}

// FormatTime renders t in DisplayTimeLayout, or "" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(DisplayTimeLayout)
}

type pagination struct {
	CurrentPage int   `json:"currentPage"`
	PageSize    int   `json:"pageSize"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int64 `json:"totalItems"`
}

type pageResponse[T any] struct {
	Items      []T        `json:"items"`
	Pagination pagination `json:"pagination"`
}

func toPageResponse[S, T any](p *ports.Page[S], conv func(S) T) pageResponse[T] {
	items := make([]T, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, conv(it))
	}
	return pageResponse[T]{
		Items: items,
		Pagination: pagination{
			CurrentPage: p.Page,
			PageSize:    p.Size,
			TotalPages:  p.TotalPages,
			TotalItems:  p.TotalItems,
		},
	}
}
