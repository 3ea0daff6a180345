package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/customersms/customer-service/internal/core/domain"
	"github.com/customersms/customer-service/internal/core/ports"
)

// UserHandler serves account administration for admins and staff.
type UserHandler struct {
	service ports.UserService
}

func NewUserHandler(service ports.UserService) *UserHandler {
	return &UserHandler{service: service}
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE INACTIVE active inactive"`
}

// List handles GET /admin/users and GET /staff/users.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        keyword  query     string  false  "Partial match on username, email or full name"
// @Param        page     query     int     false  "0-based page index"
// @Param        size     query     int     false  "Page size (max 100)"
// @Success      200      {object}  Envelope{data=pageResponse[userResponse]}
// @Failure      401      {object}  Envelope
// @Failure      403      {object}  Envelope
// @Router       /admin/users [get]
func (h *UserHandler) List(c echo.Context) error {
	page, err := pageParams(c)
	if err != nil {
		return err
	}

	users, err := h.service.ListUsers(c.Request().Context(), c.QueryParam("keyword"), page)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "users retrieved", toPageResponse(users, toUserResponse))
}

// Get handles GET /admin/users/:id and GET /staff/users/:id.
//
// @Summary      Get a user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  Envelope{data=userResponse}
// @Failure      404  {object}  Envelope
// @Router       /admin/users/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	user, err := h.service.GetUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "user retrieved", toUserResponse(user))
}

// Update handles PUT /admin/users/:id.
//
// @Summary      Update a user's profile
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                true  "User id"
// @Param        body  body      updateProfileRequest  true  "Profile fields"
// @Success      200   {object}  Envelope{data=userResponse}
// @Failure      400   {object}  Envelope
// @Failure      404   {object}  Envelope
// @Router       /admin/users/{id} [put]
func (h *UserHandler) Update(c echo.Context) error {
	var req updateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.service.UpdateProfile(c.Request().Context(), c.Param("id"), ports.UpdateProfileInput{
		FullName:    req.FullName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "user updated", toUserResponse(user))
}

// UpdateStatus handles PUT /admin/users/:id/status.
//
// @Summary      Activate or deactivate a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string               true  "User id"
// @Param        body  body      updateStatusRequest  true  "ACTIVE or INACTIVE"
// @Success      200   {object}  Envelope{data=userResponse}
// @Failure      400   {object}  Envelope
// @Failure      404   {object}  Envelope
// @Router       /admin/users/{id}/status [put]
func (h *UserHandler) UpdateStatus(c echo.Context) error {
	var req updateStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	status, err := domain.ParseUserStatus(req.Status)
	if err != nil {
		return err
	}

	user, err := h.service.UpdateStatus(c.Request().Context(), c.Param("id"), status)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "user status updated", toUserResponse(user))
}

// Delete handles DELETE /admin/users/:id. The account is kept with status
// DELETED.
//
// @Summary      Soft delete a user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  Envelope
// @Failure      404  {object}  Envelope
// @Failure      409  {object}  Envelope
// @Router       /admin/users/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	if err := h.service.DeleteUser(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "user deleted", nil)
}
