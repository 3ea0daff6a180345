package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/customersms/customer-service/internal/core/ports"
)

// UserRoleHandler serves role grant administration.
type UserRoleHandler struct {
	service ports.RoleAssignmentService
}

func NewUserRoleHandler(service ports.RoleAssignmentService) *UserRoleHandler {
	return &UserRoleHandler{service: service}
}

type assignRoleRequest struct {
	UserID string `json:"userId" validate:"required"`
	RoleID string `json:"roleId" validate:"required"`
}

type replaceRoleRequest struct {
	NewRoleID string `json:"newRoleId" validate:"required"`
}

// List handles GET /user-roles.
//
// @Summary      List role grants
// @Tags         user-roles
// @Produce      json
// @Security     BearerAuth
// @Param        keyword   query     string  false  "Partial match on username, email or full name"
// @Param        roleName  query     string  false  "Partial match on role name"
// @Param        page      query     int     false  "0-based page index"
// @Param        size      query     int     false  "Page size (max 100)"
// @Success      200       {object}  Envelope{data=pageResponse[grantResponse]}
// @Router       /user-roles [get]
func (h *UserRoleHandler) List(c echo.Context) error {
	page, err := pageParams(c)
	if err != nil {
		return err
	}

	grants, err := h.service.ListGrants(c.Request().Context(), ports.ListGrantsInput{
		Keyword:  c.QueryParam("keyword"),
		RoleName: c.QueryParam("roleName"),
		Page:     page,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "role grants retrieved", toPageResponse(grants, toGrantResponse))
}

// ListByUser handles GET /user-roles/user/:userId.
//
// @Summary      List the roles of a user
// @Tags         user-roles
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path      string  true   "User id"
// @Param        page    query     int     false  "0-based page index"
// @Param        size    query     int     false  "Page size (max 100)"
// @Success      200     {object}  Envelope{data=pageResponse[grantResponse]}
// @Failure      404     {object}  Envelope
// @Router       /user-roles/user/{userId} [get]
func (h *UserRoleHandler) ListByUser(c echo.Context) error {
	page, err := pageParams(c)
	if err != nil {
		return err
	}
	grants, err := h.service.ListRolesOfUser(c.Request().Context(), c.Param("userId"), page)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "role grants retrieved", toPageResponse(grants, toGrantResponse))
}

// ListByRole handles GET /user-roles/role/:roleId.
//
// @Summary      List the holders of a role
// @Tags         user-roles
// @Produce      json
// @Security     BearerAuth
// @Param        roleId  path      string  true   "Role id"
// @Param        page    query     int     false  "0-based page index"
// @Param        size    query     int     false  "Page size (max 100)"
// @Success      200     {object}  Envelope{data=pageResponse[grantResponse]}
// @Failure      404     {object}  Envelope
// @Router       /user-roles/role/{roleId} [get]
func (h *UserRoleHandler) ListByRole(c echo.Context) error {
	page, err := pageParams(c)
	if err != nil {
		return err
	}
	grants, err := h.service.ListUsersOfRole(c.Request().Context(), c.Param("roleId"), page)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "role grants retrieved", toPageResponse(grants, toGrantResponse))
}

// Get handles GET /user-roles/user/:userId/role/:roleId.
//
// @Summary      Get a role grant
// @Tags         user-roles
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path      string  true  "User id"
// @Param        roleId  path      string  true  "Role id"
// @Success      200     {object}  Envelope{data=grantResponse}
// @Failure      404     {object}  Envelope
// @Router       /user-roles/user/{userId}/role/{roleId} [get]
func (h *UserRoleHandler) Get(c echo.Context) error {
	grant, err := h.service.GetGrant(c.Request().Context(), c.Param("userId"), c.Param("roleId"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "role grant retrieved", toGrantResponse(grant))
}

// Assign handles POST /user-roles.
//
// @Summary      Grant a role to a user
// @Tags         user-roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      assignRoleRequest  true  "User and role ids"
// @Success      201   {object}  Envelope{data=grantResponse}
// @Failure      400   {object}  Envelope
// @Failure      404   {object}  Envelope
// @Failure      409   {object}  Envelope
// @Router       /user-roles [post]
func (h *UserRoleHandler) Assign(c echo.Context) error {
	var req assignRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	grant, err := h.service.AssignRole(c.Request().Context(), req.UserID, req.RoleID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "role assigned", toGrantResponse(grant))
}

// Replace handles PUT /user-roles/user/:userId/role/:oldRoleId.
//
// @Summary      Replace one of a user's roles
// @Tags         user-roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        userId     path      string              true  "User id"
// @Param        oldRoleId  path      string              true  "Role id being replaced"
// @Param        body       body      replaceRoleRequest  true  "Replacement role id"
// @Success      200        {object}  Envelope{data=grantResponse}
// @Failure      404        {object}  Envelope
// @Failure      409        {object}  Envelope
// @Router       /user-roles/user/{userId}/role/{oldRoleId} [put]
func (h *UserRoleHandler) Replace(c echo.Context) error {
	var req replaceRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	grant, err := h.service.UpdateUserRole(c.Request().Context(), c.Param("userId"), c.Param("oldRoleId"), req.NewRoleID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "role replaced", toGrantResponse(grant))
}

// Revoke handles DELETE /user-roles/user/:userId/role/:roleId.
//
// @Summary      Revoke a role from a user
// @Tags         user-roles
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path      string  true  "User id"
// @Param        roleId  path      string  true  "Role id"
// @Success      200     {object}  Envelope
// @Failure      404     {object}  Envelope
// @Failure      409     {object}  Envelope
// @Router       /user-roles/user/{userId}/role/{roleId} [delete]
func (h *UserRoleHandler) Revoke(c echo.Context) error {
	if err := h.service.RevokeRole(c.Request().Context(), c.Param("userId"), c.Param("roleId")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "role revoked", nil)
}
