package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/customersms/customer-service/internal/core/ports"
)

// RoleHandler serves the role registry.
type RoleHandler struct {
	service ports.RoleService
}

func NewRoleHandler(service ports.RoleService) *RoleHandler {
	return &RoleHandler{service: service}
}

type updateRoleRequest struct {
	Description string `json:"description" validate:"max=255"`
}

// List handles GET /admin/roles.
//
// @Summary      List roles
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Envelope{data=[]roleResponse}
// @Router       /admin/roles [get]
func (h *RoleHandler) List(c echo.Context) error {
	roles, err := h.service.ListRoles(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]roleResponse, 0, len(roles))
	for _, r := range roles {
		out = append(out, toRoleResponse(r))
	}
	return respond(c, http.StatusOK, "roles retrieved", out)
}

// Get handles GET /admin/roles/:id.
//
// @Summary      Get a role
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Role id"
// @Success      200  {object}  Envelope{data=roleResponse}
// @Failure      404  {object}  Envelope
// @Router       /admin/roles/{id} [get]
func (h *RoleHandler) Get(c echo.Context) error {
	role, err := h.service.GetRole(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "role retrieved", toRoleResponse(role))
}

// Search handles GET /admin/roles/search?name=.
//
// @Summary      Find a role by name
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Param        name  query     string  true  "ADMIN, STAFF or CUSTOMER (ROLE_ prefix accepted)"
// @Success      200   {object}  Envelope{data=roleResponse}
// @Failure      400   {object}  Envelope
// @Failure      404   {object}  Envelope
// @Router       /admin/roles/search [get]
func (h *RoleHandler) Search(c echo.Context) error {
	role, err := h.service.FindByName(c.Request().Context(), c.QueryParam("name"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "role retrieved", toRoleResponse(role))
}

// UpdateDescription handles PUT /admin/roles/:id. Role names are fixed;
// only the description can change.
//
// @Summary      Update a role description
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "Role id"
// @Param        body  body      updateRoleRequest  true  "New description"
// @Success      200   {object}  Envelope{data=roleResponse}
// @Failure      400   {object}  Envelope
// @Failure      404   {object}  Envelope
// @Router       /admin/roles/{id} [put]
func (h *RoleHandler) UpdateDescription(c echo.Context) error {
	var req updateRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	role, err := h.service.UpdateDescription(c.Request().Context(), c.Param("id"), req.Description)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "role updated", toRoleResponse(role))
}
