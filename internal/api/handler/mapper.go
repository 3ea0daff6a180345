package handler

import (
	"github.com/customersms/customer-service/internal/core/domain"
	"github.com/customersms/customer-service/internal/core/ports"
)

// --- Service result → HTTP response ---

type userResponse struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	FullName    string   `json:"fullName"`
	PhoneNumber string   `json:"phoneNumber,omitempty"`
	Address     string   `json:"address,omitempty"`
	Status      string   `json:"status"`
	Roles       []string `json:"roles"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

type roleResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

type grantResponse struct {
	UserID          string `json:"userId"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	FullName        string `json:"fullName"`
	RoleID          string `json:"roleId"`
	RoleName        string `json:"roleName"`
	RoleDescription string `json:"roleDescription"`
}

type loginResponse struct {
	Token     string   `json:"token"`
	TokenType string   `json:"tokenType"`
	ExpiresAt string   `json:"expiresAt"`
	UserID    string   `json:"userId"`
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	FullName  string   `json:"fullName"`
	Roles     []string `json:"roles"`
}

func roleStrings(names []domain.RoleName) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, string(n))
	}
	return out
}

func toUserResponse(d *ports.UserDetail) userResponse {
	return userResponse{
		ID:          d.ID,
		Username:    d.Username,
		Email:       d.Email,
		FullName:    d.FullName,
		PhoneNumber: d.PhoneNumber,
		Address:     d.Address,
		Status:      string(d.Status),
		Roles:       roleStrings(d.Roles),
		CreatedAt:   FormatTime(d.CreatedAt),
		UpdatedAt:   FormatTime(d.UpdatedAt),
	}
}

func toRoleResponse(r *domain.Role) roleResponse {
	return roleResponse{
		ID:          r.ID,
		Name:        string(r.Name),
		Description: r.Description,
		CreatedAt:   FormatTime(r.CreatedAt),
		UpdatedAt:   FormatTime(r.UpdatedAt),
	}
}

func toGrantResponse(g *domain.RoleGrant) grantResponse {
	return grantResponse{
		UserID:          g.User.ID,
		Username:        g.User.Username,
		Email:           g.User.Email,
		FullName:        g.User.FullName,
		RoleID:          g.Role.ID,
		RoleName:        string(g.Role.Name),
		RoleDescription: g.Role.Description,
	}
}

func toLoginResponse(r *ports.LoginResult) loginResponse {
	return loginResponse{
		Token:     r.Token,
		TokenType: "Bearer",
		ExpiresAt: FormatTime(r.ExpiresAt),
		UserID:    r.User.ID,
		Username:  r.User.Username,
		Email:     r.User.Email,
		FullName:  r.User.FullName,
		Roles:     roleStrings(r.Roles),
	}
}
