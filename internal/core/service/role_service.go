package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/customersms/customer-service/internal/core/domain"
	"github.com/customersms/customer-service/internal/core/ports"
)

const maxRoleDescriptionLen = 255

type roleService struct {
	repo  ports.RoleRepository
	cache *RoleCache
	log   zerolog.Logger
}

// NewRoleService returns a RoleService that reads through cache.
func NewRoleService(repo ports.RoleRepository, cache *RoleCache, log zerolog.Logger) ports.RoleService {
	if cache == nil {
		cache = NewRoleCache(0, 0)
	}
	return &roleService{repo: repo, cache: cache, log: log}
}

func (s *roleService) ListRoles(ctx context.Context) ([]*domain.Role, error) {
	roles, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	for _, r := range roles {
		s.cache.Put(r)
	}
	return roles, nil
}

func (s *roleService) GetRole(ctx context.Context, id string) (*domain.Role, error) {
	if r, ok := s.cache.GetByID(id); ok {
		return r, nil
	}
	r, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}
	s.cache.Put(r)
	return r, nil
}

// FindByName accepts "admin", "ADMIN" and "ROLE_ADMIN" alike.
func (s *roleService) FindByName(ctx context.Context, name string) (*domain.Role, error) {
	rn, err := domain.ParseRoleName(name)
	if err != nil {
		return nil, domain.NewValidationError("name", fmt.Sprintf("must be one of %s", roleNameList()))
	}
	return s.findByName(ctx, rn)
}

func (s *roleService) Exists(ctx context.Context, name domain.RoleName) (bool, error) {
	_, err := s.findByName(ctx, name)
	if errors.Is(err, domain.ErrRoleNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *roleService) findByName(ctx context.Context, name domain.RoleName) (*domain.Role, error) {
	if r, ok := s.cache.GetByName(name); ok {
		return r, nil
	}
	r, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find role %s: %w", name, err)
	}
	s.cache.Put(r)
	return r, nil
}

func (s *roleService) UpdateDescription(ctx context.Context, id, description string) (*domain.Role, error) {
	description = strings.TrimSpace(description)
	if len(description) > maxRoleDescriptionLen {
		return nil, domain.NewValidationError("description", fmt.Sprintf("must be at most %d characters", maxRoleDescriptionLen))
	}

	r, err := s.repo.UpdateDescription(ctx, id, description)
	if err != nil {
		return nil, fmt.Errorf("update role description: %w", err)
	}
	s.cache.Invalidate(r)
	s.log.Info().Str("role_id", r.ID).Str("role", string(r.Name)).Msg("role description updated")
	return r, nil
}

func roleNameList() string {
	names := domain.AllRoleNames()
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return strings.Join(out, ", ")
}
