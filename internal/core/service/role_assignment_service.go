package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/customersms/customer-service/internal/api/metrics"
	"github.com/customersms/customer-service/internal/core/domain"
	"github.com/customersms/customer-service/internal/core/ports"
)

type roleAssignmentService struct {
	users    ports.UserRepository
	roleRepo ports.RoleRepository
	roles    ports.RoleService
	tx       ports.Transactor
	audit    ports.GrantAuditRepository
	log      zerolog.Logger
}

// NewRoleAssignmentService returns a RoleAssignmentService. Each mutation
// runs inside one transaction of tx; audit may be nil.
func NewRoleAssignmentService(
	users ports.UserRepository,
	roleRepo ports.RoleRepository,
	roles ports.RoleService,
	tx ports.Transactor,
	audit ports.GrantAuditRepository,
	log zerolog.Logger,
) ports.RoleAssignmentService {
	return &roleAssignmentService{
		users:    users,
		roleRepo: roleRepo,
		roles:    roles,
		tx:       tx,
		audit:    audit,
		log:      log,
	}
}

// AssignRole adds roleID to the user's grants.
func (s *roleAssignmentService) AssignRole(ctx context.Context, userID, roleID string) (*domain.RoleGrant, error) {
	var (
		grant *domain.RoleGrant
		event *domain.GrantEvent
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.loadUser(ctx, userID)
		if err != nil {
			return err
		}
		role, err := s.roles.GetRole(ctx, roleID)
		if err != nil {
			return err
		}
		if user.IsDeleted() {
			return domain.ErrUserDeleted
		}
		if user.HasRole(role.ID) {
			return domain.ErrDuplicateGrant
		}

		next := append(append(make([]string, 0, len(user.RoleIDs)+1), user.RoleIDs...), role.ID)
		if err := s.users.SetRoles(ctx, user.ID, next); err != nil {
			return err
		}
		user.RoleIDs = next

		grant = &domain.RoleGrant{User: user, Role: role}
		event = newGrantEvent(ctx, domain.GrantAssigned, user, role, nil)
		return nil
	})
	s.observe("assign", err)
	if err != nil {
		return nil, fmt.Errorf("assign role: %w", err)
	}

	s.record(ctx, event)
	s.log.Info().Str("user_id", userID).Str("role", string(grant.Role.Name)).Str("actor", event.Actor).Msg("role assigned")
	return grant, nil
}

// UpdateUserRole replaces oldRoleID with newRoleID in a single write. Nothing
// changes when any precondition fails.
func (s *roleAssignmentService) UpdateUserRole(ctx context.Context, userID, oldRoleID, newRoleID string) (*domain.RoleGrant, error) {
	var (
		grant *domain.RoleGrant
		event *domain.GrantEvent
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.loadUser(ctx, userID)
		if err != nil {
			return err
		}
		oldRole, err := s.roles.GetRole(ctx, oldRoleID)
		if err != nil {
			return err
		}
		newRole, err := s.roles.GetRole(ctx, newRoleID)
		if err != nil {
			return err
		}
		if user.IsDeleted() {
			return domain.ErrUserDeleted
		}
		if !user.HasRole(oldRole.ID) {
			return domain.ErrMissingOldGrant
		}
		if user.HasRole(newRole.ID) {
			return domain.ErrDuplicateGrant
		}
		if err := s.guardLastAdmin(ctx, oldRole); err != nil {
			return err
		}

		next := make([]string, len(user.RoleIDs))
		for i, id := range user.RoleIDs {
			if id == oldRole.ID {
				id = newRole.ID
			}
			next[i] = id
		}
		if err := s.users.SetRoles(ctx, user.ID, next); err != nil {
			return err
		}
		user.RoleIDs = next

		grant = &domain.RoleGrant{User: user, Role: newRole}
		event = newGrantEvent(ctx, domain.GrantReplaced, user, newRole, oldRole)
		return nil
	})
	s.observe("replace", err)
	if err != nil {
		return nil, fmt.Errorf("update user role: %w", err)
	}

	s.record(ctx, event)
	s.log.Info().
		Str("user_id", userID).
		Str("from", string(event.PreviousRoleName)).
		Str("to", string(event.RoleName)).
		Str("actor", event.Actor).
		Msg("role replaced")
	return grant, nil
}

// RevokeRole removes roleID from the user's grants.
func (s *roleAssignmentService) RevokeRole(ctx context.Context, userID, roleID string) error {
	var event *domain.GrantEvent
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.loadUser(ctx, userID)
		if err != nil {
			return err
		}
		role, err := s.roles.GetRole(ctx, roleID)
		if err != nil {
			return err
		}
		if user.IsDeleted() {
			return domain.ErrUserDeleted
		}
		if !user.HasRole(role.ID) {
			return domain.ErrMissingGrant
		}
		if err := s.guardLastAdmin(ctx, role); err != nil {
			return err
		}

		next := user.RolesWithout(role.ID)
		if err := s.users.SetRoles(ctx, user.ID, next); err != nil {
			return err
		}
		user.RoleIDs = next

		event = newGrantEvent(ctx, domain.GrantRevoked, user, role, nil)
		return nil
	})
	s.observe("revoke", err)
	if err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}

	s.record(ctx, event)
	s.log.Info().Str("user_id", userID).Str("role", string(event.RoleName)).Str("actor", event.Actor).Msg("role revoked")
	return nil
}

// guardLastAdmin refuses to shrink ADMIN membership below one holder. The
// ADMIN role is locked before counting, so concurrent callers serialize on
// it and the loser re-counts after the winner commits.
func (s *roleAssignmentService) guardLastAdmin(ctx context.Context, losing *domain.Role) error {
	if losing.Name != domain.RoleAdmin {
		return nil
	}
	if err := s.roleRepo.Lock(ctx, losing.ID); err != nil {
		return err
	}
	holders, err := s.users.CountByRole(ctx, losing.ID)
	if err != nil {
		return err
	}
	if holders <= 1 {
		return domain.ErrLastAdminProtected
	}
	return nil
}

func (s *roleAssignmentService) loadUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ListGrants pages through user/role pairs. roleName matches role names
// partially and case-insensitively.
func (s *roleAssignmentService) ListGrants(ctx context.Context, in ports.ListGrantsInput) (*ports.Page[*domain.RoleGrant], error) {
	page := in.Page.Normalize()

	all, err := s.roles.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	byID := make(map[string]*domain.Role, len(all))
	for _, r := range all {
		byID[r.ID] = r
	}

	filter := ports.GrantFilter{Keyword: strings.TrimSpace(in.Keyword), Page: page}
	if q := strings.ToUpper(strings.TrimSpace(in.RoleName)); q != "" {
		q = strings.TrimPrefix(q, "ROLE_")
		filter.RoleIDs = []string{}
		for _, r := range all {
			if strings.Contains(string(r.Name), q) {
				filter.RoleIDs = append(filter.RoleIDs, r.ID)
			}
		}
		if len(filter.RoleIDs) == 0 {
			return ports.NewPage[*domain.RoleGrant](nil, page, 0), nil
		}
	}

	rows, total, err := s.users.ListGrants(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	return ports.NewPage(s.toGrants(rows, byID), page, total), nil
}

// GetGrant returns the pair when the user holds the role.
func (s *roleAssignmentService) GetGrant(ctx context.Context, userID, roleID string) (*domain.RoleGrant, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get grant: %w", err)
	}
	role, err := s.roles.GetRole(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("get grant: %w", err)
	}
	if user.IsDeleted() {
		return nil, fmt.Errorf("get grant: %w", domain.ErrUserDeleted)
	}
	if !user.HasRole(role.ID) {
		return nil, fmt.Errorf("get grant: %w", domain.ErrMissingGrant)
	}
	return &domain.RoleGrant{User: user, Role: role}, nil
}

func (s *roleAssignmentService) ListRolesOfUser(ctx context.Context, userID string, page ports.PageRequest) (*ports.Page[*domain.RoleGrant], error) {
	page = page.Normalize()

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list roles of user: %w", err)
	}
	if user.IsDeleted() {
		return nil, fmt.Errorf("list roles of user: %w", domain.ErrUserDeleted)
	}

	grants := make([]*domain.RoleGrant, 0, len(user.RoleIDs))
	for _, id := range user.RoleIDs {
		role, err := s.roles.GetRole(ctx, id)
		if errors.Is(err, domain.ErrRoleNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list roles of user: %w", err)
		}
		grants = append(grants, &domain.RoleGrant{User: user, Role: role})
	}

	total := int64(len(grants))
	from := min(page.Offset(), len(grants))
	to := min(from+page.Size, len(grants))
	return ports.NewPage(grants[from:to], page, total), nil
}

func (s *roleAssignmentService) ListUsersOfRole(ctx context.Context, roleID string, page ports.PageRequest) (*ports.Page[*domain.RoleGrant], error) {
	page = page.Normalize()

	role, err := s.roles.GetRole(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("list users of role: %w", err)
	}
	rows, total, err := s.users.ListGrants(ctx, ports.GrantFilter{RoleIDs: []string{role.ID}, Page: page})
	if err != nil {
		return nil, fmt.Errorf("list users of role: %w", err)
	}
	return ports.NewPage(s.toGrants(rows, map[string]*domain.Role{role.ID: role}), page, total), nil
}

func (s *roleAssignmentService) toGrants(rows []ports.GrantRow, roles map[string]*domain.Role) []*domain.RoleGrant {
	out := make([]*domain.RoleGrant, 0, len(rows))
	for _, row := range rows {
		role, ok := roles[row.RoleID]
		if !ok {
			s.log.Warn().Str("role_id", row.RoleID).Msg("grant references unknown role")
			continue
		}
		out = append(out, &domain.RoleGrant{User: row.User, Role: role})
	}
	return out
}

func (s *roleAssignmentService) record(ctx context.Context, event *domain.GrantEvent) {
	if s.audit == nil || event == nil {
		return
	}
	if err := s.audit.InsertEvent(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("user_id", event.UserID).Str("action", string(event.Action)).Msg("failed to write grant audit event")
	}
}

func (s *roleAssignmentService) observe(operation string, err error) {
	metrics.RoleGrantMutationsTotal.WithLabelValues(operation, mutationResult(err)).Inc()
}

func mutationResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, domain.ErrRoleNotFound):
		return "role_not_found"
	case errors.Is(err, domain.ErrUserDeleted):
		return "user_deleted"
	case errors.Is(err, domain.ErrDuplicateGrant):
		return "duplicate_grant"
	case errors.Is(err, domain.ErrMissingGrant), errors.Is(err, domain.ErrMissingOldGrant):
		return "missing_grant"
	case errors.Is(err, domain.ErrLastAdminProtected):
		return "last_admin"
	default:
		return "error"
	}
}

func newGrantEvent(ctx context.Context, action domain.GrantAction, user *domain.User, role, previous *domain.Role) *domain.GrantEvent {
	ev := &domain.GrantEvent{
		Action:     action,
		UserID:     user.ID,
		Username:   user.Username,
		RoleID:     role.ID,
		RoleName:   role.Name,
		Actor:      actorFrom(ctx),
		OccurredAt: time.Now().UTC(),
	}
	if previous != nil {
		ev.PreviousRoleID = previous.ID
		ev.PreviousRoleName = previous.Name
	}
	return ev
}
