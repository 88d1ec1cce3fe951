// Package rbac manages roles, role bindings and the resolution of a
// user's effective permissions, with a Redis write-through cache in front
// of the relational store.
package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/filmgate/auth-service/internal/storage"
)

// DefaultPermission is granted to authenticated users that hold no role
// bindings.
const DefaultPermission = "view_content"

var (
	ErrRoleNotFound    = errors.New("role not found")
	ErrRoleExists      = errors.New("role already exists")
	ErrBindingExists   = errors.New("role already assigned to user")
	ErrBindingNotFound = errors.New("role not assigned to user")
	ErrUserNotFound    = errors.New("user not found")
)

// RoleRepository is the slice of storage the rbac service needs.
type RoleRepository interface {
	Create(ctx context.Context, role *storage.Role) error
	GetByID(ctx context.Context, id uuid.UUID) (*storage.Role, error)
	GetByName(ctx context.Context, name string) (*storage.Role, error)
	List(ctx context.Context) ([]storage.Role, error)
	Update(ctx context.Context, role *storage.Role) error
	Delete(ctx context.Context, id uuid.UUID) error
	Bind(ctx context.Context, userID, roleID uuid.UUID) error
	Unbind(ctx context.Context, userID, roleID uuid.UUID) error
	PermissionsForUser(ctx context.Context, userID uuid.UUID) ([]string, error)
	RoleNamesForUser(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// UserGetter loads users for superuser checks.
type UserGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*storage.User, error)
}

// PermissionCache caches resolved permission lists per user.
type PermissionCache interface {
	Get(ctx context.Context, userID uuid.UUID) ([]string, bool, error)
	Set(ctx context.Context, userID uuid.UUID, permissions []string) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// Service implements role CRUD, bindings and permission resolution.
type Service struct {
	roles  RoleRepository
	users  UserGetter
	cache  PermissionCache
	logger *slog.Logger
}

func NewService(roles RoleRepository, users UserGetter, cache PermissionCache, logger *slog.Logger) *Service {
	return &Service{roles: roles, users: users, cache: cache, logger: logger}
}

// CreateRole adds a role with its permission strings.
func (s *Service) CreateRole(ctx context.Context, name, description string, permissions []string) (*storage.Role, error) {
	role := &storage.Role{
		ID:          uuid.New(),
		Name:        name,
		Permissions: permissions,
	}
	if description != "" {
		role.Description = &description
	}
	if err := s.roles.Create(ctx, role); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrRoleExists
		}
		return nil, fmt.Errorf("create role: %w", err)
	}
	s.logger.Info("role created", "role", name)
	return role, nil
}

// GetRole loads a role by id.
func (s *Service) GetRole(ctx context.Context, id uuid.UUID) (*storage.Role, error) {
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("get role: %w", err)
	}
	return role, nil
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]storage.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// UpdateRoleInput holds partial role changes; nil means leave untouched.
type UpdateRoleInput struct {
	Name        *string
	Description *string
	Permissions *[]string
}

// UpdateRole applies partial changes to a role. Users holding the role see
// the new permissions once their cache entry expires.
func (s *Service) UpdateRole(ctx context.Context, id uuid.UUID, in UpdateRoleInput) (*storage.Role, error) {
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("get role: %w", err)
	}

	if in.Name != nil {
		role.Name = *in.Name
	}
	if in.Description != nil {
		role.Description = in.Description
	}
	if in.Permissions != nil {
		role.Permissions = *in.Permissions
	}

	if err := s.roles.Update(ctx, role); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrRoleExists
		}
		return nil, fmt.Errorf("update role: %w", err)
	}
	s.logger.Info("role updated", "role_id", id)
	return role, nil
}

// DeleteRole removes a role; its bindings go with it.
func (s *Service) DeleteRole(ctx context.Context, id uuid.UUID) error {
	if err := s.roles.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("delete role: %w", err)
	}
	s.logger.Info("role deleted", "role_id", id)
	return nil
}

// AssignRole binds a role to a user. The user's permission cache is
// invalidated before the call returns, so no reader can observe the old
// permission set after a successful assignment.
func (s *Service) AssignRole(ctx context.Context, userID, roleID uuid.UUID) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}
	if _, err := s.roles.GetByID(ctx, roleID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("load role: %w", err)
	}

	if err := s.roles.Bind(ctx, userID, roleID); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return ErrBindingExists
		}
		return fmt.Errorf("bind role: %w", err)
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		return fmt.Errorf("invalidate permission cache: %w", err)
	}
	s.logger.Info("role assigned", "user_id", userID, "role_id", roleID)
	return nil
}

// RevokeRole removes a role binding, invalidating the user's permission
// cache before acknowledging.
func (s *Service) RevokeRole(ctx context.Context, userID, roleID uuid.UUID) error {
	if err := s.roles.Unbind(ctx, userID, roleID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrBindingNotFound
		}
		return fmt.Errorf("unbind role: %w", err)
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		return fmt.Errorf("invalidate permission cache: %w", err)
	}
	s.logger.Info("role revoked", "user_id", userID, "role_id", roleID)
	return nil
}

// EffectivePermissions resolves the permission set used for access
// decisions. Superusers get the wildcard, users with no grants fall back
// to the default permission, and the result is cached for an hour.
func (s *Service) EffectivePermissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	cached, ok, err := s.cache.Get(ctx, userID)
	if err != nil {
		// A cache failure degrades to a store read.
		s.logger.Warn("permission cache read failed", "user_id", userID, "error", err)
	} else if ok {
		return cached, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	var permissions []string
	if user.IsSuperuser {
		permissions = []string{"*"}
	} else {
		permissions, err = s.roles.PermissionsForUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("resolve permissions: %w", err)
		}
		if len(permissions) == 0 {
			permissions = []string{DefaultPermission}
		}
	}

	if err := s.cache.Set(ctx, userID, permissions); err != nil {
		s.logger.Warn("permission cache write failed", "user_id", userID, "error", err)
	}
	return permissions, nil
}

// Permissions returns the permissions granted through role bindings only,
// with no superuser wildcard, no fallback and no caching.
func (s *Service) Permissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	permissions, err := s.roles.PermissionsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve permissions: %w", err)
	}
	return permissions, nil
}

// UserRoles returns the user's role names. Superusers carry the synthetic
// "superuser" role; a user with no bindings is reported as "user".
func (s *Service) UserRoles(ctx context.Context, userID uuid.UUID) ([]string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	names, err := s.roles.RoleNamesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve roles: %w", err)
	}

	if user.IsSuperuser {
		names = append([]string{"superuser"}, names...)
	}
	if len(names) == 0 {
		names = []string{"user"}
	}
	return names, nil
}
