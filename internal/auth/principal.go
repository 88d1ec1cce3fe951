package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/filmgate/auth-service/internal/storage"
)

// Principal is the resolved identity of a request: the user, their
// effective permissions and role names. Handlers and middleware read it
// from the request context.
type Principal struct {
	ID          uuid.UUID
	Login       string
	MFAVerified bool
	IsSuperuser bool
	Permissions []string
	Roles       []string
}

// HasPermission reports whether the principal may perform an action.
// Superusers and the wildcard permission grant everything.
func (p *Principal) HasPermission(permission string) bool {
	if p.IsSuperuser {
		return true
	}
	for _, have := range p.Permissions {
		if have == "*" || have == permission {
			return true
		}
	}
	return false
}

// PermissionResolver yields a user's effective permissions and role names.
type PermissionResolver interface {
	EffectivePermissions(ctx context.Context, userID uuid.UUID) ([]string, error)
	UserRoles(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// Authenticator turns a bearer token into a Principal.
type Authenticator struct {
	tokens TokenProvider
	users  UserRepository
	perms  PermissionResolver
}

func NewAuthenticator(tokens TokenProvider, users UserRepository, perms PermissionResolver) *Authenticator {
	return &Authenticator{tokens: tokens, users: users, perms: perms}
}

// ResolvePrincipal validates an Authorization header value and loads the
// authenticated user with permissions and roles. Any token failure,
// including revocation, comes back as ErrUnauthorized.
func (a *Authenticator) ResolvePrincipal(ctx context.Context, authorization string) (*Principal, error) {
	token, ok := bearerToken(authorization)
	if !ok {
		return nil, ErrUnauthorized
	}

	claims, err := a.tokens.Decode(ctx, token, TokenKindAccess)
	if err != nil {
		if isTokenError(err) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, ErrUnauthorized
	}

	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	permissions, err := a.perms.EffectivePermissions(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve permissions: %w", err)
	}
	roles, err := a.perms.UserRoles(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve roles: %w", err)
	}

	return &Principal{
		ID:          user.ID,
		Login:       user.Login,
		MFAVerified: claims.MFAVerified,
		IsSuperuser: user.IsSuperuser,
		Permissions: permissions,
		Roles:       roles,
	}, nil
}

func bearerToken(authorization string) (string, bool) {
	const prefix = "Bearer "
	if len(authorization) <= len(prefix) || !strings.EqualFold(authorization[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(authorization[len(prefix):]), true
}
