package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePermResolver struct {
	permissions []string
	roles       []string
}

func (f *fakePermResolver) EffectivePermissions(context.Context, uuid.UUID) ([]string, error) {
	return f.permissions, nil
}

func (f *fakePermResolver) UserRoles(context.Context, uuid.UUID) ([]string, error) {
	return f.roles, nil
}

func TestResolvePrincipal(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice", "s3cret1")
	ctx := context.Background()

	resolver := &fakePermResolver{
		permissions: []string{"edit_content"},
		roles:       []string{"editor"},
	}
	authn := NewAuthenticator(env.tokens, env.users, resolver)

	issued, err := env.tokens.IssueAccess(user.ID, user.Login, true)
	require.NoError(t, err)

	principal, err := authn.ResolvePrincipal(ctx, "Bearer "+issued.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.ID)
	assert.Equal(t, "alice", principal.Login)
	assert.True(t, principal.MFAVerified)
	assert.Equal(t, []string{"edit_content"}, principal.Permissions)
	assert.Equal(t, []string{"editor"}, principal.Roles)
}

func TestResolvePrincipalRejections(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice", "s3cret1")
	ctx := context.Background()
	authn := NewAuthenticator(env.tokens, env.users, &fakePermResolver{})

	issued, err := env.tokens.IssueAccess(user.ID, user.Login, false)
	require.NoError(t, err)

	_, err = authn.ResolvePrincipal(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = authn.ResolvePrincipal(ctx, issued.Token)
	assert.ErrorIs(t, err, ErrUnauthorized, "missing scheme prefix")

	_, err = authn.ResolvePrincipal(ctx, "Bearer garbage")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Revoked access token.
	require.NoError(t, env.denyList.Add(ctx, issued.JTI, time.Minute))
	_, err = authn.ResolvePrincipal(ctx, "Bearer "+issued.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Token for a user row that no longer exists.
	orphan, err := env.tokens.IssueAccess(uuid.New(), "ghost", false)
	require.NoError(t, err)
	_, err = authn.ResolvePrincipal(ctx, "Bearer "+orphan.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestHasPermission(t *testing.T) {
	p := &Principal{Permissions: []string{"edit_content"}}
	assert.True(t, p.HasPermission("edit_content"))
	assert.False(t, p.HasPermission("delete_content"))

	wildcard := &Principal{Permissions: []string{"*"}}
	assert.True(t, wildcard.HasPermission("anything"))

	super := &Principal{IsSuperuser: true}
	assert.True(t, super.HasPermission("anything"))
}
