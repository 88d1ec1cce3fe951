package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDeny struct {
	denied map[string]bool
	err    error
}

func (f *fakeDeny) Contains(_ context.Context, jti string) (bool, error) {
	return f.denied[jti], f.err
}

func newTestProvider(deny DenyChecker) *JWTProvider {
	return NewJWTProvider(
		"access-secret-0123456789",
		"refresh-secret-0123456789",
		15*time.Minute,
		7*24*time.Hour,
		deny,
	)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	p := newTestProvider(&fakeDeny{})
	userID := uuid.New()

	issued, err := p.IssueAccess(userID, "alice", true)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Token)
	assert.NotEmpty(t, issued.JTI)

	claims, err := p.Decode(context.Background(), issued.Token, TokenKindAccess)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, "alice", claims.Login)
	assert.True(t, claims.MFAVerified)
	assert.Equal(t, issued.JTI, claims.ID)

	got, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	p := newTestProvider(&fakeDeny{})
	userID := uuid.New()

	issued, err := p.IssueRefresh(userID)
	require.NoError(t, err)

	claims, err := p.Decode(context.Background(), issued.Token, TokenKindRefresh)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Empty(t, claims.Login)
}

func TestDecodeRejectsWrongKind(t *testing.T) {
	p := newTestProvider(&fakeDeny{})

	refresh, err := p.IssueRefresh(uuid.New())
	require.NoError(t, err)

	_, err = p.Decode(context.Background(), refresh.Token, TokenKindAccess)
	assert.ErrorIs(t, err, ErrTokenSignature)
}

func TestDecodeExpired(t *testing.T) {
	p := newTestProvider(&fakeDeny{})
	p.now = func() time.Time { return time.Now().Add(-time.Hour) }

	issued, err := p.IssueAccess(uuid.New(), "alice", false)
	require.NoError(t, err)

	_, err = p.Decode(context.Background(), issued.Token, TokenKindAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)

	claims, err := p.DecodeAllowExpired(issued.Token, TokenKindAccess)
	require.NoError(t, err)
	assert.Equal(t, issued.JTI, claims.ID)
}

func TestDecodeRevokedAccessToken(t *testing.T) {
	deny := &fakeDeny{denied: map[string]bool{}}
	p := newTestProvider(deny)

	issued, err := p.IssueAccess(uuid.New(), "alice", false)
	require.NoError(t, err)

	deny.denied[issued.JTI] = true
	_, err = p.Decode(context.Background(), issued.Token, TokenKindAccess)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestDecodeMalformed(t *testing.T) {
	p := newTestProvider(&fakeDeny{})

	_, err := p.Decode(context.Background(), "not.a.token", TokenKindAccess)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestDecodeFailsClosedOnDenyListError(t *testing.T) {
	deny := &fakeDeny{err: assert.AnError}
	p := newTestProvider(deny)

	issued, err := p.IssueAccess(uuid.New(), "alice", false)
	require.NoError(t, err)

	_, err = p.Decode(context.Background(), issued.Token, TokenKindAccess)
	assert.Error(t, err)
}
