package auth

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/filmgate/auth-service/internal/cache"
	"github.com/filmgate/auth-service/internal/storage"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*storage.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*storage.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *storage.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Login == user.Login {
			return storage.ErrConflict
		}
		if user.Email != nil && u.Email != nil && *u.Email == *user.Email {
			return storage.ErrConflict
		}
	}
	user.CreatedAt = time.Now()
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (f *fakeUserRepo) GetByLogin(_ context.Context, login string) (*storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Login == login {
			clone := *u
			return &clone, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeUserRepo) FindByLoginOrEmail(_ context.Context, login string, email *string) (*storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Login == login {
			clone := *u
			return &clone, nil
		}
		if email != nil && u.Email != nil && *u.Email == *email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeUserRepo) Update(_ context.Context, user *storage.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return storage.ErrNotFound
	}
	for id, u := range f.users {
		if id != user.ID && u.Login == user.Login {
			return storage.ErrConflict
		}
	}
	now := time.Now()
	user.UpdatedAt = &now
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

type fakeHistoryRepo struct {
	mu        sync.Mutex
	entries   []storage.LoginHistoryEntry
	lastLimit int
	failNext  bool
}

func (f *fakeHistoryRepo) Append(_ context.Context, entry *storage.LoginHistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return assert.AnError
	}
	entry.LoginAt = time.Now()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeHistoryRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, _ int) ([]storage.LoginHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	var out []storage.LoginHistoryEntry
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.entries[i].UserID == userID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

type testEnv struct {
	service  *Service
	mfa      *MFAService
	users    *fakeUserRepo
	history  *fakeHistoryRepo
	sessions *cache.SessionIndex
	denyList *cache.DenyList
	tokens   *JWTProvider
	redis    *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	users := newFakeUserRepo()
	history := &fakeHistoryRepo{}
	sessions := cache.NewSessionIndex(client)
	denyList := cache.NewDenyList(client)
	tokens := newTestProvider(denyList)
	hasher := NewBcryptHasher(bcrypt.MinCost)
	logger := slog.Default()

	return &testEnv{
		service:  NewService(users, history, sessions, denyList, hasher, tokens, 7*24*time.Hour, logger),
		mfa:      NewMFAService(users, tokens, "test-issuer"),
		users:    users,
		history:  history,
		sessions: sessions,
		denyList: denyList,
		tokens:   tokens,
		redis:    mr,
	}
}

func (e *testEnv) register(t *testing.T, login, password string) *storage.User {
	t.Helper()
	user, conflicts, err := e.service.Register(context.Background(), RegisterInput{
		Login:    login,
		Password: password,
	})
	require.NoError(t, err)
	require.Nil(t, conflicts)
	return user
}

func (e *testEnv) login(t *testing.T, login, password string) *TokenPair {
	t.Helper()
	pair, err := e.service.Login(context.Background(), LoginInput{
		Login:     login,
		Password:  password,
		IPAddress: "192.0.2.1",
		UserAgent: "go-test",
	})
	require.NoError(t, err)
	return pair
}

func TestRegisterThenLogin(t *testing.T) {
	env := newTestEnv(t)

	env.register(t, "alice", "s3cret1")
	pair := env.login(t, "alice", "s3cret1")

	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "bearer", pair.TokenType)

	require.Len(t, env.history.entries, 1)
	assert.Equal(t, "192.0.2.1", env.history.entries[0].IPAddress)
}

func TestLoginBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "s3cret1")

	_, err := env.service.Login(context.Background(), LoginInput{Login: "alice", Password: "wrong1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.service.Login(context.Background(), LoginInput{Login: "nobody", Password: "s3cret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials, "unknown login must be indistinguishable from bad password")
}

func TestLoginSurvivesHistoryFailure(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "s3cret1")

	env.history.failNext = true
	pair := env.login(t, "alice", "s3cret1")
	assert.NotEmpty(t, pair.AccessToken)
}

func TestRegisterConflictFieldMap(t *testing.T) {
	env := newTestEnv(t)
	email := "a@x.io"

	_, conflicts, err := env.service.Register(context.Background(), RegisterInput{
		Login: "alice", Password: "s3cret1", Email: &email,
	})
	require.NoError(t, err)
	require.Nil(t, conflicts)

	_, conflicts, err = env.service.Register(context.Background(), RegisterInput{
		Login: "alice", Password: "other99",
	})
	require.NoError(t, err)
	require.NotNil(t, conflicts)
	assert.Contains(t, conflicts, "login")

	_, conflicts, err = env.service.Register(context.Background(), RegisterInput{
		Login: "bob", Password: "other99", Email: &email,
	})
	require.NoError(t, err)
	require.NotNil(t, conflicts)
	assert.Contains(t, conflicts, "email")
	assert.NotContains(t, conflicts, "login")
}

func TestRefreshRotation(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "s3cret1")
	ctx := context.Background()

	first := env.login(t, "alice", "s3cret1")

	second, err := env.service.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The consumed token is gone for good.
	_, err = env.service.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// The replacement keeps working.
	_, err = env.service.Refresh(ctx, second.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshRejectsForeignToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.service.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// A well-signed token whose jti was never registered is also rejected.
	orphan, err := env.tokens.IssueRefresh(uuid.New())
	require.NoError(t, err)
	_, err = env.service.Refresh(ctx, orphan.Token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLogoutIsFinal(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "s3cret1")
	ctx := context.Background()

	pair := env.login(t, "alice", "s3cret1")

	require.NoError(t, env.service.Logout(ctx, pair.RefreshToken))

	_, err := env.service.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// Logout is idempotent from the caller's view.
	assert.NoError(t, env.service.Logout(ctx, pair.RefreshToken))
}

func TestLogoutToleratesExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "s3cret1")
	ctx := context.Background()

	env.tokens.now = func() time.Time { return time.Now().Add(-30 * 24 * time.Hour) }
	pair := env.login(t, "alice", "s3cret1")
	env.tokens.now = time.Now

	assert.NoError(t, env.service.Logout(ctx, pair.RefreshToken))
}

func TestLogoutAllOtherSessions(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice", "s3cret1")
	ctx := context.Background()

	s1 := env.login(t, "alice", "s3cret1")
	s2 := env.login(t, "alice", "s3cret1")
	s3 := env.login(t, "alice", "s3cret1")

	require.NoError(t, env.service.LogoutAllOtherSessions(ctx, user.ID, s3.RefreshToken))

	members, err := env.sessions.Members(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, members, 1)

	_, err = env.service.Refresh(ctx, s1.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, err = env.service.Refresh(ctx, s2.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = env.service.Refresh(ctx, s3.RefreshToken)
	assert.NoError(t, err, "the current session stays valid")
}

func TestLogoutAllOtherRejectsMismatchedUser(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "s3cret1")
	pair := env.login(t, "alice", "s3cret1")

	err := env.service.LogoutAllOtherSessions(context.Background(), uuid.New(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestGetLoginHistoryClampsLimit(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice", "s3cret1")
	ctx := context.Background()

	_, err := env.service.GetLoginHistory(ctx, user.ID, 5000, 0)
	require.NoError(t, err)
	assert.Equal(t, 1000, env.history.lastLimit)

	_, err = env.service.GetLoginHistory(ctx, user.ID, 0, -3)
	require.NoError(t, err)
	assert.Equal(t, 100, env.history.lastLimit)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice", "s3cret1")
	env.register(t, "bob", "s3cret2")
	ctx := context.Background()

	taken := "bob"
	_, err := env.service.UpdateProfile(ctx, user.ID, UpdateProfileInput{Login: &taken})
	assert.ErrorIs(t, err, ErrLoginTaken)

	newLogin := "alice2"
	newPassword := "n3wpass"
	email := "a@x.io"
	updated, err := env.service.UpdateProfile(ctx, user.ID, UpdateProfileInput{
		Login:    &newLogin,
		Password: &newPassword,
		Email:    &email,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Login)
	require.NotNil(t, updated.Email)
	assert.Equal(t, "a@x.io", *updated.Email)

	// Old password no longer works, new one does.
	_, err = env.service.Login(ctx, LoginInput{Login: "alice2", Password: "s3cret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	env.login(t, "alice2", "n3wpass")

	// Existing sessions survive a profile update.
	pair := env.login(t, "alice2", "n3wpass")
	_, err = env.service.Refresh(ctx, pair.RefreshToken)
	assert.NoError(t, err)
}

func TestMFASetupAndVerify(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice", "s3cret1")
	ctx := context.Background()

	_, err := env.mfa.Verify(ctx, user.ID, "000000")
	assert.ErrorIs(t, err, ErrMFANotEnrolled)

	setup, err := env.mfa.Setup(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.OTPAuthURL, "otpauth://")

	_, err = env.mfa.Verify(ctx, user.ID, "000000")
	assert.ErrorIs(t, err, ErrInvalidMFACode)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)

	token, err := env.mfa.Verify(ctx, user.ID, code)
	require.NoError(t, err)

	claims, err := env.tokens.Decode(ctx, token.Token, TokenKindAccess)
	require.NoError(t, err)
	assert.True(t, claims.MFAVerified)

	stored, err := env.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.MFAEnabled)
}
