package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vibeapp/server/internal/mocks"
	"github.com/vibeapp/server/internal/model"
	redisrepo "github.com/vibeapp/server/internal/repository/redis"
	"github.com/vibeapp/server/internal/security"
	"github.com/vibeapp/server/internal/testutil"
	"github.com/vibeapp/server/internal/token"
)

const (
	testEmail    = "user@example.com"
	testPassword = "correct horse"
)

type authFixture struct {
	users     *mocks.UserStore
	refresh   *mocks.RefreshTokenStore
	tokens    model.TokenManager
	guard     *security.AttemptGuard
	blacklist *security.TokenBlacklist
	mr        *miniredis.Miniredis
	auth      *Auth
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	kv := redisrepo.NewStore(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))

	f := &authFixture{
		users:     &mocks.UserStore{},
		refresh:   &mocks.RefreshTokenStore{},
		tokens:    token.NewJWT("secret", 30*time.Minute, 14*24*time.Hour),
		guard:     security.NewAttemptGuard(kv, 5, 15*time.Minute),
		blacklist: security.NewTokenBlacklist(kv),
		mr:        mr,
	}
	f.auth = NewAuth(f.users, f.refresh, f.tokens, f.guard, f.blacklist,
		14*24*time.Hour, testutil.MakeNoopLogger())
	return f
}

func testUser(t *testing.T) model.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	return model.User{
		ID:           uuid.New(),
		Name:         "Test User",
		Email:        testEmail,
		PasswordHash: string(hash),
	}
}

func TestAuth_Login_Success(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := testUser(t)

	f.users.On("GetByEmail", ctx, testEmail).Return(user, nil).Once()
	f.refresh.On("DeleteByUser", ctx, user.ID).Return(nil).Once()
	f.refresh.On("Save", ctx, mock.MatchedBy(func(rt model.RefreshToken) bool {
		wantExpiry := time.Now().Add(14 * 24 * time.Hour)
		return rt.UserID == user.ID && rt.Token != "" &&
			rt.ExpiresAt.After(wantExpiry.Add(-time.Minute)) &&
			rt.ExpiresAt.Before(wantExpiry.Add(time.Minute))
	})).Return(nil).Once()

	pair, err := f.auth.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	assert.Equal(t, "Test User", pair.UserName)

	subject, err := f.tokens.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, testEmail, subject)

	f.users.AssertExpectations(t)
	f.refresh.AssertExpectations(t)
}

func TestAuth_Login_WrongPassword(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := testUser(t)

	f.users.On("GetByEmail", ctx, testEmail).Return(user, nil)

	_, err := f.auth.Login(ctx, testEmail, "wrong")
	require.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestAuth_Login_UnknownUser(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	f.users.On("GetByEmail", ctx, "ghost@example.com").Return(model.User{}, model.ErrNotFound)

	_, err := f.auth.Login(ctx, "ghost@example.com", "whatever")
	require.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestAuth_Login_LockedAfterFiveFailures(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := testUser(t)

	f.users.On("GetByEmail", ctx, testEmail).Return(user, nil).Times(5)

	for i := 0; i < 5; i++ {
		_, err := f.auth.Login(ctx, testEmail, "wrong")
		require.ErrorIs(t, err, model.ErrInvalidCredentials)
	}

	// The 6th attempt is rejected before the credential is even looked up.
	_, err := f.auth.Login(ctx, testEmail, testPassword)
	require.ErrorIs(t, err, model.ErrLocked)

	f.users.AssertExpectations(t)
}

func TestAuth_Login_SuccessClearsFailures(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := testUser(t)

	f.users.On("GetByEmail", ctx, testEmail).Return(user, nil)
	f.refresh.On("DeleteByUser", ctx, user.ID).Return(nil)
	f.refresh.On("Save", ctx, mock.Anything).Return(nil)

	for i := 0; i < 4; i++ {
		_, err := f.auth.Login(ctx, testEmail, "wrong")
		require.ErrorIs(t, err, model.ErrInvalidCredentials)
	}

	_, err := f.auth.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	locked, err := f.guard.IsLocked(ctx, testEmail)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestAuth_Login_LockExpiresWithWindow(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := testUser(t)

	f.users.On("GetByEmail", ctx, testEmail).Return(user, nil)
	f.refresh.On("DeleteByUser", ctx, user.ID).Return(nil)
	f.refresh.On("Save", ctx, mock.Anything).Return(nil)

	for i := 0; i < 5; i++ {
		_, err := f.auth.Login(ctx, testEmail, "wrong")
		require.ErrorIs(t, err, model.ErrInvalidCredentials)
	}

	f.mr.FastForward(16 * time.Minute)

	_, err := f.auth.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
}

func TestAuth_Reissue_Success(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := testUser(t)

	oldRefresh, err := f.tokens.IssueRefreshToken(testEmail)
	require.NoError(t, err)

	f.refresh.On("GetByToken", ctx, oldRefresh).Return(model.RefreshToken{
		Token:     oldRefresh,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil).Once()
	f.users.On("GetByID", ctx, user.ID).Return(user, nil).Once()
	f.refresh.On("Rotate", ctx, oldRefresh, mock.MatchedBy(func(rt model.RefreshToken) bool {
		return rt.UserID == user.ID && rt.Token != "" && rt.Token != oldRefresh
	})).Return(nil).Once()

	pair, err := f.auth.Reissue(ctx, oldRefresh)
	require.NoError(t, err)
	assert.NotEqual(t, oldRefresh, pair.RefreshToken)
	assert.Equal(t, "Test User", pair.UserName)

	// The consumed token is now registered for replay detection.
	owner, err := f.blacklist.RotatedTokenOwner(ctx, oldRefresh)
	require.NoError(t, err)
	assert.Equal(t, testEmail, owner)

	f.refresh.AssertExpectations(t)
}

func TestAuth_Reissue_ReplayPurgesAllSessions(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := testUser(t)

	oldRefresh, err := f.tokens.IssueRefreshToken(testEmail)
	require.NoError(t, err)
	require.NoError(t, f.blacklist.MarkRotated(ctx, oldRefresh, testEmail, time.Hour))

	f.users.On("GetByEmail", ctx, testEmail).Return(user, nil).Once()
	f.refresh.On("DeleteByUser", ctx, user.ID).Return(nil).Once()

	_, err = f.auth.Reissue(ctx, oldRefresh)
	require.ErrorIs(t, err, model.ErrInvalidToken)

	f.refresh.AssertCalled(t, "DeleteByUser", ctx, user.ID)
}

func TestAuth_Reissue_GarbageToken(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	_, err := f.auth.Reissue(ctx, "not-a-token")
	require.ErrorIs(t, err, model.ErrInvalidToken)

	f.refresh.AssertNotCalled(t, "GetByToken", mock.Anything, mock.Anything)
}

func TestAuth_Reissue_UnknownToken(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	refresh, err := f.tokens.IssueRefreshToken(testEmail)
	require.NoError(t, err)

	f.refresh.On("GetByToken", ctx, refresh).Return(model.RefreshToken{}, model.ErrNotFound).Once()

	_, err = f.auth.Reissue(ctx, refresh)
	require.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestAuth_Reissue_ExpiredRow(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := testUser(t)

	refresh, err := f.tokens.IssueRefreshToken(testEmail)
	require.NoError(t, err)

	f.refresh.On("GetByToken", ctx, refresh).Return(model.RefreshToken{
		Token:     refresh,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(-time.Minute),
	}, nil).Once()
	f.refresh.On("DeleteByToken", ctx, refresh).Return(nil).Once()

	_, err = f.auth.Reissue(ctx, refresh)
	require.ErrorIs(t, err, model.ErrInvalidToken)

	f.refresh.AssertExpectations(t)
}

func TestAuth_Reissue_LostRotationRace(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := testUser(t)

	refresh, err := f.tokens.IssueRefreshToken(testEmail)
	require.NoError(t, err)

	f.refresh.On("GetByToken", ctx, refresh).Return(model.RefreshToken{
		Token:     refresh,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil).Once()
	f.users.On("GetByID", ctx, user.ID).Return(user, nil).Once()
	f.refresh.On("Rotate", ctx, refresh, mock.Anything).Return(model.ErrNotFound).Once()

	_, err = f.auth.Reissue(ctx, refresh)
	require.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestAuth_Logout_BlacklistsAccessToken(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := testUser(t)

	access, err := f.tokens.IssueAccessToken(testEmail)
	require.NoError(t, err)

	// Valid before logout.
	subject, err := f.auth.Authenticate(ctx, access)
	require.NoError(t, err)
	require.Equal(t, testEmail, subject)

	f.users.On("GetByEmail", ctx, testEmail).Return(user, nil).Once()
	f.refresh.On("DeleteByUser", ctx, user.ID).Return(nil).Once()

	require.NoError(t, f.auth.Logout(ctx, access, testEmail))

	_, err = f.auth.Authenticate(ctx, access)
	require.ErrorIs(t, err, model.ErrInvalidToken)

	f.refresh.AssertExpectations(t)
}

func TestAuth_Logout_MalformedToken(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := testUser(t)

	f.users.On("GetByEmail", ctx, testEmail).Return(user, nil).Once()
	f.refresh.On("DeleteByUser", ctx, user.ID).Return(nil).Once()

	require.NoError(t, f.auth.Logout(ctx, "garbage", testEmail))
}

func TestAuth_Authenticate_Garbage(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	_, err := f.auth.Authenticate(ctx, "garbage")
	require.ErrorIs(t, err, model.ErrInvalidToken)
}
