package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vibeapp/server/internal/model"
	redisrepo "github.com/vibeapp/server/internal/repository/redis"
	"github.com/vibeapp/server/internal/security"
	"github.com/vibeapp/server/internal/testutil"
	"github.com/vibeapp/server/internal/token"
)

// memoryRefreshStore mimics the postgres repository's semantics, including
// the single-use conditional delete inside Rotate.
type memoryRefreshStore struct {
	mu   sync.Mutex
	rows map[string]model.RefreshToken
}

func newMemoryRefreshStore() *memoryRefreshStore {
	return &memoryRefreshStore{rows: make(map[string]model.RefreshToken)}
}

func (s *memoryRefreshStore) Save(_ context.Context, token model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[token.Token] = token
	return nil
}

func (s *memoryRefreshStore) GetByToken(_ context.Context, token string) (model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.rows[token]
	if !ok {
		return model.RefreshToken{}, model.ErrNotFound
	}
	return rt, nil
}

func (s *memoryRefreshStore) DeleteByToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, token)
	return nil
}

func (s *memoryRefreshStore) DeleteByUser(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, rt := range s.rows {
		if rt.UserID == userID {
			delete(s.rows, k)
		}
	}
	return nil
}

func (s *memoryRefreshStore) Rotate(_ context.Context, oldToken string, newToken model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[oldToken]; !ok {
		return model.ErrNotFound
	}
	delete(s.rows, oldToken)
	s.rows[newToken.Token] = newToken
	return nil
}

func (s *memoryRefreshStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type memoryUserStore struct {
	user model.User
}

func (s *memoryUserStore) Create(_ context.Context, user model.User) (model.User, error) {
	return user, nil
}

func (s *memoryUserStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	if email != s.user.Email {
		return model.User{}, model.ErrNotFound
	}
	return s.user, nil
}

func (s *memoryUserStore) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	if id != s.user.ID {
		return model.User{}, model.ErrNotFound
	}
	return s.user, nil
}

func (s *memoryUserStore) UpdatePassword(_ context.Context, _ uuid.UUID, _ string) error {
	return nil
}

func TestAuth_LoginReissueLogout_Scenario(t *testing.T) {
	ctx := context.Background()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	kv := redisrepo.NewStore(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	tokens := token.NewJWT("secret", 30*time.Minute, 14*24*time.Hour)
	guard := security.NewAttemptGuard(kv, 5, 15*time.Minute)
	blacklist := security.NewTokenBlacklist(kv)
	refreshStore := newMemoryRefreshStore()
	users := &memoryUserStore{user: testUser(t)}

	auth := NewAuth(users, refreshStore, tokens, guard, blacklist,
		14*24*time.Hour, testutil.MakeNoopLogger())

	// Login yields a pair and exactly one refresh row.
	pair, err := auth.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, 1, refreshStore.count())

	row, err := refreshStore.GetByToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	wantExpiry := time.Now().Add(14 * 24 * time.Hour)
	require.WithinDuration(t, wantExpiry, row.ExpiresAt, time.Minute)

	// Reissue rotates: new pair works, exactly one row remains.
	pair2, err := auth.Reissue(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, pair2.RefreshToken)
	require.Equal(t, 1, refreshStore.count())

	_, err = refreshStore.GetByToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, model.ErrNotFound)

	// Replaying the consumed refresh token purges every session.
	_, err = auth.Reissue(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, model.ErrInvalidToken)
	require.Equal(t, 0, refreshStore.count())

	// The rotated-out pair is dead; so is a reissue for the purged session.
	_, err = auth.Reissue(ctx, pair2.RefreshToken)
	require.ErrorIs(t, err, model.ErrInvalidToken)

	// Fresh login, then logout kills the access token immediately.
	pair3, err := auth.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	_, err = auth.Authenticate(ctx, pair3.AccessToken)
	require.NoError(t, err)

	require.NoError(t, auth.Logout(ctx, pair3.AccessToken, testEmail))

	_, err = auth.Authenticate(ctx, pair3.AccessToken)
	require.ErrorIs(t, err, model.ErrInvalidToken)
	require.Equal(t, 0, refreshStore.count())
}

func TestAuth_ConcurrentReissue_SingleWinner(t *testing.T) {
	ctx := context.Background()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	kv := redisrepo.NewStore(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	tokens := token.NewJWT("secret", 30*time.Minute, 14*24*time.Hour)
	guard := security.NewAttemptGuard(kv, 5, 15*time.Minute)
	blacklist := security.NewTokenBlacklist(kv)
	refreshStore := newMemoryRefreshStore()
	users := &memoryUserStore{user: testUser(t)}

	auth := NewAuth(users, refreshStore, tokens, guard, blacklist,
		14*24*time.Hour, testutil.MakeNoopLogger())

	pair, err := auth.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	const racers = 8
	errs := make([]error, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = auth.Reissue(ctx, pair.RefreshToken)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	require.Equal(t, 1, succeeded, "exactly one concurrent reissue may win")
	require.LessOrEqual(t, refreshStore.count(), 1)
}
