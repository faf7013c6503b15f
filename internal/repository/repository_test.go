package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamiTelo/API-Football/internal/config"
	"github.com/SamiTelo/API-Football/internal/database"
	"github.com/SamiTelo/API-Football/internal/models"
)

// newTestPool connects to FOOTBALL_TEST_POSTGRES_DSN, migrates it and empties the user data.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("FOOTBALL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FOOTBALL_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, config.PostgresConfig{DSN: dsn, MaxOpen: 20})
	if err != nil {
		t.Skipf("cannot connect to postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	require.NoError(t, database.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE users, signup_attempts, images RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return pool
}

func createUser(t *testing.T, pool *pgxpool.Pool, email string) models.User {
	t.Helper()
	ctx := context.Background()

	role, err := NewRoleRepository(pool).Ensure(ctx, models.RoleUser)
	require.NoError(t, err)

	user := models.User{
		Email:        email,
		FirstName:    "Alice",
		LastName:     "Martin",
		PasswordHash: []byte("hash"),
		Role:         &role,
	}
	require.NoError(t, NewUserRepository(pool).Create(ctx, &user))
	return user
}

func TestUserCreateAndFind(t *testing.T) {
	pool := newTestPool(t)
	users := NewUserRepository(pool)
	ctx := context.Background()

	created := createUser(t, pool, "alice@x.com")
	assert.NotZero(t, created.ID)

	dup := models.User{Email: "alice@x.com", FirstName: "A", LastName: "B", PasswordHash: []byte("h")}
	assert.ErrorIs(t, users.Create(ctx, &dup), ErrEmailTaken)

	found, err := users.FindByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, models.RoleUser, found.RoleName())
	assert.False(t, found.RequiresTwoFactor())

	_, err = users.GetByID(ctx, created.ID+100)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRotateRefreshHash(t *testing.T) {
	pool := newTestPool(t)
	users := NewUserRepository(pool)
	ctx := context.Background()
	user := createUser(t, pool, "alice@x.com")

	require.NoError(t, users.SetRefreshHash(ctx, user.ID, "a"))
	require.NoError(t, users.RotateRefreshHash(ctx, user.ID, "a", "b"))
	assert.ErrorIs(t, users.RotateRefreshHash(ctx, user.ID, "a", "c"), ErrRefreshHashMismatch)
	assert.ErrorIs(t, users.ClearRefreshHash(ctx, user.ID, "a"), ErrRefreshHashMismatch)

	require.NoError(t, users.ClearRefreshHash(ctx, user.ID, "b"))
	assert.ErrorIs(t, users.RotateRefreshHash(ctx, user.ID, "b", "d"), ErrRefreshHashMismatch)

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.RefreshTokenHash)
}

func TestRotateRefreshHashConcurrent(t *testing.T) {
	pool := newTestPool(t)
	users := NewUserRepository(pool)
	ctx := context.Background()
	user := createUser(t, pool, "alice@x.com")
	require.NoError(t, users.SetRefreshHash(ctx, user.ID, "current"))

	const callers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := users.RotateRefreshHash(ctx, user.ID, "current", fmt.Sprintf("next-%d", i))
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrRefreshHashMismatch)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestUpdatePasswordRevokesState(t *testing.T) {
	pool := newTestPool(t)
	users := NewUserRepository(pool)
	ctx := context.Background()
	user := createUser(t, pool, "alice@x.com")

	require.NoError(t, users.SetRefreshHash(ctx, user.ID, "a"))
	require.NoError(t, users.SetTwoFactorChallenge(ctx, user.ID, []byte("code"), time.Now().Add(time.Minute)))
	require.NoError(t, users.UpdatePassword(ctx, user.ID, []byte("new")))

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), stored.PasswordHash)
	assert.Nil(t, stored.RefreshTokenHash)
	assert.False(t, stored.HasPendingTwoFactor())
}

func TestTwoFactorChallenge(t *testing.T) {
	pool := newTestPool(t)
	users := NewUserRepository(pool)
	ctx := context.Background()
	user := createUser(t, pool, "alice@x.com")
	code := []byte("code-hash")

	require.NoError(t, users.SetTwoFactorChallenge(ctx, user.ID, code, time.Now().Add(5*time.Minute)))
	assert.ErrorIs(t, users.ConsumeTwoFactorChallenge(ctx, user.ID, []byte("other")), ErrChallengeNotFound)
	require.NoError(t, users.ConsumeTwoFactorChallenge(ctx, user.ID, code))
	assert.ErrorIs(t, users.ConsumeTwoFactorChallenge(ctx, user.ID, code), ErrChallengeNotFound)

	require.NoError(t, users.SetTwoFactorChallenge(ctx, user.ID, code, time.Now().Add(5*time.Minute)))
	for i := 1; i <= 2; i++ {
		cleared, err := users.RecordTwoFactorFailure(ctx, user.ID, code, 3)
		require.NoError(t, err)
		assert.False(t, cleared, "failure %d", i)
	}
	cleared, err := users.RecordTwoFactorFailure(ctx, user.ID, code, 3)
	require.NoError(t, err)
	assert.True(t, cleared)

	_, err = users.RecordTwoFactorFailure(ctx, user.ID, code, 3)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
	assert.ErrorIs(t, users.ConsumeTwoFactorChallenge(ctx, user.ID, code), ErrChallengeNotFound)
}

func TestPurgeExpiredTwoFactor(t *testing.T) {
	pool := newTestPool(t)
	users := NewUserRepository(pool)
	ctx := context.Background()
	expired := createUser(t, pool, "expired@x.com")
	pending := createUser(t, pool, "pending@x.com")
	now := time.Now()

	require.NoError(t, users.SetTwoFactorChallenge(ctx, expired.ID, []byte("a"), now.Add(-time.Minute)))
	require.NoError(t, users.SetTwoFactorChallenge(ctx, pending.ID, []byte("b"), now.Add(time.Minute)))

	purged, err := users.PurgeExpiredTwoFactor(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	stored, err := users.GetByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasPendingTwoFactor())
}

func TestRecordIfBelowConcurrent(t *testing.T) {
	pool := newTestPool(t)
	attempts := NewSignupAttemptRepository(pool)
	ctx := context.Background()
	now := time.Now()
	since := now.Add(-24 * time.Hour)

	const callers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := attempts.RecordIfBelow(ctx, "10.0.0.1", since, now, 3)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, allowed)

	ok, err := attempts.RecordIfBelow(ctx, "10.0.0.2", since, now, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	later := now.Add(24*time.Hour + time.Second)
	ok, err = attempts.RecordIfBelow(ctx, "10.0.0.1", later.Add(-24*time.Hour), later, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	purged, err := attempts.PurgeBefore(ctx, later.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(4), purged)
}

func TestImageReplace(t *testing.T) {
	pool := newTestPool(t)
	images := NewImageRepository(pool)
	ctx := context.Background()

	first := models.Image{
		ID: "img1", OwnerKind: models.ImageOwnerTeam, OwnerID: 4, Bucket: "b",
		ObjectKey: "teams/4/img1.png", Format: "png", SizeBytes: 10, Checksum: []byte{1},
	}
	previous, err := images.Replace(ctx, first)
	require.NoError(t, err)
	assert.Nil(t, previous)

	second := first
	second.ID, second.ObjectKey = "img2", "teams/4/img2.png"
	previous, err = images.Replace(ctx, second)
	require.NoError(t, err)
	require.NotNil(t, previous)
	assert.Equal(t, "teams/4/img1.png", previous.ObjectKey)

	current, err := images.GetByOwner(ctx, models.ImageOwnerTeam, 4)
	require.NoError(t, err)
	assert.Equal(t, "img2", current.ID)

	_, err = images.GetByOwner(ctx, models.ImageOwnerPlayer, 4)
	assert.ErrorIs(t, err, ErrImageNotFound)
}
