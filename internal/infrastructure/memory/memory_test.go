package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/resume-analyzer-api/internal/domain/entity"
	"github.com/oksasatya/resume-analyzer-api/internal/domain/repository"
)

func TestUserRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	r := NewUserRepository()

	u := &entity.User{Email: "alice@example.com", Role: entity.RoleUser, IsActive: true}
	require.NoError(t, r.Create(ctx, u))
	require.NotEmpty(t, u.ID)

	got, err := r.FindByEmail(ctx, "  ALICE@example.com ")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)

	err = r.Create(ctx, &entity.User{Email: "Alice@Example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)

	_, err = r.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r := NewUserRepository()
	u := &entity.User{Email: "bob@example.com"}
	require.NoError(t, r.Create(ctx, u))

	got, err := r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	got.Security.LoginAttempts = 99
	u.Security.LoginAttempts = 42

	again, err := r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, again.Security.LoginAttempts)
}

func TestUserRepository_TokenLookupsAndSave(t *testing.T) {
	ctx := context.Background()
	r := NewUserRepository()
	u := &entity.User{Email: "carol@example.com"}
	require.NoError(t, r.Create(ctx, u))

	_, err := r.FindByResetToken(ctx, "")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	u.Security.SetPasswordReset("digest-1", time.Now().Add(time.Hour))
	u.Security.EmailVerificationToken = "verify-1"
	require.NoError(t, r.Save(ctx, u))

	got, err := r.FindByResetToken(ctx, "digest-1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = r.FindByVerificationToken(ctx, "verify-1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	assert.ErrorIs(t, r.Save(ctx, &entity.User{ID: "ghost"}), repository.ErrNotFound)
}

func TestUserRepository_SaveRekeysEmail(t *testing.T) {
	ctx := context.Background()
	r := NewUserRepository()
	a := &entity.User{Email: "a@example.com"}
	b := &entity.User{Email: "b@example.com"}
	require.NoError(t, r.Create(ctx, a))
	require.NoError(t, r.Create(ctx, b))

	a.Email = "b@example.com"
	assert.ErrorIs(t, r.Save(ctx, a), repository.ErrDuplicateEmail)

	a.Email = "a2@example.com"
	require.NoError(t, r.Save(ctx, a))
	_, err := r.FindByEmail(ctx, "a@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	got, err := r.FindByEmail(ctx, "a2@example.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}

func TestDenylist_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewDenylistWithClock(func() time.Time { return now })

	require.NoError(t, d.Set(ctx, "rt", time.Minute))
	require.NoError(t, d.Set(ctx, "skipped", 0))

	ok, err := d.Has(ctx, "rt")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = d.Has(ctx, "skipped")
	assert.False(t, ok)

	now = now.Add(time.Minute)
	ok, _ = d.Has(ctx, "rt")
	assert.False(t, ok)
	assert.Equal(t, 0, d.Len())
}

func TestUserRepository_UpdateLoginStateLeavesOtherFields(t *testing.T) {
	ctx := context.Background()
	r := NewUserRepository()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	u := &entity.User{Email: "a@example.com", PasswordHash: "h1"}
	require.NoError(t, r.Create(ctx, u))
	require.NoError(t, r.SetPasswordReset(ctx, u.ID, "d1", now.Add(time.Hour), now))

	until := now.Add(time.Minute)
	require.NoError(t, r.UpdateLoginState(ctx, u.ID, repository.LoginState{LoginAttempts: 3, LockUntil: &until}, now))

	got, err := r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Security.LoginAttempts)
	assert.Equal(t, until, *got.Security.LockUntil)
	assert.Equal(t, "h1", got.PasswordHash)
	assert.Equal(t, "d1", got.Security.PasswordResetToken)

	assert.ErrorIs(t, r.UpdateLoginState(ctx, "ghost", repository.LoginState{}, now), repository.ErrNotFound)
}

func TestUserRepository_ConsumePasswordReset(t *testing.T) {
	ctx := context.Background()
	r := NewUserRepository()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	u := &entity.User{Email: "a@example.com", PasswordHash: "h1"}
	require.NoError(t, r.Create(ctx, u))
	require.NoError(t, r.SetPasswordReset(ctx, u.ID, "d1", now.Add(time.Hour), now))

	_, err := r.ConsumePasswordReset(ctx, "d1", "h2", now.Add(2*time.Hour))
	assert.ErrorIs(t, err, repository.ErrNotFound, "expired")
	_, err = r.ConsumePasswordReset(ctx, "other", "h2", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	got, err := r.ConsumePasswordReset(ctx, "d1", "h2", now)
	require.NoError(t, err)
	assert.Equal(t, "h2", got.PasswordHash)
	assert.Empty(t, got.Security.PasswordResetToken)

	_, err = r.ConsumePasswordReset(ctx, "d1", "h3", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepository_ConcurrentConsumeSucceedsOnce(t *testing.T) {
	ctx := context.Background()
	r := NewUserRepository()
	now := time.Now()

	u := &entity.User{Email: "a@example.com"}
	require.NoError(t, r.Create(ctx, u))
	require.NoError(t, r.SetPasswordReset(ctx, u.ID, "d1", now.Add(time.Hour), now))
	require.NoError(t, r.SetVerificationToken(ctx, u.ID, "v1", now))

	var resets, verifies atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.ConsumePasswordReset(ctx, "d1", "h", now); err == nil {
				resets.Add(1)
			}
			if _, err := r.ConsumeVerificationToken(ctx, "v1", now); err == nil {
				verifies.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), resets.Load())
	assert.Equal(t, int32(1), verifies.Load())

	assert.ErrorIs(t, r.SetVerificationToken(ctx, u.ID, "v2", now), repository.ErrNotFound, "already verified")
}
