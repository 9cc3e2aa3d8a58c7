package repository

import (
	"context"
	"errors"
	"time"

	"github.com/oksasatya/resume-analyzer-api/internal/domain/entity"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// LoginState is the part of the security record a login attempt writes.
type LoginState struct {
	LoginAttempts int
	LockUntil     *time.Time
	LastLogin     *time.Time
}

// UserRepository is the credential store. Lookups by token take the stored
// digest, not the raw token.
//
// Auth flows write through the narrow methods, each touching only its own
// columns, so a slow flow holding an old read cannot undo another flow's
// write. The Consume methods are conditional: the token must still match
// when the write happens, so a token is spent at most once. Save writes the
// whole record and is meant for administrative tooling.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByResetToken(ctx context.Context, digest string) (*entity.User, error)
	FindByVerificationToken(ctx context.Context, digest string) (*entity.User, error)
	Save(ctx context.Context, u *entity.User) error

	UpdateLoginState(ctx context.Context, id string, st LoginState, now time.Time) error
	SetPasswordReset(ctx context.Context, id, digest string, expires, now time.Time) error
	// ConsumePasswordReset sets newHash and clears the reset token and the
	// lockout, provided digest is stored and unexpired at now. It returns
	// the updated user or ErrNotFound.
	ConsumePasswordReset(ctx context.Context, digest, newHash string, now time.Time) (*entity.User, error)
	// SetVerificationToken replaces the token of an unverified user.
	// ErrNotFound when the user is missing or already verified.
	SetVerificationToken(ctx context.Context, id, digest string, now time.Time) error
	// ConsumeVerificationToken marks the owner of digest verified and
	// clears the token. It returns the updated user or ErrNotFound.
	ConsumeVerificationToken(ctx context.Context, digest string, now time.Time) (*entity.User, error)
}

// TokenDenylist records revoked refresh tokens until they would have expired.
type TokenDenylist interface {
	Set(ctx context.Context, token string, ttl time.Duration) error
	Has(ctx context.Context, token string) (bool, error)
}
