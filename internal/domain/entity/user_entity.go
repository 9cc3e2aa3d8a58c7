package entity

import (
	"strings"
	"time"
)

// User is the aggregate root for the credential and profile domain.
// PasswordHash holds a bcrypt digest and never leaves the service layer;
// single-use tokens in Security are stored as SHA-256 digests.
type User struct {
	ID           string
	Email        string
	PasswordHash string `json:"-"`
	Role         Role
	Profile      Profile
	Security     Security `json:"-"`
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Profile struct {
	FirstName string
	LastName  string
}

// Security is the mutable security sub-record of a user.
type Security struct {
	LastLogin              *time.Time
	LoginAttempts          int
	LockUntil              *time.Time
	PasswordResetToken     string
	PasswordResetExpires   *time.Time
	EmailVerificationToken string
	EmailVerified          bool
}

// PublicUser is the sanitized projection returned to callers.
type PublicUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	FullName  string    `json:"full_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeEmail trims and lower-cases an address so that lookups and the
// uniqueness constraint are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.Profile.FirstName + " " + u.Profile.LastName)
}

// IsLocked reports whether the account lock window is still open at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.Security.LockUntil != nil && u.Security.LockUntil.After(now)
}

// Clone returns a deep copy so callers can mutate it and write it back
// without touching the instance they read.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Security.LastLogin = cloneTime(u.Security.LastLogin)
	c.Security.LockUntil = cloneTime(u.Security.LockUntil)
	c.Security.PasswordResetExpires = cloneTime(u.Security.PasswordResetExpires)
	return &c
}

func (u *User) Sanitize() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		FirstName: u.Profile.FirstName,
		LastName:  u.Profile.LastName,
		FullName:  u.FullName(),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// RegisterFailedLogin counts a wrong password. An expired lock resets the
// counter first. Reaching maxAttempts opens a lock window of lockFor.
// It returns true when the account is locked after this attempt.
func (s *Security) RegisterFailedLogin(now time.Time, maxAttempts int, lockFor time.Duration) bool {
	if s.LockUntil != nil && !s.LockUntil.After(now) {
		s.LoginAttempts = 0
		s.LockUntil = nil
	}
	s.LoginAttempts++
	if maxAttempts > 0 && s.LoginAttempts >= maxAttempts {
		until := now.Add(lockFor)
		s.LockUntil = &until
		return true
	}
	return false
}

func (s *Security) RegisterSuccessfulLogin(now time.Time) {
	t := now
	s.LastLogin = &t
	s.LoginAttempts = 0
	s.LockUntil = nil
}

// SetPasswordReset stores a reset token digest valid until expires.
// A new call overwrites and so invalidates any earlier token.
func (s *Security) SetPasswordReset(digest string, expires time.Time) {
	s.PasswordResetToken = digest
	s.PasswordResetExpires = &expires
}

// ResetTokenUsable reports whether the stored reset token is still honored.
func (s *Security) ResetTokenUsable(now time.Time) bool {
	return s.PasswordResetToken != "" && s.PasswordResetExpires != nil && s.PasswordResetExpires.After(now)
}

func (s *Security) ClearPasswordReset() {
	s.PasswordResetToken = ""
	s.PasswordResetExpires = nil
}

func (s *Security) MarkEmailVerified() {
	s.EmailVerified = true
	s.EmailVerificationToken = ""
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
