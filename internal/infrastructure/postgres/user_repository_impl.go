package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oksasatya/resume-analyzer-api/internal/domain/entity"
	"github.com/oksasatya/resume-analyzer-api/internal/domain/repository"
)

const pgUniqueViolation = "23505"

const userColumns = `id, email, password_hash, role, first_name, last_name, is_active,
		email_verified, email_verification_token, password_reset_token, password_reset_expires,
		login_attempts, lock_until, last_login, created_at, updated_at`

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, role, first_name, last_name, is_active,
			email_verified, email_verification_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`, entity.NormalizeEmail(u.Email), u.PasswordHash, string(u.Role), u.Profile.FirstName, u.Profile.LastName,
		u.IsActive, u.Security.EmailVerified, nullString(u.Security.EmailVerificationToken),
		timeOrNow(u.CreatedAt), timeOrNow(u.UpdatedAt))

	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, entity.NormalizeEmail(email))
}

func (r *UserRepository) FindByResetToken(ctx context.Context, digest string) (*entity.User, error) {
	if digest == "" {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE password_reset_token = $1`, digest)
}

func (r *UserRepository) FindByVerificationToken(ctx context.Context, digest string) (*entity.User, error) {
	if digest == "" {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email_verification_token = $1`, digest)
}

// Save writes every mutable column in a single UPDATE.
func (r *UserRepository) Save(ctx context.Context, u *entity.User) error {
	if _, err := uuid.Parse(u.ID); err != nil {
		return repository.ErrNotFound
	}
	s := u.Security
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET email = $2, password_hash = $3, role = $4, first_name = $5, last_name = $6, is_active = $7,
			email_verified = $8, email_verification_token = $9, password_reset_token = $10,
			password_reset_expires = $11, login_attempts = $12, lock_until = $13, last_login = $14,
			updated_at = $15
		WHERE id = $1
	`, u.ID, entity.NormalizeEmail(u.Email), u.PasswordHash, string(u.Role), u.Profile.FirstName, u.Profile.LastName,
		u.IsActive, s.EmailVerified, nullString(s.EmailVerificationToken), nullString(s.PasswordResetToken),
		nullTime(s.PasswordResetExpires), s.LoginAttempts, nullTime(s.LockUntil), nullTime(s.LastLogin),
		timeOrNow(u.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateEmail
		}
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdateLoginState(ctx context.Context, id string, st repository.LoginState, now time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return repository.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET login_attempts = $2, lock_until = $3, last_login = $4, updated_at = $5
		WHERE id = $1
	`, id, st.LoginAttempts, nullTime(st.LockUntil), nullTime(st.LastLogin), now)
	return affectedOne(res, err, "update login state")
}

func (r *UserRepository) SetPasswordReset(ctx context.Context, id, digest string, expires, now time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return repository.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_reset_token = $2, password_reset_expires = $3, updated_at = $4
		WHERE id = $1
	`, id, digest, expires, now)
	return affectedOne(res, err, "set password reset")
}

// ConsumePasswordReset spends the token in the same statement that checks
// it, so of two concurrent resets only one matches the row.
func (r *UserRepository) ConsumePasswordReset(ctx context.Context, digest, newHash string, now time.Time) (*entity.User, error) {
	if digest == "" {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, `
		UPDATE users
		SET password_hash = $2, password_reset_token = NULL, password_reset_expires = NULL,
			login_attempts = 0, lock_until = NULL, updated_at = $3
		WHERE password_reset_token = $1 AND password_reset_expires > $3
		RETURNING `+userColumns, digest, newHash, now)
}

func (r *UserRepository) SetVerificationToken(ctx context.Context, id, digest string, now time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return repository.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET email_verification_token = $2, updated_at = $3
		WHERE id = $1 AND NOT email_verified
	`, id, digest, now)
	return affectedOne(res, err, "set verification token")
}

func (r *UserRepository) ConsumeVerificationToken(ctx context.Context, digest string, now time.Time) (*entity.User, error) {
	if digest == "" {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, `
		UPDATE users SET email_verified = TRUE, email_verification_token = NULL, updated_at = $2
		WHERE email_verification_token = $1
		RETURNING `+userColumns, digest, now)
}

func affectedOne(res sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*entity.User, error) {
	var (
		u                                     entity.User
		role                                  string
		verifyToken, resetToken               sql.NullString
		resetExpires, lockUntil, lastLoginRaw sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &role, &u.Profile.FirstName, &u.Profile.LastName, &u.IsActive,
		&u.Security.EmailVerified, &verifyToken, &resetToken, &resetExpires,
		&u.Security.LoginAttempts, &lockUntil, &lastLoginRaw, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	u.Role = entity.Role(role)
	u.Security.EmailVerificationToken = verifyToken.String
	u.Security.PasswordResetToken = resetToken.String
	u.Security.PasswordResetExpires = timePtr(resetExpires)
	u.Security.LockUntil = timePtr(lockUntil)
	u.Security.LastLogin = timePtr(lastLoginRaw)
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

var _ repository.UserRepository = (*UserRepository)(nil)
