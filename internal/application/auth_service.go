package application

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/resume-analyzer-api/internal/domain/entity"
	repo "github.com/oksasatya/resume-analyzer-api/internal/domain/repository"
	"github.com/oksasatya/resume-analyzer-api/pkg/helpers"
)

// authStats is published under /debug/vars as "auth".
var authStats = expvar.NewMap("auth")

// Policy holds the tunable parts of the session lifecycle.
type Policy struct {
	MaxLoginAttempts       int
	LockDuration           time.Duration
	ResetTokenTTL          time.Duration
	VerificationTokenBytes int
}

func DefaultPolicy() Policy {
	return Policy{
		MaxLoginAttempts:       5,
		LockDuration:           2 * time.Hour,
		ResetTokenTTL:          time.Hour,
		VerificationTokenBytes: 32,
	}
}

type AuthDeps struct {
	Users    repo.UserRepository
	Denylist repo.TokenDenylist
	Notifier Notifier
	Hasher   PasswordHasher
	Tokens   TokenIssuer
	Audit    AuditSink
	Logger   *logrus.Logger
	Policy   Policy
	Now      func() time.Time
	// Background runs work that must not hold up the response. Nil starts
	// a goroutine.
	Background func(func())
}

// AuthService orchestrates registration, login and the token lifecycles.
// It holds no per-user state; everything lives in the credential store
// and the denylist.
type AuthService struct {
	users    repo.UserRepository
	denylist repo.TokenDenylist
	notifier Notifier
	hasher   PasswordHasher
	tokens   TokenIssuer
	audit    AuditSink
	logger   *logrus.Logger
	policy   Policy
	now      func() time.Time
	bg       func(func())

	// dummyHash is compared against when the email is unknown so that
	// both failure paths of Login cost one bcrypt comparison.
	dummyHash string
}

func NewAuthService(d AuthDeps) *AuthService {
	s := &AuthService{
		users:    d.Users,
		denylist: d.Denylist,
		notifier: d.Notifier,
		hasher:   d.Hasher,
		tokens:   d.Tokens,
		audit:    d.Audit,
		logger:   d.Logger,
		policy:   d.Policy,
		now:      d.Now,
		bg:       d.Background,
	}
	if s.logger == nil {
		s.logger = helpers.NewNopLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.bg == nil {
		s.bg = func(f func()) { go f() }
	}
	def := DefaultPolicy()
	if s.policy.MaxLoginAttempts <= 0 {
		s.policy.MaxLoginAttempts = def.MaxLoginAttempts
	}
	if s.policy.ResetTokenTTL <= 0 {
		s.policy.ResetTokenTTL = def.ResetTokenTTL
	}
	if s.policy.LockDuration <= 0 {
		s.policy.LockDuration = def.LockDuration
	}
	if s.policy.VerificationTokenBytes < def.VerificationTokenBytes {
		s.policy.VerificationTokenBytes = def.VerificationTokenBytes
	}
	if h, err := s.hasher.Hash("not-a-real-password"); err == nil {
		s.dummyHash = h
	}
	return s
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type AuthResult struct {
	User               entity.PublicUser
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

type RefreshResult struct {
	AccessToken       string
	AccessTokenExpiry time.Time
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := entity.NormalizeEmail(in.Email)

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}

	hash, err := s.hasher.Hash(in.Password)
	if errors.Is(err, helpers.ErrPasswordTooLong) {
		return nil, ErrPasswordTooLong
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	verifyToken, err := helpers.NewOpaqueToken(s.policy.VerificationTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}

	now := s.now()
	u := &entity.User{
		Email:        email,
		PasswordHash: hash,
		Role:         entity.RoleUser,
		Profile:      entity.Profile{FirstName: in.FirstName, LastName: in.LastName},
		Security:     entity.Security{EmailVerificationToken: helpers.HashToken(verifyToken)},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	// The account exists from here on; the email is a side effect.
	if nErr := s.notifier.SendVerification(ctx, u.Email, u.Profile.FirstName, verifyToken); nErr != nil {
		s.logger.WithError(nErr).WithField("user_id", u.ID).Warn("send verification email failed")
	}

	res, err := s.issuePair(u)
	if err != nil {
		return nil, err
	}
	authStats.Add("register", 1)
	s.record(ctx, AuditRegister, u.ID, u.Email, nil)
	return res, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = entity.NormalizeEmail(email)

	stored, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if stored == nil {
		s.hasher.Verify(password, s.dummyHash)
		authStats.Add("login_failed", 1)
		s.record(ctx, AuditLoginFailed, "", email, map[string]any{"reason": "unknown_email"})
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if stored.IsLocked(now) {
		authStats.Add("login_locked", 1)
		s.record(ctx, AuditLoginLocked, stored.ID, stored.Email, map[string]any{"lock_until": stored.Security.LockUntil})
		return nil, ErrAccountLocked
	}

	// Only the login columns are written back: a reset committed while
	// Verify runs must survive this attempt.
	u := stored.Clone()
	if !s.hasher.Verify(password, u.PasswordHash) {
		locked := u.Security.RegisterFailedLogin(now, s.policy.MaxLoginAttempts, s.policy.LockDuration)
		if err := s.users.UpdateLoginState(ctx, u.ID, loginState(u.Security), now); err != nil {
			s.logger.WithError(err).WithField("user_id", u.ID).Warn("persist failed login attempt failed")
		}
		if locked {
			s.logger.WithField("user_id", u.ID).Warn("account locked after repeated login failures")
		}
		authStats.Add("login_failed", 1)
		s.record(ctx, AuditLoginFailed, u.ID, u.Email, map[string]any{"attempts": u.Security.LoginAttempts, "locked": locked})
		return nil, ErrInvalidCredentials
	}

	if !u.IsActive {
		return nil, ErrAccountInactive
	}

	u.Security.RegisterSuccessfulLogin(now)
	u.UpdatedAt = now
	if err := s.users.UpdateLoginState(ctx, u.ID, loginState(u.Security), now); err != nil {
		return nil, fmt.Errorf("save login state: %w", err)
	}

	res, err := s.issuePair(u)
	if err != nil {
		return nil, err
	}
	authStats.Add("login_success", 1)
	s.record(ctx, AuditLoginSuccess, u.ID, u.Email, nil)
	return res, nil
}

// Refresh mints a new access token. The refresh token itself is not
// rotated and stays valid until it expires or is denylisted by Logout.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		authStats.Add("refresh_denied", 1)
		return nil, ErrInvalidRefreshToken
	}

	revoked, err := s.denylist.Has(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("check denylist: %w", err)
	}
	if revoked {
		authStats.Add("refresh_denied", 1)
		return nil, ErrInvalidRefreshToken
	}

	u, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !u.IsActive {
		return nil, ErrAccountInactive
	}

	access, exp, err := s.tokens.GenerateAccessToken(u)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	authStats.Add("refresh", 1)
	s.record(ctx, AuditRefresh, u.ID, "", nil)
	return &RefreshResult{AccessToken: access, AccessTokenExpiry: exp}, nil
}

// Logout denylists a verifiable refresh token for the rest of its
// lifetime. It never fails from the caller's point of view.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		s.logger.WithError(err).Debug("logout with unverifiable refresh token")
		return
	}
	if claims.ExpiresAt == nil {
		return
	}
	ttl := claims.ExpiresAt.Sub(s.now()).Truncate(time.Second)
	if ttl <= 0 {
		return
	}
	if err := s.denylist.Set(ctx, refreshToken, ttl); err != nil {
		s.logger.WithError(err).WithField("user_id", claims.UserID).Warn("denylist refresh token failed")
		return
	}
	authStats.Add("logout", 1)
	s.record(ctx, AuditLogout, claims.UserID, "", nil)
}

// ForgotPassword issues a reset token when the account exists. Both paths
// answer after the same lookup and token work; storing and mailing the
// token for a known account runs in the background.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = entity.NormalizeEmail(email)

	token, err := helpers.NewOpaqueToken(32)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	digest := helpers.HashToken(token)

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.record(ctx, AuditResetInitUnknown, "", email, nil)
			return nil
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	bctx := context.WithoutCancel(ctx)
	s.bg(func() { s.issueReset(bctx, u, token, digest) })
	return nil
}

func (s *AuthService) issueReset(ctx context.Context, u *entity.User, token, digest string) {
	log := s.logger.WithField("user_id", u.ID)
	now := s.now()
	if err := s.users.SetPasswordReset(ctx, u.ID, digest, now.Add(s.policy.ResetTokenTTL), now); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.record(ctx, AuditResetInitUnknown, "", u.Email, nil)
			return
		}
		log.WithError(err).Error("save reset token failed")
		return
	}
	if err := s.notifier.SendPasswordReset(ctx, u.Email, u.Profile.FirstName, token); err != nil {
		log.WithError(err).Warn("send password reset email failed")
	}
	authStats.Add("reset_init", 1)
	s.record(ctx, AuditResetInit, u.ID, u.Email, nil)
}

// ResetPassword sets a new password for the owner of a live reset token
// and spends the token. The lookup only rejects dead tokens early; the
// conditional consume decides, so a token works at most once.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return ErrInvalidOrExpiredToken
	}
	digest := helpers.HashToken(token)
	stored, err := s.users.FindByResetToken(ctx, digest)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}
	if !stored.Security.ResetTokenUsable(s.now()) {
		return ErrInvalidOrExpiredToken
	}

	hash, err := s.hasher.Hash(newPassword)
	if errors.Is(err, helpers.ErrPasswordTooLong) {
		return ErrPasswordTooLong
	}
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.ConsumePasswordReset(ctx, digest, hash, s.now())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("consume reset token: %w", err)
	}
	authStats.Add("reset_confirm", 1)
	s.record(ctx, AuditResetConfirm, u.ID, u.Email, nil)
	return nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidVerificationToken
	}
	u, err := s.users.ConsumeVerificationToken(ctx, helpers.HashToken(token), s.now())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidVerificationToken
		}
		return fmt.Errorf("consume verification token: %w", err)
	}

	if nErr := s.notifier.SendWelcome(ctx, u.Email, u.Profile.FirstName); nErr != nil {
		s.logger.WithError(nErr).WithField("user_id", u.ID).Warn("send welcome email failed")
	}
	authStats.Add("verify", 1)
	s.record(ctx, AuditVerifyConfirm, u.ID, u.Email, nil)
	return nil
}

// ResendVerification replaces the verification token of a signed-in user
// and mails the new one. Verified accounts are left untouched.
func (s *AuthService) ResendVerification(ctx context.Context, userID string) (alreadyVerified bool, err error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("lookup user: %w", err)
	}
	if u.Security.EmailVerified {
		return true, nil
	}

	token, err := helpers.NewOpaqueToken(s.policy.VerificationTokenBytes)
	if err != nil {
		return false, fmt.Errorf("generate verification token: %w", err)
	}
	if err := s.users.SetVerificationToken(ctx, u.ID, helpers.HashToken(token), s.now()); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// verified since the read
			return true, nil
		}
		return false, fmt.Errorf("save verification token: %w", err)
	}
	if nErr := s.notifier.SendVerification(ctx, u.Email, u.Profile.FirstName, token); nErr != nil {
		s.logger.WithError(nErr).WithField("user_id", u.ID).Warn("send verification email failed")
	}
	s.record(ctx, AuditVerifyResend, u.ID, u.Email, nil)
	return false, nil
}

func (s *AuthService) Profile(ctx context.Context, userID string) (*entity.PublicUser, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	p := u.Sanitize()
	return &p, nil
}

func loginState(sec entity.Security) repo.LoginState {
	return repo.LoginState{LoginAttempts: sec.LoginAttempts, LockUntil: sec.LockUntil, LastLogin: sec.LastLogin}
}

func (s *AuthService) issuePair(u *entity.User) (*AuthResult, error) {
	access, aexp, err := s.tokens.GenerateAccessToken(u)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refresh, rexp, err := s.tokens.GenerateRefreshToken(u)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", u.ID).Error("generate refresh token failed")
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	return &AuthResult{
		User:               u.Sanitize(),
		AccessToken:        access,
		AccessTokenExpiry:  aexp,
		RefreshToken:       refresh,
		RefreshTokenExpiry: rexp,
	}, nil
}

func (s *AuthService) record(ctx context.Context, action, userID, email string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, AuditEvent{Action: action, UserID: userID, Email: email, At: s.now().UTC(), Meta: meta})
}
