package helpers

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/oksasatya/resume-analyzer-api/internal/domain/entity"
)

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// JWTManager issues and verifies access and refresh tokens. Access and
// refresh tokens are signed with separate secrets. Now stamps iat/exp and
// checks expiry; share it with anything that computes token lifetimes.
type JWTManager struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Now           func() time.Time
}

func NewJWTManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, issuer string) *JWTManager {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &JWTManager{
		AccessSecret:  []byte(accessSecret),
		RefreshSecret: []byte(refreshSecret),
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
		Issuer:        issuer,
		Now:           time.Now,
	}
}

// WithClock replaces the clock and returns m.
func (m *JWTManager) WithClock(now func() time.Time) *JWTManager {
	if now != nil {
		m.Now = now
	}
	return m
}

func (m *JWTManager) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

type AccessClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// userClaims lets verify reject tokens that parse but carry no identity.
type userClaims interface {
	jwt.Claims
	subject() string
}

func (c *AccessClaims) subject() string  { return c.UserID }
func (c *RefreshClaims) subject() string { return c.UserID }

func (m *JWTManager) registered(ttl time.Duration, id string) (jwt.RegisteredClaims, time.Time) {
	now := m.now()
	exp := now.Add(ttl)
	return jwt.RegisteredClaims{
		ID:        id,
		Issuer:    m.Issuer,
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(now),
	}, exp
}

func (m *JWTManager) GenerateAccessToken(u *entity.User) (string, time.Time, error) {
	rc, exp := m.registered(m.AccessTTL, "")
	claims := &AccessClaims{
		UserID:           u.ID,
		Email:            u.Email,
		Role:             u.Role.String(),
		RegisteredClaims: rc,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.AccessSecret)
	return s, exp, err
}

// GenerateRefreshToken signs {userId} with a unique jti so that every
// issued refresh token is a distinct denylist key.
func (m *JWTManager) GenerateRefreshToken(u *entity.User) (string, time.Time, error) {
	rc, exp := m.registered(m.RefreshTTL, uuid.NewString())
	claims := &RefreshClaims{UserID: u.ID, RegisteredClaims: rc}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.RefreshSecret)
	return s, exp, err
}

func (m *JWTManager) ParseAccessToken(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := verify(tokenStr, m.AccessSecret, claims, m.now); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *JWTManager) ParseRefreshToken(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := verify(tokenStr, m.RefreshSecret, claims, m.now); err != nil {
		return nil, err
	}
	return claims, nil
}

// verify returns ErrTokenExpired for an expired but otherwise well-formed
// token and ErrTokenInvalid for everything else.
func verify(tokenStr string, secret []byte, claims userClaims, now func() time.Time) error {
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired(), jwt.WithTimeFunc(now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !tkn.Valid || claims.subject() == "" {
		return ErrTokenInvalid
	}
	return nil
}
