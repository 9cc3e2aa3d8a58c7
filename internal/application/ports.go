package application

import (
	"context"
	"time"

	"github.com/oksasatya/resume-analyzer-api/internal/domain/entity"
	"github.com/oksasatya/resume-analyzer-api/pkg/helpers"
)

// Notifier sends transactional email. Calls are best-effort from the
// service's point of view.
type Notifier interface {
	SendVerification(ctx context.Context, email, name, token string) error
	SendPasswordReset(ctx context.Context, email, name, token string) error
	SendWelcome(ctx context.Context, email, name string) error
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// TokenIssuer is implemented by *helpers.JWTManager.
type TokenIssuer interface {
	GenerateAccessToken(u *entity.User) (string, time.Time, error)
	GenerateRefreshToken(u *entity.User) (string, time.Time, error)
	ParseRefreshToken(token string) (*helpers.RefreshClaims, error)
}

// AuditSink receives security-relevant events. Implementations must not
// block for long; failures are ignored by the service.
type AuditSink interface {
	Record(ctx context.Context, ev AuditEvent)
}

type AuditEvent struct {
	Action string         `json:"action"`
	UserID string         `json:"user_id,omitempty"`
	Email  string         `json:"email,omitempty"`
	At     time.Time      `json:"@timestamp"`
	Meta   map[string]any `json:"meta,omitempty"`
}

const (
	AuditRegister         = "register"
	AuditLoginSuccess     = "login_success"
	AuditLoginFailed      = "login_failed"
	AuditLoginLocked      = "login_locked"
	AuditRefresh          = "refresh"
	AuditLogout           = "logout"
	AuditResetInit        = "reset_init"
	AuditResetInitUnknown = "reset_init_unknown"
	AuditResetConfirm     = "reset_confirm"
	AuditVerifyConfirm    = "verify_confirm"
	AuditVerifyResend     = "verify_resend"
)
