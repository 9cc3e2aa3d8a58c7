package application

import "errors"

// ErrorKind is the closed set of failures the auth service reports to its
// callers. The HTTP layer switches on it exhaustively.
type ErrorKind int

const (
	KindDuplicateEmail ErrorKind = iota + 1
	KindInvalidCredentials
	KindAccountInactive
	KindAccountLocked
	KindInvalidRefreshToken
	KindUserNotFound
	KindInvalidOrExpiredToken
	KindInvalidVerificationToken
	KindPasswordTooLong
)

func (k ErrorKind) String() string {
	switch k {
	case KindDuplicateEmail:
		return "duplicate_email"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindAccountInactive:
		return "account_inactive"
	case KindAccountLocked:
		return "account_locked"
	case KindInvalidRefreshToken:
		return "invalid_refresh_token"
	case KindUserNotFound:
		return "user_not_found"
	case KindInvalidOrExpiredToken:
		return "invalid_or_expired_token"
	case KindInvalidVerificationToken:
		return "invalid_verification_token"
	case KindPasswordTooLong:
		return "password_too_long"
	}
	return "unknown"
}

// Error is a typed auth failure.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches any *Error of the same kind, so errors.Is(err, ErrAccountLocked)
// works regardless of the message.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

var (
	ErrDuplicateEmail           = &Error{Kind: KindDuplicateEmail, Message: "user already exists with this email"}
	ErrInvalidCredentials       = &Error{Kind: KindInvalidCredentials, Message: "invalid email or password"}
	ErrAccountInactive          = &Error{Kind: KindAccountInactive, Message: "account is deactivated"}
	ErrAccountLocked            = &Error{Kind: KindAccountLocked, Message: "account is temporarily locked"}
	ErrInvalidRefreshToken      = &Error{Kind: KindInvalidRefreshToken, Message: "invalid refresh token"}
	ErrUserNotFound             = &Error{Kind: KindUserNotFound, Message: "user not found"}
	ErrInvalidOrExpiredToken    = &Error{Kind: KindInvalidOrExpiredToken, Message: "invalid or expired reset token"}
	ErrInvalidVerificationToken = &Error{Kind: KindInvalidVerificationToken, Message: "invalid verification token"}
	ErrPasswordTooLong          = &Error{Kind: KindPasswordTooLong, Message: "password must be at most 72 bytes"}
)

// KindOf extracts the kind of a typed auth failure.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
