package service

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopcore/admin-guard/internal/model"
)

// ErrorKind groups failures by how the caller can react to them.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindAuthentication ErrorKind = "authentication"
	KindAuthorization  ErrorKind = "authorization"
	KindConflict       ErrorKind = "conflict"
	KindNotFound       ErrorKind = "not_found"
	KindTransient      ErrorKind = "transient"
)

// ErrorCode is the stable identifier reported to API clients.
type ErrorCode string

const (
	// ─── Token validation ──────────────────────────────────────────────
	CodeNoToken                ErrorCode = "NO_TOKEN"
	CodeTokenExpired           ErrorCode = "TOKEN_EXPIRED"
	CodeInvalidToken           ErrorCode = "INVALID_TOKEN"
	CodeInvalidPayload         ErrorCode = "INVALID_PAYLOAD"
	CodeUserNotFound           ErrorCode = "USER_NOT_FOUND"
	CodeAccountDeleted         ErrorCode = "ACCOUNT_DELETED"
	CodeAccountNotApproved     ErrorCode = "ACCOUNT_NOT_APPROVED"
	CodeAccountLocked          ErrorCode = "ACCOUNT_LOCKED"
	CodeSessionExpired         ErrorCode = "SESSION_EXPIRED"
	CodeInsufficientPrivileges ErrorCode = "INSUFFICIENT_PRIVILEGES"

	// ─── Credentials & policy ──────────────────────────────────────────
	CodeInvalidCredentials       ErrorCode = "INVALID_CREDENTIALS"
	CodeCurrentPasswordIncorrect ErrorCode = "CURRENT_PASSWORD_INCORRECT"
	CodePasswordReused           ErrorCode = "PASSWORD_REUSED"
	CodeInvalidResetCode         ErrorCode = "INVALID_RESET_CODE"
	CodeSelfActionForbidden      ErrorCode = "SELF_ACTION_FORBIDDEN"
	CodePrincipalProtected       ErrorCode = "PRINCIPAL_PROTECTED"
	CodeInvalidStatusTransition  ErrorCode = "INVALID_STATUS_TRANSITION"
	CodeConcurrentModification   ErrorCode = "CONCURRENT_MODIFICATION"
	CodeNotFound                 ErrorCode = "NOT_FOUND"
	CodeSessionNotFound          ErrorCode = "SESSION_NOT_FOUND"
)

// AuthError is the typed failure returned for expected conditions.
// Compare with errors.Is against the sentinels below; codes are what match.
type AuthError struct {
	Code    ErrorCode
	Kind    ErrorKind
	Message string
	// LockoutRemaining is set for CodeAccountLocked.
	LockoutRemaining time.Duration
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any AuthError carrying the same code.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Code == e.Code
}

// LockoutMinutes rounds the remaining lockout up to whole minutes.
func (e *AuthError) LockoutMinutes() int {
	return int(math.Ceil(e.LockoutRemaining.Minutes()))
}

func newError(code ErrorCode, kind ErrorKind, msg string) *AuthError {
	return &AuthError{Code: code, Kind: kind, Message: msg}
}

var (
	ErrNoToken                = newError(CodeNoToken, KindAuthentication, "authentication token required")
	ErrTokenExpired           = newError(CodeTokenExpired, KindAuthentication, "token has expired")
	ErrInvalidToken           = newError(CodeInvalidToken, KindAuthentication, "token is invalid")
	ErrInvalidPayload         = newError(CodeInvalidPayload, KindAuthentication, "token payload is invalid")
	ErrUserNotFound           = newError(CodeUserNotFound, KindAuthentication, "account no longer exists")
	ErrAccountDeleted         = newError(CodeAccountDeleted, KindAuthentication, "account has been deleted")
	ErrAccountNotApproved     = newError(CodeAccountNotApproved, KindAuthorization, "account is not approved")
	ErrAccountLocked          = newError(CodeAccountLocked, KindAuthorization, "account is temporarily locked")
	ErrSessionExpired         = newError(CodeSessionExpired, KindAuthentication, "session has expired or was revoked")
	ErrInsufficientPrivileges = newError(CodeInsufficientPrivileges, KindAuthorization, "principal role required")

	ErrInvalidCredentials       = newError(CodeInvalidCredentials, KindAuthentication, "invalid email or password")
	ErrCurrentPasswordIncorrect = newError(CodeCurrentPasswordIncorrect, KindValidation, "current password is incorrect")
	ErrPasswordReused           = newError(CodePasswordReused, KindConflict, "password was used recently")
	ErrInvalidResetCode         = newError(CodeInvalidResetCode, KindValidation, "reset code is invalid or expired")
	ErrSelfActionForbidden      = newError(CodeSelfActionForbidden, KindAuthorization, "cannot perform this action on your own account")
	ErrPrincipalProtected       = newError(CodePrincipalProtected, KindAuthorization, "principal accounts cannot be modified")
	ErrInvalidStatusTransition  = newError(CodeInvalidStatusTransition, KindConflict, "account is not in a state that allows this action")
	ErrConcurrentModification   = newError(CodeConcurrentModification, KindTransient, "account was modified concurrently, retry")
	ErrNotFound                 = newError(CodeNotFound, KindNotFound, "account not found")
	ErrSessionNotFound          = newError(CodeSessionNotFound, KindNotFound, "session not found")
)

// lockedError carries the remaining lockout.
func lockedError(remaining time.Duration) *AuthError {
	e := *ErrAccountLocked
	e.LockoutRemaining = remaining
	return &e
}

// translateModelError maps aggregate and store errors onto API errors.
// Unknown errors pass through and surface as internal failures.
func translateModelError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrAccountNotFound), errors.Is(err, model.ErrAccountAlreadyGone):
		return ErrNotFound
	case errors.Is(err, model.ErrInvalidTransition):
		return ErrInvalidStatusTransition
	case errors.Is(err, model.ErrPrincipalProtected):
		return ErrPrincipalProtected
	case errors.Is(err, model.ErrConcurrentUpdate):
		return ErrConcurrentModification
	}
	return err
}
