package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Token validation ──────────────────────────────────────────────
	ErrNoToken                ErrCode = "NO_TOKEN"
	ErrTokenExpired           ErrCode = "TOKEN_EXPIRED"
	ErrInvalidToken           ErrCode = "INVALID_TOKEN"
	ErrInvalidPayload         ErrCode = "INVALID_PAYLOAD"
	ErrUserNotFound           ErrCode = "USER_NOT_FOUND"
	ErrAccountDeleted         ErrCode = "ACCOUNT_DELETED"
	ErrAccountNotApproved     ErrCode = "ACCOUNT_NOT_APPROVED"
	ErrAccountLocked          ErrCode = "ACCOUNT_LOCKED"
	ErrSessionExpired         ErrCode = "SESSION_EXPIRED"
	ErrInsufficientPrivileges ErrCode = "INSUFFICIENT_PRIVILEGES"

	// ─── Credentials ───────────────────────────────────────────────────
	ErrInvalidCredentials       ErrCode = "INVALID_CREDENTIALS"
	ErrCurrentPasswordIncorrect ErrCode = "CURRENT_PASSWORD_INCORRECT"
	ErrPasswordReused           ErrCode = "PASSWORD_REUSED"
	ErrInvalidResetCode         ErrCode = "INVALID_RESET_CODE"

	// ─── Account lifecycle ─────────────────────────────────────────────
	ErrSelfActionForbidden     ErrCode = "SELF_ACTION_FORBIDDEN"
	ErrPrincipalProtected      ErrCode = "PRINCIPAL_PROTECTED"
	ErrInvalidStatusTransition ErrCode = "INVALID_STATUS_TRANSITION"
	ErrConcurrentModification  ErrCode = "CONCURRENT_MODIFICATION"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation ErrCode = "VALIDATION_ERROR"
	ErrInvalidID  ErrCode = "INVALID_ID"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrSessionNotFound ErrCode = "SESSION_NOT_FOUND"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Token validation ──────────────────────────────────────────────
	case ErrNoToken:
		return "Authentication token required."
	case ErrTokenExpired:
		return "Your session token has expired. Please sign in again."
	case ErrInvalidToken:
		return "Authentication token is invalid."
	case ErrInvalidPayload:
		return "Authentication token payload is invalid."
	case ErrUserNotFound:
		return "The account for this token no longer exists."
	case ErrAccountDeleted:
		return "This account has been deleted."
	case ErrAccountNotApproved:
		return "This account is not approved for admin access."
	case ErrAccountLocked:
		return "Account temporarily locked after repeated failed sign-ins."
	case ErrSessionExpired:
		return "Your session has expired or was signed out. Please sign in again."
	case ErrInsufficientPrivileges:
		return "Principal administrator rights are required."

	// ─── Credentials ───────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid email or password."
	case ErrCurrentPasswordIncorrect:
		return "Current password is incorrect."
	case ErrPasswordReused:
		return "New password must differ from your last five passwords."
	case ErrInvalidResetCode:
		return "Reset code is invalid or has expired."

	// ─── Account lifecycle ─────────────────────────────────────────────
	case ErrSelfActionForbidden:
		return "You cannot perform this action on your own account."
	case ErrPrincipalProtected:
		return "Principal accounts cannot be modified."
	case ErrInvalidStatusTransition:
		return "The account is not in a state that allows this action."
	case ErrConcurrentModification:
		return "The account was modified concurrently. Please retry."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrSessionNotFound:
		return "Session not found."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
