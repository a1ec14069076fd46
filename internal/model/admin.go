package model

import (
	"strings"
	"time"
)

// Policy limits for the account aggregate.
const (
	MaxActiveSessions       = 5
	SessionLifetime         = 24 * time.Hour
	SessionInactivityCutoff = 24 * time.Hour
	MaxPasswordHistory      = 5
	MaxLoginHistory         = 50
	MaxSessionHistory       = 50

	FirstLockoutThreshold  = 3
	FirstLockoutDuration   = 5 * time.Minute
	SecondLockoutThreshold = 5
	SecondLockoutDuration  = 30 * time.Minute
)

// NotificationPreferences controls which events trigger outbound email.
type NotificationPreferences struct {
	NewLogin           bool `json:"new_login" bson:"new_login"`
	NewRegistration    bool `json:"new_registration" bson:"new_registration"`
	SecurityAlerts     bool `json:"security_alerts" bson:"security_alerts"`
	SuspiciousActivity bool `json:"suspicious_activity" bson:"suspicious_activity"`
}

// DefaultNotificationPreferences enables every notification.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		NewLogin:           true,
		NewRegistration:    true,
		SecurityAlerts:     true,
		SuspiciousActivity: true,
	}
}

// PasswordHistoryEntry is a previously used password hash.
type PasswordHistoryEntry struct {
	Hash      string    `json:"hash" bson:"hash"`
	ChangedAt time.Time `json:"changed_at" bson:"changed_at"`
}

// Account is the persisted admin record and the unit of concurrency:
// sessions, login history and password history live inside it and are only
// mutated through its methods.
type Account struct {
	ID           string `json:"id" bson:"_id"`
	Name         string `json:"name" bson:"name"`
	Email        string `json:"email" bson:"email"`
	PasswordHash string `json:"password_hash" bson:"password_hash"`
	Role         Role   `json:"role" bson:"role"`
	Status       Status `json:"status" bson:"status"`

	ApprovedBy      *string    `json:"approved_by,omitempty" bson:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty" bson:"approved_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty" bson:"rejection_reason,omitempty"`

	FailedLoginAttempts int        `json:"failed_login_attempts" bson:"failed_login_attempts"`
	LockoutUntil        *time.Time `json:"lockout_until,omitempty" bson:"lockout_until,omitempty"`

	LastLogin          *time.Time `json:"last_login,omitempty" bson:"last_login,omitempty"`
	LastLogout         *time.Time `json:"last_logout,omitempty" bson:"last_logout,omitempty"`
	LastPasswordChange *time.Time `json:"last_password_change,omitempty" bson:"last_password_change,omitempty"`

	PasswordHistory []PasswordHistoryEntry `json:"password_history" bson:"password_history"`

	// ResetPasswordToken holds the SHA-256 of the one-time code, never the code itself.
	ResetPasswordToken    string     `json:"reset_password_token,omitempty" bson:"reset_password_token,omitempty"`
	ResetPasswordExpires  *time.Time `json:"reset_password_expires,omitempty" bson:"reset_password_expires,omitempty"`
	ResetPasswordAttempts int        `json:"reset_password_attempts" bson:"reset_password_attempts"`

	ActiveSessions []Session     `json:"active_sessions" bson:"active_sessions"`
	LoginHistory   []LoginRecord `json:"login_history" bson:"login_history"`

	EmailNotifications NotificationPreferences `json:"email_notifications" bson:"email_notifications"`

	IsDeleted bool       `json:"is_deleted" bson:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" bson:"deleted_at,omitempty"`
	DeletedBy *string    `json:"deleted_by,omitempty" bson:"deleted_by,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
	// Version is bumped on every write; the Mongo store uses it for compare-and-swap.
	Version int64 `json:"version" bson:"version"`
}

// NewAccount builds a fresh self-registered account in the pending state.
func NewAccount(id, name, email, passwordHash string, now time.Time) *Account {
	return &Account{
		ID:                 id,
		Name:               strings.TrimSpace(name),
		Email:              NormalizeEmail(email),
		PasswordHash:       passwordHash,
		Role:               RoleAdmin,
		Status:             StatusPending,
		PasswordHistory:    []PasswordHistoryEntry{},
		ActiveSessions:     []Session{},
		LoginHistory:       []LoginRecord{},
		EmailNotifications: DefaultNotificationPreferences(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// NormalizeEmail lowercases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsLocked reports whether a lockout is in force at now.
func (a *Account) IsLocked(now time.Time) bool {
	return a.LockoutUntil != nil && a.LockoutUntil.After(now)
}

// LockoutRemaining returns how long the lockout still lasts, or zero.
func (a *Account) LockoutRemaining(now time.Time) time.Duration {
	if !a.IsLocked(now) {
		return 0
	}
	return a.LockoutUntil.Sub(now)
}

// CanAccessAdmin reports whether the account may use the admin surface.
func (a *Account) CanAccessAdmin() bool {
	return a.Status == StatusApproved && !a.IsDeleted
}

// IsPrincipal reports whether the account holds the principal role.
func (a *Account) IsPrincipal() bool {
	return a.Role.IsPrincipal()
}

// RegisterFailedLogin bumps the failure counter and applies progressive lockout.
// The higher threshold supersedes the lower one.
func (a *Account) RegisterFailedLogin(now time.Time) {
	a.FailedLoginAttempts++
	switch {
	case a.FailedLoginAttempts >= SecondLockoutThreshold:
		until := now.Add(SecondLockoutDuration)
		a.LockoutUntil = &until
	case a.FailedLoginAttempts >= FirstLockoutThreshold:
		until := now.Add(FirstLockoutDuration)
		a.LockoutUntil = &until
	}
}

// ResetLoginFailures clears the failure counter and any lockout.
func (a *Account) ResetLoginFailures() {
	a.FailedLoginAttempts = 0
	a.LockoutUntil = nil
}

// Approve moves a pending account to approved.
func (a *Account) Approve(approverID string, now time.Time) error {
	if a.Status != StatusPending {
		return ErrInvalidTransition
	}
	a.Status = StatusApproved
	a.ApprovedBy = &approverID
	a.ApprovedAt = &now
	a.RejectionReason = ""
	return nil
}

// Reject moves a pending account to rejected. A rejected account never logs in.
func (a *Account) Reject(reason string) error {
	if a.Status != StatusPending {
		return ErrInvalidTransition
	}
	a.Status = StatusRejected
	a.RejectionReason = strings.TrimSpace(reason)
	return nil
}

// ToggleStatus flips approved <-> suspended. Suspension revokes every session.
func (a *Account) ToggleStatus(now time.Time) error {
	if a.IsPrincipal() {
		return ErrPrincipalProtected
	}
	switch a.Status {
	case StatusApproved:
		a.Status = StatusSuspended
		a.RemoveAllSessions(now)
	case StatusSuspended:
		a.Status = StatusApproved
	default:
		return ErrInvalidTransition
	}
	return nil
}

// SoftDelete marks the account deleted and suspended and revokes all sessions.
// The record itself is kept.
func (a *Account) SoftDelete(deletedBy string, now time.Time) error {
	if a.IsPrincipal() {
		return ErrPrincipalProtected
	}
	if a.IsDeleted {
		return ErrAccountAlreadyGone
	}
	a.IsDeleted = true
	a.Status = StatusSuspended
	a.DeletedAt = &now
	a.DeletedBy = &deletedBy
	a.RemoveAllSessions(now)
	return nil
}

// Profile returns the client-safe view of the account.
func (a *Account) Profile(now time.Time) AdminProfile {
	return AdminProfile{
		ID:                  a.ID,
		Name:                a.Name,
		Email:               a.Email,
		Role:                a.Role,
		Status:              a.Status,
		ApprovedAt:          a.ApprovedAt,
		LastLogin:           a.LastLogin,
		LastPasswordChange:  a.LastPasswordChange,
		FailedLoginAttempts: a.FailedLoginAttempts,
		Locked:              a.IsLocked(now),
		ActiveSessionCount:  a.ActiveSessionCount(now),
		EmailNotifications:  a.EmailNotifications,
		CreatedAt:           a.CreatedAt,
	}
}

// AdminProfile is the JSON view returned to clients. It never carries hashes.
type AdminProfile struct {
	ID                  string                  `json:"id"`
	Name                string                  `json:"name"`
	Email               string                  `json:"email"`
	Role                Role                    `json:"role"`
	Status              Status                  `json:"status"`
	ApprovedAt          *time.Time              `json:"approved_at,omitempty"`
	LastLogin           *time.Time              `json:"last_login,omitempty"`
	LastPasswordChange  *time.Time              `json:"last_password_change,omitempty"`
	FailedLoginAttempts int                     `json:"failed_login_attempts"`
	Locked              bool                    `json:"locked"`
	ActiveSessionCount  int                     `json:"active_session_count"`
	EmailNotifications  NotificationPreferences `json:"email_notifications"`
	CreatedAt           time.Time               `json:"created_at"`
}

// AccountFilter narrows FindMany queries.
type AccountFilter struct {
	Status         *Status
	Role           *Role
	IncludeDeleted bool
	// LockedAfter selects accounts whose lockout_until is later than this instant.
	LockedAfter *time.Time
	// WithActiveSessions selects accounts holding at least one session flagged active.
	WithActiveSessions bool
	Limit              int
}
