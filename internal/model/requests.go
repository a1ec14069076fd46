package model

// RegisterRequest is the self-registration payload.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,strongpassword,max=128"`
}

// LoginRequest is the payload for admin authentication.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,max=128"`
}

// ChangePasswordRequest changes the password of the authenticated admin.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required,max=128"`
	NewPassword     string `json:"new_password" binding:"required,strongpassword,max=128,nefield=CurrentPassword"`
}

// ResetRequest asks for a one-time reset code.
type ResetRequest struct {
	Email string `json:"email" binding:"required,email,max=255"`
}

// VerifyResetCodeRequest checks a code without consuming it.
type VerifyResetCodeRequest struct {
	Email string `json:"email" binding:"required,email,max=255"`
	Code  string `json:"code" binding:"required,len=6,numeric"`
}

// ResetPasswordRequest applies a new password using a reset code.
type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email,max=255"`
	Code        string `json:"code" binding:"required,len=6,numeric"`
	NewPassword string `json:"new_password" binding:"required,strongpassword,max=128"`
}

// RejectRequest carries an optional reason shown to the rejected admin.
type RejectRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// NotificationPreferencesRequest toggles email notifications. Nil fields are left unchanged.
type NotificationPreferencesRequest struct {
	NewLogin           *bool `json:"new_login"`
	NewRegistration    *bool `json:"new_registration"`
	SecurityAlerts     *bool `json:"security_alerts"`
	SuspiciousActivity *bool `json:"suspicious_activity"`
}

// Apply merges the request into prefs.
func (r NotificationPreferencesRequest) Apply(prefs NotificationPreferences) NotificationPreferences {
	if r.NewLogin != nil {
		prefs.NewLogin = *r.NewLogin
	}
	if r.NewRegistration != nil {
		prefs.NewRegistration = *r.NewRegistration
	}
	if r.SecurityAlerts != nil {
		prefs.SecurityAlerts = *r.SecurityAlerts
	}
	if r.SuspiciousActivity != nil {
		prefs.SuspiciousActivity = *r.SuspiciousActivity
	}
	return prefs
}
