package model

import "time"

// Failure reasons recorded on unsuccessful logins.
const (
	FailureInvalidPassword = "invalid password"
	FailureAccountLocked   = "account locked"
	FailureNotApproved     = "account not approved"
)

// LoginRecord is one login attempt. Records are appended newest-last and
// never modified.
type LoginRecord struct {
	IP            string    `json:"ip" bson:"ip"`
	UserAgent     string    `json:"user_agent" bson:"user_agent"`
	Location      string    `json:"location" bson:"location"`
	Browser       string    `json:"browser" bson:"browser"`
	OS            string    `json:"os" bson:"os"`
	Success       bool      `json:"success" bson:"success"`
	LoginTime     time.Time `json:"login_time" bson:"login_time"`
	FailureReason string    `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
}

// Signature identifies the browser/OS pair of the attempt.
func (r LoginRecord) Signature() string {
	return r.Browser + "-" + r.OS
}

// NewLoginRecord builds a record from a device fingerprint.
func NewLoginRecord(device DeviceInfo, success bool, failureReason string, now time.Time) LoginRecord {
	rec := LoginRecord{
		IP:        device.IP,
		UserAgent: device.UserAgent,
		Location:  device.Location,
		Browser:   device.Browser,
		OS:        device.OS,
		Success:   success,
		LoginTime: now,
	}
	if !success {
		rec.FailureReason = failureReason
	}
	return rec
}

// RecordLogin appends rec and prunes the oldest entries beyond MaxLoginHistory.
func (a *Account) RecordLogin(rec LoginRecord) {
	a.LoginHistory = append(a.LoginHistory, rec)
	if over := len(a.LoginHistory) - MaxLoginHistory; over > 0 {
		a.LoginHistory = append([]LoginRecord(nil), a.LoginHistory[over:]...)
	}
}

// RecentLogins returns up to n records, newest first.
func (a *Account) RecentLogins(n int) []LoginRecord {
	if n > len(a.LoginHistory) {
		n = len(a.LoginHistory)
	}
	out := make([]LoginRecord, 0, n)
	for i := len(a.LoginHistory) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, a.LoginHistory[i])
	}
	return out
}

// RecentSuccessfulLogins returns up to n successful records, newest first.
func (a *Account) RecentSuccessfulLogins(n int) []LoginRecord {
	out := make([]LoginRecord, 0, n)
	for i := len(a.LoginHistory) - 1; i >= 0 && len(out) < n; i-- {
		if a.LoginHistory[i].Success {
			out = append(out, a.LoginHistory[i])
		}
	}
	return out
}
