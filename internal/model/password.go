package model

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a password with the given bcrypt cost.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(hash), err
}

// MatchPassword compares candidate against the stored hash. A mismatch or a
// malformed hash yields false.
func (a *Account) MatchPassword(candidate string) bool {
	if a.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(candidate)) == nil
}

// IsPasswordReused reports whether candidate equals the current password or
// any password kept in history.
func (a *Account) IsPasswordReused(candidate string) bool {
	if a.MatchPassword(candidate) {
		return true
	}
	for _, h := range a.PasswordHistory {
		if bcrypt.CompareHashAndPassword([]byte(h.Hash), []byte(candidate)) == nil {
			return true
		}
	}
	return false
}

// SetPassword installs a new hash, pushing the previous one into a history
// capped at MaxPasswordHistory (oldest dropped first).
func (a *Account) SetPassword(newHash string, now time.Time) {
	if a.PasswordHash != "" {
		a.PasswordHistory = append(a.PasswordHistory, PasswordHistoryEntry{
			Hash:      a.PasswordHash,
			ChangedAt: now,
		})
		if over := len(a.PasswordHistory) - MaxPasswordHistory; over > 0 {
			a.PasswordHistory = append([]PasswordHistoryEntry(nil), a.PasswordHistory[over:]...)
		}
	}
	a.PasswordHash = newHash
	a.LastPasswordChange = &now
}

// HashResetCode digests a one-time reset code for storage.
func HashResetCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// SetResetCode stores a reset code digest and its expiry and counts the request.
func (a *Account) SetResetCode(codeHash string, expires time.Time) {
	a.ResetPasswordToken = codeHash
	a.ResetPasswordExpires = &expires
	a.ResetPasswordAttempts++
}

// ResetCodeValid reports whether code matches the stored digest and has not expired.
// A code is expired once now is strictly after its expiry.
func (a *Account) ResetCodeValid(code string, now time.Time) bool {
	if a.ResetPasswordToken == "" || a.ResetPasswordExpires == nil {
		return false
	}
	if now.After(*a.ResetPasswordExpires) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a.ResetPasswordToken), []byte(HashResetCode(code))) == 1
}

// ClearResetCode drops any outstanding code and the request counter.
func (a *Account) ClearResetCode() {
	a.ResetPasswordToken = ""
	a.ResetPasswordExpires = nil
	a.ResetPasswordAttempts = 0
}
