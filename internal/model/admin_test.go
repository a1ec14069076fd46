package model_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shopcore/admin-guard/internal/model"
)

func TestNewAccount_Defaults(t *testing.T) {
	a := model.NewAccount("id", "  Kofi ", " Kofi@Shop.COM ", "hash", base)

	assert.Equal(t, "Kofi", a.Name)
	assert.Equal(t, "kofi@shop.com", a.Email)
	assert.Equal(t, model.RoleAdmin, a.Role)
	assert.Equal(t, model.StatusPending, a.Status)
	assert.Equal(t, model.DefaultNotificationPreferences(), a.EmailNotifications)
	assert.False(t, a.CanAccessAdmin())
	assert.False(t, a.IsPrincipal())
}

func TestRegisterFailedLogin_ProgressiveLockout(t *testing.T) {
	a := newTestAccount()

	a.RegisterFailedLogin(base)
	a.RegisterFailedLogin(base)
	assert.False(t, a.IsLocked(base), "2nd failure must not lock")
	assert.Nil(t, a.LockoutUntil)

	a.RegisterFailedLogin(base)
	require.True(t, a.IsLocked(base))
	assert.Equal(t, base.Add(5*time.Minute), *a.LockoutUntil)

	a.RegisterFailedLogin(base)
	a.RegisterFailedLogin(base)
	assert.Equal(t, 5, a.FailedLoginAttempts)
	assert.Equal(t, base.Add(30*time.Minute), *a.LockoutUntil)
	assert.Equal(t, 30*time.Minute, a.LockoutRemaining(base))

	assert.False(t, a.IsLocked(base.Add(31*time.Minute)))
	assert.Zero(t, a.LockoutRemaining(base.Add(31*time.Minute)))
}

func TestLockedImpliesThreshold(t *testing.T) {
	a := newTestAccount()
	for i := 1; i <= 7; i++ {
		a.RegisterFailedLogin(base)
		if a.IsLocked(base) {
			assert.GreaterOrEqual(t, a.FailedLoginAttempts, model.FirstLockoutThreshold)
		}
	}
	a.ResetLoginFailures()
	assert.False(t, a.IsLocked(base))
	assert.Zero(t, a.FailedLoginAttempts)
}

func TestApprovalTransitions(t *testing.T) {
	a := newTestAccount()

	require.NoError(t, a.Approve("principal-1", base))
	assert.Equal(t, model.StatusApproved, a.Status)
	assert.Equal(t, "principal-1", *a.ApprovedBy)
	assert.Equal(t, base, *a.ApprovedAt)
	assert.True(t, a.CanAccessAdmin())

	assert.ErrorIs(t, a.Approve("principal-1", base), model.ErrInvalidTransition)
	assert.ErrorIs(t, a.Reject("late"), model.ErrInvalidTransition)
}

func TestReject(t *testing.T) {
	a := newTestAccount()

	require.NoError(t, a.Reject("  unknown applicant "))
	assert.Equal(t, model.StatusRejected, a.Status)
	assert.Equal(t, "unknown applicant", a.RejectionReason)
	assert.False(t, a.Status.CanLogin())

	assert.ErrorIs(t, a.Approve("p", base), model.ErrInvalidTransition)
}

func TestToggleStatus(t *testing.T) {
	a := newTestAccount()
	assert.ErrorIs(t, a.ToggleStatus(base), model.ErrInvalidTransition)

	require.NoError(t, a.Approve("p", base))
	_, _, err := a.AddSession(device("1.1.1.1", ""), base)
	require.NoError(t, err)

	require.NoError(t, a.ToggleStatus(base))
	assert.Equal(t, model.StatusSuspended, a.Status)
	assert.Equal(t, 0, activeCount(a))

	require.NoError(t, a.ToggleStatus(base))
	assert.Equal(t, model.StatusApproved, a.Status)
}

func TestPrincipalIsProtected(t *testing.T) {
	a := newTestAccount()
	a.Role = model.RolePrincipal
	a.Status = model.StatusApproved

	assert.ErrorIs(t, a.ToggleStatus(base), model.ErrPrincipalProtected)
	assert.ErrorIs(t, a.SoftDelete("other", base), model.ErrPrincipalProtected)
	assert.Equal(t, model.StatusApproved, a.Status)
}

func TestSoftDelete(t *testing.T) {
	a := newTestAccount()
	require.NoError(t, a.Approve("p", base))
	_, _, err := a.AddSession(device("1.1.1.1", ""), base)
	require.NoError(t, err)

	require.NoError(t, a.SoftDelete("p", base.Add(time.Hour)))

	assert.True(t, a.IsDeleted)
	assert.Equal(t, model.StatusSuspended, a.Status)
	assert.Equal(t, "p", *a.DeletedBy)
	assert.Equal(t, base.Add(time.Hour), *a.DeletedAt)
	assert.Equal(t, 0, activeCount(a))
	assert.False(t, a.CanAccessAdmin())

	assert.ErrorIs(t, a.SoftDelete("p", base), model.ErrAccountAlreadyGone)
}

func TestPasswordHistory(t *testing.T) {
	a := newTestAccount()
	hash := func(p string) string {
		h, err := model.HashPassword(p, bcrypt.MinCost)
		require.NoError(t, err)
		return h
	}

	a.SetPassword(hash("Password0"), base)
	assert.Empty(t, a.PasswordHistory, "initial password has no predecessor")
	assert.True(t, a.MatchPassword("Password0"))
	assert.False(t, a.MatchPassword("password0"))

	for i := 1; i <= 7; i++ {
		a.SetPassword(hash(fmt.Sprintf("Password%d", i)), base.Add(time.Duration(i)*time.Hour))
		assert.LessOrEqual(t, len(a.PasswordHistory), model.MaxPasswordHistory)
	}

	assert.Len(t, a.PasswordHistory, 5)
	assert.Equal(t, base.Add(7*time.Hour), *a.LastPasswordChange)

	// History holds Password2..Password6; Password7 is current.
	for i := 2; i <= 7; i++ {
		assert.True(t, a.IsPasswordReused(fmt.Sprintf("Password%d", i)), i)
	}
	assert.False(t, a.IsPasswordReused("Password0"))
	assert.False(t, a.IsPasswordReused("Password1"))
	assert.False(t, a.IsPasswordReused("Brand-new-1"))
}

func TestMatchPassword_EmptyHash(t *testing.T) {
	a := newTestAccount()
	assert.False(t, a.MatchPassword(""))
	assert.False(t, a.MatchPassword("anything"))
}

func TestResetCode(t *testing.T) {
	a := newTestAccount()
	expires := base.Add(15 * time.Minute)

	a.SetResetCode(model.HashResetCode("123456"), expires)
	assert.Equal(t, 1, a.ResetPasswordAttempts)
	assert.NotEqual(t, "123456", a.ResetPasswordToken)

	assert.True(t, a.ResetCodeValid("123456", base))
	assert.True(t, a.ResetCodeValid("123456", expires), "still valid exactly at the boundary")
	assert.False(t, a.ResetCodeValid("123456", expires.Add(time.Nanosecond)))
	assert.False(t, a.ResetCodeValid("654321", base))

	a.ClearResetCode()
	assert.False(t, a.ResetCodeValid("123456", base))
	assert.Zero(t, a.ResetPasswordAttempts)
}

func TestRecordLogin_CapsAndOrders(t *testing.T) {
	a := newTestAccount()
	for i := 0; i < 60; i++ {
		a.RecordLogin(model.NewLoginRecord(device("1.1.1.1", ""), i%2 == 0, model.FailureInvalidPassword, base.Add(time.Duration(i)*time.Minute)))
	}

	require.Len(t, a.LoginHistory, model.MaxLoginHistory)
	assert.Equal(t, base.Add(10*time.Minute), a.LoginHistory[0].LoginTime)

	recent := a.RecentLogins(3)
	require.Len(t, recent, 3)
	assert.Equal(t, base.Add(59*time.Minute), recent[0].LoginTime)
	assert.Equal(t, model.FailureInvalidPassword, recent[0].FailureReason)

	ok := a.RecentSuccessfulLogins(2)
	require.Len(t, ok, 2)
	assert.Equal(t, base.Add(58*time.Minute), ok[0].LoginTime)
	assert.Empty(t, ok[0].FailureReason)
}

func TestNotificationPreferencesRequest_Apply(t *testing.T) {
	off := false
	prefs := model.NotificationPreferencesRequest{NewLogin: &off}.Apply(model.DefaultNotificationPreferences())

	assert.False(t, prefs.NewLogin)
	assert.True(t, prefs.SecurityAlerts)
}
