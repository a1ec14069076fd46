package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/shopcore/admin-guard/internal/config"
	"github.com/shopcore/admin-guard/internal/metrics"
	"github.com/shopcore/admin-guard/internal/model"
)

// LoginInput is one login attempt.
type LoginInput struct {
	Email     string
	Password  string
	IP        string
	UserAgent string
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
	SessionID string             `json:"session_id"`
	Admin     model.AdminProfile `json:"admin"`
	Findings  []Finding          `json:"-"`
}

// Principal is the identity attached to an authenticated request.
type Principal struct {
	Account   *model.Account
	SessionID string
	Claims    *Claims
}

// SessionView is a session as listed to its owner.
type SessionView struct {
	model.Session
	Current bool `json:"current"`
}

// AuthService turns credentials into session-bound tokens and tokens back
// into authenticated principals.
type AuthService struct {
	store      AccountStore
	tokens     *TokenManager
	resolver   DeviceResolver
	analyzer   *ThreatAnalyzer
	notifier   Notifier
	events     EventPublisher
	bcryptCost int
	// dummyHash equalizes timing when the email is unknown.
	dummyHash []byte
	log       zerolog.Logger
	now       func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	cfg *config.Config,
	store AccountStore,
	tokens *TokenManager,
	resolver DeviceResolver,
	analyzer *ThreatAnalyzer,
	notifier Notifier,
	events EventPublisher,
	log zerolog.Logger,
) *AuthService {
	dummy, err := bcrypt.GenerateFromPassword([]byte("admin-guard-timing-equalizer"), cfg.BcryptCost)
	if err != nil {
		dummy = nil
	}
	return &AuthService{
		store:      store,
		tokens:     tokens,
		resolver:   resolver,
		analyzer:   analyzer,
		notifier:   notifier,
		events:     events,
		bcryptCost: cfg.BcryptCost,
		dummyHash:  dummy,
		log:        log.With().Str("component", "auth_service").Logger(),
		now:        time.Now,
	}
}

// Login authenticates an admin and opens a new session.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	acc, err := s.store.FindByEmail(ctx, in.Email)
	if errors.Is(err, model.ErrAccountNotFound) {
		s.burnPasswordCheck(in.Password)
		metrics.TrackLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if acc.IsDeleted {
		s.burnPasswordCheck(in.Password)
		metrics.TrackLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	// bcrypt runs outside the row lock; the closure re-checks only if the
	// hash changed in between.
	checkedHash := acc.PasswordHash
	passwordOK := acc.MatchPassword(in.Password)
	dev := s.resolver.Resolve(ctx, in.IP, in.UserAgent)

	var (
		outcome   error
		sessionID string
		evicted   []string
		expired   int
		findings  []Finding
		lockedNow bool
	)
	updated, err := s.store.Update(ctx, acc.ID, func(a *model.Account) error {
		now := s.now()
		outcome, sessionID, evicted, expired, findings, lockedNow = nil, "", nil, 0, nil, false

		if a.IsDeleted {
			return ErrInvalidCredentials
		}
		if a.PasswordHash != checkedHash {
			checkedHash = a.PasswordHash
			passwordOK = a.MatchPassword(in.Password)
		}

		switch {
		case !passwordOK:
			a.RegisterFailedLogin(now)
			lockedNow = a.FailedLoginAttempts == model.FirstLockoutThreshold ||
				a.FailedLoginAttempts == model.SecondLockoutThreshold
			a.RecordLogin(model.NewLoginRecord(dev, false, model.FailureInvalidPassword, now))
			outcome = ErrInvalidCredentials
			return nil
		case a.IsLocked(now):
			a.RecordLogin(model.NewLoginRecord(dev, false, model.FailureAccountLocked, now))
			outcome = lockedError(a.LockoutRemaining(now))
			return nil
		case !a.Status.CanLogin():
			a.RecordLogin(model.NewLoginRecord(dev, false, model.FailureNotApproved, now))
			outcome = ErrAccountNotApproved
			return nil
		}

		a.ResetLoginFailures()
		expired = a.CleanExpiredSessions(now)
		id, ev, err := a.AddSession(dev, now)
		if err != nil {
			return err
		}
		findings = s.analyzer.Analyze(a, dev, now)
		a.RecordLogin(model.NewLoginRecord(dev, true, "", now))
		a.LastLogin = &now
		sessionID, evicted = id, ev
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			metrics.TrackLogin("invalid_credentials")
			return nil, err
		}
		return nil, fmt.Errorf("record login: %w", translateModelError(err))
	}

	if outcome != nil {
		s.onRejectedLogin(ctx, updated, dev, outcome, lockedNow)
		return nil, outcome
	}

	session, ok := updated.FindActiveSession(sessionID, s.now())
	if !ok {
		return nil, fmt.Errorf("session %s missing after login", sessionID)
	}
	token, expiresAt, err := s.tokens.Issue(updated.ID, sessionID, updated.Role, session.ExpiresAt)
	if err != nil {
		return nil, err
	}

	metrics.TrackLogin("success")
	metrics.TrackSessions("created", 1)
	metrics.TrackSessions("evicted", len(evicted))
	metrics.TrackSessions("expired", expired)

	s.log.Info().
		Str("account_id", updated.ID).
		Str("ip", dev.IP).
		Str("location", dev.Location).
		Int("evicted_sessions", len(evicted)).
		Msg("Admin logged in")

	s.reportFindings(ctx, updated, dev, findings)

	if updated.EmailNotifications.NewLogin {
		if err := s.notifier.SendLoginNotification(ctx, updated, dev); err != nil {
			s.log.Warn().Err(err).Str("account_id", updated.ID).Msg("login notification not queued")
		}
	}

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		SessionID: sessionID,
		Admin:     updated.Profile(s.now()),
		Findings:  findings,
	}, nil
}

func (s *AuthService) onRejectedLogin(ctx context.Context, a *model.Account, dev model.DeviceInfo, outcome error, lockedNow bool) {
	var authErr *AuthError
	if errors.As(outcome, &authErr) {
		switch authErr.Code {
		case CodeInvalidCredentials:
			metrics.TrackLogin("invalid_credentials")
		case CodeAccountLocked:
			metrics.TrackLogin("locked")
		case CodeAccountNotApproved:
			metrics.TrackLogin("not_approved")
		}
	}

	s.log.Warn().
		Str("account_id", a.ID).
		Str("ip", dev.IP).
		Int("failed_attempts", a.FailedLoginAttempts).
		Err(outcome).
		Msg("Login rejected")

	if !lockedNow {
		return
	}

	metrics.Lockouts.Inc()
	remaining := a.LockoutRemaining(s.now())
	s.log.Error().
		Str("account_id", a.ID).
		Str("ip", dev.IP).
		Int("failed_attempts", a.FailedLoginAttempts).
		Dur("lockout", remaining).
		Msg("Account locked after repeated failures")

	s.publish(ctx, model.SecurityEvent{
		Type:       model.EventAccountLocked,
		AccountID:  a.ID,
		Email:      a.Email,
		IP:         dev.IP,
		Location:   dev.Location,
		OccurredAt: s.now(),
	})

	if a.EmailNotifications.SecurityAlerts {
		msg := fmt.Sprintf("Account locked for %d minutes after %d failed login attempts",
			int(remaining.Round(time.Minute).Minutes()), a.FailedLoginAttempts)
		if err := s.notifier.SendSecurityAlert(ctx, a, []string{msg}, dev); err != nil {
			s.log.Warn().Err(err).Str("account_id", a.ID).Msg("lockout alert not queued")
		}
	}
}

func (s *AuthService) reportFindings(ctx context.Context, a *model.Account, dev model.DeviceInfo, findings []Finding) {
	if len(findings) == 0 {
		return
	}

	for _, f := range findings {
		metrics.TrackFinding(string(f.Kind))
		ev := s.log.Warn()
		if f.Severity == SeverityError {
			ev = s.log.Error()
		}
		ev.Str("account_id", a.ID).
			Str("ip", dev.IP).
			Str("location", dev.Location).
			Str("finding", string(f.Kind)).
			Msg(f.Message)
	}

	messages := Messages(findings)
	s.publish(ctx, model.SecurityEvent{
		Type:       model.EventSuspiciousLogin,
		AccountID:  a.ID,
		Email:      a.Email,
		IP:         dev.IP,
		Location:   dev.Location,
		Findings:   messages,
		OccurredAt: s.now(),
	})

	if ShouldAlert(a, findings) {
		if err := s.notifier.SendSecurityAlert(ctx, a, messages, dev); err != nil {
			s.log.Warn().Err(err).Str("account_id", a.ID).Msg("security alert not queued")
		}
	}
}

func (s *AuthService) publish(ctx context.Context, ev model.SecurityEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", string(ev.Type)).Msg("security event not published")
	}
}

func (s *AuthService) burnPasswordCheck(password string) {
	if s.dummyHash != nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
	}
}

// Authenticate validates a token against the live account and session and
// touches the session's activity.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	acc, err := s.store.Update(ctx, claims.AccountID, func(a *model.Account) error {
		now := s.now()
		switch {
		case a.IsDeleted:
			return ErrAccountDeleted
		case !a.Status.CanLogin():
			return ErrAccountNotApproved
		case a.IsLocked(now):
			return lockedError(a.LockoutRemaining(now))
		}
		if claims.SessionID == "" {
			return nil
		}
		if _, ok := a.FindActiveSession(claims.SessionID, now); !ok {
			return ErrSessionExpired
		}
		a.UpdateSessionActivity(claims.SessionID, now)
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return nil, ErrUserNotFound
		}
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return nil, err
		}
		return nil, fmt.Errorf("load account: %w", translateModelError(err))
	}

	return &Principal{Account: acc, SessionID: claims.SessionID, Claims: claims}, nil
}

// RequirePrincipal fails unless p holds the principal role.
func RequirePrincipal(p *Principal) error {
	if p == nil || !p.Account.IsPrincipal() {
		return ErrInsufficientPrivileges
	}
	return nil
}

// Logout ends one session.
func (s *AuthService) Logout(ctx context.Context, accountID, sessionID string) error {
	_, err := s.store.Update(ctx, accountID, func(a *model.Account) error {
		now := s.now()
		a.RemoveSession(sessionID, now)
		a.LastLogout = &now
		return nil
	})
	if err != nil {
		return translateModelError(err)
	}
	metrics.TrackSessions("revoked", 1)
	s.log.Info().Str("account_id", accountID).Msg("Admin logged out")
	return nil
}

// LogoutAll ends every session of the account and reports how many were active.
func (s *AuthService) LogoutAll(ctx context.Context, accountID string) (int, error) {
	var n int
	_, err := s.store.Update(ctx, accountID, func(a *model.Account) error {
		now := s.now()
		n = a.RemoveAllSessions(now)
		a.LastLogout = &now
		return nil
	})
	if err != nil {
		return 0, translateModelError(err)
	}
	metrics.TrackSessions("revoked", n)
	s.log.Info().Str("account_id", accountID).Int("sessions", n).Msg("Admin logged out everywhere")
	return n, nil
}

// ListSessions returns the account's usable sessions, marking the caller's own.
func (s *AuthService) ListSessions(ctx context.Context, accountID, currentSessionID string) ([]SessionView, error) {
	acc, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		return nil, translateModelError(err)
	}
	sessions := acc.CurrentSessions(s.now())
	views := make([]SessionView, len(sessions))
	for i, sess := range sessions {
		views[i] = SessionView{Session: sess, Current: sess.SessionID == currentSessionID}
	}
	return views, nil
}

// RevokeSession ends one of the caller's own sessions by id.
func (s *AuthService) RevokeSession(ctx context.Context, accountID, sessionID string) error {
	_, err := s.store.Update(ctx, accountID, func(a *model.Account) error {
		if !a.RemoveSession(sessionID, s.now()) {
			return ErrSessionNotFound
		}
		return nil
	})
	if err != nil {
		return translateModelError(err)
	}
	metrics.TrackSessions("revoked", 1)
	s.log.Info().Str("account_id", accountID).Msg("Session revoked")
	return nil
}

// ChangePasswordInput carries a self-service password change.
type ChangePasswordInput struct {
	AccountID        string
	CurrentSessionID string
	CurrentPassword  string
	NewPassword      string
	IP               string
	UserAgent        string
}

// ChangePassword replaces the password and ends every other session.
func (s *AuthService) ChangePassword(ctx context.Context, in ChangePasswordInput) (int, error) {
	acc, err := s.store.FindByID(ctx, in.AccountID)
	if err != nil {
		return 0, translateModelError(err)
	}
	if !acc.MatchPassword(in.CurrentPassword) {
		return 0, ErrCurrentPasswordIncorrect
	}
	if acc.IsPasswordReused(in.NewPassword) {
		return 0, ErrPasswordReused
	}
	hash, err := model.HashPassword(in.NewPassword, s.bcryptCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	var revoked int
	updated, err := s.store.Update(ctx, in.AccountID, func(a *model.Account) error {
		// Someone else changed the password since we verified it.
		if a.PasswordHash != acc.PasswordHash {
			return ErrCurrentPasswordIncorrect
		}
		now := s.now()
		a.SetPassword(hash, now)
		revoked = a.RemoveAllOtherSessions(in.CurrentSessionID, now)
		return nil
	})
	if err != nil {
		return 0, translateModelError(err)
	}

	metrics.TrackSessions("revoked", revoked)
	s.log.Info().
		Str("account_id", updated.ID).
		Int("revoked_sessions", revoked).
		Msg("Password changed")

	if updated.EmailNotifications.SecurityAlerts {
		dev := s.resolver.Resolve(ctx, in.IP, in.UserAgent)
		if err := s.notifier.SendPasswordChangedNotice(ctx, updated, dev); err != nil {
			s.log.Warn().Err(err).Str("account_id", updated.ID).Msg("password change notice not queued")
		}
	}
	return revoked, nil
}

// Profile returns the client view of an account.
func (s *AuthService) Profile(ctx context.Context, accountID string) (*model.AdminProfile, error) {
	acc, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		return nil, translateModelError(err)
	}
	p := acc.Profile(s.now())
	return &p, nil
}

// UpdatePreferences merges notification toggles into the account.
func (s *AuthService) UpdatePreferences(ctx context.Context, accountID string, req model.NotificationPreferencesRequest) (*model.AdminProfile, error) {
	acc, err := s.store.Update(ctx, accountID, func(a *model.Account) error {
		a.EmailNotifications = req.Apply(a.EmailNotifications)
		return nil
	})
	if err != nil {
		return nil, translateModelError(err)
	}
	p := acc.Profile(s.now())
	return &p, nil
}
