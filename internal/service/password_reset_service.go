package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"github.com/shopcore/admin-guard/internal/config"
	"github.com/shopcore/admin-guard/internal/metrics"
	"github.com/shopcore/admin-guard/internal/model"
)

// The request counter starts over once the last code has been expired for
// resetCooldown.
const (
	resetCodeDigits   = 6
	resetCodeLifetime = 15 * time.Minute
	maxResetRequests  = 3
	resetCooldown     = time.Hour
)

// errResetSkipped aborts an Update without writing.
var errResetSkipped = errors.New("reset request skipped")

// PasswordResetService issues, verifies and consumes one-time reset codes.
type PasswordResetService struct {
	store      AccountStore
	notifier   Notifier
	bcryptCost int
	log        zerolog.Logger
	now        func() time.Time
	newCode    func() (string, error)
}

// NewPasswordResetService creates a new PasswordResetService.
func NewPasswordResetService(cfg *config.Config, store AccountStore, notifier Notifier, log zerolog.Logger) *PasswordResetService {
	return &PasswordResetService{
		store:      store,
		notifier:   notifier,
		bcryptCost: cfg.BcryptCost,
		log:        log.With().Str("component", "password_reset_service").Logger(),
		now:        time.Now,
		newCode:    generateResetCode,
	}
}

func generateResetCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < resetCodeDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate reset code: %w", err)
	}
	return fmt.Sprintf("%0*d", resetCodeDigits, n.Int64()), nil
}

// RequestReset emails a code when the address belongs to an active account.
// The caller sees the same result whether or not that is the case.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	acc, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrAccountNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find account: %w", err)
	}
	if !acc.CanAccessAdmin() {
		return nil
	}

	code, err := s.newCode()
	if err != nil {
		return err
	}

	var expires time.Time
	updated, err := s.store.Update(ctx, acc.ID, func(a *model.Account) error {
		now := s.now()
		if !a.CanAccessAdmin() {
			return errResetSkipped
		}
		if a.ResetPasswordExpires != nil && now.Sub(*a.ResetPasswordExpires) > resetCooldown {
			a.ResetPasswordAttempts = 0
		}
		if a.ResetPasswordAttempts >= maxResetRequests {
			return errResetSkipped
		}
		expires = now.Add(resetCodeLifetime)
		a.SetResetCode(model.HashResetCode(code), expires)
		return nil
	})
	if errors.Is(err, errResetSkipped) {
		s.log.Warn().Str("account_id", acc.ID).Msg("Password reset request limit reached")
		return nil
	}
	if err != nil {
		return fmt.Errorf("store reset code: %w", translateModelError(err))
	}

	s.log.Info().Str("account_id", updated.ID).Int("attempt", updated.ResetPasswordAttempts).Msg("Password reset code issued")
	if err := s.notifier.SendPasswordResetEmail(ctx, updated, code, expires); err != nil {
		s.log.Warn().Err(err).Str("account_id", updated.ID).Msg("reset email not queued")
	}
	return nil
}

// VerifyCode checks a code without consuming it.
func (s *PasswordResetService) VerifyCode(ctx context.Context, email, code string) error {
	acc, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrAccountNotFound) {
		return ErrInvalidResetCode
	}
	if err != nil {
		return fmt.Errorf("find account: %w", err)
	}
	if !acc.CanAccessAdmin() || !acc.ResetCodeValid(code, s.now()) {
		return ErrInvalidResetCode
	}
	return nil
}

// ResetPassword consumes a code, installs the new password and ends every session.
func (s *PasswordResetService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	acc, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrAccountNotFound) {
		return ErrInvalidResetCode
	}
	if err != nil {
		return fmt.Errorf("find account: %w", err)
	}
	if !acc.CanAccessAdmin() || !acc.ResetCodeValid(code, s.now()) {
		return ErrInvalidResetCode
	}
	if acc.IsPasswordReused(newPassword) {
		return ErrPasswordReused
	}

	hash, err := model.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var revoked int
	updated, err := s.store.Update(ctx, acc.ID, func(a *model.Account) error {
		now := s.now()
		if !a.CanAccessAdmin() || !a.ResetCodeValid(code, now) {
			return ErrInvalidResetCode
		}
		if a.PasswordHash != acc.PasswordHash {
			return ErrConcurrentModification
		}
		a.SetPassword(hash, now)
		a.ClearResetCode()
		revoked = a.RemoveAllSessions(now)
		return nil
	})
	if err != nil {
		return translateModelError(err)
	}

	metrics.TrackSessions("revoked", revoked)
	s.log.Info().Str("account_id", updated.ID).Int("revoked_sessions", revoked).Msg("Password reset completed")

	if updated.EmailNotifications.SecurityAlerts {
		if err := s.notifier.SendPasswordChangedNotice(ctx, updated, model.DeviceInfo{}); err != nil {
			s.log.Warn().Err(err).Str("account_id", updated.ID).Msg("password change notice not queued")
		}
	}
	return nil
}
