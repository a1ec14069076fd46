package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shopcore/admin-guard/internal/config"
	"github.com/shopcore/admin-guard/internal/metrics"
	"github.com/shopcore/admin-guard/internal/model"
)

// RegisterInput is a self-registration request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// ApprovalService drives the admin account lifecycle:
// pending -> approved | rejected, approved <-> suspended, and soft delete.
type ApprovalService struct {
	store      AccountStore
	notifier   Notifier
	events     EventPublisher
	bcryptCost int
	log        zerolog.Logger
	now        func() time.Time
}

// NewApprovalService creates a new ApprovalService.
func NewApprovalService(cfg *config.Config, store AccountStore, notifier Notifier, events EventPublisher, log zerolog.Logger) *ApprovalService {
	return &ApprovalService{
		store:      store,
		notifier:   notifier,
		events:     events,
		bcryptCost: cfg.BcryptCost,
		log:        log.With().Str("component", "approval_service").Logger(),
		now:        time.Now,
	}
}

// Register creates a pending account and alerts principals. An email that is
// already registered produces the same outcome as a fresh one so callers
// cannot probe which addresses exist.
func (s *ApprovalService) Register(ctx context.Context, in RegisterInput) error {
	hash, err := model.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	acc := model.NewAccount(uuid.NewString(), in.Name, in.Email, "", now)
	acc.SetPassword(hash, now)

	if err := s.store.Create(ctx, acc); err != nil {
		if errors.Is(err, model.ErrEmailTaken) {
			s.log.Info().Str("email", acc.Email).Msg("Registration for existing email ignored")
			return nil
		}
		return fmt.Errorf("create account: %w", err)
	}

	s.log.Info().Str("account_id", acc.ID).Str("email", acc.Email).Msg("Admin registered, awaiting approval")
	s.alertPrincipals(ctx, acc)
	return nil
}

func (s *ApprovalService) alertPrincipals(ctx context.Context, applicant *model.Account) {
	approved, principal := model.StatusApproved, model.RolePrincipal
	principals, err := s.store.FindMany(ctx, model.AccountFilter{Status: &approved, Role: &principal})
	if err != nil {
		s.log.Warn().Err(err).Msg("could not load principals for registration alert")
		return
	}
	for _, p := range principals {
		if !p.EmailNotifications.NewRegistration {
			continue
		}
		if err := s.notifier.SendNewRegistrationAlert(ctx, p, applicant); err != nil {
			s.log.Warn().Err(err).Str("principal_id", p.ID).Msg("registration alert not queued")
		}
	}
}

// ListPending returns accounts awaiting a decision, oldest first.
func (s *ApprovalService) ListPending(ctx context.Context) ([]model.AdminProfile, error) {
	pending := model.StatusPending
	return s.ListAccounts(ctx, &pending)
}

// ListAccounts returns non-deleted accounts, optionally filtered by status.
func (s *ApprovalService) ListAccounts(ctx context.Context, status *model.Status) ([]model.AdminProfile, error) {
	accounts, err := s.store.FindMany(ctx, model.AccountFilter{Status: status})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	now := s.now()
	out := make([]model.AdminProfile, len(accounts))
	for i, a := range accounts {
		out[i] = a.Profile(now)
	}
	return out, nil
}

// Approve moves a pending account to approved.
func (s *ApprovalService) Approve(ctx context.Context, actor *model.Account, targetID string) (*model.AdminProfile, error) {
	updated, err := s.transition(ctx, actor, targetID, func(a *model.Account, now time.Time) error {
		return a.Approve(actor.ID, now)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("account_id", updated.ID).Str("by", actor.ID).Msg("Admin approved")
	if err := s.notifier.SendApprovalNotification(ctx, updated); err != nil {
		s.log.Warn().Err(err).Str("account_id", updated.ID).Msg("approval notification not queued")
	}
	p := updated.Profile(s.now())
	return &p, nil
}

// Reject moves a pending account to rejected. The account can never log in.
func (s *ApprovalService) Reject(ctx context.Context, actor *model.Account, targetID, reason string) (*model.AdminProfile, error) {
	updated, err := s.transition(ctx, actor, targetID, func(a *model.Account, _ time.Time) error {
		return a.Reject(reason)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("account_id", updated.ID).Str("by", actor.ID).Msg("Admin rejected")
	if err := s.notifier.SendRejectionNotification(ctx, updated, updated.RejectionReason); err != nil {
		s.log.Warn().Err(err).Str("account_id", updated.ID).Msg("rejection notification not queued")
	}
	p := updated.Profile(s.now())
	return &p, nil
}

// ToggleStatus flips approved <-> suspended. Suspension ends every session.
func (s *ApprovalService) ToggleStatus(ctx context.Context, actor *model.Account, targetID string) (*model.AdminProfile, error) {
	var revoked int
	updated, err := s.transition(ctx, actor, targetID, func(a *model.Account, now time.Time) error {
		before := a.ActiveSessionCount(now)
		if err := a.ToggleStatus(now); err != nil {
			return err
		}
		if a.Status == model.StatusSuspended {
			revoked = before
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TrackSessions("revoked", revoked)
	s.log.Info().
		Str("account_id", updated.ID).
		Str("by", actor.ID).
		Str("status", string(updated.Status)).
		Msg("Admin status toggled")

	if updated.Status == model.StatusSuspended && s.events != nil {
		err := s.events.Publish(ctx, model.SecurityEvent{
			Type:       model.EventAccountSuspended,
			AccountID:  updated.ID,
			Email:      updated.Email,
			OccurredAt: s.now(),
		})
		if err != nil {
			s.log.Warn().Err(err).Msg("suspension event not published")
		}
	}
	p := updated.Profile(s.now())
	return &p, nil
}

// Delete soft-deletes an account and ends its sessions.
func (s *ApprovalService) Delete(ctx context.Context, actor *model.Account, targetID string) error {
	updated, err := s.transition(ctx, actor, targetID, func(a *model.Account, now time.Time) error {
		return a.SoftDelete(actor.ID, now)
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("account_id", updated.ID).Str("by", actor.ID).Msg("Admin deleted")
	return nil
}

// Unlock clears the failure counter and any lockout.
func (s *ApprovalService) Unlock(ctx context.Context, actor *model.Account, targetID string) (*model.AdminProfile, error) {
	updated, err := s.transition(ctx, actor, targetID, func(a *model.Account, _ time.Time) error {
		a.ResetLoginFailures()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("account_id", updated.ID).Str("by", actor.ID).Msg("Admin unlocked")
	p := updated.Profile(s.now())
	return &p, nil
}

// transition applies a principal-only action to another, non-deleted account.
func (s *ApprovalService) transition(ctx context.Context, actor *model.Account, targetID string, fn func(*model.Account, time.Time) error) (*model.Account, error) {
	if actor == nil || !actor.IsPrincipal() || !actor.CanAccessAdmin() {
		return nil, ErrInsufficientPrivileges
	}
	if actor.ID == targetID {
		return nil, ErrSelfActionForbidden
	}

	updated, err := s.store.Update(ctx, targetID, func(a *model.Account) error {
		if a.IsDeleted {
			return model.ErrAccountAlreadyGone
		}
		return fn(a, s.now())
	})
	if err != nil {
		return nil, translateModelError(err)
	}
	return updated, nil
}
