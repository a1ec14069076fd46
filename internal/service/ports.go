package service

import (
	"context"
	"time"

	"github.com/shopcore/admin-guard/internal/model"
)

// AccountStore is the persistence contract for admin accounts. Update is the
// only mutation path for existing accounts: fn runs against the freshest copy
// and the store guarantees no concurrent write to the same account is lost.
// If fn returns an error nothing is written and that error is returned.
type AccountStore interface {
	FindByID(ctx context.Context, id string) (*model.Account, error)
	FindByEmail(ctx context.Context, email string) (*model.Account, error)
	Create(ctx context.Context, a *model.Account) error
	Update(ctx context.Context, id string, fn func(*model.Account) error) (*model.Account, error)
	FindMany(ctx context.Context, filter model.AccountFilter) ([]*model.Account, error)
}

// Notifier dispatches outbound email. Implementations hand the message to a
// background queue; an error means the hand-off failed and is only logged.
type Notifier interface {
	SendLoginNotification(ctx context.Context, a *model.Account, device model.DeviceInfo) error
	SendSecurityAlert(ctx context.Context, a *model.Account, findings []string, device model.DeviceInfo) error
	SendPasswordResetEmail(ctx context.Context, a *model.Account, code string, expires time.Time) error
	SendApprovalNotification(ctx context.Context, a *model.Account) error
	SendRejectionNotification(ctx context.Context, a *model.Account, reason string) error
	SendNewRegistrationAlert(ctx context.Context, principal, applicant *model.Account) error
	SendPasswordChangedNotice(ctx context.Context, a *model.Account, device model.DeviceInfo) error
}

// EventPublisher broadcasts security events to live observers.
type EventPublisher interface {
	Publish(ctx context.Context, event model.SecurityEvent) error
}

// DeviceResolver fingerprints a client.
type DeviceResolver interface {
	Resolve(ctx context.Context, ip, userAgent string) model.DeviceInfo
}

// RiskChecker classifies source addresses.
type RiskChecker interface {
	IsHighRiskIP(ip string) bool
}
