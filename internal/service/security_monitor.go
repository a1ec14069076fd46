package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/shopcore/admin-guard/internal/metrics"
	"github.com/shopcore/admin-guard/internal/model"
)

const (
	coordinatedAttackWindow    = time.Hour
	coordinatedAttackThreshold = 3
)

// errNothingToSweep aborts an Update without writing.
var errNothingToSweep = errors.New("no expired sessions")

// AttackReport describes one source address failing against many accounts.
type AttackReport struct {
	IP         string   `json:"ip"`
	AccountIDs []string `json:"account_ids"`
	Attempts   int      `json:"attempts"`
}

// SecurityMonitor runs the fleet-wide maintenance jobs. Both are safe to run
// alongside live traffic because they go through AccountStore.Update.
type SecurityMonitor struct {
	store  AccountStore
	events EventPublisher
	log    zerolog.Logger
	now    func() time.Time
}

// NewSecurityMonitor creates a new SecurityMonitor.
func NewSecurityMonitor(store AccountStore, events EventPublisher, log zerolog.Logger) *SecurityMonitor {
	return &SecurityMonitor{
		store:  store,
		events: events,
		log:    log.With().Str("component", "security_monitor").Logger(),
		now:    time.Now,
	}
}

// SweepExpiredSessions deactivates stale sessions on every account holding
// one and returns how many were ended.
func (m *SecurityMonitor) SweepExpiredSessions(ctx context.Context) (int, error) {
	accounts, err := m.store.FindMany(ctx, model.AccountFilter{WithActiveSessions: true, IncludeDeleted: true})
	if err != nil {
		return 0, fmt.Errorf("list accounts with sessions: %w", err)
	}

	total := 0
	for _, acc := range accounts {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		var cleaned int
		_, err := m.store.Update(ctx, acc.ID, func(a *model.Account) error {
			cleaned = a.CleanExpiredSessions(m.now())
			if cleaned == 0 {
				return errNothingToSweep
			}
			return nil
		})
		if errors.Is(err, errNothingToSweep) {
			continue
		}
		if err != nil {
			m.log.Warn().Err(err).Str("account_id", acc.ID).Msg("session sweep failed for account")
			continue
		}
		total += cleaned
	}

	metrics.TrackSessions("expired", total)
	m.log.Info().Int("accounts", len(accounts)).Int("expired_sessions", total).Msg("Session sweep finished")
	return total, nil
}

// DetectCoordinatedAttacks groups recent failed logins on locked accounts by
// source IP and flags any IP that hit at least three distinct accounts.
// It only reports; nothing is blocked.
func (m *SecurityMonitor) DetectCoordinatedAttacks(ctx context.Context) ([]AttackReport, error) {
	now := m.now()
	locked, err := m.store.FindMany(ctx, model.AccountFilter{LockedAfter: &now})
	if err != nil {
		return nil, fmt.Errorf("list locked accounts: %w", err)
	}

	byIP := make(map[string]map[string]struct{})
	attempts := make(map[string]int)
	for _, acc := range locked {
		for _, rec := range acc.LoginHistory {
			if rec.Success || rec.IP == "" || now.Sub(rec.LoginTime) > coordinatedAttackWindow {
				continue
			}
			if byIP[rec.IP] == nil {
				byIP[rec.IP] = make(map[string]struct{})
			}
			byIP[rec.IP][acc.ID] = struct{}{}
			attempts[rec.IP]++
		}
	}

	var reports []AttackReport
	for ip, accounts := range byIP {
		if len(accounts) < coordinatedAttackThreshold {
			continue
		}
		ids := make([]string, 0, len(accounts))
		for id := range accounts {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		reports = append(reports, AttackReport{IP: ip, AccountIDs: ids, Attempts: attempts[ip]})
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].IP < reports[j].IP })

	for _, r := range reports {
		metrics.CoordinatedAttacks.Inc()
		m.log.Error().
			Str("severity", "critical").
			Str("ip", r.IP).
			Strs("account_ids", r.AccountIDs).
			Int("attempts", r.Attempts).
			Msg("Probable coordinated attack")

		if m.events == nil {
			continue
		}
		err := m.events.Publish(ctx, model.SecurityEvent{
			Type:       model.EventCoordinatedAttack,
			IP:         r.IP,
			AccountIDs: r.AccountIDs,
			OccurredAt: now,
		})
		if err != nil {
			m.log.Warn().Err(err).Msg("coordinated attack event not published")
		}
	}
	return reports, nil
}
