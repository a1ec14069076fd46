package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shopcore/admin-guard/internal/config"
	"github.com/shopcore/admin-guard/internal/model"
)

// ─── Store ──────────────────────────────────────────────────────────────

type memoryStore struct {
	mu       sync.Mutex
	accounts map[string]*model.Account
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: make(map[string]*model.Account)}
}

// clone deep-copies through JSON so callers never alias stored state.
func clone(t testing.TB, a *model.Account) *model.Account {
	raw, err := json.Marshal(a)
	require.NoError(t, err)
	out := &model.Account{}
	require.NoError(t, json.Unmarshal(raw, out))
	return out
}

func (s *memoryStore) copyOf(a *model.Account) *model.Account {
	raw, _ := json.Marshal(a)
	out := &model.Account{}
	_ = json.Unmarshal(raw, out)
	return out
}

func (s *memoryStore) FindByID(_ context.Context, id string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return s.copyOf(a), nil
}

func (s *memoryStore) FindByEmail(_ context.Context, email string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = model.NormalizeEmail(email)
	for _, a := range s.accounts {
		if a.Email == email {
			return s.copyOf(a), nil
		}
	}
	return nil, model.ErrAccountNotFound
}

func (s *memoryStore) Create(_ context.Context, a *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if existing.Email == a.Email {
			return model.ErrEmailTaken
		}
	}
	a.Version = 1
	s.accounts[a.ID] = s.copyOf(a)
	return nil
}

func (s *memoryStore) Update(_ context.Context, id string, fn func(*model.Account) error) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	a := s.copyOf(stored)
	if err := fn(a); err != nil {
		return nil, err
	}
	a.Version++
	s.accounts[id] = s.copyOf(a)
	return a, nil
}

func (s *memoryStore) FindMany(_ context.Context, f model.AccountFilter) ([]*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Account
	for _, a := range s.accounts {
		if !f.IncludeDeleted && a.IsDeleted {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.Role != nil && a.Role != *f.Role {
			continue
		}
		if f.LockedAfter != nil && (a.LockoutUntil == nil || !a.LockoutUntil.After(*f.LockedAfter)) {
			continue
		}
		if f.WithActiveSessions {
			active := false
			for _, sess := range a.ActiveSessions {
				active = active || sess.IsActive
			}
			if !active {
				continue
			}
		}
		out = append(out, s.copyOf(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *memoryStore) get(t testing.TB, id string) *model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	require.True(t, ok, "account %s", id)
	return clone(t, a)
}

// ─── Collaborators ──────────────────────────────────────────────────────

type sentMessage struct {
	Kind     string
	To       string
	Findings []string
	Code     string
	Reason   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *recordingNotifier) record(m sentMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, m)
	return nil
}

func (n *recordingNotifier) byKind(kind string) []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMessage
	for _, m := range n.sent {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func (n *recordingNotifier) SendLoginNotification(_ context.Context, a *model.Account, _ model.DeviceInfo) error {
	return n.record(sentMessage{Kind: "login", To: a.Email})
}

func (n *recordingNotifier) SendSecurityAlert(_ context.Context, a *model.Account, findings []string, _ model.DeviceInfo) error {
	return n.record(sentMessage{Kind: "security_alert", To: a.Email, Findings: findings})
}

func (n *recordingNotifier) SendPasswordResetEmail(_ context.Context, a *model.Account, code string, _ time.Time) error {
	return n.record(sentMessage{Kind: "password_reset", To: a.Email, Code: code})
}

func (n *recordingNotifier) SendApprovalNotification(_ context.Context, a *model.Account) error {
	return n.record(sentMessage{Kind: "approval", To: a.Email})
}

func (n *recordingNotifier) SendRejectionNotification(_ context.Context, a *model.Account, reason string) error {
	return n.record(sentMessage{Kind: "rejection", To: a.Email, Reason: reason})
}

func (n *recordingNotifier) SendNewRegistrationAlert(_ context.Context, principal, applicant *model.Account) error {
	return n.record(sentMessage{Kind: "new_registration", To: principal.Email, Reason: applicant.Email})
}

func (n *recordingNotifier) SendPasswordChangedNotice(_ context.Context, a *model.Account, _ model.DeviceInfo) error {
	return n.record(sentMessage{Kind: "password_changed", To: a.Email})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.SecurityEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev model.SecurityEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) byType(t model.SecurityEventType) []model.SecurityEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []model.SecurityEvent
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// staticResolver maps IPs to locations and reports every login as Chrome on Windows
// unless the user agent is given as "Browser/OS".
type staticResolver struct {
	locations map[string]string
	risky     map[string]bool
}

func (r *staticResolver) Resolve(_ context.Context, ip, userAgent string) model.DeviceInfo {
	browser, os := "Chrome", "Windows"
	for i := 0; i < len(userAgent); i++ {
		if userAgent[i] == '/' {
			browser, os = userAgent[:i], userAgent[i+1:]
			break
		}
	}
	loc, ok := r.locations[ip]
	if !ok {
		loc = "Unknown Location"
	}
	return model.DeviceInfo{IP: ip, UserAgent: userAgent, Browser: browser, OS: os, DeviceType: "Desktop", Location: loc}
}

func (r *staticResolver) IsHighRiskIP(ip string) bool {
	return r.risky[ip]
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// ─── Environment ────────────────────────────────────────────────────────

const testPassword = "Str0ngPassword"

type testEnv struct {
	store     *memoryStore
	notifier  *recordingNotifier
	events    *recordingPublisher
	resolver  *staticResolver
	clock     *fakeClock
	tokens    *TokenManager
	auth      *AuthService
	approval  *ApprovalService
	reset     *PasswordResetService
	monitor   *SecurityMonitor
	principal *model.Account
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		JWTSecret:  "test-secret-that-is-long-enough-123456",
		JWTIssuer:  "admin-guard-test",
		JWTExpiry:  24 * time.Hour,
		BcryptCost: bcrypt.MinCost,
	}
	log := zerolog.Nop()

	env := &testEnv{
		store:    newMemoryStore(),
		notifier: &recordingNotifier{},
		events:   &recordingPublisher{},
		resolver: &staticResolver{
			locations: map[string]string{
				"41.66.0.1": "Accra, Ghana",
				"81.2.69.1": "London, United Kingdom",
				"5.9.0.1":   "Berlin, Germany",
				"8.8.8.8":   "Mountain View, United States",
			},
			risky: map[string]bool{},
		},
		clock: &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}

	env.tokens = NewTokenManager(cfg)
	env.tokens.now = env.clock.Now

	analyzer := NewThreatAnalyzer(env.resolver)
	env.auth = NewAuthService(cfg, env.store, env.tokens, env.resolver, analyzer, env.notifier, env.events, log)
	env.auth.now = env.clock.Now
	env.approval = NewApprovalService(cfg, env.store, env.notifier, env.events, log)
	env.approval.now = env.clock.Now
	env.reset = NewPasswordResetService(cfg, env.store, env.notifier, log)
	env.reset.now = env.clock.Now
	env.monitor = NewSecurityMonitor(env.store, env.events, log)
	env.monitor.now = env.clock.Now

	env.principal = env.seedAccount(t, "principal@shop.test", model.RolePrincipal, model.StatusApproved)
	return env
}

func (e *testEnv) seedAccount(t *testing.T, email string, role model.Role, status model.Status) *model.Account {
	t.Helper()

	hash, err := model.HashPassword(testPassword, bcrypt.MinCost)
	require.NoError(t, err)

	a := model.NewAccount(uuid.NewString(), "Seeded", email, "", e.clock.Now())
	a.SetPassword(hash, e.clock.Now())
	a.Role = role
	a.Status = status
	require.NoError(t, e.store.Create(context.Background(), a))
	return e.store.get(t, a.ID)
}

func (e *testEnv) login(t *testing.T, email, ip string) (*LoginResult, error) {
	t.Helper()
	return e.auth.Login(context.Background(), LoginInput{Email: email, Password: testPassword, IP: ip, UserAgent: "Chrome/Windows"})
}
