package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopcore/admin-guard/internal/metrics"
	"github.com/shopcore/admin-guard/internal/model"
)

const driverMemory = "memory"

// MemoryAccountRepository keeps accounts in process memory. It backs
// STORE_DRIVER=memory for local development and the HTTP tests; nothing
// survives a restart.
type MemoryAccountRepository struct {
	mu       sync.Mutex
	accounts map[string][]byte
}

// NewMemoryAccountRepository creates an empty in-process store.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: make(map[string][]byte)}
}

// Stored documents are JSON so callers never alias repository state.
func decode(raw []byte) (*model.Account, error) {
	a := &model.Account{}
	if err := json.Unmarshal(raw, a); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	return a, nil
}

// FindByID returns a copy of the account or model.ErrAccountNotFound.
func (r *MemoryAccountRepository) FindByID(_ context.Context, id string) (*model.Account, error) {
	defer metrics.TrackStoreOperation(driverMemory, "find_by_id").ObserveDuration()

	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return decode(raw)
}

// FindByEmail looks an account up by normalized email.
func (r *MemoryAccountRepository) FindByEmail(_ context.Context, email string) (*model.Account, error) {
	defer metrics.TrackStoreOperation(driverMemory, "find_by_email").ObserveDuration()

	r.mu.Lock()
	defer r.mu.Unlock()
	email = model.NormalizeEmail(email)
	for _, raw := range r.accounts {
		a, err := decode(raw)
		if err != nil {
			return nil, err
		}
		if a.Email == email {
			return a, nil
		}
	}
	return nil, model.ErrAccountNotFound
}

// Create stores a new account. A taken email yields model.ErrEmailTaken.
func (r *MemoryAccountRepository) Create(_ context.Context, a *model.Account) error {
	defer metrics.TrackStoreOperation(driverMemory, "create").ObserveDuration()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, raw := range r.accounts {
		existing, err := decode(raw)
		if err != nil {
			return err
		}
		if existing.Email == a.Email {
			return model.ErrEmailTaken
		}
	}

	a.Version = 1
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}
	r.accounts[a.ID] = raw
	return nil
}

// Update runs fn under the repository lock, so mutations of one account are
// serialized exactly as with the database drivers.
func (r *MemoryAccountRepository) Update(_ context.Context, id string, fn func(*model.Account) error) (*model.Account, error) {
	defer metrics.TrackStoreOperation(driverMemory, "update").ObserveDuration()

	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	a, err := decode(raw)
	if err != nil {
		return nil, err
	}
	if err := fn(a); err != nil {
		return nil, err
	}

	a.Version++
	a.UpdatedAt = time.Now().UTC()
	raw, err = json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode account: %w", err)
	}
	r.accounts[id] = raw
	return decode(raw)
}

// FindMany returns copies of the accounts matching f.
func (r *MemoryAccountRepository) FindMany(_ context.Context, f model.AccountFilter) ([]*model.Account, error) {
	defer metrics.TrackStoreOperation(driverMemory, "find_many").ObserveDuration()

	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Account
	for _, raw := range r.accounts {
		a, err := decode(raw)
		if err != nil {
			return nil, err
		}
		if matches(a, f) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(a *model.Account, f model.AccountFilter) bool {
	if !f.IncludeDeleted && a.IsDeleted {
		return false
	}
	if f.Status != nil && a.Status != *f.Status {
		return false
	}
	if f.Role != nil && a.Role != *f.Role {
		return false
	}
	if f.LockedAfter != nil && (a.LockoutUntil == nil || !a.LockoutUntil.After(*f.LockedAfter)) {
		return false
	}
	if f.WithActiveSessions {
		for _, s := range a.ActiveSessions {
			if s.IsActive {
				return true
			}
		}
		return false
	}
	return true
}
