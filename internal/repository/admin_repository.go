package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopcore/admin-guard/internal/metrics"
	"github.com/shopcore/admin-guard/internal/model"
)

const (
	driverPostgres = "postgres"

	pgUniqueViolation = "23505"
)

// AccountRepository stores each admin account as one JSONB document.
// Indexed columns (email, role, status, is_deleted, lockout_until) are
// denormalized from the document on every write so filters stay cheap.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// FindByID retrieves an account by ID.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*model.Account, error) {
	defer metrics.TrackStoreOperation(driverPostgres, "find_by_id").ObserveDuration()

	if _, err := uuid.Parse(id); err != nil {
		return nil, model.ErrAccountNotFound
	}
	return scanAccount(r.pool.QueryRow(ctx,
		`SELECT document, version FROM admin_accounts WHERE id = $1`, id))
}

// FindByEmail retrieves an account by its case-insensitive email.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	defer metrics.TrackStoreOperation(driverPostgres, "find_by_email").ObserveDuration()

	return scanAccount(r.pool.QueryRow(ctx,
		`SELECT document, version FROM admin_accounts WHERE LOWER(email) = $1`,
		model.NormalizeEmail(email)))
}

// Create inserts a new account. A duplicate email yields model.ErrEmailTaken.
func (r *AccountRepository) Create(ctx context.Context, a *model.Account) error {
	defer metrics.TrackStoreOperation(driverPostgres, "create").ObserveDuration()

	a.Version = 1
	doc, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO admin_accounts (id, email, role, status, is_deleted, lockout_until, document, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.Email, a.Role, a.Status, a.IsDeleted, a.LockoutUntil, doc, a.Version, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return model.ErrEmailTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// Update loads the account under a row lock, applies fn and writes the result
// in the same transaction. If fn returns an error nothing is written and the
// error is returned unchanged.
func (r *AccountRepository) Update(ctx context.Context, id string, fn func(*model.Account) error) (*model.Account, error) {
	defer metrics.TrackStoreOperation(driverPostgres, "update").ObserveDuration()

	if _, err := uuid.Parse(id); err != nil {
		return nil, model.ErrAccountNotFound
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	a, err := scanAccount(tx.QueryRow(ctx,
		`SELECT document, version FROM admin_accounts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}

	if err := fn(a); err != nil {
		return nil, err
	}

	a.Version++
	a.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode account: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE admin_accounts
		 SET email = $2, role = $3, status = $4, is_deleted = $5, lockout_until = $6,
		     document = $7, version = $8, updated_at = $9
		 WHERE id = $1`,
		a.ID, a.Email, a.Role, a.Status, a.IsDeleted, a.LockoutUntil, doc, a.Version, a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return a, nil
}

// FindMany lists accounts matching the filter, oldest first.
func (r *AccountRepository) FindMany(ctx context.Context, f model.AccountFilter) ([]*model.Account, error) {
	defer metrics.TrackStoreOperation(driverPostgres, "find_many").ObserveDuration()

	query := `SELECT document, version FROM admin_accounts WHERE 1=1`
	var args []any

	if !f.IncludeDeleted {
		query += " AND NOT is_deleted"
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Role != nil {
		args = append(args, *f.Role)
		query += fmt.Sprintf(" AND role = $%d", len(args))
	}
	if f.LockedAfter != nil {
		args = append(args, *f.LockedAfter)
		query += fmt.Sprintf(" AND lockout_until > $%d", len(args))
	}
	if f.WithActiveSessions {
		query += ` AND document -> 'active_sessions' @> '[{"is_active": true}]'`
	}

	query += " ORDER BY created_at ASC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		doc     []byte
		version int64
	)
	if err := row.Scan(&doc, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	a := &model.Account{}
	if err := json.Unmarshal(doc, a); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	a.Version = version
	return a, nil
}
