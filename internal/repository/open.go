package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/shopcore/admin-guard/internal/config"
	"github.com/shopcore/admin-guard/internal/database"
	"github.com/shopcore/admin-guard/internal/model"
)

// Store is the method set shared by every account repository.
type Store interface {
	FindByID(ctx context.Context, id string) (*model.Account, error)
	FindByEmail(ctx context.Context, email string) (*model.Account, error)
	Create(ctx context.Context, a *model.Account) error
	Update(ctx context.Context, id string, fn func(*model.Account) error) (*model.Account, error)
	FindMany(ctx context.Context, filter model.AccountFilter) ([]*model.Account, error)
}

var (
	_ Store = (*AccountRepository)(nil)
	_ Store = (*MongoAccountRepository)(nil)
	_ Store = (*MemoryAccountRepository)(nil)
)

// Open connects the store selected by cfg.StoreDriver. The returned func
// releases its connections.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return NewAccountRepository(pool), pool.Close, nil

	case config.StoreDriverMongo:
		db, err := database.NewMongoDatabase(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		repo := NewMongoAccountRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = db.Client().Disconnect(ctx)
			return nil, nil, err
		}
		closeFn := func() {
			if err := db.Client().Disconnect(context.Background()); err != nil {
				log.Warn().Err(err).Msg("MongoDB disconnect failed")
			}
		}
		return repo, closeFn, nil

	case config.StoreDriverMemory:
		log.Warn().Msg("Using in-memory account store; nothing will be persisted")
		return NewMemoryAccountRepository(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
