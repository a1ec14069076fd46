package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shopcore/admin-guard/internal/metrics"
	"github.com/shopcore/admin-guard/internal/model"
)

const (
	driverMongo = "mongo"

	accountsCollection = "admin_accounts"

	// maxUpdateRetries bounds how often Update reloads after losing a version race.
	maxUpdateRetries = 5
)

// MongoAccountRepository stores accounts as documents and serializes
// per-account writes with an optimistic version check.
type MongoAccountRepository struct {
	coll *mongo.Collection
}

// NewMongoAccountRepository creates a new MongoAccountRepository.
func NewMongoAccountRepository(db *mongo.Database) *MongoAccountRepository {
	return &MongoAccountRepository{coll: db.Collection(accountsCollection)}
}

// EnsureIndexes creates the unique email index and the filter indexes.
func (r *MongoAccountRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "is_deleted", Value: 1}}},
		{Keys: bson.D{{Key: "lockout_until", Value: 1}}},
		{Keys: bson.D{{Key: "active_sessions.is_active", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// FindByID retrieves an account by ID.
func (r *MongoAccountRepository) FindByID(ctx context.Context, id string) (*model.Account, error) {
	defer metrics.TrackStoreOperation(driverMongo, "find_by_id").ObserveDuration()
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByEmail retrieves an account by its case-insensitive email.
func (r *MongoAccountRepository) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	defer metrics.TrackStoreOperation(driverMongo, "find_by_email").ObserveDuration()
	return r.findOne(ctx, bson.M{"email": model.NormalizeEmail(email)})
}

// Create inserts a new account. A duplicate email yields model.ErrEmailTaken.
func (r *MongoAccountRepository) Create(ctx context.Context, a *model.Account) error {
	defer metrics.TrackStoreOperation(driverMongo, "create").ObserveDuration()

	a.Version = 1
	if _, err := r.coll.InsertOne(ctx, a); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.ErrEmailTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// Update applies fn to a fresh copy of the account and replaces the document
// only if nobody else wrote it in between. Lost races are retried with a
// reloaded document; fn must therefore be safe to call more than once.
func (r *MongoAccountRepository) Update(ctx context.Context, id string, fn func(*model.Account) error) (*model.Account, error) {
	defer metrics.TrackStoreOperation(driverMongo, "update").ObserveDuration()

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		a, err := r.findOne(ctx, bson.M{"_id": id})
		if err != nil {
			return nil, err
		}

		if err := fn(a); err != nil {
			return nil, err
		}

		expected := a.Version
		a.Version++
		a.UpdatedAt = time.Now().UTC()

		res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": id, "version": expected}, a)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, model.ErrEmailTaken
			}
			return nil, fmt.Errorf("replace account: %w", err)
		}
		if res.MatchedCount == 1 {
			return a, nil
		}
	}
	return nil, model.ErrConcurrentUpdate
}

// FindMany lists accounts matching the filter, oldest first.
func (r *MongoAccountRepository) FindMany(ctx context.Context, f model.AccountFilter) ([]*model.Account, error) {
	defer metrics.TrackStoreOperation(driverMongo, "find_many").ObserveDuration()

	filter := bson.M{}
	if !f.IncludeDeleted {
		filter["is_deleted"] = false
	}
	if f.Status != nil {
		filter["status"] = *f.Status
	}
	if f.Role != nil {
		filter["role"] = *f.Role
	}
	if f.LockedAfter != nil {
		filter["lockout_until"] = bson.M{"$gt": *f.LockedAfter}
	}
	if f.WithActiveSessions {
		filter["active_sessions.is_active"] = true
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer cursor.Close(ctx)

	var accounts []*model.Account
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	return accounts, nil
}

func (r *MongoAccountRepository) findOne(ctx context.Context, filter bson.M) (*model.Account, error) {
	var a model.Account
	if err := r.coll.FindOne(ctx, filter).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return &a, nil
}
