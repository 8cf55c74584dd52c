// Package mongodb implements the storage interfaces on MongoDB using the
// official Go driver.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/R3E-Network/ordzaar/internal/app/domain"
	"github.com/R3E-Network/ordzaar/internal/app/domain/application"
	"github.com/R3E-Network/ordzaar/internal/app/domain/collection"
	"github.com/R3E-Network/ordzaar/internal/app/domain/ordinal"
	"github.com/R3E-Network/ordzaar/internal/app/domain/transaction"
	"github.com/R3E-Network/ordzaar/internal/app/domain/user"
	"github.com/R3E-Network/ordzaar/internal/app/storage"
	"github.com/R3E-Network/ordzaar/pkg/logger"
)

const (
	applicationsColl = "applications"
	collectionsColl  = "collections"
	ordinalsColl     = "ordinals"
	usersColl        = "users"
	transactionsColl = "transactions"
)

// Store implements the storage interfaces backed by MongoDB.
type Store struct {
	client       *mongo.Client
	db           *mongo.Database
	transactions bool
	log          *logger.Logger
}

var _ storage.ApplicationStore = (*Store)(nil)
var _ storage.CollectionStore = (*Store)(nil)
var _ storage.OrdinalStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)
var _ storage.TransactionStore = (*Store)(nil)

// DatabaseFromURI returns the database named in the URI path, or fallback.
func DatabaseFromURI(uri, fallback string) string {
	parsed, err := url.Parse(uri)
	if err != nil {
		return fallback
	}
	if name := strings.Trim(parsed.Path, "/"); name != "" {
		return name
	}
	return fallback
}

// Connect dials MongoDB, verifies the connection and ensures indexes exist.
func Connect(ctx context.Context, uri, database string, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewDefault("mongo")
	}
	if database == "" {
		database = DatabaseFromURI(uri, "ordzaar")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	store := &Store{client: client, db: client.Database(database), log: log}
	store.transactions = store.supportsTransactions(ctx)
	if !store.transactions {
		log.Warn("mongo deployment is standalone; collection materialisation uses compensating deletes instead of transactions")
	}

	if err := store.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return store, nil
}

// supportsTransactions reports whether the deployment is a replica set or a
// sharded cluster.
func (s *Store) supportsTransactions(ctx context.Context) bool {
	var hello struct {
		SetName string `bson:"setName"`
		Msg     string `bson:"msg"`
	}
	if err := s.db.RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		return false
	}
	return hello.SetName != "" || hello.Msg == "isdbgrid"
}

// EnsureIndexes creates the unique and lookup indexes used by the store.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	specs := map[string][]mongo.IndexModel{
		applicationsColl: {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: unique},
		},
		collectionsColl: {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "applicationId", Value: 1}}},
		},
		ordinalsColl: {
			{Keys: bson.D{{Key: "collectionId", Value: 1}, {Key: "ordinalNumber", Value: 1}}},
			{Keys: bson.D{{Key: "owner", Value: 1}}},
		},
		usersColl: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "address", Value: 1}}, Options: unique},
		},
		transactionsColl: {
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "ordinalId", Value: 1}}},
		},
	}
	for coll, models := range specs {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func mapErr(kind string, err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", kind, storage.ErrConflict)
	}
	return fmt.Errorf("%s: %w", kind, err)
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, kind, key string, filter bson.M) (T, error) {
	var out T
	if err := coll.FindOne(ctx, filter).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return out, fmt.Errorf("%s %s: %w", kind, key, storage.ErrNotFound)
		}
		return out, mapErr(kind, err)
	}
	return out, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, kind string, filter bson.M, opts *options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapErr(kind, err)
	}
	out := make([]T, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, mapErr(kind, err)
	}
	return out, nil
}

func replace(ctx context.Context, coll *mongo.Collection, kind, id string, doc interface{}) error {
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return mapErr(kind, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}

// --- ApplicationStore -------------------------------------------------------

func (s *Store) CreateApplication(ctx context.Context, app application.Application) (application.Application, error) {
	if app.ID == "" {
		app.ID = domain.NewID()
	}
	if app.Assets.Images == nil {
		app.Assets.Images = []string{}
	}
	now := time.Now().UTC()
	app.CreatedAt = now
	app.UpdatedAt = now

	if _, err := s.db.Collection(applicationsColl).InsertOne(ctx, app); err != nil {
		return application.Application{}, mapErr("application", err)
	}
	return app, nil
}

func (s *Store) UpdateApplication(ctx context.Context, app application.Application) (application.Application, error) {
	app.UpdatedAt = time.Now().UTC()
	if app.Assets.Images == nil {
		app.Assets.Images = []string{}
	}
	if err := replace(ctx, s.db.Collection(applicationsColl), "application", app.ID, app); err != nil {
		return application.Application{}, err
	}
	return app, nil
}

func (s *Store) GetApplication(ctx context.Context, id string) (application.Application, error) {
	return findOne[application.Application](ctx, s.db.Collection(applicationsColl), "application", id, bson.M{"_id": id})
}

func (s *Store) ListApplications(ctx context.Context) ([]application.Application, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	return findAll[application.Application](ctx, s.db.Collection(applicationsColl), "application", bson.M{}, opts)
}

// --- CollectionStore --------------------------------------------------------

func (s *Store) CreateCollectionWithOrdinals(ctx context.Context, col collection.Collection, ords []ordinal.Ordinal) (collection.Collection, []ordinal.Ordinal, error) {
	if col.ID == "" {
		col.ID = domain.NewID()
	}
	now := time.Now().UTC()
	col.CreatedAt = now
	col.UpdatedAt = now

	created := make([]ordinal.Ordinal, 0, len(ords))
	docs := make([]interface{}, 0, len(ords))
	for _, ord := range ords {
		if ord.ID == "" {
			ord.ID = domain.NewID()
		}
		ord.CollectionID = col.ID
		ord.CreatedAt = now
		ord.UpdatedAt = now
		created = append(created, ord)
		docs = append(docs, ord)
	}

	insert := func(ctx context.Context) error {
		if _, err := s.db.Collection(collectionsColl).InsertOne(ctx, col); err != nil {
			return mapErr("collection", err)
		}
		if len(docs) == 0 {
			return nil
		}
		if _, err := s.db.Collection(ordinalsColl).InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
			return mapErr("ordinal", err)
		}
		return nil
	}

	if s.transactions {
		session, err := s.client.StartSession()
		if err != nil {
			return collection.Collection{}, nil, fmt.Errorf("start session: %w", err)
		}
		defer session.EndSession(ctx)

		_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
			return nil, insert(sc)
		})
		if err != nil {
			return collection.Collection{}, nil, err
		}
		return col, created, nil
	}

	if err := insert(ctx); err != nil {
		s.compensate(col.ID)
		return collection.Collection{}, nil, err
	}
	return col, created, nil
}

// compensate removes whatever part of a failed materialisation was written.
func (s *Store) compensate(collectionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := s.db.Collection(ordinalsColl).DeleteMany(ctx, bson.M{"collectionId": collectionID}); err != nil {
		s.log.WithError(err).WithField("collection_id", collectionID).Error("compensating ordinal delete failed")
	}
	if _, err := s.db.Collection(collectionsColl).DeleteOne(ctx, bson.M{"_id": collectionID}); err != nil {
		s.log.WithError(err).WithField("collection_id", collectionID).Error("compensating collection delete failed")
	}
}

func (s *Store) UpdateCollection(ctx context.Context, col collection.Collection) (collection.Collection, error) {
	col.UpdatedAt = time.Now().UTC()
	if err := replace(ctx, s.db.Collection(collectionsColl), "collection", col.ID, col); err != nil {
		return collection.Collection{}, err
	}
	return col, nil
}

func (s *Store) GetCollection(ctx context.Context, id string) (collection.Collection, error) {
	return findOne[collection.Collection](ctx, s.db.Collection(collectionsColl), "collection", id, bson.M{"_id": id})
}

func (s *Store) GetCollectionBySlug(ctx context.Context, slug string) (collection.Collection, error) {
	return findOne[collection.Collection](ctx, s.db.Collection(collectionsColl), "collection", slug, bson.M{"slug": slug})
}

func (s *Store) GetCollectionByApplication(ctx context.Context, applicationID string) (collection.Collection, error) {
	return findOne[collection.Collection](ctx, s.db.Collection(collectionsColl), "collection for application", applicationID, bson.M{"applicationId": applicationID})
}

func (s *Store) ListCollections(ctx context.Context, visibleOnly bool) ([]collection.Collection, error) {
	filter := bson.M{}
	if visibleOnly {
		filter["settings.isVisible"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	return findAll[collection.Collection](ctx, s.db.Collection(collectionsColl), "collection", filter, opts)
}

// --- OrdinalStore -----------------------------------------------------------

func (s *Store) UpdateOrdinal(ctx context.Context, ord ordinal.Ordinal) (ordinal.Ordinal, error) {
	ord.UpdatedAt = time.Now().UTC()
	if err := replace(ctx, s.db.Collection(ordinalsColl), "ordinal", ord.ID, ord); err != nil {
		return ordinal.Ordinal{}, err
	}
	return ord, nil
}

func (s *Store) GetOrdinal(ctx context.Context, id string) (ordinal.Ordinal, error) {
	return findOne[ordinal.Ordinal](ctx, s.db.Collection(ordinalsColl), "ordinal", id, bson.M{"_id": id})
}

func (s *Store) ListOrdinals(ctx context.Context, filter ordinal.Filter) ([]ordinal.Ordinal, int, error) {
	coll := s.db.Collection(ordinalsColl)
	query := ordinalFilter(filter)

	total, err := coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, mapErr("ordinal", err)
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "createdAt", Value: 1},
		{Key: "collectionId", Value: 1},
		{Key: "ordinalNumber", Value: 1},
	})
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	items, err := findAll[ordinal.Ordinal](ctx, coll, "ordinal", query, opts)
	if err != nil {
		return nil, 0, err
	}
	return items, int(total), nil
}

func ordinalFilter(f ordinal.Filter) bson.M {
	query := bson.M{}
	if f.CollectionID != "" {
		query["collectionId"] = f.CollectionID
	}
	if f.Owner != "" {
		query["owner"] = f.Owner
	}
	if f.Status != "" {
		query["status"] = string(f.Status)
	}
	if f.Listed != nil {
		query["listed"] = *f.Listed
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		query["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
	}

	var priceExpr []bson.M
	numeric := bson.M{"$convert": bson.M{"input": "$price", "to": "double", "onError": nil, "onNull": nil}}
	if f.MinPrice != nil {
		priceExpr = append(priceExpr, bson.M{"$gte": bson.A{numeric, *f.MinPrice}})
	}
	if f.MaxPrice != nil {
		priceExpr = append(priceExpr, bson.M{"$lte": bson.A{numeric, *f.MaxPrice}})
	}
	if len(priceExpr) > 0 {
		// Unparseable prices convert to null, which never satisfies $gte.
		priceExpr = append(priceExpr, bson.M{"$ne": bson.A{numeric, nil}})
		query["$expr"] = bson.M{"$and": priceExpr}
	}
	return query
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = domain.NewID()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := s.db.Collection(usersColl).InsertOne(ctx, u); err != nil {
		return user.User{}, mapErr("user", err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	u.UpdatedAt = time.Now().UTC()
	if err := replace(ctx, s.db.Collection(usersColl), "user", u.ID, u); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return findOne[user.User](ctx, s.db.Collection(usersColl), "user", username, bson.M{"username": username})
}

func (s *Store) GetUserByAddress(ctx context.Context, address string) (user.User, error) {
	return findOne[user.User](ctx, s.db.Collection(usersColl), "user with address", address, bson.M{"address": address})
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "username", Value: 1}})
	return findAll[user.User](ctx, s.db.Collection(usersColl), "user", bson.M{}, opts)
}

// --- TransactionStore -------------------------------------------------------

func (s *Store) CreateTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	if tx.ID == "" {
		tx.ID = domain.NewID()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}
	if _, err := s.db.Collection(transactionsColl).InsertOne(ctx, tx); err != nil {
		return transaction.Transaction{}, mapErr("transaction", err)
	}
	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter transaction.Filter) ([]transaction.Transaction, error) {
	query := bson.M{}
	if filter.Type != "" {
		query["type"] = string(filter.Type)
	}
	if filter.OrdinalID != "" {
		query["ordinalId"] = filter.OrdinalID
	}
	if filter.CollectionID != "" {
		query["collectionId"] = filter.CollectionID
	}
	if !filter.Since.IsZero() {
		query["timestamp"] = bson.M{"$gte": filter.Since}
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	return findAll[transaction.Transaction](ctx, s.db.Collection(transactionsColl), "transaction", query, opts)
}
