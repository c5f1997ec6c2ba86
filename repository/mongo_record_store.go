package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Developerodin/admin-crm-demo-backend-sub001/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Server error code for a document rejected by a collection validator
const documentValidationFailure = 121

// MongoRecordStore implements RecordStore over one collection
type MongoRecordStore struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoRecordStore(collection *mongo.Collection) *MongoRecordStore {
	return &MongoRecordStore{
		collection: collection,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateOne inserts a new document and returns its hex ObjectID
func (r *MongoRecordStore) CreateOne(ctx context.Context, fields map[string]interface{}) (string, error) {
	now := r.now()
	doc := bson.M{}
	for k, v := range fields {
		doc[k] = v
	}
	doc["createdAt"] = now
	doc["updatedAt"] = now

	res, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return "", classifyWriteError(err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprint(res.InsertedID), nil
}

// UpdateByID sets the given fields on an existing document
func (r *MongoRecordStore) UpdateByID(ctx context.Context, id string, fields map[string]interface{}) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	set["updatedAt"] = r.now()

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return classifyWriteError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByID hard-deletes a document
func (r *MongoRecordStore) DeleteByID(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return classifyWriteError(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks that the backing deployment is reachable
func (r *MongoRecordStore) Ping(ctx context.Context) error {
	return r.collection.Database().Client().Ping(ctx, readpref.Primary())
}

func classifyWriteError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorCode(documentValidationFailure) {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return err
}

// MongoStoreProvider hands out one MongoRecordStore per entity collection
type MongoStoreProvider struct {
	db     *mongo.Database
	stores map[models.Entity]*MongoRecordStore
}

func NewMongoStoreProvider(db *mongo.Database) *MongoStoreProvider {
	stores := make(map[models.Entity]*MongoRecordStore, len(models.Entities))
	for _, e := range models.Entities {
		stores[e] = NewMongoRecordStore(db.Collection(e.Collection()))
	}
	return &MongoStoreProvider{db: db, stores: stores}
}

func (p *MongoStoreProvider) Store(entity models.Entity) (RecordStore, error) {
	s, ok := p.stores[entity]
	if !ok {
		return nil, fmt.Errorf("no store for entity %q", entity)
	}
	return s, nil
}

// EnsureIndexes creates the uniqueness constraints the bulk import relies on
func (p *MongoStoreProvider) EnsureIndexes(ctx context.Context) error {
	indexes := map[models.Entity][]mongo.IndexModel{
		models.EntityProducts: {
			{Keys: bson.D{{Key: "materialCode", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		models.EntityStores: {
			{Keys: bson.D{{Key: "plant", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		models.EntitySales: {
			{
				Keys: bson.D{{Key: "invoiceNumber", Value: 1}, {Key: "materialCode", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"invoiceNumber": bson.M{"$exists": true}}),
			},
			{Keys: bson.D{{Key: "plant", Value: 1}, {Key: "date", Value: -1}}},
		},
	}

	for entity, idx := range indexes {
		coll := p.db.Collection(entity.Collection())
		if _, err := coll.Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes for %s: %w", entity, err)
		}
	}
	return nil
}
