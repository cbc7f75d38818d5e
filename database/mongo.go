// Package database holds the MongoDB repositories backing points, reviews,
// collections, notifications and users.
package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"snapybara-server/utils/errors"
)

const (
	PointsCollection        = "pois"
	ReviewsCollection       = "reviews"
	CollectionsCollection   = "collections"
	NotificationsCollection = "notifications"
	UsersCollection         = "users"
)

// Connect opens a client and checks the server answers a ping.
func Connect(ctx context.Context, uri string, timeout time.Duration, logger *zap.Logger) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	logger.Info("connected to MongoDB")
	return client, nil
}

// EnsureIndexes creates the indexes the repositories rely on. It is safe to
// run on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		PointsCollection: {
			{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{
				Keys: bson.D{{Key: "external_id", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"external_id": bson.M{"$type": "string"}}),
			},
		},
		ReviewsCollection: {
			// one live review per author and point
			{
				Keys: bson.D{{Key: "point_id", Value: 1}, {Key: "author_id", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"is_deleted": false}),
			},
			{Keys: bson.D{{Key: "point_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		CollectionsCollection: {
			// at most one default collection per owner
			{
				Keys: bson.D{{Key: "owner_id", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"is_default": true}),
			},
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		NotificationsCollection: {
			{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
		UsersCollection: {
			{Keys: bson.D{{Key: "subject", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for name, idx := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// translate maps driver errors onto API errors.
func translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return errors.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return errors.ErrConflict
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func skip(page, limit int) int64 {
	if page < 1 {
		page = 1
	}
	return int64((page - 1) * limit)
}
