package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"snapybara-server/models"
)

type CollectionRepository struct {
	collection *mongo.Collection
}

func NewCollectionRepository(db *mongo.Database) *CollectionRepository {
	return &CollectionRepository{collection: db.Collection(CollectionsCollection)}
}

// Insert stores c. A second default collection for the same owner fails
// with ErrConflict.
func (r *CollectionRepository) Insert(ctx context.Context, c *models.Collection) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	if c.PointIDs == nil {
		c.PointIDs = []primitive.ObjectID{}
	}
	_, err := r.collection.InsertOne(ctx, c)
	return translate(err, "insert collection")
}

func (r *CollectionRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Collection, error) {
	return r.findOne(ctx, bson.M{"_id": id}, "find collection")
}

func (r *CollectionRepository) FindDefault(ctx context.Context, ownerID string) (*models.Collection, error) {
	return r.findOne(ctx, bson.M{"owner_id": ownerID, "is_default": true}, "find default collection")
}

func (r *CollectionRepository) findOne(ctx context.Context, filter bson.M, op string) (*models.Collection, error) {
	var c models.Collection
	if err := r.collection.FindOne(ctx, filter).Decode(&c); err != nil {
		return nil, translate(err, op)
	}
	return &c, nil
}

func (r *CollectionRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Collection, error) {
	opts := options.Find().SetSort(bson.D{{Key: "is_default", Value: -1}, {Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, translate(err, "list collections")
	}
	defer cursor.Close(ctx)

	out := []models.Collection{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, translate(err, "decode collections")
	}
	return out, nil
}

func (r *CollectionRepository) Update(ctx context.Context, c *models.Collection) error {
	return r.updateOne(ctx, c.ID, bson.M{"$set": bson.M{
		"name":        c.Name,
		"description": c.Description,
		"is_public":   c.IsPublic,
		"updated_at":  c.UpdatedAt,
	}}, "update collection")
}

func (r *CollectionRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(err, "delete collection")
	}
	if res.DeletedCount == 0 {
		return translate(mongo.ErrNoDocuments, "delete collection")
	}
	return nil
}

func (r *CollectionRepository) AddPoint(ctx context.Context, id, pointID primitive.ObjectID) error {
	return r.updateOne(ctx, id, bson.M{
		"$addToSet": bson.M{"point_ids": pointID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}, "add point to collection")
}

func (r *CollectionRepository) RemovePoint(ctx context.Context, id, pointID primitive.ObjectID) error {
	return r.updateOne(ctx, id, bson.M{
		"$pull": bson.M{"point_ids": pointID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}, "remove point from collection")
}

func (r *CollectionRepository) updateOne(ctx context.Context, id primitive.ObjectID, update bson.M, op string) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return translate(err, op)
	}
	if res.MatchedCount == 0 {
		return translate(mongo.ErrNoDocuments, op)
	}
	return nil
}
