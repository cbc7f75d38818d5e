package database

import (
	"context"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"snapybara-server/models"
)

type ReviewRepository struct {
	collection *mongo.Collection
}

func NewReviewRepository(db *mongo.Database) *ReviewRepository {
	return &ReviewRepository{collection: db.Collection(ReviewsCollection)}
}

// Insert stores a review. A second live review by the same author on the
// same point fails with ErrConflict.
func (r *ReviewRepository) Insert(ctx context.Context, review *models.Review) error {
	if review.ID.IsZero() {
		review.ID = primitive.NewObjectID()
	}
	if review.HelpfulVotes == nil {
		review.HelpfulVotes = []string{}
	}
	_, err := r.collection.InsertOne(ctx, review)
	return translate(err, "insert review")
}

func (r *ReviewRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Review, error) {
	var review models.Review
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "is_deleted": false}).Decode(&review)
	if err != nil {
		return nil, translate(err, "find review")
	}
	return &review, nil
}

func (r *ReviewRepository) Update(ctx context.Context, review *models.Review) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": review.ID, "is_deleted": false},
		bson.M{"$set": bson.M{
			"rating":     review.Rating,
			"comment":    review.Comment,
			"updated_at": review.UpdatedAt,
		}})
	if err != nil {
		return translate(err, "update review")
	}
	if res.MatchedCount == 0 {
		return translate(mongo.ErrNoDocuments, "update review")
	}
	return nil
}

func (r *ReviewRepository) SoftDelete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "is_deleted": false},
		bson.M{"$set": bson.M{"is_deleted": true, "updated_at": time.Now().UTC()}})
	if err != nil {
		return translate(err, "delete review")
	}
	if res.MatchedCount == 0 {
		return translate(mongo.ErrNoDocuments, "delete review")
	}
	return nil
}

func (r *ReviewRepository) ListByPoint(ctx context.Context, pointID primitive.ObjectID, page, limit int) ([]models.Review, int64, error) {
	filter := bson.M{"point_id": pointID, "is_deleted": false}
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, translate(err, "count reviews")
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip(page, limit)).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, translate(err, "list reviews")
	}
	defer cursor.Close(ctx)

	out := []models.Review{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, translate(err, "decode reviews")
	}
	return out, total, nil
}

// ToggleHelpful flips userID's helpful vote with single-document updates so
// that concurrent toggles keep helpful_count equal to the voter set size.
// It returns the updated review and whether the vote is now set.
func (r *ReviewRepository) ToggleHelpful(ctx context.Context, id primitive.ObjectID, userID string) (*models.Review, bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "is_deleted": false, "helpful_votes": userID},
		bson.M{"$pull": bson.M{"helpful_votes": userID}, "$inc": bson.M{"helpful_count": -1}})
	if err != nil {
		return nil, false, translate(err, "remove helpful vote")
	}
	voted := false
	if res.ModifiedCount == 0 {
		res, err = r.collection.UpdateOne(ctx,
			bson.M{"_id": id, "is_deleted": false, "helpful_votes": bson.M{"$ne": userID}},
			bson.M{"$addToSet": bson.M{"helpful_votes": userID}, "$inc": bson.M{"helpful_count": 1}})
		if err != nil {
			return nil, false, translate(err, "add helpful vote")
		}
		voted = res.ModifiedCount > 0
	}

	review, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return review, voted, nil
}

// StatsForPoint aggregates the live reviews of a point.
func (r *ReviewRepository) StatsForPoint(ctx context.Context, pointID primitive.ObjectID) (models.POIStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"point_id": pointID, "is_deleted": false}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "avg", Value: bson.M{"$avg": "$rating"}},
			{Key: "count", Value: bson.M{"$sum": 1}},
		}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return models.POIStats{}, translate(err, "aggregate review stats")
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Avg   float64 `bson:"avg"`
		Count int     `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return models.POIStats{}, translate(err, "decode review stats")
	}
	if len(rows) == 0 {
		return models.POIStats{}, nil
	}
	return models.POIStats{
		AverageRating: math.Round(rows[0].Avg*10) / 10,
		ReviewCount:   rows[0].Count,
	}, nil
}
