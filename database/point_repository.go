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

type PointRepository struct {
	collection *mongo.Collection
}

func NewPointRepository(db *mongo.Database) *PointRepository {
	return &PointRepository{collection: db.Collection(PointsCollection)}
}

func (r *PointRepository) Insert(ctx context.Context, p *models.POI) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, p)
	return translate(err, "insert point")
}

func (r *PointRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.POI, error) {
	var p models.POI
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, translate(err, "find point")
	}
	return &p, nil
}

func (r *PointRepository) FindByExternalID(ctx context.Context, externalID string) (*models.POI, error) {
	var p models.POI
	if err := r.collection.FindOne(ctx, bson.M{"external_id": externalID}).Decode(&p); err != nil {
		return nil, translate(err, "find point by external id")
	}
	return &p, nil
}

// Update replaces the stored point. Statistics are owned by UpdateStats and
// are left untouched.
func (r *PointRepository) Update(ctx context.Context, p *models.POI) error {
	set := bson.M{
		"name":        p.Name,
		"description": p.Description,
		"category":    p.Category,
		"location":    p.Location,
		"tags":        p.Tags,
		"address":     p.Address,
		"is_public":   p.IsPublic,
		"is_active":   p.IsActive,
		"status":      p.Status,
		"updated_at":  p.UpdatedAt,
	}
	if p.Metadata != nil {
		set["metadata"] = p.Metadata
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": set})
	if err != nil {
		return translate(err, "update point")
	}
	if res.MatchedCount == 0 {
		return translate(mongo.ErrNoDocuments, "update point")
	}
	return nil
}

func (r *PointRepository) UpdateStats(ctx context.Context, id primitive.ObjectID, stats models.POIStats) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"stats.average_rating": stats.AverageRating,
		"stats.review_count":   stats.ReviewCount,
		"updated_at":           time.Now().UTC(),
	}})
	if err != nil {
		return translate(err, "update point stats")
	}
	if res.MatchedCount == 0 {
		return translate(mongo.ErrNoDocuments, "update point stats")
	}
	return nil
}

// visibilityFilter matches approved active points that are public or owned by viewerID.
func visibilityFilter(viewerID string, categories []models.Category) bson.M {
	filter := bson.M{
		"is_active": true,
		"status":    models.StatusApproved,
	}
	if viewerID != "" {
		filter["$or"] = bson.A{
			bson.M{"is_public": true},
			bson.M{"owner_id": viewerID},
		}
	} else {
		filter["is_public"] = true
	}
	if len(categories) > 0 {
		filter["category"] = bson.M{"$in": categories}
	}
	return filter
}

func nearPipeline(q models.NearQuery) mongo.Pipeline {
	limit := q.Limit
	if limit <= 0 {
		limit = 200
	}
	return mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: models.NewGeoPoint(q.Center.Lat, q.Center.Lon)},
			{Key: "distanceField", Value: "distance"},
			{Key: "maxDistance", Value: q.Radius},
			{Key: "spherical", Value: true},
			{Key: "query", Value: visibilityFilter(q.ViewerID, q.Categories)},
		}}},
		{{Key: "$limit", Value: limit}},
	}
}

// FindNear returns visible points within the radius, nearest first.
func (r *PointRepository) FindNear(ctx context.Context, q models.NearQuery) ([]models.POIWithDistance, error) {
	cursor, err := r.collection.Aggregate(ctx, nearPipeline(q))
	if err != nil {
		return nil, translate(err, "geo near")
	}
	defer cursor.Close(ctx)

	var out []models.POIWithDistance
	if err := cursor.All(ctx, &out); err != nil {
		return nil, translate(err, "decode geo near")
	}
	return out, nil
}

// FindInBox returns visible points inside box.
func (r *PointRepository) FindInBox(ctx context.Context, box models.BoundingBox, viewerID string) ([]models.POI, error) {
	filter := visibilityFilter(viewerID, nil)
	filter["location"] = bson.M{"$geoWithin": bson.M{"$box": bson.A{
		bson.A{box.MinLon, box.MinLat},
		bson.A{box.MaxLon, box.MaxLat},
	}}}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetLimit(500))
	if err != nil {
		return nil, translate(err, "find in box")
	}
	defer cursor.Close(ctx)

	var out []models.POI
	if err := cursor.All(ctx, &out); err != nil {
		return nil, translate(err, "decode find in box")
	}
	return out, nil
}

// ListByOwner pages through every point created by ownerID, including inactive ones.
func (r *PointRepository) ListByOwner(ctx context.Context, ownerID string, page, limit int) ([]models.POI, int64, error) {
	filter := bson.M{"owner_id": ownerID}
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, translate(err, "count owner points")
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip(page, limit)).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, translate(err, "list owner points")
	}
	defer cursor.Close(ctx)

	out := []models.POI{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, translate(err, "decode owner points")
	}
	return out, total, nil
}
