package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"snapybara-server/models"
)

type NotificationRepository struct {
	collection *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{collection: db.Collection(NotificationsCollection)}
}

func (r *NotificationRepository) Insert(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	_, err := r.collection.InsertOne(ctx, n)
	return translate(err, "insert notification")
}

func recipientFilter(recipientID string, unreadOnly bool) bson.M {
	filter := bson.M{"recipient_id": recipientID}
	if unreadOnly {
		filter["read"] = false
	}
	return filter
}

func (r *NotificationRepository) List(ctx context.Context, recipientID string, unreadOnly bool, page, limit int) ([]models.Notification, int64, error) {
	filter := recipientFilter(recipientID, unreadOnly)
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, translate(err, "count notifications")
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip(page, limit)).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, translate(err, "list notifications")
	}
	defer cursor.Close(ctx)

	out := []models.Notification{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, translate(err, "decode notifications")
	}
	return out, total, nil
}

// MarkRead marks one notification of recipientID as read. Marking an already
// read notification succeeds.
func (r *NotificationRepository) MarkRead(ctx context.Context, recipientID, id string, at time.Time) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "recipient_id": recipientID},
		bson.M{"$set": bson.M{"read": true, "read_at": at}})
	if err != nil {
		return translate(err, "mark notification read")
	}
	if res.MatchedCount == 0 {
		return translate(mongo.ErrNoDocuments, "mark notification read")
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int64, error) {
	res, err := r.collection.UpdateMany(ctx,
		recipientFilter(recipientID, true),
		bson.M{"$set": bson.M{"read": true, "read_at": at}})
	if err != nil {
		return 0, translate(err, "mark all notifications read")
	}
	return res.ModifiedCount, nil
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, recipientFilter(recipientID, true))
	return n, translate(err, "count unread notifications")
}

func (r *NotificationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, translate(err, "purge notifications")
	}
	return res.DeletedCount, nil
}
