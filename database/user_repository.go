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

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{collection: db.Collection(UsersCollection)}
}

// Upsert creates or refreshes the user keyed by u.Subject. Profile fields
// are overwritten; id, public id, role and creation time are kept.
func (r *UserRepository) Upsert(ctx context.Context, u *models.User) (*models.User, error) {
	now := time.Now().UTC()
	role := u.Role
	if role == "" {
		role = models.RoleUser
	}
	update := bson.M{
		"$set": bson.M{
			"email":        u.Email,
			"display_name": u.DisplayName,
			"avatar_url":   u.AvatarURL,
			"is_active":    true,
			"updated_at":   now,
		},
		"$setOnInsert": bson.M{
			"subject":    u.Subject,
			"public_id":  uuid.NewString(),
			"role":       role,
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out models.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"subject": u.Subject}, update, opts).Decode(&out)
	if err != nil {
		return nil, translate(err, "upsert user")
	}
	return &out, nil
}

func (r *UserRepository) FindBySubject(ctx context.Context, subject string) (*models.User, error) {
	var u models.User
	if err := r.collection.FindOne(ctx, bson.M{"subject": subject}).Decode(&u); err != nil {
		return nil, translate(err, "find user")
	}
	return &u, nil
}

func (r *UserRepository) Deactivate(ctx context.Context, subject string) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"subject": subject},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": time.Now().UTC()}})
	if err != nil {
		return translate(err, "deactivate user")
	}
	if res.MatchedCount == 0 {
		return translate(mongo.ErrNoDocuments, "deactivate user")
	}
	return nil
}
