package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DefaultCollectionName = "Favorites"

type Collection struct {
	ID          primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	OwnerID     string               `json:"owner_id" bson:"owner_id"`
	Name        string               `json:"name" bson:"name"`
	Description string               `json:"description,omitempty" bson:"description,omitempty"`
	PointIDs    []primitive.ObjectID `json:"point_ids" bson:"point_ids"`
	IsPublic    bool                 `json:"is_public" bson:"is_public"`
	IsDefault   bool                 `json:"is_default" bson:"is_default"`
	CreatedAt   time.Time            `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at" bson:"updated_at"`
}

func (c *Collection) Contains(pointID primitive.ObjectID) bool {
	for _, id := range c.PointIDs {
		if id == pointID {
			return true
		}
	}
	return false
}
