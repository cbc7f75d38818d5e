package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User mirrors an identity-provider account. Subject is the provider's user id.
type User struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	PublicID    string             `json:"public_id" bson:"public_id"`
	Subject     string             `json:"subject" bson:"subject"`
	Email       string             `json:"email" bson:"email"`
	DisplayName string             `json:"display_name,omitempty" bson:"display_name,omitempty"`
	AvatarURL   string             `json:"avatar_url,omitempty" bson:"avatar_url,omitempty"`
	Role        string             `json:"role" bson:"role"`
	IsActive    bool               `json:"is_active" bson:"is_active"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}
