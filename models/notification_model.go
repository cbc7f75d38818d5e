package models

import "time"

type NotificationType string

const (
	NotificationNewReview     NotificationType = "new_review"
	NotificationPointApproved NotificationType = "point_approved"
	NotificationPointRejected NotificationType = "point_rejected"
	NotificationReviewHelpful NotificationType = "review_helpful"
)

type Notification struct {
	ID          string           `json:"id" bson:"_id"`
	RecipientID string           `json:"recipient_id" bson:"recipient_id"`
	Type        NotificationType `json:"type" bson:"type"`
	Title       string           `json:"title" bson:"title"`
	Message     string           `json:"message" bson:"message"`
	Data        NotificationData `json:"data" bson:"data"`
	Read        bool             `json:"read" bson:"read"`
	ReadAt      *time.Time       `json:"read_at,omitempty" bson:"read_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at" bson:"created_at"`
}

type NotificationData struct {
	PointID  string `json:"point_id,omitempty" bson:"point_id,omitempty"`
	ReviewID string `json:"review_id,omitempty" bson:"review_id,omitempty"`
	ActorID  string `json:"actor_id,omitempty" bson:"actor_id,omitempty"`
}
