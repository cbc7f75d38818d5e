package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	PointID      primitive.ObjectID `json:"point_id" bson:"point_id"`
	AuthorID     string             `json:"author_id" bson:"author_id"`
	Rating       int                `json:"rating" bson:"rating"`
	Comment      string             `json:"comment,omitempty" bson:"comment,omitempty"`
	HelpfulVotes []string           `json:"-" bson:"helpful_votes"`
	HelpfulCount int                `json:"helpful_count" bson:"helpful_count"`
	IsDeleted    bool               `json:"-" bson:"is_deleted"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" bson:"updated_at"`
}

// ToggleHelpful adds or removes userID from the helpful votes and keeps
// HelpfulCount equal to the number of voters. It reports whether the user
// now marks the review as helpful.
func (r *Review) ToggleHelpful(userID string) bool {
	for i, voter := range r.HelpfulVotes {
		if voter == userID {
			r.HelpfulVotes = append(r.HelpfulVotes[:i], r.HelpfulVotes[i+1:]...)
			r.HelpfulCount = len(r.HelpfulVotes)
			return false
		}
	}
	r.HelpfulVotes = append(r.HelpfulVotes, userID)
	r.HelpfulCount = len(r.HelpfulVotes)
	return true
}

func (r *Review) HelpfulFor(userID string) bool {
	for _, voter := range r.HelpfulVotes {
		if voter == userID {
			return true
		}
	}
	return false
}
