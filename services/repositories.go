package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"snapybara-server/models"
)

// PointFinder answers the geospatial queries of the search path.
type PointFinder interface {
	FindNear(ctx context.Context, q models.NearQuery) ([]models.POIWithDistance, error)
	FindInBox(ctx context.Context, box models.BoundingBox, viewerID string) ([]models.POI, error)
}

type PointRepository interface {
	PointFinder
	Insert(ctx context.Context, p *models.POI) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.POI, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.POI, error)
	Update(ctx context.Context, p *models.POI) error
	UpdateStats(ctx context.Context, id primitive.ObjectID, stats models.POIStats) error
	ListByOwner(ctx context.Context, ownerID string, page, limit int) ([]models.POI, int64, error)
}

type ReviewRepository interface {
	Insert(ctx context.Context, r *models.Review) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Review, error)
	Update(ctx context.Context, r *models.Review) error
	SoftDelete(ctx context.Context, id primitive.ObjectID) error
	ListByPoint(ctx context.Context, pointID primitive.ObjectID, page, limit int) ([]models.Review, int64, error)
	ToggleHelpful(ctx context.Context, id primitive.ObjectID, userID string) (*models.Review, bool, error)
	StatsForPoint(ctx context.Context, pointID primitive.ObjectID) (models.POIStats, error)
}

type CollectionRepository interface {
	Insert(ctx context.Context, c *models.Collection) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Collection, error)
	FindDefault(ctx context.Context, ownerID string) (*models.Collection, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Collection, error)
	Update(ctx context.Context, c *models.Collection) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	AddPoint(ctx context.Context, id, pointID primitive.ObjectID) error
	RemovePoint(ctx context.Context, id, pointID primitive.ObjectID) error
}

type NotificationRepository interface {
	Insert(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, recipientID string, unreadOnly bool, page, limit int) ([]models.Notification, int64, error)
	MarkRead(ctx context.Context, recipientID, id string, at time.Time) error
	MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int64, error)
	UnreadCount(ctx context.Context, recipientID string) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type UserRepository interface {
	Upsert(ctx context.Context, u *models.User) (*models.User, error)
	FindBySubject(ctx context.Context, subject string) (*models.User, error)
	Deactivate(ctx context.Context, subject string) error
}

// Page is a slice of a longer listing.
type Page[T any] struct {
	Data  []T   `json:"data"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// normalizePage applies the default page size and bounds.
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}
