package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"snapybara-server/models"
	"snapybara-server/utils/errors"
)

// StatsRefresher recomputes a point's review statistics.
type StatsRefresher interface {
	RefreshStats(ctx context.Context, pointID primitive.ObjectID) error
}

type ReviewInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// ReviewView is a review as seen by one viewer.
type ReviewView struct {
	models.Review
	Helpful bool `json:"helpful"`
}

type HelpfulResult struct {
	Helpful      bool `json:"helpful"`
	HelpfulCount int  `json:"helpful_count"`
}

type ReviewService struct {
	reviews  ReviewRepository
	points   PointRepository
	stats    StatsRefresher
	notifier Notifier
	logger   *zap.Logger
}

func NewReviewService(reviews ReviewRepository, points PointRepository, stats StatsRefresher, notifier Notifier, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{
		reviews:  reviews,
		points:   points,
		stats:    stats,
		notifier: notifier,
		logger:   logger.Named("reviews"),
	}
}

func validateRating(rating int) error {
	if rating < models.MinRating || rating > models.MaxRating {
		return errors.InvalidInput("rating must be within [%d, %d]", models.MinRating, models.MaxRating)
	}
	return nil
}

func (s *ReviewService) visiblePoint(ctx context.Context, pointID, viewerID string) (*models.POI, error) {
	oid, err := parseObjectID(pointID, "point")
	if err != nil {
		return nil, err
	}
	p, err := s.points.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if !p.VisibleTo(viewerID) {
		return nil, errors.ErrNotFound
	}
	return p, nil
}

// refresh keeps point statistics in line with the reviews. The review write
// already succeeded, so a failure is logged rather than returned.
func (s *ReviewService) refresh(ctx context.Context, pointID primitive.ObjectID) {
	if err := s.stats.RefreshStats(ctx, pointID); err != nil {
		s.logger.Error("refresh point stats", zap.String("point_id", pointID.Hex()), zap.Error(err))
	}
}

func (s *ReviewService) notify(ctx context.Context, n models.Notification) {
	if s.notifier == nil || n.RecipientID == "" || n.RecipientID == n.Data.ActorID {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("notification not delivered", zap.String("recipient_id", n.RecipientID), zap.Error(err))
	}
}

// Create adds authorID's review of a point. A user reviews a point once.
func (s *ReviewService) Create(ctx context.Context, authorID, pointID string, in ReviewInput) (*models.Review, error) {
	if err := validateRating(in.Rating); err != nil {
		return nil, err
	}
	p, err := s.visiblePoint(ctx, pointID, authorID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	r := &models.Review{
		PointID:      p.ID,
		AuthorID:     authorID,
		Rating:       in.Rating,
		Comment:      strings.TrimSpace(in.Comment),
		HelpfulVotes: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.reviews.Insert(ctx, r); err != nil {
		if errors.Is(err, errors.ErrConflict) {
			return nil, errors.WithDetails(errors.ErrConflict, "you already reviewed this point")
		}
		return nil, err
	}
	s.refresh(ctx, p.ID)

	s.notify(ctx, models.Notification{
		RecipientID: p.OwnerID,
		Type:        models.NotificationNewReview,
		Title:       "New review",
		Message:     fmt.Sprintf("%q received a %d-star review.", p.Name, r.Rating),
		Data:        models.NotificationData{PointID: p.ID.Hex(), ReviewID: r.ID.Hex(), ActorID: authorID},
	})
	return r, nil
}

func (s *ReviewService) authored(ctx context.Context, reviewID, callerID string, admin bool) (*models.Review, error) {
	oid, err := parseObjectID(reviewID, "review")
	if err != nil {
		return nil, err
	}
	r, err := s.reviews.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if r.AuthorID != callerID && !admin {
		return nil, errors.WithDetails(errors.ErrForbidden, "only the author can modify this review")
	}
	return r, nil
}

func (s *ReviewService) Update(ctx context.Context, reviewID, callerID string, in ReviewInput) (*models.Review, error) {
	if err := validateRating(in.Rating); err != nil {
		return nil, err
	}
	r, err := s.authored(ctx, reviewID, callerID, false)
	if err != nil {
		return nil, err
	}
	r.Rating = in.Rating
	r.Comment = strings.TrimSpace(in.Comment)
	r.UpdatedAt = time.Now().UTC()
	if err := s.reviews.Update(ctx, r); err != nil {
		return nil, err
	}
	s.refresh(ctx, r.PointID)
	return r, nil
}

func (s *ReviewService) Delete(ctx context.Context, reviewID, callerID string, admin bool) error {
	r, err := s.authored(ctx, reviewID, callerID, admin)
	if err != nil {
		return err
	}
	if err := s.reviews.SoftDelete(ctx, r.ID); err != nil {
		return err
	}
	s.refresh(ctx, r.PointID)
	return nil
}

func (s *ReviewService) ListForPoint(ctx context.Context, pointID, viewerID string, page, limit int) (*Page[ReviewView], error) {
	p, err := s.visiblePoint(ctx, pointID, viewerID)
	if err != nil {
		return nil, err
	}
	page, limit = normalizePage(page, limit)
	items, total, err := s.reviews.ListByPoint(ctx, p.ID, page, limit)
	if err != nil {
		return nil, err
	}

	views := make([]ReviewView, 0, len(items))
	for _, r := range items {
		views = append(views, ReviewView{Review: r, Helpful: viewerID != "" && r.HelpfulFor(viewerID)})
	}
	return &Page[ReviewView]{Data: views, Total: total, Page: page, Limit: limit}, nil
}

// ToggleHelpful flips userID's helpful vote on a review. Calling it twice
// restores the original count.
func (s *ReviewService) ToggleHelpful(ctx context.Context, reviewID, userID string) (*HelpfulResult, error) {
	oid, err := parseObjectID(reviewID, "review")
	if err != nil {
		return nil, err
	}
	r, helpful, err := s.reviews.ToggleHelpful(ctx, oid, userID)
	if err != nil {
		return nil, err
	}

	if helpful {
		s.notify(ctx, models.Notification{
			RecipientID: r.AuthorID,
			Type:        models.NotificationReviewHelpful,
			Title:       "Your review helped someone",
			Message:     "Someone found your review helpful.",
			Data:        models.NotificationData{PointID: r.PointID.Hex(), ReviewID: r.ID.Hex(), ActorID: userID},
		})
	}
	return &HelpfulResult{Helpful: helpful, HelpfulCount: r.HelpfulCount}, nil
}
