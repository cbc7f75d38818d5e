package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"snapybara-server/cache"
	"snapybara-server/models"
	"snapybara-server/places"
	"snapybara-server/utils/errors"
)

// PlaceDetailer looks up a provider place by id.
type PlaceDetailer interface {
	GetDetails(ctx context.Context, placeID string) *places.Place
}

// Notifier delivers in-app notifications.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type PointInput struct {
	Name        string          `json:"name" validate:"required,max=120"`
	Description string          `json:"description" validate:"max=2000"`
	Category    models.Category `json:"category" validate:"required,category"`
	Lat         *float64        `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon         *float64        `json:"lon" validate:"required,gte=-180,lte=180"`
	Tags        []string        `json:"tags" validate:"max=20,dive,max=40"`
	Address     string          `json:"address" validate:"max=300"`
	IsPublic    *bool           `json:"is_public"`
}

// PointUpdate changes only the fields that are set.
type PointUpdate struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=120"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
	Category    *models.Category `json:"category" validate:"omitempty,category"`
	Lat         *float64         `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lon         *float64         `json:"lon" validate:"omitempty,gte=-180,lte=180"`
	Tags        []string         `json:"tags" validate:"omitempty,max=20,dive,max=40"`
	Address     *string          `json:"address" validate:"omitempty,max=300"`
	IsPublic    *bool            `json:"is_public"`
}

type PointServiceConfig struct {
	// RequireModeration leaves new points pending until an admin approves them.
	RequireModeration bool
}

type PointService struct {
	points      PointRepository
	reviews     ReviewRepository
	details     PlaceDetailer
	invalidator *cache.Invalidator
	notifier    Notifier
	cfg         PointServiceConfig
	logger      *zap.Logger
}

func NewPointService(points PointRepository, reviews ReviewRepository, details PlaceDetailer, invalidator *cache.Invalidator, notifier Notifier, cfg PointServiceConfig, logger *zap.Logger) *PointService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PointService{
		points:      points,
		reviews:     reviews,
		details:     details,
		invalidator: invalidator,
		notifier:    notifier,
		cfg:         cfg,
		logger:      logger.Named("points"),
	}
}

func parseObjectID(id, what string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errors.InvalidInput("invalid %s id %q", what, id)
	}
	return oid, nil
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]bool{}
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func (s *PointService) Create(ctx context.Context, ownerID string, in PointInput) (*models.POI, error) {
	if in.Lat == nil || in.Lon == nil {
		return nil, errors.InvalidInput("lat and lon are required")
	}
	coords := models.Coordinates{Lat: *in.Lat, Lon: *in.Lon}
	if !coords.Valid() {
		return nil, errors.InvalidInput("coordinates out of range")
	}
	if !in.Category.Valid() {
		return nil, errors.InvalidInput("unknown category %q", in.Category)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errors.InvalidInput("name is required")
	}

	status := models.StatusApproved
	if s.cfg.RequireModeration {
		status = models.StatusPending
	}
	public := true
	if in.IsPublic != nil {
		public = *in.IsPublic
	}

	now := time.Now().UTC()
	p := &models.POI{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		Location:    models.NewGeoPoint(coords.Lat, coords.Lon),
		Tags:        cleanTags(in.Tags),
		Address:     strings.TrimSpace(in.Address),
		IsPublic:    public,
		IsActive:    true,
		Status:      status,
		Provenance:  models.ProvenanceLocal,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.points.Insert(ctx, p); err != nil {
		return nil, err
	}

	s.invalidator.InvalidateForPoint(ctx, coords, nil)
	s.logger.Info("point created",
		zap.String("point_id", p.ID.Hex()),
		zap.String("owner_id", ownerID),
		zap.String("status", string(status)))
	return p, nil
}

// Get returns a point the viewer may see.
func (s *PointService) Get(ctx context.Context, id, viewerID string) (*models.POI, error) {
	oid, err := parseObjectID(id, "point")
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

// owned loads an active point and checks callerID owns it.
func (s *PointService) owned(ctx context.Context, id, callerID string) (*models.POI, error) {
	oid, err := parseObjectID(id, "point")
	if err != nil {
		return nil, err
	}
	p, err := s.points.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, errors.ErrNotFound
	}
	if p.OwnerID == "" || p.OwnerID != callerID {
		return nil, errors.WithDetails(errors.ErrForbidden, "only the owner can modify this point")
	}
	return p, nil
}

func (s *PointService) Update(ctx context.Context, id, callerID string, in PointUpdate) (*models.POI, error) {
	p, err := s.owned(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	previous := p.Coordinates()

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, errors.InvalidInput("name cannot be empty")
		}
		p.Name = name
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Category != nil {
		if !in.Category.Valid() {
			return nil, errors.InvalidInput("unknown category %q", *in.Category)
		}
		p.Category = *in.Category
	}
	if in.Lat != nil || in.Lon != nil {
		next := previous
		if in.Lat != nil {
			next.Lat = *in.Lat
		}
		if in.Lon != nil {
			next.Lon = *in.Lon
		}
		if !next.Valid() {
			return nil, errors.InvalidInput("coordinates out of range")
		}
		p.Location = models.NewGeoPoint(next.Lat, next.Lon)
	}
	if in.Tags != nil {
		p.Tags = cleanTags(in.Tags)
	}
	if in.Address != nil {
		p.Address = strings.TrimSpace(*in.Address)
	}
	if in.IsPublic != nil {
		p.IsPublic = *in.IsPublic
	}
	p.UpdatedAt = time.Now().UTC()

	if err := s.points.Update(ctx, p); err != nil {
		return nil, err
	}

	current := p.Coordinates()
	if current != previous {
		s.invalidator.InvalidateForPoint(ctx, current, &previous)
	} else {
		s.invalidator.InvalidateForPoint(ctx, current, nil)
	}
	return p, nil
}

// Deactivate hides a point for good. Points are never hard-deleted.
func (s *PointService) Deactivate(ctx context.Context, id, callerID string, admin bool) error {
	oid, err := parseObjectID(id, "point")
	if err != nil {
		return err
	}
	p, err := s.points.FindByID(ctx, oid)
	if err != nil {
		return err
	}
	if !p.IsActive {
		return errors.ErrNotFound
	}
	if !admin && (p.OwnerID == "" || p.OwnerID != callerID) {
		return errors.WithDetails(errors.ErrForbidden, "only the owner can delete this point")
	}

	p.IsActive = false
	p.UpdatedAt = time.Now().UTC()
	if err := s.points.Update(ctx, p); err != nil {
		return err
	}
	s.invalidator.InvalidateForPoint(ctx, p.Coordinates(), nil)
	return nil
}

func (s *PointService) ListMine(ctx context.Context, ownerID string, page, limit int) (*Page[models.POI], error) {
	page, limit = normalizePage(page, limit)
	items, total, err := s.points.ListByOwner(ctx, ownerID, page, limit)
	if err != nil {
		return nil, err
	}
	return &Page[models.POI]{Data: items, Total: total, Page: page, Limit: limit}, nil
}

// SetStatus records a moderation decision and tells the owner about it.
func (s *PointService) SetStatus(ctx context.Context, id string, status models.PointStatus) (*models.POI, error) {
	if !status.Valid() {
		return nil, errors.InvalidInput("unknown status %q", status)
	}
	oid, err := parseObjectID(id, "point")
	if err != nil {
		return nil, err
	}
	p, err := s.points.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if p.Status == status {
		return p, nil
	}

	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	if err := s.points.Update(ctx, p); err != nil {
		return nil, err
	}
	s.invalidator.InvalidateForPoint(ctx, p.Coordinates(), nil)

	if p.OwnerID != "" && status != models.StatusPending {
		n := models.Notification{
			RecipientID: p.OwnerID,
			Type:        models.NotificationPointApproved,
			Title:       "Point approved",
			Message:     fmt.Sprintf("%q is now visible to everyone.", p.Name),
			Data:        models.NotificationData{PointID: p.ID.Hex()},
		}
		if status == models.StatusRejected {
			n.Type = models.NotificationPointRejected
			n.Title = "Point rejected"
			n.Message = fmt.Sprintf("%q was not accepted.", p.Name)
		}
		s.notify(ctx, n)
	}
	return p, nil
}

func (s *PointService) notify(ctx context.Context, n models.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("notification not delivered",
			zap.String("recipient_id", n.RecipientID),
			zap.String("type", string(n.Type)),
			zap.Error(err))
	}
}

// ImportExternal stores a provider place as a local point. Importing the
// same place twice returns the existing point; created reports which case
// happened.
func (s *PointService) ImportExternal(ctx context.Context, placeID string) (p *models.POI, created bool, err error) {
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return nil, false, errors.InvalidInput("place_id is required")
	}

	existing, err := s.points.FindByExternalID(ctx, placeID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, false, err
	}

	place := s.details.GetDetails(ctx, placeID)
	if place == nil {
		return nil, false, errors.WithDetails(errors.ErrNotFound, "place not found at provider")
	}

	now := time.Now().UTC()
	p = &models.POI{
		ExternalID: place.PlaceID,
		Name:       place.Name,
		Category:   place.Category,
		Location:   models.NewGeoPoint(place.Lat, place.Lon),
		Tags:       []string{},
		Address:    place.Address,
		Metadata:   place.Metadata,
		Stats:      models.POIStats{},
		IsPublic:   true,
		IsActive:   true,
		Status:     models.StatusApproved,
		Provenance: models.ProvenanceImported,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.points.Insert(ctx, p); err != nil {
		if errors.Is(err, errors.ErrConflict) {
			// imported concurrently
			existing, findErr := s.points.FindByExternalID(ctx, placeID)
			if findErr != nil {
				return nil, false, findErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	s.invalidator.InvalidateForPoint(ctx, p.Coordinates(), nil)
	s.logger.Info("place imported", zap.String("point_id", p.ID.Hex()), zap.String("place_id", placeID))
	return p, true, nil
}

// RefreshStats recomputes a point's rating statistics from its live reviews.
func (s *PointService) RefreshStats(ctx context.Context, pointID primitive.ObjectID) error {
	stats, err := s.reviews.StatsForPoint(ctx, pointID)
	if err != nil {
		return err
	}
	if err := s.points.UpdateStats(ctx, pointID, stats); err != nil {
		return err
	}
	// cached summaries carry the rating
	if p, err := s.points.FindByID(ctx, pointID); err == nil {
		s.invalidator.InvalidateForPoint(ctx, p.Coordinates(), nil)
	}
	return nil
}
