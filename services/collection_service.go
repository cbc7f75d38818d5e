package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"snapybara-server/models"
	"snapybara-server/utils/errors"
)

type CollectionInput struct {
	Name        string `json:"name" validate:"required,max=80"`
	Description string `json:"description" validate:"max=500"`
	IsPublic    *bool  `json:"is_public"`
}

type CollectionUpdate struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=80"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	IsPublic    *bool   `json:"is_public"`
}

type FavoriteResult struct {
	Favorited    bool   `json:"favorited"`
	CollectionID string `json:"collection_id"`
}

type CollectionService struct {
	collections CollectionRepository
	points      PointRepository
	logger      *zap.Logger
}

func NewCollectionService(collections CollectionRepository, points PointRepository, logger *zap.Logger) *CollectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollectionService{
		collections: collections,
		points:      points,
		logger:      logger.Named("collections"),
	}
}

func (s *CollectionService) Create(ctx context.Context, ownerID string, in CollectionInput) (*models.Collection, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errors.InvalidInput("name is required")
	}
	now := time.Now().UTC()
	c := &models.Collection{
		OwnerID:     ownerID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		IsPublic:    in.IsPublic != nil && *in.IsPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.collections.Insert(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CollectionService) ListMine(ctx context.Context, ownerID string) ([]models.Collection, error) {
	return s.collections.ListByOwner(ctx, ownerID)
}

// Get returns a collection that is public or owned by viewerID.
func (s *CollectionService) Get(ctx context.Context, id, viewerID string) (*models.Collection, error) {
	oid, err := parseObjectID(id, "collection")
	if err != nil {
		return nil, err
	}
	c, err := s.collections.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if !c.IsPublic && c.OwnerID != viewerID {
		return nil, errors.ErrNotFound
	}
	return c, nil
}

func (s *CollectionService) owned(ctx context.Context, id, ownerID string) (*models.Collection, error) {
	oid, err := parseObjectID(id, "collection")
	if err != nil {
		return nil, err
	}
	c, err := s.collections.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != ownerID {
		if !c.IsPublic {
			return nil, errors.ErrNotFound
		}
		return nil, errors.WithDetails(errors.ErrForbidden, "only the owner can modify this collection")
	}
	return c, nil
}

func (s *CollectionService) Update(ctx context.Context, id, ownerID string, in CollectionUpdate) (*models.Collection, error) {
	c, err := s.owned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, errors.InvalidInput("name cannot be empty")
		}
		c.Name = name
	}
	if in.Description != nil {
		c.Description = strings.TrimSpace(*in.Description)
	}
	if in.IsPublic != nil {
		c.IsPublic = *in.IsPublic
	}
	c.UpdatedAt = time.Now().UTC()
	if err := s.collections.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CollectionService) Delete(ctx context.Context, id, ownerID string) error {
	c, err := s.owned(ctx, id, ownerID)
	if err != nil {
		return err
	}
	return s.collections.Delete(ctx, c.ID)
}

func (s *CollectionService) visiblePoint(ctx context.Context, pointID, viewerID string) (*models.POI, error) {
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

func (s *CollectionService) AddPoint(ctx context.Context, id, ownerID, pointID string) (*models.Collection, error) {
	c, err := s.owned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	p, err := s.visiblePoint(ctx, pointID, ownerID)
	if err != nil {
		return nil, err
	}
	if err := s.collections.AddPoint(ctx, c.ID, p.ID); err != nil {
		return nil, err
	}
	return s.collections.FindByID(ctx, c.ID)
}

func (s *CollectionService) RemovePoint(ctx context.Context, id, ownerID, pointID string) (*models.Collection, error) {
	c, err := s.owned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	pid, err := parseObjectID(pointID, "point")
	if err != nil {
		return nil, err
	}
	if err := s.collections.RemovePoint(ctx, c.ID, pid); err != nil {
		return nil, err
	}
	return s.collections.FindByID(ctx, c.ID)
}

// defaultCollection returns ownerID's default collection, creating it on
// first use.
func (s *CollectionService) defaultCollection(ctx context.Context, ownerID string) (*models.Collection, error) {
	c, err := s.collections.FindDefault(ctx, ownerID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	c = &models.Collection{
		OwnerID:   ownerID,
		Name:      models.DefaultCollectionName,
		IsDefault: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.collections.Insert(ctx, c); err != nil {
		if errors.Is(err, errors.ErrConflict) {
			// created by a concurrent request
			return s.collections.FindDefault(ctx, ownerID)
		}
		return nil, err
	}
	s.logger.Info("default collection created", zap.String("owner_id", ownerID))
	return c, nil
}

// ToggleFavorite adds the point to the caller's default collection, or
// removes it when already there.
func (s *CollectionService) ToggleFavorite(ctx context.Context, ownerID, pointID string) (*FavoriteResult, error) {
	p, err := s.visiblePoint(ctx, pointID, ownerID)
	if err != nil {
		return nil, err
	}
	c, err := s.defaultCollection(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	res := &FavoriteResult{CollectionID: c.ID.Hex()}
	if c.Contains(p.ID) {
		err = s.collections.RemovePoint(ctx, c.ID, p.ID)
	} else {
		err = s.collections.AddPoint(ctx, c.ID, p.ID)
		res.Favorited = true
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}
