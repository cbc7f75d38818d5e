package handlers

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"snapybara-server/auth"
	"snapybara-server/models"
	"snapybara-server/places"
	"snapybara-server/utils/errors"
)

type stubVerifier map[string]*auth.Identity

func (s stubVerifier) Verify(_ context.Context, token string) (*auth.Identity, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return nil, &auth.AuthError{Reason: auth.ReasonInvalid}
}

var verifier = stubVerifier{
	"alice": {UserID: "alice", Role: models.RoleUser},
	"bob":   {UserID: "bob", Role: models.RoleUser},
	"admin": {UserID: "root", Role: models.RoleAdmin},
}

// memPoints is a map-backed point store; radius and box filters are exact.
type memPoints struct {
	mu     sync.Mutex
	points map[primitive.ObjectID]models.POI
}

func newMemPoints() *memPoints {
	return &memPoints{points: map[primitive.ObjectID]models.POI{}}
}

func (m *memPoints) Insert(_ context.Context, p *models.POI) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = primitive.NewObjectID()
	m.points[p.ID] = *p
	return nil
}

func (m *memPoints) FindByID(_ context.Context, id primitive.ObjectID) (*models.POI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.points[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return &p, nil
}

func (m *memPoints) FindByExternalID(_ context.Context, externalID string) (*models.POI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.points {
		if p.ExternalID == externalID {
			return &p, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (m *memPoints) Update(_ context.Context, p *models.POI) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[p.ID] = *p
	return nil
}

func (m *memPoints) UpdateStats(_ context.Context, id primitive.ObjectID, stats models.POIStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.points[id]
	p.Stats = stats
	m.points[id] = p
	return nil
}

func (m *memPoints) ListByOwner(_ context.Context, ownerID string, _, _ int) ([]models.POI, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.POI
	for _, p := range m.points {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memPoints) FindNear(_ context.Context, q models.NearQuery) ([]models.POIWithDistance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.POIWithDistance
	for _, p := range m.points {
		if !p.VisibleTo(q.ViewerID) {
			continue
		}
		if d := models.DistanceMeters(q.Center, p.Coordinates()); d <= q.Radius {
			out = append(out, models.POIWithDistance{POI: p, Distance: d})
		}
	}
	return out, nil
}

func (m *memPoints) FindInBox(_ context.Context, box models.BoundingBox, viewerID string) ([]models.POI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.POI
	for _, p := range m.points {
		if p.VisibleTo(viewerID) && box.Contains(p.Coordinates()) {
			out = append(out, p)
		}
	}
	return out, nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func (m *memUsers) Upsert(_ context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users == nil {
		m.users = map[string]models.User{}
	}
	stored := *u
	stored.IsActive = true
	stored.Role = models.RoleUser
	stored.UpdatedAt = time.Now()
	m.users[u.Subject] = stored
	return &stored, nil
}

func (m *memUsers) FindBySubject(_ context.Context, subject string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[subject]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return &u, nil
}

func (m *memUsers) Deactivate(_ context.Context, subject string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[subject]
	if !ok {
		return errors.ErrNotFound
	}
	u.IsActive = false
	m.users[subject] = u
	return nil
}

type stubPlaces struct {
	text    []places.Place
	details map[string]*places.Place
	photos  map[string]string
	query   string
	loc     *models.Coordinates
}

func (s *stubPlaces) TextSearch(_ context.Context, query string, loc *models.Coordinates, _ int) []places.Place {
	s.query, s.loc = query, loc
	return s.text
}

func (s *stubPlaces) Autocomplete(_ context.Context, input string, _ *models.Coordinates, _ int) places.AutocompleteResult {
	if input == "" {
		return places.AutocompleteResult{Predictions: []places.Prediction{}, Status: places.StatusZeroResults}
	}
	return places.AutocompleteResult{
		Predictions: []places.Prediction{{PlaceID: "p1", Description: input + " tower"}},
		Status:      places.StatusOK,
	}
}

func (s *stubPlaces) GetDetails(_ context.Context, placeID string) *places.Place {
	return s.details[placeID]
}

func (s *stubPlaces) PhotoURL(_ context.Context, ref string, _ int) string {
	return s.photos[ref]
}
