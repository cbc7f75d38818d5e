package services

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"snapybara-server/models"
	"snapybara-server/places"
	"snapybara-server/utils/errors"
)

type fakePoints struct {
	mu      sync.Mutex
	points  map[primitive.ObjectID]models.POI
	nearErr error
	nears   atomic.Int32
}

func newFakePoints() *fakePoints {
	return &fakePoints{points: map[primitive.ObjectID]models.POI{}}
}

func (f *fakePoints) setNearErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nearErr = err
}

func (f *fakePoints) Insert(_ context.Context, p *models.POI) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ExternalID != "" {
		for _, existing := range f.points {
			if existing.ExternalID == p.ExternalID {
				return errors.ErrConflict
			}
		}
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	f.points[p.ID] = *p
	return nil
}

func (f *fakePoints) FindByID(_ context.Context, id primitive.ObjectID) (*models.POI, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.points[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return &p, nil
}

func (f *fakePoints) FindByExternalID(_ context.Context, externalID string) (*models.POI, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.points {
		if p.ExternalID == externalID {
			return &p, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (f *fakePoints) Update(_ context.Context, p *models.POI) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.points[p.ID]
	if !ok {
		return errors.ErrNotFound
	}
	updated := *p
	updated.Stats = existing.Stats
	f.points[p.ID] = updated
	return nil
}

func (f *fakePoints) UpdateStats(_ context.Context, id primitive.ObjectID, stats models.POIStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.points[id]
	if !ok {
		return errors.ErrNotFound
	}
	p.Stats.AverageRating = stats.AverageRating
	p.Stats.ReviewCount = stats.ReviewCount
	f.points[id] = p
	return nil
}

func visible(p models.POI, viewerID string, categories []models.Category) bool {
	if !p.IsActive || p.Status != models.StatusApproved {
		return false
	}
	if !p.IsPublic && (viewerID == "" || p.OwnerID != viewerID) {
		return false
	}
	if len(categories) == 0 {
		return true
	}
	for _, c := range categories {
		if p.Category == c {
			return true
		}
	}
	return false
}

func (f *fakePoints) FindNear(_ context.Context, q models.NearQuery) ([]models.POIWithDistance, error) {
	f.nears.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nearErr != nil {
		return nil, f.nearErr
	}
	var out []models.POIWithDistance
	for _, p := range f.points {
		if !visible(p, q.ViewerID, q.Categories) {
			continue
		}
		d := models.DistanceMeters(q.Center, p.Coordinates())
		if d <= q.Radius {
			out = append(out, models.POIWithDistance{POI: p, Distance: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakePoints) FindInBox(_ context.Context, box models.BoundingBox, viewerID string) ([]models.POI, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nearErr != nil {
		return nil, f.nearErr
	}
	var out []models.POI
	for _, p := range f.points {
		if visible(p, viewerID, nil) && box.Contains(p.Coordinates()) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePoints) ListByOwner(_ context.Context, ownerID string, page, limit int) ([]models.POI, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.POI
	for _, p := range f.points {
		if p.OwnerID == ownerID {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	start := min((page-1)*limit, len(all))
	end := min(start+limit, len(all))
	return all[start:end], int64(len(all)), nil
}

type fakeReviews struct {
	mu      sync.Mutex
	reviews map[primitive.ObjectID]models.Review
}

func newFakeReviews() *fakeReviews {
	return &fakeReviews{reviews: map[primitive.ObjectID]models.Review{}}
}

func (f *fakeReviews) Insert(_ context.Context, r *models.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.reviews {
		if !existing.IsDeleted && existing.PointID == r.PointID && existing.AuthorID == r.AuthorID {
			return errors.ErrConflict
		}
	}
	r.ID = primitive.NewObjectID()
	f.reviews[r.ID] = *r
	return nil
}

func (f *fakeReviews) FindByID(_ context.Context, id primitive.ObjectID) (*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reviews[id]
	if !ok || r.IsDeleted {
		return nil, errors.ErrNotFound
	}
	r.HelpfulVotes = append([]string(nil), r.HelpfulVotes...)
	return &r, nil
}

func (f *fakeReviews) Update(_ context.Context, r *models.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.reviews[r.ID]
	if !ok || existing.IsDeleted {
		return errors.ErrNotFound
	}
	existing.Rating = r.Rating
	existing.Comment = r.Comment
	existing.UpdatedAt = r.UpdatedAt
	f.reviews[r.ID] = existing
	return nil
}

func (f *fakeReviews) SoftDelete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reviews[id]
	if !ok || r.IsDeleted {
		return errors.ErrNotFound
	}
	r.IsDeleted = true
	f.reviews[id] = r
	return nil
}

func (f *fakeReviews) ListByPoint(_ context.Context, pointID primitive.ObjectID, page, limit int) ([]models.Review, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.Review
	for _, r := range f.reviews {
		if r.PointID == pointID && !r.IsDeleted {
			all = append(all, r)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	start := min((page-1)*limit, len(all))
	end := min(start+limit, len(all))
	return all[start:end], int64(len(all)), nil
}

func (f *fakeReviews) ToggleHelpful(_ context.Context, id primitive.ObjectID, userID string) (*models.Review, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reviews[id]
	if !ok || r.IsDeleted {
		return nil, false, errors.ErrNotFound
	}
	helpful := r.ToggleHelpful(userID)
	f.reviews[id] = r
	return &r, helpful, nil
}

func (f *fakeReviews) StatsForPoint(_ context.Context, pointID primitive.ObjectID) (models.POIStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum, count := 0, 0
	for _, r := range f.reviews {
		if r.PointID == pointID && !r.IsDeleted {
			sum += r.Rating
			count++
		}
	}
	if count == 0 {
		return models.POIStats{}, nil
	}
	return models.POIStats{
		AverageRating: math.Round(float64(sum)/float64(count)*10) / 10,
		ReviewCount:   count,
	}, nil
}

type fakeCollections struct {
	mu          sync.Mutex
	collections map[primitive.ObjectID]models.Collection
}

func newFakeCollections() *fakeCollections {
	return &fakeCollections{collections: map[primitive.ObjectID]models.Collection{}}
}

func (f *fakeCollections) Insert(_ context.Context, c *models.Collection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.IsDefault {
		for _, existing := range f.collections {
			if existing.OwnerID == c.OwnerID && existing.IsDefault {
				return errors.ErrConflict
			}
		}
	}
	c.ID = primitive.NewObjectID()
	if c.PointIDs == nil {
		c.PointIDs = []primitive.ObjectID{}
	}
	f.collections[c.ID] = *c
	return nil
}

func (f *fakeCollections) get(id primitive.ObjectID) (*models.Collection, error) {
	c, ok := f.collections[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	c.PointIDs = append([]primitive.ObjectID{}, c.PointIDs...)
	return &c, nil
}

func (f *fakeCollections) FindByID(_ context.Context, id primitive.ObjectID) (*models.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.get(id)
}

func (f *fakeCollections) FindDefault(_ context.Context, ownerID string) (*models.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, c := range f.collections {
		if c.OwnerID == ownerID && c.IsDefault {
			return f.get(id)
		}
	}
	return nil, errors.ErrNotFound
}

func (f *fakeCollections) ListByOwner(_ context.Context, ownerID string) ([]models.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Collection{}
	for _, c := range f.collections {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCollections) Update(_ context.Context, c *models.Collection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.collections[c.ID]
	if !ok {
		return errors.ErrNotFound
	}
	existing.Name, existing.Description, existing.IsPublic, existing.UpdatedAt = c.Name, c.Description, c.IsPublic, c.UpdatedAt
	f.collections[c.ID] = existing
	return nil
}

func (f *fakeCollections) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[id]; !ok {
		return errors.ErrNotFound
	}
	delete(f.collections, id)
	return nil
}

func (f *fakeCollections) AddPoint(_ context.Context, id, pointID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.collections[id]
	if !ok {
		return errors.ErrNotFound
	}
	if !c.Contains(pointID) {
		c.PointIDs = append(c.PointIDs, pointID)
	}
	f.collections[id] = c
	return nil
}

func (f *fakeCollections) RemovePoint(_ context.Context, id, pointID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.collections[id]
	if !ok {
		return errors.ErrNotFound
	}
	kept := []primitive.ObjectID{}
	for _, p := range c.PointIDs {
		if p != pointID {
			kept = append(kept, p)
		}
	}
	c.PointIDs = kept
	f.collections[id] = c
	return nil
}

type fakeNotifications struct {
	mu    sync.Mutex
	items map[string]models.Notification
}

func newFakeNotifications() *fakeNotifications {
	return &fakeNotifications{items: map[string]models.Notification{}}
}

func (f *fakeNotifications) Insert(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[n.ID] = *n
	return nil
}

func (f *fakeNotifications) forRecipient(recipientID string, unreadOnly bool) []models.Notification {
	var out []models.Notification
	for _, n := range f.items {
		if n.RecipientID == recipientID && (!unreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeNotifications) List(_ context.Context, recipientID string, unreadOnly bool, page, limit int) ([]models.Notification, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.forRecipient(recipientID, unreadOnly)
	start := min((page-1)*limit, len(all))
	end := min(start+limit, len(all))
	return all[start:end], int64(len(all)), nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, recipientID, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.items[id]
	if !ok || n.RecipientID != recipientID {
		return errors.ErrNotFound
	}
	n.Read, n.ReadAt = true, &at
	f.items[id] = n
	return nil
}

func (f *fakeNotifications) MarkAllRead(_ context.Context, recipientID string, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, item := range f.items {
		if item.RecipientID == recipientID && !item.Read {
			item.Read, item.ReadAt = true, &at
			f.items[id] = item
			n++
		}
	}
	return n, nil
}

func (f *fakeNotifications) UnreadCount(_ context.Context, recipientID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.forRecipient(recipientID, true))), nil
}

func (f *fakeNotifications) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, item := range f.items {
		if item.CreatedAt.Before(cutoff) {
			delete(f.items, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeNotifications) all() []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Notification, 0, len(f.items))
	for _, n := range f.items {
		out = append(out, n)
	}
	return out
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]models.User{}}
}

func (f *fakeUsers) Upsert(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.users[u.Subject]
	if !ok {
		existing = models.User{
			ID:        primitive.NewObjectID(),
			PublicID:  "pub-" + u.Subject,
			Subject:   u.Subject,
			Role:      models.RoleUser,
			CreatedAt: time.Now().UTC(),
		}
	}
	existing.Email, existing.DisplayName, existing.AvatarURL = u.Email, u.DisplayName, u.AvatarURL
	existing.IsActive = true
	existing.UpdatedAt = time.Now().UTC()
	f.users[u.Subject] = existing
	return &existing, nil
}

func (f *fakeUsers) FindBySubject(_ context.Context, subject string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[subject]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUsers) Deactivate(_ context.Context, subject string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[subject]
	if !ok {
		return errors.ErrNotFound
	}
	u.IsActive = false
	f.users[subject] = u
	return nil
}

type fakeSource struct {
	name   string
	places []places.Place
	calls  atomic.Int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) NearbySearch(_ context.Context, lat, lon float64, radius int, _ []models.Category) []places.Place {
	f.calls.Add(1)
	centre := models.Coordinates{Lat: lat, Lon: lon}
	var out []places.Place
	for _, p := range f.places {
		if models.DistanceMeters(centre, p.Coordinates()) <= float64(radius) {
			out = append(out, p)
		}
	}
	return out
}

type fakeDetails map[string]*places.Place

func (f fakeDetails) GetDetails(_ context.Context, placeID string) *places.Place {
	return f[placeID]
}
