package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"snapybara-server/cache"
	"snapybara-server/models"
	"snapybara-server/places"
	"snapybara-server/utils/errors"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) notifications() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Notification(nil), r.sent...)
}

type pointFixture struct {
	points   *fakePoints
	reviews  *fakeReviews
	manager  *cache.Manager
	notifier *recordingNotifier
	svc      *PointService
}

func newPointFixture(cfg PointServiceConfig, details fakeDetails) *pointFixture {
	f := &pointFixture{
		points:   newFakePoints(),
		reviews:  newFakeReviews(),
		manager:  newTestManager(),
		notifier: &recordingNotifier{},
	}
	inv := cache.NewInvalidator(f.manager, zap.NewNop(), nil)
	f.svc = NewPointService(f.points, f.reviews, details, inv, f.notifier, cfg, zap.NewNop())
	return f
}

func validInput() PointInput {
	return PointInput{
		Name:     "  Pont Neuf ",
		Category: models.CategoryHistorical,
		Lat:      ptr(48.8570),
		Lon:      ptr(2.3411),
		Tags:     []string{"Bridge", "bridge ", "", "seine"},
	}
}

func TestCreatePointDefaults(t *testing.T) {
	f := newPointFixture(PointServiceConfig{}, nil)

	p, err := f.svc.Create(context.Background(), "u1", validInput())
	require.NoError(t, err)

	assert.False(t, p.ID.IsZero())
	assert.Equal(t, "Pont Neuf", p.Name)
	assert.Equal(t, []string{"bridge", "seine"}, p.Tags)
	assert.Equal(t, models.StatusApproved, p.Status)
	assert.Equal(t, models.ProvenanceLocal, p.Provenance)
	assert.True(t, p.IsPublic)
	assert.True(t, p.IsActive)
	assert.Equal(t, "u1", p.OwnerID)
	assert.Equal(t, models.Coordinates{Lat: 48.8570, Lon: 2.3411}, p.Coordinates())
}

func TestCreatePointPendingUnderModeration(t *testing.T) {
	f := newPointFixture(PointServiceConfig{RequireModeration: true}, nil)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, "u1", validInput())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, p.Status)

	// the owner sees it, others do not
	_, err = f.svc.Get(ctx, p.ID.Hex(), "u1")
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, p.ID.Hex(), "u2")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCreatePointValidation(t *testing.T) {
	f := newPointFixture(PointServiceConfig{}, nil)
	tests := []struct {
		name   string
		mutate func(*PointInput)
	}{
		{"missing lat", func(in *PointInput) { in.Lat = nil }},
		{"lat out of range", func(in *PointInput) { in.Lat = ptr(91.0) }},
		{"lon out of range", func(in *PointInput) { in.Lon = ptr(-200.0) }},
		{"unknown category", func(in *PointInput) { in.Category = "volcano" }},
		{"blank name", func(in *PointInput) { in.Name = "   " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			_, err := f.svc.Create(context.Background(), "u1", in)
			assert.ErrorIs(t, err, errors.ErrInvalidInput)
		})
	}
}

func TestGetPointRejectsBadID(t *testing.T) {
	f := newPointFixture(PointServiceConfig{}, nil)
	_, err := f.svc.Get(context.Background(), "not-an-id", "")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestUpdatePointOwnership(t *testing.T) {
	f := newPointFixture(PointServiceConfig{}, nil)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, "u1", validInput())
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, p.ID.Hex(), "u2", PointUpdate{Name: ptr("Mine now")})
	assert.ErrorIs(t, err, errors.ErrForbidden)

	updated, err := f.svc.Update(ctx, p.ID.Hex(), "u1", PointUpdate{
		Name:     ptr("Pont Neuf at night"),
		Category: ptr(models.CategoryArchitecture),
		IsPublic: ptr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "Pont Neuf at night", updated.Name)
	assert.Equal(t, models.CategoryArchitecture, updated.Category)
	assert.False(t, updated.IsPublic)
	assert.Equal(t, []string{"bridge", "seine"}, updated.Tags)

	_, err = f.svc.Update(ctx, p.ID.Hex(), "u1", PointUpdate{Lat: ptr(123.0)})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestUpdatePointInvalidatesCachedSearch(t *testing.T) {
	f := newPointFixture(PointServiceConfig{}, nil)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, "u1", validInput())
	require.NoError(t, err)

	key := cache.SearchKey(48.8570, 2.3411, 1000, nil, "")
	f.manager.SetJSON(ctx, key, []models.POISummary{{Name: "Pont Neuf"}}, cache.TierSearch)
	f.manager.Index(ctx, cache.CellsCovering(48.8570, 2.3411, 1000), key)

	_, err = f.svc.Update(ctx, p.ID.Hex(), "u1", PointUpdate{Description: ptr("oldest bridge")})
	require.NoError(t, err)

	var cached []models.POISummary
	assert.False(t, f.manager.GetJSON(ctx, key, &cached))
}

func TestDeactivatePoint(t *testing.T) {
	f := newPointFixture(PointServiceConfig{}, nil)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, "u1", validInput())
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Deactivate(ctx, p.ID.Hex(), "u2", false), errors.ErrForbidden)
	require.NoError(t, f.svc.Deactivate(ctx, p.ID.Hex(), "u1", false))

	_, err = f.svc.Get(ctx, p.ID.Hex(), "u2")
	assert.ErrorIs(t, err, errors.ErrNotFound)
	// a second delete finds nothing to delete
	assert.ErrorIs(t, f.svc.Deactivate(ctx, p.ID.Hex(), "u1", false), errors.ErrNotFound)

	other, err := f.svc.Create(ctx, "u1", validInput())
	require.NoError(t, err)
	require.NoError(t, f.svc.Deactivate(ctx, other.ID.Hex(), "admin", true))
}

func TestListMinePaginates(t *testing.T) {
	f := newPointFixture(PointServiceConfig{}, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(ctx, "u1", validInput())
		require.NoError(t, err)
	}
	_, err := f.svc.Create(ctx, "u2", validInput())
	require.NoError(t, err)

	page, err := f.svc.ListMine(ctx, "u1", 2, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Len(t, page.Data, 1)

	defaults, err := f.svc.ListMine(ctx, "u1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, defaults.Page)
	assert.Equal(t, DefaultPageLimit, defaults.Limit)
}

func TestSetStatusNotifiesOwner(t *testing.T) {
	f := newPointFixture(PointServiceConfig{RequireModeration: true}, nil)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, "u1", validInput())
	require.NoError(t, err)

	approved, err := f.svc.SetStatus(ctx, p.ID.Hex(), models.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)

	// unchanged status sends nothing
	_, err = f.svc.SetStatus(ctx, p.ID.Hex(), models.StatusApproved)
	require.NoError(t, err)

	_, err = f.svc.SetStatus(ctx, p.ID.Hex(), models.StatusRejected)
	require.NoError(t, err)

	sent := f.notifier.notifications()
	require.Len(t, sent, 2)
	assert.Equal(t, models.NotificationPointApproved, sent[0].Type)
	assert.Equal(t, models.NotificationPointRejected, sent[1].Type)
	assert.Equal(t, "u1", sent[1].RecipientID)
	assert.Equal(t, p.ID.Hex(), sent[1].Data.PointID)

	_, err = f.svc.SetStatus(ctx, p.ID.Hex(), "archived")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestImportExternalIsIdempotent(t *testing.T) {
	details := fakeDetails{"ChIJ-notre-dame": &places.Place{
		PlaceID:  "ChIJ-notre-dame",
		Name:     "Notre-Dame",
		Lat:      48.8530,
		Lon:      2.3499,
		Category: models.CategoryReligious,
		Source:   models.SourcePlaces,
		Metadata: &models.PlaceMetadata{Source: models.SourcePlaces, PhotoReferences: []string{"ref1"}},
	}}
	f := newPointFixture(PointServiceConfig{RequireModeration: true}, details)
	ctx := context.Background()

	p, created, err := f.svc.ImportExternal(ctx, "ChIJ-notre-dame")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.ProvenanceImported, p.Provenance)
	assert.Equal(t, models.StatusApproved, p.Status)
	assert.Empty(t, p.OwnerID)
	assert.Equal(t, "ChIJ-notre-dame", p.ExternalID)

	again, created, err := f.svc.ImportExternal(ctx, "ChIJ-notre-dame")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, p.ID, again.ID)

	_, _, err = f.svc.ImportExternal(ctx, "unknown")
	assert.ErrorIs(t, err, errors.ErrNotFound)
	_, _, err = f.svc.ImportExternal(ctx, " ")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	// imported points have no owner to edit them
	_, err = f.svc.Update(ctx, p.ID.Hex(), "", PointUpdate{Name: ptr("x")})
	assert.ErrorIs(t, err, errors.ErrForbidden)
}

func TestRefreshStats(t *testing.T) {
	f := newPointFixture(PointServiceConfig{}, nil)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, "u1", validInput())
	require.NoError(t, err)

	for i, rating := range []int{4, 5, 5} {
		require.NoError(t, f.reviews.Insert(ctx, &models.Review{
			PointID:  p.ID,
			AuthorID: string(rune('a' + i)),
			Rating:   rating,
		}))
	}
	require.NoError(t, f.svc.RefreshStats(ctx, p.ID))

	got, err := f.svc.Get(ctx, p.ID.Hex(), "")
	require.NoError(t, err)
	assert.Equal(t, 4.7, got.Stats.AverageRating)
	assert.Equal(t, 3, got.Stats.ReviewCount)
}
