package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"snapybara-server/models"
	"snapybara-server/utils/errors"
)

type collectionFixture struct {
	points      *fakePoints
	collections *fakeCollections
	svc         *CollectionService
}

func newCollectionFixture() *collectionFixture {
	f := &collectionFixture{points: newFakePoints(), collections: newFakeCollections()}
	f.svc = NewCollectionService(f.collections, f.points, zap.NewNop())
	return f
}

func TestToggleFavoriteCreatesDefaultOnce(t *testing.T) {
	f := newCollectionFixture()
	ctx := context.Background()
	a := seedPoint(t, f.points, "A", parisLat, parisLon)
	b := seedPoint(t, f.points, "B", parisLat, parisLon)

	first, err := f.svc.ToggleFavorite(ctx, "u1", a.ID.Hex())
	require.NoError(t, err)
	assert.True(t, first.Favorited)

	second, err := f.svc.ToggleFavorite(ctx, "u1", b.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, first.CollectionID, second.CollectionID)

	off, err := f.svc.ToggleFavorite(ctx, "u1", a.ID.Hex())
	require.NoError(t, err)
	assert.False(t, off.Favorited)

	mine, err := f.svc.ListMine(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.True(t, mine[0].IsDefault)
	assert.Equal(t, models.DefaultCollectionName, mine[0].Name)
	assert.Equal(t, []string{b.ID.Hex()}, hexes(mine[0]))
}

func TestToggleFavoriteConcurrentFirstUse(t *testing.T) {
	f := newCollectionFixture()
	ctx := context.Background()
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, seedPoint(t, f.points, string(rune('A'+i)), parisLat, parisLon).ID.Hex())
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ToggleFavorite(ctx, "u1", id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	mine, err := f.svc.ListMine(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Len(t, mine[0].PointIDs, len(ids))
}

func TestToggleFavoriteOnInvisiblePoint(t *testing.T) {
	f := newCollectionFixture()
	hidden := seedPoint(t, f.points, "Hidden", parisLat, parisLon, func(p *models.POI) {
		p.IsPublic = false
		p.OwnerID = "u2"
	})
	_, err := f.svc.ToggleFavorite(context.Background(), "u1", hidden.ID.Hex())
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCollectionVisibilityAndOwnership(t *testing.T) {
	f := newCollectionFixture()
	ctx := context.Background()

	private, err := f.svc.Create(ctx, "u1", CollectionInput{Name: " Weekend "})
	require.NoError(t, err)
	assert.Equal(t, "Weekend", private.Name)
	assert.False(t, private.IsPublic)

	public, err := f.svc.Create(ctx, "u1", CollectionInput{Name: "Best views", IsPublic: ptr(true)})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, private.ID.Hex(), "u2")
	assert.ErrorIs(t, err, errors.ErrNotFound)
	_, err = f.svc.Get(ctx, public.ID.Hex(), "u2")
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, private.ID.Hex(), "u1")
	assert.NoError(t, err)

	_, err = f.svc.Update(ctx, public.ID.Hex(), "u2", CollectionUpdate{Name: ptr("mine")})
	assert.ErrorIs(t, err, errors.ErrForbidden)
	_, err = f.svc.Update(ctx, private.ID.Hex(), "u2", CollectionUpdate{Name: ptr("mine")})
	assert.ErrorIs(t, err, errors.ErrNotFound)

	updated, err := f.svc.Update(ctx, private.ID.Hex(), "u1", CollectionUpdate{IsPublic: ptr(true), Description: ptr("sunny days")})
	require.NoError(t, err)
	assert.True(t, updated.IsPublic)
	assert.Equal(t, "sunny days", updated.Description)

	_, err = f.svc.Update(ctx, private.ID.Hex(), "u1", CollectionUpdate{Name: ptr(" ")})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	assert.ErrorIs(t, f.svc.Delete(ctx, public.ID.Hex(), "u2"), errors.ErrForbidden)
	require.NoError(t, f.svc.Delete(ctx, public.ID.Hex(), "u1"))
	_, err = f.svc.Get(ctx, public.ID.Hex(), "u1")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCollectionAddRemovePoint(t *testing.T) {
	f := newCollectionFixture()
	ctx := context.Background()
	p := seedPoint(t, f.points, "A", parisLat, parisLon)
	c, err := f.svc.Create(ctx, "u1", CollectionInput{Name: "Trip"})
	require.NoError(t, err)

	added, err := f.svc.AddPoint(ctx, c.ID.Hex(), "u1", p.ID.Hex())
	require.NoError(t, err)
	// adding twice keeps one entry
	added, err = f.svc.AddPoint(ctx, c.ID.Hex(), "u1", p.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID.Hex()}, hexes(*added))

	removed, err := f.svc.RemovePoint(ctx, c.ID.Hex(), "u1", p.ID.Hex())
	require.NoError(t, err)
	assert.Empty(t, removed.PointIDs)

	_, err = f.svc.AddPoint(ctx, c.ID.Hex(), "u1", "bogus")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	_, err = f.svc.Create(ctx, "u1", CollectionInput{Name: ""})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func hexes(c models.Collection) []string {
	out := make([]string, 0, len(c.PointIDs))
	for _, id := range c.PointIDs {
		out = append(out, id.Hex())
	}
	return out
}
