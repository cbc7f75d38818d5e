package database

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"snapybara-server/models"
	"snapybara-server/utils/errors"
)

var (
	mongoOnce sync.Once
	mongoURI  string
	mongoErr  error
)

// setupTestDB starts a shared MongoDB container (once for the whole run) and
// returns a fresh, indexed database on it. Tests are skipped without Docker.
func setupTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("mongo integration test skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	mongoOnce.Do(func() {
		mongoURI, mongoErr = startMongo()
	})
	if mongoErr != nil {
		t.Fatalf("start mongo: %v", mongoErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := Connect(ctx, mongoURI, 10*time.Second, zap.NewNop())
	require.NoError(t, err)
	db := client.Database("snapybara_" + uuid.NewString()[:8])
	require.NoError(t, EnsureIndexes(ctx, db))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}

func startMongo() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor: wait.ForListeningPort("27017/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return "", fmt.Errorf("start container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "27017")
	if err != nil {
		return "", fmt.Errorf("get mapped port: %w", err)
	}
	return fmt.Sprintf("mongodb://%s:%s", host, port.Port()), nil
}

func insertReview(t *testing.T, repo *ReviewRepository, pointID primitive.ObjectID, author string, rating int) *models.Review {
	t.Helper()
	now := time.Now().UTC()
	r := &models.Review{PointID: pointID, AuthorID: author, Rating: rating, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Insert(context.Background(), r))
	return r
}

func TestReviewRepositoryToggleHelpful(t *testing.T) {
	ctx := context.Background()
	repo := NewReviewRepository(setupTestDB(t))
	review := insertReview(t, repo, primitive.NewObjectID(), "author", 4)

	got, voted, err := repo.ToggleHelpful(ctx, review.ID, "u1")
	require.NoError(t, err)
	assert.True(t, voted)
	assert.Equal(t, 1, got.HelpfulCount)
	assert.Equal(t, []string{"u1"}, got.HelpfulVotes)

	got, voted, err = repo.ToggleHelpful(ctx, review.ID, "u1")
	require.NoError(t, err)
	assert.False(t, voted)
	assert.Equal(t, 0, got.HelpfulCount)
	assert.Empty(t, got.HelpfulVotes)
}

func TestReviewRepositoryToggleHelpfulConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewReviewRepository(setupTestDB(t))
	review := insertReview(t, repo, primitive.NewObjectID(), "author", 5)

	var wg sync.WaitGroup
	voters := []string{"u0", "u1", "u2", "u3", "u4", "u5", "u6", "u7"}
	for _, u := range voters {
		u := u
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := repo.ToggleHelpful(ctx, review.ID, u)
			assert.NoError(t, err)
		}()
	}
	// the same user racing against themself
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := repo.ToggleHelpful(ctx, review.ID, "racer")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.FindByID(ctx, review.ID)
	require.NoError(t, err)
	assert.Equal(t, len(got.HelpfulVotes), got.HelpfulCount)
	assert.Subset(t, got.HelpfulVotes, voters)
}

func TestReviewRepositoryToggleHelpfulDeletedReview(t *testing.T) {
	ctx := context.Background()
	repo := NewReviewRepository(setupTestDB(t))
	review := insertReview(t, repo, primitive.NewObjectID(), "author", 3)
	require.NoError(t, repo.SoftDelete(ctx, review.ID))

	_, _, err := repo.ToggleHelpful(ctx, review.ID, "u1")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestReviewRepositoryOneLiveReviewPerAuthor(t *testing.T) {
	ctx := context.Background()
	repo := NewReviewRepository(setupTestDB(t))
	point := primitive.NewObjectID()
	first := insertReview(t, repo, point, "alice", 4)

	dup := &models.Review{PointID: point, AuthorID: "alice", Rating: 2}
	assert.ErrorIs(t, repo.Insert(ctx, dup), errors.ErrConflict)

	require.NoError(t, repo.SoftDelete(ctx, first.ID))
	insertReview(t, repo, point, "alice", 2)
}

func TestReviewRepositoryStatsForPoint(t *testing.T) {
	ctx := context.Background()
	repo := NewReviewRepository(setupTestDB(t))
	point := primitive.NewObjectID()

	insertReview(t, repo, point, "a", 4)
	insertReview(t, repo, point, "b", 5)
	insertReview(t, repo, point, "c", 5)
	deleted := insertReview(t, repo, point, "d", 1)
	require.NoError(t, repo.SoftDelete(ctx, deleted.ID))
	insertReview(t, repo, primitive.NewObjectID(), "a", 1)

	stats, err := repo.StatsForPoint(ctx, point)
	require.NoError(t, err)
	assert.Equal(t, models.POIStats{AverageRating: 4.7, ReviewCount: 3}, stats)

	empty, err := repo.StatsForPoint(ctx, primitive.NewObjectID())
	require.NoError(t, err)
	assert.Equal(t, models.POIStats{}, empty)
}

func insertPoint(t *testing.T, repo *PointRepository, name string, lat, lon float64, opts ...func(*models.POI)) *models.POI {
	t.Helper()
	p := &models.POI{
		Name:      name,
		Category:  models.CategoryHistorical,
		Location:  models.NewGeoPoint(lat, lon),
		Tags:      []string{},
		IsPublic:  true,
		IsActive:  true,
		Status:    models.StatusApproved,
		OwnerID:   "owner",
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(p)
	}
	require.NoError(t, repo.Insert(context.Background(), p))
	return p
}

func nearNames(items []models.POIWithDistance) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func TestPointRepositoryFindNearVisibility(t *testing.T) {
	ctx := context.Background()
	repo := NewPointRepository(setupTestDB(t))
	const lat, lon = 48.8566, 2.3522

	insertPoint(t, repo, "Public", lat+0.0045, lon)
	insertPoint(t, repo, "Beach", lat+0.0020, lon, func(p *models.POI) { p.Category = models.CategoryBeach })
	insertPoint(t, repo, "Private", lat+0.0010, lon, func(p *models.POI) { p.IsPublic = false; p.OwnerID = "alice" })
	insertPoint(t, repo, "Pending", lat+0.0011, lon, func(p *models.POI) { p.Status = models.StatusPending })
	insertPoint(t, repo, "Inactive", lat+0.0012, lon, func(p *models.POI) { p.IsActive = false })
	insertPoint(t, repo, "Far", lat+0.0450, lon)

	centre := models.Coordinates{Lat: lat, Lon: lon}

	anon, err := repo.FindNear(ctx, models.NearQuery{Center: centre, Radius: 1000})
	require.NoError(t, err)
	assert.Equal(t, []string{"Beach", "Public"}, nearNames(anon))
	assert.InDelta(t, 500, anon[1].Distance, 5)

	alice, err := repo.FindNear(ctx, models.NearQuery{Center: centre, Radius: 1000, ViewerID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Private", "Beach", "Public"}, nearNames(alice))

	bob, err := repo.FindNear(ctx, models.NearQuery{Center: centre, Radius: 1000, ViewerID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Beach", "Public"}, nearNames(bob))

	beaches, err := repo.FindNear(ctx, models.NearQuery{
		Center: centre, Radius: 1000, Categories: []models.Category{models.CategoryBeach},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Beach"}, nearNames(beaches))
}

func TestPointRepositoryFindInBox(t *testing.T) {
	ctx := context.Background()
	repo := NewPointRepository(setupTestDB(t))

	insertPoint(t, repo, "Inside", 48.8570, 2.3520)
	insertPoint(t, repo, "Hidden", 48.8571, 2.3521, func(p *models.POI) { p.IsPublic = false })
	insertPoint(t, repo, "Outside", 48.8700, 2.3520)

	found, err := repo.FindInBox(ctx, models.BoundingBox{MinLat: 48.855, MinLon: 2.345, MaxLat: 48.865, MaxLon: 2.355}, "")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Inside", found[0].Name)
}
