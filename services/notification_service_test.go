package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"snapybara-server/models"
	"snapybara-server/utils/errors"
)

func TestNotificationLifecycle(t *testing.T) {
	repo := newFakeNotifications()
	svc := NewNotificationService(repo, zap.NewNop())
	ctx := context.Background()

	for _, title := range []string{"one", "two", "three"} {
		require.NoError(t, svc.Notify(ctx, models.Notification{RecipientID: "u1", Type: models.NotificationNewReview, Title: title}))
	}
	require.NoError(t, svc.Notify(ctx, models.Notification{RecipientID: "u2", Title: "other"}))
	assert.ErrorIs(t, svc.Notify(ctx, models.Notification{Title: "nobody"}), errors.ErrInvalidInput)

	count, err := svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	page, err := svc.List(ctx, "u1", false, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	require.Len(t, page.Data, 2)
	_, err = uuid.Parse(page.Data[0].ID)
	assert.NoError(t, err)

	require.NoError(t, svc.MarkRead(ctx, "u1", page.Data[0].ID))
	// someone else's notification
	assert.ErrorIs(t, svc.MarkRead(ctx, "u2", page.Data[1].ID), errors.ErrNotFound)
	assert.ErrorIs(t, svc.MarkRead(ctx, "u1", "not-a-uuid"), errors.ErrInvalidInput)

	unread, err := svc.List(ctx, "u1", true, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread.Total)

	n, err := svc.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	count, err = svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
	count, err = svc.UnreadCount(ctx, "u2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestPurgeOlderThan(t *testing.T) {
	repo := newFakeNotifications()
	svc := NewNotificationService(repo, zap.NewNop())
	ctx := context.Background()

	old := models.Notification{ID: uuid.NewString(), RecipientID: "u1", CreatedAt: time.Now().Add(-40 * 24 * time.Hour)}
	require.NoError(t, repo.Insert(ctx, &old))
	require.NoError(t, svc.Notify(ctx, models.Notification{RecipientID: "u1", Title: "recent"}))

	n, err := svc.PurgeOlderThan(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	left := repo.all()
	require.Len(t, left, 1)
	assert.Equal(t, "recent", left[0].Title)

	_, err = svc.PurgeOlderThan(ctx, 0)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}
