package services_test

import (
	"context"
	"testing"

	apperrors "marketplace-service/common/errors"
	"marketplace-service/models"
	"marketplace-service/repository"
	"marketplace-service/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNotificationService(t *testing.T) (*services.NotificationService, *fakeCache) {
	t.Helper()
	cache := newFakeCache()
	return services.NewNotificationService(repository.NewMemoryNotificationRepository(), cache, newFakeMetrics(), nil), cache
}

func createNotification(t *testing.T, svc *services.NotificationService, originalID string, originType models.OriginType) *models.Notification {
	t.Helper()
	n, err := svc.Create(context.Background(), models.CreateNotificationRequest{
		Message:    "New " + string(originType) + " notification",
		OriginalID: originalID,
		OriginType: originType,
	})
	require.NoError(t, err)
	return n
}

func TestCreate_DefaultsFlagsAndStampsTime(t *testing.T) {
	svc, _ := newNotificationService(t)

	n := createNotification(t, svc, "order123", models.OriginRefund)

	assert.NotEmpty(t, n.ID)
	assert.False(t, n.IsRead)
	assert.False(t, n.IsWatching)
	assert.False(t, n.CreatedAt.IsZero())
	assert.Nil(t, n.UserID)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newNotificationService(t)

	tests := []struct {
		name string
		req  models.CreateNotificationRequest
	}{
		{"missing message", models.CreateNotificationRequest{Message: "  ", OriginalID: "o1", OriginType: models.OriginSupport}},
		{"missing original id", models.CreateNotificationRequest{Message: "m", OriginType: models.OriginSupport}},
		{"unknown origin type", models.CreateNotificationRequest{Message: "m", OriginalID: "o1", OriginType: "invoice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.req)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func TestMarkRead_Idempotent(t *testing.T) {
	svc, _ := newNotificationService(t)
	n := createNotification(t, svc, "t1", models.OriginSupport)

	first, err := svc.MarkRead(context.Background(), n.ID)
	require.NoError(t, err)
	second, err := svc.MarkRead(context.Background(), n.ID)
	require.NoError(t, err)

	assert.True(t, first.IsRead)
	assert.True(t, second.IsRead)
}

func TestMarkWatching_LeavesReadFlag(t *testing.T) {
	svc, _ := newNotificationService(t)
	n := createNotification(t, svc, "t1", models.OriginSupport)

	watched, err := svc.MarkWatching(context.Background(), n.ID)
	require.NoError(t, err)
	assert.True(t, watched.IsWatching)
	assert.False(t, watched.IsRead)
}

func TestFindMatching_ByPair(t *testing.T) {
	svc, _ := newNotificationService(t)
	created := createNotification(t, svc, "order123", models.OriginRefund)

	found, err := svc.FindMatching(context.Background(), "order123", models.OriginRefund)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	none, err := svc.FindMatching(context.Background(), "order123", models.OriginSupport)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestUnknownID_NotFound(t *testing.T) {
	svc, _ := newNotificationService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = svc.MarkRead(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = svc.MarkWatching(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "missing"), apperrors.ErrNotFound)
}

func TestUpdate_RejectsUnknownOriginType(t *testing.T) {
	svc, _ := newNotificationService(t)
	n := createNotification(t, svc, "t1", models.OriginSupport)

	bad := models.OriginType("invoice")
	_, err := svc.Update(context.Background(), n.ID, models.NotificationPatch{OriginType: &bad})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	owner := "u1"
	updated, err := svc.Update(context.Background(), n.ID, models.NotificationPatch{UserID: &owner})
	require.NoError(t, err)
	assert.Equal(t, "u1", *updated.UserID)
}

func TestMutations_InvalidateCache(t *testing.T) {
	svc, cache := newNotificationService(t)
	ctx := context.Background()

	n := createNotification(t, svc, "t1", models.OriginSupport)
	assert.Equal(t, 1, cache.invalidationCount())

	_, err := svc.MarkRead(ctx, n.ID)
	require.NoError(t, err)
	_, err = svc.MarkWatching(ctx, n.ID)
	require.NoError(t, err)
	yes := true
	_, err = svc.Update(ctx, n.ID, models.NotificationPatch{IsRead: &yes})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, n.ID))

	assert.Equal(t, 5, cache.invalidationCount())

	_, err = svc.ListUnread(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, cache.invalidationCount(), "reads never invalidate")
}

func TestListForUser_History(t *testing.T) {
	svc, _ := newNotificationService(t)
	ctx := context.Background()
	user := "u1"

	refund, err := svc.Create(ctx, models.CreateNotificationRequest{Message: "r", OriginalID: "o1", OriginType: models.OriginRefund, UserID: &user})
	require.NoError(t, err)
	comment, err := svc.Create(ctx, models.CreateNotificationRequest{Message: "c", OriginalID: "p1", OriginType: models.OriginComment, UserID: &user})
	require.NoError(t, err)
	unread, err := svc.Create(ctx, models.CreateNotificationRequest{Message: "s", OriginalID: "t1", OriginType: models.OriginSupport, UserID: &user})
	require.NoError(t, err)

	_, err = svc.MarkRead(ctx, refund.ID)
	require.NoError(t, err)
	_, err = svc.MarkRead(ctx, comment.ID)
	require.NoError(t, err)

	history, err := svc.ListForUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, refund.ID, history[0].ID)
	assert.NotEqual(t, unread.ID, history[0].ID)

	_, err = svc.ListForUser(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
