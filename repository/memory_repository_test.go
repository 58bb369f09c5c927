package repository_test

import (
	"context"
	"sync"
	"testing"

	"marketplace-service/models"
	"marketplace-service/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryNotifications_FindMatchingReturnsEarliest(t *testing.T) {
	repo := repository.NewMemoryNotificationRepository()
	ctx := context.Background()

	first := &models.Notification{Message: "first", OriginalID: "o1", OriginType: models.OriginRefund}
	second := &models.Notification{Message: "second", OriginalID: "o1", OriginType: models.OriginRefund}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	n, err := repo.FindMatching(ctx, "o1", models.OriginRefund, false)
	require.NoError(t, err)
	assert.Equal(t, first.ID, n.ID)

	_, err = repo.MarkRead(ctx, first.ID)
	require.NoError(t, err)

	n, err = repo.FindMatching(ctx, "o1", models.OriginRefund, true)
	require.NoError(t, err)
	assert.Equal(t, second.ID, n.ID)

	_, err = repo.FindMatching(ctx, "o1", models.OriginSupport, false)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMemoryNotifications_UnreadAndHistory(t *testing.T) {
	repo := repository.NewMemoryNotificationRepository()
	ctx := context.Background()
	user := "u1"

	seed := []*models.Notification{
		{Message: "a", OriginalID: "1", OriginType: models.OriginSupport},
		{Message: "b", OriginalID: "2", OriginType: models.OriginComment},
		{Message: "c", OriginalID: "3", OriginType: models.OriginRefund, UserID: &user, IsRead: true},
		{Message: "d", OriginalID: "4", OriginType: models.OriginComment, UserID: &user, IsRead: true},
		{Message: "e", OriginalID: "5", OriginType: models.OriginSupport, UserID: &user, IsRead: true, IsWatching: true},
	}
	for _, n := range seed {
		require.NoError(t, repo.Create(ctx, n))
	}

	all, err := repo.FindUnread(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "b", all[0].Message, "newest first")

	count, err := repo.CountUnread(ctx, models.OriginComment)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	history, err := repo.FindForUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "c", history[0].Message)
}

func TestMemoryNotifications_UpdateAndDelete(t *testing.T) {
	repo := repository.NewMemoryNotificationRepository()
	ctx := context.Background()

	n := &models.Notification{Message: "a", OriginalID: "1", OriginType: models.OriginSupport}
	require.NoError(t, repo.Create(ctx, n))

	owner := "u9"
	updated, err := repo.Update(ctx, n.ID, models.NotificationPatch{UserID: &owner})
	require.NoError(t, err)
	assert.Equal(t, "u9", *updated.UserID)
	assert.False(t, updated.IsRead)

	require.NoError(t, repo.Delete(ctx, n.ID))
	assert.ErrorIs(t, repo.Delete(ctx, n.ID), repository.ErrNotFound)
	_, err = repo.MarkWatching(ctx, n.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMemoryNotifications_FindAllPaginates(t *testing.T) {
	repo := repository.NewMemoryNotificationRepository()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, &models.Notification{Message: "m", OriginalID: "x", OriginType: models.OriginSupport}))
	}

	page, total, err := repo.FindAll(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, page, 2)

	page, _, err = repo.FindAll(ctx, 4, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestMemoryRefunds_TransitionIsConditional(t *testing.T) {
	repo := repository.NewMemoryRefundRepository()
	ctx := context.Background()

	r := &models.Refund{UserID: "u1", OrderID: "o1", Amount: 100, Status: models.RefundPending, Description: "d"}
	require.NoError(t, repo.Create(ctx, r))

	out, err := repo.Transition(ctx, r.ID, models.RefundPending, models.RefundTransition{To: models.RefundApproved})
	require.NoError(t, err)
	assert.Equal(t, models.RefundApproved, out.Status)

	_, err = repo.Transition(ctx, r.ID, models.RefundPending, models.RefundTransition{To: models.RefundRejected})
	assert.ErrorIs(t, err, repository.ErrStatusConflict)

	_, err = repo.Transition(ctx, "missing", models.RefundPending, models.RefundTransition{To: models.RefundRejected})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMemoryRefunds_OneOpenRefundPerOrder(t *testing.T) {
	repo := repository.NewMemoryRefundRepository()
	ctx := context.Background()

	first := &models.Refund{UserID: "u1", OrderID: "o1", Amount: 100, Status: models.RefundPending, Description: "d"}
	require.NoError(t, repo.Create(ctx, first))

	second := &models.Refund{UserID: "u1", OrderID: "o1", Amount: 100, Status: models.RefundPending, Description: "d"}
	assert.ErrorIs(t, repo.Create(ctx, second), repository.ErrOpenRefundExists)

	_, err := repo.Transition(ctx, first.ID, models.RefundPending, models.RefundTransition{To: models.RefundApproved})
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Create(ctx, second), repository.ErrOpenRefundExists)

	_, err = repo.Transition(ctx, first.ID, models.RefundApproved, models.RefundTransition{To: models.RefundCompleted})
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, second))
	assert.NotEqual(t, first.ID, second.ID)
}

func TestMemoryRefunds_ConcurrentTransitionsHaveOneWinner(t *testing.T) {
	repo := repository.NewMemoryRefundRepository()
	ctx := context.Background()

	r := &models.Refund{UserID: "u1", OrderID: "o1", Amount: 100, Status: models.RefundPending, Description: "d"}
	require.NoError(t, repo.Create(ctx, r))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 20; i++ {
		to := models.RefundApproved
		if i%2 == 1 {
			to = models.RefundRejected
		}
		wg.Add(1)
		go func(to models.RefundStatus) {
			defer wg.Done()
			if _, err := repo.Transition(ctx, r.ID, models.RefundPending, models.RefundTransition{To: to}); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(to)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestMemoryRefunds_DeletePendingAndFilter(t *testing.T) {
	repo := repository.NewMemoryRefundRepository()
	ctx := context.Background()

	mine := &models.Refund{UserID: "u1", OrderID: "o1", Amount: 100, Status: models.RefundPending, Description: "d"}
	other := &models.Refund{UserID: "u2", OrderID: "o2", Amount: 100, Status: models.RefundApproved, Description: "d"}
	require.NoError(t, repo.Create(ctx, mine))
	require.NoError(t, repo.Create(ctx, other))

	list, total, err := repo.FindAll(ctx, models.RefundFilter{Status: models.RefundApproved})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, other.ID, list[0].ID)

	assert.ErrorIs(t, repo.DeletePending(ctx, mine.ID, "u2"), repository.ErrNotFound)
	assert.ErrorIs(t, repo.DeletePending(ctx, other.ID, "u2"), repository.ErrStatusConflict)
	require.NoError(t, repo.DeletePending(ctx, mine.ID, "u1"))

	_, err = repo.FindByID(ctx, mine.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
