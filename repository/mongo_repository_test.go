package repository_test

import (
	"context"
	"testing"
	"time"

	"marketplace-service/models"
	"marketplace-service/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoRefundTransition(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("applies when status matches", func(mt *mtest.T) {
		repo := repository.NewMongoRefundRepository(mt.DB)
		now := time.Now().UTC().Truncate(time.Millisecond)
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: bson.D{
				{Key: "_id", Value: "r1"},
				{Key: "userId", Value: "u1"},
				{Key: "orderId", Value: "o1"},
				{Key: "amount", Value: int64(500)},
				{Key: "status", Value: "approved"},
				{Key: "processedBy", Value: "admin1"},
				{Key: "processedAt", Value: now},
			}},
		})

		admin := "admin1"
		r, err := repo.Transition(context.Background(), "r1", models.RefundPending, models.RefundTransition{
			To: models.RefundApproved, ProcessedAt: &now, ProcessedBy: &admin,
		})
		require.NoError(mt, err)
		assert.Equal(mt, models.RefundApproved, r.Status)
		assert.Equal(mt, "admin1", *r.ProcessedBy)
	})

	mt.Run("conflict when status moved", func(mt *mtest.T) {
		repo := repository.NewMongoRefundRepository(mt.DB)
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}},
			mtest.CreateCursorResponse(1, "test.refunds", mtest.FirstBatch, bson.D{{Key: "n", Value: 1}}),
		)

		_, err := repo.Transition(context.Background(), "r1", models.RefundPending, models.RefundTransition{To: models.RefundRejected})
		assert.ErrorIs(mt, err, repository.ErrStatusConflict)
	})

	mt.Run("not found when refund is missing", func(mt *mtest.T) {
		repo := repository.NewMongoRefundRepository(mt.DB)
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}},
			mtest.CreateCursorResponse(0, "test.refunds", mtest.FirstBatch),
		)

		_, err := repo.Transition(context.Background(), "r404", models.RefundApproved, models.RefundTransition{To: models.RefundCompleted})
		assert.ErrorIs(mt, err, repository.ErrNotFound)
	})
}

func TestMongoRefundCreate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("inserts with generated id", func(mt *mtest.T) {
		repo := repository.NewMongoRefundRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		r := &models.Refund{UserID: "u1", OrderID: "o1", Amount: 500, Status: models.RefundPending, Description: "d"}
		require.NoError(mt, repo.Create(context.Background(), r))
		assert.NotEmpty(mt, r.ID)
	})

	mt.Run("open refund on the order", func(mt *mtest.T) {
		repo := repository.NewMongoRefundRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "E11000 duplicate key error index: open_refund_per_order",
		}))

		r := &models.Refund{UserID: "u1", OrderID: "o1", Amount: 500, Status: models.RefundPending, Description: "d"}
		assert.ErrorIs(mt, repo.Create(context.Background(), r), repository.ErrOpenRefundExists)
	})
}

func TestMongoNotificationRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("find matching returns none", func(mt *mtest.T) {
		repo := repository.NewMongoNotificationRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.notifications", mtest.FirstBatch))

		_, err := repo.FindMatching(context.Background(), "order123", models.OriginSupport, false)
		assert.ErrorIs(mt, err, repository.ErrNotFound)
	})

	mt.Run("mark read returns updated document", func(mt *mtest.T) {
		repo := repository.NewMongoNotificationRepository(mt.DB)
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: bson.D{
				{Key: "_id", Value: "n1"},
				{Key: "message", Value: "New refund request"},
				{Key: "originalId", Value: "order123"},
				{Key: "originType", Value: "refund"},
				{Key: "isRead", Value: true},
			}},
		})

		n, err := repo.MarkRead(context.Background(), "n1")
		require.NoError(mt, err)
		assert.True(mt, n.IsRead)
	})

	mt.Run("delete missing", func(mt *mtest.T) {
		repo := repository.NewMongoNotificationRepository(mt.DB)
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}})

		err := repo.Delete(context.Background(), "missing")
		assert.ErrorIs(mt, err, repository.ErrNotFound)
	})

	mt.Run("count unread", func(mt *mtest.T) {
		repo := repository.NewMongoNotificationRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "test.notifications", mtest.FirstBatch, bson.D{{Key: "n", Value: 3}}))

		count, err := repo.CountUnread(context.Background(), models.OriginSupport)
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), count)
	})
}
