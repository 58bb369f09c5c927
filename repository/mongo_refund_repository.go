package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-service/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRefundRepository struct {
	collection *mongo.Collection
}

func NewMongoRefundRepository(db *mongo.Database) *MongoRefundRepository {
	return &MongoRefundRepository{collection: db.Collection("refunds")}
}

func (r *MongoRefundRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "orderId", Value: 1}}},
		{
			Keys: bson.D{{Key: "orderId", Value: 1}},
			Options: options.Index().
				SetName("open_refund_per_order").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": bson.M{"$in": bson.A{models.RefundPending, models.RefundApproved}}}),
		},
	})
	if err != nil {
		return fmt.Errorf("create refund indexes: %w", err)
	}
	return nil
}

func (r *MongoRefundRepository) Create(ctx context.Context, refund *models.Refund) error {
	if refund.ID == "" {
		refund.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	refund.CreatedAt = now
	refund.UpdatedAt = now
	if _, err := r.collection.InsertOne(ctx, refund); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrOpenRefundExists
		}
		return fmt.Errorf("create refund: %w", err)
	}
	return nil
}

func (r *MongoRefundRepository) FindByID(ctx context.Context, id string) (*models.Refund, error) {
	var refund models.Refund
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&refund); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find refund: %w", err)
	}
	return &refund, nil
}

func (r *MongoRefundRepository) FindAll(ctx context.Context, filter models.RefundFilter) ([]models.Refund, int64, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)

	query := bson.M{}
	if filter.UserID != "" {
		query["userId"] = filter.UserID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count refunds: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list refunds: %w", err)
	}
	defer cursor.Close(ctx)

	refunds := []models.Refund{}
	if err := cursor.All(ctx, &refunds); err != nil {
		return nil, 0, fmt.Errorf("decode refunds: %w", err)
	}
	return refunds, total, nil
}

// Transition is a FindOneAndUpdate filtered on the expected status, which
// MongoDB applies atomically per document.
func (r *MongoRefundRepository) Transition(ctx context.Context, id string, from models.RefundStatus, t models.RefundTransition) (*models.Refund, error) {
	var refund models.Refund
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": transitionFields(t)},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&refund)
	if err == nil {
		return &refund, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("transition refund: %w", err)
	}
	return nil, r.missOrConflict(ctx, bson.M{"_id": id})
}

func (r *MongoRefundRepository) DeletePending(ctx context.Context, id, userID string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "userId": userID, "status": models.RefundPending})
	if err != nil {
		return fmt.Errorf("delete refund: %w", err)
	}
	if res.DeletedCount == 0 {
		return r.missOrConflict(ctx, bson.M{"_id": id, "userId": userID})
	}
	return nil
}

func (r *MongoRefundRepository) missOrConflict(ctx context.Context, filter bson.M) error {
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return fmt.Errorf("check refund: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrStatusConflict
}

func transitionFields(t models.RefundTransition) bson.M {
	fields := bson.M{"status": t.To, "updatedAt": time.Now().UTC()}
	if t.ProcessedAt != nil {
		fields["processedAt"] = *t.ProcessedAt
	}
	if t.ProcessedBy != nil {
		fields["processedBy"] = *t.ProcessedBy
	}
	if t.AdminNotes != nil {
		fields["adminNotes"] = *t.AdminNotes
	}
	if len(t.Attachments) > 0 {
		fields["attachments"] = []string(t.Attachments)
	}
	if len(t.ImagesByAdmin) > 0 {
		fields["imagesByAdmin"] = []string(t.ImagesByAdmin)
	}
	if t.TransactionID != nil {
		fields["transactionId"] = *t.TransactionID
	}
	return fields
}
