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

type MongoNotificationRepository struct {
	collection *mongo.Collection
}

func NewMongoNotificationRepository(db *mongo.Database) *MongoNotificationRepository {
	return &MongoNotificationRepository{collection: db.Collection("notifications")}
}

// EnsureIndexes creates the indexes behind correlation lookups, the unread
// badge and the per-user history.
func (r *MongoNotificationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "originalId", Value: 1}, {Key: "originType", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "isRead", Value: 1}, {Key: "originType", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create notification indexes: %w", err)
	}
	return nil
}

func (r *MongoNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now
	if _, err := r.collection.InsertOne(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (r *MongoNotificationRepository) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoNotificationRepository) FindMatching(ctx context.Context, originalID string, originType models.OriginType, unreadOnly bool) (*models.Notification, error) {
	filter := bson.M{"originalId": originalID, "originType": originType}
	if unreadOnly {
		filter["isRead"] = false
	}
	return r.findOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

func (r *MongoNotificationRepository) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.Notification, error) {
	var n models.Notification
	if err := r.collection.FindOne(ctx, filter, opts...).Decode(&n); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find notification: %w", err)
	}
	return &n, nil
}

func (r *MongoNotificationRepository) MarkRead(ctx context.Context, id string) (*models.Notification, error) {
	return r.set(ctx, id, bson.M{"isRead": true})
}

func (r *MongoNotificationRepository) MarkWatching(ctx context.Context, id string) (*models.Notification, error) {
	return r.set(ctx, id, bson.M{"isWatching": true})
}

func (r *MongoNotificationRepository) Update(ctx context.Context, id string, patch models.NotificationPatch) (*models.Notification, error) {
	fields := bson.M{}
	if patch.OriginalID != nil {
		fields["originalId"] = *patch.OriginalID
	}
	if patch.OriginType != nil {
		fields["originType"] = *patch.OriginType
	}
	if patch.UserID != nil {
		fields["userId"] = *patch.UserID
	}
	if patch.IsRead != nil {
		fields["isRead"] = *patch.IsRead
	}
	if patch.IsWatching != nil {
		fields["isWatching"] = *patch.IsWatching
	}
	if len(fields) == 0 {
		return r.FindByID(ctx, id)
	}
	return r.set(ctx, id, fields)
}

func (r *MongoNotificationRepository) set(ctx context.Context, id string, fields bson.M) (*models.Notification, error) {
	fields["updatedAt"] = time.Now().UTC()
	var n models.Notification
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": fields},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&n)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update notification: %w", err)
	}
	return &n, nil
}

func (r *MongoNotificationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func unreadFilter(originType models.OriginType) bson.M {
	filter := bson.M{"isRead": false}
	if originType != "" {
		filter["originType"] = originType
	}
	return filter
}

func (r *MongoNotificationRepository) FindUnread(ctx context.Context, originType models.OriginType) ([]models.Notification, error) {
	return r.find(ctx, unreadFilter(originType), options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *MongoNotificationRepository) CountUnread(ctx context.Context, originType models.OriginType) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, unreadFilter(originType))
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (r *MongoNotificationRepository) FindForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	filter := bson.M{
		"userId":     userID,
		"isRead":     true,
		"isWatching": false,
		"originType": bson.M{"$ne": models.OriginComment},
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *MongoNotificationRepository) FindAll(ctx context.Context, page, limit int) ([]models.Notification, int64, error) {
	page, limit = normalizePage(page, limit)

	total, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	list, err := r.find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *MongoNotificationRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Notification, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find notifications: %w", err)
	}
	defer cursor.Close(ctx)

	list := []models.Notification{}
	if err := cursor.All(ctx, &list); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return list, nil
}
