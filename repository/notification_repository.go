package repository

import (
	"context"
	"errors"
	"fmt"
	"marketplace-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormNotificationRepository implements NotificationRepository on Postgres.
type GormNotificationRepository struct {
	db *gorm.DB
}

func NewGormNotificationRepository(db *gorm.DB) NotificationRepository {
	return &GormNotificationRepository{db: db}
}

func (r *GormNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (r *GormNotificationRepository) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find notification: %w", err)
	}
	return &n, nil
}

func (r *GormNotificationRepository) FindMatching(ctx context.Context, originalID string, originType models.OriginType, unreadOnly bool) (*models.Notification, error) {
	query := r.db.WithContext(ctx).
		Where("original_id = ? AND origin_type = ?", originalID, originType)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var n models.Notification
	if err := query.Order("created_at ASC").First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find matching notification: %w", err)
	}
	return &n, nil
}

func (r *GormNotificationRepository) MarkRead(ctx context.Context, id string) (*models.Notification, error) {
	return r.updateColumns(ctx, id, map[string]interface{}{"is_read": true})
}

func (r *GormNotificationRepository) MarkWatching(ctx context.Context, id string) (*models.Notification, error) {
	return r.updateColumns(ctx, id, map[string]interface{}{"is_watching": true})
}

func (r *GormNotificationRepository) Update(ctx context.Context, id string, patch models.NotificationPatch) (*models.Notification, error) {
	columns := map[string]interface{}{}
	if patch.OriginalID != nil {
		columns["original_id"] = *patch.OriginalID
	}
	if patch.OriginType != nil {
		columns["origin_type"] = *patch.OriginType
	}
	if patch.UserID != nil {
		columns["user_id"] = *patch.UserID
	}
	if patch.IsRead != nil {
		columns["is_read"] = *patch.IsRead
	}
	if patch.IsWatching != nil {
		columns["is_watching"] = *patch.IsWatching
	}
	if len(columns) == 0 {
		return r.FindByID(ctx, id)
	}
	return r.updateColumns(ctx, id, columns)
}

// updateColumns is a single-row UPDATE. Postgres counts matched rows, so
// setting a flag that is already set still reports one affected row.
func (r *GormNotificationRepository) updateColumns(ctx context.Context, id string, columns map[string]interface{}) (*models.Notification, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(columns)
	if res.Error != nil {
		return nil, fmt.Errorf("update notification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *GormNotificationRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Notification{})
	if res.Error != nil {
		return fmt.Errorf("delete notification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormNotificationRepository) unreadQuery(ctx context.Context, originType models.OriginType) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Notification{}).Where("is_read = ?", false)
	if originType != "" {
		query = query.Where("origin_type = ?", originType)
	}
	return query
}

func (r *GormNotificationRepository) FindUnread(ctx context.Context, originType models.OriginType) ([]models.Notification, error) {
	var list []models.Notification
	if err := r.unreadQuery(ctx, originType).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("find unread notifications: %w", err)
	}
	return list, nil
}

func (r *GormNotificationRepository) CountUnread(ctx context.Context, originType models.OriginType) (int64, error) {
	var count int64
	if err := r.unreadQuery(ctx, originType).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (r *GormNotificationRepository) FindForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	var list []models.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_read = ? AND is_watching = ? AND origin_type <> ?",
			userID, true, false, models.OriginComment).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("find user notifications: %w", err)
	}
	return list, nil
}

func (r *GormNotificationRepository) FindAll(ctx context.Context, page, limit int) ([]models.Notification, int64, error) {
	page, limit = normalizePage(page, limit)

	var list []models.Notification
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Notification{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	err := query.Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&list).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return list, total, nil
}
