package repository

import (
	"context"
	"errors"
	"fmt"
	"marketplace-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormRefundRepository implements RefundRepository on Postgres.
type GormRefundRepository struct {
	db *gorm.DB
}

func NewGormRefundRepository(db *gorm.DB) RefundRepository {
	return &GormRefundRepository{db: db}
}

func (r *GormRefundRepository) Create(ctx context.Context, refund *models.Refund) error {
	if refund.ID == "" {
		refund.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(refund).Error; err != nil {
		// idx_refunds_open_order; needs gorm.Config.TranslateError.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrOpenRefundExists
		}
		return fmt.Errorf("create refund: %w", err)
	}
	return nil
}

func (r *GormRefundRepository) FindByID(ctx context.Context, id string) (*models.Refund, error) {
	var refund models.Refund
	if err := r.db.WithContext(ctx).First(&refund, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find refund: %w", err)
	}
	return &refund, nil
}

func (r *GormRefundRepository) FindAll(ctx context.Context, filter models.RefundFilter) ([]models.Refund, int64, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)

	query := r.db.WithContext(ctx).Model(&models.Refund{})
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count refunds: %w", err)
	}

	var refunds []models.Refund
	err := query.Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&refunds).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list refunds: %w", err)
	}
	return refunds, total, nil
}

// Transition issues UPDATE ... WHERE id = ? AND status = ?. When no row
// matches it counts by id alone to tell a missing refund from a lost race.
func (r *GormRefundRepository) Transition(ctx context.Context, id string, from models.RefundStatus, t models.RefundTransition) (*models.Refund, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("id = ? AND status = ?", id, from).
		Updates(transitionColumns(t))
	if res.Error != nil {
		return nil, fmt.Errorf("transition refund: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, r.missOrConflict(ctx, r.db.WithContext(ctx).Where("id = ?", id))
	}
	return r.FindByID(ctx, id)
}

func (r *GormRefundRepository) DeletePending(ctx context.Context, id, userID string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, models.RefundPending).
		Delete(&models.Refund{})
	if res.Error != nil {
		return fmt.Errorf("delete refund: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return r.missOrConflict(ctx, r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID))
	}
	return nil
}

func (r *GormRefundRepository) missOrConflict(ctx context.Context, scope *gorm.DB) error {
	var count int64
	if err := scope.Model(&models.Refund{}).Count(&count).Error; err != nil {
		return fmt.Errorf("check refund: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrStatusConflict
}

func transitionColumns(t models.RefundTransition) map[string]interface{} {
	columns := map[string]interface{}{"status": t.To}
	if t.ProcessedAt != nil {
		columns["processed_at"] = *t.ProcessedAt
	}
	if t.ProcessedBy != nil {
		columns["processed_by"] = *t.ProcessedBy
	}
	if t.AdminNotes != nil {
		columns["admin_notes"] = *t.AdminNotes
	}
	if len(t.Attachments) > 0 {
		columns["attachments"] = t.Attachments
	}
	if len(t.ImagesByAdmin) > 0 {
		columns["images_by_admin"] = t.ImagesByAdmin
	}
	if t.TransactionID != nil {
		columns["transaction_id"] = *t.TransactionID
	}
	return columns
}
