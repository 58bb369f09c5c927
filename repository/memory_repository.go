package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"marketplace-service/models"

	"github.com/google/uuid"
)

var (
	_ NotificationRepository = (*MongoNotificationRepository)(nil)
	_ NotificationRepository = (*MemoryNotificationRepository)(nil)
	_ RefundRepository       = (*MongoRefundRepository)(nil)
	_ RefundRepository       = (*MemoryRefundRepository)(nil)
)

// MemoryNotificationRepository keeps notifications in process. It backs
// STORE_DRIVER=memory and the service tests.
type MemoryNotificationRepository struct {
	mu    sync.RWMutex
	items map[string]*memNotification
	seq   int64
	now   func() time.Time
}

type memNotification struct {
	n   models.Notification
	seq int64
}

func NewMemoryNotificationRepository() *MemoryNotificationRepository {
	return &MemoryNotificationRepository{items: make(map[string]*memNotification), now: time.Now}
}

func (r *MemoryNotificationRepository) Create(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := r.now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now
	r.seq++
	r.items[n.ID] = &memNotification{n: *n, seq: r.seq}
	return nil
}

func (r *MemoryNotificationRepository) FindByID(_ context.Context, id string) (*models.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	n := item.n
	return &n, nil
}

func (r *MemoryNotificationRepository) FindMatching(_ context.Context, originalID string, originType models.OriginType, unreadOnly bool) (*models.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := r.filter(func(n *models.Notification) bool {
		return n.OriginalID == originalID && n.OriginType == originType && (!unreadOnly || !n.IsRead)
	}, false)
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	return &matches[0], nil
}

func (r *MemoryNotificationRepository) MarkRead(ctx context.Context, id string) (*models.Notification, error) {
	yes := true
	return r.Update(ctx, id, models.NotificationPatch{IsRead: &yes})
}

func (r *MemoryNotificationRepository) MarkWatching(ctx context.Context, id string) (*models.Notification, error) {
	yes := true
	return r.Update(ctx, id, models.NotificationPatch{IsWatching: &yes})
}

func (r *MemoryNotificationRepository) Update(_ context.Context, id string, patch models.NotificationPatch) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	n := &item.n
	if patch.OriginalID != nil {
		n.OriginalID = *patch.OriginalID
	}
	if patch.OriginType != nil {
		n.OriginType = *patch.OriginType
	}
	if patch.UserID != nil {
		uid := *patch.UserID
		n.UserID = &uid
	}
	if patch.IsRead != nil {
		n.IsRead = *patch.IsRead
	}
	if patch.IsWatching != nil {
		n.IsWatching = *patch.IsWatching
	}
	n.UpdatedAt = r.now().UTC()

	out := *n
	return &out, nil
}

func (r *MemoryNotificationRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *MemoryNotificationRepository) FindUnread(_ context.Context, originType models.OriginType) ([]models.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.filter(func(n *models.Notification) bool {
		return !n.IsRead && (originType == "" || n.OriginType == originType)
	}, true), nil
}

func (r *MemoryNotificationRepository) CountUnread(ctx context.Context, originType models.OriginType) (int64, error) {
	list, _ := r.FindUnread(ctx, originType)
	return int64(len(list)), nil
}

func (r *MemoryNotificationRepository) FindForUser(_ context.Context, userID string) ([]models.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.filter(func(n *models.Notification) bool {
		return n.UserID != nil && *n.UserID == userID &&
			n.IsRead && !n.IsWatching && n.OriginType != models.OriginComment
	}, true), nil
}

func (r *MemoryNotificationRepository) FindAll(_ context.Context, page, limit int) ([]models.Notification, int64, error) {
	page, limit = normalizePage(page, limit)

	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.filter(func(*models.Notification) bool { return true }, true)
	return paginate(all, page, limit), int64(len(all)), nil
}

// filter returns copies ordered by creation, newest first when desc is set.
// Callers hold the lock.
func (r *MemoryNotificationRepository) filter(keep func(*models.Notification) bool, desc bool) []models.Notification {
	matched := make([]*memNotification, 0)
	for _, item := range r.items {
		if keep(&item.n) {
			matched = append(matched, item)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if desc {
			return matched[i].seq > matched[j].seq
		}
		return matched[i].seq < matched[j].seq
	})

	out := make([]models.Notification, len(matched))
	for i, item := range matched {
		out[i] = item.n
	}
	return out
}

// MemoryRefundRepository keeps refunds in process. Transition holds the
// write lock across the status check and the write, which is the in-process
// equivalent of a conditional update.
type MemoryRefundRepository struct {
	mu    sync.RWMutex
	items map[string]*memRefund
	seq   int64
	now   func() time.Time
}

type memRefund struct {
	r   models.Refund
	seq int64
}

func NewMemoryRefundRepository() *MemoryRefundRepository {
	return &MemoryRefundRepository{items: make(map[string]*memRefund), now: time.Now}
}

func (m *MemoryRefundRepository) Create(_ context.Context, refund *models.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if refund.Status.IsOpen() {
		for _, item := range m.items {
			if item.r.OrderID == refund.OrderID && item.r.Status.IsOpen() {
				return ErrOpenRefundExists
			}
		}
	}

	if refund.ID == "" {
		refund.ID = uuid.NewString()
	}
	now := m.now().UTC()
	refund.CreatedAt = now
	refund.UpdatedAt = now
	m.seq++
	m.items[refund.ID] = &memRefund{r: cloneRefund(*refund), seq: m.seq}
	return nil
}

func (m *MemoryRefundRepository) FindByID(_ context.Context, id string) (*models.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneRefund(item.r)
	return &out, nil
}

func (m *MemoryRefundRepository) FindAll(_ context.Context, filter models.RefundFilter) ([]models.Refund, int64, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*memRefund, 0)
	for _, item := range m.items {
		if filter.UserID != "" && item.r.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && item.r.Status != filter.Status {
			continue
		}
		matched = append(matched, item)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq > matched[j].seq })

	all := make([]models.Refund, len(matched))
	for i, item := range matched {
		all[i] = cloneRefund(item.r)
	}
	return paginate(all, page, limit), int64(len(all)), nil
}

func (m *MemoryRefundRepository) Transition(_ context.Context, id string, from models.RefundStatus, t models.RefundTransition) (*models.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if item.r.Status != from {
		return nil, ErrStatusConflict
	}
	t.Apply(&item.r, m.now().UTC())

	out := cloneRefund(item.r)
	return &out, nil
}

func (m *MemoryRefundRepository) DeletePending(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok || item.r.UserID != userID {
		return ErrNotFound
	}
	if item.r.Status != models.RefundPending {
		return ErrStatusConflict
	}
	delete(m.items, id)
	return nil
}

func cloneRefund(r models.Refund) models.Refund {
	r.Images = append(models.StringList(nil), r.Images...)
	r.Attachments = append(models.StringList(nil), r.Attachments...)
	r.ImagesByAdmin = append(models.StringList(nil), r.ImagesByAdmin...)
	return r
}

func paginate[T any](all []T, page, limit int) []T {
	start := (page - 1) * limit
	if start >= len(all) {
		return []T{}
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}
