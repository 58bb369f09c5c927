package services

import (
	"context"
	"fmt"

	apperrors "marketplace-service/common/errors"
	"marketplace-service/models"
	awspkg "marketplace-service/pkg/aws"
	"marketplace-service/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Aggregator builds the unread badge summary polled by the admin dashboard.
type Aggregator struct {
	repo    repository.NotificationRepository
	cache   UnreadCache
	metrics MetricsRecorder
	logger  *zap.Logger
}

func NewAggregator(repo repository.NotificationRepository, cache UnreadCache, metrics MetricsRecorder, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{repo: repo, cache: cache, metrics: metrics, logger: logger}
}

// Summary reports unread counts and lists per tracked origin type. Comment
// notifications are reported but never added to Total.
func (a *Aggregator) Summary(ctx context.Context) (*models.UnreadSummary, error) {
	var version int64
	if a.cache != nil {
		v, err := a.cache.Version(ctx)
		if err != nil {
			a.logger.Warn("Unread cache unavailable", zap.Error(err))
		} else {
			version = v
			if cached, ok := a.cache.Get(ctx, v); ok {
				recordAsync(a.metrics, a.logger, awspkg.MetricUnreadCacheHits, nil)
				return cached, nil
			}
			recordAsync(a.metrics, a.logger, awspkg.MetricUnreadCacheMisses, nil)
		}
	}

	summary, err := a.compute(ctx)
	if err != nil {
		a.logger.Error("Failed to build unread summary", zap.Error(err))
		return nil, apperrors.Storage("failed to load unread notifications", err)
	}

	// Stored under the version read before computing; a mutation in between
	// has already moved readers to a newer key.
	if version > 0 {
		a.cache.Set(ctx, version, summary)
	}
	return summary, nil
}

type originTally struct {
	count int64
	list  []models.Notification
}

func (a *Aggregator) compute(ctx context.Context) (*models.UnreadSummary, error) {
	tallies := make([]originTally, len(models.TrackedOriginTypes))

	g, gctx := errgroup.WithContext(ctx)
	for i, originType := range models.TrackedOriginTypes {
		i, originType := i, originType
		// Count and list are separate reads, so a concurrent write can make
		// count differ from len(list) in one summary.
		g.Go(func() error {
			count, err := a.repo.CountUnread(gctx, originType)
			if err != nil {
				return fmt.Errorf("count unread %s: %w", originType, err)
			}
			list, err := a.repo.FindUnread(gctx, originType)
			if err != nil {
				return fmt.Errorf("list unread %s: %w", originType, err)
			}
			if list == nil {
				list = []models.Notification{}
			}
			tallies[i] = originTally{count: count, list: list}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &models.UnreadSummary{
		SupportNoti: []models.Notification{},
		RefundNoti:  []models.Notification{},
		CommentNoti: []models.Notification{},
	}
	for i, originType := range models.TrackedOriginTypes {
		t := tallies[i]
		switch originType {
		case models.OriginSupport:
			summary.Support, summary.SupportNoti = t.count, t.list
		case models.OriginRefund:
			summary.Refund, summary.RefundNoti = t.count, t.list
		case models.OriginComment:
			summary.Comment, summary.CommentNoti = t.count, t.list
		}
		if originType.CountsTowardTotal() {
			summary.Total += t.count
		}
	}
	return summary, nil
}
