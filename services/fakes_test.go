package services_test

import (
	"context"
	"errors"
	"sync"

	"marketplace-service/models"
	"marketplace-service/repository"
)

type fakeMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{counts: map[string]int{}}
}

func (m *fakeMetrics) RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[metricName]++
	return nil
}

func (m *fakeMetrics) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.RefundEvent
}

func (p *fakePublisher) Publish(ctx context.Context, event models.RefundEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType
	}
	return out
}

// fakeCache mimics the versioned Redis cache.
type fakeCache struct {
	mu            sync.Mutex
	version       int64
	entries       map[int64]models.UnreadSummary
	invalidations int
}

func newFakeCache() *fakeCache {
	return &fakeCache{version: 1, entries: map[int64]models.UnreadSummary{}}
}

func (c *fakeCache) Version(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version, nil
}

func (c *fakeCache) Get(ctx context.Context, version int64) (*models.UnreadSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[version]
	if !ok {
		return nil, false
	}
	return &s, true
}

func (c *fakeCache) Set(ctx context.Context, version int64, summary *models.UnreadSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[version] = *summary
}

func (c *fakeCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	c.invalidations++
	return nil
}

func (c *fakeCache) invalidationCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidations
}

var errStoreDown = errors.New("store unavailable")

// brokenLookupRepo fails correlation lookups but otherwise behaves normally.
type brokenLookupRepo struct {
	*repository.MemoryNotificationRepository
}

func (r brokenLookupRepo) FindMatching(ctx context.Context, originalID string, originType models.OriginType, unreadOnly bool) (*models.Notification, error) {
	return nil, errStoreDown
}

// brokenCountRepo fails unread counts for one origin type.
type brokenCountRepo struct {
	*repository.MemoryNotificationRepository
	failOn models.OriginType
}

func (r brokenCountRepo) CountUnread(ctx context.Context, originType models.OriginType) (int64, error) {
	if originType == r.failOn {
		return 0, errStoreDown
	}
	return r.MemoryNotificationRepository.CountUnread(ctx, originType)
}
