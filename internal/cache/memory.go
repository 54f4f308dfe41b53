package cache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"perfdash-service/internal/models"
)

// MemoryCache хранит последние отчеты в процессе, когда Redis недоступен
type MemoryCache struct {
	reports *lru.Cache[string, *models.Report]

	mu       sync.Mutex
	latest   []string
	counters map[string]int64
}

// NewMemoryCache создает LRU на size отчетов
func NewMemoryCache(size int) (*MemoryCache, error) {
	reports, err := lru.New[string, *models.Report](size)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{
		reports:  reports,
		counters: make(map[string]int64),
	}, nil
}

// SaveReport сохраняет отчет
func (m *MemoryCache) SaveReport(_ context.Context, report *models.Report) error {
	m.reports.Add(report.ID, report)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = append([]string{report.ID}, m.latest...)
	if len(m.latest) > LatestReportsLimit {
		m.latest = m.latest[:LatestReportsLimit]
	}
	return nil
}

// GetReport возвращает отчет по идентификатору
func (m *MemoryCache) GetReport(_ context.Context, id string) (*models.Report, error) {
	report, ok := m.reports.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return report, nil
}

// LatestReportIDs возвращает идентификаторы последних отчетов, новые первыми
func (m *MemoryCache) LatestReportIDs(_ context.Context, count int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if count <= 0 || count > int64(len(m.latest)) {
		count = int64(len(m.latest))
	}
	out := make([]string, count)
	copy(out, m.latest[:count])
	return out, nil
}

// IncrementCounter увеличивает счетчик
func (m *MemoryCache) IncrementCounter(_ context.Context, key string, by int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key] += by
	return m.counters[key], nil
}

// GetCounter возвращает значение счетчика
func (m *MemoryCache) GetCounter(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key], nil
}

// Ping всегда успешен
func (m *MemoryCache) Ping(context.Context) error {
	return nil
}

// Close очищает кэш
func (m *MemoryCache) Close() error {
	m.reports.Purge()
	return nil
}
