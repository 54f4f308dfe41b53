// Package cache реализует хранение отчетов об аномалиях в Redis
// с резервным in-memory LRU, когда Redis недоступен
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"perfdash-service/internal/models"
)

const (
	// ReportKeyPrefix префикс ключей отчетов
	ReportKeyPrefix = "report:"
	// LatestReportsKey список идентификаторов последних отчетов
	LatestReportsKey = "reports:latest"
	// LatestReportsLimit сколько идентификаторов хранится в списке
	LatestReportsLimit = 100
	// DefaultTTL время жизни отчета по умолчанию
	DefaultTTL = time.Hour

	// Счетчики сервиса
	CounterReports   = "stats:reports"
	CounterAnomalies = "stats:anomalies"
)

// ErrNotFound отчет отсутствует или истек
var ErrNotFound = errors.New("report not found")

// ReportStore хранилище отчетов
type ReportStore interface {
	SaveReport(ctx context.Context, report *models.Report) error
	GetReport(ctx context.Context, id string) (*models.Report, error)
	LatestReportIDs(ctx context.Context, count int64) ([]string, error)
	IncrementCounter(ctx context.Context, key string, by int64) (int64, error)
	GetCounter(ctx context.Context, key string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// RedisCache реализует хранение отчетов в Redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache создает новое подключение к Redis
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     100,
		MinIdleConns: 10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheWithClient(client, ttl), nil
}

// NewRedisCacheWithClient оборачивает готовый клиент
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// SaveReport сохраняет отчет и добавляет его идентификатор в список последних
func (r *RedisCache) SaveReport(ctx context.Context, report *models.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, ReportKeyPrefix+report.ID, data, r.ttl)
	pipe.LPush(ctx, LatestReportsKey, report.ID)
	pipe.LTrim(ctx, LatestReportsKey, 0, LatestReportsLimit-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache report: %w", err)
	}
	return nil
}

// GetReport возвращает отчет по идентификатору
func (r *RedisCache) GetReport(ctx context.Context, id string) (*models.Report, error) {
	data, err := r.client.Get(ctx, ReportKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report models.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

// LatestReportIDs возвращает идентификаторы последних N отчетов, новые первыми
func (r *RedisCache) LatestReportIDs(ctx context.Context, count int64) ([]string, error) {
	ids, err := r.client.LRange(ctx, LatestReportsKey, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reports: %w", err)
	}
	return ids, nil
}

// IncrementCounter увеличивает счетчик
func (r *RedisCache) IncrementCounter(ctx context.Context, key string, by int64) (int64, error) {
	return r.client.IncrBy(ctx, key, by).Result()
}

// GetCounter возвращает значение счетчика
func (r *RedisCache) GetCounter(ctx context.Context, key string) (int64, error) {
	val, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

// Ping проверяет соединение с Redis
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединение
func (r *RedisCache) Close() error {
	return r.client.Close()
}
