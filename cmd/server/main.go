// Package main запускает сервис детекции аномалий в бизнес-показателях
// Сервис реализует:
// - HTTP API для построения отчетов об аномалиях по периодическим рядам
// - IQR и z-score выбросы, isolation forest, разрывы тренда, пороговые алерты
// - Асинхронную сборку отчетов пулом воркеров
// - Кэширование отчетов в Redis с резервным LRU в памяти
// - Экспорт метрик в Prometheus
package main

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"perfdash-service/internal/cache"
	"perfdash-service/internal/config"
	"perfdash-service/internal/handlers"
	"perfdash-service/internal/metrics"
	"perfdash-service/internal/worker"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	zerolog.SetGlobalLevel(cfg.Level())
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "perfdash").Logger()

	logger.Info().
		Str("go_version", runtime.Version()).
		Int("num_cpu", runtime.NumCPU()).
		Msg("Starting perfdash service")

	// Инициализируем пул сборки отчетов
	detector := cfg.NewDetector(logger.With().Str("component", "detector").Logger())
	pool := worker.NewPool(detector, cfg.Workers.BufferSize, logger.With().Str("component", "worker").Logger())
	pool.Start(cfg.Workers.Count)
	logger.Info().Int("workers", cfg.Workers.Count).Msg("Report workers started")

	store := connectStore(cfg, logger)

	// Создаем обработчики
	handler := handlers.NewHandler(pool, store, logger.With().Str("component", "http").Logger())

	// Настраиваем маршруты
	router := mux.NewRouter()
	handler.Register(router)

	// Prometheus метрики
	router.Handle("/prometheus", promhttp.Handler())

	// pprof для профилирования
	router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	// Middleware для логирования и ограничения частоты запросов
	router.Use(loggingMiddleware(logger))
	if cfg.Server.RateLimit > 0 {
		limiter, err := handlers.NewClientLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst, cfg.Server.RateClients)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create rate limiter")
		}
		router.Use(limiter.Middleware())
	}

	// Создаем HTTP сервер с настройками таймаутов
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запускаем горутину для обновления метрик
	go updateMetricsLoop(ctx, pool)

	// Запускаем горутину для сохранения асинхронных отчетов
	resultsDone := make(chan struct{})
	go func() {
		handler.ProcessResults(ctx)
		close(resultsDone)
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Запускаем сервер в горутине
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Ожидаем сигнал завершения
	<-stop
	logger.Info().Msg("Shutting down server...")

	// Контекст с таймаутом для завершения
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Завершаем HTTP сервер, затем пул, чтобы дописать результаты в кэш
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
	}
	pool.Stop()
	<-resultsDone
	cancel()

	if store != nil {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close report store")
		}
	}

	logger.Info().Msg("Server stopped")
}

// connectStore подключается к Redis с повторами, при неудаче использует LRU в памяти
func connectStore(cfg config.Config, logger zerolog.Logger) cache.ReportStore {
	retries := cfg.Redis.Retries
	if retries <= 0 {
		retries = 1
	}

	var lastErr error
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisCache, err := cache.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.ReportTTL)
		cancel()
		if err == nil {
			logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
			return redisCache
		}
		lastErr = err
		logger.Warn().Err(err).Int("attempt", i+1).Msg("Redis connection attempt failed")
		if i < retries-1 {
			time.Sleep(time.Duration(i+1) * time.Second)
		}
	}

	memory, err := cache.NewMemoryCache(cfg.Workers.MemoryCacheSize)
	if err != nil {
		logger.Warn().Err(err).Msg("Running without report cache")
		return nil
	}
	logger.Warn().Err(lastErr).Int("size", cfg.Workers.MemoryCacheSize).Msg("Redis unavailable, using in-memory report cache")
	return memory
}

// loggingMiddleware логирует HTTP запросы
func loggingMiddleware(logger zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// updateMetricsLoop периодически обновляет метрики Prometheus
func updateMetricsLoop(ctx context.Context, pool *worker.Pool) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.QueueDepth.Set(float64(pool.Pending()))
			metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))
		case <-ctx.Done():
			return
		}
	}
}
