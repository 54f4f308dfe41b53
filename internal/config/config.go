// Package config загружает конфигурацию сервиса из YAML с переопределением
// через переменные окружения
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"perfdash-service/internal/analytics"
)

// ServerConfig параметры HTTP сервера
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	// RateLimit запросов в секунду с одного адреса, 0 отключает ограничение
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
	// RateClients сколько адресов помнит ограничитель, старые вытесняются
	RateClients int `yaml:"rate_clients"`
}

// RedisConfig параметры подключения к Redis
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	ReportTTL time.Duration `yaml:"report_ttl"`
	Retries   int           `yaml:"retries"`
}

// WorkerConfig параметры пула асинхронной сборки отчетов
type WorkerConfig struct {
	Count      int `yaml:"count"`
	BufferSize int `yaml:"buffer_size"`
	// MemoryCacheSize размер LRU, используемого без Redis
	MemoryCacheSize int `yaml:"memory_cache_size"`
}

// Config содержит конфигурацию сервиса
type Config struct {
	LogLevel   string                   `yaml:"log_level"`
	Server     ServerConfig             `yaml:"server"`
	Redis      RedisConfig              `yaml:"redis"`
	Workers    WorkerConfig             `yaml:"workers"`
	Detection  analytics.Settings       `yaml:"detection"`
	Thresholds analytics.ThresholdTable `yaml:"thresholds"`
	Weights    analytics.WeightTable    `yaml:"weights"`
	Palette    analytics.Palette        `yaml:"palette"`
}

// Default возвращает конфигурацию по умолчанию
func Default() Config {
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
			RateLimit:    50,
			RateBurst:    100,
			RateClients:  10000,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			ReportTTL: time.Hour,
			Retries:   5,
		},
		Workers: WorkerConfig{
			Count:           runtime.NumCPU(),
			BufferSize:      1000,
			MemoryCacheSize: 256,
		},
		Detection:  analytics.DefaultSettings(),
		Thresholds: analytics.DefaultThresholds(),
		Weights:    analytics.DefaultWeights(),
		Palette:    analytics.DefaultPalette(),
	}
}

// Load читает YAML поверх значений по умолчанию и применяет переменные окружения.
// Пустой путь или отсутствующий файл - только значения по умолчанию и окружение.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate проверяет настройки детекторов, пороги, веса и параметры пула
func (c Config) Validate() error {
	var errs []error
	if err := c.Detection.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Thresholds.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Weights.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Server.RateLimit < 0 || c.Server.RateClients < 0 {
		errs = append(errs, fmt.Errorf("rate_limit and rate_clients must not be negative, got %v/%d",
			c.Server.RateLimit, c.Server.RateClients))
	}
	if c.Workers.Count <= 0 || c.Workers.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("workers need count > 0 and buffer_size > 0, got %d/%d",
			c.Workers.Count, c.Workers.BufferSize))
	}
	return errors.Join(errs...)
}

// NewDetector создает детектор с настройками из конфигурации
func (c Config) NewDetector(logger zerolog.Logger) *analytics.Detector {
	return analytics.NewDetector(
		analytics.WithSettings(c.Detection),
		analytics.WithThresholds(c.Thresholds),
		analytics.WithWeights(c.Weights),
		analytics.WithPalette(c.Palette),
		analytics.WithLogger(logger),
	)
}

// Level возвращает уровень логирования, info для нераспознанного значения
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return level
}

// applyEnvOverrides применяет переменные окружения
func applyEnvOverrides(c *Config) {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Server.Addr = getEnv("SERVER_ADDR", c.Server.Addr)
	c.Server.RateLimit = getEnvFloat("RATE_LIMIT", c.Server.RateLimit)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)
	c.Redis.ReportTTL = getEnvDuration("REPORT_TTL", c.Redis.ReportTTL)
	c.Workers.Count = getEnvInt("WORKER_COUNT", c.Workers.Count)
	c.Workers.BufferSize = getEnvInt("BUFFER_SIZE", c.Workers.BufferSize)
}

// getEnv получает переменную окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленную переменную окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvDuration получает длительность вида 30m
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvFloat получает дробную переменную окружения
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
