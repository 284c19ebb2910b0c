package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionSecret string
	SessionMaxAge int

	// Device store（匿名ユーザーの選択リスト）
	// RedisURLが空の場合はプロセス内メモリを使う。
	RedisURL       string
	DeviceStoreTTL time.Duration
	DeviceMaxAge   int

	// Profile cache
	ProfileCacheTTL time.Duration

	// Recommendation
	RecommendSize  int
	RecommendFloor float64

	// Ingest
	IngestTimeout       time.Duration
	IngestMaxSize       int64
	IngestMaxConcurrent int
	IngestInterval      time.Duration
	IngestSourceRefresh time.Duration

	// Cleanup
	ScholarshipRetentionDays int

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitToggle  int

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string
	// MetricsPort はワーカーが/metricsを公開するポート。空なら公開しない。
	MetricsPort string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は未設定の変数名をまとめてエラーで返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string
	required := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg.DatabaseURL = required("DATABASE_URL")
	cfg.GoogleClientID = required("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = required("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURL = required("GOOGLE_REDIRECT_URL")
	cfg.SessionSecret = required("SESSION_SECRET")
	cfg.BaseURL = required("BASE_URL")

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.DeviceStoreTTL = getEnvDuration("DEVICE_STORE_TTL", 90*24*time.Hour)
	cfg.DeviceMaxAge = getEnvInt("DEVICE_MAX_AGE", 90*86400)
	cfg.ProfileCacheTTL = getEnvDuration("PROFILE_CACHE_TTL", 5*time.Minute)
	cfg.RecommendSize = getEnvInt("RECOMMEND_SIZE", 9)
	cfg.RecommendFloor = getEnvFloat("RECOMMEND_FLOOR", 10)
	cfg.IngestTimeout = getEnvDuration("INGEST_TIMEOUT", 10*time.Second)
	cfg.IngestMaxSize = getEnvInt64("INGEST_MAX_SIZE", 5242880)
	cfg.IngestMaxConcurrent = getEnvInt("INGEST_MAX_CONCURRENT", 4)
	cfg.IngestInterval = getEnvDuration("INGEST_INTERVAL", 5*time.Minute)
	cfg.IngestSourceRefresh = getEnvDuration("INGEST_SOURCE_REFRESH", time.Hour)
	cfg.ScholarshipRetentionDays = getEnvInt("SCHOLARSHIP_RETENTION_DAYS", 30)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitToggle = getEnvInt("RATE_LIMIT_TOGGLE", 30)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
