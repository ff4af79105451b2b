// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// WordPress
	WPAPIBase string // 例: https://cms.example.com（/wp-json/wp/v2 は付けない）

	// Site
	// SiteOrigin はリンク分類に使うフロントエンドのオリジン。
	// 未設定の場合、分類器側で安全なデフォルトに代替される。
	SiteOrigin string

	// Sync
	SyncInterval time.Duration
	// SyncFullInterval は全件同期の間隔。差分同期ではアップストリーム側の
	// 削除と未変更レコードのsynced_at更新を検出できないため、
	// この間隔で必ず全件を取り直す。
	SyncFullInterval  time.Duration
	SyncTimeout       time.Duration
	SyncMaxSize       int64
	SyncMaxConcurrent int
	SyncPerPage       int
	FeedProbeEnabled  bool

	// Rate Limit
	RateLimitGeneral int // req/min/IP

	// Server
	ServerPort string
	// MetricsPort はワーカープロセスがPrometheusメトリクスを公開するポート。
	// 公開APIとは別リスナーにして、メトリクスが外部に露出しないようにする。
	MetricsPort string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.WPAPIBase = os.Getenv("WP_API_BASE")
	if cfg.WPAPIBase == "" {
		missing = append(missing, "WP_API_BASE")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	// SITE_ORIGIN の欠落はエラーにしない。サニタイズの起動を
	// 設定不備で止めないため、分類器のデフォルトに委ねる。
	cfg.SiteOrigin = getEnvString("SITE_ORIGIN", "")
	cfg.SyncInterval = getEnvDuration("SYNC_INTERVAL", 5*time.Minute)
	cfg.SyncFullInterval = getEnvDuration("SYNC_FULL_INTERVAL", 24*time.Hour)
	cfg.SyncTimeout = getEnvDuration("SYNC_TIMEOUT", 15*time.Second)
	cfg.SyncMaxSize = getEnvInt64("SYNC_MAX_SIZE", 10485760)
	cfg.SyncMaxConcurrent = getEnvInt("SYNC_MAX_CONCURRENT", 4)
	cfg.SyncPerPage = getEnvInt("SYNC_PER_PAGE", 100)
	cfg.FeedProbeEnabled = getEnvBool("FEED_PROBE_ENABLED", true)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9091")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

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

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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
