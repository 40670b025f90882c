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

	// Media host
	CloudName      string
	CloudAPIKey    string
	CloudAPISecret string
	MediaEndpoint  string // アップロードAPIのプレフィックス。空の場合はSDKの既定値
	MediaMaxBytes  int64

	// Token
	SecretKey         string
	Algorithm         string
	AccessTokenExpire time.Duration

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitUpload  int

	// Relay
	RelaySendTimeout time.Duration

	// Worker
	StatusSweepInterval       time.Duration
	NotificationRetentionDays int

	// Logging
	LogLevel string

	// Server
	Port string

	// CORS
	CORSAllowedOrigin string // カンマ区切りで複数指定可。"*"で全オリジンを許可
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は、未設定の変数をまとめてエラーとして返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string
	required := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg.DatabaseURL = required("DATABASE_URL")
	cfg.CloudName = required("CLOUD_NAME")
	cfg.CloudAPIKey = required("CLOUD_API_KEY")
	cfg.CloudAPISecret = required("CLOUD_API_SECRET")
	cfg.SecretKey = required("SECRET_KEY")

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.Algorithm = getEnvString("ALGORITHM", "HS256")
	cfg.AccessTokenExpire = time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute
	cfg.Port = getEnvString("PORT", "8080")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitUpload = getEnvInt("RATE_LIMIT_UPLOAD", 10)
	cfg.RelaySendTimeout = getEnvDuration("RELAY_SEND_TIMEOUT", 5*time.Second)
	cfg.StatusSweepInterval = getEnvDuration("STATUS_SWEEP_INTERVAL", 5*time.Minute)
	cfg.NotificationRetentionDays = getEnvInt("NOTIFICATION_RETENTION_DAYS", 30)
	cfg.MediaMaxBytes = getEnvInt64("MEDIA_UPLOAD_MAX_BYTES", 10<<20)
	cfg.MediaEndpoint = getEnvString("MEDIA_ENDPOINT", "")

	if cfg.AccessTokenExpire <= 0 {
		return nil, fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}

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
