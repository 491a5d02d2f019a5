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

	// Google Fit OAuth
	GoogleClientID           string
	GoogleClientSecret       string
	GoogleRedirectURL        string
	GoogleMobileClientID     string
	GoogleMobileClientSecret string

	// Spotify OAuth
	SpotifyClientID           string
	SpotifyClientSecret       string
	SpotifyRedirectURL        string
	SpotifyMobileClientID     string
	SpotifyMobileClientSecret string

	// MobileRedirectURL はモバイルコールバックで使うカスタムスキームURL。
	// プロバイダーによらず同じアプリに戻すため共通。
	MobileRedirectURL string

	// OAuth state
	StateTTL time.Duration

	// Provider fetch
	ProviderTimeout   time.Duration
	FetchWindowDays   int
	RecentTracksLimit int

	// Rate Limit（req/min/user）
	RateLimitGeneral int
	RateLimitSync    int

	// Worker
	SweepInterval time.Duration

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// モバイル用のクライアントID/シークレットが未設定の場合はWeb用の値を流用する。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	if cfg.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}

	cfg.SpotifyClientID = os.Getenv("SPOTIFY_CLIENT_ID")
	if cfg.SpotifyClientID == "" {
		missing = append(missing, "SPOTIFY_CLIENT_ID")
	}

	cfg.SpotifyClientSecret = os.Getenv("SPOTIFY_CLIENT_SECRET")
	if cfg.SpotifyClientSecret == "" {
		missing = append(missing, "SPOTIFY_CLIENT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.GoogleRedirectURL = getEnvString("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/callback")
	cfg.GoogleMobileClientID = getEnvString("GOOGLE_MOBILE_CLIENT_ID", cfg.GoogleClientID)
	cfg.GoogleMobileClientSecret = getEnvString("GOOGLE_MOBILE_CLIENT_SECRET", cfg.GoogleClientSecret)

	cfg.SpotifyRedirectURL = getEnvString("SPOTIFY_REDIRECT_URL", "http://localhost:8080/auth/callback")
	cfg.SpotifyMobileClientID = getEnvString("SPOTIFY_MOBILE_CLIENT_ID", cfg.SpotifyClientID)
	cfg.SpotifyMobileClientSecret = getEnvString("SPOTIFY_MOBILE_CLIENT_SECRET", cfg.SpotifyClientSecret)

	cfg.MobileRedirectURL = getEnvString("MOBILE_REDIRECT_URL", "wellbeat://auth-success")

	cfg.StateTTL = getEnvDuration("OAUTH_STATE_TTL", 5*time.Minute)
	cfg.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second)
	cfg.FetchWindowDays = getEnvInt("FETCH_WINDOW_DAYS", 7)
	cfg.RecentTracksLimit = getEnvInt("RECENT_TRACKS_LIMIT", 5)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSync = getEnvInt("RATE_LIMIT_SYNC", 10)
	cfg.SweepInterval = getEnvDuration("SWEEP_INTERVAL", 1*time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
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
