package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Remote API
	APIBaseURL string
	Paths      Paths

	// Server
	ServerPort string

	// Relay
	RelayPrefix    string
	RelaySSRFGuard bool
	RelayTimeout   time.Duration
	RelayCSRF      bool

	// Rate Limit (req/min/client)
	RateLimitRelay int

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string

	// Metrics
	// MetricsTextfile が空でなければ、クライアントコマンド終了時にメトリクスをこのファイルへ書き出す
	MetricsTextfile string
}

// Paths はリモートAPIのエンドポイントパス。
type Paths struct {
	Register   string
	Login      string
	Profile    string
	Todos      string
	Todo       string
	TodoDelete string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.APIBaseURL = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if cfg.APIBaseURL == "" {
		missing = append(missing, "API_BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if u, err := url.Parse(cfg.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("API_BASE_URL is not an absolute URL: %q", cfg.APIBaseURL)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.RelayPrefix = "/" + strings.Trim(getEnvString("RELAY_PREFIX", "/api/proxy"), "/")
	cfg.RelaySSRFGuard = getEnvBool("RELAY_SSRF_GUARD", true)
	cfg.RelayTimeout = getEnvDuration("RELAY_TIMEOUT", 30*time.Second)
	cfg.RelayCSRF = getEnvBool("RELAY_CSRF", false)
	cfg.RateLimitRelay = getEnvInt("RATE_LIMIT_RELAY", 120)
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", strings.HasPrefix(cfg.APIBaseURL, "https://"))
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))
	cfg.MetricsTextfile = getEnvString("METRICS_TEXTFILE", "")

	cfg.Paths = Paths{
		Register:   getEnvString("API_REGISTER_PATH", "/rcms-api/1/member/register"),
		Login:      getEnvString("API_LOGIN_PATH", "/rcms-api/1/login"),
		Profile:    getEnvString("API_PROFILE_PATH", "/rcms-api/1/profile"),
		Todos:      getEnvString("API_TODOS_PATH", "/rcms-api/3/todos"),
		Todo:       getEnvString("API_TODO_PATH", "/rcms-api/3/todo"),
		TodoDelete: getEnvString("API_TODO_DELETE_PATH", "/rcms-api/3/todo/delete"),
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
