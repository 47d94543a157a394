package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all runtime configuration values for the storefront.
// Each field is read from an environment variable (see Load).
type Config struct {
	Env     string
	Port    string
	BaseURL string

	// --- Database ---
	DBDSN         string
	DBDSNReadOnly string

	// --- Sessions ---
	JWTSecret    string
	SessionTTL   time.Duration
	CookieSecure bool
	BcryptCost   int
	CORSOrigin   string

	// --- Checkout ---
	ShippingFee           decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	UnpaidOrderTTL        time.Duration
	SweepInterval         time.Duration

	// --- Uploads ---
	UploadDir string

	// --- Messaging / Mail ---
	RabbitMQURL string
	SMTP        SMTPConfig

	// --- AI Assistant ---
	GeminiAPIKey string
	GeminiModel  string

	// --- Redis-backed middleware ---
	Redis     RedisConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
}

// SMTPConfig is empty (Host == "") when outgoing mail should only be logged.
type SMTPConfig struct {
	Host     string
	Port     string
	From     string
	Username string
	Password string
}

// Load reads configuration from the environment. Callers are expected to
// have loaded any .env file beforehand.
func Load() (Config, error) {
	cfg := Config{
		Env:     envStr("APP_ENV", "dev"),
		Port:    envStr("APP_PORT", "8080"),
		BaseURL: envStr("BASE_URL", "http://localhost:8080"),

		DBDSN:         envStr("DB_DSN", "root:root@tcp(127.0.0.1:3306)/jeweluxe?parseTime=true&charset=utf8mb4&loc=UTC"),
		DBDSNReadOnly: os.Getenv("DB_DSN_READONLY"),

		JWTSecret:    os.Getenv("JWT_SECRET"),
		SessionTTL:   envDur("SESSION_TTL", 72*time.Hour),
		CookieSecure: envBool("COOKIE_SECURE", false),
		BcryptCost:   envInt("BCRYPT_COST", 10),
		CORSOrigin:   envStr("CORS_ORIGIN", "http://localhost:5173"),

		ShippingFee:           envDecimal("SHIPPING_FEE", decimal.NewFromInt(150)),
		FreeShippingThreshold: envDecimal("FREE_SHIPPING_THRESHOLD", decimal.NewFromInt(5000)),
		UnpaidOrderTTL:        envDur("UNPAID_ORDER_TTL", 24*time.Hour),
		SweepInterval:         envDur("SWEEP_INTERVAL", time.Hour),

		UploadDir: envStr("UPLOAD_DIR", "./uploads"),

		RabbitMQURL: os.Getenv("RABBITMQ_URL"),
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     envStr("SMTP_PORT", "25"),
			From:     envStr("SMTP_FROM", "Jeweluxe <no-reply@jeweluxe.local>"),
			Username: os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
		},

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  envStr("GEMINI_MODEL", "gemini-1.5-flash"),

		Redis:     LoadRedisConfig(),
		Cache:     LoadCacheConfig(),
		RateLimit: LoadRateLimitConfig(),
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return Config{}, errors.New("JWT_SECRET must be set in production")
		}
		cfg.JWTSecret = "jeweluxe-dev-secret-change-me"
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		cfg.BcryptCost = 10
	}
	return cfg, nil
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}

func envDecimal(k string, d decimal.Decimal) decimal.Decimal {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := decimal.NewFromString(v); err == nil {
		return n
	}
	return d
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
