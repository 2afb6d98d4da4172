package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	Port           string
	LogLevel       string
	AllowedOrigins []string
	FrontendURL    string

	DBHost string
	DBUser string
	DBPass string
	DBName string
	DBPort string

	RedisURL string

	JWTSecret string
	JWTTTL    time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	StorageDriver          string
	CloudinaryUploadFolder string
	MinioEndpoint          string
	MinioAccessKey         string
	MinioSecretKey         string
	MinioBucket            string
	MinioUseSSL            bool
	MinioPublicURL         string

	MeiliSearchHost string
	MeiliMasterKey  string

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	RazorpayBaseURL       string
	GatewayTimeout        time.Duration

	EmailDriver       string
	EmailJSBaseURL    string
	EmailJSServiceID  string
	EmailJSTemplateID string
	EmailJSPublicKey  string
	EmailJSPrivateKey string
	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPass          string
	SMTPFrom          string
	BookingTemplateID string

	QRPollInterval time.Duration
	QRPollTimeout  time.Duration

	RateLimitGlobal    time.Duration
	RateLimitPost      time.Duration
	RateLimitComment   time.Duration
	ProxyRatePerMinute int

	LeaderboardDebounce       time.Duration
	StatsLegacyStatusFallback bool

	NotificationRetention time.Duration
	CronLeaderboard       string
	CronNotificationPrune string

	AdminDisplayName string
	AdminPhone       string
	AdminPassword    string
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		FrontendURL:    getEnv("FRONTEND_URL", "http://localhost:3000"),

		DBHost: getEnv("DB_HOST", "localhost"),
		DBUser: getEnv("DB_USER", "postgres"),
		DBPass: os.Getenv("DB_PASS"),
		DBName: getEnv("DB_NAME", "runclub"),
		DBPort: getEnv("DB_PORT", "5432"),

		RedisURL: os.Getenv("REDIS_URL"),

		JWTSecret: getEnv("JWT_SECRET", "change-me"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),

		StorageDriver:          getEnv("STORAGE_DRIVER", "cloudinary"),
		CloudinaryUploadFolder: getEnv("CLOUDINARY_UPLOAD_FOLDER", "runclub"),
		MinioEndpoint:          getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:         os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:         os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:            getEnv("MINIO_BUCKET", "runclub"),
		MinioPublicURL:         os.Getenv("MINIO_PUBLIC_URL"),

		MeiliSearchHost: os.Getenv("MEILISEARCH_HOST"),
		MeiliMasterKey:  os.Getenv("MEILI_MASTER_KEY"),

		RazorpayKeyID:         os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		RazorpayBaseURL:       getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com/v1"),

		EmailDriver:       getEnv("EMAIL_DRIVER", "emailjs"),
		EmailJSBaseURL:    getEnv("EMAILJS_BASE_URL", "https://api.emailjs.com/api/v1.0"),
		EmailJSServiceID:  os.Getenv("EMAILJS_SERVICE_ID"),
		EmailJSTemplateID: os.Getenv("EMAILJS_TEMPLATE_ID"),
		EmailJSPublicKey:  os.Getenv("EMAILJS_PUBLIC_KEY"),
		EmailJSPrivateKey: os.Getenv("EMAILJS_PRIVATE_KEY"),
		SMTPHost:          getEnv("SMTP_HOST", "localhost"),
		SMTPUser:          os.Getenv("SMTP_USER"),
		SMTPPass:          os.Getenv("SMTP_PASS"),
		SMTPFrom:          getEnv("SMTP_FROM", "no-reply@runclub.local"),
		BookingTemplateID: getEnv("BOOKING_TEMPLATE_ID", "booking_confirmation"),

		CronLeaderboard:       getEnv("CRON_LEADERBOARD", "@every 15m"),
		CronNotificationPrune: getEnv("CRON_NOTIFICATION_PRUNE", "@daily"),

		AdminDisplayName: getEnv("ADMIN_DISPLAY_NAME", "admin"),
		AdminPhone:       os.Getenv("ADMIN_PHONE"),
		AdminPassword:    os.Getenv("ADMIN_PASSWORD"),
	}

	var err error
	durations := []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"JWT_TTL", "24h", &cfg.JWTTTL},
		{"GATEWAY_TIMEOUT", "15s", &cfg.GatewayTimeout},
		{"QR_POLL_INTERVAL", "5s", &cfg.QRPollInterval},
		{"QR_POLL_TIMEOUT", "5m", &cfg.QRPollTimeout},
		{"RATE_LIMIT_GLOBAL", "5s", &cfg.RateLimitGlobal},
		{"RATE_LIMIT_POST", "30s", &cfg.RateLimitPost},
		{"RATE_LIMIT_COMMENT", "5s", &cfg.RateLimitComment},
		{"LEADERBOARD_DEBOUNCE", "500ms", &cfg.LeaderboardDebounce},
		{"NOTIFICATION_RETENTION", "720h", &cfg.NotificationRetention},
	}
	for _, d := range durations {
		*d.dst, err = parseDuration(getEnv(d.key, d.fallback))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
	}

	if cfg.SMTPPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587")); err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	if cfg.ProxyRatePerMinute, err = strconv.Atoi(getEnv("PROXY_RATE_PER_MINUTE", "60")); err != nil {
		return nil, fmt.Errorf("invalid PROXY_RATE_PER_MINUTE: %w", err)
	}
	if cfg.MinioUseSSL, err = strconv.ParseBool(getEnv("MINIO_USE_SSL", "false")); err != nil {
		return nil, fmt.Errorf("invalid MINIO_USE_SSL: %w", err)
	}
	if cfg.StatsLegacyStatusFallback, err = strconv.ParseBool(getEnv("STATS_LEGACY_STATUS_FALLBACK", "false")); err != nil {
		return nil, fmt.Errorf("invalid STATS_LEGACY_STATUS_FALLBACK: %w", err)
	}

	if cfg.QRPollInterval <= 0 || cfg.QRPollTimeout < cfg.QRPollInterval {
		return nil, fmt.Errorf("QR_POLL_TIMEOUT must be >= QR_POLL_INTERVAL > 0")
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPass, c.DBName, c.DBPort,
	)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
