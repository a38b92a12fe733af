package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Cache         CacheConfig
	Notifications NotificationsConfig
	Billing       BillingConfig
	Media         MediaConfig
	Reports       ReportsConfig
	Security      SecurityConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig tunes Redis-backed read caching.
type CacheConfig struct {
	Enabled         bool
	AvailabilityTTL time.Duration
	DelinquencyTTL  time.Duration
}

// NotificationsConfig wires the delivery channels and the scheduler queue.
type NotificationsConfig struct {
	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPassword      string
	SMTPFrom          string
	PushEnabled       bool
	SMSEnabled        bool
	SchedulerWorkers  int
	SchedulerRetries  int
	SchedulerInterval time.Duration
}

// BillingConfig governs fee generation and late-interest accrual.
type BillingConfig struct {
	LateInterestMonthlyRate float64
	DueDay                  int
	Currency                string
}

// MediaConfig controls where uploaded receipts and photos are stored.
type MediaConfig struct {
	StorageDir string
}

// ReportsConfig configures delinquency report export and signed downloads.
type ReportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
}

// SecurityConfig tunes the recognition and anomaly-detection seams.
type SecurityConfig struct {
	FaceMatchThreshold     float64
	AnomalySensitivity     float64
	AutoIncidentThreshold  float64
	CancellationBufferMins int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Enabled:         v.GetBool("ENABLE_CACHE"),
		AvailabilityTTL: parseDuration(v.GetString("AVAILABILITY_CACHE_TTL"), 5*time.Minute),
		DelinquencyTTL:  parseDuration(v.GetString("DELINQUENCY_CACHE_TTL"), 15*time.Minute),
	}

	cfg.Notifications = NotificationsConfig{
		SMTPHost:          v.GetString("SMTP_HOST"),
		SMTPPort:          v.GetInt("SMTP_PORT"),
		SMTPUser:          v.GetString("SMTP_USER"),
		SMTPPassword:      v.GetString("SMTP_PASSWORD"),
		SMTPFrom:          v.GetString("SMTP_FROM"),
		PushEnabled:       v.GetBool("PUSH_ENABLED"),
		SMSEnabled:        v.GetBool("SMS_ENABLED"),
		SchedulerWorkers:  v.GetInt("NOTIFICATION_SCHEDULER_WORKERS"),
		SchedulerRetries:  v.GetInt("NOTIFICATION_SCHEDULER_RETRIES"),
		SchedulerInterval: parseDuration(v.GetString("NOTIFICATION_SCHEDULER_INTERVAL"), time.Minute),
	}

	cfg.Billing = BillingConfig{
		LateInterestMonthlyRate: v.GetFloat64("LATE_INTEREST_MONTHLY_RATE"),
		DueDay:                  v.GetInt("BILLING_DUE_DAY"),
		Currency:                v.GetString("BILLING_CURRENCY"),
	}

	cfg.Media = MediaConfig{
		StorageDir: v.GetString("MEDIA_STORAGE_DIR"),
	}

	cfg.Reports = ReportsConfig{
		StorageDir:      v.GetString("REPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval: parseDuration(v.GetString("REPORTS_CLEANUP_INTERVAL"), time.Hour),
	}

	cfg.Security = SecurityConfig{
		FaceMatchThreshold:     v.GetFloat64("FACE_MATCH_THRESHOLD"),
		AnomalySensitivity:     v.GetFloat64("ANOMALY_SENSITIVITY"),
		AutoIncidentThreshold:  v.GetFloat64("ANOMALY_AUTO_INCIDENT_THRESHOLD"),
		CancellationBufferMins: v.GetInt("RESERVATION_CANCELLATION_BUFFER_MINUTES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "smart_condominium")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("AVAILABILITY_CACHE_TTL", "5m")
	v.SetDefault("DELINQUENCY_CACHE_TTL", "15m")

	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 465)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "no-reply@smart-condominium.local")
	v.SetDefault("PUSH_ENABLED", true)
	v.SetDefault("SMS_ENABLED", false)
	v.SetDefault("NOTIFICATION_SCHEDULER_WORKERS", 1)
	v.SetDefault("NOTIFICATION_SCHEDULER_RETRIES", 3)
	v.SetDefault("NOTIFICATION_SCHEDULER_INTERVAL", "1m")

	v.SetDefault("LATE_INTEREST_MONTHLY_RATE", 0.02)
	v.SetDefault("BILLING_DUE_DAY", 10)
	v.SetDefault("BILLING_CURRENCY", "BOB")

	v.SetDefault("MEDIA_STORAGE_DIR", "./media")

	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", "dev_reports_secret")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("REPORTS_CLEANUP_INTERVAL", "1h")

	v.SetDefault("FACE_MATCH_THRESHOLD", 75)
	v.SetDefault("ANOMALY_SENSITIVITY", 0.8)
	v.SetDefault("ANOMALY_AUTO_INCIDENT_THRESHOLD", 85)
	v.SetDefault("RESERVATION_CANCELLATION_BUFFER_MINUTES", 120)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
