package config

import (
	"errors"
	"os"
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
	AppURL    string

	Database  DatabaseConfig
	Directory DirectoryConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Paystack  PaystackConfig
	Fees      FeeConfig
	Webhooks  WebhookConfig
	Events    EventsConfig
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

	ApplicationName string
	ReadOnly        bool
}

// DirectoryConfig points at the read-only student records database.
type DirectoryConfig struct {
	Database DatabaseConfig
	View     string
	CacheTTL time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PaystackConfig configures the payment gateway client.
type PaystackConfig struct {
	SecretKey   string
	BaseURL     string
	CallbackURL string
	Timeout     time.Duration
}

// FeeConfig is the transcript fee schedule, expressed in whole naira per scope.
type FeeConfig struct {
	WithinNigeriaNGN  int64
	OutsideNigeriaNGN int64
	Currency          string
}

// WebhookConfig tunes the background reconciliation workers fed by gateway webhooks.
type WebhookConfig struct {
	Async      bool
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// EventsConfig configures lifecycle event publishing.
type EventsConfig struct {
	Brokers []string
	Topic   string
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.AppURL = strings.TrimRight(v.GetString("APP_URL"), "/")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),

		ApplicationName: "transcript-api",
	}

	cfg.Directory = DirectoryConfig{
		Database: DatabaseConfig{
			Host:         v.GetString("DIRECTORY_DB_HOST"),
			Port:         v.GetInt("DIRECTORY_DB_PORT"),
			User:         v.GetString("DIRECTORY_DB_USER"),
			Password:     v.GetString("DIRECTORY_DB_PASSWORD"),
			Name:         v.GetString("DIRECTORY_DB_NAME"),
			SSLMode:      v.GetString("DIRECTORY_DB_SSL_MODE"),
			MaxOpenConns: v.GetInt("DIRECTORY_DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DIRECTORY_DB_MAX_IDLE_CONNS"),

			ApplicationName: "transcript-api-directory",
			ReadOnly:        true,
		},
		View:     v.GetString("DIRECTORY_VIEW"),
		CacheTTL: parseDuration(v.GetString("DIRECTORY_CACHE_TTL"), 15*time.Minute),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Paystack = PaystackConfig{
		SecretKey:   v.GetString("PAYSTACK_SECRET_KEY"),
		BaseURL:     strings.TrimRight(v.GetString("PAYSTACK_BASE_URL"), "/"),
		CallbackURL: v.GetString("PAYSTACK_CALLBACK_URL"),
		Timeout:     parseDuration(v.GetString("PAYSTACK_TIMEOUT"), 15*time.Second),
	}
	if cfg.Paystack.CallbackURL == "" && cfg.AppURL != "" {
		cfg.Paystack.CallbackURL = cfg.AppURL + "/payments/callback"
	}

	cfg.Fees = FeeConfig{
		WithinNigeriaNGN:  v.GetInt64("FEE_WITHIN_NG_NGN"),
		OutsideNigeriaNGN: v.GetInt64("FEE_OUTSIDE_NG_NGN"),
		Currency:          strings.ToUpper(v.GetString("FEE_CURRENCY")),
	}

	cfg.Webhooks = WebhookConfig{
		Async:      v.GetBool("WEBHOOK_ASYNC"),
		Workers:    v.GetInt("WEBHOOK_WORKERS"),
		BufferSize: v.GetInt("WEBHOOK_BUFFER_SIZE"),
		MaxRetries: v.GetInt("WEBHOOK_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("WEBHOOK_RETRY_DELAY"), 2*time.Second),
	}

	cfg.Events = EventsConfig{
		Brokers: splitAndTrim(v.GetString("KAFKA_BROKERS")),
		Topic:   v.GetString("KAFKA_STATUS_TOPIC"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("APP_URL", "http://localhost:3000")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "transcripts")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("DIRECTORY_DB_HOST", "localhost")
	v.SetDefault("DIRECTORY_DB_PORT", 5432)
	v.SetDefault("DIRECTORY_DB_USER", "postgres")
	v.SetDefault("DIRECTORY_DB_PASSWORD", "postgres")
	v.SetDefault("DIRECTORY_DB_NAME", "eportal")
	v.SetDefault("DIRECTORY_DB_SSL_MODE", "disable")
	v.SetDefault("DIRECTORY_DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DIRECTORY_DB_MAX_IDLE_CONNS", 2)
	v.SetDefault("DIRECTORY_VIEW", "std_data_view")
	v.SetDefault("DIRECTORY_CACHE_TTL", "15m")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "transcript-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PAYSTACK_SECRET_KEY", "")
	v.SetDefault("PAYSTACK_BASE_URL", "https://api.paystack.co")
	v.SetDefault("PAYSTACK_CALLBACK_URL", "")
	v.SetDefault("PAYSTACK_TIMEOUT", "15s")

	v.SetDefault("FEE_WITHIN_NG_NGN", 5000)
	v.SetDefault("FEE_OUTSIDE_NG_NGN", 20000)
	v.SetDefault("FEE_CURRENCY", "NGN")

	v.SetDefault("WEBHOOK_ASYNC", true)
	v.SetDefault("WEBHOOK_WORKERS", 2)
	v.SetDefault("WEBHOOK_BUFFER_SIZE", 64)
	v.SetDefault("WEBHOOK_MAX_RETRIES", 3)
	v.SetDefault("WEBHOOK_RETRY_DELAY", "2s")

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_STATUS_TOPIC", "transcript.status")
}

func isMissingFile(err error) bool {
	return errors.Is(err, os.ErrNotExist) || strings.Contains(err.Error(), "no such file or directory")
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
