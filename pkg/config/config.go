package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// minJWTSecretLength is the shortest HS256 secret accepted in production.
const minJWTSecretLength = 32

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
)

// Notification drivers.
const (
	NotifyDriverQueue = "queue"
	NotifyDriverKafka = "kafka"
	NotifyDriverLog   = "log"
)

type Config struct {
	Env         string
	Port        int
	APIPrefix   string
	StoreDriver string
	AutoMigrate bool

	Database     DatabaseConfig
	Mongo        MongoConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Admin        AdminConfig
	CORS         CORSConfig
	Log          LogConfig
	Mail         MailConfig
	Notify       NotifyConfig
	Kafka        KafkaConfig
	Event        EventConfig
	Registration RegistrationConfig
	Stats        StatsConfig
	RateLimit    RateLimitConfig
	Export       ExportConfig
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

// MongoConfig points the registration store at a MongoDB deployment.
type MongoConfig struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
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

// AdminConfig holds the credentials of the single administrator account.
type AdminConfig struct {
	Username     string
	PasswordHash string
	Email        string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MailConfig configures outbound SMTP delivery.
type MailConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	FromName    string
	SendTimeout time.Duration
}

// NotifyConfig selects how notifications leave the request path.
type NotifyConfig struct {
	Driver     string
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// KafkaConfig is used when notifications are published to a broker.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	GroupID  string
	Username string
	Password string
	TLS      bool
}

// EventConfig carries the event details rendered into emails.
type EventConfig struct {
	Name      string
	Title     string
	Dates     string
	Venue     string
	Organizer string
}

// RegistrationConfig tunes code allocation.
type RegistrationConfig struct {
	CodeMaxAttempts int
}

// StatsConfig governs statistics caching.
type StatsConfig struct {
	CacheTTL time.Duration
}

// RateLimitConfig throttles the public registration endpoints per client IP.
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

// ExportConfig names exported spreadsheets.
type ExportConfig struct {
	FilenamePrefix string
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.StoreDriver = strings.ToLower(v.GetString("STORE_DRIVER"))
	cfg.AutoMigrate = v.GetBool("DB_AUTO_MIGRATE")

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

	cfg.Mongo = MongoConfig{
		URI:            v.GetString("MONGODB_URI"),
		Database:       v.GetString("MONGODB_DATABASE"),
		Collection:     v.GetString("MONGODB_COLLECTION"),
		ConnectTimeout: parseDuration(v.GetString("MONGODB_CONNECT_TIMEOUT"), 10*time.Second),
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
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	secret, err := jwtSecret(cfg.Env, cfg.JWT.Secret)
	if err != nil {
		return nil, err
	}
	cfg.JWT.Secret = secret

	cfg.Admin = AdminConfig{
		Username:     v.GetString("ADMIN_USERNAME"),
		PasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
		Email:        v.GetString("ADMIN_EMAIL"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Mail = MailConfig{
		Host:        v.GetString("SMTP_HOST"),
		Port:        v.GetInt("SMTP_PORT"),
		Username:    v.GetString("SMTP_USERNAME"),
		Password:    v.GetString("SMTP_PASSWORD"),
		From:        v.GetString("MAIL_FROM"),
		FromName:    v.GetString("MAIL_FROM_NAME"),
		SendTimeout: parseDuration(v.GetString("MAIL_SEND_TIMEOUT"), 15*time.Second),
	}

	cfg.Notify = NotifyConfig{
		Driver:     strings.ToLower(v.GetString("NOTIFY_DRIVER")),
		Workers:    v.GetInt("NOTIFY_WORKERS"),
		BufferSize: v.GetInt("NOTIFY_BUFFER_SIZE"),
		MaxRetries: v.GetInt("NOTIFY_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("NOTIFY_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Kafka = KafkaConfig{
		Brokers:  splitAndTrim(v.GetString("KAFKA_BROKERS")),
		Topic:    v.GetString("KAFKA_TOPIC"),
		GroupID:  v.GetString("KAFKA_GROUP_ID"),
		Username: v.GetString("KAFKA_USERNAME"),
		Password: v.GetString("KAFKA_PASSWORD"),
		TLS:      v.GetBool("KAFKA_TLS"),
	}

	cfg.Event = EventConfig{
		Name:      v.GetString("EVENT_NAME"),
		Title:     v.GetString("EVENT_TITLE"),
		Dates:     v.GetString("EVENT_DATES"),
		Venue:     v.GetString("EVENT_VENUE"),
		Organizer: v.GetString("EVENT_ORGANIZER"),
	}

	cfg.Registration = RegistrationConfig{
		CodeMaxAttempts: v.GetInt("CODE_MAX_ATTEMPTS"),
	}

	cfg.Stats = StatsConfig{
		CacheTTL: parseDuration(v.GetString("STATS_CACHE_TTL"), time.Minute),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled:  v.GetBool("RATE_LIMIT_ENABLED"),
		Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
		Window:   parseDuration(v.GetString("RATE_LIMIT_WINDOW"), time.Minute),
	}

	cfg.Export = ExportConfig{
		FilenamePrefix: v.GetString("EXPORT_FILENAME_PREFIX"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 3000)
	v.SetDefault("API_PREFIX", "/api")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "event_registrations")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGODB_DATABASE", "event_registrations")
	v.SetDefault("MONGODB_COLLECTION", "registrations")
	v.SetDefault("MONGODB_CONNECT_TIMEOUT", "10s")

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("JWT_ISSUER", "event-registration-api")

	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD_HASH", "")
	v.SetDefault("ADMIN_EMAIL", "admin@example.com")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("MAIL_FROM", "no-reply@example.com")
	v.SetDefault("MAIL_FROM_NAME", "Event Team")
	v.SetDefault("MAIL_SEND_TIMEOUT", "15s")

	v.SetDefault("NOTIFY_DRIVER", NotifyDriverQueue)
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_BUFFER_SIZE", 64)
	v.SetDefault("NOTIFY_MAX_RETRIES", 3)
	v.SetDefault("NOTIFY_RETRY_DELAY", "5s")

	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "registration.notifications")
	v.SetDefault("KAFKA_GROUP_ID", "mail-worker")
	v.SetDefault("KAFKA_USERNAME", "")
	v.SetDefault("KAFKA_PASSWORD", "")
	v.SetDefault("KAFKA_TLS", false)

	v.SetDefault("EVENT_NAME", "Silver Jubilee Celebration")
	v.SetDefault("EVENT_TITLE", "BVB College Y2K Graduation Batch Silver Jubilee Event")
	v.SetDefault("EVENT_DATES", "27 & 28 December 2025")
	v.SetDefault("EVENT_VENUE", "BVB College of Engineering")
	v.SetDefault("EVENT_ORGANIZER", "BVB College Y2K Event Team")

	v.SetDefault("CODE_MAX_ATTEMPTS", 50)
	v.SetDefault("STATS_CACHE_TTL", "1m")

	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_REQUESTS", 30)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")

	v.SetDefault("EXPORT_FILENAME_PREFIX", "registrations")
}

// jwtSecret requires a configured secret in production. Other environments get a random
// per-process secret when none is set, so tokens do not survive a restart.
func jwtSecret(env, configured string) (string, error) {
	if env == EnvProduction {
		if len(configured) < minJWTSecretLength {
			return "", fmt.Errorf("JWT_SECRET must be set to at least %d characters in production", minJWTSecretLength)
		}
		return configured, nil
	}
	if configured != "" {
		return configured, nil
	}
	buf := make([]byte, minJWTSecretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
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
