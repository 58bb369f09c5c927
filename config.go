package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"marketplace-service/database"
	awspkg "marketplace-service/pkg/aws"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"

	EventBusSNS      = "sns"
	EventBusRabbitMQ = "rabbitmq"
	EventBusNone     = "none"
)

// Config holds all environment variables for the marketplace service.
type Config struct {
	Port   string
	AppEnv string

	StoreDriver string
	Postgres    database.PostgresConfig
	MongoURI    string
	MongoDB     string

	RedisURL       string
	UnreadCacheTTL time.Duration

	EventBus          string
	RefundSNSTopicARN string
	RabbitMQURL       string
	RabbitMQExchange  string

	NotificationQueueURL string
	EventDedupeTable     string
	EventDedupeTTL       time.Duration

	AttachmentBucket    string
	AttachmentURLExpiry time.Duration

	CloudWatchEnabled  bool
	CloudWatchLogGroup string
	MetricsEnabled     bool
	MetricsNamespace   string

	JWTSecret      string
	GatewaySecret  string
	AllowedOrigins []string
	RateLimit      int
	RateBurst      int

	UseSecrets bool
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	var n int
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}

// LoadConfig loads environment variables into Config and validates them.
// A .env file is read first when present. If AWS_USE_SECRETS=true the
// credentials are read from Secrets Manager, falling back to env vars on
// failure.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		AppEnv:      getEnv("APP_ENV", "development"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		Postgres: database.PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   getEnv("POSTGRES_DB", "marketplace"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		},
		MongoURI: os.Getenv("MONGO_URI"),
		MongoDB:  getEnv("MONGO_DB", "marketplace"),

		RedisURL: os.Getenv("REDIS_URL"),

		EventBus:          strings.ToLower(getEnv("EVENT_BUS", EventBusNone)),
		RefundSNSTopicARN: os.Getenv("REFUND_SNS_TOPIC_ARN"),
		RabbitMQURL:       os.Getenv("RABBITMQ_URL"),
		RabbitMQExchange:  getEnv("RABBITMQ_EXCHANGE", "refunds"),

		NotificationQueueURL: os.Getenv("NOTIFICATION_SQS_QUEUE_URL"),
		EventDedupeTable:     os.Getenv("EVENT_DEDUPE_TABLE"),

		AttachmentBucket: os.Getenv("ATTACHMENT_BUCKET"),

		CloudWatchEnabled:  os.Getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchLogGroup: getEnv("CLOUDWATCH_LOG_GROUP", "/marketplace/marketplace-service"),
		MetricsEnabled:     os.Getenv("METRICS_ENABLED") == "true",
		MetricsNamespace:   getEnv("METRICS_NAMESPACE", "Marketplace"),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		GatewaySecret: os.Getenv("GATEWAY_SHARED_SECRET"),

		UseSecrets: os.Getenv("AWS_USE_SECRETS") == "true",
	}

	var err error
	if cfg.UnreadCacheTTL, err = getDuration("UNREAD_CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.EventDedupeTTL, err = getDuration("EVENT_DEDUPE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.AttachmentURLExpiry, err = getDuration("ATTACHMENT_URL_EXPIRY", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = getInt("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return nil, err
	}
	if cfg.RateBurst, err = getInt("RATE_LIMIT_BURST", 30); err != nil {
		return nil, err
	}

	for _, origin := range strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	if cfg.UseSecrets {
		if awsCfg, err := awspkg.LoadAWSConfig(context.Background()); err == nil {
			applySecrets(context.Background(), cfg, awspkg.NewSecretsClient(awsCfg))
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type secretReader interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

// applySecrets overrides credentials from the marketplace/credentials
// bundle. Keys absent from the bundle keep their env values.
func applySecrets(ctx context.Context, cfg *Config, sm secretReader) {
	bundle, err := sm.GetSecretMap(ctx, "marketplace/credentials")
	if err != nil {
		return
	}
	if v := bundle["JWT_SECRET"]; v != "" {
		cfg.JWTSecret = v
	}
	if v := bundle["POSTGRES_PASSWORD"]; v != "" {
		cfg.Postgres.Password = v
	}
	if v := bundle["MONGO_URI"]; v != "" {
		cfg.MongoURI = v
	}
	if v := bundle["GATEWAY_SHARED_SECRET"]; v != "" {
		cfg.GatewaySecret = v
	}
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.Postgres.Password == "" {
			return fmt.Errorf("POSTGRES_PASSWORD is required for STORE_DRIVER=postgres")
		}
	case StoreDriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for STORE_DRIVER=mongo")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.EventBus {
	case EventBusSNS:
		if c.RefundSNSTopicARN == "" {
			return fmt.Errorf("REFUND_SNS_TOPIC_ARN is required for EVENT_BUS=sns")
		}
	case EventBusRabbitMQ:
		if c.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required for EVENT_BUS=rabbitmq")
		}
	case EventBusNone:
	default:
		return fmt.Errorf("unsupported EVENT_BUS %q", c.EventBus)
	}

	return nil
}

// needsAWS reports whether any configured component talks to AWS.
func (c *Config) needsAWS() bool {
	return c.EventBus == EventBusSNS ||
		c.NotificationQueueURL != "" ||
		c.AttachmentBucket != "" ||
		c.CloudWatchEnabled ||
		c.MetricsEnabled
}
