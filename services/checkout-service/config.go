package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	aws_pkg "github.com/yashrajoria/beacon-market/pkg/aws"
	"github.com/yashrajoria/beacon-market/services/checkout-service/database"
)

const (
	InventoryBackendPostgres = "postgres"
	InventoryBackendDynamoDB = "dynamodb"
)

type Config struct {
	Port     string
	AppEnv   string
	Postgres database.PostgresConfig

	JWTSecret string
	// TrustGatewayHeaders accepts X-User-Email from an authenticating gateway.
	// It has no effect when JWTSecret is set.
	TrustGatewayHeaders bool
	RedisURL            string

	KafkaBrokers     []string
	OrderEventsTopic string
	OrderSNSTopicARN string
	CheckoutQueueURL string
	ReceiptsBucket   string

	// InventoryBackend is "postgres" (products.inventory_count) or "dynamodb".
	InventoryBackend string
	InventoryTable   string

	CheckoutTimeout   time.Duration
	CheckoutLockTTL   time.Duration
	IdempotencyTTL    time.Duration
	RateLimitPerMin   int
	RateLimitBurst    int
	CloudWatchEnabled bool
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:   getEnv("PORT", "8083"),
		AppEnv: getEnv("APP_ENV", "development"),
		Postgres: database.PostgresConfig{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DB:       os.Getenv("POSTGRES_DB"),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		},
		JWTSecret:           os.Getenv("JWT_SECRET"),
		TrustGatewayHeaders: os.Getenv("TRUST_GATEWAY_HEADERS") == "true",
		RedisURL:            os.Getenv("REDIS_URL"),
		KafkaBrokers:        splitList(os.Getenv("KAFKA_BROKERS")),
		OrderEventsTopic:    getEnv("ORDER_EVENTS_TOPIC", "order.created"),
		OrderSNSTopicARN:    os.Getenv("ORDER_SNS_TOPIC_ARN"),
		CheckoutQueueURL:    os.Getenv("CHECKOUT_QUEUE_URL"),
		ReceiptsBucket:      os.Getenv("RECEIPTS_BUCKET"),
		InventoryBackend:    strings.ToLower(getEnv("INVENTORY_BACKEND", InventoryBackendPostgres)),
		InventoryTable:      getEnv("INVENTORY_TABLE", "Inventory"),
		CheckoutTimeout:     getDuration("CHECKOUT_TIMEOUT", 15*time.Second),
		CheckoutLockTTL:     getDuration("CHECKOUT_LOCK_TTL", 30*time.Second),
		IdempotencyTTL:      getDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		RateLimitPerMin:     getInt("RATE_LIMIT_PER_MINUTE", 100),
		RateLimitBurst:      getInt("RATE_LIMIT_BURST", 20),
		CloudWatchEnabled:   os.Getenv("CLOUDWATCH_ENABLED") == "true",
	}

	// Override DB credentials from Secrets Manager when running on AWS
	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := aws_pkg.LoadAWSConfig(context.Background()); err == nil {
			sm := aws_pkg.NewSecretsClient(awsCfg)
			if m, err := sm.GetSecretMap(context.Background(), "marketplace/DB_CREDENTIALS"); err == nil {
				overrideString(&cfg.Postgres.User, m["POSTGRES_USER"])
				overrideString(&cfg.Postgres.Password, m["POSTGRES_PASSWORD"])
				overrideString(&cfg.Postgres.DB, m["POSTGRES_DB"])
				overrideString(&cfg.Postgres.Host, m["POSTGRES_HOST"])
				overrideString(&cfg.Postgres.Port, m["POSTGRES_PORT"])
			}
			if secret, err := sm.GetSecret(context.Background(), "marketplace/JWT_SECRET"); err == nil {
				overrideString(&cfg.JWTSecret, secret)
			}
		}
	}

	if cfg.JWTSecret == "" && !cfg.TrustGatewayHeaders {
		return nil, fmt.Errorf("set JWT_SECRET or TRUST_GATEWAY_HEADERS=true")
	}
	if cfg.Postgres.User == "" || cfg.Postgres.Password == "" || cfg.Postgres.DB == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	switch cfg.InventoryBackend {
	case InventoryBackendPostgres, InventoryBackendDynamoDB:
	default:
		return nil, fmt.Errorf("unknown INVENTORY_BACKEND %q", cfg.InventoryBackend)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
