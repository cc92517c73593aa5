package config

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env                      string
	HTTPAddr                 string
	DatabaseURL              string
	JWTSecret                string
	OrderTrackingTokenSecret string
	CronSecret               string
	RabbitMQURL              string
	RabbitMQWorkerMode       string
	CorsAllowedOrigins       []string
	WSOrderPollInterval      time.Duration

	Currency          string
	BookingFeePerUnit float64
	MaxOrderQuantity  int32
	MaxBulkQuantity   int32
	MinBulkQuantity   int32
	PendingOrderTTL   time.Duration

	PaymentAPIBaseURL         string
	PaymentAPISecret          string
	PaymentWebhookSecret      string
	PaymentSignatureTolerance time.Duration
}

func Load() Config {
	return Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8086"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		JWTSecret:                getEnv("JWT_SECRET", ""),
		OrderTrackingTokenSecret: getEnv("ORDER_TRACKING_TOKEN_SECRET", "dev-insecure-tracking-secret"),
		CronSecret:               getEnv("CRON_SECRET", ""),
		RabbitMQURL:              getEnv("RABBITMQ_URL", ""),
		RabbitMQWorkerMode:       getEnv("RABBITMQ_WORKER_MODE", "daemon"),
		CorsAllowedOrigins:       splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		WSOrderPollInterval:      getEnvDuration("WS_ORDER_POLL_INTERVAL", 1*time.Second),

		Currency:          getEnv("CURRENCY", "USD"),
		BookingFeePerUnit: getEnvFloat64("BOOKING_FEE_PER_UNIT", 1.00),
		MaxOrderQuantity:  getEnvInt32("MAX_ORDER_QUANTITY", 10),
		MaxBulkQuantity:   getEnvInt32("MAX_BULK_ORDER_QUANTITY", 200),
		MinBulkQuantity:   getEnvInt32("MIN_BULK_ORDER_QUANTITY", 10),
		PendingOrderTTL:   getEnvDuration("PENDING_ORDER_TTL", 24*time.Hour),

		PaymentAPIBaseURL:         getEnv("PAYMENT_API_BASE_URL", ""),
		PaymentAPISecret:          getEnv("PAYMENT_API_SECRET", ""),
		PaymentWebhookSecret:      getEnv("PAYMENT_WEBHOOK_SECRET", ""),
		PaymentSignatureTolerance: getEnvDuration("PAYMENT_SIGNATURE_TOLERANCE", 5*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt32(key string, fallback int32) int32 {
	parsed := getEnvInt64(key, int64(fallback))
	if parsed < 1 || parsed > math.MaxInt32 {
		return fallback
	}
	return int32(parsed)
}

func getEnvFloat64(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
