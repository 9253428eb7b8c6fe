package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             string
	Env              string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	StripeSecretKey  string
	StripeWebhookKey string

	KafkaBrokers        string
	OrderCreatedTopic   string
	OrderCompletedTopic string
	OrderCancelledTopic string
	GatewayEventsTopic  string
	PaymentEventsDLQ    string

	InternalAPIKey string
	JWTSecret      string

	// PlatformFeeRate is the platform's cut of an order total, e.g. 0.10.
	PlatformFeeRate float64
	// MinWithdrawAmount is in minor currency units.
	MinWithdrawAmount int64
	// ConsumerMaxAttempts bounds in-process redelivery before a message
	// is routed to the DLQ topic.
	ConsumerMaxAttempts int
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	feeRate, err := strconv.ParseFloat(getEnv("PLATFORM_FEE_RATE", "0.10"), 64)
	if err != nil || feeRate < 0 || feeRate >= 1 {
		return nil, fmt.Errorf("invalid PLATFORM_FEE_RATE: %q", os.Getenv("PLATFORM_FEE_RATE"))
	}
	minWithdraw, err := strconv.ParseInt(getEnv("MIN_WITHDRAW_AMOUNT", "10000"), 10, 64)
	if err != nil || minWithdraw < 0 {
		return nil, fmt.Errorf("invalid MIN_WITHDRAW_AMOUNT: %q", os.Getenv("MIN_WITHDRAW_AMOUNT"))
	}
	maxAttempts, err := strconv.Atoi(getEnv("CONSUMER_MAX_ATTEMPTS", "5"))
	if err != nil || maxAttempts < 1 {
		return nil, fmt.Errorf("invalid CONSUMER_MAX_ATTEMPTS: %q", os.Getenv("CONSUMER_MAX_ATTEMPTS"))
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8087"),
		Env:              getEnv("APP_ENV", "development"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Kolkata"),

		StripeSecretKey:  os.Getenv("STRIPE_API_KEY"),
		StripeWebhookKey: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		KafkaBrokers:        getEnv("KAFKA_BROKERS", "localhost:9092"),
		OrderCreatedTopic:   getEnv("ORDER_CREATED_TOPIC", "order.created"),
		OrderCompletedTopic: getEnv("ORDER_COMPLETED_TOPIC", "order.completed"),
		OrderCancelledTopic: getEnv("ORDER_CANCELLED_TOPIC", "order.cancelled"),
		GatewayEventsTopic:  getEnv("GATEWAY_EVENTS_TOPIC", "payments.gateway-events"),
		PaymentEventsDLQ:    getEnv("PAYMENT_EVENTS_DLQ", "payments.dlq"),

		InternalAPIKey: os.Getenv("INTERNAL_API_KEY"),
		JWTSecret:      os.Getenv("JWT_SECRET"),

		PlatformFeeRate:     feeRate,
		MinWithdrawAmount:   minWithdraw,
		ConsumerMaxAttempts: maxAttempts,
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" || cfg.PostgresHost == "" ||
		cfg.StripeSecretKey == "" || cfg.StripeWebhookKey == "" || cfg.InternalAPIKey == "" || cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing required environment variables")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
