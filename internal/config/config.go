package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration. It is loaded once at startup and
// passed to components at construction; nothing reads the environment after
// Load returns.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Referral ReferralConfig
	Kafka    KafkaConfig
}

// ReferralConfig carries the referral program policy knobs.
type ReferralConfig struct {
	// CommissionRate is the fraction of a transaction amount paid to the
	// referrer, e.g. 0.015 for 1.5%.
	CommissionRate float64
	// LinkExpirationDays is the default validity window for new links.
	LinkExpirationDays int
	// BaseURL is the public prefix for generated redemption URLs.
	BaseURL string
	// SingleUseCodes deactivates a link after its first successful
	// redemption. The relationship table enforces correctness either way;
	// this only controls link reuse by distinct users.
	SingleUseCodes bool
}

// KafkaConfig configures the transaction event consumer.
type KafkaConfig struct {
	Enabled          bool
	BootstrapServers string
	GroupID          string
	Topic            string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "referral"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "referral"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Referral: ReferralConfig{
			CommissionRate:     getenvFloat("REFERRAL_COMMISSION_RATE", 0.015),
			LinkExpirationDays: getenvInt("LINK_EXPIRATION_DAYS", 30),
			BaseURL:            getenv("REFERRAL_BASE_URL", "http://localhost:3000"),
			SingleUseCodes:     getenvBool("REFERRAL_SINGLE_USE_CODES", false),
		},
		Kafka: KafkaConfig{
			Enabled:          getenvBool("KAFKA_ENABLED", false),
			BootstrapServers: getenv("KAFKA_BOOTSTRAP_SERVERS", "localhost:9092"),
			GroupID:          getenv("KAFKA_GROUP_ID", "referral-service-consumer"),
			Topic:            getenv("KAFKA_TOPIC", "transaction.completed"),
		},
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
