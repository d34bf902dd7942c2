package initializers

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port         string
	FrontendURLs []string

	DBDriver    string
	DatabaseURL string

	JWTSecret string
	JWTTTL    time.Duration

	StripeSecretKey     string
	StripeWebhookSecret string
	StripeAPIBase       string
	PaymentCurrency     string

	DeliveryFee decimal.Decimal
	TaxRate     decimal.Decimal

	S3Bucket   string
	S3Endpoint string

	KafkaBrokers []string

	FromEmail         string
	FromEmailPassword string
	FromEmailSMTP     string
	SMTPAddress       string

	LogLevel  string
	LogFormat string

	ZoneCenterLat   float64
	ZoneCenterLng   float64
	ZoneRadiusKm    float64
	AverageSpeedKmh float64
}

// LoadEnv reads .env when present and builds the process configuration.
func LoadEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	deliveryFee, err := decimal.NewFromString(getEnv("DELIVERY_FEE", "5.00"))
	if err != nil {
		return nil, err
	}
	taxRate, err := decimal.NewFromString(getEnv("TAX_RATE", "0.08"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:         getEnv("PORT", "5000"),
		FrontendURLs: splitList(getEnv("FRONTEND_URL", "http://localhost:3000")),

		DBDriver:    getEnv("DB_DRIVER", "mysql"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		JWTSecret: getEnv("JWT_SECRET", "changeme"),
		JWTTTL:    getEnvDuration("JWT_TTL", 24*time.Hour),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeAPIBase:       getEnv("STRIPE_API_BASE", "https://api.stripe.com"),
		PaymentCurrency:     getEnv("PAYMENT_CURRENCY", "zar"),

		DeliveryFee: deliveryFee,
		TaxRate:     taxRate,

		S3Bucket:   getEnv("S3_BUCKET", "product-images"),
		S3Endpoint: os.Getenv("S3_ENDPOINT"),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),

		FromEmail:         os.Getenv("FROM_EMAIL"),
		FromEmailPassword: os.Getenv("FROM_EMAIL_PASSWORD"),
		FromEmailSMTP:     os.Getenv("FROM_EMAIL_SMTP"),
		SMTPAddress:       os.Getenv("SMTP_ADDRESS"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		ZoneCenterLat:   getEnvFloat("ZONE_CENTER_LAT", -33.9249),
		ZoneCenterLng:   getEnvFloat("ZONE_CENTER_LNG", 18.4241),
		ZoneRadiusKm:    getEnvFloat("ZONE_RADIUS_KM", 25),
		AverageSpeedKmh: getEnvFloat("AVERAGE_SPEED_KMH", 30),
	}, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
