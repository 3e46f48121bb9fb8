/**
 * @description
 * This package handles the configuration management for the operations-service. It
 * uses the Viper library to read configuration from environment variables and an
 * optional .env file, then normalizes values the service cannot run with.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 * - github.com/shopspring/decimal: Parsing the default payment threshold.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	defaultPaymentThreshold = "10000"
	mebibyte                = 1 << 20
)

// Config holds all the configuration variables for the operations-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                      string `mapstructure:"SERVER_PORT"`
	DatabaseURL                     string `mapstructure:"DATABASE_URL"`
	RedisURL                        string `mapstructure:"REDIS_URL"`
	RedisKeyPrefix                  string `mapstructure:"REDIS_KEY_PREFIX"`
	RabbitMQURL                     string `mapstructure:"RABBITMQ_URL"`
	EventsExchange                  string `mapstructure:"EVENTS_EXCHANGE"`
	VerificationDecisionQueue       string `mapstructure:"VERIFICATION_DECISION_QUEUE"`
	JWKSURL                         string `mapstructure:"JWKS_URL"`
	JWTAudience                     string `mapstructure:"JWT_AUDIENCE"`
	JWTIssuer                       string `mapstructure:"JWT_ISSUER"`
	AdminRole                       string `mapstructure:"ADMIN_ROLE"`
	ExtractionServiceURL            string `mapstructure:"EXTRACTION_SERVICE_URL"`
	ExtractionAPIKey                string `mapstructure:"EXTRACTION_API_KEY"`
	CoreBankingBaseURL              string `mapstructure:"CORE_BANKING_BASE_URL"`
	CoreBankingAPIKey               string `mapstructure:"CORE_BANKING_API_KEY"`
	PaymentThresholdDefaultRaw      string `mapstructure:"PAYMENT_THRESHOLD_DEFAULT"`
	PaymentThresholdCacheSeconds    int    `mapstructure:"PAYMENT_THRESHOLD_CACHE_SECONDS"`
	InvoiceMaxBytes                 int64  `mapstructure:"INVOICE_MAX_BYTES"`
	VerificationDocMaxBytes         int64  `mapstructure:"VERIFICATION_DOC_MAX_BYTES"`
	InvoiceSessionTTLMinutes        int    `mapstructure:"INVOICE_SESSION_TTL_MINUTES"`
	InvoiceUploadRateLimitPerMinute int    `mapstructure:"INVOICE_UPLOAD_RATE_LIMIT_PER_MINUTE"`
	TransactionPINMaxAttempts       int    `mapstructure:"TRANSACTION_PIN_MAX_ATTEMPTS"`
	TransactionPINLockoutSeconds    int    `mapstructure:"TRANSACTION_PIN_LOCKOUT_SECONDS"`
	DocumentBucket                  string `mapstructure:"DOCUMENT_BUCKET"`
	DocumentRegion                  string `mapstructure:"DOCUMENT_REGION"`
	DocumentEndpoint                string `mapstructure:"DOCUMENT_ENDPOINT"`
	DocumentPrefix                  string `mapstructure:"DOCUMENT_PREFIX"`
	VerificationExpirySchedule      string `mapstructure:"VERIFICATION_EXPIRY_SCHEDULE"`
	VerificationExpiryHours         int    `mapstructure:"VERIFICATION_EXPIRY_HOURS"`
	CORSAllowedOriginsRaw           string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// Derived values, filled after Unmarshal.
	PaymentThresholdDefault decimal.Decimal `mapstructure:"-"`
	CORSAllowedOrigins      []string        `mapstructure:"-"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_KEY_PREFIX", "aurum")
	viper.SetDefault("EVENTS_EXCHANGE", "aurum.events")
	viper.SetDefault("VERIFICATION_DECISION_QUEUE", "operations_service.verification_decisions")
	viper.SetDefault("ADMIN_ROLE", "admin")
	viper.SetDefault("PAYMENT_THRESHOLD_DEFAULT", defaultPaymentThreshold)
	viper.SetDefault("PAYMENT_THRESHOLD_CACHE_SECONDS", 60)
	viper.SetDefault("INVOICE_MAX_BYTES", 5*mebibyte)
	viper.SetDefault("VERIFICATION_DOC_MAX_BYTES", 10*mebibyte)
	viper.SetDefault("INVOICE_SESSION_TTL_MINUTES", 30)
	viper.SetDefault("INVOICE_UPLOAD_RATE_LIMIT_PER_MINUTE", 10)
	viper.SetDefault("TRANSACTION_PIN_MAX_ATTEMPTS", 5)
	viper.SetDefault("TRANSACTION_PIN_LOCKOUT_SECONDS", 600)
	viper.SetDefault("DOCUMENT_REGION", "us-east-1")
	viper.SetDefault("DOCUMENT_PREFIX", "verification/")
	viper.SetDefault("VERIFICATION_EXPIRY_SCHEDULE", "*/30 * * * *")
	viper.SetDefault("VERIFICATION_EXPIRY_HOURS", 168)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "OPERATIONS_REDIS_URL")
	_ = viper.BindEnv("REDIS_KEY_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("VERIFICATION_DECISION_QUEUE")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("JWT_AUDIENCE")
	_ = viper.BindEnv("JWT_ISSUER")
	_ = viper.BindEnv("ADMIN_ROLE")
	_ = viper.BindEnv("EXTRACTION_SERVICE_URL")
	_ = viper.BindEnv("EXTRACTION_API_KEY")
	_ = viper.BindEnv("CORE_BANKING_BASE_URL")
	_ = viper.BindEnv("CORE_BANKING_API_KEY")
	_ = viper.BindEnv("PAYMENT_THRESHOLD_DEFAULT")
	_ = viper.BindEnv("PAYMENT_THRESHOLD_CACHE_SECONDS")
	_ = viper.BindEnv("INVOICE_MAX_BYTES")
	_ = viper.BindEnv("VERIFICATION_DOC_MAX_BYTES")
	_ = viper.BindEnv("INVOICE_SESSION_TTL_MINUTES")
	_ = viper.BindEnv("INVOICE_UPLOAD_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("TRANSACTION_PIN_MAX_ATTEMPTS")
	_ = viper.BindEnv("TRANSACTION_PIN_LOCKOUT_SECONDS")
	_ = viper.BindEnv("DOCUMENT_BUCKET")
	_ = viper.BindEnv("DOCUMENT_REGION", "DOCUMENT_REGION", "AWS_REGION")
	_ = viper.BindEnv("DOCUMENT_ENDPOINT")
	_ = viper.BindEnv("DOCUMENT_PREFIX")
	_ = viper.BindEnv("VERIFICATION_EXPIRY_SCHEDULE")
	_ = viper.BindEnv("VERIFICATION_EXPIRY_HOURS")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisKeyPrefix = strings.TrimSpace(config.RedisKeyPrefix)
	if config.RedisKeyPrefix == "" {
		config.RedisKeyPrefix = "aurum"
	}
	config.AdminRole = strings.TrimSpace(config.AdminRole)
	if config.AdminRole == "" {
		config.AdminRole = "admin"
	}

	config.PaymentThresholdDefault = parseThreshold(config.PaymentThresholdDefaultRaw)
	config.CORSAllowedOrigins = splitOrigins(config.CORSAllowedOriginsRaw)

	if config.PaymentThresholdCacheSeconds < 0 {
		log.Printf("level=warn component=config msg=\"negative threshold cache ttl configured; disabling cache\" seconds=%d", config.PaymentThresholdCacheSeconds)
		config.PaymentThresholdCacheSeconds = 0
	}
	if config.InvoiceMaxBytes <= 0 {
		config.InvoiceMaxBytes = 5 * mebibyte
	}
	if config.VerificationDocMaxBytes <= 0 {
		config.VerificationDocMaxBytes = 10 * mebibyte
	}
	if config.InvoiceSessionTTLMinutes <= 0 {
		config.InvoiceSessionTTLMinutes = 30
	}
	if config.InvoiceUploadRateLimitPerMinute <= 0 {
		config.InvoiceUploadRateLimitPerMinute = 10
	}
	if config.TransactionPINMaxAttempts <= 0 {
		config.TransactionPINMaxAttempts = 5
	}
	if config.TransactionPINLockoutSeconds <= 0 {
		config.TransactionPINLockoutSeconds = 600
	}
	if strings.TrimSpace(config.VerificationExpirySchedule) == "" {
		config.VerificationExpirySchedule = "*/30 * * * *"
	}
	if config.VerificationExpiryHours <= 0 {
		config.VerificationExpiryHours = 168
	}

	return
}

func parseThreshold(raw string) decimal.Decimal {
	value := strings.TrimSpace(raw)
	if value == "" {
		return decimal.RequireFromString(defaultPaymentThreshold)
	}
	threshold, err := decimal.NewFromString(value)
	if err != nil {
		log.Printf("level=warn component=config msg=\"invalid PAYMENT_THRESHOLD_DEFAULT; using default\" value=%q err=%v", value, err)
		return decimal.RequireFromString(defaultPaymentThreshold)
	}
	if threshold.IsNegative() {
		log.Printf("level=warn component=config msg=\"negative payment threshold configured; using default\" value=%s", threshold.String())
		return decimal.RequireFromString(defaultPaymentThreshold)
	}
	return threshold
}

func splitOrigins(raw string) []string {
	origins := make([]string, 0)
	for _, origin := range strings.Split(raw, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
