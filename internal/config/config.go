package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends.
const (
	StorePostgres = "postgres"
	StoreFile     = "file"
	StoreS3       = "s3"
)

// Event backends.
const (
	EventsLog   = "log"
	EventsKafka = "kafka"
	EventsSQS   = "sqs"
)

type Config struct {
	Port                string        `mapstructure:"PORT"`
	Env                 string        `mapstructure:"ENV"`
	StoreBackend        string        `mapstructure:"STORE_BACKEND"`
	DatabaseURL         string        `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32         `mapstructure:"DB_MIN_CONNS"`
	DocstoreDir         string        `mapstructure:"DOCSTORE_DIR"`
	DocstoreS3Bucket    string        `mapstructure:"DOCSTORE_S3_BUCKET"`
	DocstoreS3Prefix    string        `mapstructure:"DOCSTORE_S3_PREFIX"`
	JWTSigningKey       string        `mapstructure:"JWT_SIGNING_KEY"`
	JWTIssuer           string        `mapstructure:"JWT_ISSUER"`
	TokenTTL            time.Duration `mapstructure:"TOKEN_TTL"`
	CORSOrigins         []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS        float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst      int           `mapstructure:"RATE_LIMIT_BURST"`
	EventsBackend       string        `mapstructure:"EVENTS_BACKEND"`
	KafkaBrokers        []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic          string        `mapstructure:"KAFKA_TOPIC"`
	SQSQueueURL         string        `mapstructure:"SQS_QUEUE_URL"`
	DefaultFacilityName string        `mapstructure:"DEFAULT_FACILITY_NAME"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_BACKEND", StorePostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DOCSTORE_DIR", "./data")
	v.SetDefault("DOCSTORE_S3_PREFIX", "schemedesk/")
	v.SetDefault("JWT_ISSUER", "schemedesk")
	v.SetDefault("TOKEN_TTL", "8h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("EVENTS_BACKEND", EventsLog)
	v.SetDefault("KAFKA_TOPIC", "scheme-approvals")
	v.SetDefault("DEFAULT_FACILITY_NAME", "Primary Health Center")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "STORE_BACKEND", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"DOCSTORE_DIR", "DOCSTORE_S3_BUCKET", "DOCSTORE_S3_PREFIX",
		"JWT_SIGNING_KEY", "JWT_ISSUER", "TOKEN_TTL", "CORS_ORIGINS",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"EVENTS_BACKEND", "KAFKA_BROKERS", "KAFKA_TOPIC", "SQS_QUEUE_URL",
		"DEFAULT_FACILITY_NAME",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers, v.GetString("KAFKA_BROKERS"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: Requests without a bearer token are treated as the super admin.")
		log.Println("WARNING: Set ENV=production and JWT_SIGNING_KEY before deploying.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

// splitList normalizes comma-separated env values into trimmed elements.
func splitList(parsed []string, raw string) []string {
	if raw == "" {
		raw = strings.Join(parsed, ",")
	}
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %q", StorePostgres)
		}
	case StoreFile:
		if c.DocstoreDir == "" {
			return fmt.Errorf("DOCSTORE_DIR is required when STORE_BACKEND is %q", StoreFile)
		}
	case StoreS3:
		if c.DocstoreS3Bucket == "" {
			return fmt.Errorf("DOCSTORE_S3_BUCKET is required when STORE_BACKEND is %q", StoreS3)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q, %q, or %q, got %q", StorePostgres, StoreFile, StoreS3, c.StoreBackend)
	}

	switch c.EventsBackend {
	case EventsLog:
	case EventsKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when EVENTS_BACKEND is %q", EventsKafka)
		}
	case EventsSQS:
		if c.SQSQueueURL == "" {
			return fmt.Errorf("SQS_QUEUE_URL is required when EVENTS_BACKEND is %q", EventsSQS)
		}
	default:
		return fmt.Errorf("EVENTS_BACKEND must be %q, %q, or %q, got %q", EventsLog, EventsKafka, EventsSQS, c.EventsBackend)
	}

	if !c.IsDev() && len(c.JWTSigningKey) < 32 {
		return fmt.Errorf("JWT_SIGNING_KEY must be at least 32 characters outside development")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	return nil
}

// SigningKey returns the JWT HMAC key. Development falls back to a fixed key
// so tokens survive restarts.
func (c *Config) SigningKey() []byte {
	if c.JWTSigningKey == "" && c.IsDev() {
		return []byte("schemedesk-development-signing-key")
	}
	return []byte(c.JWTSigningKey)
}
