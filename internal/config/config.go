// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers accepted in STORE_DRIVER.
const (
	StoreDriverLevelDB  = "leveldb"
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the USSD/admin HTTP server listens on (e.g. :3000). PORT overrides it.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Port is the bare listen port used by hosting platforms; when set the server listens on ":"+Port.
	Port string `mapstructure:"PORT"`
	// GRPCAddr is the address of the gRPC health endpoint; empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`

	// StoreDriver selects the durable store backend: leveldb, postgres or memory.
	StoreDriver string `mapstructure:"STORE_DRIVER"`
	// DataDir is the LevelDB directory when StoreDriver is leveldb.
	DataDir string `mapstructure:"DATA_DIR"`
	// DatabaseURL is the Postgres DSN when StoreDriver is postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// BcryptCost is the bcrypt cost factor (4–31) for PIN hashes; default 10.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// OTPTTL is the one-time code lifetime (e.g. "5m").
	OTPTTL string `mapstructure:"OTP_TTL"`
	// SessionTTL is how long an idle USSD session is kept before it is treated as abandoned.
	SessionTTL string `mapstructure:"SESSION_TTL"`
	// SessionSweepInterval is how often abandoned sessions are deleted; "0" disables the sweeper.
	SessionSweepInterval string `mapstructure:"SESSION_SWEEP_INTERVAL"`
	// MaxTransferAmount is the largest amount accepted in a single Send Money flow; 0 means no limit.
	MaxTransferAmount int64 `mapstructure:"MAX_TRANSFER_AMOUNT"`
	// MaxVoucherAmount is the largest amount the admin interface accepts for one voucher.
	MaxVoucherAmount int64 `mapstructure:"MAX_VOUCHER_AMOUNT"`
	// TransferPolicyFile is an optional Rego file replacing the built-in transfer policy.
	TransferPolicyFile string `mapstructure:"TRANSFER_POLICY_FILE"`

	// SMSLocalAPIKey is the API key for SMS Local. When empty, OTPs are only logged.
	SMSLocalAPIKey string `mapstructure:"SMS_LOCAL_API_KEY"`
	// SMSLocalSender is the optional sender ID for SMS Local.
	SMSLocalSender string `mapstructure:"SMS_LOCAL_SENDER"`
	// SMSLocalBaseURL is the SMS Local API base URL.
	SMSLocalBaseURL string `mapstructure:"SMS_LOCAL_BASE_URL"`
	// OTPReturnToClient when true enables dev OTP mode: codes are captured for GET /dev/otp/{callerId}.
	// Must not be true when Env is production.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// AdminJWTPublicKey is the PEM (inline or path) used to verify admin bearer tokens. Empty leaves admin routes open.
	AdminJWTPublicKey string `mapstructure:"ADMIN_JWT_PUBLIC_KEY"`
	// AdminJWTPrivateKey is the PEM used by cmd/seed to mint admin tokens. Not read by the server.
	AdminJWTPrivateKey string `mapstructure:"ADMIN_JWT_PRIVATE_KEY"`
	// AdminJWTIssuer is the iss claim required on admin tokens.
	AdminJWTIssuer string `mapstructure:"ADMIN_JWT_ISSUER"`
	// AdminJWTAudience is the aud claim required on admin tokens.
	AdminJWTAudience string `mapstructure:"ADMIN_JWT_AUDIENCE"`

	// OTLPEndpoint is the OpenTelemetry collector endpoint (e.g. localhost:4317). Empty uses no-op providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext connection to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for wallet events (default ussd-wallet-events).
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the event worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// RedisAddr enables the Redis-backed rate limiter when set (e.g. localhost:6379).
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is the optional Redis password.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// RateLimitPerMinute is the number of USSD turns a caller may send per minute; 0 disables limiting.
	RateLimitPerMinute int `mapstructure:"RATE_LIMIT_PER_MINUTE"`

	// LogFile, when set, tees the process log into a rotating file.
	LogFile string `mapstructure:"LOG_FILE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":3000")
	v.SetDefault("PORT", "")
	v.SetDefault("GRPC_ADDR", ":8081")
	v.SetDefault("STORE_DRIVER", StoreDriverLevelDB)
	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("OTP_TTL", "5m")
	v.SetDefault("SESSION_TTL", "3m")
	v.SetDefault("SESSION_SWEEP_INTERVAL", "1m")
	v.SetDefault("MAX_TRANSFER_AMOUNT", 100000)
	v.SetDefault("MAX_VOUCHER_AMOUNT", 1000000)
	v.SetDefault("TRANSFER_POLICY_FILE", "")
	v.SetDefault("SMS_LOCAL_API_KEY", "")
	v.SetDefault("SMS_LOCAL_SENDER", "")
	v.SetDefault("SMS_LOCAL_BASE_URL", "https://app.smslocal.in/api/smsapi")
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("ADMIN_JWT_PUBLIC_KEY", "")
	v.SetDefault("ADMIN_JWT_PRIVATE_KEY", "")
	v.SetDefault("ADMIN_JWT_ISSUER", "ussd-admin")
	v.SetDefault("ADMIN_JWT_AUDIENCE", "ussd-api")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "ussd-wallet-events")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "ussd-wallet-worker")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 30)
	v.SetDefault("LOG_FILE", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if p := strings.TrimSpace(cfg.Port); p != "" {
		cfg.HTTPAddr = ":" + strings.TrimPrefix(p, ":")
	}
	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	switch cfg.StoreDriver {
	case StoreDriverLevelDB:
		if strings.TrimSpace(cfg.DataDir) == "" {
			return nil, errors.New("config: DATA_DIR must be set when STORE_DRIVER=leveldb")
		}
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("config: DATABASE_URL must be set when STORE_DRIVER=postgres")
		}
	case StoreDriverMemory:
	default:
		return nil, errors.New("config: STORE_DRIVER must be one of leveldb, postgres, memory")
	}

	if cfg.OTPReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 10
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.MaxTransferAmount < 0 {
		return nil, errors.New("config: MAX_TRANSFER_AMOUNT must not be negative")
	}
	if cfg.MaxVoucherAmount <= 0 {
		return nil, errors.New("config: MAX_VOUCHER_AMOUNT must be positive")
	}
	if cfg.RateLimitPerMinute < 0 {
		return nil, errors.New("config: RATE_LIMIT_PER_MINUTE must not be negative")
	}

	return &cfg, nil
}

// OTPLifetime parses OTPTTL as a time.Duration. Returns 5m if unset or invalid.
func (c *Config) OTPLifetime() time.Duration {
	d, err := time.ParseDuration(c.OTPTTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// SessionLifetime parses SessionTTL as a time.Duration. Returns 3m if unset or invalid.
func (c *Config) SessionLifetime() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 3 * time.Minute
	}
	return d
}

// SweepInterval parses SessionSweepInterval. Returns 0 (disabled) for "0" and 1m if unset or invalid.
func (c *Config) SweepInterval() time.Duration {
	if strings.TrimSpace(c.SessionSweepInterval) == "0" {
		return 0
	}
	d, err := time.ParseDuration(c.SessionSweepInterval)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// DevOTPEnabled reports whether OTPs are captured for the dev retrieval endpoint.
func (c *Config) DevOTPEnabled() bool {
	return c.OTPReturnToClient && c.Env != "production"
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the event stream is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
