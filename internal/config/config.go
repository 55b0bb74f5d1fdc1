package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded once at startup.
type Config struct {
	Environment string

	Server        ServerConfig
	Redis         RedisConfig
	Scylla        ScyllaConfig
	Kafka         KafkaConfig
	Clickhouse    ClickhouseConfig
	Elasticsearch ElasticsearchConfig
	Twilio        TwilioConfig
	Token         TokenConfig
	Admin         AdminConfig
	RateLimit     RateLimitConfig
	Hashing       HashingConfig
	KMS           KMSConfig
	Logging       LoggingConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	EnableTLS    bool
	CertFile     string
	KeyFile      string
}

type RedisConfig struct {
	// URL is empty when the service should fall back to the in-memory store.
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string
}

type KafkaConfig struct {
	Enabled   bool
	Brokers   []string
	LeadTopic string
}

type ClickhouseConfig struct {
	Enabled  bool
	URL      string
	Database string
	Username string
	Password string
}

type ElasticsearchConfig struct {
	Enabled    bool
	URL        string
	Username   string
	Password   string
	StoreIndex string
}

type TwilioConfig struct {
	Enabled    bool
	AccountSID string
	AuthToken  string
	FromNumber string
}

type TokenConfig struct {
	// QuoteSecret signs quote tokens. Must be at least 32 bytes outside
	// development; startup fails otherwise.
	QuoteSecret string
	// AdminSecret signs admin session tokens; falls back to QuoteSecret.
	AdminSecret   string
	QuoteTokenTTL time.Duration
	AdminTokenTTL time.Duration
}

type AdminConfig struct {
	Username     string
	PasswordHash string
}

type RateLimitConfig struct {
	IPLimit        int
	IPWindow       time.Duration
	ResendCooldown time.Duration
}

type HashingConfig struct {
	Argon2MemoryCost  int
	Argon2TimeCost    int
	Argon2Parallelism int
}

type KMSConfig struct {
	Enabled bool
	KeyID   string
	Region  string
}

type LoggingConfig struct {
	Level  string
	Format string
}

const devFallbackSecret = "dev-only-quote-token-secret-0123456789ab"

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			EnableTLS:    getEnvBool("SERVER_ENABLE_TLS", false),
			CertFile:     getEnv("SERVER_CERT_FILE", ""),
			KeyFile:      getEnv("SERVER_KEY_FILE", ""),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
		},
		Scylla: ScyllaConfig{
			Nodes:    splitList(getEnv("SCYLLA_NODES", "")),
			Keyspace: getEnv("SCYLLA_KEYSPACE", "spr_catalog"),
			Username: getEnv("SCYLLA_USERNAME", ""),
			Password: getEnv("SCYLLA_PASSWORD", ""),
		},
		Kafka: KafkaConfig{
			Brokers:   splitList(getEnv("KAFKA_BROKERS", "")),
			LeadTopic: getEnv("KAFKA_LEAD_TOPIC", "spr.leads"),
		},
		Clickhouse: ClickhouseConfig{
			URL:      getEnv("CLICKHOUSE_URL", ""),
			Database: getEnv("CLICKHOUSE_DATABASE", "spr_audit"),
			Username: getEnv("CLICKHOUSE_USERNAME", "default"),
			Password: getEnv("CLICKHOUSE_PASSWORD", ""),
		},
		Elasticsearch: ElasticsearchConfig{
			URL:        getEnv("ELASTICSEARCH_URL", ""),
			Username:   getEnv("ELASTICSEARCH_USERNAME", ""),
			Password:   getEnv("ELASTICSEARCH_PASSWORD", ""),
			StoreIndex: getEnv("ELASTICSEARCH_STORE_INDEX", "spr-stores"),
		},
		Twilio: TwilioConfig{
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			FromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		},
		Token: TokenConfig{
			QuoteSecret:   getEnv("QUOTE_TOKEN_SECRET", ""),
			AdminSecret:   getEnv("ADMIN_TOKEN_SECRET", ""),
			QuoteTokenTTL: getEnvDuration("QUOTE_TOKEN_TTL", 10*time.Minute),
			AdminTokenTTL: getEnvDuration("ADMIN_TOKEN_TTL", 24*time.Hour),
		},
		Admin: AdminConfig{
			Username:     getEnv("ADMIN_USERNAME", ""),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
		RateLimit: RateLimitConfig{
			IPLimit:        getEnvInt("RATE_LIMIT_IP_LIMIT", 30),
			IPWindow:       getEnvDuration("RATE_LIMIT_IP_WINDOW", time.Hour),
			ResendCooldown: getEnvDuration("RATE_LIMIT_RESEND_COOLDOWN", 60*time.Second),
		},
		Hashing: HashingConfig{
			Argon2MemoryCost:  getEnvInt("ARGON2_MEMORY_COST", 64*1024),
			Argon2TimeCost:    getEnvInt("ARGON2_TIME_COST", 3),
			Argon2Parallelism: getEnvInt("ARGON2_PARALLELISM", 2),
		},
		KMS: KMSConfig{
			Enabled: getEnvBool("KMS_ENABLED", false),
			KeyID:   getEnv("KMS_KEY_ID", ""),
			Region:  getEnv("AWS_REGION", "ap-southeast-1"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	cfg.Kafka.Enabled = len(cfg.Kafka.Brokers) > 0
	cfg.Clickhouse.Enabled = cfg.Clickhouse.URL != ""
	cfg.Elasticsearch.Enabled = cfg.Elasticsearch.URL != ""
	cfg.Twilio.Enabled = cfg.Twilio.AccountSID != "" && cfg.Twilio.AuthToken != "" && cfg.Twilio.FromNumber != ""

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Token.QuoteSecret == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("QUOTE_TOKEN_SECRET is required outside development")
		}
		// Known constant, development only. Never ships.
		c.Token.QuoteSecret = devFallbackSecret
	}
	if len(c.Token.QuoteSecret) < 32 {
		return fmt.Errorf("QUOTE_TOKEN_SECRET must be at least 32 bytes, got %d", len(c.Token.QuoteSecret))
	}
	if c.Token.AdminSecret == "" {
		c.Token.AdminSecret = c.Token.QuoteSecret
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.IsProduction() && (c.Admin.Username == "" || c.Admin.PasswordHash == "") {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD_HASH are required in production")
	}
	return nil
}

// UsingDevFallbackSecret reports whether the development fallback secret is
// in use, so startup can log it loudly.
func (c *Config) UsingDevFallbackSecret() bool {
	return c.Token.QuoteSecret == devFallbackSecret
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
