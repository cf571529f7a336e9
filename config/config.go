package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the process configuration, read from the environment (and .env).
type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	ServiceName string `mapstructure:"SERVICE_NAME"`

	DBDriver    string `mapstructure:"DB_DRIVER"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBHost      string `mapstructure:"DB_HOST"`
	DBPort      string `mapstructure:"DB_PORT"`
	DBUser      string `mapstructure:"DB_USER"`
	DBPassword  string `mapstructure:"DB_PASSWORD"`
	DBName      string `mapstructure:"DB_NAME"`
	DBSSLMode   string `mapstructure:"DB_SSLMODE"`
	DBPath      string `mapstructure:"DB_PATH"`

	SessionKey   string `mapstructure:"SESSION_KEY"`
	CSRFKey      string `mapstructure:"CSRF_KEY"`
	CookieSecure bool   `mapstructure:"COOKIE_SECURE"`
	JWTSecret    string `mapstructure:"JWT_SECRET"`
	AdminAPIKey  string `mapstructure:"ADMIN_API_KEY"`

	IntaSendSecretKey        string `mapstructure:"INTASEND_SECRET_KEY"`
	IntaSendBaseURL          string `mapstructure:"INTASEND_BASE_URL"`
	IntaSendWebhookChallenge string `mapstructure:"INTASEND_WEBHOOK_CHALLENGE"`
	CallbackBaseURL          string `mapstructure:"CALLBACK_BASE_URL"`

	MailFrom     string `mapstructure:"MAIL_FROM"`
	ResendAPIKey string `mapstructure:"RESEND_API_KEY"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`

	CORSOrigins string `mapstructure:"CORS_ORIGINS"`

	// Keys that were missing and replaced by random values for this process.
	GeneratedKeys []string `mapstructure:"-"`
}

var defaults = map[string]any{
	"PORT":                       "8080",
	"ENV":                        "development",
	"SERVICE_NAME":               "tavern-api",
	"DB_DRIVER":                  "postgres",
	"DATABASE_URL":               "",
	"DB_HOST":                    "localhost",
	"DB_PORT":                    "5432",
	"DB_USER":                    "postgres",
	"DB_PASSWORD":                "",
	"DB_NAME":                    "tavern",
	"DB_SSLMODE":                 "disable",
	"DB_PATH":                    "tavern.db",
	"SESSION_KEY":                "",
	"CSRF_KEY":                   "",
	"COOKIE_SECURE":              false,
	"JWT_SECRET":                 "",
	"ADMIN_API_KEY":              "",
	"INTASEND_SECRET_KEY":        "",
	"INTASEND_BASE_URL":          "https://sandbox.intasend.com",
	"INTASEND_WEBHOOK_CHALLENGE": "",
	"CALLBACK_BASE_URL":          "",
	"MAIL_FROM":                  "Tavern <orders@tavern.local>",
	"RESEND_API_KEY":             "",
	"REDIS_ADDR":                 "",
	"REDIS_PASSWORD":             "",
	"KAFKA_BROKERS":              "",
	"KAFKA_TOPIC":                "tavern.orders",
	"CORS_ORIGINS":               "",
}

// Load reads configuration from environment variables. Call godotenv.Load
// first when a .env file should be honoured.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite" {
		return nil, fmt.Errorf("config: unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	if cfg.SessionKey == "" {
		cfg.SessionKey = randomKey()
		cfg.GeneratedKeys = append(cfg.GeneratedKeys, "SESSION_KEY")
	}
	if cfg.CSRFKey == "" {
		cfg.CSRFKey = randomKey()
		cfg.GeneratedKeys = append(cfg.GeneratedKeys, "CSRF_KEY")
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = randomKey()
		cfg.GeneratedKeys = append(cfg.GeneratedKeys, "JWT_SECRET")
	}

	return &cfg, nil
}

// IsProduction reports whether ENV is set to production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Brokers splits KAFKA_BROKERS on commas.
func (c *Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSOrigins)
}

// PostgresDSN builds a DSN from the DB_* variables unless DATABASE_URL is set.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func randomKey() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("config: read random key: %v", err))
	}
	return hex.EncodeToString(buf)
}
