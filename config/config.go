package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Admin      AdminConfig
	CORS       CORSConfig
	Cart       CartConfig
	Checkout   CheckoutConfig
	Storefront StorefrontConfig
	Scheduler  SchedulerConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
}

type LogConfig struct {
	Level  string
	Format string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

// AdminConfig is the single operator account. PasswordHash is a bcrypt hash;
// admin login is disabled while it is empty.
type AdminConfig struct {
	Email        string
	PasswordHash string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// Cart store backends.
const (
	StoreMemory = "memory"
	StorePebble = "pebble"
	StoreRedis  = "redis"
)

type CartConfig struct {
	Store          string // memory, pebble, redis
	SnapshotKey    string
	PebbleDir      string
	SnapshotTTL    time.Duration // redis only, 0 keeps snapshots forever
	PersistTimeout time.Duration
	FollowChanges  bool
	SessionIdle    time.Duration // idle sessions are dropped from memory after this
}

// Catalog failure policies.
const (
	CatalogFailureHard = "hard"
	CatalogFailureSkip = "skip"
)

type CheckoutConfig struct {
	AbortOnAdjustment bool
	CatalogFailure    string // hard, skip
	SubmitTimeout     time.Duration
}

type StorefrontConfig struct {
	ShippingFee     decimal.Decimal
	TaxRate         decimal.Decimal
	CurrencySymbol  string
	Locale          string
	CatalogCacheTTL time.Duration
}

type SchedulerConfig struct {
	ReconcileSpec string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", ""),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "1234"),
			DBName:   getEnv("DB_NAME", "whimsical"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt(getEnv("REDIS_DB", "0"), 0),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-secret-key"),
			Expiry: parseDuration(getEnv("JWT_EXPIRY", "12h"), 12*time.Hour),
		},
		Admin: AdminConfig{
			Email:        strings.ToLower(strings.TrimSpace(getEnv("ADMIN_EMAIL", "admin@whimsical.local"))),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		},
		Cart: CartConfig{
			Store:          strings.ToLower(getEnv("CART_STORE", StoreMemory)),
			SnapshotKey:    getEnv("CART_SNAPSHOT_KEY", "whimsical-cart-v1"),
			PebbleDir:      getEnv("CART_PEBBLE_DIR", "./data/cart"),
			SnapshotTTL:    parseDuration(getEnv("CART_SNAPSHOT_TTL", "0s"), 0),
			PersistTimeout: parseDuration(getEnv("CART_PERSIST_TIMEOUT", "2s"), 2*time.Second),
			FollowChanges:  parseBool(getEnv("CART_FOLLOW_CHANGES", "true"), true),
			SessionIdle:    parseDuration(getEnv("CART_SESSION_IDLE", "24h"), 24*time.Hour),
		},
		Checkout: CheckoutConfig{
			AbortOnAdjustment: parseBool(getEnv("CHECKOUT_ABORT_ON_ADJUSTMENT", "true"), true),
			CatalogFailure:    strings.ToLower(getEnv("CHECKOUT_CATALOG_FAILURE", CatalogFailureHard)),
			SubmitTimeout:     parseDuration(getEnv("CHECKOUT_SUBMIT_TIMEOUT", "15s"), 15*time.Second),
		},
		Storefront: StorefrontConfig{
			ShippingFee:     parseDecimal(getEnv("STORE_SHIPPING_FEE", "350"), decimal.NewFromInt(350)),
			TaxRate:         parseDecimal(getEnv("STORE_TAX_RATE", "0.08"), decimal.RequireFromString("0.08")),
			CurrencySymbol:  getEnv("STORE_CURRENCY_SYMBOL", "₱"),
			Locale:          getEnv("STORE_LOCALE", "en-PH"),
			CatalogCacheTTL: parseDuration(getEnv("CATALOG_CACHE_TTL", "5m"), 5*time.Minute),
		},
		Scheduler: SchedulerConfig{
			ReconcileSpec: getEnv("RECONCILE_CRON", "@every 5m"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	switch c.Cart.Store {
	case StoreMemory, StorePebble, StoreRedis:
	default:
		return fmt.Errorf("unknown CART_STORE %q", c.Cart.Store)
	}
	switch c.Checkout.CatalogFailure {
	case CatalogFailureHard, CatalogFailureSkip:
	default:
		return fmt.Errorf("unknown CHECKOUT_CATALOG_FAILURE %q", c.Checkout.CatalogFailure)
	}
	if c.Storefront.TaxRate.IsNegative() || c.Storefront.ShippingFee.IsNegative() {
		return fmt.Errorf("shipping fee and tax rate must not be negative")
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		log.Printf("Invalid boolean %s, using default %t", s, fallback)
		return fallback
	}
	return b
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("Invalid integer %s, using default %d", s, fallback)
		return fallback
	}
	return n
}

func parseDecimal(s string, fallback decimal.Decimal) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		log.Printf("Invalid decimal %s, using default %s", s, fallback)
		return fallback
	}
	return d
}

func parseSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
