package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// MinInstanceBudget is the smallest resource allocation the substrate accepts for a new instance.
const MinInstanceBudget uint64 = 500_000_000_000

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Router   RouterConfig
	Tenant   TenantConfig
}

// StoreConfig locates the durable map store file.
type StoreConfig struct {
	Path string
}

type DatabaseConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	CacheTTL time.Duration
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RouterConfig drives the provisioning orchestrator and registry maintenance.
type RouterConfig struct {
	Identity            string
	Admins              []string
	InstanceBudget      uint64
	InspectionInterval  time.Duration
	CompensationWorkers int
	CompensationRetries int
	CompensationDelay   time.Duration
}

// TenantConfig carries the initialization arguments of a tenant instance.
type TenantConfig struct {
	ID                  string
	AdminPrincipal      string
	VerificationTTL     time.Duration
	ExpirySweepInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Store = StoreConfig{Path: v.GetString("STORE_PATH")}

	cfg.Database = DatabaseConfig{
		Enabled:      v.GetBool("AUDIT_DB_ENABLED"),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("CACHE_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		CacheTTL: parseDuration(v.GetString("CACHE_TTL"), 10*time.Minute),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Router = RouterConfig{
		Identity:            v.GetString("ROUTER_IDENTITY"),
		Admins:              splitAndTrim(v.GetString("ROUTER_ADMINS")),
		InstanceBudget:      v.GetUint64("ROUTER_INSTANCE_BUDGET"),
		InspectionInterval:  parseDuration(v.GetString("ROUTER_INSPECTION_INTERVAL"), 15*time.Minute),
		CompensationWorkers: v.GetInt("ROUTER_COMPENSATION_WORKERS"),
		CompensationRetries: v.GetInt("ROUTER_COMPENSATION_RETRIES"),
		CompensationDelay:   parseDuration(v.GetString("ROUTER_COMPENSATION_DELAY"), 5*time.Second),
	}

	cfg.Tenant = TenantConfig{
		ID:                  v.GetString("TENANT_ID"),
		AdminPrincipal:      v.GetString("TENANT_ADMIN_PRINCIPAL"),
		VerificationTTL:     parseDuration(v.GetString("TENANT_VERIFICATION_TTL"), time.Hour),
		ExpirySweepInterval: parseDuration(v.GetString("TENANT_EXPIRY_SWEEP_INTERVAL"), 10*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.Router.InstanceBudget < MinInstanceBudget {
		return fmt.Errorf("ROUTER_INSTANCE_BUDGET %d below minimum %d", c.Router.InstanceBudget, MinInstanceBudget)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("STORE_PATH", "./data/lms.db")

	v.SetDefault("AUDIT_DB_ENABLED", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "lms_audit")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", "10m")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "lms-platform")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ROUTER_IDENTITY", "router")
	v.SetDefault("ROUTER_ADMINS", "")
	v.SetDefault("ROUTER_INSTANCE_BUDGET", uint64(900_000_000_000))
	v.SetDefault("ROUTER_INSPECTION_INTERVAL", "15m")
	v.SetDefault("ROUTER_COMPENSATION_WORKERS", 1)
	v.SetDefault("ROUTER_COMPENSATION_RETRIES", 3)
	v.SetDefault("ROUTER_COMPENSATION_DELAY", "5s")

	v.SetDefault("TENANT_ID", "")
	v.SetDefault("TENANT_ADMIN_PRINCIPAL", "")
	v.SetDefault("TENANT_VERIFICATION_TTL", "1h")
	v.SetDefault("TENANT_EXPIRY_SWEEP_INTERVAL", "10m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
