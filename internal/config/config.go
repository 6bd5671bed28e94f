package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings sourced from environment variables.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Intake   IntakeConfig   `mapstructure:"intake"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port           int    `mapstructure:"port"`
	InternalSecret string `mapstructure:"internal_secret"`
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns host:port for go-redis and asynq.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	PublicEndpoint   string `mapstructure:"public_endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	BucketLookup     string `mapstructure:"bucket_lookup"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

// StorageConfig selects the object storage backend.
type StorageConfig struct {
	Backend  string        `mapstructure:"backend"`
	LocalDir string        `mapstructure:"local_dir"`
	LinkTTL  time.Duration `mapstructure:"link_ttl"`
}

// IntakeConfig controls attachment handling during the intake flow.
type IntakeConfig struct {
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
	ClamdAddress   string `mapstructure:"clamd_address"`
}

// AdminConfig contains the operator allow-list and console limits.
type AdminConfig struct {
	OperatorIDs string `mapstructure:"operator_ids"`
	PageSize    int    `mapstructure:"page_size"`
	LogLimit    int    `mapstructure:"log_limit"`
}

// Operators parses the comma-separated allow-list.
func (a AdminConfig) Operators() ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(a.OperatorIDs, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse operator id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// NotifyConfig toggles the asynq-backed notifier.
type NotifyConfig struct {
	Queued bool `mapstructure:"queued"`
}

// GatewayConfig contains settings for the chat gateway websocket.
type GatewayConfig struct {
	TokenSecret string        `mapstructure:"token_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "resumedesk")
	v.SetDefault("database.user", "resumedesk")
	v.SetDefault("database.password", "resumedesk")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.public_endpoint", "http://localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "resumedesk")
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("storage.backend", "minio")
	v.SetDefault("storage.local_dir", "./data")
	v.SetDefault("storage.link_ttl", 24*time.Hour)
	v.SetDefault("intake.max_upload_bytes", int64(200<<20))
	v.SetDefault("admin.page_size", 10)
	v.SetDefault("admin.log_limit", 500)
	v.SetDefault("notify.queued", false)
	v.SetDefault("gateway.token_ttl", 12*time.Hour)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                 "API_PORT",
		"api.internal_secret":      "INTERNAL_API_SECRET",
		"database.host":            "DATABASE_HOST",
		"database.port":            "DATABASE_PORT",
		"database.name":            "POSTGRES_DB",
		"database.user":            "POSTGRES_USER",
		"database.password":        "POSTGRES_PASSWORD",
		"database.sslmode":         "DATABASE_SSLMODE",
		"redis.host":               "REDIS_HOST",
		"redis.port":               "REDIS_PORT",
		"minio.endpoint":           "MINIO_ENDPOINT",
		"minio.public_endpoint":    "MINIO_PUBLIC_ENDPOINT",
		"minio.access_key_id":      "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":  "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":            "MINIO_USE_SSL",
		"minio.bucket":             "MINIO_BUCKET",
		"minio.region":             "MINIO_REGION",
		"minio.bucket_lookup":      "MINIO_BUCKET_LOOKUP",
		"minio.auto_create_bucket": "MINIO_AUTO_CREATE_BUCKET",
		"storage.backend":          "STORAGE_BACKEND",
		"storage.local_dir":        "STORAGE_LOCAL_DIR",
		"storage.link_ttl":         "STORAGE_LINK_TTL",
		"intake.max_upload_bytes":  "MAX_UPLOAD_BYTES",
		"intake.clamd_address":     "CLAMD_ADDRESS",
		"admin.operator_ids":       "OPERATOR_IDS",
		"admin.page_size":          "ADMIN_PAGE_SIZE",
		"admin.log_limit":          "ADMIN_LOG_LIMIT",
		"notify.queued":            "NOTIFY_QUEUED",
		"gateway.token_secret":     "GATEWAY_TOKEN_SECRET",
		"gateway.token_ttl":        "GATEWAY_TOKEN_TTL",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	switch cfg.Storage.Backend {
	case "minio":
		if cfg.MinIO.Endpoint == "" {
			return errors.New("minio endpoint is required")
		}
		if cfg.MinIO.AccessKeyID == "" {
			return errors.New("minio access key id is required")
		}
		if cfg.MinIO.SecretAccessKey == "" {
			return errors.New("minio secret access key is required")
		}
		if cfg.MinIO.Bucket == "" {
			return errors.New("minio bucket is required")
		}
	case "local":
		if cfg.Storage.LocalDir == "" {
			return errors.New("storage local dir is required")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if cfg.Intake.MaxUploadBytes <= 0 {
		return errors.New("max upload bytes must be positive")
	}
	ops, err := cfg.Admin.Operators()
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return errors.New("at least one operator id is required")
	}
	if cfg.Admin.PageSize <= 0 {
		return errors.New("admin page size must be positive")
	}
	return nil
}
