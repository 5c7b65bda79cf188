package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/kuhandran/Content-Hub-sub001/internal/cache"
)

type Config struct {
	HTTPAddr string `env:"CONTENTHUB_HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"CONTENTHUB_GRPC_ADDR" envDefault:":9090"` // empty disables gRPC

	// Content store
	Store       string        `env:"CONTENTHUB_STORE"        envDefault:"postgres"` // postgres | memory
	DatabaseURL string        `env:"CONTENTHUB_DATABASE_URL"`                       // required for postgres
	DBTimeout   time.Duration `env:"CONTENTHUB_DB_TIMEOUT"   envDefault:"5s"`

	// Filesystem source
	SourceRoot         string `env:"CONTENTHUB_SOURCE_ROOT"  envDefault:"./public"`
	WarmFromFilesystem bool   `env:"CONTENTHUB_WARM_FROM_FS" envDefault:"true"`

	// Cache
	CacheBackend string        `env:"CONTENTHUB_CACHE"             envDefault:"memory"` // redis | nats | memory | none
	RedisURL     string        `env:"CONTENTHUB_REDIS_URL"`
	CacheBucket  string        `env:"CONTENTHUB_CACHE_BUCKET"      envDefault:"contenthub"`
	ContentTTL   time.Duration `env:"CONTENTHUB_CACHE_CONTENT_TTL" envDefault:"1h"`
	MetaTTL      time.Duration `env:"CONTENTHUB_CACHE_META_TTL"    envDefault:"1h"`
	ListTTL      time.Duration `env:"CONTENTHUB_CACHE_LIST_TTL"    envDefault:"120s"`

	NATSURL string `env:"CONTENTHUB_NATS_URL"` // empty = no events

	// Auth: a static bearer token, HS256 JWTs, or both. Neither disables auth.
	AuthToken string `env:"CONTENTHUB_AUTH_TOKEN"`
	JWTSecret string `env:"CONTENTHUB_JWT_SECRET"`

	LogLevel  string `env:"CONTENTHUB_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"CONTENTHUB_LOG_FORMAT" envDefault:"text"` // text | json

	// Pump scheduling
	PumpInterval time.Duration `env:"CONTENTHUB_PUMP_INTERVAL" envDefault:"0s"` // 0 = disabled
	LockTTL      time.Duration `env:"CONTENTHUB_LOCK_TTL"      envDefault:"10m"`

	// Binary asset payloads in S3 (inline in the database when unset)
	AssetsS3Bucket    string `env:"CONTENTHUB_ASSETS_S3_BUCKET"`
	AssetsS3Endpoint  string `env:"CONTENTHUB_ASSETS_S3_ENDPOINT"`
	AssetsS3Region    string `env:"CONTENTHUB_ASSETS_S3_REGION"     envDefault:"us-east-1"`
	AssetsS3Prefix    string `env:"CONTENTHUB_ASSETS_S3_PREFIX"     envDefault:"assets"`
	AssetsS3AccessKey string `env:"CONTENTHUB_ASSETS_S3_ACCESS_KEY"`
	AssetsS3SecretKey string `env:"CONTENTHUB_ASSETS_S3_SECRET_KEY"`

	// Snapshot backups, written after each scheduled pump
	BackupS3Bucket   string `env:"CONTENTHUB_BACKUP_S3_BUCKET"` // enables S3 when set
	BackupS3Endpoint string `env:"CONTENTHUB_BACKUP_S3_ENDPOINT"`
	BackupS3Region   string `env:"CONTENTHUB_BACKUP_S3_REGION"  envDefault:"us-east-1"`
	BackupS3Key      string `env:"CONTENTHUB_BACKUP_S3_KEY"     envDefault:"contenthub/snapshot.jsonl"`
	BackupGitRepo    string `env:"CONTENTHUB_BACKUP_GIT_REPO"` // enables git when set; path to clone
	BackupGitFile    string `env:"CONTENTHUB_BACKUP_GIT_FILE"   envDefault:"content.jsonl"`
	BackupGitBranch  string `env:"CONTENTHUB_BACKUP_GIT_BRANCH" envDefault:"main"`
}

func Load() (*Config, error) {
	c := &Config{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("CONTENTHUB_DATABASE_URL is required when CONTENTHUB_STORE=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("CONTENTHUB_STORE: unknown store %q (want postgres or memory)", c.Store)
	}
	switch c.CacheBackend {
	case cache.BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("CONTENTHUB_REDIS_URL is required when CONTENTHUB_CACHE=redis")
		}
	case cache.BackendNATS:
		if c.NATSURL == "" {
			return fmt.Errorf("CONTENTHUB_NATS_URL is required when CONTENTHUB_CACHE=nats")
		}
	case cache.BackendMemory, cache.BackendNone:
	default:
		return fmt.Errorf("CONTENTHUB_CACHE: unknown backend %q", c.CacheBackend)
	}
	if c.PumpInterval < 0 {
		return fmt.Errorf("CONTENTHUB_PUMP_INTERVAL must not be negative")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// TTLs returns the configured cache TTLs.
func (c *Config) TTLs() cache.TTLs {
	return cache.TTLs{Content: c.ContentTTL, Meta: c.MetaTTL, List: c.ListTTL}
}

// CacheOptions returns the options for cache.Open.
func (c *Config) CacheOptions() cache.Options {
	return cache.Options{
		Backend:  c.CacheBackend,
		RedisURL: c.RedisURL,
		NATSURL:  c.NATSURL,
		Bucket:   c.CacheBucket,
		TTLs:     c.TTLs(),
	}
}

// Logger builds the process logger from LogLevel and LogFormat.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("CONTENTHUB_LOG_LEVEL: %w", err)
	}
	return l, nil
}
