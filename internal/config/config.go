package config

import (
	"fmt"
	"time"

	"github.com/RishiKendai/paperlit/internal/configs/env"
)

const (
	StoreMongo  = "mongo"
	StoreSQLite = "sqlite"

	StorageLocal = "local"
	StorageS3    = "s3"

	// DemoAPIKey is the placeholder credential that keeps the similarity provider in simulated mode.
	DemoAPIKey = "demo_key"
)

// SimilarityConfig selects the external similarity provider variant at startup.
type SimilarityConfig struct {
	Enabled  bool
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// StorageConfig selects where uploaded document files live.
type StorageConfig struct {
	Type         string
	LocalPath    string
	S3Bucket     string
	S3Region     string
	AWSAccessKey string
	AWSSecretKey string
}

// Config holds all configuration for the application
type Config struct {
	// Document store
	StoreDriver string

	// MongoDB
	MongoURI    string
	MongoDBName string

	// SQLite
	SQLitePath string

	// Redis
	RedisHost               string
	RedisPassword           string
	RedisStreamKey          string
	RedisConsumerGroup      string
	RedisDeadLetterKey      string
	StreamRetentionDuration time.Duration

	// File storage
	Storage StorageConfig

	// External similarity
	Similarity SimilarityConfig

	// JWT
	JWTSecret string
	JWTIssuer string

	// Rate Limiting
	RateLimitRPS float64

	// Concurrency
	MaxConcurrentCompute int
	WorkerPoolSize       int

	// Computation
	ComputationTimeout time.Duration
	AsyncScoring       bool
	MaxUploadBytes     int64

	// Logging
	LogLevel  string
	LogFormat string

	// Server
	ServerPort  string
	MetricsPort string
}

func Load() (*Config, error) {
	cfg := &Config{}

	cfg.StoreDriver = env.GetEnv("STORE_DRIVER", StoreMongo)

	// MongoDB
	cfg.MongoURI = env.GetEnv("MONGO_URI", "")
	cfg.MongoDBName = env.GetEnv("MONGO_DB_NAME", "paperlit")

	// SQLite
	cfg.SQLitePath = env.GetEnv("SQLITE_PATH", "paperlit.db")

	// Redis
	cfg.RedisHost = env.GetEnv("REDIS_HOST", "localhost:6379")
	cfg.RedisPassword = env.GetEnv("REDIS_PASSWORD", "")
	cfg.RedisStreamKey = env.GetEnv("REDIS_STREAM_KEY", "originality:stream")
	cfg.RedisConsumerGroup = env.GetEnv("REDIS_CONSUMER_GROUP", "originality:group")
	cfg.RedisDeadLetterKey = env.GetEnv("REDIS_DEAD_LETTER_KEY", "originality:dlq")
	retentionHours := env.GetEnvInt("STREAM_RETENTION_DURATION", 24)
	cfg.StreamRetentionDuration = time.Duration(retentionHours) * time.Hour

	// File storage
	cfg.Storage = StorageConfig{
		Type:         env.GetEnv("STORAGE_TYPE", StorageLocal),
		LocalPath:    env.GetEnv("UPLOAD_FOLDER", "./uploads"),
		S3Bucket:     env.GetEnv("AWS_S3_BUCKET", ""),
		S3Region:     env.GetEnv("AWS_REGION", "us-east-1"),
		AWSAccessKey: env.GetEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey: env.GetEnv("AWS_SECRET_ACCESS_KEY", ""),
	}

	// External similarity
	cfg.Similarity = SimilarityConfig{
		Enabled:  env.GetEnvBool("SIMILARITY_ENABLED", true),
		Endpoint: env.GetEnv("AI_SIMILARITY_ENDPOINT", "https://api.example.com/similarity"),
		APIKey:   env.GetEnv("AI_SIMILARITY_API_KEY", DemoAPIKey),
		Timeout:  env.GetEnvDuration("SIMILARITY_TIMEOUT", 10*time.Second),
	}

	// JWT
	cfg.JWTSecret = env.GetEnv("JWT_SECRET", "")
	cfg.JWTIssuer = env.GetEnv("JWT_ISSUER", "paperlit")

	// Rate Limiting
	cfg.RateLimitRPS = env.GetEnvFloat("RATE_LIMIT_RPS", 10.0)

	// Concurrency
	cfg.MaxConcurrentCompute = env.GetEnvInt("MAX_CONCURRENT_COMPUTE", 5)
	cfg.WorkerPoolSize = env.GetEnvInt("WORKER_POOL_SIZE", 0)

	// Computation
	timeoutMinutes := env.GetEnvInt("COMPUTATION_TIMEOUT_MINUTES", 5)
	cfg.ComputationTimeout = time.Duration(timeoutMinutes) * time.Minute
	cfg.AsyncScoring = env.GetEnvBool("ASYNC_SCORING", true)
	cfg.MaxUploadBytes = env.GetEnvInt64("MAX_UPLOAD_BYTES", 10*1024*1024)

	// Logging
	cfg.LogLevel = env.GetEnv("LOG_LEVEL", "info")
	cfg.LogFormat = env.GetEnv("LOG_FORMAT", "json")

	// Server
	cfg.ServerPort = env.GetEnv("SERVER_PORT", "8080")
	cfg.MetricsPort = env.GetEnv("METRICS_PORT", "2112")

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required")
		}
		if c.MongoDBName == "" {
			return fmt.Errorf("MONGO_DB_NAME is required")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER: %s", c.StoreDriver)
	}
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	switch c.Storage.Type {
	case StorageLocal:
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("UPLOAD_FOLDER is required for local storage")
		}
	case StorageS3:
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("AWS_S3_BUCKET is required for s3 storage")
		}
	default:
		return fmt.Errorf("unknown STORAGE_TYPE: %s", c.Storage.Type)
	}
	if c.Similarity.Enabled && c.Similarity.Timeout <= 0 {
		return fmt.Errorf("SIMILARITY_TIMEOUT must be greater than 0")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.MaxConcurrentCompute <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_COMPUTE must be greater than 0")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be greater than 0")
	}
	if c.StreamRetentionDuration <= 0 {
		return fmt.Errorf("STREAM_RETENTION_DURATION must be greater than 0")
	}
	return nil
}
