package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Developerodin/admin-crm-demo-backend-sub001/awsclient"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/models"
	"go.uber.org/zap"
)

// Config holds all environment variables for the reporting service.
type Config struct {
	Port        string
	AppEnv      string
	MongoURL    string
	MongoDBName string
	RedisURL    string

	RequestTimeout     time.Duration
	BulkRequestTimeout time.Duration

	BulkDefaultBatchSize int
	BulkDeleteBatchSize  int
	BulkMaxConcurrency   int
	BulkMaxInflight      int
	BulkQueueWait        time.Duration
	BulkJobTTL           time.Duration

	RateLimitPerMinute int
	RateLimitBurst     int

	CloudWatchEnabled   bool
	CloudWatchNamespace string
	UseSecrets          bool
}

// secretLoader is satisfied by awsclient.SecretsClient
type secretLoader interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// LoadConfig loads environment variables into Config and validates them.
// If AWS_USE_SECRETS=true the Mongo URL is read from Secrets Manager,
// falling back to MONGO_URL on failure.
func LoadConfig() (*Config, error) {
	cfg, err := configFromEnv()
	if err != nil {
		return nil, err
	}

	if cfg.UseSecrets {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if awsCfg, err := awsclient.LoadAWSConfig(ctx); err == nil {
			applySecrets(ctx, cfg, awsclient.NewSecretsClient(awsCfg))
		} else {
			zap.L().Warn("AWS config unavailable, using environment secrets", zap.Error(err))
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configFromEnv() (*Config, error) {
	var errs []string
	intVar := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}
	durVar := func(key string, def time.Duration) time.Duration {
		v, err := getEnvDuration(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8085"),
		AppEnv:      getEnv("APP_ENV", "development"),
		MongoURL:    os.Getenv("MONGO_URL"),
		MongoDBName: getEnv("MONGO_DB_NAME", "reporting"),
		RedisURL:    getEnv("REDIS_URL", "redis://redis:6379"),

		RequestTimeout:     durVar("REQUEST_TIMEOUT", 30*time.Second),
		BulkRequestTimeout: durVar("BULK_REQUEST_TIMEOUT", 5*time.Minute),

		BulkDefaultBatchSize: intVar("BULK_DEFAULT_BATCH_SIZE", models.DefaultBatchSize),
		BulkDeleteBatchSize:  intVar("BULK_DELETE_BATCH_SIZE", models.DefaultBatchSize),
		BulkMaxConcurrency:   intVar("BULK_MAX_CONCURRENCY", 1),
		BulkMaxInflight:      intVar("BULK_MAX_INFLIGHT", 4),
		BulkQueueWait:        durVar("BULK_QUEUE_WAIT", 10*time.Second),
		BulkJobTTL:           durVar("BULK_JOB_TTL", 24*time.Hour),

		RateLimitPerMinute: intVar("RATE_LIMIT_PER_MINUTE", 120),
		RateLimitBurst:     intVar("RATE_LIMIT_BURST", 60),

		CloudWatchEnabled:   getEnvBool("CLOUDWATCH_ENABLED", false),
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "Reporting"),
		UseSecrets:          getEnvBool("AWS_USE_SECRETS", false),
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func applySecrets(ctx context.Context, cfg *Config, sm secretLoader) {
	if url, err := sm.GetSecret(ctx, "reporting/MONGO_URL"); err == nil && url != "" {
		cfg.MongoURL = url
	} else if err != nil {
		zap.L().Warn("Failed to read MONGO_URL secret, using environment", zap.Error(err))
	}
}

func (c *Config) validate() error {
	if c.MongoURL == "" {
		return fmt.Errorf("MONGO_URL is required")
	}
	if c.BulkDefaultBatchSize < models.MinBatchSize || c.BulkDefaultBatchSize > models.MaxBatchSize {
		return fmt.Errorf("BULK_DEFAULT_BATCH_SIZE must be between %d and %d", models.MinBatchSize, models.MaxBatchSize)
	}
	if c.BulkDeleteBatchSize < models.MinBatchSize || c.BulkDeleteBatchSize > models.MaxBatchSize {
		return fmt.Errorf("BULK_DELETE_BATCH_SIZE must be between %d and %d", models.MinBatchSize, models.MaxBatchSize)
	}
	if c.BulkMaxConcurrency < 1 {
		return fmt.Errorf("BULK_MAX_CONCURRENCY must be at least 1")
	}
	if c.BulkMaxInflight < 1 {
		return fmt.Errorf("BULK_MAX_INFLIGHT must be at least 1")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return defaultVal, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil {
		return defaultVal, fmt.Errorf("%s must be a duration like 30s or 5m", key)
	}
	return d, nil
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(strings.TrimSpace(val))
	if err != nil {
		return defaultVal
	}
	return b
}
