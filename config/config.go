package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DBHost                   string
	DBPort                   string
	DBUser                   string
	DBPass                   string
	DBName                   string
	DBNameTest               string
	RedisHost                string
	RedisPort                string
	RedisPassword            string
	RedisDB                  int
	StorageBackend           string
	FSRoot                   string
	MinioHost                string
	MinioPort                string
	MinioUsername            string
	MinioPassword            string
	BucketName               string
	BucketNameTest           string
	RabbitMQURL              string
	RabbitMQHost             string
	RabbitMQPort             string
	RabbitMQUser             string
	RabbitMQPass             string
	RabbitMQVhost            string
	RabbitMQPrefetch         int
	ReclaimAsync             bool
	ReclaimWorkerConcurrency int
	ReclaimRate              float64
	ReclaimBurst             int
	ReclaimRetryMax          int
	ReclaimRetryDelays       []time.Duration
	SweepInterval            time.Duration
	OrphanGracePeriod        time.Duration
}

var AppConfig Config

// getEnv returns the environment value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if value == "" {
		return defaultValue
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvDurationList(key string, defaultValue []time.Duration) []time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	parts := strings.Split(raw, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		parsed, err := time.ParseDuration(part)
		if err != nil {
			return defaultValue
		}
		out = append(out, parsed)
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// InitConfig loads configuration from the environment.
func InitConfig() {
	rabbitHost := getEnv("RABBITMQ_HOST", "localhost")
	rabbitPort := getEnv("RABBITMQ_PORT", "5672")
	rabbitUser := getEnv("RABBITMQ_USER", "guest")
	rabbitPass := getEnv("RABBITMQ_PASSWORD", "guest")
	rabbitVhost := getEnv("RABBITMQ_VHOST", "/")
	rabbitURL := getEnv("RABBITMQ_URL", "")
	if rabbitURL == "" {
		rabbitURL = fmt.Sprintf(
			"amqp://%s:%s@%s:%s/%s",
			url.PathEscape(rabbitUser),
			url.PathEscape(rabbitPass),
			rabbitHost,
			rabbitPort,
			url.PathEscape(rabbitVhost),
		)
	}
	retryDelays := getEnvDurationList(
		"RECLAIM_RETRY_DELAYS",
		[]time.Duration{10 * time.Second, 30 * time.Second, 2 * time.Minute, 10 * time.Minute, 30 * time.Minute},
	)
	AppConfig = Config{
		DBHost:                   getEnv("DB_HOST", "localhost"),
		DBPort:                   getEnv("DB_PORT", "3306"),
		DBUser:                   getEnv("DB_USER", "root"),
		DBPass:                   getEnv("DB_PASS", "root"),
		DBName:                   getEnv("DB_NAME", "DedupVault"),
		DBNameTest:               getEnv("DB_NAME_TEST", "DedupVault_Test"),
		RedisHost:                getEnv("REDIS_HOST", "localhost"),
		RedisPort:                getEnv("REDIS_PORT", "6379"),
		RedisPassword:            getEnv("REDIS_PASSWORD", ""),
		RedisDB:                  0,
		StorageBackend:           getEnv("STORAGE_BACKEND", "minio"),
		FSRoot:                   getEnv("FS_ROOT", "./data"),
		MinioHost:                getEnv("MINIO_HOST", "localhost"),
		MinioPort:                getEnv("MINIO_PORT", "9000"),
		MinioUsername:            getEnv("MINIO_USERNAME", "minioadmin"),
		MinioPassword:            getEnv("MINIO_PASSWORD", "minioadmin"),
		BucketName:               getEnv("BUCKET_NAME", "dedup-vault"),
		BucketNameTest:           getEnv("BUCKET_NAME_TEST", "dedup-vault-test"),
		RabbitMQURL:              rabbitURL,
		RabbitMQHost:             rabbitHost,
		RabbitMQPort:             rabbitPort,
		RabbitMQUser:             rabbitUser,
		RabbitMQPass:             rabbitPass,
		RabbitMQVhost:            rabbitVhost,
		RabbitMQPrefetch:         getEnvInt("RABBITMQ_PREFETCH", 8),
		ReclaimAsync:             getEnvBool("RECLAIM_ASYNC", true),
		ReclaimWorkerConcurrency: getEnvInt("RECLAIM_WORKER_CONCURRENCY", 4),
		ReclaimRate:              getEnvFloat("RECLAIM_RATE", 16),
		ReclaimBurst:             getEnvInt("RECLAIM_BURST", 32),
		ReclaimRetryMax:          getEnvInt("RECLAIM_RETRY_MAX", 5),
		ReclaimRetryDelays:       retryDelays,
		SweepInterval:            getEnvDuration("SWEEP_INTERVAL", time.Hour),
		OrphanGracePeriod:        getEnvDuration("ORPHAN_GRACE_PERIOD", time.Hour),
	}
}
