package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers          []string
	SubmissionEventsTopic string

	// Object storage
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioUseSSL     bool
	MinioPublicBase string

	// Submission processing
	SubmissionWorkers    int
	QueueCapacity        int
	DequeueTimeout       time.Duration
	TaskDeadline         time.Duration
	CacheCleanupInterval time.Duration
	CacheRetention       time.Duration

	// Evaluation
	GroundTruthCacheTTL time.Duration
	GroundTruthTimeout  time.Duration
	NormalizerScheme    string

	// HTTP rate limiting
	RateLimitRPS   int
	RateLimitBurst int

	// Challenge catalog
	ChallengeCatalogPath string
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxUploadBytes: int64(getIntEnv("MAX_UPLOAD_BYTES", 16*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "pechabench"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "pechabench123"),
		PostgresDB:       getEnv("POSTGRES_DB", "pechabench"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:          getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		SubmissionEventsTopic: getEnv("SUBMISSION_EVENTS_TOPIC", "submission-events"),

		MinioEndpoint:   getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:  getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:  getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:     getEnv("MINIO_BUCKET", "pechabench-submissions"),
		MinioUseSSL:     getBoolEnv("MINIO_USE_SSL", false),
		MinioPublicBase: getEnv("MINIO_PUBLIC_BASE", ""),

		SubmissionWorkers:    getIntEnv("SUBMISSION_WORKERS", 2),
		QueueCapacity:        getIntEnv("QUEUE_CAPACITY", 256),
		DequeueTimeout:       getDuration("DEQUEUE_TIMEOUT", 5*time.Second),
		TaskDeadline:         getDuration("TASK_DEADLINE", 10*time.Minute),
		CacheCleanupInterval: getDuration("CACHE_CLEANUP_INTERVAL", 5*time.Minute),
		CacheRetention:       getDuration("CACHE_RETENTION", time.Hour),

		GroundTruthCacheTTL: getDuration("GROUND_TRUTH_CACHE_TTL", 15*time.Minute),
		GroundTruthTimeout:  getDuration("GROUND_TRUTH_TIMEOUT", 30*time.Second),
		NormalizerScheme:    getEnv("NORMALIZER_SCHEME", "default"),

		RateLimitRPS:   getIntEnv("RATE_LIMIT_RPS", 50),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 100),

		ChallengeCatalogPath: getEnv("CHALLENGE_CATALOG_PATH", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
