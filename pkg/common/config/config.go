package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64
	RateLimitRPS   int
	RateLimitBurst int

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// RecordsEnabled turns off the patient record routes and run history.
	RecordsEnabled          bool
	PostgresMaxOpenConns    int
	PostgresMaxIdleConns    int
	PostgresConnMaxLifetime time.Duration
	StartupTimeout          time.Duration

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisTimeout  time.Duration

	// Kafka
	KafkaBrokers     []string
	KafkaEventsTopic string
	EventsEnabled    bool
	EventTimeout     time.Duration

	// Model
	ArtifactDir  string
	ModelName    string
	TargetColumn string

	// Lexicon used by the note analyzer
	LexiconPath         string
	LexiconSource       string
	LexiconTokenURL     string
	LexiconClientID     string
	LexiconClientSecret string
	LexiconFetchTimeout time.Duration
	NoteCacheSize       int

	// Feature Store
	FeatureCacheEnabled bool
	FeatureCacheTTL     time.Duration

	// Privacy
	DLPRulesPath string
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),
		RateLimitRPS:   getIntEnv("RATE_LIMIT_RPS", 50),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 100),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "clinical"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "clinical123"),
		PostgresDB:       getEnv("POSTGRES_DB", "clinical_insights"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RecordsEnabled:          getBoolEnv("RECORDS_ENABLED", true),
		PostgresMaxOpenConns:    getIntEnv("POSTGRES_MAX_OPEN_CONNS", 20),
		PostgresMaxIdleConns:    getIntEnv("POSTGRES_MAX_IDLE_CONNS", 5),
		PostgresConnMaxLifetime: getDuration("POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
		StartupTimeout:          getDuration("STARTUP_TIMEOUT", 10*time.Second),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		RedisTimeout:  getDuration("REDIS_TIMEOUT", 2*time.Second),

		KafkaBrokers:     getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaEventsTopic: getEnv("KAFKA_EVENTS_TOPIC", "clinical-insights"),
		EventsEnabled:    getBoolEnv("EVENTS_ENABLED", true),
		EventTimeout:     getDuration("EVENT_TIMEOUT", 5*time.Second),

		ArtifactDir:  getEnv("ARTIFACT_DIR", "./artifacts"),
		ModelName:    getEnv("MODEL_NAME", "complication"),
		TargetColumn: getEnv("TARGET_COLUMN", "complication"),

		LexiconPath:         getEnv("LEXICON_PATH", "./models/lexicon/pt_clinical.yaml"),
		LexiconSource:       getEnv("LEXICON_SOURCE", "bundled"),
		LexiconTokenURL:     getEnv("LEXICON_TOKEN_URL", ""),
		LexiconClientID:     getEnv("LEXICON_CLIENT_ID", ""),
		LexiconClientSecret: getEnv("LEXICON_CLIENT_SECRET", ""),
		LexiconFetchTimeout: getDuration("LEXICON_FETCH_TIMEOUT", 30*time.Second),
		NoteCacheSize:       getIntEnv("NOTE_CACHE_SIZE", 512),

		FeatureCacheEnabled: getBoolEnv("FEATURE_CACHE_ENABLED", true),
		FeatureCacheTTL:     getDuration("FEATURE_CACHE_TTL", 5*time.Minute),

		DLPRulesPath: getEnv("DLP_RULES_PATH", ""),
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
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
