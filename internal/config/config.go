// Package config reads the console's settings from the environment, after
// loading a .env file if one is present.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/hetulpatel/chroma-auditor/internal/kafka"
	"github.com/hetulpatel/chroma-auditor/internal/langflow"
)

const (
	defaultChromaURL  = "http://localhost:8000"
	defaultCollection = "langflow"
)

type Config struct {
	// ChromaPath is the server's persist directory (the storage root).
	ChromaPath        string
	ChromaURL         string
	DefaultCollection string
	ExportDir         string

	Langflow     langflow.Config
	UploadSettle time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	KafkaBrokers []string
	AuditTopic   string
}

// Load reads .env (missing is fine) and then the environment.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() Config {
	cfg := Config{
		ChromaPath:        envString("CHROMA_PATH", ""),
		ChromaURL:         envString("CHROMA_URL", defaultChromaURL),
		DefaultCollection: envString("DEFAULT_COLLECTION", defaultCollection),
		ExportDir:         envString("EXPORT_DIR", ""),
		UploadSettle:      envDuration("UPLOAD_SETTLE", 2*time.Second),
		RedisAddr:         envString("REDIS_ADDR", ""),
		RedisPassword:     envString("REDIS_PASSWORD", ""),
		RedisDB:           envInt("REDIS_DB", 0),
		RedisTTL:          envDuration("REDIS_TTL", 10*time.Minute),
		KafkaBrokers:      kafka.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		AuditTopic:        envString("AUDIT_TOPIC", kafka.DefaultAuditTopic),
	}
	cfg.Langflow = langflow.Config{
		BaseURL:              envString("LANGFLOW_URL", ""),
		Timeout:              envDuration("LANGFLOW_TIMEOUT", 300*time.Second),
		IngestionFlowID:      envString("INGESTION_FLOW_ID", ""),
		FileInputComponent:   envString("FILE_INPUT_COMPONENT", ""),
		ChatFlowID:           envString("CHAT_FLOW_ID", ""),
		ChatInputComponent:   envString("CHAT_INPUT_COMPONENT", ""),
		ChromaQueryComponent: envString("CHROMA_QUERY_COMPONENT", ""),
		PersistDir:           cfg.ChromaPath,
		Collection:           envString("INGESTION_FLOW_COLLECTION", cfg.DefaultCollection),
		NResults:             envInt("CHAT_N_RESULTS", 4),
	}
	return cfg
}

func envString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return def
}
