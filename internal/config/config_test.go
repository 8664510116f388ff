package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"CHROMA_PATH", "CHROMA_URL", "DEFAULT_COLLECTION", "KAFKA_BROKERS", "REDIS_DB", "UPLOAD_SETTLE", "INGESTION_FLOW_COLLECTION", "AUDIT_TOPIC"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	assert.Equal(t, "http://localhost:8000", cfg.ChromaURL)
	assert.Equal(t, "langflow", cfg.DefaultCollection)
	assert.Equal(t, "langflow", cfg.Langflow.Collection)
	assert.Equal(t, 2*time.Second, cfg.UploadSettle)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "chroma.audit", cfg.AuditTopic)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CHROMA_PATH", "/data/chroma")
	t.Setenv("DEFAULT_COLLECTION", "docs")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("UPLOAD_SETTLE", "500ms")
	t.Setenv("CHAT_N_RESULTS", "not-a-number")

	cfg := FromEnv()
	assert.Equal(t, "/data/chroma", cfg.ChromaPath)
	assert.Equal(t, "/data/chroma", cfg.Langflow.PersistDir)
	assert.Equal(t, "docs", cfg.Langflow.Collection)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 500*time.Millisecond, cfg.UploadSettle)
	assert.Equal(t, 4, cfg.Langflow.NResults)
}
