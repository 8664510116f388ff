package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseBrokers(" a:9092, ,b:9092,"))
	assert.Empty(t, ParseBrokers(""))
}

func TestEnsureTopicWithoutBrokers(t *testing.T) {
	assert.Error(t, EnsureTopic(context.Background(), nil, DefaultAuditTopic))
}

func TestNewWriter(t *testing.T) {
	w := NewWriter([]string{"a:9092"}, "t")
	defer w.Close()
	assert.Equal(t, "t", w.Topic)
}
