// Package audit publishes a record of every destructive console operation to
// Kafka. A nil *Publisher accepts events and drops them.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/hetulpatel/chroma-auditor/internal/kafka"
)

type Action string

const (
	ActionDeleteOrphans    Action = "delete_orphans"
	ActionDeleteCollection Action = "delete_collection"
	ActionCreateCollection Action = "create_collection"
	ActionResetCollection  Action = "reset_collection"
	ActionDeleteEntries    Action = "delete_entries"
)

type Event struct {
	Action     Action    `json:"action"`
	StorageDir string    `json:"storage_dir,omitempty"`
	Collection string    `json:"collection,omitempty"`
	Targets    []string  `json:"targets,omitempty"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Detail     string    `json:"detail,omitempty"`
	At         time.Time `json:"at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
}

// NewPublisher returns nil when no brokers are configured.
func NewPublisher(brokers []string, topic string) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	if topic == "" {
		topic = kafka.DefaultAuditTopic
	}
	return &Publisher{writer: kafka.NewWriter(brokers, topic)}
}

func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if p == nil || p.writer == nil {
		return nil
	}
	msg, err := encode(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encode(ev Event) (kafkago.Message, error) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("marshal audit event %s: %w", ev.Action, err)
	}
	key := ev.Collection
	if key == "" {
		key = ev.StorageDir
	}
	return kafkago.Message{Key: []byte(key), Value: payload, Time: ev.At}, nil
}
