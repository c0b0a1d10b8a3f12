package subscriber

import (
	"testing"

	"github.com/buildingvitals/vitalstore/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxRetries != 3 {
		t.Errorf("expected MaxRetries=3, got %d", cfg.MaxRetries)
	}

	if cfg.BatchSize != 100 {
		t.Errorf("expected BatchSize=100, got %d", cfg.BatchSize)
	}
}

func TestNewSubscriber_Memory(t *testing.T) {
	cfg := config.IngestConfig{
		QueueType: "memory",
	}

	sub, err := NewSubscriber(cfg, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = sub.Close() }()

	_, ok := sub.(*MemorySubscriber)
	if !ok {
		t.Error("expected MemorySubscriber type")
	}
}

func TestNewSubscriber_MemoryUpperCase(t *testing.T) {
	cfg := config.IngestConfig{
		QueueType: "MEMORY",
	}

	sub, err := NewSubscriber(cfg, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = sub.Close() }()

	_, ok := sub.(*MemorySubscriber)
	if !ok {
		t.Error("expected MemorySubscriber type")
	}
}

func TestNewSubscriber_DefaultToNATS(t *testing.T) {
	cfg := config.IngestConfig{
		QueueType: "",
		URL:       "nats://invalid:4222",
	}

	_, err := NewSubscriber(cfg, DefaultConfig())
	if err == nil {
		t.Fatal("expected error for invalid NATS URL")
	}
}

func TestNewSubscriber_UnsupportedType(t *testing.T) {
	cfg := config.IngestConfig{
		QueueType: "unsupported",
	}

	_, err := NewSubscriber(cfg, DefaultConfig())
	if err == nil {
		t.Fatal("expected error for unsupported queue type")
	}
}

func TestNewSubscriber_Kafka(t *testing.T) {
	cfg := config.IngestConfig{
		QueueType:    "kafka",
		KafkaBrokers: []string{"localhost:9092"},
	}
	subCfg := Config{
		ConsumerGroup: "test-group",
	}

	sub, err := NewSubscriber(cfg, subCfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = sub.Close() }()

	_, ok := sub.(*KafkaSubscriber)
	if !ok {
		t.Error("expected KafkaSubscriber type")
	}
}

func TestNewSubscriber_KafkaEmptyBrokers(t *testing.T) {
	cfg := config.IngestConfig{
		QueueType:    "kafka",
		KafkaBrokers: []string{},
	}
	subCfg := Config{
		ConsumerGroup: "test-group",
	}

	_, err := NewSubscriber(cfg, subCfg)
	if err == nil {
		t.Fatal("expected error for empty Kafka brokers")
	}
}

func TestNewSubscriber_RedisInvalidAddr(t *testing.T) {
	cfg := config.IngestConfig{
		QueueType: "redis",
		URL:       "invalid:6379",
	}
	subCfg := Config{
		NodeID:        "node1",
		ConsumerGroup: "test-group",
	}

	_, err := NewSubscriber(cfg, subCfg)
	if err == nil {
		t.Fatal("expected error for invalid Redis address")
	}
}
