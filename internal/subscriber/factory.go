package subscriber

import (
	"fmt"
	"strings"

	"github.com/buildingvitals/vitalstore/internal/config"
	"github.com/buildingvitals/vitalstore/internal/utils"
)

// NewSubscriber creates a Subscriber from the ingest configuration
func NewSubscriber(cfg config.IngestConfig, subCfg Config) (Subscriber, error) {
	queueType := utils.QueueType(strings.ToLower(cfg.QueueType))

	// Default to NATS if not specified
	if queueType == "" {
		queueType = utils.QueueTypeNATS
	}

	switch queueType {
	case utils.QueueTypeNATS:
		return NewNATSSubscriber(cfg.URL, subCfg.NodeID, subCfg.ConsumerGroup)
	case utils.QueueTypeRedis:
		addr := cfg.URL
		if addr == "" {
			addr = "localhost:6379"
		}
		streamPrefix := cfg.RedisStream
		if streamPrefix == "" {
			streamPrefix = "vitals"
		}
		return NewRedisSubscriber(addr, cfg.Password, cfg.RedisDB, streamPrefix, subCfg.ConsumerGroup, subCfg.NodeID)
	case utils.QueueTypeKafka:
		return NewKafkaSubscriber(cfg.KafkaBrokers, subCfg.ConsumerGroup)
	case utils.QueueTypeMemory:
		return NewMemorySubscriber()
	default:
		return nil, fmt.Errorf("unsupported queue type: %s", queueType)
	}
}
