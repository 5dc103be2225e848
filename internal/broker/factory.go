package broker

import (
	"fmt"

	"beacon/internal/config"
	"beacon/internal/logger"
)

// Enabled reports whether cfg selects a message broker. An empty type means
// the service only takes pushes over HTTP.
func Enabled(cfg config.BrokerConfig) bool {
	return cfg.Type != "" && cfg.Type != "none"
}

func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	switch cfg.Type {
	case "kafka":
		return NewKafkaProducer(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

func NewConsumer(cfg config.BrokerConfig, log logger.Logger) (Consumer, error) {
	switch cfg.Type {
	case "kafka":
		return NewKafkaConsumer(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
