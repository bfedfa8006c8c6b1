// Package kafka provides functionality for interacting with Apache Kafka message broker.
// It consumes scraped listings for ingestion and publishes match history events.
package kafka

import (
	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// DefaultBrokers is used when no broker list is configured.
var DefaultBrokers = []string{"localhost:9092"}

// SetupProducer initializes and configures a synchronous Kafka producer.
//
// The producer is configured with:
//   - Synchronous operation (waits for acknowledgment)
//   - 5MB maximum message size (for large listing batches)
//
// Returns:
//   - sarama.SyncProducer: A configured Kafka producer
//   - error: Any error creating the producer
func SetupProducer(brokers []string) (sarama.SyncProducer, error) {
	if len(brokers) == 0 {
		brokers = DefaultBrokers
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.MaxMessageBytes = 5 * 1024 * 1024

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	logrus.WithField("brokers", brokers).Info("Kafka producer initialized")
	return producer, nil
}
