package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// NewConsumer connects a Kafka consumer to brokers.
func NewConsumer(brokers []string) (sarama.Consumer, error) {
	if len(brokers) == 0 {
		brokers = DefaultBrokers
	}

	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true

	return sarama.NewConsumer(brokers, config)
}

// Consume reads partition 0 of topic from the newest offset and passes every
// message to handler until ctx is cancelled. It returns once consumption has
// started.
func Consume(ctx context.Context, consumer sarama.Consumer, topic string, handler func(context.Context, []byte)) error {
	partitionConsumer, err := consumer.ConsumePartition(topic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("consume partition of %s: %w", topic, err)
	}

	logrus.WithField("topic", topic).Info("Started consuming from topic")
	go func() {
		defer partitionConsumer.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-partitionConsumer.Messages():
				if !ok {
					return
				}
				logrus.WithFields(logrus.Fields{
					"topic":  topic,
					"offset": msg.Offset,
				}).Debug("Received message")
				handler(ctx, msg.Value)
			case err, ok := <-partitionConsumer.Errors():
				if !ok {
					return
				}
				logrus.WithError(err).WithField("topic", topic).Error("Error consuming")
			}
		}
	}()
	return nil
}
