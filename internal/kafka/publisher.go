package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
)

// HistoryPublisher sends committed match history entries to a topic, keyed by
// receipt id.
type HistoryPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewHistoryPublisher returns a publisher writing to topic.
func NewHistoryPublisher(producer sarama.SyncProducer, topic string) *HistoryPublisher {
	return &HistoryPublisher{producer: producer, topic: topic}
}

// PublishHistory sends each entry as a JSON message.
func (h *HistoryPublisher) PublishHistory(ctx context.Context, entries ...models.MatchHistoryEntry) error {
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal history %d: %w", e.ID, err)
		}
		_, _, err = h.producer.SendMessage(&sarama.ProducerMessage{
			Topic: h.topic,
			Key:   sarama.StringEncoder(e.ReceiptID),
			Value: sarama.ByteEncoder(payload),
		})
		if err != nil {
			return fmt.Errorf("send history %d: %w", e.ID, err)
		}
	}
	return nil
}
