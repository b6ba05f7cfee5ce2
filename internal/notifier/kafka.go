package notifier

import (
	"context"
	"encoding/json"

	"cryptotracker/internal/logger"
	"cryptotracker/internal/models"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// TriggeredTopic carries one message per alert transition.
const TriggeredTopic = "alerts.triggered"

// KafkaNotifier publishes triggered-alert events to Kafka. The produce
// call is the fire-and-forget boundary the checker sees: delivery to
// the owner happens out of band in the notifier service.
type KafkaNotifier struct {
	producer *kafka.Producer
}

func NewKafkaNotifier(broker string) (*KafkaNotifier, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{"bootstrap.servers": broker})
	if err != nil {
		return nil, err
	}

	n := &KafkaNotifier{producer: p}
	go n.drainDeliveryReports()
	return n, nil
}

// drainDeliveryReports logs failed deliveries. Nothing is retried here;
// the trigger is already persisted and notification is best effort.
func (n *KafkaNotifier) drainDeliveryReports() {
	for e := range n.producer.Events() {
		if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			logger.Log.Error("Kafka delivery failed",
				zap.String("topic", *m.TopicPartition.Topic),
				zap.Error(m.TopicPartition.Error),
			)
		}
	}
}

// Notify enqueues the event for the notifier service.
func (n *KafkaNotifier) Notify(ctx context.Context, event models.TriggeredEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	topic := TriggeredTopic
	return n.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.AlertID),
		Value:          value,
	}, nil)
}

// Close flushes pending messages and shuts the producer down.
func (n *KafkaNotifier) Close() {
	n.producer.Flush(5000)
	n.producer.Close()
}
