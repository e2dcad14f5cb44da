package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

const defaultTopic = "kiosk.queue.events"

// Kafka publishes queue events to a Kafka topic. Records are keyed by
// patient ID so per-patient ordering survives partitioning.
type Kafka struct {
	client *kgo.Client
	topic  string
}

// NewKafka connects to the given seed brokers. An empty topic falls back
// to the default.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if topic == "" {
		topic = defaultTopic
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerLinger(10*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	return &Kafka{client: client, topic: topic}, nil
}

// Emit produces the event asynchronously. Delivery failures surface at
// Close time via the client's flush, not here; admission latency must not
// depend on broker round trips.
func (k *Kafka) Emit(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	k.client.Produce(ctx, &kgo.Record{
		Topic: k.topic,
		Key:   []byte(ev.PatientID),
		Value: payload,
	}, nil)
	return nil
}

// Close flushes buffered records and releases the client.
func (k *Kafka) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := k.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	k.client.Close()
	return nil
}
