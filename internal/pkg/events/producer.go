// Job lifecycle event publishing. Events are fire-and-forget telemetry; when
// no broker is reachable the producer degrades to a logging mock so the
// service keeps working without Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/slurpey/anvilizer/internal/entity"
)

// JobEvent is one lifecycle transition of a processing job.
type JobEvent struct {
	JobID    string           `json:"job_id"`
	Kind     entity.JobKind   `json:"kind"`
	Status   entity.JobStatus `json:"status"`
	Error    string           `json:"error,omitempty"`
	Duration time.Duration    `json:"duration_ms,omitempty"`
	At       time.Time        `json:"at"`
}

type Producer interface {
	Publish(event JobEvent) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
	topic  string
}

func NewProducer(brokers, topic string) Producer {
	if topic == "" {
		topic = "anvil-jobs"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", brokers)
	if err != nil {
		logrus.Warnf("Kafka connection failed: %v, using mock producer", err)
		return &mockProducer{}
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		logrus.Infof("Could not create topic (might already exist): %v", err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	logrus.Infof("Kafka producer connected to %s, topic %s", brokers, topic)
	return &kafkaProducer{writer: writer, topic: topic}
}

func (p *kafkaProducer) Publish(event JobEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.JobID),
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		logrus.Errorf("Failed to publish job event: %v", err)
	}
	return err
}

func (p *kafkaProducer) Close() error {
	return p.writer.Close()
}

// mockProducer keeps the service running without a broker.
type mockProducer struct{}

func (m *mockProducer) Publish(event JobEvent) error {
	logrus.Debugf("MOCK event: job %s -> %s", event.JobID, event.Status)
	return nil
}

func (m *mockProducer) Close() error { return nil }
