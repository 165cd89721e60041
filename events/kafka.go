package events

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/warp/giftcert-engine/giftcert"
)

// DefaultTopic receives every event type unless a per-type topic is set.
const DefaultTopic = "giftcert.events"

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per event. The key is the certificate
// id, so all events of one certificate land on one partition in order.
type KafkaPublisher struct {
	writer       MessageWriter
	topic        string
	topicByEvent map[giftcert.EventType]string
}

func NewKafkaPublisher(brokers []string, topic string, topicByEvent map[giftcert.EventType]string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	return NewKafkaPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
	}, topic, topicByEvent), nil
}

// NewKafkaPublisherWithWriter uses an existing writer. The writer must not
// have a fixed Topic since each message names its own.
func NewKafkaPublisherWithWriter(w MessageWriter, topic string, topicByEvent map[giftcert.EventType]string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{writer: w, topic: topic, topicByEvent: topicByEvent}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event giftcert.Event) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}
	topic := p.topic
	if mapped, ok := p.topicByEvent[event.Type]; ok && mapped != "" {
		topic = mapped
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(event.CertificateID),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
