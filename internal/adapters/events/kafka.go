// Package events publica los eventos de liquidación en Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/wagerbot/internal/domain"
	"github.com/segmentio/kafka-go"
)

// DefaultTopic es el tópico por defecto de los eventos de liquidación.
const DefaultTopic = "wagerbot.settlements"

// messageWriter es la parte de *kafka.Writer que usamos.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implementa ports.SettlementPublisher.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher crea un publisher para topic. El tópico se crea al
// primer write si el broker lo permite.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("events.NewKafkaPublisher: no brokers configured")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // mismo wager → misma partición
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
	}
	return &KafkaPublisher{writer: w, topic: topic}, nil
}

// newWithWriter es para tests.
func newWithWriter(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic}
}

// PublishSettlement serializa el evento en JSON; la clave es el wager id.
func (p *KafkaPublisher) PublishSettlement(ctx context.Context, ev domain.SettlementEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events.PublishSettlement: marshal: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.WagerID),
		Value: value,
		Time:  ev.At,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events.PublishSettlement %s: %w", ev.WagerID, err)
	}

	slog.Debug("events: settlement published", "wager_id", ev.WagerID, "topic", p.topic)
	return nil
}

// Close finaliza el writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
