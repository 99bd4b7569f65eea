package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	applogger "ChartSignal/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the producer calls.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes keyed events. Values that are not already bytes or
// strings are sent as JSON.
type Producer struct {
	w     messageWriter
	codec string
}

// NewProducer fills cfg defaults and opens a writer. l receives async
// delivery failures and may be nil.
func NewProducer(cfg ProducerConfig, l *applogger.Logger) (*Producer, error) {
	cfg = cfg.withDefaults()
	w, err := cfg.writer(l)
	if err != nil {
		return nil, err
	}
	return newProducerWithWriter(w, cfg.Compression), nil
}

func newProducerWithWriter(w messageWriter, codec string) *Producer {
	return &Producer{w: w, codec: codec}
}

func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}, headers ...kafka.Header) error {
	began := time.Now()
	payload, err := toBytes(value)
	if err != nil {
		return fmt.Errorf("kafka publish to %s: %w", topic, err)
	}

	err = p.w.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   payload,
		Headers: headers,
		Time:    began,
	})
	metrics().observePublish(topic, p.codec, len(payload), time.Since(began), err)
	if err != nil {
		return fmt.Errorf("kafka publish to %s: %w", topic, err)
	}
	return nil
}

// PublishMessage is Publish without a key, the shape the log collector
// expects from its publisher.
func (p *Producer) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.Publish(ctx, topic, nil, payload)
}

func (p *Producer) Close() error {
	if p.w == nil {
		return nil
	}
	return p.w.Close()
}

func toBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return b, nil
}
