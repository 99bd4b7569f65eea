package kafka

import (
	"fmt"
	"time"

	applogger "ChartSignal/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// ProducerConfig mirrors the producer section of the app config. Zero
// fields fall back to DefaultProducerConfig.
type ProducerConfig struct {
	Brokers      []string
	RequiredAcks int
	Compression  string
	MaxAttempts  int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	BatchSize    int
	BatchBytes   int
	Linger       time.Duration
	Async        bool
	// HashByKey keeps every event of one prediction on one partition.
	HashByKey bool
}

// DefaultProducerConfig favours durability: acks from all replicas, snappy.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		RequiredAcks: -1,
		Compression:  "snappy",
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		BatchSize:    100,
		BatchBytes:   1 << 20,
		Linger:       50 * time.Millisecond,
	}
}

func (c ProducerConfig) withDefaults() ProducerConfig {
	d := DefaultProducerConfig()
	if c.RequiredAcks == 0 {
		c.RequiredAcks = d.RequiredAcks
	}
	if c.Compression == "" {
		c.Compression = d.Compression
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.BatchBytes <= 0 {
		c.BatchBytes = d.BatchBytes
	}
	if c.Linger <= 0 {
		c.Linger = d.Linger
	}
	return c
}

// writer turns the config into a segmentio writer. Async delivery
// failures go to l when it is set.
func (c ProducerConfig) writer(l *applogger.Logger) (*kafka.Writer, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	var bal kafka.Balancer = &kafka.LeastBytes{}
	if c.HashByKey {
		bal = &kafka.Hash{}
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Balancer:               bal,
		RequiredAcks:           kafka.RequiredAcks(c.RequiredAcks),
		Compression:            codecs[c.Compression],
		MaxAttempts:            c.MaxAttempts,
		WriteTimeout:           c.WriteTimeout,
		ReadTimeout:            c.ReadTimeout,
		BatchSize:              c.BatchSize,
		BatchBytes:             int64(c.BatchBytes),
		BatchTimeout:           c.Linger,
		Async:                  c.Async,
		AllowAutoTopicCreation: true,
	}
	if c.Async && l != nil {
		w.Completion = func(messages []kafka.Message, err error) {
			if err != nil {
				l.Warn("kafka async write failed", applogger.Int("messages", len(messages)), applogger.Error(err))
			}
		}
	}
	return w, nil
}

// codecs maps config names to writer compression. Unknown names, "none"
// included, leave messages uncompressed.
var codecs = map[string]kafka.Compression{
	"gzip":   kafka.Gzip,
	"snappy": kafka.Snappy,
	"lz4":    kafka.Lz4,
	"zstd":   kafka.Zstd,
}

// ConsumerConfig mirrors the consumer section of the app config.
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	// Workers handle messages concurrently; order is still kept per partition.
	Workers    int
	BufferSize int
	// RetryMax is the number of retries after the first attempt.
	RetryMax   int
	BackoffMin time.Duration
	BackoffMax time.Duration
	// DLQTopic receives messages that failed for good. Empty disables it,
	// and then failed offsets are left uncommitted.
	DLQTopic string
	MinBytes int
	MaxBytes int
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.GroupID == "" {
		c.GroupID = "chartsignal"
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 10
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = 50 * time.Millisecond
	}
	if c.BackoffMax < c.BackoffMin {
		c.BackoffMax = 2 * time.Second
	}
	if c.MinBytes <= 0 {
		c.MinBytes = 1
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 << 20
	}
	return c
}
