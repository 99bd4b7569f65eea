package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	applogger "ChartSignal/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// MessageHandler handles the payloads of one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// PermanentError marks a failure that retrying cannot fix, such as a
// malformed payload. The message goes to the DLQ at once.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func isPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

var errStopping = errors.New("kafka consumer stopping")

type delivery struct {
	topic string
	msg   kafka.Message
}

// Consumer reads every registered topic with its own group reader and fans
// messages out to a worker pool. Offsets are committed after success, or
// after the message was parked in the DLQ.
type Consumer struct {
	cfg      ConsumerConfig
	log      *applogger.Logger
	handlers map[string]MessageHandler
	hooks    []Hook
	readers  map[string]*kafka.Reader
	dlq      messageWriter

	queue    chan delivery
	stop     chan struct{}
	stopOnce sync.Once
	workers  sync.WaitGroup

	// one in-flight message per topic partition
	partMu sync.Mutex
	parts  map[string]*sync.Mutex
}

func NewConsumer(cfg ConsumerConfig, l *applogger.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer: no brokers configured")
	}
	cfg = cfg.withDefaults()
	if l == nil {
		l = applogger.Nop()
	}
	c := &Consumer{
		cfg:      cfg,
		log:      l,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		queue:    make(chan delivery, cfg.BufferSize),
		stop:     make(chan struct{}),
		parts:    make(map[string]*sync.Mutex),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}
	return c, nil
}

// RegisterHandler must be called before Start. A second handler for the
// same topic is ignored.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	if _, dup := c.handlers[h.Topic()]; dup {
		c.log.Warn("kafka handler already registered", applogger.String("topic", h.Topic()))
		return
	}
	c.handlers[h.Topic()] = h
}

// Use appends hooks that run before every handler attempt.
func (c *Consumer) Use(hooks ...Hook) {
	c.hooks = append(c.hooks, hooks...)
}

func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}
	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.cfg.Brokers,
			Topic:       topic,
			GroupID:     c.cfg.GroupID,
			StartOffset: kafka.FirstOffset,
			MinBytes:    c.cfg.MinBytes,
			MaxBytes:    c.cfg.MaxBytes,
		})
	}

	for i := 0; i < c.cfg.Workers; i++ {
		c.workers.Add(1)
		go func() {
			defer c.workers.Done()
			for d := range c.queue {
				c.process(d)
			}
		}()
	}

	var fetchers sync.WaitGroup
	for topic, r := range c.readers {
		fetchers.Add(1)
		go func(topic string, r *kafka.Reader) {
			defer fetchers.Done()
			c.fetch(topic, r)
		}(topic, r)
	}
	// Workers exit once the queue is closed and drained.
	go func() {
		fetchers.Wait()
		close(c.queue)
	}()

	c.log.Info("kafka consumer started",
		applogger.Int("workers", c.cfg.Workers),
		applogger.Int("topics", len(c.readers)),
		applogger.String("group", c.cfg.GroupID),
	)
	return nil
}

// Stop halts fetching, waits for the workers until ctx expires, then closes
// the readers and the DLQ writer.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stop)

		done := make(chan struct{})
		go func() {
			c.workers.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer: workers still busy: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.log.Warn("kafka reader close failed", applogger.String("topic", topic), applogger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.log.Warn("kafka dlq close failed", applogger.Error(cerr))
			}
		}
	})
	return err
}

func (c *Consumer) fetch(topic string, r *kafka.Reader) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	depth := metrics().queueDepth.WithLabelValues(topic)
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("kafka fetch failed", applogger.String("topic", topic), applogger.Error(err))
			if !c.sleep(time.Second) {
				return
			}
			continue
		}
		// A full queue blocks the fetcher rather than dropping messages.
		select {
		case c.queue <- delivery{topic: topic, msg: msg}:
			depth.Set(float64(len(c.queue)))
		case <-c.stop:
			return
		}
	}
}

// process runs one delivery to completion and reports whether the handler
// succeeded.
func (c *Consumer) process(d delivery) bool {
	h, ok := c.handlers[d.topic]
	if !ok {
		return false
	}
	start := time.Now()
	defer func() {
		metrics().handleLatency.WithLabelValues(d.topic).Observe(time.Since(start).Seconds())
	}()

	lock := c.partition(d.topic, d.msg.Partition)
	lock.Lock()
	defer lock.Unlock()

	attempts, err := c.attempt(h, d)
	if errors.Is(err, errStopping) {
		// Left uncommitted; the group redelivers it after a restart.
		return false
	}
	if err != nil {
		c.log.Error("kafka message failed",
			applogger.String("topic", d.topic),
			applogger.Int("attempts", attempts),
			applogger.Error(err),
		)
		metrics().failures.WithLabelValues(d.topic).Inc()
		c.deadLetter(d, err)
	}
	if err == nil || c.dlq != nil {
		c.commit(d)
	}
	return err == nil
}

// attempt calls the handler until it succeeds, fails permanently or runs
// out of retries. A panic counts as a permanent failure.
func (c *Consumer) attempt(h MessageHandler, d delivery) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("handler panic: %v", r))
		}
	}()
	for n = 1; ; n++ {
		ctx := context.Background()
		for _, hook := range c.hooks {
			if ctx, err = hook(ctx, d.msg); err != nil {
				return n, Permanent(err)
			}
		}
		err = h.Handle(ctx, d.msg.Value)
		if err == nil || isPermanent(err) || n > c.cfg.RetryMax {
			return n, err
		}
		c.log.Debug("kafka handler retry", applogger.String("topic", d.topic), applogger.Int("attempt", n), applogger.Error(err))
		if !c.sleep(backoff(c.cfg.BackoffMin, c.cfg.BackoffMax, n)) {
			return n, errStopping
		}
	}
}

func (c *Consumer) deadLetter(d delivery, cause error) {
	if c.dlq == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	headers := make([]kafka.Header, 0, len(d.msg.Headers)+2)
	headers = append(headers, d.msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "source_topic", Value: []byte(d.topic)},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
	)
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Key:     d.msg.Key,
		Value:   d.msg.Value,
		Time:    time.Now(),
		Headers: headers,
	})
	if err != nil {
		c.log.Error("kafka dlq write failed", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(err))
	}
}

func (c *Consumer) commit(d delivery) {
	r := c.readers[d.topic]
	if r == nil {
		return
	}
	var err error
	for try := 1; try <= 3; try++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(ctx, d.msg)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoff(50*time.Millisecond, 500*time.Millisecond, try))
	}
	c.log.Error("kafka commit failed",
		applogger.String("topic", d.topic),
		applogger.Int64("offset", d.msg.Offset),
		applogger.Error(err),
	)
}

func (c *Consumer) partition(topic string, p int) *sync.Mutex {
	key := topic + "/" + strconv.Itoa(p)
	c.partMu.Lock()
	defer c.partMu.Unlock()
	m, ok := c.parts[key]
	if !ok {
		m = &sync.Mutex{}
		c.parts[key] = m
	}
	return m
}

// sleep waits d and reports false if the consumer was stopped meanwhile.
func (c *Consumer) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.stop:
		return false
	}
}

// backoff doubles from lo per attempt, caps at hi and takes off up to half
// as jitter.
func backoff(lo, hi time.Duration, attempt int) time.Duration {
	if lo <= 0 {
		lo = 50 * time.Millisecond
	}
	if hi < lo {
		hi = lo
	}
	d := hi
	if attempt < 31 {
		if exp := lo << uint(attempt-1); exp > 0 && exp < hi {
			d = exp
		}
	}
	if half := int64(d / 2); half > 0 {
		d -= time.Duration(rand.Int63n(half))
	}
	return d
}
