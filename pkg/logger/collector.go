package logger

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Publisher ships a batch of aggregated logs to a topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval    time.Duration // flush period, 30s when zero
	CountThreshold  int           // distinct entries that force a flush, 100 when zero
	Topic           string
	Publisher       Publisher
	IncludeWarnings bool
}

type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector folds identical log lines into counted entries and publishes
// them in batches, so a failing model server does not flood the log topic.
type LogCollector struct {
	config *CollectionConfig

	mu      sync.Mutex
	entries map[string]*AggregatedLogEntry

	stop     chan struct{}
	loopDone chan struct{}
	inflight sync.WaitGroup
	once     sync.Once
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	if config.TimeInterval <= 0 {
		config.TimeInterval = 30 * time.Second
	}
	if config.CountThreshold <= 0 {
		config.CountThreshold = 100
	}
	c := &LogCollector{
		config:   config,
		entries:  make(map[string]*AggregatedLogEntry),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	go c.loop()
	return c
}

// AddLog counts one occurrence. Lines with the same level, message, caller
// and fields share an entry.
func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := entryKey(level, message, fields, caller)

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		c.entries[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	if len(c.entries) >= c.config.CountThreshold {
		c.publish(c.drainLocked())
	}
}

// Pending returns the number of distinct entries waiting for the next flush.
func (c *LogCollector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close flushes what is left and waits for in-flight batches.
func (c *LogCollector) Close() {
	c.once.Do(func() { close(c.stop) })
	<-c.loopDone
	c.inflight.Wait()
}

func (c *LogCollector) loop() {
	defer close(c.loopDone)
	t := time.NewTicker(c.config.TimeInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.flush()
		case <-c.stop:
			c.flush()
			return
		}
	}
}

func (c *LogCollector) flush() {
	c.mu.Lock()
	batch := c.drainLocked()
	c.mu.Unlock()
	c.publish(batch)
}

func (c *LogCollector) drainLocked() []AggregatedLogEntry {
	if len(c.entries) == 0 {
		return nil
	}
	batch := make([]AggregatedLogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		batch = append(batch, *e)
	}
	c.entries = make(map[string]*AggregatedLogEntry)
	return batch
}

func (c *LogCollector) publish(batch []AggregatedLogEntry) {
	if len(batch) == 0 || c.config.Publisher == nil {
		return
	}
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, batch); err != nil {
			// The logger itself may be what is failing; go straight to stderr.
			fmt.Fprintf(os.Stderr, "publish aggregated logs: %v\n", err)
		}
	}()
}

func entryKey(level, message string, fields map[string]interface{}, caller string) string {
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte('|')
	b.WriteString(caller)
	b.WriteByte('|')
	b.WriteString(message)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%v", k, fields[k])
	}
	return b.String()
}
