package repository

import (
	"context"

	"ChartSignal/internal/domain/models"
	domrepo "ChartSignal/internal/domain/repository"
	pkgkafka "ChartSignal/pkg/kafka"

	"github.com/segmentio/kafka-go"
)

// Event types carried in the event_type header.
const (
	EventPredictionCreated = "prediction.created"
	EventPredictionRated   = "prediction.feedback"
	EventAnalysisResult    = "analysis.result"
)

// EventTopics maps each event to its topic.
type EventTopics struct {
	Predictions string
	Feedback    string
	Results     string
}

type keyedPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}, headers ...kafka.Header) error
	Close() error
}

// KafkaEventPublisher implements EventPublisher on the shared producer.
// Prediction events are keyed by user, feedback by prediction, results by request.
type KafkaEventPublisher struct {
	p      keyedPublisher
	topics EventTopics
}

func NewKafkaEventPublisher(p *pkgkafka.Producer, topics EventTopics) *KafkaEventPublisher {
	return &KafkaEventPublisher{p: p, topics: topics}
}

func headers(ctx context.Context, event string) []kafka.Header {
	h := []kafka.Header{{Key: "event_type", Value: []byte(event)}}
	if id := pkgkafka.RequestIDFrom(ctx); id != "" {
		h = append(h, kafka.Header{Key: pkgkafka.HeaderRequestID, Value: []byte(id)})
	}
	return h
}

func (k *KafkaEventPublisher) PublishPrediction(ctx context.Context, e *models.PredictionEvent) error {
	return k.p.Publish(ctx, k.topics.Predictions, []byte(e.UserID), e, headers(ctx, EventPredictionCreated)...)
}

func (k *KafkaEventPublisher) PublishFeedback(ctx context.Context, e *models.FeedbackEvent) error {
	return k.p.Publish(ctx, k.topics.Feedback, []byte(e.PredictionID), e, headers(ctx, EventPredictionRated)...)
}

func (k *KafkaEventPublisher) PublishJobResult(ctx context.Context, r *models.AnalysisJobResult) error {
	ctx = pkgkafka.WithRequestID(ctx, r.RequestID)
	return k.p.Publish(ctx, k.topics.Results, []byte(r.RequestID), r, headers(ctx, EventAnalysisResult)...)
}

func (k *KafkaEventPublisher) Close() error {
	return k.p.Close()
}

// NopEventPublisher drops every event. It stands in when Kafka is disabled.
type NopEventPublisher struct{}

func (NopEventPublisher) PublishPrediction(context.Context, *models.PredictionEvent) error  { return nil }
func (NopEventPublisher) PublishFeedback(context.Context, *models.FeedbackEvent) error      { return nil }
func (NopEventPublisher) PublishJobResult(context.Context, *models.AnalysisJobResult) error { return nil }
func (NopEventPublisher) Close() error                                                      { return nil }

var (
	_ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)
	_ domrepo.EventPublisher = NopEventPublisher{}
)
