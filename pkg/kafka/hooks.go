package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Hook runs before each handler attempt and may derive a new context from
// the message. An error fails the message without retries.
type Hook func(ctx context.Context, msg kafka.Message) (context.Context, error)

type ctxKey struct{}

// HeaderRequestID carries the correlation id between services.
const HeaderRequestID = "request_id"

// WithRequestID stores id in ctx. An empty id leaves ctx unchanged.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}

// ExtractRequestID returns the request_id header, if any.
func ExtractRequestID(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == HeaderRequestID && len(h.Value) > 0 {
			return string(h.Value)
		}
	}
	return ""
}

// RequestIDHook copies the request_id header into the handler context.
func RequestIDHook() Hook {
	return func(ctx context.Context, msg kafka.Message) (context.Context, error) {
		return WithRequestID(ctx, ExtractRequestID(msg)), nil
	}
}
