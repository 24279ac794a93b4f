package event

import (
	"context"
	"log/slog"

	pkgkafka "github.com/ncsyvn/microservices-go/pkg/kafka"
)

// Loopback is a Publisher that hands events straight to in-process handlers.
// The app uses it when no Kafka broker is configured so that OTPs are still
// dispatched. Topics without a handler are discarded.
type Loopback struct {
	handlers map[string]pkgkafka.Handler
	logger   *slog.Logger
}

// NewLoopback creates an empty loopback publisher.
func NewLoopback(logger *slog.Logger) *Loopback {
	return &Loopback{handlers: make(map[string]pkgkafka.Handler), logger: logger}
}

// Handle registers h for topic.
func (l *Loopback) Handle(topic string, h pkgkafka.Handler) {
	l.handlers[topic] = h
}

// Publish runs the handler registered for topic synchronously.
func (l *Loopback) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	h, ok := l.handlers[topic]
	if !ok {
		return pkgkafka.Discard{Logger: l.logger}.Publish(ctx, topic, event)
	}
	return h(ctx, event)
}

// Close is a no-op.
func (l *Loopback) Close() error { return nil }
