package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/ncsyvn/microservices-go/pkg/kafka"
	"github.com/ncsyvn/microservices-go/services/video/internal/domain"
)

// Kafka topics for video domain events.
const (
	TopicVideoCreated = "video.created"
	TopicVideoDeleted = "video.deleted"
)

const (
	AggregateTypeVideo = "video"
	SourceVideoService = "video-service"
)

// VideoCreatedData is the payload for a video.created event.
type VideoCreatedData struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	OwnerID string `json:"owner_id"`
}

// VideoDeletedData is the payload for a video.deleted event.
type VideoDeletedData struct {
	ID string `json:"id"`
}

// Producer publishes video domain events.
type Producer struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

func NewProducer(publisher pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: logger}
}

// PublishVideoCreated publishes a video.created event.
func (p *Producer) PublishVideoCreated(ctx context.Context, v *domain.Video) error {
	return p.publish(ctx, TopicVideoCreated, v.ID, VideoCreatedData{
		ID:      v.ID,
		Title:   v.Title,
		URL:     v.URL,
		OwnerID: v.OwnerID,
	})
}

// PublishVideoDeleted publishes a video.deleted event.
func (p *Producer) PublishVideoDeleted(ctx context.Context, id string) error {
	return p.publish(ctx, TopicVideoDeleted, id, VideoDeletedData{ID: id})
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID string, data any) error {
	evt, err := pkgkafka.NewEvent(ctx, topic, aggregateID, AggregateTypeVideo, SourceVideoService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	p.logger.DebugContext(ctx, "event published",
		slog.String("topic", topic),
		slog.String("event_id", evt.EventID),
	)
	return nil
}
