package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgkafka "github.com/ncsyvn/microservices-go/pkg/kafka"
	"github.com/ncsyvn/microservices-go/services/video/internal/domain"
)

type captured struct {
	topic string
	event *pkgkafka.Event
}

type capturePublisher struct {
	events []captured
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, topic string, event *pkgkafka.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, captured{topic: topic, event: event})
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProducer_PublishVideoCreated(t *testing.T) {
	pub := &capturePublisher{}
	p := NewProducer(pub, discardLogger())

	v := &domain.Video{ID: "v1", Title: "Go", URL: "https://x/go.mp4", OwnerID: "u1"}
	require.NoError(t, p.PublishVideoCreated(context.Background(), v))

	require.Len(t, pub.events, 1)
	evt := pub.events[0].event
	assert.Equal(t, TopicVideoCreated, pub.events[0].topic)
	assert.Equal(t, "v1", evt.AggregateID)
	assert.Equal(t, AggregateTypeVideo, evt.AggregateType)
	assert.Equal(t, SourceVideoService, evt.Source)

	var data VideoCreatedData
	require.NoError(t, evt.UnmarshalData(&data))
	assert.Equal(t, VideoCreatedData{ID: "v1", Title: "Go", URL: "https://x/go.mp4", OwnerID: "u1"}, data)
}

func TestProducer_PublishVideoDeleted(t *testing.T) {
	pub := &capturePublisher{}
	p := NewProducer(pub, discardLogger())

	require.NoError(t, p.PublishVideoDeleted(context.Background(), "v2"))
	require.Len(t, pub.events, 1)
	assert.Equal(t, TopicVideoDeleted, pub.events[0].topic)
}

func TestProducer_PublishError(t *testing.T) {
	p := NewProducer(&capturePublisher{err: errors.New("broker down")}, discardLogger())

	err := p.PublishVideoDeleted(context.Background(), "v3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish video.deleted event")
}
