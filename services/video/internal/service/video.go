package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/ncsyvn/microservices-go/pkg/errors"
	"github.com/ncsyvn/microservices-go/pkg/pagination"
	"github.com/ncsyvn/microservices-go/services/video/internal/domain"
	"github.com/ncsyvn/microservices-go/services/video/internal/repository"
)

// EventPublisher emits video domain events. Publishing is best effort.
type EventPublisher interface {
	PublishVideoCreated(ctx context.Context, v *domain.Video) error
	PublishVideoDeleted(ctx context.Context, id string) error
}

// VideoService implements the video catalog.
type VideoService struct {
	repo   repository.VideoRepository
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

// NewVideoService creates a new VideoService.
func NewVideoService(repo repository.VideoRepository, events EventPublisher, logger *slog.Logger) *VideoService {
	return &VideoService{
		repo:   repo,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// CreateVideoInput holds the data needed to add a video.
type CreateVideoInput struct {
	OwnerID      string
	Title        string
	URL          string
	ThumbnailURL string
}

// CreateVideoResult is rendered in the envelope of a create call.
type CreateVideoResult struct {
	VideoID string `json:"video_id"`
}

// Search returns the page of active videos whose title contains keyword.
func (s *VideoService) Search(ctx context.Context, keyword string, params pagination.Params) (pagination.Result[domain.Video], error) {
	videos, total, err := s.repo.Search(ctx, keyword, params.Offset(), params.PerPage)
	if err != nil {
		return pagination.Result[domain.Video]{}, fmt.Errorf("search videos: %w", err)
	}
	return pagination.NewResult(videos, total, params), nil
}

// Create stores a new video owned by the caller.
func (s *VideoService) Create(ctx context.Context, input CreateVideoInput) (*CreateVideoResult, error) {
	if input.Title == "" {
		return nil, apperrors.InvalidInput("title is required")
	}

	now := s.now().Unix()
	v := &domain.Video{
		ID:           uuid.New().String(),
		Title:        input.Title,
		URL:          input.URL,
		ThumbnailURL: input.ThumbnailURL,
		OwnerID:      input.OwnerID,
		CreatedAt:    now,
		ModifiedAt:   now,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("create video: %w", err)
	}

	if err := s.events.PublishVideoCreated(ctx, v); err != nil {
		s.logger.WarnContext(ctx, "failed to publish video created event",
			slog.String("video_id", v.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "video created",
		slog.String("video_id", v.ID),
		slog.String("owner_id", v.OwnerID),
	)
	return &CreateVideoResult{VideoID: v.ID}, nil
}

// Get returns a single active video.
func (s *VideoService) Get(ctx context.Context, id string) (*domain.Video, error) {
	return s.repo.GetByID(ctx, id)
}

// Delete soft-deletes a video.
func (s *VideoService) Delete(ctx context.Context, id string) error {
	if err := s.repo.SoftDelete(ctx, id, s.now().Unix()); err != nil {
		return err
	}
	if err := s.events.PublishVideoDeleted(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "failed to publish video deleted event",
			slog.String("video_id", id),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "video deleted", slog.String("video_id", id))
	return nil
}
