package repository

import (
	"context"

	"github.com/ncsyvn/microservices-go/services/video/internal/domain"
)

// VideoRepository defines the persistence operations for videos. Deleted
// videos are invisible to every read.
type VideoRepository interface {
	// Create inserts a new video.
	Create(ctx context.Context, video *domain.Video) error

	// GetByID retrieves a video by id.
	GetByID(ctx context.Context, id string) (*domain.Video, error)

	// Search returns videos whose title contains keyword, newest first,
	// together with the total number of matches.
	Search(ctx context.Context, keyword string, offset, limit int) ([]domain.Video, int, error)

	// SoftDelete flags a video as deleted.
	SoftDelete(ctx context.Context, id string, modifiedAt int64) error
}
