package memory

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/ncsyvn/microservices-go/pkg/errors"
	"github.com/ncsyvn/microservices-go/services/video/internal/domain"
)

// VideoRepository is an in-process repository.VideoRepository.
type VideoRepository struct {
	mu     sync.RWMutex
	videos map[string]domain.Video
}

func NewVideoRepository() *VideoRepository {
	return &VideoRepository{videos: make(map[string]domain.Video)}
}

func (r *VideoRepository) Create(_ context.Context, v *domain.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.videos[v.ID]; ok {
		return apperrors.AlreadyExists("video", "id", v.ID)
	}
	r.videos[v.ID] = *v
	return nil
}

func (r *VideoRepository) GetByID(_ context.Context, id string) (*domain.Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.videos[id]
	if !ok || v.IsDeleted {
		return nil, apperrors.NotFound("video", id)
	}
	return &v, nil
}

func (r *VideoRepository) Search(_ context.Context, keyword string, offset, limit int) ([]domain.Video, int, error) {
	r.mu.RLock()
	matched := make([]domain.Video, 0, len(r.videos))
	for _, v := range r.videos {
		if !v.IsDeleted && v.TitleContains(keyword) {
			matched = append(matched, v)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt != matched[j].CreatedAt {
			return matched[i].CreatedAt > matched[j].CreatedAt
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	if offset < 0 || offset >= total || limit <= 0 {
		return []domain.Video{}, total, nil
	}
	end := offset + min(limit, total-offset)
	return matched[offset:end], total, nil
}

func (r *VideoRepository) SoftDelete(_ context.Context, id string, modifiedAt int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.videos[id]
	if !ok || v.IsDeleted {
		return apperrors.NotFound("video", id)
	}
	v.IsDeleted = true
	v.ModifiedAt = modifiedAt
	r.videos[id] = v
	return nil
}
