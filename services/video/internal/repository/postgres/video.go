package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ncsyvn/microservices-go/pkg/database"
	apperrors "github.com/ncsyvn/microservices-go/pkg/errors"
	"github.com/ncsyvn/microservices-go/services/video/internal/domain"
)

const videoColumns = `id, title, url, thumbnail_url, owner_id, created_at, modified_at, is_deleted, is_active`

// VideoRepository implements repository.VideoRepository using PostgreSQL.
type VideoRepository struct {
	db database.DBTX
}

// NewVideoRepository creates a new PostgreSQL-backed video repository.
func NewVideoRepository(db database.DBTX) *VideoRepository {
	return &VideoRepository{db: db}
}

// Create inserts a new video into the database.
func (r *VideoRepository) Create(ctx context.Context, v *domain.Video) (err error) {
	query := `
		INSERT INTO videos (` + videoColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	ctx, end := database.TraceQuery(ctx, "CreateVideo", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		v.ID,
		v.Title,
		v.URL,
		v.ThumbnailURL,
		v.OwnerID,
		v.CreatedAt,
		v.ModifiedAt,
		v.IsDeleted,
		v.IsActive,
	)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

// GetByID retrieves a video by id.
func (r *VideoRepository) GetByID(ctx context.Context, id string) (_ *domain.Video, err error) {
	query := `
		SELECT ` + videoColumns + `
		FROM videos
		WHERE id = $1 AND is_deleted = FALSE`

	ctx, end := database.TraceQuery(ctx, "GetVideoByID", query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var v domain.Video
	err = r.db.QueryRow(ctx, query, id).Scan(
		&v.ID,
		&v.Title,
		&v.URL,
		&v.ThumbnailURL,
		&v.OwnerID,
		&v.CreatedAt,
		&v.ModifiedAt,
		&v.IsDeleted,
		&v.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("video", id)
		}
		return nil, fmt.Errorf("scan video: %w", err)
	}
	return &v, nil
}

// Search returns a page of videos whose title contains keyword.
func (r *VideoRepository) Search(ctx context.Context, keyword string, offset, limit int) (_ []domain.Video, _ int, err error) {
	query := `
		SELECT ` + videoColumns + `,
			   count(*) OVER() AS total_count
		FROM videos
		WHERE is_deleted = FALSE AND title ILIKE $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "SearchVideos", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, domain.TitlePattern(keyword), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("search videos: %w", err)
	}
	defer rows.Close()

	var (
		videos     []domain.Video
		totalCount int
	)
	for rows.Next() {
		var v domain.Video
		if err := rows.Scan(
			&v.ID,
			&v.Title,
			&v.URL,
			&v.ThumbnailURL,
			&v.OwnerID,
			&v.CreatedAt,
			&v.ModifiedAt,
			&v.IsDeleted,
			&v.IsActive,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan video row: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate video rows: %w", err)
	}

	rows.Close()

	if videos == nil {
		videos = []domain.Video{}
	}
	// The window count is absent when the page lies past the last match.
	if len(videos) == 0 && offset > 0 {
		if totalCount, err = r.count(ctx, keyword); err != nil {
			return nil, 0, err
		}
	}
	return videos, totalCount, nil
}

func (r *VideoRepository) count(ctx context.Context, keyword string) (n int, err error) {
	query := `SELECT count(*) FROM videos WHERE is_deleted = FALSE AND title ILIKE $1`

	ctx, end := database.TraceQuery(ctx, "CountVideos", query)
	defer func() { end(err) }()

	if err := r.db.QueryRow(ctx, query, domain.TitlePattern(keyword)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count videos: %w", err)
	}
	return n, nil
}

// SoftDelete flags a video as deleted. Missing or already deleted videos are
// not found.
func (r *VideoRepository) SoftDelete(ctx context.Context, id string, modifiedAt int64) (err error) {
	query := `
		UPDATE videos
		SET is_deleted = TRUE, modified_at = $1
		WHERE id = $2 AND is_deleted = FALSE`

	ctx, end := database.TraceQuery(ctx, "SoftDeleteVideo", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, modifiedAt, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("video", id)
	}
	return nil
}
