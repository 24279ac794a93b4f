package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ncsyvn/microservices-go/pkg/httputil"
	"github.com/ncsyvn/microservices-go/pkg/middleware"
	"github.com/ncsyvn/microservices-go/pkg/pagination"
	"github.com/ncsyvn/microservices-go/pkg/validator"
	"github.com/ncsyvn/microservices-go/services/video/internal/service"
)

// VideoHandler handles HTTP requests for video endpoints.
type VideoHandler struct {
	service *service.VideoService
	logger  *slog.Logger
}

// NewVideoHandler creates a new video HTTP handler.
func NewVideoHandler(svc *service.VideoService, logger *slog.Logger) *VideoHandler {
	return &VideoHandler{service: svc, logger: logger}
}

// CreateVideoRequest is the JSON request body for adding a video.
type CreateVideoRequest struct {
	Title        string `json:"title" validate:"required,min=1,max=500"`
	URL          string `json:"url" validate:"omitempty,max=1000"`
	ThumbnailURL string `json:"thumbnail_url" validate:"omitempty,max=1000"`
}

// Search handles GET /api/v1/videos?keyword=&page=&per_page=
func (h *VideoHandler) Search(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	keyword := r.URL.Query().Get("keyword")

	result, err := h.service.Search(r.Context(), keyword, params)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteResult(w, result, "", "")
}

// Create handles POST /api/v1/videos
func (h *VideoHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateVideoRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.Create(r.Context(), service.CreateVideoInput{
		OwnerID:      middleware.UserIDFromContext(r.Context()),
		Title:        req.Title,
		URL:          req.URL,
		ThumbnailURL: req.ThumbnailURL,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteResult(w, result, "", "")
}

// Get handles GET /api/v1/videos/{id}
func (h *VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, "id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	video, err := h.service.Get(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteResult(w, video, "", "")
}

// Delete handles DELETE /api/v1/videos/{id}
func (h *VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, "id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteResult(w, nil, "", "")
}
