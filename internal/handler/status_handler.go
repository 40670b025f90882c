package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/kizuna/internal/middleware"
	"github.com/hitoshi/kizuna/internal/model"
)

// StatusServiceInterface はステータスハンドラーが必要とするサービスインターフェース。
type StatusServiceInterface interface {
	Create(ctx context.Context, actor model.Identity, file io.Reader, filename, caption string, privacy model.Privacy) (*model.Status, error)
	ListActive(ctx context.Context, userID string, page, limit int) (*model.Page[*model.Status], error)
	Delete(ctx context.Context, actor model.Identity, id string) (*model.Status, error)
}

// StatusHandler はステータスのHTTPハンドラー。
type StatusHandler struct {
	service        StatusServiceInterface
	maxUploadBytes int64
	now            func() time.Time
}

// NewStatusHandler はStatusHandlerを生成する。
func NewStatusHandler(service StatusServiceInterface, maxUploadBytes int64) *StatusHandler {
	return &StatusHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		now:            time.Now,
	}
}

func (h *StatusHandler) toResponse(s *model.Status) statusResponse {
	return toStatusResponse(s, h.now())
}

// Create はメディアファイル付きのステータスを作成する。
// POST /api/status  (multipart: media_file, caption, privacy)
func (h *StatusHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	file, header, ok := readUpload(w, r, "media_file", h.maxUploadBytes)
	if !ok {
		return
	}
	defer file.Close()

	privacy := model.Privacy(r.FormValue("privacy"))
	created, err := h.service.Create(r.Context(), actor, file, header.Filename, r.FormValue("caption"), privacy)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, "Successfully created status", h.toResponse(created))
}

// ListActive はuser_idの有効期限内のステータスを返す。
// GET /api/status/{id}?page=&limit=  (idはユーザーID)
func (h *StatusHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	page, limit := pagination(r)

	result, err := h.service.ListActive(r.Context(), chi.URLParam(r, "id"), page, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, "Successfully fetched statuses", toPageResponse(result, h.toResponse))
}

// Delete は自身のステータスを削除する。
// DELETE /api/status/{id}
func (h *StatusHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	deleted, err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, "Successfully deleted status", h.toResponse(deleted))
}
