package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/kizuna/internal/middleware"
	"github.com/hitoshi/kizuna/internal/model"
)

// NotificationServiceInterface は通知ハンドラーが必要とするサービスインターフェース。
type NotificationServiceInterface interface {
	List(ctx context.Context, userID string, page, limit int) (*model.Page[*model.Notification], error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, actor model.Identity, id string) (*model.Notification, error)
}

// NotificationHandler は通知のHTTPハンドラー。
type NotificationHandler struct {
	service NotificationServiceInterface
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(service NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// markReadResponse は既読化した件数。
type markReadResponse struct {
	Updated int64 `json:"updated"`
}

// List は自身の通知を新しい順に返す。
// GET /api/notifications?page=&limit=
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	page, limit := pagination(r)

	result, err := h.service.List(r.Context(), actor.UserID, page, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, "Successfully fetched notifications", toPageResponse(result, toNotificationResponse))
}

// MarkAllRead は自身の全通知を既読にする。
// PUT /api/notifications/read
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	n, err := h.service.MarkAllRead(r.Context(), actor.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, "Notifications marked as read", markReadResponse{Updated: n})
}

// Delete は自身宛ての通知を削除する。
// DELETE /api/notifications/{id}
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	deleted, err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, "Successfully deleted notification", toNotificationResponse(deleted))
}
