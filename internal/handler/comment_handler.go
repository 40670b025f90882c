package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/kizuna/internal/middleware"
	"github.com/hitoshi/kizuna/internal/model"
)

// CommentServiceInterface はコメントハンドラーが必要とするサービスインターフェース。
type CommentServiceInterface interface {
	Create(ctx context.Context, actor model.Identity, postID, text string) (*model.Comment, error)
	Delete(ctx context.Context, actor model.Identity, id string) (*model.Comment, error)
}

// CommentHandler はコメントのHTTPハンドラー。
type CommentHandler struct {
	service CommentServiceInterface
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(service CommentServiceInterface) *CommentHandler {
	return &CommentHandler{service: service}
}

// Create は投稿にコメントする。
// POST /api/comment?post_id=&text=
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	postID := r.URL.Query().Get("post_id")
	if postID == "" {
		writeValidationError(w, "post_id is required")
		return
	}

	created, err := h.service.Create(r.Context(), actor, postID, r.URL.Query().Get("text"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, "Successfully created comment", toCommentResponse(created))
}

// Delete は自身のコメントを削除する。
// DELETE /api/comment/{id}
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	deleted, err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, "Successfully deleted comment", toCommentResponse(deleted))
}
