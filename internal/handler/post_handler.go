package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/kizuna/internal/middleware"
	"github.com/hitoshi/kizuna/internal/model"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	Create(ctx context.Context, actor model.Identity, file io.Reader, filename, caption string) (*model.Post, error)
	ListFeed(ctx context.Context, actor model.Identity, page, limit int) (*model.Page[*model.Post], error)
	Delete(ctx context.Context, actor model.Identity, id string) (*model.Post, error)
}

// PostHandler は投稿のHTTPハンドラー。
type PostHandler struct {
	service        PostServiceInterface
	maxUploadBytes int64
}

// NewPostHandler はPostHandlerを生成する。maxUploadBytesが0以下の場合は既定値を使う。
func NewPostHandler(service PostServiceInterface, maxUploadBytes int64) *PostHandler {
	return &PostHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
	}
}

// Create はメディアファイル付きの投稿を作成する。
// POST /auth/post?caption=  (multipart: media_file)
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	file, header, ok := readUpload(w, r, "media_file", h.maxUploadBytes)
	if !ok {
		return
	}
	defer file.Close()

	created, err := h.service.Create(r.Context(), actor, file, header.Filename, r.FormValue("caption"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, "Successfully created post", toPostResponse(created))
}

// ListFeed は自身とフォロー中ユーザーの投稿を新しい順に返す。
// GET /auth/posts?page=&limit=
func (h *PostHandler) ListFeed(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	page, limit := pagination(r)

	result, err := h.service.ListFeed(r.Context(), actor, page, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, "Successfully fetched posts", toPageResponse(result, toPostResponse))
}

// Delete は自身の投稿を削除する。
// DELETE /auth/post/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	deleted, err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, "Successfully deleted post", toPostResponse(deleted))
}
