package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/hitoshi/kizuna/internal/middleware"
	"github.com/hitoshi/kizuna/internal/model"
)

// MediaStoreInterface はメディアホストへのアップロードと削除を行う。
type MediaStoreInterface interface {
	Upload(ctx context.Context, file io.Reader, filename, folder string) (model.Content, error)
	Delete(ctx context.Context, publicID string) error
}

// MediaHandler はプロフィール写真をメディアホストへ中継するHTTPハンドラー。
type MediaHandler struct {
	store          MediaStoreInterface
	folder         string
	maxUploadBytes int64
}

// NewMediaHandler はMediaHandlerを生成する。folderはアップロード先のフォルダ名。
func NewMediaHandler(store MediaStoreInterface, folder string, maxUploadBytes int64) *MediaHandler {
	return &MediaHandler{
		store:          store,
		folder:         folder,
		maxUploadBytes: maxUploadBytes,
	}
}

// deletedMediaResponse は削除したメディアの識別子。
type deletedMediaResponse struct {
	PublicID string `json:"public_id"`
}

// UploadProfilePhoto はプロフィール写真をアップロードする。
// POST /api/profile_photo  (multipart: photo)
func (h *MediaHandler) UploadProfilePhoto(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}
	file, header, ok := readUpload(w, r, "photo", h.maxUploadBytes)
	if !ok {
		return
	}
	defer file.Close()

	content, err := h.store.Upload(r.Context(), file, header.Filename, h.folder)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, "Successfully uploaded photo", toContentResponse(content))
}

// DeleteProfilePhoto はメディアホストから写真を削除する。
// DELETE /api/profile_photo?public_id=
func (h *MediaHandler) DeleteProfilePhoto(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}
	publicID := r.URL.Query().Get("public_id")
	if publicID == "" {
		writeValidationError(w, "public_id is required")
		return
	}
	// プロフィール写真フォルダ以外のメディアは削除させない
	if !strings.HasPrefix(publicID, h.folder+"/") {
		handleServiceError(w, model.NewNotOwnerError("photo"))
		return
	}

	if err := h.store.Delete(r.Context(), publicID); err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, "Successfully deleted photo", deletedMediaResponse{PublicID: publicID})
}
