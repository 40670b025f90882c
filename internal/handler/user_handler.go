package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/kizuna/internal/middleware"
	"github.com/hitoshi/kizuna/internal/model"
	"github.com/hitoshi/kizuna/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Register(ctx context.Context, in model.ProfileInput) (*model.User, error)
	List(ctx context.Context, page, limit int) (*model.Page[*model.User], error)
	Get(ctx context.Context, id string) (*model.User, error)
	UpdateProfile(ctx context.Context, actor model.Identity, id string, in model.ProfileInput) (*model.User, error)
	Delete(ctx context.Context, actor model.Identity, id string) (*model.User, error)
	// Follow と Unfollow は両ユーザーのレコードを同一トランザクションで更新する。
	Follow(ctx context.Context, actor model.Identity, targetID string) (*user.FollowResult, error)
	Unfollow(ctx context.Context, actor model.Identity, targetID string) (*user.FollowResult, error)
}

// UserHandler はユーザー管理とフォロー操作のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// followResponse はフォロー操作後の両ユーザー。
type followResponse struct {
	Dower  userResponse `json:"dower"`
	Gainer userResponse `json:"gainer"`
}

func decodeProfile(r *http.Request) (model.ProfileInput, bool) {
	var in model.ProfileInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return in, false
	}
	return in, true
}

// Register は新規ユーザーを登録する。
// POST /api/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeProfile(r)
	if !ok {
		writeValidationError(w, "Invalid JSON body")
		return
	}

	created, err := h.service.Register(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, "Successfully created user", toUserResponse(created))
}

// List はユーザー一覧を返す。
// GET /api/users?page=&limit=
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := pagination(r)
	result, err := h.service.List(r.Context(), page, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, "Successfully fetched users", toPageResponse(result, toUserResponse))
}

// Get は指定ユーザーを返す。
// GET /api/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	found, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, "Successfully fetched user", toUserResponse(found))
}

// UpdateProfile は自身のプロフィールを更新する。
// PUT /api/edit_profile/{id}
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	in, ok := decodeProfile(r)
	if !ok {
		writeValidationError(w, "Invalid JSON body")
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), actor, chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, "Successfully updated profile", toUserResponse(updated))
}

// Delete は自身のアカウントを削除する。
// DELETE /api/user/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	deleted, err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, "Successfully deleted account", toUserResponse(deleted))
}

// Follow はuser_idのユーザーをフォローする。
// PUT /api/follow?user_id=
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	h.mutateFollow(w, r, h.service.Follow, "Successfully followed user")
}

// Unfollow はuser_idのユーザーのフォローを解除する。
// PUT /api/unfollow?user_id=
func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	h.mutateFollow(w, r, h.service.Unfollow, "Successfully unfollowed user")
}

type followFunc func(ctx context.Context, actor model.Identity, targetID string) (*user.FollowResult, error)

func (h *UserHandler) mutateFollow(w http.ResponseWriter, r *http.Request, fn followFunc, message string) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	targetID := r.URL.Query().Get("user_id")
	if targetID == "" {
		writeValidationError(w, "user_id is required")
		return
	}

	result, err := fn(r.Context(), actor, targetID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, message, followResponse{
		Dower:  toUserResponse(result.Dower),
		Gainer: toUserResponse(result.Gainer),
	})
}
