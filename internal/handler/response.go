package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/kizuna/internal/middleware"
	"github.com/hitoshi/kizuna/internal/model"
)

// userResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	UserID      string           `json:"user_id"`
	Name        string           `json:"name"`
	Username    string           `json:"username"`
	PhoneNumber string           `json:"phone_number"`
	Email       string           `json:"email"`
	Bio         string           `json:"bio"`
	Avatar      string           `json:"avatar"`
	Gender      string           `json:"gender"`
	Links       []string         `json:"links"`
	Followers   []model.Identity `json:"followers"`
	Followings  []model.Identity `json:"followings"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type contentResponse struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
}

type postResponse struct {
	ID        string           `json:"id"`
	User      model.Identity   `json:"user"`
	Content   contentResponse  `json:"content"`
	Caption   string           `json:"caption"`
	Likes     []model.Identity `json:"likes"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type statusResponse struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Content   contentResponse `json:"content"`
	Caption   string          `json:"caption"`
	Privacy   model.Privacy   `json:"privacy"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiredAt time.Time       `json:"expired_at"`
	IsExpired bool            `json:"is_expired"`
}

type commentResponse struct {
	ID        string         `json:"id"`
	User      model.Identity `json:"user"`
	PostID    string         `json:"post_id"`
	Text      string         `json:"text"`
	CreatedAt time.Time      `json:"created_at"`
}

type notificationResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// pageResponse はページネーション付き一覧のレスポンス。
type pageResponse[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		UserID:      u.ID,
		Name:        u.Name,
		Username:    u.Username,
		PhoneNumber: u.PhoneNumber,
		Email:       u.Email,
		Bio:         u.Bio,
		Avatar:      u.Avatar,
		Gender:      u.Gender,
		Links:       nonNil(u.Links),
		Followers:   nonNil(u.Followers),
		Followings:  nonNil(u.Followings),
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func toContentResponse(c model.Content) contentResponse {
	return contentResponse{PublicID: c.PublicID, SecureURL: c.SecureURL}
}

func toPostResponse(p *model.Post) postResponse {
	return postResponse{
		ID:        p.ID,
		User:      p.User,
		Content:   toContentResponse(p.Content),
		Caption:   p.Caption,
		Likes:     nonNil(p.Likes),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// toStatusResponse はnow時点の期限切れ判定を含めてステータスを変換する。
func toStatusResponse(s *model.Status, now time.Time) statusResponse {
	return statusResponse{
		ID:        s.ID,
		UserID:    s.UserID,
		Content:   toContentResponse(s.Content),
		Caption:   s.Caption,
		Privacy:   s.Privacy,
		CreatedAt: s.CreatedAt,
		ExpiredAt: s.ExpiredAt,
		IsExpired: s.IsExpired(now),
	}
}

func toCommentResponse(c *model.Comment) commentResponse {
	return commentResponse{
		ID:        c.ID,
		User:      c.User,
		PostID:    c.PostID,
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
	}
}

func toNotificationResponse(n *model.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

// toPageResponse はページの各要素をconvで変換する。
func toPageResponse[S, T any](p *model.Page[S], conv func(S) T) pageResponse[T] {
	items := make([]T, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, conv(item))
	}
	return pageResponse[T]{Items: items, Page: p.Page, Limit: p.Limit, Total: p.Total}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// pagination はクエリパラメータのpageとlimitを読み取る。
// 数値でない値は0として扱い、サービス層で既定値に丸められる。
func pagination(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}

// requireIdentity は認証済みIdentityを取得する。取得できない場合は401を書き込みfalseを返す。
func requireIdentity(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized,
			model.NewUnauthorizedError(middleware.CodeMissingToken, "Not authenticated"))
		return model.Identity{}, false
	}
	return identity, true
}

// writeValidationError は400の検証エラーを書き込む。
func writeValidationError(w http.ResponseWriter, message string) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(message))
}

// handleServiceError はサービス層から返されたエラーをカテゴリに応じたHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, middleware.StatusForCategory(apiErr.Category), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}
