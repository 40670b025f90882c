package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/kizuna/internal/media"
	"github.com/hitoshi/kizuna/internal/middleware"
)

// HealthChecker はヘルスチェックでデータベースへの疎通を確認する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger // nilの場合はslog.Default()
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	HTTPRecorder      middleware.HTTPRecorder // nilの場合はHTTPメトリクスを記録しない
	MetricsHandler    http.Handler            // nilの場合は/metricsを公開しない
	HealthChecker     HealthChecker           // nilの場合は/healthは常に200

	// サービス
	AuthService         AuthServiceInterface
	UserService         UserServiceInterface
	PostService         PostServiceInterface
	StatusService       StatusServiceInterface
	CommentService      CommentServiceInterface
	NotificationService NotificationServiceInterface
	MediaStore          MediaStoreInterface

	// メッセージ中継
	Registry         RelayRegistry
	RelaySendTimeout time.Duration

	MaxUploadBytes int64
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS
//	→ (認証が必要なルートのみ) Auth → RateLimit(General) → (アップロードのみ) RateLimit(Upload)
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.HTTPRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	userHandler := NewUserHandler(deps.UserService)
	postHandler := NewPostHandler(deps.PostService, deps.MaxUploadBytes)
	statusHandler := NewStatusHandler(deps.StatusService, deps.MaxUploadBytes)
	commentHandler := NewCommentHandler(deps.CommentService)
	notificationHandler := NewNotificationHandler(deps.NotificationService)
	mediaHandler := NewMediaHandler(deps.MediaStore, media.FolderProfilePhotos, deps.MaxUploadBytes)
	wsHandler := NewWSHandler(deps.Registry, deps.RelaySendTimeout)

	// --- 認証不要のルート ---
	r.Get("/", root)
	r.Get("/health", HealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Post("/auth/login", authHandler.Login)
	r.Post("/api/register", userHandler.Register)

	// WebSocketはブラウザからAuthorizationヘッダーを付けられないため認証しない
	r.Get("/ws/{sender_id}", wsHandler.Relay)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		upload := deps.RateLimiter.UploadMiddleware()

		// ユーザー
		r.Get("/api/users", userHandler.List)
		r.Get("/api/users/{id}", userHandler.Get)
		r.Put("/api/edit_profile/{id}", userHandler.UpdateProfile)
		r.Delete("/api/user/{id}", userHandler.Delete)

		// フォロー
		r.Put("/api/follow", userHandler.Follow)
		r.Put("/api/unfollow", userHandler.Unfollow)

		// 投稿
		r.With(upload).Post("/auth/post", postHandler.Create)
		r.Get("/auth/posts", postHandler.ListFeed)
		r.Delete("/auth/post/{id}", postHandler.Delete)

		// ステータス（GETのidはユーザーID、DELETEのidはステータスID）
		r.With(upload).Post("/api/status", statusHandler.Create)
		r.Get("/api/status/{id}", statusHandler.ListActive)
		r.Delete("/api/status/{id}", statusHandler.Delete)

		// コメント
		r.Post("/api/comment", commentHandler.Create)
		r.Delete("/api/comment/{id}", commentHandler.Delete)

		// 通知
		r.Get("/api/notifications", notificationHandler.List)
		r.Put("/api/notifications/read", notificationHandler.MarkAllRead)
		r.Delete("/api/notifications/{id}", notificationHandler.Delete)

		// プロフィール写真
		r.With(upload).Post("/api/profile_photo", mediaHandler.UploadProfilePhoto)
		r.Delete("/api/profile_photo", mediaHandler.DeleteProfilePhoto)
	})

	return r
}

// root はサービスの稼働確認メッセージを返す。
// GET /
func root(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, "Welcome to kizuna", nil)
}

// HealthHandler はデータベースへの疎通を含むヘルスチェックを返す。ワーカーの管理用サーバーでも使用する。
// GET /health
func HealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				middleware.WriteJSON(w, http.StatusServiceUnavailable, "unhealthy", nil)
				return
			}
		}
		middleware.WriteJSON(w, http.StatusOK, "ok", nil)
	}
}
