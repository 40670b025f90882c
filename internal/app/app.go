package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/kizuna/internal/auth"
	"github.com/hitoshi/kizuna/internal/comment"
	"github.com/hitoshi/kizuna/internal/config"
	"github.com/hitoshi/kizuna/internal/database"
	"github.com/hitoshi/kizuna/internal/handler"
	"github.com/hitoshi/kizuna/internal/logger"
	"github.com/hitoshi/kizuna/internal/media"
	"github.com/hitoshi/kizuna/internal/metrics"
	"github.com/hitoshi/kizuna/internal/middleware"
	"github.com/hitoshi/kizuna/internal/notification"
	"github.com/hitoshi/kizuna/internal/post"
	"github.com/hitoshi/kizuna/internal/relay"
	"github.com/hitoshi/kizuna/internal/repository"
	"github.com/hitoshi/kizuna/internal/security"
	"github.com/hitoshi/kizuna/internal/status"
	"github.com/hitoshi/kizuna/internal/user"
	"github.com/hitoshi/kizuna/internal/worker/cleanup"
)

const (
	dbPingTimeout       = 5 * time.Second
	mediaRequestTimeout = 30 * time.Second
	shutdownTimeout     = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込んでログレベルを反映する。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ログレベルの反映。不正値は警告してinfoのまま続行する
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		slog.Warn("invalid LOG_LEVEL, falling back to info",
			slog.String("log_level", cfg.LogLevel),
			slog.String("error", err.Error()),
		)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	if cmd == CommandHelp {
		WriteUsage(w)
		return nil
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.Port),
		slog.String("log_level", cfg.LogLevel),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(context.Background(), db, dbPingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)
	statusRepo := repository.NewPostgresStatusRepo(db)
	commentRepo := repository.NewPostgresCommentRepo(db)
	notificationRepo := repository.NewPostgresNotificationRepo(db)

	// 3. メトリクス
	registry := metrics.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. セキュリティサービスの初期化
	sanitizer := security.NewTextSanitizer()
	hasher := auth.NewBcryptHasher(bcrypt.DefaultCost)
	tokens, err := auth.NewTokenService([]byte(cfg.SecretKey), cfg.Algorithm, cfg.AccessTokenExpire)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	// 5. ドメインサービスの初期化
	notificationService := notification.NewService(notificationRepo)
	userService := user.NewService(userRepo, hasher, sanitizer, notificationService, collector)
	authService := auth.NewService(userRepo, hasher, tokens)

	mediaClient, err := media.NewClient(
		slog.Default(),
		media.Config{
			CloudName: cfg.CloudName,
			APIKey:    cfg.CloudAPIKey,
			APISecret: cfg.CloudAPISecret,
			Endpoint:  cfg.MediaEndpoint,
			Timeout:   mediaRequestTimeout,
		},
		collector,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize media client: %w", err)
	}

	postService := post.NewService(postRepo, userRepo, mediaClient, sanitizer)
	statusService := status.NewService(statusRepo, userRepo, mediaClient, sanitizer)
	commentService := comment.NewService(commentRepo, postRepo, sanitizer, notificationService)

	// 6. リレーとレートリミッター
	relayRegistry := relay.NewRegistry(slog.Default(), collector)
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitUpload),
	)
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		TokenVerifier:     tokens,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		HTTPRecorder:      collector,
		MetricsHandler:    metrics.Handler(registry),
		HealthChecker:     db,

		AuthService:         authService,
		UserService:         userService,
		PostService:         postService,
		StatusService:       statusService,
		CommentService:      commentService,
		NotificationService: notificationService,
		MediaStore:          mediaClient,

		Registry:         relayRegistry,
		RelaySendTimeout: cfg.RelaySendTimeout,
		MaxUploadBytes:   cfg.MediaMaxBytes,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	// WebSocket接続は長時間維持されるためWriteTimeoutは設定しない。
	// 書き込みの期限はリレー送信ごとにSetWriteDeadlineで管理する。
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Shutdownはハイジャック済みの接続を待たないため、リレー接続は明示的に閉じる
	relayRegistry.CloseAll()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れステータスの掃除と古い通知の削除を定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. ジョブの初期化
	registry := metrics.NewRegistry()
	collector := metrics.NewCollector(registry)
	scheduler := cleanup.NewScheduler(slog.Default(),
		cleanup.NewStatusSweepJob(db, slog.Default(), collector),
		cleanup.NewNotificationPurgeJob(db, slog.Default(), collector, cfg.NotificationRetentionDays),
	)

	// 3. ヘルスチェックとメトリクスのみを公開する管理用サーバー
	admin := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newWorkerMux(db, metrics.Handler(registry)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker admin server error", slog.String("error", err.Error()))
		}
	}()

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.String("admin_addr", admin.Addr),
		slog.Duration("sweep_interval", cfg.StatusSweepInterval),
		slog.Int("notification_retention_days", cfg.NotificationRetentionDays),
	)

	// スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.StatusSweepInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := admin.Shutdown(shutdownCtx); err != nil {
		slog.Warn("worker admin server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// newWorkerMux はワーカー用の/healthと/metricsを提供するハンドラーを返す。
func newWorkerMux(db handler.HealthChecker, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	mux.Handle("GET /health", handler.HealthHandler(db))
	return mux
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	schema, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(schema.Version)),
		slog.Bool("dirty", schema.Dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
