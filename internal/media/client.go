// Package media はメディアホスト（Cloudinary）へのアップロードと削除を提供する。
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
	"github.com/hitoshi/kizuna/internal/model"
)

// フォルダ名
const (
	FolderProfilePhotos = "profile_photos"
	FolderPosts         = "posts"
	FolderStatuses      = "statuses"
)

// destroyOK は削除APIが成功時に返すresultの値。
const destroyOK = "ok"

// Config はメディアホストの認証情報。
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	// Endpoint はアップロードAPIのプレフィックス（例: https://api.cloudinary.com）。
	// 空の場合はSDKの既定値を使用する。
	Endpoint string
	// Timeout は1回のAPI呼び出しの上限。0の場合は呼び出し側のコンテキストに従う。
	Timeout time.Duration
}

// Recorder はメディア操作の結果を記録する。
type Recorder interface {
	RecordMediaOp(op, result string)
}

// Client はcloudinary-goのアップロードAPIをラップし、結果をドメインエラーに変換する。
type Client struct {
	cld      *cloudinary.Cloudinary
	logger   *slog.Logger
	timeout  time.Duration
	recorder Recorder
}

// NewClient はClientの新しいインスタンスを生成する。recorderはnilでもよい。
func NewClient(logger *slog.Logger, cfg Config, recorder Recorder) (*Client, error) {
	conf, err := config.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("メディアホストの設定に失敗しました: %w", err)
	}
	if endpoint := strings.TrimRight(cfg.Endpoint, "/"); endpoint != "" {
		conf.API.UploadPrefix = endpoint
	}

	cld, err := cloudinary.NewFromConfiguration(*conf)
	if err != nil {
		return nil, fmt.Errorf("メディアホストクライアントの初期化に失敗しました: %w", err)
	}

	return &Client{
		cld:      cld,
		logger:   logger,
		timeout:  cfg.Timeout,
		recorder: recorder,
	}, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Upload はfileをfolderにアップロードし、公開IDと配信URLを返す。
func (c *Client) Upload(ctx context.Context, file io.Reader, filename, folder string) (model.Content, error) {
	content, err := c.upload(ctx, file, filename, folder)
	c.record("upload", err)
	return content, err
}

func (c *Client) upload(ctx context.Context, file io.Reader, filename, folder string) (model.Content, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	result, err := c.cld.Upload.Upload(ctx, file, uploader.UploadParams{Folder: folder})
	if err != nil {
		c.logger.Error("メディアのアップロードに失敗しました",
			slog.String("folder", folder),
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
		return model.Content{}, model.NewMediaUploadError("media host unreachable or returned an unexpected response")
	}
	if reason := result.Error.Message; reason != "" {
		c.logger.Error("メディアホストがエラーを返しました",
			slog.String("folder", folder),
			slog.String("reason", reason),
		)
		return model.Content{}, model.NewMediaUploadError(reason)
	}
	if result.PublicID == "" || result.SecureURL == "" {
		return model.Content{}, model.NewMediaUploadError("media host response lacks public_id or secure_url")
	}

	c.logger.Info("メディアをアップロードしました",
		slog.String("public_id", result.PublicID),
		slog.String("folder", folder),
	)
	return model.Content{PublicID: result.PublicID, SecureURL: result.SecureURL}, nil
}

// Delete はpublicIDのメディアを削除する。
// レスポンスのresultが "ok" でなかった場合はMediaDeleteエラーを返す。
func (c *Client) Delete(ctx context.Context, publicID string) error {
	err := c.delete(ctx, publicID)
	c.record("delete", err)
	return err
}

func (c *Client) delete(ctx context.Context, publicID string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	result, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		c.logger.Error("メディアの削除に失敗しました",
			slog.String("public_id", publicID),
			slog.String("error", err.Error()),
		)
		return model.NewMediaDeleteError(publicID)
	}
	if result.Result != destroyOK {
		c.logger.Warn("メディアが削除されませんでした",
			slog.String("public_id", publicID),
			slog.String("state", result.Result),
			slog.String("reason", result.Error.Message),
		)
		return model.NewMediaDeleteError(publicID)
	}

	c.logger.Info("メディアを削除しました", slog.String("public_id", publicID))
	return nil
}

func (c *Client) record(op string, err error) {
	if c.recorder == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	c.recorder.RecordMediaOp(op, result)
}
