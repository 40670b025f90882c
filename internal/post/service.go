// Package post は投稿の作成・フィード取得・削除を提供する。
package post

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/hitoshi/kizuna/internal/model"
	"github.com/hitoshi/kizuna/internal/repository"
)

// MaxCaptionLength はキャプションの最大文字数。
const MaxCaptionLength = 1000

// MediaStore はメディアホストへのアップロードと削除を行う。
type MediaStore interface {
	Upload(ctx context.Context, file io.Reader, filename, folder string) (model.Content, error)
	Delete(ctx context.Context, publicID string) error
}

// Sanitizer はユーザー入力テキストからマークアップを除去する。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Service は投稿のサービス層。
type Service struct {
	posts     repository.PostRepository
	users     repository.UserRepository
	media     MediaStore
	sanitizer Sanitizer
	folder    string
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(posts repository.PostRepository, users repository.UserRepository, media MediaStore, sanitizer Sanitizer) *Service {
	return &Service{
		posts:     posts,
		users:     users,
		media:     media,
		sanitizer: sanitizer,
		folder:    "posts",
		now:       time.Now,
	}
}

// Create はメディアをアップロードし、actorの投稿として保存する。
// 保存に失敗した場合、アップロード済みのメディアはベストエフォートで削除する。
func (s *Service) Create(ctx context.Context, actor model.Identity, file io.Reader, filename, caption string) (*model.Post, error) {
	if err := validation.Validate(caption, validation.RuneLength(0, MaxCaptionLength)); err != nil {
		return nil, model.NewValidationError("caption: " + err.Error())
	}

	content, err := s.media.Upload(ctx, file, filename, s.folder)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := &model.Post{
		ID:        uuid.New().String(),
		User:      actor,
		Content:   content,
		Caption:   s.sanitizer.Sanitize(caption),
		Likes:     []model.Identity{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.posts.Create(ctx, p); err != nil {
		if delErr := s.media.Delete(ctx, content.PublicID); delErr != nil {
			slog.Warn("孤立したメディアの削除に失敗しました",
				slog.String("public_id", content.PublicID),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("投稿の保存に失敗しました: %w", err)
	}

	slog.Info("投稿を作成しました",
		slog.String("post_id", p.ID),
		slog.String("user_id", actor.UserID),
	)
	return p, nil
}

// ListFeed はactor自身とフォロー中のユーザーの投稿を新しい順に返す。
// フォロー先はリクエスト時点のユーザーレコードから解決する。
func (s *Service) ListFeed(ctx context.Context, actor model.Identity, page, limit int) (*model.Page[*model.Post], error) {
	page, limit, offset := model.NormalizePage(page, limit)

	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	ids := make([]string, 0, len(user.Followings)+1)
	for _, f := range user.Followings {
		ids = append(ids, f.UserID)
	}
	ids = append(ids, user.ID)

	items, err := s.posts.ListByUserIDs(ctx, ids, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	if len(items) == 0 {
		return nil, model.NewNoResultsError("No post found!")
	}

	total, err := s.posts.CountByUserIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("投稿数の取得に失敗しました: %w", err)
	}
	return &model.Page[*model.Post]{Items: items, Page: page, Limit: limit, Total: total}, nil
}

// Delete はactorの投稿を削除する。メディアの削除に失敗した場合はレコードを残す。
func (s *Service) Delete(ctx context.Context, actor model.Identity, id string) (*model.Post, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, model.NewPostNotFoundError()
	}
	id = parsed.String()
	p, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewPostNotFoundError()
	}
	if p.User.UserID != actor.UserID {
		return nil, model.NewNotOwnerError("post")
	}

	if err := s.media.Delete(ctx, p.Content.PublicID); err != nil {
		return nil, err
	}
	if err := s.posts.DeleteByID(ctx, id); err != nil {
		return nil, fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}

	slog.Info("投稿を削除しました",
		slog.String("post_id", id),
		slog.String("user_id", actor.UserID),
	)
	return p, nil
}
