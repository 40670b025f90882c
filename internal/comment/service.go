// Package comment は投稿へのコメントの作成と削除を提供する。
package comment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/hitoshi/kizuna/internal/model"
	"github.com/hitoshi/kizuna/internal/repository"
)

// MaxTextLength はコメント本文の最大文字数。
const MaxTextLength = 200

// Sanitizer はユーザー入力テキストからマークアップを除去する。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Notifier はユーザーへの通知を書き込む。
type Notifier interface {
	Notify(ctx context.Context, userID, message string) error
}

// Service はコメントのサービス層。
type Service struct {
	comments  repository.CommentRepository
	posts     repository.PostRepository
	sanitizer Sanitizer
	notifier  Notifier
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。notifierはnilでもよい。
func NewService(comments repository.CommentRepository, posts repository.PostRepository, sanitizer Sanitizer, notifier Notifier) *Service {
	return &Service{
		comments:  comments,
		posts:     posts,
		sanitizer: sanitizer,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Create はpostIDの投稿にコメントする。本文は投稿者への "@username " を前置して保存する。
func (s *Service) Create(ctx context.Context, actor model.Identity, postID, text string) (*model.Comment, error) {
	if err := validation.Validate(text, validation.Required, validation.RuneLength(1, MaxTextLength)); err != nil {
		return nil, model.NewValidationError("text: " + err.Error())
	}
	parsed, err := uuid.Parse(postID)
	if err != nil {
		return nil, model.NewPostNotFoundError()
	}
	postID = parsed.String()

	p, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewPostNotFoundError()
	}

	c := &model.Comment{
		ID:        uuid.New().String(),
		User:      actor,
		PostID:    postID,
		Text:      fmt.Sprintf("@%s %s", p.User.Username, s.sanitizer.Sanitize(text)),
		CreatedAt: s.now().UTC(),
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("コメントの保存に失敗しました: %w", err)
	}

	slog.Info("コメントを作成しました",
		slog.String("comment_id", c.ID),
		slog.String("post_id", postID),
		slog.String("user_id", actor.UserID),
	)

	if s.notifier != nil && p.User.UserID != actor.UserID {
		msg := fmt.Sprintf("%s commented on your post", actor.Username)
		if err := s.notifier.Notify(ctx, p.User.UserID, msg); err != nil {
			slog.Warn("コメント通知の作成に失敗しました",
				slog.String("post_id", postID),
				slog.String("error", err.Error()),
			)
		}
	}
	return c, nil
}

// Delete はactorのコメントを削除し、削除したコメントを返す。
func (s *Service) Delete(ctx context.Context, actor model.Identity, id string) (*model.Comment, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, model.NewCommentNotFoundError()
	}
	id = parsed.String()
	c, err := s.comments.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewCommentNotFoundError()
	}
	if c.User.UserID != actor.UserID {
		return nil, model.NewNotOwnerError("comment")
	}
	if err := s.comments.DeleteByID(ctx, id); err != nil {
		return nil, fmt.Errorf("コメントの削除に失敗しました: %w", err)
	}
	return c, nil
}
