// Package status は24時間で期限切れになるステータスの作成・取得・削除を提供する。
package status

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

// Service はステータスのサービス層。
type Service struct {
	statuses  repository.StatusRepository
	users     repository.UserRepository
	media     MediaStore
	sanitizer Sanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(statuses repository.StatusRepository, users repository.UserRepository, media MediaStore, sanitizer Sanitizer) *Service {
	return &Service{
		statuses:  statuses,
		users:     users,
		media:     media,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// Create はメディアをアップロードし、現在時刻から24時間有効なステータスを作成する。
// privacyが空の場合はPublicになる。
func (s *Service) Create(ctx context.Context, actor model.Identity, file io.Reader, filename, caption string, privacy model.Privacy) (*model.Status, error) {
	if privacy == "" {
		privacy = model.PrivacyPublic
	}
	err := validation.Errors{
		"caption": validation.Validate(caption, validation.RuneLength(0, MaxCaptionLength)),
		"privacy": validation.Validate(string(privacy), validation.In(
			string(model.PrivacyPublic), string(model.PrivacyPrivate), string(model.PrivacyCustom),
		)),
	}.Filter()
	if err != nil {
		return nil, model.NewValidationError(err.Error())
	}

	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	content, err := s.media.Upload(ctx, file, filename, "statuses")
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	st := &model.Status{
		ID:        uuid.New().String(),
		UserID:    actor.UserID,
		Content:   content,
		Caption:   s.sanitizer.Sanitize(caption),
		Privacy:   privacy,
		CreatedAt: now,
		ExpiredAt: now.Add(model.StatusLifetime),
	}
	if err := s.statuses.Create(ctx, st); err != nil {
		if delErr := s.media.Delete(ctx, content.PublicID); delErr != nil {
			slog.Warn("孤立したメディアの削除に失敗しました",
				slog.String("public_id", content.PublicID),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("ステータスの保存に失敗しました: %w", err)
	}

	slog.Info("ステータスを作成しました",
		slog.String("status_id", st.ID),
		slog.String("user_id", actor.UserID),
	)
	return st, nil
}

// ListActive はuserIDの期限切れでないステータスを新しい順に返す。
// 期限判定は保存済みフラグに加えて読み取り時刻とexpired_atの比較で行う。
func (s *Service) ListActive(ctx context.Context, userID string, page, limit int) (*model.Page[*model.Status], error) {
	page, limit, offset := model.NormalizePage(page, limit)
	parsed, err := uuid.Parse(userID)
	if err != nil {
		return nil, model.NewStatusNotFoundError()
	}
	userID = parsed.String()

	now := s.now().UTC()
	total, err := s.statuses.CountActiveByUserID(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("ステータス数の取得に失敗しました: %w", err)
	}
	if total == 0 {
		return nil, model.NewStatusNotFoundError()
	}

	items, err := s.statuses.ListActiveByUserID(ctx, userID, now, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("ステータス一覧の取得に失敗しました: %w", err)
	}
	return &model.Page[*model.Status]{Items: items, Page: page, Limit: limit, Total: total}, nil
}

// Delete はactorのステータスを削除する。メディアの削除に失敗した場合はレコードを残す。
func (s *Service) Delete(ctx context.Context, actor model.Identity, id string) (*model.Status, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, model.NewStatusNotFoundError()
	}
	id = parsed.String()
	st, err := s.statuses.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ステータスの取得に失敗しました: %w", err)
	}
	if st == nil {
		return nil, model.NewStatusNotFoundError()
	}
	if st.UserID != actor.UserID {
		return nil, model.NewNotOwnerError("status")
	}

	if err := s.media.Delete(ctx, st.Content.PublicID); err != nil {
		return nil, err
	}
	if err := s.statuses.DeleteByID(ctx, id); err != nil {
		return nil, fmt.Errorf("ステータスの削除に失敗しました: %w", err)
	}

	slog.Info("ステータスを削除しました",
		slog.String("status_id", id),
		slog.String("user_id", actor.UserID),
	)
	return st, nil
}
