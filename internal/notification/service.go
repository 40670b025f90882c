// Package notification はユーザー通知の作成・取得・既読化・削除を提供する。
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/kizuna/internal/model"
	"github.com/hitoshi/kizuna/internal/repository"
)

// Service は通知のサービス層。
type Service struct {
	repo repository.NotificationRepository
	now  func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.NotificationRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Notify はuserID宛ての未読通知を作成する。
func (s *Service) Notify(ctx context.Context, userID, message string) error {
	n := &model.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Message:   message,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("通知の作成に失敗しました: %w", err)
	}
	slog.Debug("通知を作成しました",
		slog.String("notification_id", n.ID),
		slog.String("user_id", userID),
	)
	return nil
}

// List はuserIDの通知を新しい順にページ単位で返す。結果が空の場合はNoResultsを返す。
func (s *Service) List(ctx context.Context, userID string, page, limit int) (*model.Page[*model.Notification], error) {
	page, limit, offset := model.NormalizePage(page, limit)

	items, err := s.repo.ListByUserID(ctx, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗しました: %w", err)
	}
	if len(items) == 0 {
		return nil, model.NewNoResultsError("No notification")
	}

	total, err := s.repo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("通知数の取得に失敗しました: %w", err)
	}
	return &model.Page[*model.Notification]{Items: items, Page: page, Limit: limit, Total: total}, nil
}

// MarkAllRead はuserIDの全通知を既読にし、更新件数を返す。
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("通知の既読化に失敗しました: %w", err)
	}
	return n, nil
}

// Delete はactor宛ての通知を削除する。他ユーザーの通知はNotOwnerを返す。
func (s *Service) Delete(ctx context.Context, actor model.Identity, id string) (*model.Notification, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, model.NewNotificationNotFoundError()
	}
	id = parsed.String()
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("通知の取得に失敗しました: %w", err)
	}
	if n == nil {
		return nil, model.NewNotificationNotFoundError()
	}
	if n.UserID != actor.UserID {
		return nil, model.NewNotOwnerError("notification")
	}
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return nil, fmt.Errorf("通知の削除に失敗しました: %w", err)
	}
	return n, nil
}
