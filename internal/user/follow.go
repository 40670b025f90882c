package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/kizuna/internal/model"
)

// FollowResult はフォロー操作後の両ユーザーのレコード。
// Dowerは操作したユーザー、Gainerは対象ユーザー。
type FollowResult struct {
	Dower  *model.User
	Gainer *model.User
}

// Follow はactorがtargetIDのユーザーをフォローする。
// 両ユーザーの行は同一トランザクション内でロックされ、両側の辺が同時に保存される。
func (s *Service) Follow(ctx context.Context, actor model.Identity, targetID string) (*FollowResult, error) {
	result, err := s.mutateEdge(ctx, actor, targetID, "follow", addFollowEdge)
	s.record("follow", err)
	if err != nil {
		return nil, err
	}

	slog.Info("フォローしました",
		slog.String("actor_id", result.Dower.ID),
		slog.String("target_id", result.Gainer.ID),
	)

	// 通知はフォロー操作とは独立したベストエフォートの書き込み
	if s.notifier != nil {
		msg := fmt.Sprintf("%s followed you", result.Dower.Username)
		if err := s.notifier.Notify(ctx, result.Gainer.ID, msg); err != nil {
			slog.Warn("フォロー通知の作成に失敗しました",
				slog.String("target_id", result.Gainer.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return result, nil
}

// Unfollow はactorがtargetIDのユーザーのフォローを解除する。
func (s *Service) Unfollow(ctx context.Context, actor model.Identity, targetID string) (*FollowResult, error) {
	result, err := s.mutateEdge(ctx, actor, targetID, "unfollow", removeFollowEdge)
	s.record("unfollow", err)
	if err != nil {
		return nil, err
	}

	slog.Info("フォローを解除しました",
		slog.String("actor_id", result.Dower.ID),
		slog.String("target_id", result.Gainer.ID),
	)
	return result, nil
}

// mutateEdge は存在確認と自己参照の判定を行い、edgeをトランザクション内で適用する。
func (s *Service) mutateEdge(
	ctx context.Context,
	actor model.Identity,
	targetID, action string,
	edge func(actor, target *model.User) error,
) (*FollowResult, error) {
	targetID, ok := canonicalID(targetID)
	if !ok {
		return nil, model.NewUserNotFoundError()
	}

	// 同一IDの場合は1行しかロックできないため、トランザクション前に判定する
	if targetID == actor.UserID {
		target, err := s.users.FindByID(ctx, targetID)
		if err != nil {
			return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
		}
		if target == nil {
			return nil, model.NewUserNotFoundError()
		}
		return nil, model.NewSelfReferenceError(action)
	}

	dower, gainer, err := s.users.MutateFollowEdge(ctx, actor.UserID, targetID, func(a, t *model.User) error {
		if t == nil {
			return model.NewUserNotFoundError()
		}
		return edge(a, t)
	})
	if err != nil {
		if model.ErrorCode(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("フォロー関係の更新に失敗しました: %w", err)
	}
	if dower == nil {
		// トークンは有効だがactorのアカウントが既に削除されている
		return nil, model.NewUserNotFoundError()
	}
	return &FollowResult{Dower: dower, Gainer: gainer}, nil
}

func (s *Service) record(op string, err error) {
	if s.recorder == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
		if code := model.ErrorCode(err); code != "" {
			result = code
		}
	}
	s.recorder.RecordFollowOp(op, result)
}
