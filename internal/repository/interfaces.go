// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/kizuna/internal/model"
)

// ErrUsernameTaken はusernameのユニーク制約違反を表す。
var ErrUsernameTaken = errors.New("username already exists")

// FollowMutation はトランザクション内でロックされた2ユーザーのレコードを変更する関数。
// targetが存在しない場合はnilが渡される。エラーを返すとトランザクションはロールバックされる。
type FollowMutation func(actor, target *model.User) error

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はusernameでユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// List はユーザー一覧をcreated_at昇順で取得する。
	List(ctx context.Context, offset, limit int) ([]*model.User, error)

	// Count は全ユーザー数を返す。
	Count(ctx context.Context) (int, error)

	// Create はユーザーを作成する。usernameが重複する場合はErrUsernameTakenを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateProfile はプロフィール項目を更新する。followers/followingsは変更しない。
	// usernameが重複する場合はErrUsernameTakenを返す。
	UpdateProfile(ctx context.Context, user *model.User) error

	// MutateFollowEdge はactorとtargetの行を同一トランザクション内でロックしてmutateを適用し、
	// 両方のfollowers/followingsを保存する。更新後の2レコードを返す。
	// actorが存在しない場合はmutateを呼ばずにnilを返す。
	MutateFollowEdge(ctx context.Context, actorID, targetID string, mutate FollowMutation) (*model.User, *model.User, error)

	// DeleteByID は指定IDのユーザーを削除し、他ユーザーのfollowers/followingsから
	// 当該ユーザーのIdentityを同一トランザクションで取り除く。
	// 削除対象が存在しなかった場合はfalseを返す。
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// Create は投稿を作成する。
	Create(ctx context.Context, post *model.Post) error

	// ListByUserIDs は指定ユーザー群の投稿をcreated_at降順で取得する。
	ListByUserIDs(ctx context.Context, userIDs []string, offset, limit int) ([]*model.Post, error)

	// CountByUserIDs は指定ユーザー群の投稿数を返す。
	CountByUserIDs(ctx context.Context, userIDs []string) (int, error)

	// DeleteByID は指定IDの投稿を削除する。関連コメントはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// StatusRepository はステータスデータの永続化インターフェース。
type StatusRepository interface {
	// FindByID は指定IDのステータスを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Status, error)

	// Create はステータスを作成する。
	Create(ctx context.Context, status *model.Status) error

	// ListActiveByUserID はnow時点で期限切れでないステータスをcreated_at降順で取得する。
	ListActiveByUserID(ctx context.Context, userID string, now time.Time, offset, limit int) ([]*model.Status, error)

	// CountActiveByUserID はnow時点で期限切れでないステータス数を返す。
	CountActiveByUserID(ctx context.Context, userID string, now time.Time) (int, error)

	// DeleteByID は指定IDのステータスを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Comment, error)

	// Create はコメントを作成する。
	Create(ctx context.Context, comment *model.Comment) error

	// DeleteByID は指定IDのコメントを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// NotificationRepository は通知データの永続化インターフェース。
type NotificationRepository interface {
	// FindByID は指定IDの通知を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Notification, error)

	// Create は通知を作成する。
	Create(ctx context.Context, notification *model.Notification) error

	// ListByUserID はユーザーの通知をcreated_at降順で取得する。
	ListByUserID(ctx context.Context, userID string, offset, limit int) ([]*model.Notification, error)

	// CountByUserID はユーザーの通知数を返す。
	CountByUserID(ctx context.Context, userID string) (int, error)

	// MarkAllRead はユーザーの全通知を既読にし、更新件数を返す。
	MarkAllRead(ctx context.Context, userID string) (int64, error)

	// DeleteByID は指定IDの通知を削除する。
	DeleteByID(ctx context.Context, id string) error
}
