// Package user はユーザープロフィールとフォローグラフのドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/hitoshi/kizuna/internal/model"
	"github.com/hitoshi/kizuna/internal/repository"
)

// PasswordHasher は平文パスワードをハッシュ化する。
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// Sanitizer はユーザー入力テキストからマークアップを除去する。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Notifier はユーザーへの通知を書き込む。
type Notifier interface {
	Notify(ctx context.Context, userID, message string) error
}

// FollowRecorder はフォロー操作の結果を記録する。
type FollowRecorder interface {
	RecordFollowOp(op, result string)
}

// Service はユーザー管理とフォローグラフのサービス層。
type Service struct {
	users     repository.UserRepository
	hasher    PasswordHasher
	sanitizer Sanitizer
	notifier  Notifier
	recorder  FollowRecorder
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// notifierとrecorderはnilでもよい。
func NewService(
	users repository.UserRepository,
	hasher PasswordHasher,
	sanitizer Sanitizer,
	notifier Notifier,
	recorder FollowRecorder,
) *Service {
	return &Service{
		users:     users,
		hasher:    hasher,
		sanitizer: sanitizer,
		notifier:  notifier,
		recorder:  recorder,
		now:       time.Now,
	}
}

// phonePattern は先頭の+を許容した数字のみの電話番号。
var phonePattern = regexp.MustCompile(`^\+?[0-9]+$`)

// validateProfile はプロフィール入力を検証する。
func validateProfile(in *model.ProfileInput) error {
	err := validation.ValidateStruct(in,
		validation.Field(&in.Name, validation.Required),
		validation.Field(&in.Username, validation.Required, validation.Length(5, 15)),
		validation.Field(&in.Password, validation.Required, validation.Length(6, 20)),
		validation.Field(&in.PhoneNumber, validation.Required, validation.Length(11, 15), validation.Match(phonePattern)),
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Bio, validation.Length(0, 200)),
		validation.Field(&in.Avatar, is.URL),
	)
	if err != nil {
		return model.NewValidationError(err.Error())
	}
	for _, link := range in.Links {
		if err := validation.Validate(link, validation.Required, is.URL); err != nil {
			return model.NewValidationError(fmt.Sprintf("links: %q %s", link, err.Error()))
		}
	}
	return nil
}

// canonicalID はidを小文字ハイフン区切りの正規形に変換する。
// UUIDでないIDは存在しないものとして扱うため、okはfalseになる。
func canonicalID(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// Register は新規ユーザーを登録する。
// usernameが既に使われている場合はUsernameTakenを返す。
func (s *Service) Register(ctx context.Context, in model.ProfileInput) (*model.User, error) {
	if err := validateProfile(&in); err != nil {
		return nil, err
	}

	existing, err := s.users.FindByUsername(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewUsernameTakenError()
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := s.now().UTC()
	user := &model.User{
		ID:           uuid.New().String(),
		PasswordHash: hash,
		Followers:    []model.Identity{},
		Followings:   []model.Identity{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.applyProfile(user, &in)

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, model.NewUsernameTakenError()
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("ユーザーを登録しました",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// applyProfile は入力値をサニタイズしてuserに反映する。パスワードとフォロー関係は扱わない。
func (s *Service) applyProfile(user *model.User, in *model.ProfileInput) {
	user.Name = s.sanitizer.Sanitize(in.Name)
	user.Username = in.Username
	user.PhoneNumber = in.PhoneNumber
	user.Email = in.Email
	user.Bio = s.sanitizer.Sanitize(in.Bio)
	user.Avatar = in.Avatar
	user.Gender = s.sanitizer.Sanitize(in.Gender)
	user.Links = append([]string{}, in.Links...)
}

// List はユーザー一覧をページ単位で返す。結果が空の場合はNoResultsを返す。
func (s *Service) List(ctx context.Context, page, limit int) (*model.Page[*model.User], error) {
	page, limit, offset := model.NormalizePage(page, limit)

	users, err := s.users.List(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	if len(users) == 0 {
		return nil, model.NewNoResultsError("No users found!")
	}

	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー数の取得に失敗しました: %w", err)
	}

	return &model.Page[*model.User]{Items: users, Page: page, Limit: limit, Total: total}, nil
}

// Get は指定IDのユーザーを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	id, ok := canonicalID(id)
	if !ok {
		return nil, model.NewUserNotFoundError()
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdateProfile はactor自身のプロフィールを更新する。
// followers/followingsは変更せず、パスワードは再ハッシュ化する。
func (s *Service) UpdateProfile(ctx context.Context, actor model.Identity, id string, in model.ProfileInput) (*model.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.ID != actor.UserID {
		return nil, model.NewNotOwnerError("profile")
	}
	if err := validateProfile(&in); err != nil {
		return nil, err
	}

	if in.Username != user.Username {
		existing, err := s.users.FindByUsername(ctx, in.Username)
		if err != nil {
			return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
		}
		if existing != nil {
			return nil, model.NewUsernameTakenError()
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}
	user.PasswordHash = hash
	s.applyProfile(user, &in)
	user.UpdatedAt = s.now().UTC()

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, model.NewUsernameTakenError()
		}
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}

	slog.Info("プロフィールを更新しました", slog.String("user_id", user.ID))
	return user, nil
}

// Delete はactor自身のアカウントを削除し、削除前のユーザーを返す。
// 他ユーザーのfollowers/followingsからも同一トランザクションで取り除かれる。
func (s *Service) Delete(ctx context.Context, actor model.Identity, id string) (*model.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.ID != actor.UserID {
		return nil, model.NewNotOwnerError("account")
	}

	deleted, err := s.users.DeleteByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}
	if !deleted {
		return nil, model.NewUserNotFoundError()
	}

	slog.Info("ユーザーを削除しました", slog.String("user_id", id))
	return user, nil
}
