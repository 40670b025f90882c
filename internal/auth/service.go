// Package auth はパスワード認証とセッショントークンの発行・検証を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/kizuna/internal/model"
)

// UserLookup はログイン時のユーザー検索に必要なリポジトリ操作。
type UserLookup interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
}

// TokenIssuer はIdentityからセッショントークンを発行する。
type TokenIssuer interface {
	Issue(identity model.Identity) (string, error)
}

// Service はログインに関するビジネスロジックを提供する。
type Service struct {
	users  UserLookup
	hasher PasswordHasher
	tokens TokenIssuer
}

// NewService はServiceを生成する。
func NewService(users UserLookup, hasher PasswordHasher, tokens TokenIssuer) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
	}
}

// Login はusernameとpasswordを照合し、セッショントークンを発行する。
// アカウントが存在しない場合はAccountNotFound、パスワード不一致はIncorrectPasswordを返す。
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return "", model.NewAccountNotFoundError()
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		slog.Info("login rejected",
			slog.String("user_id", user.ID),
			slog.String("reason", "incorrect_password"),
		)
		return "", model.NewIncorrectPasswordError()
	}

	token, err := s.tokens.Issue(user.Identity())
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return token, nil
}
