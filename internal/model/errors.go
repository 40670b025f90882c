package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// Categoryはハンドラー層でHTTPステータスコードに変換される。
type APIError struct {
	Code     string // エラーコード
	Message  string // クライアントに返すメッセージ
	Category string // not_found, unauthorized, conflict, validation, upstream, internal
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ
const (
	CategoryNotFound     = "not_found"
	CategoryUnauthorized = "unauthorized"
	CategoryConflict     = "conflict"
	CategoryValidation   = "validation"
	CategoryUpstream     = "upstream"
	CategoryInternal     = "internal"
)

// 定義済みエラーコード
const (
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeAccountNotFound      = "ACCOUNT_NOT_FOUND"
	ErrCodeIncorrectPassword    = "INCORRECT_PASSWORD"
	ErrCodeUsernameTaken        = "USERNAME_TAKEN"
	ErrCodeSelfReference        = "SELF_REFERENCE"
	ErrCodeAlreadyFollowing     = "ALREADY_FOLLOWING"
	ErrCodeNotFollowing         = "NOT_FOLLOWING"
	ErrCodePostNotFound         = "POST_NOT_FOUND"
	ErrCodeStatusNotFound       = "STATUS_NOT_FOUND"
	ErrCodeCommentNotFound      = "COMMENT_NOT_FOUND"
	ErrCodeNotificationNotFound = "NOTIFICATION_NOT_FOUND"
	ErrCodeNoResults            = "NO_RESULTS"
	ErrCodeNotOwner             = "NOT_OWNER"
	ErrCodeValidation           = "VALIDATION_FAILED"
	ErrCodeMediaUpload          = "MEDIA_UPLOAD_FAILED"
	ErrCodeMediaDelete          = "MEDIA_DELETE_FAILED"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
)

// ErrorCode はerrがAPIErrorであればそのコードを返す。それ以外は空文字列。
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User does not exist!",
		Category: CategoryNotFound,
	}
}

// NewAccountNotFoundError はログイン時にアカウントが存在しない場合のエラーを生成する。
func NewAccountNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  "Account not found!",
		Category: CategoryNotFound,
	}
}

// NewIncorrectPasswordError はパスワード不一致のエラーを生成する。
func NewIncorrectPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeIncorrectPassword,
		Message:  "Incorrect password!",
		Category: CategoryValidation,
	}
}

// NewUsernameTakenError はユーザー名が既に使われている場合のエラーを生成する。
func NewUsernameTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  "Username has been taken!",
		Category: CategoryConflict,
	}
}

// NewSelfReferenceError は自分自身をフォロー・アンフォローしようとした場合のエラーを生成する。
func NewSelfReferenceError(action string) *APIError {
	return &APIError{
		Code:     ErrCodeSelfReference,
		Message:  fmt.Sprintf("You can't %s yourself!", action),
		Category: CategoryValidation,
	}
}

// NewAlreadyFollowingError は既にフォロー済みの場合のエラーを生成する。
func NewAlreadyFollowingError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyFollowing,
		Message:  "You are already following this account",
		Category: CategoryConflict,
	}
}

// NewNotFollowingError はフォローしていない相手をアンフォローしようとした場合のエラーを生成する。
func NewNotFollowingError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFollowing,
		Message:  "You are not following this account",
		Category: CategoryNotFound,
	}
}

// NewPostNotFoundError は投稿未検出エラーを生成する。
func NewPostNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  "Post not found!",
		Category: CategoryNotFound,
	}
}

// NewStatusNotFoundError はステータス未検出エラーを生成する。
func NewStatusNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeStatusNotFound,
		Message:  "Status not found!",
		Category: CategoryNotFound,
	}
}

// NewCommentNotFoundError はコメント未検出エラーを生成する。
func NewCommentNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeCommentNotFound,
		Message:  "Comment not found!",
		Category: CategoryNotFound,
	}
}

// NewNotificationNotFoundError は通知未検出エラーを生成する。
func NewNotificationNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotificationNotFound,
		Message:  "Notification not found!",
		Category: CategoryNotFound,
	}
}

// NewNoResultsError は一覧取得の結果が空の場合のエラーを生成する。
func NewNoResultsError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeNoResults,
		Message:  message,
		Category: CategoryNotFound,
	}
}

// NewNotOwnerError は他ユーザーのリソースを変更・削除しようとした場合のエラーを生成する。
// resourceには "post"、"status" などを指定する。
func NewNotOwnerError(resource string) *APIError {
	return &APIError{
		Code:     ErrCodeNotOwner,
		Message:  fmt.Sprintf("This %s does not belong to this user!", resource),
		Category: CategoryUnauthorized,
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: CategoryValidation,
	}
}

// NewUnauthorizedError は認証エラーを生成する。
// codeには機械判読可能な理由（invalid_token等）を指定する。
func NewUnauthorizedError(code, message string) *APIError {
	return &APIError{
		Code:     code,
		Message:  message,
		Category: CategoryUnauthorized,
	}
}

// NewMediaUploadError はメディアホストへのアップロード失敗エラーを生成する。
func NewMediaUploadError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeMediaUpload,
		Message:  fmt.Sprintf("Media file not uploaded: %s", reason),
		Category: CategoryUpstream,
	}
}

// NewMediaDeleteError はメディアホストからの削除失敗エラーを生成する。
func NewMediaDeleteError(publicID string) *APIError {
	return &APIError{
		Code:     ErrCodeMediaDelete,
		Message:  fmt.Sprintf("Failed to delete media %s.", publicID),
		Category: CategoryUpstream,
	}
}
