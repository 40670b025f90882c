package model

import "time"

// Content はメディアホストにアップロードされたファイルの参照。
type Content struct {
	PublicID  string
	SecureURL string
}

// Post はユーザーの投稿を表す。
type Post struct {
	ID        string
	User      Identity
	Content   Content
	Caption   string
	Likes     []Identity
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Privacy はステータスの公開範囲。
type Privacy string

const (
	PrivacyPublic  Privacy = "Public"
	PrivacyPrivate Privacy = "Private"
	PrivacyCustom  Privacy = "Custom"
)

// StatusLifetime はステータスの有効期間。
const StatusLifetime = 24 * time.Hour

// Status は24時間で期限切れになる一時的な投稿を表す。
type Status struct {
	ID        string
	UserID    string
	Content   Content
	Caption   string
	Privacy   Privacy
	CreatedAt time.Time
	ExpiredAt time.Time
	// IsExpiredFlag は保存されている期限切れフラグ。
	// 期限判定にはIsExpiredを使用すること。
	IsExpiredFlag bool
}

// IsExpired は指定時刻においてステータスが期限切れかどうかを返す。
func (s *Status) IsExpired(now time.Time) bool {
	return s.IsExpiredFlag || !now.Before(s.ExpiredAt)
}

// Comment は投稿へのコメントを表す。
type Comment struct {
	ID        string
	User      Identity
	PostID    string
	Text      string
	CreatedAt time.Time
}

// Notification はユーザーへの通知を表す。
type Notification struct {
	ID        string
	UserID    string
	Message   string
	IsRead    bool
	CreatedAt time.Time
}

// Page はページネーション付き一覧の結果。
type Page[T any] struct {
	Items []T
	Page  int
	Limit int
	Total int
}

// ページネーションの既定値
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// NormalizePage はpageとlimitを有効範囲に丸め、対応するoffsetを返す。
// pageは1以上、limitは1〜MaxPageLimit。0以下のlimitはDefaultPageLimitになる。
func NormalizePage(page, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit, (page - 1) * limit
}
