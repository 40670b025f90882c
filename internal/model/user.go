// Package model はドメインモデルを定義する。
package model

import "time"

// Identity は投稿・コメント・フォロー関係に埋め込まれるユーザーのスナップショット。
// 埋め込み後は元のユーザーレコードから再解決しない。
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// User はサービス利用ユーザーのプロフィールを表す。
// Followers と Followings は同一 user_id を重複して含まない。
type User struct {
	ID           string
	Name         string
	Username     string
	PasswordHash string
	PhoneNumber  string
	Email        string
	Bio          string
	Avatar       string
	Gender       string
	Links        []string
	Followers    []Identity
	Followings   []Identity
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity はユーザーの現在のIdentityを返す。
func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Username: u.Username}
}

// ProfileInput はユーザー登録・プロフィール更新の入力値。
// Passwordは平文で受け取り、サービス層でハッシュ化する。
type ProfileInput struct {
	Name        string   `json:"name"`
	Username    string   `json:"username"`
	Password    string   `json:"password"`
	PhoneNumber string   `json:"phone_number"`
	Email       string   `json:"email"`
	Bio         string   `json:"bio"`
	Avatar      string   `json:"avatar"`
	Gender      string   `json:"gender"`
	Links       []string `json:"links"`
}
