package model

import "time"

// usersテーブルの列長の上限（文字数）。
const (
	MaxEmailLength = 320
	MaxNameLength  = 255
)

// Account は登録済みユーザーを表す。
// emailが主キーであり、保存時の大文字小文字をそのまま保持する（正規化しない）。
type Account struct {
	Email          string
	Name           string
	CredentialHash string `json:"-"` // bcryptハッシュ。平文パスワードは保持しない
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PublicAccount はクライアントへ返却してよいAccountのフィールドのみを持つ。
type PublicAccount struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Public はAccountから公開フィールドのみを取り出す。
func (a *Account) Public() PublicAccount {
	return PublicAccount{
		Email: a.Email,
		Name:  a.Name,
	}
}
