// Package credential はパスワードのハッシュ化と照合を提供する。
// 平文パスワードは保存もログ出力もしない。
package credential

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost はbcryptのデフォルトコスト。
const DefaultCost = bcrypt.DefaultCost

// MaxPasswordBytes はbcryptが受け付けるパスワードの最大バイト数。
const MaxPasswordBytes = 72

// Hasher はbcryptによるパスワードハッシュ化を行う。
type Hasher struct {
	cost int
}

// NewHasher はHasherを生成する。costがbcryptの範囲外の場合はDefaultCostを使う。
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Cost は使用中のコストを返す。
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash はパスワードのハッシュを返す。
// ソルトはハッシュに含まれるため、同じパスワードでも毎回異なる値になる。
func (h *Hasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify はパスワードがハッシュと一致するかを返す。
// 不一致は (false, nil)、ハッシュ自体が不正な場合のみエラーを返す。
func (h *Hasher) Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("failed to verify password: %w", err)
}
