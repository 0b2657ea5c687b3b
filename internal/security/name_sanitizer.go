// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NameSanitizer はユーザーが入力した表示名からHTMLを除去する。
// 表示名はクライアントでそのまま描画されるため、保存前にタグを取り除く。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizer は表示名のサニタイズを行う。
// bluemondayのStrictPolicyは並行利用に対して安全。
type NameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はすべてのタグを除去するNameSanitizerを生成する。
func NewNameSanitizer() *NameSanitizer {
	return &NameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeName はタグを除去し、前後の空白を取り除いた表示名を返す。
// StrictPolicyがエスケープした文字実体は元に戻す（"&" は "&amp;" ではなく "&" のまま保存する）。
// タグのみの入力には空文字列を返す。
func (s *NameSanitizer) SanitizeName(name string) string {
	if name == "" {
		return ""
	}
	stripped := s.policy.Sanitize(name)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
