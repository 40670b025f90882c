// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はキャプション、コメント、プロフィール文などの
// ユーザー入力テキストからHTMLマークアップを除去する。
// bluemondayのStrictPolicyを使用し、タグは一切通過させない。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー入力テキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Sanitize は全てのHTMLタグを除去し、前後の空白を取り除いたプレーンテキストを返す。
	// script、styleタグは内容ごと除去される。
	// タグでない &、<、> や引用符はエスケープせずそのまま残す。
	// 出力を再度渡しても変化しない。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはゴルーチンセーフなため共有して使う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// maxSanitizePasses はエンティティで多重に符号化されたタグを剥がす上限回数。
const maxSanitizePasses = 4

// Sanitize はテキストからHTMLを除去する。
// bluemondayの出力はエスケープ済みなので、保存用にエンティティを戻す。
// 戻した結果がタグになる入力（&lt;b&gt; など）は、出力が変化しなくなるまで繰り返し除去する。
func (s *textSanitizer) Sanitize(raw string) string {
	out := raw
	for i := 0; i < maxSanitizePasses; i++ {
		next := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(out)))
		if next == out {
			break
		}
		out = next
	}
	return out
}
