// Package security は表示時のマークアップ除去と、中継先APIへの接続検証を提供する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MarkupStripper はユーザー入力由来の文字列を表示用のプレーンテキストに変換する。
// 保存や検証の段階では使わず、表示直前にのみ適用する。
type MarkupStripper interface {
	StripMarkup(s string) string
}

// markupStripper はbluemondayのStrictPolicyで全タグを除去する。
type markupStripper struct {
	policy *bluemonday.Policy
}

// NewMarkupStripper はMarkupStripperを生成する。
// script, style 要素は中身ごと除去され、それ以外のタグはテキストのみ残る。
func NewMarkupStripper() MarkupStripper {
	return &markupStripper{policy: bluemonday.StrictPolicy()}
}

// StripMarkup はタグを除去し、エスケープされた文字参照を元の文字に戻す。
func (m *markupStripper) StripMarkup(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(m.policy.Sanitize(s)))
}
