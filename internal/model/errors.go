// Package model はドメインモデルを定義する。
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NormalizedError はリモートAPIのエラーを正規化した表現。
// 空文字列は「値なし」を意味する。
type NormalizedError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

// ErrorList はレスポンスの errors 配列を表す。
// 要素はオブジェクト {code, message, field} と文字列のどちらでも受け付ける。
// 文字列要素はメッセージとして扱う。
type ErrorList []NormalizedError

// UnmarshalJSON は要素ごとに形式を判定してデコードする。
func (l *ErrorList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*l = nil
		return nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("errors 配列のデコードに失敗しました: %w", err)
	}

	out := make(ErrorList, 0, len(raws))
	for _, raw := range raws {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '"' {
			var msg string
			if err := json.Unmarshal(trimmed, &msg); err != nil {
				return fmt.Errorf("errors 要素のデコードに失敗しました: %w", err)
			}
			out = append(out, NormalizedError{Message: msg})
			continue
		}

		var e NormalizedError
		if err := json.Unmarshal(trimmed, &e); err != nil {
			return fmt.Errorf("errors 要素のデコードに失敗しました: %w", err)
		}
		out = append(out, e)
	}

	*l = out
	return nil
}

// APIError はリレーが返す統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: relay, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeRateLimited   = "rate_limit_exceeded"
	ErrCodeRouteNotFound = "not_found"
	ErrCodeInternal      = "server_error"
	ErrCodeCSRF          = "csrf_token_invalid"
)

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "relay",
		Action:   "しばらく時間をおいてからお試しください。",
	}
}

// NewRouteNotFoundError は未定義ルートへのアクセスエラーを生成する。
func NewRouteNotFoundError(path string) *APIError {
	return &APIError{
		Code:     ErrCodeRouteNotFound,
		Message:  fmt.Sprintf("要求されたリソースが見つかりません: %s", path),
		Category: "relay",
		Action:   "URLを確認してください。",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewCSRFError はCSRFトークン検証の失敗を表すエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "リクエストを検証できませんでした。",
		Category: "relay",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}
