package apiclient

import (
	"errors"
	"fmt"

	"github.com/hitoshi/taskfront/internal/model"
)

// NetworkErrorMessage は通信失敗・レスポンス解析失敗時のメッセージ。
const NetworkErrorMessage = "ネットワークエラーが発生しました。再度お試しください。"

// Kind はAPI呼び出し失敗の分類。
type Kind int

const (
	// KindTransport はサーバーからの応答を得られなかった失敗。
	KindTransport Kind = iota
	// KindProtocol はJSON以外の応答や解析できない応答、エラー情報のない非2xx応答。
	KindProtocol
	// KindDomain はサーバーが構造化されたエラーを返した失敗。
	KindDomain
)

// String はメトリクスやログで使う分類名を返す。
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindDomain:
		return "domain"
	default:
		return "unknown"
	}
}

// Scope はエラーを発生させた操作系統を表す。
// 値は各クライアントパッケージが定義する。
type Scope string

// Error はリクエスト実行層が返す唯一のエラー型。
// StatusCode が0の場合はステータスコードが付与されていないことを表す。
type Error struct {
	Scope      Scope
	Kind       Kind
	Message    string
	Errors     []model.NormalizedError
	StatusCode int
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("[%s/%s] %s (status %d)", e.Scope, e.Kind, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("[%s/%s] %s", e.Scope, e.Kind, e.Message)
}

// HasStatus はHTTPステータスコードが付与されているかを返す。
func (e *Error) HasStatus() bool {
	return e.StatusCode != 0
}

// AsError はerrのチェーンから*Errorを取り出す。
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func newNetworkError(scope Scope, kind Kind) *Error {
	return &Error{
		Scope:   scope,
		Kind:    kind,
		Message: NetworkErrorMessage,
	}
}
