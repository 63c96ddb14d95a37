// Package errmsg はリモートAPIのエラーコードを利用者向けメッセージに変換する。
// すべての関数は純粋関数であり、失敗しない。
package errmsg

import (
	"strings"

	"github.com/hitoshi/taskfront/internal/apiclient"
	"github.com/hitoshi/taskfront/internal/model"
)

const (
	// GenericMessage は変換先もフォールバックもない場合のメッセージ。
	GenericMessage = "エラーが発生しました。再度お試しください"
	// BareErrorMessage はコードもメッセージも持たないエラーのメッセージ。
	BareErrorMessage = "エラーが発生しました"
	// UnexpectedMessage は既知のエラー種別に該当しない失敗のメッセージ。
	UnexpectedMessage = "予期しないエラーが発生しました"
)

// codeMessages はエラーコードと日本語メッセージの対応表。
var codeMessages = map[string]string{
	// ログイン関連
	"unauthorized":        "メールアドレスまたはパスワードが正しくありません",
	"invalid_credentials": "メールアドレスまたはパスワードが正しくありません",
	"account_locked":      "アカウントがロックされています。しばらく時間をおいてからお試しください",
	"account_disabled":    "このアカウントは無効になっています",
	"login_required":      "ログインが必要です",
	"session_expired":     "セッションが期限切れです。再度ログインしてください",

	// 登録関連
	"email_already_exists":  "このメールアドレスは既に登録されています",
	"invalid_email":         "メールアドレスの形式が正しくありません",
	"weak_password":         "パスワードが安全ではありません。より強固なパスワードを設定してください",
	"password_too_short":    "パスワードは8文字以上で入力してください",
	"invalid_name":          "姓名の形式が正しくありません",
	"registration_disabled": "現在、新規登録を受け付けておりません",

	// 一般的なエラー
	"validation_error":    "入力内容に問題があります",
	"server_error":        "サーバーエラーが発生しました。しばらく時間をおいてからお試しください",
	"network_error":       "ネットワークエラーが発生しました。接続を確認してください",
	"rate_limit_exceeded": "リクエストが多すぎます。しばらく時間をおいてからお試しください",
	"maintenance":         "メンテナンス中です。しばらく時間をおいてからお試しください",
	"forbidden":           "この操作を実行する権限がありません",
	"not_found":           "要求されたリソースが見つかりません",
	"conflict":            "競合が発生しました。再度お試しください",

	// フィールド共通
	"required_field":  "この項目は必須です",
	"invalid_format":  "形式が正しくありません",
	"field_too_long":  "入力内容が長すぎます",
	"field_too_short": "入力内容が短すぎます",
}

// codes は変換表に登録されている全エラーコードを返す。
func codes() []string {
	codes := make([]string, 0, len(codeMessages))
	for c := range codeMessages {
		codes = append(codes, c)
	}
	return codes
}

// TranslateCode はエラーコードを日本語メッセージに変換する。
// 未知のコードの場合は最初の空でないfallbackを、それもなければ GenericMessage を返す。
func TranslateCode(code string, fallback ...string) string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	for _, f := range fallback {
		if f != "" {
			return f
		}
	}
	return GenericMessage
}

// TranslateMany は各エラーを個別に変換する。
// コードを持つエラーは TranslateCode で変換し、元のメッセージはフォールバックとしてのみ使う。
// コードを持たないエラーは元のメッセージをそのまま残す。
func TranslateMany(errs []model.NormalizedError) []model.NormalizedError {
	out := make([]model.NormalizedError, len(errs))
	for i, e := range errs {
		out[i] = e
		switch {
		case e.Code != "":
			out[i].Message = TranslateCode(e.Code, e.Message)
		case e.Message == "":
			out[i].Message = BareErrorMessage
		}
	}
	return out
}

// FieldMessage はフィールド固有の上書きを優先してメッセージを返す。
// 上書きがないフィールドは TranslateCode に委ねる。
func FieldMessage(field, code string, fallback ...string) string {
	switch field {
	case "email":
		switch code {
		case "invalid_format", "invalid_email":
			return "有効なメールアドレスを入力してください"
		case "email_already_exists":
			return "このメールアドレスは既に登録されています"
		}
	case "password", "login_pwd":
		switch code {
		case "weak_password":
			return "パスワードは8文字以上で、英字と数字を含む必要があります"
		case "password_too_short":
			return "パスワードは8文字以上で入力してください"
		}
	case "name1":
		switch code {
		case "required_field":
			return "姓を入力してください"
		case "field_too_long":
			return "姓は50文字以内で入力してください"
		}
	case "name2":
		switch code {
		case "required_field":
			return "名を入力してください"
		case "field_too_long":
			return "名は50文字以内で入力してください"
		}
	}

	return TranslateCode(code, fallback...)
}

// Partition はエラーを翻訳しながらフィールドエラーと全体エラーに振り分ける。
// fieldがknownFieldsに含まれるエラーはフィールドごとに最初の1件を採用し、
// 残りは改行で連結した全体メッセージにまとめる。
func Partition(errs []model.NormalizedError, knownFields []string) (map[string]string, string) {
	known := make(map[string]bool, len(knownFields))
	for _, f := range knownFields {
		known[f] = true
	}

	fieldErrors := make(map[string]string)
	var general []string

	for _, e := range errs {
		if e.Field != "" && known[e.Field] {
			if _, exists := fieldErrors[e.Field]; exists {
				continue
			}
			if e.Code != "" {
				fieldErrors[e.Field] = FieldMessage(e.Field, e.Code, e.Message)
			} else if e.Message != "" {
				fieldErrors[e.Field] = e.Message
			} else {
				fieldErrors[e.Field] = BareErrorMessage
			}
			continue
		}

		switch {
		case e.Code != "":
			general = append(general, TranslateCode(e.Code, e.Message))
		case e.Message != "":
			general = append(general, e.Message)
		default:
			general = append(general, BareErrorMessage)
		}
	}

	return fieldErrors, strings.Join(general, "\n")
}

// Describe はAPI呼び出しのエラーを1行の利用者向けメッセージに変換する。
// エラー一覧を持つ場合は先頭のエラーを変換し、持たない場合はエラー自体のメッセージを使う。
// *apiclient.Error 以外のエラーには UnexpectedMessage を返す。
func Describe(err error) string {
	apiErr, ok := apiclient.AsError(err)
	if !ok {
		return UnexpectedMessage
	}
	if len(apiErr.Errors) > 0 {
		return TranslateMany(apiErr.Errors[:1])[0].Message
	}
	if apiErr.Message == "" {
		return GenericMessage
	}
	return apiErr.Message
}
