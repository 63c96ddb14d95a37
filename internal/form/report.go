package form

import (
	"github.com/hitoshi/taskfront/internal/apiclient"
	"github.com/hitoshi/taskfront/internal/errmsg"
	"github.com/hitoshi/taskfront/internal/notify"
)

// Report は送信処理のエラーを表示先ごとに分類した結果。
type Report struct {
	// FieldErrors はフォームのフィールドに表示するエラー。
	FieldErrors map[string]string
	// General はフォーム全体に表示するエラー。
	General string
	// Unexpected はAPIのエラーとして分類できなかったことを表す。
	Unexpected bool
}

// Classify はerrを分類する。knownFieldsに含まれないフィールドのエラーはGeneralに入る。
// エラーコードはそのまま表示せず、必ず利用者向けメッセージに変換する。
func Classify(err error, knownFields []string) Report {
	if err == nil {
		return Report{}
	}

	apiErr, ok := apiclient.AsError(err)
	if !ok {
		return Report{General: errmsg.UnexpectedMessage, Unexpected: true}
	}

	if len(apiErr.Errors) == 0 {
		msg := apiErr.Message
		if msg == "" {
			msg = errmsg.GenericMessage
		}
		return Report{General: msg}
	}

	fields, general := errmsg.Partition(apiErr.Errors, knownFields)
	return Report{FieldErrors: fields, General: general}
}

// applyFailure は分類結果をフォームに反映し、フォーム全体のエラーを通知する。
func applyFailure[T any](c *Controller[T], err error, n notify.Notifier) Report {
	r := c.Report(err)
	if len(r.FieldErrors) > 0 {
		c.SetFieldErrors(r.FieldErrors)
	}
	c.SetGeneralError(r.General)
	if r.General != "" {
		notify.Error(n, r.General)
	}
	return r
}
