package form

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/taskfront/internal/auth"
	"github.com/hitoshi/taskfront/internal/model"
	"github.com/hitoshi/taskfront/internal/notify"
	"github.com/hitoshi/taskfront/internal/session"
)

// ErrSessionNotEstablished はログインAPIは成功したが、その後のセッション確認で
// 認証済みにならなかったことを表す。
var ErrSessionNotEstablished = errors.New("form: ログイン後のセッションを確認できませんでした")

// LoginValues はログインフォームの値。
type LoginValues struct {
	Email    string
	Password string
}

var loginSchema = Schema[LoginValues]{
	Fields: []string{"email", "password"},
	Get: func(v LoginValues, field string) string {
		switch field {
		case "email":
			return v.Email
		case "password":
			return v.Password
		}
		return ""
	},
	Set: func(v *LoginValues, field, value string) {
		switch field {
		case "email":
			v.Email = value
		case "password":
			v.Password = value
		}
	},
	ValidateField: func(v LoginValues, field string) string {
		switch field {
		case "email":
			return ValidateEmail(v.Email)
		case "password":
			return ValidateLoginPassword(v.Password)
		}
		return ""
	},
}

// LoginAPI はログインAPIの操作。
type LoginAPI interface {
	Login(ctx context.Context, creds auth.Credentials) (*auth.LoginResult, error)
}

// SessionChecker はセッションを確認して認証状態を確定させる。
type SessionChecker interface {
	Check(ctx context.Context) model.Phase
}

// LoginForm はログインフォーム。
// ログイン成功後にセッションを確認し、認証状態ストアに会員情報を反映する。
type LoginForm struct {
	*Controller[LoginValues]

	api      LoginAPI
	checker  SessionChecker
	session  session.Reader
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewLoginForm はLoginFormを生成する。
func NewLoginForm(api LoginAPI, checker SessionChecker, reader session.Reader, notifier notify.Notifier, logger *slog.Logger) *LoginForm {
	return &LoginForm{
		Controller: NewController(loginSchema, func() LoginValues { return LoginValues{} }),
		api:        api,
		checker:    checker,
		session:    reader,
		notifier:   notifier,
		logger:     logger,
	}
}

// Submit はフォームを検証してログインする。
func (f *LoginForm) Submit(ctx context.Context) SubmitOutcome {
	out := f.Controller.Submit(ctx, f.login)
	if out.Status != OutcomeFailed {
		return out
	}

	f.logger.WarnContext(ctx, "ログインに失敗しました", slog.String("error", out.Err.Error()))
	if errors.Is(out.Err, ErrSessionNotEstablished) {
		// 通知はセッション確認側で済んでいる
		f.SetGeneralError(notify.AuthErrorMessage)
		return out
	}
	applyFailure(f.Controller, out.Err, f.notifier)
	return out
}

func (f *LoginForm) login(ctx context.Context, v LoginValues) error {
	if _, err := f.api.Login(ctx, auth.Credentials{Email: v.Email, Password: v.Password}); err != nil {
		return err
	}
	if phase := f.checker.Check(ctx); phase != model.PhaseAuthenticated {
		return ErrSessionNotEstablished
	}
	notify.LoginSuccess(f.notifier, f.session.DisplayName())
	return nil
}
