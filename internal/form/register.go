package form

import (
	"context"
	"log/slog"

	"github.com/hitoshi/taskfront/internal/auth"
	"github.com/hitoshi/taskfront/internal/notify"
)

// RegisteredMessage は会員登録成功時の通知。
const RegisteredMessage = "会員登録が完了しました"

// RegisterValues は会員登録フォームの値。
// ConfirmPassword はフォーム上の確認にのみ使い、APIには送信しない。
type RegisterValues struct {
	Name1           string
	Name2           string
	Email           string
	LoginPwd        string
	ConfirmPassword string
}

var registerSchema = Schema[RegisterValues]{
	Fields: []string{"name1", "name2", "email", "login_pwd", "confirmPassword"},
	Get: func(v RegisterValues, field string) string {
		switch field {
		case "name1":
			return v.Name1
		case "name2":
			return v.Name2
		case "email":
			return v.Email
		case "login_pwd":
			return v.LoginPwd
		case "confirmPassword":
			return v.ConfirmPassword
		}
		return ""
	},
	Set: func(v *RegisterValues, field, value string) {
		switch field {
		case "name1":
			v.Name1 = value
		case "name2":
			v.Name2 = value
		case "email":
			v.Email = value
		case "login_pwd":
			v.LoginPwd = value
		case "confirmPassword":
			v.ConfirmPassword = value
		}
	},
	ValidateField: func(v RegisterValues, field string) string {
		switch field {
		case "name1":
			return ValidateName1(v.Name1)
		case "name2":
			return ValidateName2(v.Name2)
		case "email":
			return ValidateEmail(v.Email)
		case "login_pwd":
			return ValidatePassword(v.LoginPwd)
		case "confirmPassword":
			return ValidateConfirmPassword(v.LoginPwd, v.ConfirmPassword)
		}
		return ""
	},
}

// RegisterAPI は会員登録APIの操作。
type RegisterAPI interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.RegisterResult, error)
}

// RegisterForm は会員登録フォーム。
type RegisterForm struct {
	*Controller[RegisterValues]

	api      RegisterAPI
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewRegisterForm はRegisterFormを生成する。
func NewRegisterForm(api RegisterAPI, notifier notify.Notifier, logger *slog.Logger) *RegisterForm {
	return &RegisterForm{
		Controller: NewController(registerSchema, func() RegisterValues { return RegisterValues{} }),
		api:        api,
		notifier:   notifier,
		logger:     logger,
	}
}

// Submit はフォームを検証して会員登録する。成功時はフォームを初期状態に戻す。
func (f *RegisterForm) Submit(ctx context.Context) SubmitOutcome {
	out := f.Controller.Submit(ctx, f.register)
	switch out.Status {
	case OutcomeSucceeded:
		f.Reset()
		notify.Success(f.notifier, RegisteredMessage)
	case OutcomeFailed:
		f.logger.WarnContext(ctx, "会員登録に失敗しました", slog.String("error", out.Err.Error()))
		applyFailure(f.Controller, out.Err, f.notifier)
	}
	return out
}

func (f *RegisterForm) register(ctx context.Context, v RegisterValues) error {
	_, err := f.api.Register(ctx, auth.RegisterInput{
		Name1:    v.Name1,
		Name2:    v.Name2,
		Email:    v.Email,
		LoginPwd: v.LoginPwd,
	})
	return err
}
