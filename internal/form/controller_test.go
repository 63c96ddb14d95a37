package form

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/taskfront/internal/apiclient"
	"github.com/hitoshi/taskfront/internal/errmsg"
	"github.com/hitoshi/taskfront/internal/model"
)

func newLoginController() *Controller[LoginValues] {
	return NewController(loginSchema, func() LoginValues { return LoginValues{} })
}

func TestController_ChangeValidatesOnlyTouchedFields(t *testing.T) {
	c := newLoginController()

	c.Change("email", "invalid")
	if c.Error("email") != "" {
		t.Errorf("触れていないフィールドは検証しない: %q", c.Error("email"))
	}

	c.Blur("email")
	if c.Error("email") != "有効なメールアドレスを入力してください" {
		t.Errorf("Blur 後のエラー = %q", c.Error("email"))
	}

	c.Change("email", "a@b.com")
	if c.Error("email") != "" {
		t.Errorf("修正後もエラーが残っている: %q", c.Error("email"))
	}
	if !c.Touched("email") || c.Touched("password") {
		t.Error("touched の状態が不正")
	}
}

// ログインフォームは両フィールドが通るまで無効で、
// 一方のフィールドの操作が他方のエラーを消さない。
func TestController_LoginValidity(t *testing.T) {
	c := newLoginController()

	if c.IsValid() {
		t.Error("初期状態で有効になっている")
	}

	c.Blur("password")
	if c.Error("password") != "パスワードを入力してください" {
		t.Fatalf("password のエラー = %q", c.Error("password"))
	}

	c.Change("email", "a@b.com")
	c.Blur("email")
	if c.IsValid() {
		t.Error("password が空のまま有効になっている")
	}
	if c.Error("password") == "" {
		t.Error("email の操作で password のエラーが消えた")
	}

	c.Change("password", "x")
	if !c.IsValid() {
		t.Errorf("両フィールドが通れば有効: %v", c.Validate())
	}
	if len(c.Errors()) != 0 {
		t.Errorf("Errors() = %v", c.Errors())
	}
}

func TestController_SubmitInvalidSkipsHandler(t *testing.T) {
	c := NewController(registerSchema, func() RegisterValues { return RegisterValues{} })
	c.Change("name1", "")
	c.Change("name2", "太郎")
	c.Change("email", "a@b.com")
	c.Change("login_pwd", "password123")
	c.Change("confirmPassword", "password123")

	called := false
	out := c.Submit(context.Background(), func(ctx context.Context, v RegisterValues) error {
		called = true
		return nil
	})

	if called {
		t.Error("検証失敗時にハンドラーが呼ばれた")
	}
	if out.Status != OutcomeInvalid {
		t.Errorf("Status = %v, want OutcomeInvalid", out.Status)
	}
	want := map[string]string{"name1": "姓を入力してください"}
	if len(out.Errors) != len(want) || out.Errors["name1"] != want["name1"] {
		t.Errorf("Errors = %v, want %v", out.Errors, want)
	}
	for _, field := range registerSchema.Fields {
		if !c.Touched(field) {
			t.Errorf("%s が touched になっていない", field)
		}
	}
}

func TestController_SubmitSucceeded(t *testing.T) {
	c := newLoginController()
	c.Change("email", "a@b.com")
	c.Change("password", "secret")

	var got LoginValues
	var submittingDuring bool
	out := c.Submit(context.Background(), func(ctx context.Context, v LoginValues) error {
		got = v
		submittingDuring = c.Submitting()
		return nil
	})

	if !out.OK() {
		t.Fatalf("Status = %v", out.Status)
	}
	if got.Email != "a@b.com" || got.Password != "secret" {
		t.Errorf("ハンドラーに渡された値 = %+v", got)
	}
	if !submittingDuring {
		t.Error("ハンドラー実行中は Submitting() が true であるべき")
	}
	if c.Submitting() {
		t.Error("完了後は Submitting() が false であるべき")
	}
}

func TestController_SubmitFailedReturnsError(t *testing.T) {
	c := newLoginController()
	c.Change("email", "a@b.com")
	c.Change("password", "secret")
	boom := errors.New("boom")

	out := c.Submit(context.Background(), func(ctx context.Context, v LoginValues) error {
		return boom
	})

	if out.Status != OutcomeFailed || !errors.Is(out.Err, boom) {
		t.Errorf("out = %+v", out)
	}
	if c.Submitting() {
		t.Error("失敗後も Submitting() が true のまま")
	}
}

func TestController_SubmitBusy(t *testing.T) {
	c := newLoginController()
	c.Change("email", "a@b.com")
	c.Change("password", "secret")

	var inner SubmitOutcome
	c.Submit(context.Background(), func(ctx context.Context, v LoginValues) error {
		inner = c.Submit(ctx, func(context.Context, LoginValues) error { return nil })
		return nil
	})

	if inner.Status != OutcomeBusy {
		t.Errorf("送信中の再送信 Status = %v, want OutcomeBusy", inner.Status)
	}
}

func TestController_SetFieldErrorsMergesAndTouches(t *testing.T) {
	c := newLoginController()
	c.Blur("password")

	c.SetFieldErrors(map[string]string{"email": "登録済みです"})

	if c.Error("email") != "登録済みです" || !c.Touched("email") {
		t.Errorf("email: error=%q touched=%v", c.Error("email"), c.Touched("email"))
	}
	if c.Error("password") == "" {
		t.Error("既存のエラーが消えた")
	}

	c.ClearErrors()
	if len(c.Errors()) != 0 {
		t.Errorf("ClearErrors 後の Errors() = %v", c.Errors())
	}
}

func TestController_Reset(t *testing.T) {
	c := newLoginController()
	c.Change("email", "a@b.com")
	c.Blur("email")
	c.SetGeneralError("x")

	c.Reset()

	if c.Values() != (LoginValues{}) || c.Touched("email") || c.GeneralError() != "" {
		t.Errorf("Reset 後: values=%+v touched=%v general=%q", c.Values(), c.Touched("email"), c.GeneralError())
	}
}

func TestClassify(t *testing.T) {
	fields := []string{"email", "login_pwd"}

	t.Run("フィールドと全体に振り分ける", func(t *testing.T) {
		err := &apiclient.Error{
			Kind:    apiclient.KindDomain,
			Message: "バリデーションエラーが発生しました",
			Errors: []model.NormalizedError{
				{Code: "invalid_email", Field: "email"},
				{Code: "server_error"},
			},
		}
		r := Classify(err, fields)
		if r.FieldErrors["email"] != errmsg.FieldMessage("email", "invalid_email") {
			t.Errorf("FieldErrors = %v", r.FieldErrors)
		}
		if r.General != errmsg.TranslateCode("server_error") {
			t.Errorf("General = %q", r.General)
		}
		if r.Unexpected {
			t.Error("Unexpected は false であるべき")
		}
	})

	t.Run("エラー一覧がなければメッセージを使う", func(t *testing.T) {
		r := Classify(&apiclient.Error{Kind: apiclient.KindTransport, Message: apiclient.NetworkErrorMessage}, fields)
		if r.General != apiclient.NetworkErrorMessage || len(r.FieldErrors) != 0 {
			t.Errorf("Report = %+v", r)
		}
	})

	t.Run("未知のエラー", func(t *testing.T) {
		r := Classify(errors.New("panic"), fields)
		if !r.Unexpected || r.General != errmsg.UnexpectedMessage {
			t.Errorf("Report = %+v", r)
		}
	})

	t.Run("nil", func(t *testing.T) {
		r := Classify(nil, fields)
		if r.General != "" || r.Unexpected {
			t.Errorf("Report = %+v", r)
		}
	})
}
