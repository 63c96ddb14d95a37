// Package form は入力フォームの状態管理とバリデーションを提供する。
//
// Controller はフィールド値、触れたフィールドの集合、フィールドごとのエラー、
// 送信中フラグを保持する。ログイン・会員登録・TODO作成の各フォームは
// Schema を与えて Controller を組み立てる。
package form

import (
	"context"
	"sync"
)

// Schema はフォームのフィールド構成と検証規則。
type Schema[T any] struct {
	// Fields は検証順のフィールド名。サーバーが返すフィールド名と一致させる。
	Fields []string
	// Get はフィールドの値を返す。
	Get func(v T, field string) string
	// Set はフィールドに値を設定する。
	Set func(v *T, field, value string)
	// ValidateField はフィールドを検証し、エラーメッセージを返す。問題なければ空文字列。
	// 他のフィールドの値を参照する規則があるため、フォーム全体の値を受け取る。
	ValidateField func(v T, field string) string
}

// Status は送信結果の種類。
type Status int

const (
	// OutcomeInvalid は入力検証に失敗し、送信しなかったことを表す。
	OutcomeInvalid Status = iota
	// OutcomeBusy は送信中のため、新たな送信を行わなかったことを表す。
	OutcomeBusy
	// OutcomeSucceeded は送信処理が成功したことを表す。
	OutcomeSucceeded
	// OutcomeFailed は送信処理がエラーを返したことを表す。
	OutcomeFailed
)

// SubmitOutcome は Submit の結果。
// 送信処理のエラーはここで返すだけで、利用者への表示は呼び出し側が決める。
type SubmitOutcome struct {
	Status Status
	Err    error
	Errors map[string]string
}

// OK は送信処理が成功したかを返す。
func (o SubmitOutcome) OK() bool {
	return o.Status == OutcomeSucceeded
}

// Controller は1つのフォームの状態を保持する。
type Controller[T any] struct {
	schema  Schema[T]
	initial func() T

	mu         sync.Mutex
	values     T
	touched    map[string]bool
	errors     map[string]string
	general    string
	submitting bool
}

// NewController はControllerを生成する。initialは初期値とReset後の値を返す。
func NewController[T any](schema Schema[T], initial func() T) *Controller[T] {
	return &Controller[T]{
		schema:  schema,
		initial: initial,
		values:  initial(),
		touched: make(map[string]bool),
		errors:  make(map[string]string),
	}
}

// Change はフィールドの値を更新する。
// 既に触れたフィールドであれば、そのフィールドだけを直ちに再検証する。
func (c *Controller[T]) Change(field, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.schema.Set(&c.values, field, value)
	if c.touched[field] {
		c.setErrorLocked(field, c.schema.ValidateField(c.values, field))
	}
}

// Blur はフィールドを触れた状態にして検証する。
func (c *Controller[T]) Blur(field string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.touched[field] = true
	c.setErrorLocked(field, c.schema.ValidateField(c.values, field))
}

func (c *Controller[T]) setErrorLocked(field, msg string) {
	if msg == "" {
		delete(c.errors, field)
		return
	}
	c.errors[field] = msg
}

func (c *Controller[T]) validateLocked() map[string]string {
	errs := make(map[string]string)
	for _, field := range c.schema.Fields {
		if msg := c.schema.ValidateField(c.values, field); msg != "" {
			errs[field] = msg
		}
	}
	return errs
}

// Validate は全フィールドを検証した結果を返す。フォームの状態は変更しない。
func (c *Controller[T]) Validate() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validateLocked()
}

// IsValid は全フィールドが検証を通過するかを返す。
func (c *Controller[T]) IsValid() bool {
	return len(c.Validate()) == 0
}

// Submit は全フィールドを検証し、問題がなければhandlerを実行する。
//
// 検証に失敗した場合はエラーを全フィールド分設定し、すべてのフィールドを
// 触れた状態にしてhandlerを呼ばない。handlerの実行中はロックを保持しない。
func (c *Controller[T]) Submit(ctx context.Context, handler func(ctx context.Context, values T) error) SubmitOutcome {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return SubmitOutcome{Status: OutcomeBusy}
	}

	errs := c.validateLocked()
	if len(errs) > 0 {
		c.errors = errs
		for _, field := range c.schema.Fields {
			c.touched[field] = true
		}
		c.mu.Unlock()
		return SubmitOutcome{Status: OutcomeInvalid, Errors: copyErrors(errs)}
	}

	c.submitting = true
	c.general = ""
	values := c.values
	c.mu.Unlock()

	err := handler(ctx, values)

	c.mu.Lock()
	c.submitting = false
	c.mu.Unlock()

	if err != nil {
		return SubmitOutcome{Status: OutcomeFailed, Err: err}
	}
	return SubmitOutcome{Status: OutcomeSucceeded}
}

// SetFieldErrors はエラーをマージし、該当フィールドを触れた状態にする。
// サーバーが返したフィールドエラーをフォームに反映するために使う。
func (c *Controller[T]) SetFieldErrors(errs map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for field, msg := range errs {
		c.touched[field] = true
		c.setErrorLocked(field, msg)
	}
}

// SetGeneralError はフィールドに属さないエラーを設定する。
func (c *Controller[T]) SetGeneralError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.general = msg
}

// ClearErrors はすべてのエラーを消去する。
func (c *Controller[T]) ClearErrors() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = make(map[string]string)
	c.general = ""
}

// Reset は値・触れた状態・エラーを初期状態に戻す。
// 実行中の送信処理は中断しない。
func (c *Controller[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = c.initial()
	c.touched = make(map[string]bool)
	c.errors = make(map[string]string)
	c.general = ""
}

// Values は現在の値を返す。
func (c *Controller[T]) Values() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values
}

// Value はフィールドの現在の値を返す。
func (c *Controller[T]) Value(field string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.schema.Get(c.values, field)
}

// Errors はフィールドごとのエラーのコピーを返す。
func (c *Controller[T]) Errors() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyErrors(c.errors)
}

// Error はフィールドのエラーを返す。エラーがなければ空文字列。
func (c *Controller[T]) Error(field string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors[field]
}

// GeneralError はフィールドに属さないエラーを返す。
func (c *Controller[T]) GeneralError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.general
}

// Touched はフィールドが触れた状態かを返す。
func (c *Controller[T]) Touched(field string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.touched[field]
}

// Submitting は送信中かを返す。
func (c *Controller[T]) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// Report は送信処理のエラーをこのフォームのフィールド構成で分類する。
func (c *Controller[T]) Report(err error) Report {
	return Classify(err, c.schema.Fields)
}

func copyErrors(src map[string]string) map[string]string {
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
