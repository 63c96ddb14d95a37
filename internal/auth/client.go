// Package auth は会員登録・ログイン・セッション確認のAPIクライアントと、
// 認証状態チェックのフローを提供する。
package auth

import (
	"context"
	"net/http"

	"github.com/hitoshi/taskfront/internal/apiclient"
	"github.com/hitoshi/taskfront/internal/model"
)

// エラーのスコープ
const (
	ScopeRegistration apiclient.Scope = "registration"
	ScopeLogin        apiclient.Scope = "login"
	ScopeProfile      apiclient.Scope = "profile"
)

// 各操作の失敗時メッセージ
const (
	RegistrationFailedMessage = "バリデーションエラーが発生しました"
	LoginFailedMessage        = "ログインに失敗しました"
	ProfileFailedMessage      = "認証状態の確認に失敗しました"
)

// Endpoints は認証系APIのパス。
type Endpoints struct {
	Register string
	Login    string
	Profile  string
}

// DefaultEndpoints は既定のAPIパスを返す。
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Register: "/rcms-api/1/member/register",
		Login:    "/rcms-api/1/login",
		Profile:  "/rcms-api/1/profile",
	}
}

// RegisterInput は会員登録APIに送信する内容。確認用パスワードは含まない。
type RegisterInput struct {
	Name1    string `json:"name1"`
	Name2    string `json:"name2"`
	Email    string `json:"email"`
	LoginPwd string `json:"login_pwd"`
}

// RegisteredMember は登録・ログイン応答に含まれる会員情報。
type RegisteredMember struct {
	ID    model.FlexInt `json:"id"`
	Name1 string        `json:"name1"`
	Name2 string        `json:"name2"`
	Email string        `json:"email"`
}

// RegisterResult は会員登録APIの応答。
type RegisterResult struct {
	Member *RegisteredMember `json:"member,omitempty"`
}

// Credentials はログインAPIに送信する資格情報。
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult はログインAPIの応答。
type LoginResult struct {
	Member    *RegisteredMember `json:"member,omitempty"`
	Token     string            `json:"token,omitempty"`
	ExpiresAt model.FlexInt     `json:"expires_at,omitempty"`
}

// Client は認証系APIのクライアント。
type Client struct {
	exec      *apiclient.Executor
	endpoints Endpoints
}

// NewClient はClientを生成する。endpointsの空のパスは既定値で補う。
func NewClient(exec *apiclient.Executor, endpoints Endpoints) *Client {
	def := DefaultEndpoints()
	if endpoints.Register == "" {
		endpoints.Register = def.Register
	}
	if endpoints.Login == "" {
		endpoints.Login = def.Login
	}
	if endpoints.Profile == "" {
		endpoints.Profile = def.Profile
	}
	return &Client{exec: exec, endpoints: endpoints}
}

// Register は会員登録を行う。Cookieは送受信しない。
func (c *Client) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	return apiclient.Execute[RegisterResult](ctx, c.exec, apiclient.Request{
		Method: http.MethodPost,
		Path:   c.endpoints.Register,
		Body:   in,
	}, RegistrationFailedMessage, ScopeRegistration)
}

// Login はログインを行う。成功時のセッションCookieはExecutorが保持する。
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	return apiclient.Execute[LoginResult](ctx, c.exec, apiclient.Request{
		Method:      http.MethodPost,
		Path:        c.endpoints.Login,
		Body:        creds,
		Credentials: true,
	}, LoginFailedMessage, ScopeLogin)
}

// CheckSession はプロフィールを取得してセッションの有効性を確認する。
// 応答が想定の形状でない場合もエラーにはせず、ShapeがnilのProfileResultを返す。
func (c *Client) CheckSession(ctx context.Context) (*ProfileResult, error) {
	return apiclient.Execute[ProfileResult](ctx, c.exec, apiclient.Request{
		Method:      http.MethodGet,
		Path:        c.endpoints.Profile,
		Credentials: true,
	}, ProfileFailedMessage, ScopeProfile)
}

// ClearSession は保持しているセッションCookieを破棄する。
func (c *Client) ClearSession() error {
	return c.exec.ClearCookies()
}
